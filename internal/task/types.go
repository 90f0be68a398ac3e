package task

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inProgress"
	StatusCancelled  Status = "cancelled"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCancelled, StatusDone:
		return true
	}
	return false
}

type Type string

const (
	TypeBug         Type = "bug"
	TypeFeature     Type = "feature"
	TypeImprovement Type = "improvement"
)

func (t Type) Valid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeImprovement:
		return true
	}
	return false
}

// Task is a board card. CreatedAt is immutable after creation; UpdatedAt is
// refreshed on every mutation. AssigneeID references a directory user but a
// dangling reference is tolerated.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        Type   `json:"type"`
	Status      Status `json:"status"`
	AssigneeID  string `json:"assigneeId"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// Fields is the create payload.
type Fields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        Type   `json:"type"`
	Status      Status `json:"status"`
	AssigneeID  string `json:"assigneeId"`
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Type        *Type   `json:"type,omitempty"`
	Status      *Status `json:"status,omitempty"`
	AssigneeID  *string `json:"assigneeId,omitempty"`
}
