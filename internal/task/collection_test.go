package task

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"teamboard/teamboard-api/internal/kvstore"
)

// countingStore wraps a store and counts writes, so tests can tell whether a
// mutation persisted anything.
type countingStore struct {
	kvstore.Store
	writes int
}

func (s *countingStore) Set(key string, value []byte) error {
	s.writes++
	return s.Store.Set(key, value)
}

func newTestCollection(t *testing.T) (*Collection, *countingStore) {
	t.Helper()

	store := &countingStore{Store: kvstore.NewMemoryStore()}
	c, err := NewCollection(store)
	if err != nil {
		t.Fatalf("NewCollection() error: %v", err)
	}
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return c, store
}

func TestCreateStampsAndGrows(t *testing.T) {
	c, _ := newTestCollection(t)

	created, err := c.Create(Fields{Title: "T", Description: "", Type: TypeBug, Status: StatusTodo, AssigneeID: "1"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected collection length 1, got %d", c.Len())
	}
	if created.Title != "T" {
		t.Fatalf("expected title T, got %q", created.Title)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.CreatedAt != created.UpdatedAt {
		t.Fatalf("expected createdAt == updatedAt on a fresh task")
	}
	if _, err := time.Parse(time.RFC3339Nano, created.CreatedAt); err != nil {
		t.Fatalf("createdAt is not a valid timestamp: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := c.Create(Fields{Title: "more", Type: TypeFeature, Status: StatusTodo}); err != nil {
			t.Fatalf("Create() #%d error: %v", i, err)
		}
	}
	if c.Len() != 6 {
		t.Fatalf("expected collection length 6, got %d", c.Len())
	}
}

func TestCreateValidation(t *testing.T) {
	c, _ := newTestCollection(t)

	cases := []Fields{
		{Title: "  ", Type: TypeBug, Status: StatusTodo},
		{Title: "T", Type: "chore", Status: StatusTodo},
		{Title: "T", Type: TypeBug, Status: "archived"},
	}
	for i, f := range cases {
		if _, err := c.Create(f); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
	if c.Len() != 0 {
		t.Fatalf("expected no tasks after rejected creates, got %d", c.Len())
	}
}

func TestUpdateStatusOnlyTouchesStatusAndStamp(t *testing.T) {
	c, _ := newTestCollection(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return base }

	created, err := c.Create(Fields{Title: "Drag me", Description: "d", Type: TypeFeature, Status: StatusTodo, AssigneeID: "2"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	c.nowFunc = func() time.Time { return base.Add(90 * time.Second) }
	status := StatusDone
	if err := c.Update(created.ID, Patch{Status: &status}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, ok := c.Get(created.ID)
	if !ok {
		t.Fatalf("expected task to exist")
	}
	if got.Status != StatusDone {
		t.Fatalf("expected status done, got %q", got.Status)
	}
	if got.Title != created.Title || got.Description != created.Description ||
		got.Type != created.Type || got.AssigneeID != created.AssigneeID {
		t.Fatalf("expected non-status fields unchanged, got %+v", got)
	}
	if got.CreatedAt != created.CreatedAt {
		t.Fatalf("createdAt must be immutable")
	}

	before, _ := time.Parse(time.RFC3339Nano, created.UpdatedAt)
	after, _ := time.Parse(time.RFC3339Nano, got.UpdatedAt)
	if after.Before(before) {
		t.Fatalf("expected updatedAt to move forward: before=%v after=%v", before, after)
	}
}

func TestUpdateMissingIDIsSilentNoOp(t *testing.T) {
	c, store := newTestCollection(t)

	if _, err := c.Create(Fields{Title: "keep", Type: TypeBug, Status: StatusTodo}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	before := c.Tasks()
	writesBefore := store.writes

	title := "never applied"
	if err := c.Update("no-such-id", Patch{Title: &title}); err != nil {
		t.Fatalf("Update() on missing id error: %v", err)
	}
	if !reflect.DeepEqual(before, c.Tasks()) {
		t.Fatalf("expected collection unchanged")
	}
	if store.writes != writesBefore {
		t.Fatalf("expected no persistence for a missing update target")
	}
}

func TestDeleteMissingIDStillPersists(t *testing.T) {
	c, store := newTestCollection(t)

	if _, err := c.Create(Fields{Title: "keep", Type: TypeBug, Status: StatusTodo}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	before := c.Tasks()
	writesBefore := store.writes

	if err := c.Delete("no-such-id"); err != nil {
		t.Fatalf("Delete() on missing id error: %v", err)
	}
	if !reflect.DeepEqual(before, c.Tasks()) {
		t.Fatalf("expected collection unchanged")
	}
	if store.writes != writesBefore+1 {
		t.Fatalf("expected delete to persist regardless, writes %d -> %d", writesBefore, store.writes)
	}
}

func TestDeleteRemovesTask(t *testing.T) {
	c, _ := newTestCollection(t)

	created, err := c.Create(Fields{Title: "gone", Type: TypeImprovement, Status: StatusInProgress})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := c.Delete(created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty collection, got %d", c.Len())
	}
	if _, ok := c.Get(created.ID); ok {
		t.Fatalf("expected task removed")
	}
}

func TestViewFiltersAndPreservesOrder(t *testing.T) {
	c, _ := newTestCollection(t)

	seed := []Fields{
		{Title: "a", Type: TypeBug, Status: StatusTodo, AssigneeID: "1"},
		{Title: "b", Type: TypeFeature, Status: StatusDone, AssigneeID: "2"},
		{Title: "c", Type: TypeBug, Status: StatusTodo, AssigneeID: "2"},
		{Title: "d", Type: TypeImprovement, Status: StatusInProgress, AssigneeID: "1"},
	}
	for _, f := range seed {
		if _, err := c.Create(f); err != nil {
			t.Fatalf("Create(%q) error: %v", f.Title, err)
		}
	}

	var titles []string
	for tk := range c.View(string(StatusTodo), FilterAll) {
		titles = append(titles, tk.Title)
	}
	if !reflect.DeepEqual(titles, []string{"a", "c"}) {
		t.Fatalf("expected [a c] for status todo, got %v", titles)
	}

	titles = nil
	for tk := range c.View(FilterAll, "2") {
		titles = append(titles, tk.Title)
	}
	if !reflect.DeepEqual(titles, []string{"b", "c"}) {
		t.Fatalf("expected [b c] for assignee 2, got %v", titles)
	}

	titles = nil
	for tk := range c.View(string(StatusTodo), "2") {
		titles = append(titles, tk.Title)
	}
	if !reflect.DeepEqual(titles, []string{"c"}) {
		t.Fatalf("expected [c] for combined filters, got %v", titles)
	}

	count := 0
	for range c.View(FilterAll, FilterAll) {
		count++
	}
	if count != 4 {
		t.Fatalf("expected the all sentinel to match everything, got %d", count)
	}
}

func TestViewIsRestartable(t *testing.T) {
	c, _ := newTestCollection(t)

	for _, title := range []string{"x", "y"} {
		if _, err := c.Create(Fields{Title: title, Type: TypeBug, Status: StatusTodo}); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	seq := c.View(FilterAll, FilterAll)
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 2 || second != 2 {
		t.Fatalf("expected both passes to yield 2 tasks, got %d and %d", first, second)
	}
}

func TestRoundTripThroughStore(t *testing.T) {
	store := kvstore.NewMemoryStore()
	c, err := NewCollection(store)
	if err != nil {
		t.Fatalf("NewCollection() error: %v", err)
	}
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	created, err := c.Create(Fields{Title: "persisted", Description: "survives restarts", Type: TypeBug, Status: StatusTodo, AssigneeID: "1"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// A fresh collection over the same store simulates a new process.
	reloaded, err := NewCollection(store)
	if err != nil {
		t.Fatalf("NewCollection() reload error: %v", err)
	}
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() reload error: %v", err)
	}
	got, ok := reloaded.Get(created.ID)
	if !ok {
		t.Fatalf("expected task to survive reload")
	}
	if !reflect.DeepEqual(got, created) {
		t.Fatalf("expected reloaded task equal in all fields:\n got %+v\nwant %+v", got, created)
	}
}

func TestLoadMalformedCollectionFails(t *testing.T) {
	store := kvstore.NewMemoryStore()
	if err := store.Set(kvstore.KeyTasks, []byte("corrupt{")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	c, err := NewCollection(store)
	if err != nil {
		t.Fatalf("NewCollection() error: %v", err)
	}
	if err := c.Load(); !errors.Is(err, kvstore.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestSubscribeNotifiedOnEveryMutation(t *testing.T) {
	c, _ := newTestCollection(t)

	notified := 0
	c.Subscribe(func() { notified++ })

	created, err := c.Create(Fields{Title: "n", Type: TypeBug, Status: StatusTodo})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	status := StatusDone
	if err := c.Update(created.ID, Patch{Status: &status}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if err := c.Delete(created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if notified != 3 {
		t.Fatalf("expected 3 change notifications, got %d", notified)
	}

	// A rejected create must not notify.
	if _, err := c.Create(Fields{Title: " "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if notified != 3 {
		t.Fatalf("expected no notification for a failed mutation, got %d", notified)
	}
}
