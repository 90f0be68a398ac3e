package auth

// User is a directory entry. The registered directory carries plaintext
// passwords (demo credential model); the persisted session copy always has
// Password cleared.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
}
