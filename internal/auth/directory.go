package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"teamboard/teamboard-api/internal/kvstore"
)

var (
	ErrUsernameTaken   = errors.New("username already registered")
	ErrWeakPassword    = errors.New("password too short")
	ErrInvalidUsername = errors.New("invalid username")
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// seedUsers are the compiled-in demo accounts the directory starts with when
// no registered-users state exists yet.
func seedUsers() []User {
	return []User{
		{ID: "1", Username: "admin", Password: "admin123", Name: "Admin User"},
		{ID: "2", Username: "john", Password: "john123", Name: "John Doe"},
		{ID: "3", Username: "jane", Password: "jane123", Name: "Jane Smith"},
		{ID: "4", Username: "bob", Password: "bob123", Name: "Bob Johnson"},
	}
}

// Directory holds the registered users, mirrored to the store under the
// registered-users key. Usernames are unique; uniqueness is enforced at
// registration time only.
type Directory struct {
	store kvstore.Store

	mu    sync.RWMutex
	users []User
}

func NewDirectory(store kvstore.Store) (*Directory, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	d := &Directory{store: store}
	found, err := kvstore.ReadJSON(store, kvstore.KeyUsers, &d.users)
	if err != nil {
		return nil, fmt.Errorf("load user directory: %w", err)
	}
	if !found {
		d.users = seedUsers()
	}
	return d, nil
}

// FindByCredentials returns the entry whose username and password both match
// exactly. Comparison is case-sensitive and unhashed.
func (d *Directory) FindByCredentials(username, password string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range d.users {
		if u.Username == username && u.Password == password {
			return u, true
		}
	}
	return User{}, false
}

// UsernameTaken is a pure predicate with no side effect on failure.
func (d *Directory) UsernameTaken(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range d.users {
		if u.Username == username {
			return true
		}
	}
	return false
}

// Register validates and appends a new account, then persists the directory.
// Sign-up usernames are email addresses.
func (d *Directory) Register(username, password, name string) (User, error) {
	username = strings.TrimSpace(username)
	if !emailPattern.MatchString(username) {
		return User{}, ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}

	id, err := newID(12)
	if err != nil {
		return User{}, fmt.Errorf("generate id: %w", err)
	}
	u := User{ID: id, Username: username, Password: password, Name: strings.TrimSpace(name)}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.users {
		if existing.Username == username {
			return User{}, ErrUsernameTaken
		}
	}

	prev := d.users
	d.users = append(append([]User(nil), d.users...), u)
	if err := kvstore.WriteJSON(d.store, kvstore.KeyUsers, d.users); err != nil {
		d.users = prev
		return User{}, fmt.Errorf("persist user directory: %w", err)
	}
	return u, nil
}

// Users returns directory entries with passwords cleared, for display use
// such as assignee lists.
func (d *Directory) Users() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		u.Password = ""
		out = append(out, u)
	}
	return out
}

func newID(n int) (string, error) {
	if n < 8 {
		return "", fmt.Errorf("id length too short")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
