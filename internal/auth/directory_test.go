package auth

import (
	"errors"
	"testing"

	"teamboard/teamboard-api/internal/kvstore"
)

func TestDirectorySeedsDemoAccounts(t *testing.T) {
	store := kvstore.NewMemoryStore()
	dir, err := NewDirectory(store)
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}

	cases := []struct {
		username string
		password string
		name     string
	}{
		{"admin", "admin123", "Admin User"},
		{"john", "john123", "John Doe"},
		{"jane", "jane123", "Jane Smith"},
		{"bob", "bob123", "Bob Johnson"},
	}
	for _, tc := range cases {
		u, ok := dir.FindByCredentials(tc.username, tc.password)
		if !ok {
			t.Fatalf("expected seeded account %q to resolve", tc.username)
		}
		if u.Name != tc.name {
			t.Fatalf("expected name %q for %q, got %q", tc.name, tc.username, u.Name)
		}
	}
}

func TestFindByCredentialsIsExactMatch(t *testing.T) {
	dir, err := NewDirectory(kvstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}

	if _, ok := dir.FindByCredentials("admin", "wrong"); ok {
		t.Fatalf("expected mismatching password to fail")
	}
	if _, ok := dir.FindByCredentials("Admin", "admin123"); ok {
		t.Fatalf("expected username match to be case-sensitive")
	}
}

func TestRegisterPersistsAndLoads(t *testing.T) {
	store := kvstore.NewMemoryStore()
	dir, err := NewDirectory(store)
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}

	u, err := dir.Register("carol@example.com", "secret9", "Carol Reed")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected generated id")
	}

	// A fresh directory over the same store loads the registered entry
	// instead of reseeding.
	dir2, err := NewDirectory(store)
	if err != nil {
		t.Fatalf("NewDirectory() reload error: %v", err)
	}
	got, ok := dir2.FindByCredentials("carol@example.com", "secret9")
	if !ok {
		t.Fatalf("expected registered account to survive reload")
	}
	if got.Name != "Carol Reed" {
		t.Fatalf("expected persisted name, got %q", got.Name)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	dir, err := NewDirectory(kvstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}

	if _, err := dir.Register("carol@example.com", "secret9", "Carol"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	_, err = dir.Register("carol@example.com", "other99", "Other Carol")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	dir, err := NewDirectory(kvstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}

	if _, err := dir.Register("not-an-email", "secret9", "X"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := dir.Register("x@example.com", "short", "X"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestUsernameTaken(t *testing.T) {
	dir, err := NewDirectory(kvstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}

	if !dir.UsernameTaken("admin") {
		t.Fatalf("expected seeded username to be taken")
	}
	if dir.UsernameTaken("nobody") {
		t.Fatalf("expected unknown username to be free")
	}
}

func TestUsersClearsPasswords(t *testing.T) {
	dir, err := NewDirectory(kvstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}

	users := dir.Users()
	if len(users) != 4 {
		t.Fatalf("expected 4 seeded users, got %d", len(users))
	}
	for _, u := range users {
		if u.Password != "" {
			t.Fatalf("expected password cleared for %q", u.Username)
		}
	}
}

func TestDirectoryMalformedStateFails(t *testing.T) {
	store := kvstore.NewMemoryStore()
	if err := store.Set(kvstore.KeyUsers, []byte("corrupt{")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if _, err := NewDirectory(store); !errors.Is(err, kvstore.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
