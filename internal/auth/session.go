package auth

import (
	"fmt"
	"sync"

	"teamboard/teamboard-api/internal/kvstore"
)

// Session owns the current authenticated user. It has two states, anonymous
// and authenticated, and mirrors the authenticated user to the store under
// the current-session key with the password cleared.
type Session struct {
	store kvstore.Store
	dir   *Directory

	mu   sync.RWMutex
	user *User
}

func NewSession(store kvstore.Store, dir *Directory) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if dir == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	return &Session{store: store, dir: dir}, nil
}

// Restore rehydrates the session from the store. Called once at startup; an
// absent key leaves the session anonymous, malformed content is a hard
// failure.
func (s *Session) Restore() error {
	var u User
	found, err := kvstore.ReadJSON(s.store, kvstore.KeyCurrentUser, &u)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return nil
}

// Login resolves the credentials against the directory. The bool reports the
// authentication outcome; the error is reserved for persistence failures. A
// failed login leaves the current state untouched, whatever it was.
func (s *Session) Login(username, password string) (bool, error) {
	u, ok := s.dir.FindByCredentials(username, password)
	if !ok {
		return false, nil
	}
	u.Password = ""

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.user
	s.user = &u
	if err := kvstore.WriteJSON(s.store, kvstore.KeyCurrentUser, u); err != nil {
		s.user = prev
		return false, fmt.Errorf("persist session: %w", err)
	}
	return true, nil
}

// Logout transitions to anonymous unconditionally and removes the persisted
// session key. Removal, not a null write.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	if err := s.store.Delete(kvstore.KeyCurrentUser); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (s *Session) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.CurrentUser()
	return ok
}
