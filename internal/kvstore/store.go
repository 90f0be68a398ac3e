// Package kvstore provides the key-value persistence adapter backing the
// board state. Values are whole JSON documents rewritten on every mutation.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Fixed keys for the persisted board state.
const (
	KeyTasks       = "teamboard_tasks"
	KeyCurrentUser = "teamboard_current_user"
	KeyUsers       = "teamboard_users"
)

// ErrDecode reports malformed content under a key. Callers must not coerce
// malformed state into a default; an absent key is the only empty case.
var ErrDecode = errors.New("malformed stored value")

// Store is a synchronous key-value adapter. Get reports absence explicitly
// instead of returning an error for a missing key.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// ReadJSON decodes the value under key into out. It returns (false, nil) when
// the key is absent and a wrapped ErrDecode when the stored content does not
// parse.
func ReadJSON(s Store, key string, out any) (bool, error) {
	b, ok, err := s.Get(key)
	if err != nil {
		return false, err
	}
	if !ok || len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("%w under %q: %v", ErrDecode, key, err)
	}
	return true, nil
}

// WriteJSON serializes v in full and stores it under key.
func WriteJSON(s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	return s.Set(key, b)
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	b := make([]byte, len(value))
	copy(b, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = b
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
