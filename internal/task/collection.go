// Package task owns the in-memory task collection and keeps the durable
// store synchronized after every mutation.
package task

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"teamboard/teamboard-api/internal/kvstore"
)

var ErrInvalidInput = errors.New("invalid task input")

// FilterAll matches every task when passed to View. An empty filter behaves
// the same way.
const FilterAll = "all"

// Collection is the single owner of the task list. Order is insertion order;
// status changes never reorder, and delete is the only shrink path.
type Collection struct {
	store   kvstore.Store
	nowFunc func() time.Time

	mu        sync.RWMutex
	tasks     []Task
	listeners []func()
}

func NewCollection(store kvstore.Store) (*Collection, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &Collection{store: store, nowFunc: time.Now}, nil
}

// Load reads the persisted collection. Called once at startup, before any
// mutation; an absent key is an empty board, malformed content is a hard
// failure.
func (c *Collection) Load() error {
	var decoded []Task
	if _, err := kvstore.ReadJSON(c.store, kvstore.KeyTasks, &decoded); err != nil {
		return fmt.Errorf("load task collection: %w", err)
	}

	c.mu.Lock()
	c.tasks = decoded
	c.mu.Unlock()
	return nil
}

// Subscribe registers a listener invoked after every successful mutation.
// The presentation layer redraws from it.
func (c *Collection) Subscribe(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Collection) notify() {
	c.mu.RLock()
	listeners := make([]func(), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Create appends a new task with a fresh id and equal creation and update
// stamps, then persists the full collection.
func (c *Collection) Create(f Fields) (Task, error) {
	if err := validate(f); err != nil {
		return Task{}, err
	}

	id, err := newID(12)
	if err != nil {
		return Task{}, fmt.Errorf("generate id: %w", err)
	}

	now := c.nowFunc().UTC().Format(time.RFC3339Nano)
	t := Task{
		ID:          id,
		Title:       strings.TrimSpace(f.Title),
		Description: f.Description,
		Type:        f.Type,
		Status:      f.Status,
		AssigneeID:  f.AssigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.mu.Lock()
	prev := c.tasks
	c.tasks = append(append([]Task(nil), c.tasks...), t)
	if err := c.persistLocked(); err != nil {
		c.tasks = prev
		c.mu.Unlock()
		return Task{}, err
	}
	c.mu.Unlock()

	c.notify()
	return t, nil
}

// Update merges the patch over the task with the given id and refreshes
// UpdatedAt. A missing id is silently ignored and nothing is persisted.
func (c *Collection) Update(id string, p Patch) error {
	if err := validatePatch(p); err != nil {
		return err
	}

	c.mu.Lock()
	idx := -1
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return nil
	}

	prev := c.tasks
	next := append([]Task(nil), c.tasks...)
	t := next[idx]
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.AssigneeID != nil {
		t.AssigneeID = *p.AssigneeID
	}
	t.UpdatedAt = c.nowFunc().UTC().Format(time.RFC3339Nano)
	next[idx] = t
	c.tasks = next
	if err := c.persistLocked(); err != nil {
		c.tasks = prev
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

// Delete removes the task with the given id if present. A missing id is not
// an error; the collection is persisted either way.
func (c *Collection) Delete(id string) error {
	c.mu.Lock()
	prev := c.tasks
	next := make([]Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if t.ID != id {
			next = append(next, t)
		}
	}
	c.tasks = next
	if err := c.persistLocked(); err != nil {
		c.tasks = prev
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Collection) Get(id string) (Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tasks)
}

// Tasks returns a copy of the collection in insertion order.
func (c *Collection) Tasks() []Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Task(nil), c.tasks...)
}

// View returns a lazy, restartable sequence over the collection in insertion
// order. Each filter is an equality predicate; FilterAll or an empty string
// matches everything. The sequence is evaluated fresh on every iteration and
// never mutates the collection.
func (c *Collection) View(status, assignee string) iter.Seq[Task] {
	return func(yield func(Task) bool) {
		c.mu.RLock()
		snapshot := append([]Task(nil), c.tasks...)
		c.mu.RUnlock()

		for _, t := range snapshot {
			if !matches(status, string(t.Status)) {
				continue
			}
			if !matches(assignee, t.AssigneeID) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

func matches(filter, value string) bool {
	return filter == "" || filter == FilterAll || filter == value
}

func (c *Collection) persistLocked() error {
	out := make([]Task, 0, len(c.tasks))
	out = append(out, c.tasks...)
	if err := kvstore.WriteJSON(c.store, kvstore.KeyTasks, out); err != nil {
		return fmt.Errorf("persist task collection: %w", err)
	}
	return nil
}

func validate(f Fields) error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: type must be bug, feature, or improvement", ErrInvalidInput)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("%w: status must be todo, inProgress, cancelled, or done", ErrInvalidInput)
	}
	return nil
}

func validatePatch(p Patch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be blank", ErrInvalidInput)
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: type must be bug, feature, or improvement", ErrInvalidInput)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: status must be todo, inProgress, cancelled, or done", ErrInvalidInput)
	}
	return nil
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
