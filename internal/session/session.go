// Package session provides the durable per-client key/value store the bridge
// keeps resume tokens in between requests.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rendis/flowbridge/pkg/schema"
)

// Data is the persisted form of a session.
type Data struct {
	ID        string         `json:"id"`
	Values    map[string]any `json:"values"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store persists sessions. Load returns a NOT_FOUND FlowError for unknown IDs.
// Saves are last-writer-wins.
type Store interface {
	Load(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, data *Data) error
	Delete(ctx context.Context, id string) error
}

// Session is one client's live session for the duration of a request.
type Session struct {
	mu     sync.Mutex
	id     string
	values map[string]any
	dirty  bool
	isNew  bool
}

// New creates an empty, unsaved session.
func New(id string) *Session {
	return &Session{id: id, values: make(map[string]any), isNew: true}
}

// FromData rebuilds a session from its persisted form.
func FromData(d *Data) *Session {
	values := make(map[string]any, len(d.Values))
	for k, v := range d.Values {
		values[k] = v
	}
	return &Session{id: d.ID, values: values}
}

func (s *Session) ID() string { return s.id }

// IsNew reports whether the session has never been saved.
func (s *Session) IsNew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNew
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Put stores value under key. A nil value removes the key.
func (s *Session) Put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			s.dirty = true
		}
		return
	}
	s.values[key] = value
	s.dirty = true
}

// Delete removes key.
func (s *Session) Delete(key string) {
	s.Put(key, nil)
}

// Keys returns the stored keys, sorted.
func (s *Session) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dirty reports whether the session changed since it was loaded or saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Data returns the persisted form of the session.
func (s *Session) Data() *Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return &Data{ID: s.id, Values: values, UpdatedAt: time.Now().UTC()}
}

func (s *Session) markSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
	s.isNew = false
}

// NotFound builds the error stores return for unknown session IDs.
func NotFound(id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "session %q not found", id)
}

type ctxKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session carried by ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
