package engine

import (
	"sort"
	"sync"
)

// Scope is the mutable key/value state owned by one flow execution.
// It is shared by reference: the executor, the bridge and every
// interceptor that obtained it see the same entries.
type Scope struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewScope creates a scope seeded with a deep copy of initial.
func NewScope(initial map[string]any) *Scope {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = deepCopyValue(v)
	}
	return &Scope{values: values}
}

// Get returns the value stored under key.
func (s *Scope) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetCopy is Get returning a deep copy, for callers that hand the value to
// code free to mutate it.
func (s *Scope) GetCopy(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return deepCopyValue(v), ok
}

// Put stores a deep copy of value under key. A nil value is stored as
// present-but-null.
func (s *Scope) Put(key string, value any) {
	value = deepCopyValue(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes key.
func (s *Scope) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Keys returns the keys in sorted order.
func (s *Scope) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Scope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// AsMap returns a deep copy of the entries, safe to hand to expression engines
// and serializers.
func (s *Scope) AsMap() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = deepCopyValue(v)
	}
	return out
}

// deepCopyValue copies the JSON-shaped containers (maps and slices) so callers
// cannot mutate scope entries through a snapshot.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = deepCopyValue(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = deepCopyValue(v)
		}
		return out
	default:
		return v
	}
}
