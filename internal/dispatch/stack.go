package dispatch

import (
	"sort"
	"strings"
)

// ValueStack is the per-invocation working variable store. Keys may be
// dotted paths ("cart.total") resolving through nested map[string]any.
// It belongs to one request and is not safe for concurrent use.
type ValueStack struct {
	values map[string]any
}

// NewValueStack creates an empty stack.
func NewValueStack() *ValueStack {
	return &ValueStack{values: make(map[string]any)}
}

// Get resolves path. A stored nil is reported as present.
func (s *ValueStack) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = s.values
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Find resolves path, returning nil when absent.
func (s *ValueStack) Find(path string) any {
	v, _ := s.Get(path)
	return v
}

// FindString resolves path to a string, "" when absent or not a string.
func (s *ValueStack) FindString(path string) string {
	v, _ := s.Find(path).(string)
	return v
}

// Set stores value at path, creating intermediate maps. An intermediate
// non-map value is replaced.
func (s *ValueStack) Set(path string, value any) {
	parts := strings.Split(path, ".")
	m := s.values
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// Delete removes path. Missing intermediates are ignored.
func (s *ValueStack) Delete(path string) {
	parts := strings.Split(path, ".")
	m := s.values
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

// Keys returns the top-level keys, sorted.
func (s *ValueStack) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the top level.
func (s *ValueStack) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
