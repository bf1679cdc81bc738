package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueStack_DottedPaths(t *testing.T) {
	s := NewValueStack()
	s.Set("cart.total", 42)
	s.Set("cart.items", []string{"a"})
	s.Set("user", "ana")

	v, ok := s.Get("cart.total")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	cart, ok := s.Find("cart").(map[string]any)
	require.True(t, ok)
	assert.Len(t, cart, 2)

	assert.Nil(t, s.Find("cart.missing"))
	assert.Nil(t, s.Find("user.name"), "path through a non-map")
	assert.Equal(t, "ana", s.FindString("user"))
	assert.Equal(t, "", s.FindString("cart.total"))
	assert.Equal(t, []string{"cart", "user"}, s.Keys())
}

func TestValueStack_StoredNilIsPresent(t *testing.T) {
	s := NewValueStack()
	s.Set("k", nil)
	_, ok := s.Get("k")
	assert.True(t, ok)
}

func TestValueStack_SetReplacesScalarIntermediate(t *testing.T) {
	s := NewValueStack()
	s.Set("a", "scalar")
	s.Set("a.b", 1)
	assert.Equal(t, 1, s.Find("a.b"))
}

func TestValueStack_Delete(t *testing.T) {
	s := NewValueStack()
	s.Set("a.b", 1)
	s.Set("a.c", 2)
	s.Delete("a.b")
	s.Delete("x.y")

	_, ok := s.Get("a.b")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Find("a.c"))
}

func TestValueStack_SnapshotIsShallowCopy(t *testing.T) {
	s := NewValueStack()
	s.Set("a", 1)
	snap := s.Snapshot()
	snap["b"] = 2

	_, ok := s.Get("b")
	assert.False(t, ok)
}
