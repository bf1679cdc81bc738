package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/session"
	"github.com/rendis/flowbridge/pkg/schema"
)

func TestConfiguration_Defaults(t *testing.T) {
	c := NewConfiguration()
	assert.Equal(t, "flowExecutor", c.EngineBinding())
	assert.Equal(t, DefaultTokenSessionKey, c.TokenSessionKey())
	assert.Empty(t, c.ScopeKeys())

	c = NewConfiguration(WithEngineBinding("  "), WithTokenSessionKey("tok"), WithScopeKeys(" cart , total,, "))
	assert.Equal(t, "flowExecutor", c.EngineBinding())
	assert.Equal(t, "tok", c.TokenSessionKey())
	assert.Equal(t, []string{"cart", "total"}, c.ScopeKeys())

	keys := c.ScopeKeys()
	keys[0] = "changed"
	assert.Equal(t, "cart", c.ScopeKeys()[0])
}

func TestParseKeys(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a ,  b ,", []string{"a", "b"}},
		{",,,", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseKeys(tt.raw), tt.raw)
	}
}

func TestMapRegistry(t *testing.T) {
	r := NewMapRegistry()
	_, err := r.Resolve("x")
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfiguration))

	require.NoError(t, r.Bind("x", nil))
	assert.True(t, schema.IsCode(r.Bind("x", nil), schema.ErrCodeConflict))
	assert.Equal(t, []string{"x"}, r.Names())
}

func TestTokenStore(t *testing.T) {
	store := NewTokenStore("k")
	sess := session.New("s")
	inv := &dispatch.Invocation{Session: sess}

	assert.Empty(t, store.Find(inv))

	require.NoError(t, store.Store(inv, "e1_s1"))
	assert.Equal(t, "e1_s1", store.Load(inv))
	assert.Equal(t, "e1_s1", store.Find(inv))

	inv.Params = map[string][]string{TokenKey: {"e2_s1"}}
	assert.Equal(t, "e2_s1", store.Find(inv), "parameter wins over session")

	require.NoError(t, store.Store(inv, ""))
	_, present := sess.Get("k")
	assert.False(t, present)
}

func TestTokenStore_NoSession(t *testing.T) {
	store := NewTokenStore("k")
	inv := &dispatch.Invocation{}

	assert.Empty(t, store.Load(inv))
	assert.NoError(t, store.Store(inv, ""))
	assert.True(t, schema.IsCode(store.Store(inv, "t"), schema.ErrCodeConfiguration))
}
