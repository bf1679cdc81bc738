package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/pkg/schema"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		token string
		want  ExecutionKey
	}{
		{"abc_s1", ExecutionKey{ID: "abc", Snapshot: 1}},
		{"a_sb_s12", ExecutionKey{ID: "a_sb", Snapshot: 12}},
		{"6f1c-9a_s0", ExecutionKey{ID: "6f1c-9a", Snapshot: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseKey(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.token, got.String())
		})
	}
}

func TestParseKey_Malformed(t *testing.T) {
	for _, token := range []string{"", "abc", "_s1", "abc_s", "abc_sx", "abc_s-1"} {
		t.Run(token, func(t *testing.T) {
			_, err := ParseKey(token)
			assert.True(t, schema.IsCode(err, schema.ErrCodeLookup))
		})
	}
}

func TestExecution_RecordRoundTrip(t *testing.T) {
	exec := NewExecution("e1", "checkout", map[string]any{"total": 42})
	exec.setState("step1")
	exec.setStatus(schema.ExecutionStatusPaused)
	exec.nextSnapshot()

	restored := RestoreExecution(exec.Record())
	assert.Equal(t, "e1_s1", restored.Key())
	assert.Equal(t, "step1", restored.State())
	assert.Equal(t, schema.ExecutionStatusPaused, restored.Status())
	assert.True(t, restored.Matches(ExecutionKey{ID: "e1", Snapshot: 1}))
	assert.False(t, restored.Matches(ExecutionKey{ID: "e1", Snapshot: 0}))

	v, _ := restored.Scope().Get("total")
	assert.Equal(t, 42, v)
}
