package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/internal/session"
	"github.com/rendis/flowbridge/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func pausedExecution(id string, snapshot int, scope map[string]any, updated time.Time) *engine.Execution {
	return engine.RestoreExecution(engine.ExecutionRecord{
		ID:        id,
		FlowID:    "checkout",
		State:     "step1",
		Status:    schema.ExecutionStatusPaused,
		Snapshot:  snapshot,
		Scope:     scope,
		CreatedAt: updated,
		UpdatedAt: updated,
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	var version int
	require.NoError(t, s.DB().QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, 2, version)
}

func TestLoadMigrations_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
		"migrations/002_first.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
	}
	got, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Version)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, 10, got[1].Version)

	_, err = loadMigrations(fstest.MapFS{"migrations/nover.sql": {Data: []byte("")}})
	assert.Error(t, err)

	embedded, err := loadMigrations(migrationFiles)
	require.NoError(t, err)
	assert.Equal(t, []string{"flow_executions", "sessions"}, []string{embedded[0].Name, embedded[1].Name})
}

func TestSplitStatements_SkipsCommentOnlyChunks(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n-- trailing only\n;")
	assert.Equal(t, []string{"-- header\nCREATE TABLE a (id TEXT)"}, stmts)
}

func TestSQLRepository_IdentityMap(t *testing.T) {
	s := newTestStore(t)
	repo := NewSQLRepository(s)
	ctx := context.Background()

	exec := pausedExecution("e1", 1, map[string]any{"total": 42}, time.Now())
	require.NoError(t, repo.Put(ctx, exec))

	got, err := repo.Get(ctx, engine.ExecutionKey{ID: "e1", Snapshot: 1})
	require.NoError(t, err)
	assert.Same(t, exec, got)
	assert.Same(t, exec.Scope(), got.Scope())
}

func TestSQLRepository_ReloadAfterRestart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scope := map[string]any{"cart": []any{"apple", "pear"}, "total": 42}
	require.NoError(t, NewSQLRepository(s).Put(ctx, pausedExecution("e1", 3, scope, time.Now())))

	// A fresh repository has an empty identity map and must read the table.
	fresh := NewSQLRepository(s)
	got, err := fresh.Get(ctx, engine.ExecutionKey{ID: "e1", Snapshot: 3})
	require.NoError(t, err)
	assert.Equal(t, "e1_s3", got.Key())
	assert.Equal(t, "step1", got.State())
	assert.Equal(t, map[string]any{"cart": []any{"apple", "pear"}, "total": float64(42)}, got.Scope().AsMap())

	again, err := fresh.Get(ctx, engine.ExecutionKey{ID: "e1", Snapshot: 3})
	require.NoError(t, err)
	assert.Same(t, got, again)
}

func TestSQLRepository_LookupErrors(t *testing.T) {
	s := newTestStore(t)
	repo := NewSQLRepository(s)
	ctx := context.Background()

	_, err := repo.Get(ctx, engine.ExecutionKey{ID: "missing", Snapshot: 1})
	assert.True(t, schema.IsCode(err, schema.ErrCodeLookup))

	require.NoError(t, repo.Put(ctx, pausedExecution("e1", 2, nil, time.Now())))
	_, err = repo.Get(ctx, engine.ExecutionKey{ID: "e1", Snapshot: 1})
	assert.True(t, schema.IsCode(err, schema.ErrCodeLookup))

	_, err = repo.ParseKey("not-a-token")
	assert.True(t, schema.IsCode(err, schema.ErrCodeLookup))
}

func TestSQLRepository_Remove(t *testing.T) {
	s := newTestStore(t)
	repo := NewSQLRepository(s)
	ctx := context.Background()

	exec := pausedExecution("e1", 1, nil, time.Now())
	require.NoError(t, repo.Put(ctx, exec))
	require.NoError(t, repo.Remove(ctx, exec))

	_, err := NewSQLRepository(s).Get(ctx, engine.ExecutionKey{ID: "e1", Snapshot: 1})
	assert.True(t, schema.IsCode(err, schema.ErrCodeLookup))
	_, err = repo.Get(ctx, engine.ExecutionKey{ID: "e1", Snapshot: 1})
	assert.True(t, schema.IsCode(err, schema.ErrCodeLookup))
}

func TestSQLRepository_PurgeBefore(t *testing.T) {
	s := newTestStore(t)
	repo := NewSQLRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, pausedExecution("old", 1, nil, time.Now().Add(-2*time.Hour))))
	require.NoError(t, repo.Put(ctx, pausedExecution("new", 1, nil, time.Now())))

	n, err := repo.PurgeBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Get(ctx, engine.ExecutionKey{ID: "old", Snapshot: 1})
	assert.True(t, schema.IsCode(err, schema.ErrCodeLookup))
	_, err = repo.Get(ctx, engine.ExecutionKey{ID: "new", Snapshot: 1})
	assert.NoError(t, err)
}

func TestSQLRepository_WithExecutor(t *testing.T) {
	s := newTestStore(t)
	repo := NewSQLRepository(s)
	ctx := context.Background()

	def := &schema.FlowDefinition{
		ID:         "checkout",
		StartState: "step1",
		States: []schema.StateDefinition{
			{ID: "step1", Type: schema.StateTypeView, OnEntry: map[string]string{"total": "42"},
				Transitions: []schema.Transition{{On: "next", To: "done"}}},
			{ID: "done", Type: schema.StateTypeEnd},
		},
	}
	flows := engine.NewFlowRegistry(nil)
	require.NoError(t, flows.Register(def))
	executor, err := engine.NewFlowExecutor(engine.ExecutorConfig{Flows: flows, Repository: repo})
	require.NoError(t, err)

	res, err := executor.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM flow_executions`).Scan(&count))
	assert.Equal(t, 1, count)

	key, err := repo.ParseKey(res.PausedKey)
	require.NoError(t, err)
	exec, err := repo.Get(ctx, key)
	require.NoError(t, err)
	total, _ := exec.Scope().Get("total")
	assert.Equal(t, 42, total)

	_, err = executor.Resume(ctx, res.PausedKey, nil)
	require.NoError(t, err)
}

func TestSQLSessionStore(t *testing.T) {
	s := newTestStore(t)
	store := NewSQLSessionStore(s)
	ctx := context.Background()

	_, err := store.Load(ctx, "s1")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	require.NoError(t, store.Save(ctx, &session.Data{ID: "s1", Values: map[string]any{"token": "e1_s1"}}))
	require.NoError(t, store.Save(ctx, &session.Data{ID: "s1", Values: map[string]any{"token": "e1_s2"}}))

	d, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "e1_s2", d.Values["token"])

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}
