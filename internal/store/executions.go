package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/pkg/schema"
)

// SQLRepository persists paused executions in the flow_executions table.
//
// Executions loaded or stored through the repository stay in an identity map
// until removed, so every Get within the process returns the same object and
// the same Scope. The table is the durable copy used after a restart.
// Scope values round-trip through JSON: numbers come back as float64.
type SQLRepository struct {
	db *sql.DB

	mu   sync.Mutex
	live map[string]*engine.Execution
}

// NewSQLRepository creates a repository over a migrated LibSQLStore.
func NewSQLRepository(s *LibSQLStore) *SQLRepository {
	return &SQLRepository{db: s.DB(), live: make(map[string]*engine.Execution)}
}

func (r *SQLRepository) ParseKey(token string) (engine.ExecutionKey, error) {
	return engine.ParseKey(token)
}

func (r *SQLRepository) Get(ctx context.Context, key engine.ExecutionKey) (*engine.Execution, error) {
	r.mu.Lock()
	exec, ok := r.live[key.ID]
	r.mu.Unlock()
	if ok {
		if !exec.Matches(key) {
			return nil, engine.LookupError(key)
		}
		return exec, nil
	}

	rec, err := r.load(ctx, key.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, engine.LookupError(key)
	}

	r.mu.Lock()
	// Another request may have loaded it meanwhile; keep the first copy.
	if cached, ok := r.live[key.ID]; ok {
		exec = cached
	} else {
		exec = engine.RestoreExecution(*rec)
		r.live[key.ID] = exec
	}
	r.mu.Unlock()

	if !exec.Matches(key) {
		return nil, engine.LookupError(key)
	}
	return exec, nil
}

func (r *SQLRepository) load(ctx context.Context, id string) (*engine.ExecutionRecord, error) {
	var (
		rec                  engine.ExecutionRecord
		status, scopeJSON    string
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, flow_id, state, status, snapshot, scope, created_at, updated_at
		 FROM flow_executions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.FlowID, &rec.State, &status, &rec.Snapshot, &scopeJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("load execution", err)
	}

	rec.Status = schema.ExecutionStatus(status)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	if err := json.Unmarshal([]byte(scopeJSON), &rec.Scope); err != nil {
		return nil, storeError("decode execution scope", err)
	}
	return &rec, nil
}

func (r *SQLRepository) Put(ctx context.Context, exec *engine.Execution) error {
	rec := exec.Record()
	scopeJSON, err := json.Marshal(rec.Scope)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "execution %s scope is not serializable", rec.ID).WithCause(err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO flow_executions (id, flow_id, state, status, snapshot, scope, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state=excluded.state, status=excluded.status,
		   snapshot=excluded.snapshot, scope=excluded.scope, updated_at=excluded.updated_at`,
		rec.ID, rec.FlowID, rec.State, string(rec.Status), rec.Snapshot, string(scopeJSON),
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return storeError("store execution", err)
	}

	r.mu.Lock()
	r.live[rec.ID] = exec
	r.mu.Unlock()
	return nil
}

func (r *SQLRepository) Remove(ctx context.Context, exec *engine.Execution) error {
	r.mu.Lock()
	delete(r.live, exec.ID())
	r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM flow_executions WHERE id = ?`, exec.ID()); err != nil {
		return storeError("remove execution", err)
	}
	return nil
}

// PurgeBefore deletes paused executions last updated before cutoff.
func (r *SQLRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM flow_executions WHERE status = ? AND updated_at < ?`,
		string(schema.ExecutionStatusPaused), cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, storeError("purge executions", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return 0, storeError("purge executions", err)
	}

	r.mu.Lock()
	for id, exec := range r.live {
		if exec.Status() == schema.ExecutionStatusPaused && exec.UpdatedAt().Before(cutoff) {
			delete(r.live, id)
		}
	}
	r.mu.Unlock()
	return n, nil
}

var _ engine.ExecutionRepository = (*SQLRepository)(nil)
