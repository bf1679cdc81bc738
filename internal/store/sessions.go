package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rendis/flowbridge/internal/session"
)

// SQLSessionStore keeps sessions in the sessions table as JSON.
type SQLSessionStore struct {
	db *sql.DB
}

// NewSQLSessionStore creates a session store over a migrated LibSQLStore.
func NewSQLSessionStore(s *LibSQLStore) *SQLSessionStore {
	return &SQLSessionStore{db: s.DB()}
}

func (s *SQLSessionStore) Load(ctx context.Context, id string) (*session.Data, error) {
	var (
		raw       string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.NotFound(id)
	}
	if err != nil {
		return nil, storeError("load session", err)
	}

	d := &session.Data{ID: id, Values: map[string]any{}, UpdatedAt: fromMillis(updatedAt)}
	if err := json.Unmarshal([]byte(raw), &d.Values); err != nil {
		return nil, storeError("decode session", err)
	}
	return d, nil
}

// Save upserts the session. Concurrent saves for one session are last-writer-wins.
func (s *SQLSessionStore) Save(ctx context.Context, d *session.Data) error {
	values := d.Values
	if values == nil {
		values = map[string]any{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return storeError("encode session", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		d.ID, string(raw), toMillis(d.UpdatedAt),
	)
	if err != nil {
		return storeError("save session", err)
	}
	return nil
}

func (s *SQLSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return storeError("delete session", err)
	}
	return nil
}

var _ session.Store = (*SQLSessionStore)(nil)
