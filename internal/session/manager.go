package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/logging"
	"github.com/rendis/flowbridge/pkg/schema"
)

// DefaultCookieName names the session cookie.
const DefaultCookieName = "flowbridge_session"

// Manager resolves the client session from a cookie and saves it after
// the request.
type Manager struct {
	store  Store
	cookie string
	maxAge time.Duration
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Option {
	return func(m *Manager) { m.cookie = name }
}

// WithMaxAge sets the cookie lifetime. Zero means a browser-session cookie.
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) { m.maxAge = d }
}

// WithLogger sets the logger for save failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, cookie: DefaultCookieName, logger: logging.Discard()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backing store.
func (m *Manager) Store() Store { return m.store }

// Middleware attaches the session to the request context. Unknown or missing
// cookies get a fresh session. A dirty session is saved before the response
// status is written, so a failed save answers STORE_ERROR instead of a
// response carrying state the session never kept.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sess *Session
		if c, err := r.Cookie(m.cookie); err == nil && c.Value != "" {
			d, err := m.store.Load(ctx, c.Value)
			switch {
			case err == nil:
				sess = FromData(d)
			case schema.IsCode(err, schema.ErrCodeNotFound):
			default:
				logging.LogWith(ctx, m.logger).ErrorContext(ctx, "session load failed", slog.String("error", err.Error()))
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
		}
		if sess == nil {
			sess = New(uuid.New().String())
		}

		cookie := &http.Cookie{
			Name:     m.cookie,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
		if m.maxAge > 0 {
			cookie.MaxAge = int(m.maxAge.Seconds())
		}
		http.SetCookie(w, cookie)

		save := func() error {
			if !sess.Dirty() {
				return nil
			}
			if err := m.store.Save(ctx, sess.Data()); err != nil {
				logging.LogWith(ctx, m.logger).ErrorContext(ctx, "session save failed",
					slog.String("session_id", sess.ID()), slog.String("error", err.Error()))
				return schema.NewError(schema.ErrCodeStore, "session save failed").WithCause(err)
			}
			sess.markSaved()
			return nil
		}

		cw := &commitWriter{ResponseWriter: w, commit: save}
		next.ServeHTTP(cw, r.WithContext(WithSession(ctx, sess)))

		if !cw.committed {
			// Nothing written yet: a failed save still becomes the response.
			if err := save(); err != nil {
				dispatch.WriteError(w, err)
			}
			return
		}
		// Changes made after the response went out can only be logged on failure.
		_ = save()
	})
}
