package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/pkg/schema"
)

func TestSession_PutNilRemoves(t *testing.T) {
	s := New("s1")
	assert.True(t, s.IsNew())
	assert.False(t, s.Dirty())

	s.Put("token", "abc_s1")
	v, ok := s.Get("token")
	assert.True(t, ok)
	assert.Equal(t, "abc_s1", v)
	assert.True(t, s.Dirty())

	s.Put("token", nil)
	_, ok = s.Get("token")
	assert.False(t, ok)
	assert.Empty(t, s.Keys())
}

func TestSession_DeleteAbsentKeyIsClean(t *testing.T) {
	s := FromData(&Data{ID: "s1", Values: map[string]any{"a": 1}})
	s.Delete("missing")
	assert.False(t, s.Dirty())
	s.Delete("a")
	assert.True(t, s.Dirty())
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "nope")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	require.NoError(t, store.Save(ctx, &Data{ID: "s1", Values: map[string]any{"k": "v"}}))
	d, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "v", d.Values["k"])

	// Loaded data is a copy.
	d.Values["k"] = "changed"
	d2, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "v", d2.Values["k"])

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.Error(t, err)
}

func TestManager_Middleware(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store)

	handler := mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		require.NotNil(t, s)
		n, _ := s.Get("visits")
		count, _ := n.(float64)
		s.Put("visits", count+1)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)

	d, err := store.Load(context.Background(), cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, float64(1), d.Values["visits"])

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	d, err = store.Load(context.Background(), cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, float64(2), d.Values["visits"])
}

func TestManager_UnknownCookieGetsFreshSession(t *testing.T) {
	mgr := NewManager(NewMemoryStore(), WithCookieName("sid"))

	var seen string
	handler := mgr.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context()).ID()
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEqual(t, "forged", seen)
	assert.NotEmpty(t, seen)
}

func TestManager_CleanSessionNotSaved(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store)

	var id string
	handler := mgr.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		id = FromContext(r.Context()).ID()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := store.Load(context.Background(), id)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Save(context.Context, *Data) error { return errors.New("disk full") }

func TestManager_FailedSaveBecomesErrorResponse(t *testing.T) {
	mgr := NewManager(failingStore{NewMemoryStore()})

	handler := mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Put("token", "abc_s1")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("abc_s1"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), schema.ErrCodeStore)
	assert.NotContains(t, rec.Body.String(), "abc_s1")
}

func TestManager_FailedSaveWithoutWrite(t *testing.T) {
	mgr := NewManager(failingStore{NewMemoryStore()})

	handler := mgr.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Put("token", "abc_s1")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestManager_SavedBeforeResponseIsWritten(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store)

	var savedAtWrite bool
	handler := mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		s.Put("token", "abc_s1")
		w.WriteHeader(http.StatusOK)
		_, err := store.Load(r.Context(), s.ID())
		savedAtWrite = err == nil
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, savedAtWrite)
}
