package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPurger records every cutoff it was asked to purge.
type mockPurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int
	err     error
}

func (m *mockPurger) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.n, m.err
}

func (m *mockPurger) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cutoffs)
}

func TestNewSweeper_Validation(t *testing.T) {
	_, err := NewSweeper(&mockPurger{}, "invalid cron", time.Hour, nil)
	require.Error(t, err)

	_, err = NewSweeper(&mockPurger{}, "*/5 * * * *", 0, nil)
	require.Error(t, err)

	_, err = NewSweeper(&mockPurger{}, "@every 1m", time.Hour, nil)
	require.NoError(t, err)
}

func TestSweeper_NextRun(t *testing.T) {
	s, err := NewSweeper(&mockPurger{}, "*/15 * * * *", time.Hour, nil)
	require.NoError(t, err)

	from := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 10, 12, 15, 0, 0, time.UTC), s.NextRun(from))
}

func TestSweeper_SweepUsesTTLCutoff(t *testing.T) {
	p := &mockPurger{n: 3}
	s, err := NewSweeper(p, "@hourly", 30*time.Minute, nil)
	require.NoError(t, err)

	fixed := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, fixed.Add(-30*time.Minute), p.cutoffs[0])
}

func TestSweeper_SweepError(t *testing.T) {
	p := &mockPurger{err: errors.New("db locked")}
	s, err := NewSweeper(p, "@hourly", time.Minute, nil)
	require.NoError(t, err)

	_, err = s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}

func TestSweeper_MaybeSweepOnlyWhenDue(t *testing.T) {
	p := &mockPurger{}
	s, err := NewSweeper(p, "0 * * * *", time.Hour, nil)
	require.NoError(t, err)

	clock := time.Date(2026, 2, 10, 12, 10, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	s.nextRun = s.NextRun(clock)

	s.maybeSweep(context.Background())
	assert.Equal(t, 0, p.calls())

	clock = time.Date(2026, 2, 10, 13, 0, 0, 0, time.UTC)
	s.maybeSweep(context.Background())
	assert.Equal(t, 1, p.calls())

	// Next run moved to 14:00.
	s.maybeSweep(context.Background())
	assert.Equal(t, 1, p.calls())
}

func TestSweeper_StartStop(t *testing.T) {
	p := &mockPurger{}
	s, err := NewSweeper(p, "@every 1s", time.Hour, nil)
	require.NoError(t, err)
	s.tick = 10 * time.Millisecond

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	err = s.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	assert.Eventually(t, func() bool { return p.calls() > 0 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
