package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowbridge/internal/logging"
)

// Purger removes paused executions idle since before cutoff.
// Satisfied by every engine.ExecutionRepository (avoids import cycle).
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// DefaultTick is how often the loop checks whether a sweep is due.
const DefaultTick = 30 * time.Second

// Sweeper purges abandoned flow executions on a cron schedule.
type Sweeper struct {
	purger   Purger
	schedule cron.Schedule
	ttl      time.Duration
	tick     time.Duration
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	sweepMu sync.Mutex
	nextRun time.Time
}

// NewSweeper parses spec (standard 5-field cron or a descriptor such as
// "@every 5m") and creates a Sweeper purging executions idle longer than ttl.
func NewSweeper(p Purger, spec string, ttl time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("sweeper ttl must be positive, got %s", ttl)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sweeper{
		purger:   p,
		schedule: schedule,
		ttl:      ttl,
		tick:     DefaultTick,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// NextRun computes the next sweep after from.
func (s *Sweeper) NextRun(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Start launches the background loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.sweepMu.Lock()
	s.nextRun = s.schedule.Next(s.now())
	s.sweepMu.Unlock()

	go s.loop(loopCtx)
	s.logger.Info("sweeper started", slog.Duration("ttl", s.ttl))
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maybeSweep(ctx)
		}
	}
}

// maybeSweep sweeps when the scheduled time has passed.
func (s *Sweeper) maybeSweep(ctx context.Context) {
	s.sweepMu.Lock()
	now := s.now()
	due := !s.nextRun.After(now)
	if due {
		s.nextRun = s.schedule.Next(now)
	}
	s.sweepMu.Unlock()

	if !due {
		return
	}
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("sweep failed", slog.String("error", err.Error()))
	}
}

// Sweep purges executions idle longer than the ttl and returns how many went.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge executions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		s.logger.Info("purged idle executions", slog.Int("count", n))
	}
	return n, nil
}

// Stop gracefully shuts down the sweeper.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("sweeper stopped")
	return nil
}
