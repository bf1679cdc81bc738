package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rendis/flowbridge/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// server owns the live app and reacts to reload signals.
type server struct {
	cfg     Config
	level   *slog.LevelVar
	logger  *slog.Logger
	app     *app
	swapper *handlerSwapper
}

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(logging.NewCorrelationHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func runServe(ctx context.Context, cfg Config, stderr io.Writer) error {
	level := new(slog.LevelVar)
	level.Set(logging.ParseLevel(cfg.LogLevel))
	logger := newLogger(stderr, level)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	s := &server{cfg: cfg, level: level, logger: logger, app: a, swapper: newHandlerSwapper(a.handler)}
	defer func() { _ = s.app.Close() }()

	if err := s.app.sweeper.Start(ctx); err != nil {
		return err
	}

	if err := writePID(); err != nil {
		logger.Warn("pidfile not written", slog.String("error", err.Error()))
	} else {
		defer os.Remove(pidPath())
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.swapper,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("flowbridge listening", slog.String("addr", cfg.ListenAddr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			s.reload(ctx, loadConfig())
		case err, ok := <-errCh:
			_ = s.app.sweeper.Stop()
			if ok {
				return err
			}
			return nil
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err := srv.Shutdown(shutdownCtx)
			_ = s.app.sweeper.Stop()
			return err
		}
	}
}

// reload applies a re-read configuration. The log level changes in place;
// wiring changes rebuild the app and swap it behind the listener. The listen
// address needs a process restart.
func (s *server) reload(ctx context.Context, next Config) {
	d := diffConfigs(s.cfg, next)
	if d.LogLevelChanged {
		s.level.Set(logging.ParseLevel(next.LogLevel))
		s.logger.Info("log level changed", slog.String("level", next.LogLevel))
	}
	if slices.Contains(d.RestartNeeded, "listen_addr") {
		s.logger.Warn("listen_addr change requires a restart", slog.String("listen_addr", next.ListenAddr))
		next.ListenAddr = s.cfg.ListenAddr
		d = diffConfigs(s.cfg, next)
	}
	if len(d.RestartNeeded) == 0 {
		s.cfg = next
		return
	}

	// The old app must release its database before the new one opens it.
	old := s.app
	_ = old.sweeper.Stop()
	_ = old.Close()

	a, err := newApp(ctx, next, s.logger)
	if err != nil {
		s.logger.Error("reload failed, keeping previous handler", slog.String("error", err.Error()))
		if revived, rerr := newApp(ctx, s.cfg, s.logger); rerr == nil {
			s.install(ctx, revived)
		}
		return
	}
	s.install(ctx, a)
	s.cfg = next
	s.logger.Info("configuration reloaded", slog.Any("changed", d.RestartNeeded))
}

func (s *server) install(ctx context.Context, a *app) {
	s.app = a
	s.swapper.Swap(a.handler)
	if err := a.sweeper.Start(ctx); err != nil {
		s.logger.Warn("sweeper not started", slog.String("error", err.Error()))
	}
}

func writePID() error {
	if err := os.MkdirAll(flowbridgeDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// signalRunningServer sends SIGHUP to a running flowbridge server found via
// the pidfile. Reports whether a server was signaled.
func signalRunningServer(out io.Writer) bool {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return false
	}
	fmt.Fprintf(out, "Signaled running server (PID %d) to reload configuration\n", pid)
	return true
}
