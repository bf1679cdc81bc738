package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", FlowID(ctx))
	assert.Equal(t, "", ExecutionID(ctx))
	assert.Equal(t, "", RequestID(ctx))

	ctx = WithFlowID(ctx, "checkout")
	ctx = WithExecutionID(ctx, "exec-1")
	ctx = WithRequestID(ctx, "req-9")

	assert.Equal(t, "checkout", FlowID(ctx))
	assert.Equal(t, "exec-1", ExecutionID(ctx))
	assert.Equal(t, "req-9", RequestID(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithFlowID(context.Background(), "checkout")
	ctx = WithExecutionID(ctx, "exec-1")

	LogWith(ctx, logger).Info("paused")

	out := buf.String()
	assert.Contains(t, out, "flow_id=checkout")
	assert.Contains(t, out, "execution_id=exec-1")
	assert.NotContains(t, out, "request_id")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithRequestID(context.Background(), "req-1")
	logger.InfoContext(ctx, "handled", slog.Int("status", 200))

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "status=200")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
