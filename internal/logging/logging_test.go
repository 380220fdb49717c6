package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestWithLoggerAndFromContext(t *testing.T) {
	logger, _ := newBufferLogger()
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestLogErrorIncludesErrorField(t *testing.T) {
	logger, buf := newBufferLogger()

	LogError(logger, "fetch failed", errors.New("connection refused"), slog.String("stop_id", "STIF:StopPoint:Q:473921:"))

	out := buf.String()
	assert.Contains(t, out, "fetch failed")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "stop_id")
}

func TestLogHTTPRequestFields(t *testing.T) {
	logger, buf := newBufferLogger()

	LogHTTPRequest(logger, "GET", "/api/departures", 200, 12.5)

	out := buf.String()
	assert.Contains(t, out, "http_request")
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "path=/api/departures")
	assert.Contains(t, out, "status=200")
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("already closed") }

func TestSafeCloseWithLoggingLogsFailure(t *testing.T) {
	logger, buf := newBufferLogger()

	SafeCloseWithLogging(failingCloser{}, logger, "response_body")

	require.Contains(t, buf.String(), "already closed")
	assert.Contains(t, buf.String(), "response_body")
}

func TestSafeCloseWithLoggingNilCloser(t *testing.T) {
	logger, buf := newBufferLogger()

	SafeCloseWithLogging(nil, logger, "nothing")

	assert.Empty(t, buf.String())
}

func TestNewLoggerVerboseEnablesDebug(t *testing.T) {
	logger := NewLogger(true)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = NewLogger(false)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
