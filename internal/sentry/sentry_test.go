package sentry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursematch/coursematch-web/internal/ctxutil"
)

func TestInitialize_EmptyDSN(t *testing.T) {
	require.NoError(t, Initialize(Config{DSN: ""}))
	assert.False(t, IsEnabled())

	// Capturing while disabled must not panic.
	assert.NotPanics(t, func() {
		CaptureExceptionWithContext(context.Background(), errors.New("ignored"))
	})
}

func TestInitialize_InvalidDSN(t *testing.T) {
	assert.Error(t, Initialize(Config{DSN: "not a dsn"}))
}

func TestInitialize_ValidConfig(t *testing.T) {
	// Cannot use t.Parallel() as Sentry uses global state
	err := Initialize(Config{
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
		Release:     "dev",
	})
	require.NoError(t, err)
	assert.True(t, IsEnabled())

	ctx := ctxutil.WithRequestID(ctxutil.WithSessionID(context.Background(), "sess-1"), "req-1")
	assert.NotPanics(t, func() {
		CaptureExceptionWithContext(ctx, errors.New("boom"))
		CaptureExceptionWithContext(ctx, nil)
	})

	Flush(100 * time.Millisecond)
}
