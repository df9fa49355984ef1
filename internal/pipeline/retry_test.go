package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/internal/store"
)

var fastRetry = model.RetryConfig{
	MaxAttempts:       3,
	InitialDelay:      time.Millisecond,
	MaxDelay:          5 * time.Millisecond,
	BackoffMultiplier: 2,
}

func TestBackoff(t *testing.T) {
	cfg := withDefaults(model.RetryConfig{})
	require.Equal(t, DefaultRetryConfig, cfg)
	require.Equal(t, time.Second, backoff(cfg, 1))
	require.Equal(t, 2*time.Second, backoff(cfg, 2))
	require.Equal(t, 16*time.Second, backoff(cfg, 5))
	require.Equal(t, 30*time.Second, backoff(cfg, 10))
}

func TestWithRetry_RecoversFromTransientError(t *testing.T) {
	tempLedger(t)
	calls := 0
	err := withRetry(context.Background(), "run-1", "load:fact", fastRetry, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	errs, err := store.GetRunErrors("run-1")
	require.NoError(t, err)
	require.Len(t, errs, 2)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	tempLedger(t)
	calls := 0
	err := withRetry(context.Background(), "run-1", "load:fact", fastRetry, func(context.Context) error {
		calls++
		return fmt.Errorf("open: %w", os.ErrNotExist)
	})
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, 1, calls)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	tempLedger(t)
	calls := 0
	err := withRetry(context.Background(), "run-1", "load:survey", fastRetry, func(context.Context) error {
		calls++
		return errors.New("timeout")
	})
	require.EqualError(t, err, "timeout")
	require.Equal(t, fastRetry.MaxAttempts, calls)
}

func TestWithRetry_HonoursCancellation(t *testing.T) {
	tempLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	slow := fastRetry
	slow.InitialDelay = time.Hour
	slow.MaxDelay = time.Hour

	err := withRetry(ctx, "run-1", "load:fact", slow, func(context.Context) error {
		cancel()
		return errors.New("flaky")
	})
	require.ErrorIs(t, err, context.Canceled)
}
