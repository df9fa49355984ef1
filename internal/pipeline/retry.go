package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"go-reconcile-pipeline/internal/model"
	"go-reconcile-pipeline/internal/store"
)

// DefaultRetryConfig applies to source loading when a job sets no retry policy.
var DefaultRetryConfig = model.RetryConfig{
	MaxAttempts:       3,
	InitialDelay:      1 * time.Second,
	MaxDelay:          30 * time.Second,
	BackoffMultiplier: 2.0,
}

// withDefaults fills the zero fields of cfg from DefaultRetryConfig.
func withDefaults(cfg model.RetryConfig) model.RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = DefaultRetryConfig.BackoffMultiplier
	}
	return cfg
}

// backoff returns the wait before retry number attempt (1-based).
func backoff(cfg model.RetryConfig, attempt int) time.Duration {
	// Calculate delay with exponential backoff
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1)))

	// Cap at max delay
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	return delay
}

// isRetryableError reports whether err may succeed on a later attempt. Missing
// files, bad configuration and cancellation are permanent.
func isRetryableError(err error) bool {
	var permanent *permanentError
	switch {
	case errors.As(err, &permanent):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return false
	}
	return true
}

// permanentError marks an error that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// withRetry runs op until it succeeds, returns a permanent error, the attempts
// run out or ctx ends. Every failed attempt is recorded against the run.
func withRetry(ctx context.Context, runID, operation string, cfg model.RetryConfig, op func(context.Context) error) error {
	cfg = withDefaults(cfg)
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			if attempt > 1 {
				log.WithFields(log.Fields{"run_id": runID, "operation": operation}).
					Infof("✅ Retry successful after %d attempts", attempt)
			}
			return nil
		}
		if !isRetryableError(err) || attempt == cfg.MaxAttempts {
			break
		}

		delay := backoff(cfg, attempt)
		log.WithFields(log.Fields{"run_id": runID, "operation": operation, "attempt": attempt}).
			Warnf("🔄 %v; retrying in %v", err, delay)
		ledgerWarn(runID, "save run error", store.SaveRunError(runID, operation, fmt.Errorf("attempt %d: %w", attempt, err)))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", operation, ctx.Err(), err)
		case <-timer.C:
		}
	}
	return err
}

// RetryRun re-executes a stored run under its original id.
func RetryRun(runID string, spec model.ReconcileJobSpec) error {
	log.WithField("run_id", runID).Info("🔄 Retrying run")
	ledgerWarn(runID, "update run status", store.UpdateRunStatus(runID, model.StatusRetrying))

	ctx, cancel := context.WithTimeout(context.Background(), 2*jobTimeout(spec))
	defer cancel()

	_, err := Run(ctx, runID, spec)
	return err
}
