package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/internal/metrics"
	"github.com/lugondev/solana-guardian/pkg/types"
)

// backoff returns base * 2^n capped at ceiling.
func backoff(base, ceiling time.Duration, n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 30 {
		return ceiling
	}
	d := base << uint(n)
	if d < 0 || d > ceiling {
		return ceiling
	}
	return d
}

// fetchWithRetry fetches a program state, retrying timeouts and rate limits
// with exponential backoff. Every attempt waits for the upstream limiter and
// runs under its own FetchTimeout.
func (s *Scheduler) fetchWithRetry(ctx context.Context, program types.WatchedProgram) (types.ProgramState, int, error) {
	var lastErr error

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff(s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay, attempt-1)
			_ = s.metrics.IncrementCounter(ctx, metrics.MetricFetchRetries, 1)
			s.logger.Debug("fetch failed, retrying",
				"program", program.Label,
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr,
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return types.ProgramState{}, attempt, gerrors.ErrContextCanceled.WithCause(ctx.Err())
			case <-timer.C:
			}
		}

		if err := ctx.Err(); err != nil {
			return types.ProgramState{}, attempt, gerrors.ErrContextCanceled.WithCause(err)
		}

		s.limiter.Take()

		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		start := time.Now()
		state, err := s.fetcher.FetchProgramState(attemptCtx, program.ID)
		cancel()
		_ = s.metrics.RecordHistogram(ctx, metrics.MetricFetchDuration, time.Since(start).Seconds())

		if err == nil {
			return state, attempt + 1, nil
		}

		lastErr = normalizeFetchError(ctx, program, err)
		if !gerrors.IsRetryable(lastErr) {
			return types.ProgramState{}, attempt + 1, lastErr
		}
	}

	return types.ProgramState{}, s.cfg.MaxAttempts, fmt.Errorf("gave up after %d attempts: %w", s.cfg.MaxAttempts, lastErr)
}

// normalizeFetchError makes sure every fetch error carries a code. A deadline
// that fired while the parent context is alive is the per-attempt timeout.
func normalizeFetchError(parent context.Context, program types.WatchedProgram, err error) error {
	if gerrors.Code(err) != "" {
		return err
	}
	switch {
	case parent.Err() != nil:
		return gerrors.ErrContextCanceled.WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return gerrors.RPCTimeout(program.Label, err)
	default:
		return gerrors.FetchFailed(program.Label, err)
	}
}
