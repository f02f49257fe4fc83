package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dubflow/internal/logging"
	"dubflow/internal/services"
)

// Method is one interchangeable strategy for a logical operation.
type Method[T any] struct {
	// ID identifies the method in attempt logs and errors.
	ID string
	// Available gates the attempt; when it returns false the method is
	// skipped with the given reason and does not count as an attempt.
	Available func() (bool, string)
	// Invoke performs the operation. Implementations must clean up partial
	// side effects before returning an error so a failed attempt never
	// leaves a valid-looking artifact behind.
	Invoke func(ctx context.Context) (T, error)
}

// Attempt records one invoked method and its outcome.
type Attempt struct {
	Method   string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the attempt produced the artifact.
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// Result carries the winning artifact together with the full attempt log,
// including the failures that preceded success.
type Result[T any] struct {
	Value    T
	Winner   string
	Attempts []Attempt
	Skipped  []string
}

// ExhaustedError reports that every available method failed. It carries the
// per-method attempt log so callers can inspect why each method failed.
type ExhaustedError struct {
	Op       string
	Attempts []Attempt
	Skipped  []string
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: all %d methods failed", e.Op, len(e.Attempts))
	for _, attempt := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", attempt.Method, attempt.Err)
	}
	return b.String()
}

func (e *ExhaustedError) Unwrap() error {
	return services.ErrProvider
}

// Options configures a chain run.
type Options struct {
	// Op names the logical operation for logs and errors.
	Op string
	// AttemptTimeout bounds each method individually so one slow method
	// cannot block the whole chain. Zero means no per-attempt bound beyond
	// the caller's context.
	AttemptTimeout time.Duration
	Logger         *slog.Logger
}

// Run attempts methods strictly in order until one succeeds. Methods whose
// Available predicate returns false are skipped without counting as attempts.
// An empty method list is a configuration error. Attempts are never raced in
// parallel; each may bill or consume quota, so predictable cost wins over
// latency.
func Run[T any](ctx context.Context, methods []Method[T], opts Options) (Result[T], error) {
	var zero Result[T]
	op := opts.Op
	if op == "" {
		op = "fallback chain"
	}
	logger := logging.WithContext(ctx, opts.Logger)

	if len(methods) == 0 {
		return zero, services.Wrap(services.ErrConfiguration, "", op, "no methods configured", nil)
	}

	result := Result[T]{}
	for _, method := range methods {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if method.Available != nil {
			if ok, reason := method.Available(); !ok {
				result.Skipped = append(result.Skipped, method.ID)
				logger.Debug("method skipped",
					logging.String(logging.FieldMethod, method.ID),
					logging.String("reason", reason))
				continue
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if opts.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.AttemptTimeout)
		}
		start := time.Now()
		value, err := method.Invoke(attemptCtx)
		cancel()
		elapsed := time.Since(start)

		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = services.Wrap(services.ErrTimeout, "", op, fmt.Sprintf("method %s timed out after %s", method.ID, elapsed.Round(time.Millisecond)), err)
		}

		result.Attempts = append(result.Attempts, Attempt{Method: method.ID, Err: err, Duration: elapsed})
		if err == nil {
			result.Value = value
			result.Winner = method.ID
			logger.Info("method succeeded",
				logging.String(logging.FieldMethod, method.ID),
				logging.Int("attempts", len(result.Attempts)),
				logging.Duration("duration", elapsed))
			return result, nil
		}

		logger.Warn("method failed",
			logging.String(logging.FieldMethod, method.ID),
			logging.Duration("duration", elapsed),
			logging.Error(err))

		// The caller's own deadline ends the chain; remaining methods would
		// only inherit an expired context.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
	}

	return zero, &ExhaustedError{Op: op, Attempts: result.Attempts, Skipped: result.Skipped}
}
