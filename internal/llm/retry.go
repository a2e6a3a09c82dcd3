package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/DeafMist/thread-scout/internal/logger"
)

// DefaultMaxAttempts is the attempt budget for every provider call.
const DefaultMaxAttempts = 3

// Policy configures CallWithRetry. Sleep and Jitter are injectable so tests
// can run without real delays. AttemptTimeout bounds each call to fn; the
// backoff sleeps are not counted against it.
type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Sleep          func(ctx context.Context, d time.Duration) error
	Jitter         func() float64
	Logger         *slog.Logger
}

// DefaultPolicy sleeps for real and draws jitter from U(0,1).
func DefaultPolicy(log *slog.Logger) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Sleep:       sleepContext,
		Jitter:      rand.Float64,
		Logger:      log,
	}
}

// Backoff returns the wait before retrying after the given 0-based attempt:
// 2^attempt seconds plus jitter seconds.
func Backoff(attempt int, jitter float64) time.Duration {
	secs := math.Pow(2, float64(attempt)) + jitter
	return time.Duration(secs * float64(time.Second))
}

// CallWithRetry runs fn until it succeeds, fails with a non-throttling error,
// or exhausts the attempt budget. Throttling failures are retried with
// exponential backoff; anything else is returned at once as *ProviderError.
func CallWithRetry[T any](ctx context.Context, p Policy, model string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	log := logger.From(ctx, p.Logger)

	var lastErr error
	for i := 0; i < attempts; i++ {
		out, err := callOnce(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsRateLimit(err) {
			var pe *ProviderError
			if errors.As(err, &pe) {
				return zero, err
			}
			return zero, &ProviderError{Model: model, Err: err}
		}
		if i == attempts-1 {
			break
		}

		wait := Backoff(i, jitter())
		log.Warn("provider rate limited, backing off",
			slog.String("model", model),
			slog.Int("attempt", i+1),
			slog.Duration("wait", wait))
		if err := sleep(ctx, wait); err != nil {
			return zero, &ProviderError{Model: model, Err: err}
		}
	}

	return zero, &RateLimitExceededError{Model: model, Attempts: attempts, Err: lastErr}
}

func callOnce[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// Retrying wraps a Generator so that every call goes through CallWithRetry.
type Retrying struct {
	next   Generator
	policy Policy
}

// NewRetrying decorates gen with the retry policy.
func NewRetrying(gen Generator, policy Policy) *Retrying {
	return &Retrying{next: gen, policy: policy}
}

func (r *Retrying) Generate(ctx context.Context, req Request) (string, error) {
	return CallWithRetry(ctx, r.policy, req.Model, func(ctx context.Context) (string, error) {
		return r.next.Generate(ctx, req)
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
