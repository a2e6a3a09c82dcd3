package llm_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(s *recordingSleeper) llm.Policy {
	return llm.Policy{
		MaxAttempts: 3,
		Sleep:       s.sleep,
		Jitter:      func() float64 { return 0.5 },
		Logger:      logger.Discard(),
	}
}

func TestCallWithRetryRecoversFromRateLimit(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	out, err := llm.CallWithRetry(context.Background(), testPolicy(s), "m", func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("429 Too Many Requests")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{1500 * time.Millisecond, 2500 * time.Millisecond}, s.waits)
}

func TestCallWithRetryNonRateLimitIsImmediate(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	_, err := llm.CallWithRetry(context.Background(), testPolicy(s), "m", func(context.Context) (string, error) {
		calls++
		return "", errors.New("invalid api key")
	})

	var perr *llm.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, 1, calls)
	require.Empty(t, s.waits)
}

func TestCallWithRetryExhausted(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	_, err := llm.CallWithRetry(context.Background(), testPolicy(s), "m", func(context.Context) (int, error) {
		calls++
		return 0, &llm.RateLimitError{Provider: "fake", Err: errors.New("slow down")}
	})

	var rerr *llm.RateLimitExceededError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, 3, rerr.Attempts)
	require.Equal(t, 3, calls)
	require.Len(t, s.waits, 2)
}

func TestCallWithRetryStopsWhenSleepCanceled(t *testing.T) {
	p := llm.Policy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return context.Canceled },
		Jitter:      func() float64 { return 0 },
	}
	_, err := llm.CallWithRetry(context.Background(), p, "m", func(context.Context) (string, error) {
		return "", errors.New("quota exceeded")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRateLimit(t *testing.T) {
	require.True(t, llm.IsRateLimit(errors.New("Rate limit reached")))
	require.True(t, llm.IsRateLimit(errors.New("Error 429, Message: ..., Status: RESOURCE_EXHAUSTED")))
	require.True(t, llm.IsRateLimit(fmt.Errorf("wrapped: %w", &llm.RateLimitError{Provider: "x", Err: errors.New("y")})))
	require.False(t, llm.IsRateLimit(errors.New("permission denied")))
	require.False(t, llm.IsRateLimit(nil))
}

func TestBackoff(t *testing.T) {
	require.Equal(t, time.Second, llm.Backoff(0, 0))
	require.Equal(t, 4*time.Second+250*time.Millisecond, llm.Backoff(2, 0.25))
}

func TestRetryingWrapsGenerator(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	inner := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		calls++
		require.Equal(t, "gemini-2.5-flash", req.Model)
		if calls == 1 {
			return "", errors.New("quota")
		}
		return "summary", nil
	})

	gen := llm.NewRetrying(inner, testPolicy(s))
	out, err := gen.Generate(context.Background(), llm.Request{Model: "gemini-2.5-flash", Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "summary", out)
	require.Len(t, s.waits, 1)
}

func TestCallWithRetryTimesOutEachAttempt(t *testing.T) {
	s := &recordingSleeper{}
	p := testPolicy(s)
	p.AttemptTimeout = 20 * time.Millisecond

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	_, err := llm.CallWithRetry(parent, p, "m", func(ctx context.Context) (string, error) {
		calls++
		_, ok := ctx.Deadline()
		require.True(t, ok)
		if calls == 1 {
			return "", errors.New("429 Too Many Requests")
		}
		<-ctx.Done()
		return "", ctx.Err()
	})

	require.Equal(t, 2, calls)
	require.Len(t, s.waits, 1)
	var perr *llm.ProviderError
	require.True(t, errors.As(err, &perr))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, parent.Err())
}

func TestCallWithRetryDeadlineDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	p := llm.Policy{MaxAttempts: 3, Jitter: func() float64 { return 0 }}

	_, err := llm.CallWithRetry(ctx, p, "m", func(context.Context) (string, error) {
		return "", errors.New("resource_exhausted")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
