package llm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no provider credentials are available.
var ErrNotConfigured = errors.New("llm: provider not configured")

// RateLimitError is a provider throttling signal.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ProviderError is any non-throttling provider failure surfaced after the
// retry layer.
type ProviderError struct {
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (model %s): %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimitExceededError is returned when every attempt was throttled.
type RateLimitExceededError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts (model %s): %v", e.Attempts, e.Model, e.Err)
}

func (e *RateLimitExceededError) Unwrap() error { return e.Err }

var rateLimitMarkers = []string{"rate limit", "ratelimit", "quota", "429", "resource_exhausted", "too many requests"}

// IsRateLimit reports whether err signals provider throttling.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
