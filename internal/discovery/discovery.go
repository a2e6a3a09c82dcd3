// Package discovery finds candidate thread URLs for a query by trying an
// ordered list of search backends until one yields results.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/reddit"
)

var (
	// ErrDiscoveryExhausted means every backend came back empty or failed.
	ErrDiscoveryExhausted = errors.New("no results")
	// ErrUnconfigured is returned by a backend that lacks credentials or was
	// disabled. The cascade skips it without a warning.
	ErrUnconfigured = errors.New("backend not configured")
	// ErrUnavailable is returned when a backend's runtime dependency is missing.
	ErrUnavailable = errors.New("backend unavailable")
)

// ThrottledError reports that a search service refused a request with
// HTTP 429.
type ThrottledError struct {
	Service string
	Status  int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s: throttled (status %d)", e.Service, e.Status)
}

// Backend is one search strategy.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]models.CandidateURL, error)
}

// Cascade runs backends in priority order. The first non-empty result wins;
// results are never merged across backends.
type Cascade struct {
	backends []Backend
	timeout  time.Duration
	log      *slog.Logger
}

// NewCascade builds a cascade over backends in the given order. Each backend
// call is bounded by timeout.
func NewCascade(timeout time.Duration, log *slog.Logger, backends ...Backend) *Cascade {
	return &Cascade{backends: backends, timeout: timeout, log: log}
}

// Backends returns the backend names in priority order.
func (c *Cascade) Backends() []string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.Name())
	}
	return names
}

// Discover returns at most wanted canonical, unique candidate URLs or
// ErrDiscoveryExhausted.
func (c *Cascade) Discover(ctx context.Context, query string, wanted int) ([]models.CandidateURL, error) {
	log := logger.From(ctx, c.log)

	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := c.search(ctx, b, query, wanted)
		switch {
		case errors.Is(err, ErrUnconfigured):
			log.Debug("discovery backend skipped", slog.String("backend", b.Name()))
			continue
		case err != nil:
			log.Warn("discovery backend failed", slog.String("backend", b.Name()), slog.String("error", err.Error()))
			continue
		}

		out := normalize(found, b.Name(), wanted)
		if len(out) == 0 {
			log.Info("discovery backend returned nothing", slog.String("backend", b.Name()))
			continue
		}
		log.Info("discovery succeeded", slog.String("backend", b.Name()), slog.Int("candidates", len(out)))
		return out, nil
	}

	log.Warn("discovery exhausted", slog.Int("backends", len(c.backends)))
	return nil, ErrDiscoveryExhausted
}

func (c *Cascade) search(ctx context.Context, b Backend, query string, wanted int) ([]models.CandidateURL, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return b.Search(ctx, query, wanted)
}

// normalize canonicalizes, deduplicates and caps a backend's output.
func normalize(in []models.CandidateURL, backend string, wanted int) []models.CandidateURL {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.CandidateURL, 0, len(in))
	for _, c := range in {
		if wanted > 0 && len(out) >= wanted {
			break
		}
		u, ok := reddit.CanonicalThreadURL(c.URL)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, models.CandidateURL{URL: u, Backend: backend})
	}
	return out
}

// candidates wraps raw URLs for a backend.
func candidates(urls []string, backend string) []models.CandidateURL {
	out := make([]models.CandidateURL, 0, len(urls))
	for _, u := range urls {
		out = append(out, models.CandidateURL{URL: u, Backend: backend})
	}
	return out
}
