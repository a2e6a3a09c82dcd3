package discovery

import (
	"context"
	"log/slog"

	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/reddit"
)

const perSubredditLimit = 3

// SubredditSearcher is the platform-native search capability.
type SubredditSearcher interface {
	SearchSubreddit(ctx context.Context, name, query string, limit int) ([]reddit.Post, error)
}

// Subreddits searches a fixed list of communities directly on the platform.
// It is the last resort of the cascade.
type Subreddits struct {
	searcher SubredditSearcher
	names    []string
	log      *slog.Logger
}

// NewSubreddits builds the platform-native backend. A nil searcher makes
// the backend unconfigured.
func NewSubreddits(searcher SubredditSearcher, names []string, log *slog.Logger) *Subreddits {
	return &Subreddits{searcher: searcher, names: names, log: log}
}

func (s *Subreddits) Name() string { return "platform_search" }

func (s *Subreddits) Search(ctx context.Context, query string, limit int) ([]models.CandidateURL, error) {
	if s.searcher == nil || len(s.names) == 0 {
		return nil, ErrUnconfigured
	}
	log := logger.From(ctx, s.log)

	var urls []string
	for _, name := range s.names {
		if len(urls) >= limit || ctx.Err() != nil {
			break
		}
		posts, err := s.searcher.SearchSubreddit(ctx, name, query, perSubredditLimit)
		if err != nil {
			log.Warn("subreddit search failed", slog.String("subreddit", name), slog.String("error", err.Error()))
			continue
		}
		for _, p := range posts {
			if len(urls) >= limit {
				break
			}
			urls = append(urls, p.ThreadURL())
		}
	}
	return candidates(urls, s.Name()), nil
}
