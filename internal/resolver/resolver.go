// Package resolver turns candidate thread URLs into normalized posts.
//
// The unauthenticated JSON rendition of a thread is tried first; the
// authenticated platform client is the fallback. Both paths feed one
// ResolvedPost shape through their own adapter.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/processing"
	"github.com/DeafMist/thread-scout/internal/reddit"
)

// ErrResolutionFailed marks a URL whose content could not be fetched by any
// path. Callers skip such URLs.
var ErrResolutionFailed = errors.New("resolution failed")

const (
	OriginJSON     = "json"
	OriginPlatform = "platform"

	neutralRatio = 0.5
)

// SubmissionFetcher is the authenticated platform path.
type SubmissionFetcher interface {
	GetSubmission(ctx context.Context, id string) (*reddit.Submission, error)
}

// Options bounds what a resolved post may carry.
type Options struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	BodyBudget    int
	CommentBudget int
	MaxComments   int
}

// DefaultOptions mirrors the production content budgets.
func DefaultOptions() Options {
	return Options{
		BaseURL:       reddit.WebBase,
		UserAgent:     "RedditSearchTool/1.0",
		Timeout:       10 * time.Second,
		BodyBudget:    1000,
		CommentBudget: 200,
		MaxComments:   5,
	}
}

// Resolver fetches thread content. It holds no per-request state.
type Resolver struct {
	http     *http.Client
	fallback SubmissionFetcher
	opts     Options
	log      *slog.Logger
}

// New builds a Resolver. fallback may be nil when no platform credentials
// are configured.
func New(httpClient *http.Client, fallback SubmissionFetcher, opts Options, log *slog.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = reddit.WebBase
	}
	return &Resolver{http: httpClient, fallback: fallback, opts: opts, log: log}
}

// Resolve returns the post behind rawURL or an error wrapping
// ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*models.ResolvedPost, error) {
	sub, id, ok := reddit.ParseThread(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: no thread id in %q", ErrResolutionFailed, rawURL)
	}
	log := logger.From(ctx, r.log)

	post, jsonErr := r.fromJSON(ctx, sub, id)
	if jsonErr == nil {
		return post, nil
	}
	log.Debug("json path failed", slog.String("thread", id), slog.String("error", jsonErr.Error()))

	if r.fallback == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolutionFailed, rawURL, jsonErr)
	}

	fctx, cancel := r.withTimeout(ctx)
	defer cancel()
	s, platformErr := r.fallback.GetSubmission(fctx, id)
	if platformErr != nil {
		return nil, fmt.Errorf("%w: %s: json: %v; platform: %v", ErrResolutionFailed, rawURL, jsonErr, platformErr)
	}
	p := postFromSubmission(s, r.opts)
	return &p, nil
}

// ResolveAll resolves candidates in order until limit posts were obtained.
// Failed URLs are logged and skipped.
func (r *Resolver) ResolveAll(ctx context.Context, candidates []models.CandidateURL, limit int) []models.ResolvedPost {
	log := logger.From(ctx, r.log)
	out := make([]models.ResolvedPost, 0, limit)
	for _, c := range candidates {
		if len(out) >= limit || ctx.Err() != nil {
			break
		}
		post, err := r.Resolve(ctx, c.URL)
		if err != nil {
			log.Warn("skipping unresolvable thread", slog.String("url", c.URL), slog.String("error", err.Error()))
			continue
		}
		out = append(out, *post)
	}
	log.Info("threads resolved", slog.Int("requested", len(candidates)), slog.Int("resolved", len(out)))
	return out
}

func (r *Resolver) fromJSON(ctx context.Context, sub, id string) (*models.ResolvedPost, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := url.Values{}
	q.Set("sort", "top")
	q.Set("raw_json", "1")
	endpoint := r.opts.BaseURL + "/r/" + url.PathEscape(sub) + "/comments/" + url.PathEscape(id) + ".json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	listings, err := reddit.DecodeListings(body)
	if err != nil {
		return nil, err
	}
	post, err := postFromListing(listings, r.opts)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

// postFromListing adapts the raw [post, comments] payload. Only top-level
// comments are considered on this path.
func postFromListing(listings []reddit.Listing, opts Options) (models.ResolvedPost, error) {
	posts, err := listings[0].Posts()
	if err != nil {
		return models.ResolvedPost{}, err
	}
	if len(posts) == 0 {
		return models.ResolvedPost{}, errors.New("thread listing has no post")
	}

	var comments []reddit.CommentData
	if len(listings) > 1 {
		tree, err := listings[1].CommentTree()
		if err != nil {
			return models.ResolvedPost{}, err
		}
		for _, n := range tree {
			if !n.More {
				comments = append(comments, n.Comment)
			}
		}
	}
	return build(posts[0], comments, OriginJSON, opts), nil
}

// postFromSubmission adapts the platform client's object, flattening the
// whole comment tree.
func postFromSubmission(s *reddit.Submission, opts Options) models.ResolvedPost {
	return build(s.Post, s.FlattenComments(), OriginPlatform, opts)
}

func build(p reddit.Post, comments []reddit.CommentData, origin string, opts Options) models.ResolvedPost {
	score := 0
	if p.Score != nil && *p.Score > 0 {
		score = *p.Score
	}
	ratio := neutralRatio
	if p.UpvoteRatio != nil {
		ratio = *p.UpvoteRatio
	}

	kept := make([]reddit.CommentData, 0, len(comments))
	for _, c := range comments {
		body := strings.TrimSpace(c.Body)
		if body == "" || body == "[deleted]" || body == "[removed]" {
			continue
		}
		kept = append(kept, c)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if opts.MaxComments >= 0 && len(kept) > opts.MaxComments {
		kept = kept[:opts.MaxComments]
	}

	out := models.ResolvedPost{
		ID:          p.ID,
		Title:       p.Title,
		Body:        processing.Truncate(p.Selftext, opts.BodyBudget),
		URL:         p.ThreadURL(),
		Subreddit:   p.Subreddit,
		Author:      p.Author,
		Score:       score,
		NumComments: p.NumComments,
		UpvoteRatio: ratio,
		CreatedAt:   p.Created(),
		Comments:    make([]models.Comment, 0, len(kept)),
		Origin:      origin,
	}
	for _, c := range kept {
		out.Comments = append(out.Comments, models.Comment{
			ID:        c.ID,
			Author:    c.Author,
			Body:      processing.Truncate(c.Body, opts.CommentBudget),
			Score:     c.Score,
			CreatedAt: c.Created(),
		})
	}
	return out
}
