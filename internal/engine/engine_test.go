package engine_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/thread-scout/internal/analytics"
	"github.com/DeafMist/thread-scout/internal/discovery"
	"github.com/DeafMist/thread-scout/internal/engine"
	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/research"
	"github.com/DeafMist/thread-scout/internal/resolver"
)

type listBackend struct {
	urls  []string
	calls int32
}

func (b *listBackend) Name() string { return "search_api" }

func (b *listBackend) Search(context.Context, string, int) ([]models.CandidateURL, error) {
	atomic.AddInt32(&b.calls, 1)
	out := make([]models.CandidateURL, 0, len(b.urls))
	for _, u := range b.urls {
		out = append(out, models.CandidateURL{URL: u, Backend: b.Name()})
	}
	return out, nil
}

type countingBackend struct{ calls int32 }

func (b *countingBackend) Name() string { return "headless_browser" }

func (b *countingBackend) Search(context.Context, string, int) ([]models.CandidateURL, error) {
	atomic.AddInt32(&b.calls, 1)
	return nil, nil
}

func threadServer(t *testing.T, failing string) *httptest.Server {
	t.Helper()
	created := time.Now().Add(-10 * 24 * time.Hour).Unix()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimSuffix(r.URL.Path, ".json"), "/")
		id := parts[len(parts)-1]
		if id == failing {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `[{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":%q,"title":"Trail shoes %s","selftext":"Merrell Moab for $120 is great","subreddit":"hiking","permalink":"/r/hiking/comments/%s/x/","score":50,"upvote_ratio":0.9,"num_comments":12,"created_utc":%d}}]}},
{"kind":"Listing","data":{"children":[{"kind":"t1","data":{"id":"c1","body":"Love my Salomon, excellent grip","score":25,"replies":""}}]}}]`, id, id, id, created)
	}))
}

type fakeSummarizer struct {
	calls  int32
	prompt string
	reply  string
	err    error
}

func (f *fakeSummarizer) Generate(_ context.Context, req llm.Request) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.prompt = req.Prompt
	return f.reply, f.err
}

func newTraditional(t *testing.T, backends []discovery.Backend, srv *httptest.Server, gen llm.Generator) *engine.Engine {
	t.Helper()
	opts := resolver.DefaultOptions()
	opts.BaseURL = srv.URL
	opts.Timeout = time.Second
	return engine.New(engine.Deps{
		Discovery: discovery.NewCascade(time.Second, logger.Discard(), backends...),
		Resolver:  resolver.New(srv.Client(), nil, opts, logger.Discard()),
		Analyzer:  analytics.New(analytics.DefaultPatterns()),
		Generator: gen,
		Links:     engine.NewEnhancer(nil, logger.Discard()),
	}, engine.Settings{DefaultModel: "gemini-2.5-flash", PromptBudget: 8000}, logger.Discard())
}

func TestTraditionalScenario(t *testing.T) {
	srv := threadServer(t, "bad002")
	defer srv.Close()

	first := &listBackend{urls: []string{
		"https://www.reddit.com/r/hiking/comments/ok0001/a/",
		"https://www.reddit.com/r/hiking/comments/bad002/b/",
		"https://www.reddit.com/r/hiking/comments/ok0003/c/",
		"https://www.reddit.com/r/hiking/comments/ok0004/d/",
	}}
	second := &countingBackend{}
	gen := &fakeSummarizer{reply: "**SUMMARY** Merrell wins.\n```json\n{\"reddit_links\": [], \"search_terms\": [\"Merrell Moab 3\"]}\n```"}

	ctx := logger.WithRequestID(context.Background(), "req-1")
	resp, err := newTraditional(t, []discovery.Backend{first, second}, srv, gen).
		Run(ctx, models.Query{Text: "best budget hiking shoes", MaxPosts: 3})
	require.NoError(t, err)

	require.Equal(t, models.SearchModeTraditional, resp.SearchMode)
	require.Len(t, resp.Sources, 3)
	require.Equal(t, 3, resp.Analysis.PostMetrics.TotalPosts)
	require.EqualValues(t, 1, atomic.LoadInt32(&gen.calls))
	require.Zero(t, atomic.LoadInt32(&second.calls))
	require.Equal(t, "req-1", resp.RequestID)
	require.Equal(t, "gemini-2.5-flash", resp.Model)

	for _, s := range resp.Sources {
		require.NotContains(t, s.URL, "bad002")
		require.Equal(t, 10, s.AgeDays)
	}

	require.Equal(t, []string{"Merrell Moab 3"}, resp.ExtractedSearchTerms)
	require.Len(t, resp.EnhancedLinks["Merrell Moab 3"], 3)

	require.Contains(t, gen.prompt, "=== DATA ANALYSIS ===")
	require.Contains(t, gen.prompt, "Total posts analyzed: 3")
	require.Contains(t, gen.prompt, "=== LINK ENHANCEMENT DATA ===")
	require.Contains(t, gen.prompt, "=== RAW CONTENT ===")
}

func TestTraditionalFallsBackToQueryTerms(t *testing.T) {
	srv := threadServer(t, "")
	defer srv.Close()

	backend := &listBackend{urls: []string{"https://www.reddit.com/r/hiking/comments/ok0001/a/"}}
	gen := &fakeSummarizer{reply: "no json here"}

	resp, err := newTraditional(t, []discovery.Backend{backend}, srv, gen).
		Run(context.Background(), models.Query{Text: "the best budget hiking shoes", MaxPosts: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"best", "budget", "hiking"}, resp.ExtractedSearchTerms)
}

func TestTraditionalErrors(t *testing.T) {
	srv := threadServer(t, "bad002")
	defer srv.Close()

	t.Run("discovery exhausted", func(t *testing.T) {
		gen := &fakeSummarizer{}
		_, err := newTraditional(t, []discovery.Backend{&countingBackend{}}, srv, gen).
			Run(context.Background(), models.Query{Text: "q", MaxPosts: 3})
		require.ErrorIs(t, err, discovery.ErrDiscoveryExhausted)
		require.Zero(t, atomic.LoadInt32(&gen.calls))
	})

	t.Run("nothing resolved", func(t *testing.T) {
		gen := &fakeSummarizer{}
		backend := &listBackend{urls: []string{"https://www.reddit.com/r/hiking/comments/bad002/"}}
		_, err := newTraditional(t, []discovery.Backend{backend}, srv, gen).
			Run(context.Background(), models.Query{Text: "q", MaxPosts: 3})
		require.ErrorIs(t, err, engine.ErrNoPostsResolved)
		require.Zero(t, atomic.LoadInt32(&gen.calls))
	})

	t.Run("rate limited", func(t *testing.T) {
		gen := &fakeSummarizer{err: &llm.RateLimitExceededError{Model: "m", Attempts: 3, Err: errors.New("429")}}
		backend := &listBackend{urls: []string{"https://www.reddit.com/r/hiking/comments/ok0001/"}}
		_, err := newTraditional(t, []discovery.Backend{backend}, srv, gen).
			Run(context.Background(), models.Query{Text: "q", MaxPosts: 3})
		var rle *llm.RateLimitExceededError
		require.ErrorAs(t, err, &rle)
	})

	t.Run("validation", func(t *testing.T) {
		gen := &fakeSummarizer{}
		e := newTraditional(t, nil, srv, gen)
		_, err := e.Run(context.Background(), models.Query{Text: "q", MaxPosts: 11})
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)

		_, err = e.Run(context.Background(), models.Query{Text: "q", Model: "gpt-unknown"})
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "model", verr.Field)
	})
}

func TestMultiAgentMode(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		if req.Model == "gemini-2.5-pro" {
			return "coordinated analysis", nil
		}
		return "https://www.reddit.com/r/hiking/comments/zz9911/x/", nil
	})
	agent := research.NewAgent(gen, "gemini-2.5-flash-lite", time.Second, logger.Discard())
	e := engine.New(engine.Deps{
		Orchestrator: research.NewOrchestrator(agent, 5, logger.Discard()),
		Coordinator:  research.NewCoordinator(gen, logger.Discard()),
	}, engine.Settings{AgentModel: "gemini-2.5-flash-lite", CoordinatorModel: "gemini-2.5-pro"}, logger.Discard())

	resp, err := e.Run(context.Background(), models.Query{Text: "q", UseWebSearch: true, AgentCount: 2})
	require.NoError(t, err)
	require.Equal(t, models.SearchModeMultiAgent, resp.SearchMode)
	require.Equal(t, "coordinated analysis", resp.Summary)
	require.Empty(t, resp.Sources)
	require.Equal(t, 2, resp.AgentSummary.TotalSearches)
	require.Equal(t, 2, resp.AgentSummary.TotalRedditPosts)
	require.Equal(t, []string{"https://www.reddit.com/r/hiking/comments/zz9911/"}, resp.RedditURLs)
	require.Equal(t, 1.0, resp.MultiAgent.SuccessRate)
}

func TestMultiAgentAllFailed(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "", &llm.ProviderError{Model: "m", Err: errors.New("boom")}
	})
	agent := research.NewAgent(gen, "m", time.Second, logger.Discard())
	e := engine.New(engine.Deps{
		Orchestrator: research.NewOrchestrator(agent, 5, logger.Discard()),
		Coordinator:  research.NewCoordinator(gen, logger.Discard()),
	}, engine.Settings{CoordinatorModel: "gemini-2.5-pro"}, logger.Discard())

	_, err := e.Run(context.Background(), models.Query{Text: "q", Mode: models.ModeMultiAgent, AgentCount: 3})
	var oe *research.OrchestrationError
	require.ErrorAs(t, err, &oe)
	require.Equal(t, 3, oe.Summary.FailedSearches)
}

func TestEstimate(t *testing.T) {
	e := engine.New(engine.Deps{}, engine.Settings{DefaultModel: "gemini-2.0-flash-lite", AgentModel: "gemini-2.5-flash-lite", CoordinatorModel: "gemini-2.5-pro"}, logger.Discard())

	est, err := e.Estimate(models.Query{Text: "q", MaxPosts: 3})
	require.NoError(t, err)
	require.Equal(t, models.SearchModeTraditional, est.SearchMode)
	require.Equal(t, 3*(300+5*50)+500, est.Tokens.Input)

	multi, err := e.Estimate(models.Query{Text: "q", UseWebSearch: true, AgentCount: 4})
	require.NoError(t, err)
	require.Equal(t, 4000+3000, multi.Tokens.Input)

	_, err = e.Estimate(models.Query{})
	require.Error(t, err)
}
