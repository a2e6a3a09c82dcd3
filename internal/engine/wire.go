package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DeafMist/thread-scout/internal/analytics"
	"github.com/DeafMist/thread-scout/internal/config"
	"github.com/DeafMist/thread-scout/internal/discovery"
	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/reddit"
	"github.com/DeafMist/thread-scout/internal/research"
	"github.com/DeafMist/thread-scout/internal/resolver"
)

// Status describes which collaborators are configured.
type Status struct {
	ProviderConfigured  bool     `json:"provider_configured"`
	SearchAPIConfigured bool     `json:"search_api_configured"`
	PlatformConfigured  bool     `json:"platform_configured"`
	Backends            []string `json:"discovery_backends"`
	DefaultModel        string   `json:"default_model"`
	Models              []string `json:"models"`
}

// Status reports the engine's wiring. It is zero for engines built with New.
func (e *Engine) Status() Status {
	return e.status
}

// FromConfig wires a production engine. A missing provider key is not an
// error: cost estimates still work and generation calls fail with
// llm.ErrNotConfigured.
func FromConfig(ctx context.Context, cfg *config.Engine, log *slog.Logger) (*Engine, error) {
	var gen llm.Generator
	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Warn("generation provider not configured")
		gen = llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			return "", llm.ErrNotConfigured
		})
	case err != nil:
		return nil, err
	default:
		gen = gemini
	}
	policy := llm.DefaultPolicy(log)
	policy.MaxAttempts = cfg.MaxAttempts
	policy.AttemptTimeout = cfg.ProviderTimeout
	provider := llm.NewRetrying(gen, policy)

	patterns, err := analytics.LoadPatterns(cfg.PatternsFile)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.BackendTimeout}

	// Interfaces stay nil, not typed-nil, when credentials are absent.
	var (
		searcher discovery.SubredditSearcher
		fetcher  resolver.SubmissionFetcher
	)
	if cfg.RedditConfigured() {
		rc := reddit.NewClient(cfg.RedditClientID, cfg.RedditClientSecret, cfg.UserAgent, cfg.FetchTimeout)
		searcher, fetcher = rc, rc
	}

	cs := discovery.NewCustomSearch(httpClient, cfg.SearchAPIKey, cfg.SearchEngineID)
	cascade := discovery.NewCascade(cfg.BackendTimeout, log,
		discovery.NewSearchAPI(cs),
		discovery.NewBrowser(cfg.BrowserEnabled, cfg.BrowserControlURL),
		discovery.NewScrape(httpClient, ""),
		discovery.NewDuckDuckGo(httpClient, ""),
		discovery.NewSubreddits(searcher, cfg.FallbackSubreddits, log),
	)

	opts := resolver.DefaultOptions()
	opts.UserAgent = cfg.UserAgent
	opts.Timeout = cfg.FetchTimeout
	opts.BodyBudget = cfg.BodyBudget
	opts.CommentBudget = cfg.CommentBudget
	opts.MaxComments = cfg.MaxComments

	agent := research.NewAgent(provider, cfg.AgentModel, cfg.AgentTimeout, log)

	e := New(Deps{
		Discovery:    cascade,
		Resolver:     resolver.New(&http.Client{Timeout: cfg.FetchTimeout}, fetcher, opts, log),
		Analyzer:     analytics.New(patterns),
		Generator:    provider,
		Orchestrator: research.NewOrchestrator(agent, cfg.MaxParallelAgents, log),
		Coordinator:  research.NewCoordinator(provider, log),
		Links:        NewEnhancer(cs, log),
	}, Settings{
		DefaultModel:     cfg.DefaultModel,
		AgentModel:       cfg.AgentModel,
		CoordinatorModel: cfg.CoordinatorModel,
		PromptBudget:     cfg.PromptBudget,
	}, log)

	e.status = Status{
		ProviderConfigured:  gemini != nil,
		SearchAPIConfigured: cs.Configured(),
		PlatformConfigured:  cfg.RedditConfigured(),
		Backends:            cascade.Backends(),
		DefaultModel:        cfg.DefaultModel,
		Models:              llm.Models(),
	}
	return e, nil
}
