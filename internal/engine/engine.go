// Package engine answers a research query in either of the two modes:
// traditional discovery-resolve-analyze-summarize, or multi-agent web
// research followed by coordinator synthesis.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/thread-scout/internal/analytics"
	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/processing"
)

const summaryMaxTokens = 1500

// ErrNoPostsResolved means discovery found threads but none could be read.
var ErrNoPostsResolved = errors.New("could not retrieve posts from the discovered urls")

// Discoverer finds candidate thread URLs.
type Discoverer interface {
	Discover(ctx context.Context, query string, wanted int) ([]models.CandidateURL, error)
}

// PostResolver turns candidates into posts, skipping failures.
type PostResolver interface {
	ResolveAll(ctx context.Context, candidates []models.CandidateURL, limit int) []models.ResolvedPost
}

// Orchestrator runs research agents.
type Orchestrator interface {
	Orchestrate(ctx context.Context, query string, agentCount int) models.OrchestratorResult
}

// Synthesizer merges agent findings.
type Synthesizer interface {
	Synthesize(ctx context.Context, res models.OrchestratorResult, query, model string) (models.SynthesisResult, error)
}

// Deps are the collaborators of an Engine. Links may be nil.
type Deps struct {
	Discovery    Discoverer
	Resolver     PostResolver
	Analyzer     *analytics.Analyzer
	Generator    llm.Generator
	Orchestrator Orchestrator
	Coordinator  Synthesizer
	Links        *Enhancer
}

// Settings are the model defaults and budgets of an Engine.
type Settings struct {
	DefaultModel     string
	AgentModel       string
	CoordinatorModel string
	PromptBudget     int
}

// Engine is safe for concurrent use.
type Engine struct {
	deps     Deps
	settings Settings
	log      *slog.Logger
	now      func() time.Time
	status   Status
}

func New(deps Deps, settings Settings, log *slog.Logger) *Engine {
	return &Engine{deps: deps, settings: settings, log: log, now: time.Now}
}

// Run normalizes and validates q, then dispatches on its mode.
func (e *Engine) Run(ctx context.Context, q models.Query) (*models.SearchResponse, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Model != "" && !llm.KnownModel(q.Model) {
		return nil, &models.ValidationError{Field: "model", Reason: fmt.Sprintf("must be one of %v", llm.Models())}
	}
	if q.CoordinatorModel != "" && !llm.KnownModel(q.CoordinatorModel) {
		return nil, &models.ValidationError{Field: "coordinator_model", Reason: fmt.Sprintf("must be one of %v", llm.Models())}
	}

	if q.Mode == models.ModeMultiAgent {
		return e.MultiAgent(ctx, q)
	}
	return e.Traditional(ctx, q)
}

// Traditional discovers and resolves threads, analyzes them, and asks the
// provider for one summary.
func (e *Engine) Traditional(ctx context.Context, q models.Query) (*models.SearchResponse, error) {
	started := e.now()
	model := firstNonEmpty(q.Model, e.settings.DefaultModel)
	log := logger.From(ctx, e.log).With(slog.String("mode", models.SearchModeTraditional), slog.String("model", model))
	log.Info("search started", slog.String("query", q.Text), slog.Int("max_posts", q.MaxPosts))

	candidates, err := e.deps.Discovery.Discover(ctx, q.Text, q.MaxPosts*2)
	if err != nil {
		log.Warn("discovery failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("discover threads: %w", err)
	}

	posts := e.deps.Resolver.ResolveAll(ctx, candidates, q.MaxPosts)
	if len(posts) == 0 {
		log.Warn("no thread could be resolved", slog.Int("candidates", len(candidates)))
		return nil, ErrNoPostsResolved
	}

	report := e.deps.Analyzer.Analyze(posts, q.Text)
	prompt := SummaryPrompt(q.Text, report, RawContent(posts, e.settings.PromptBudget))

	summary, err := e.generate(ctx, llm.Request{Model: model, Prompt: prompt, MaxTokens: summaryMaxTokens})
	if err != nil {
		log.Error("summarizer failed", slog.String("error", err.Error()))
		return nil, err
	}

	terms := ExtractLinkData(summary).SearchTerms
	if len(terms) == 0 {
		terms = processing.QueryTerms(q.Text, 3)
	}
	if len(terms) > maxLinkTerms {
		terms = terms[:maxLinkTerms]
	}
	var links map[string][]models.Link
	if e.deps.Links != nil {
		links = e.deps.Links.Enhance(ctx, terms)
	}

	now := e.now()
	sources := make([]models.Source, 0, len(posts))
	for _, p := range posts {
		sources = append(sources, models.Source{
			Title:       p.Title,
			URL:         p.URL,
			Upvotes:     p.Score,
			Subreddit:   p.Subreddit,
			NumComments: p.NumComments,
			UpvoteRatio: p.UpvoteRatio,
			AgeDays:     p.AgeDays(now),
		})
	}

	resp := &models.SearchResponse{
		RequestID:            logger.RequestID(ctx),
		Query:                q.Text,
		Summary:              summary,
		Sources:              sources,
		Analysis:             &report,
		SearchMode:           models.SearchModeTraditional,
		Model:                model,
		ExtractedSearchTerms: terms,
		EnhancedLinks:        links,
		ExecutionTime:        now.Sub(started).Seconds(),
	}
	log.Info("search finished", slog.Int("sources", len(sources)), slog.Float64("seconds", resp.ExecutionTime))
	return resp, nil
}

// MultiAgent runs the research agents and the coordinator. An all-failed run
// surfaces the coordinator's *research.OrchestrationError.
func (e *Engine) MultiAgent(ctx context.Context, q models.Query) (*models.SearchResponse, error) {
	started := e.now()
	coordinator := firstNonEmpty(q.CoordinatorModel, e.settings.CoordinatorModel)
	log := logger.From(ctx, e.log).With(slog.String("mode", models.SearchModeMultiAgent), slog.String("model", coordinator))
	log.Info("search started", slog.String("query", q.Text), slog.Int("agents", q.AgentCount))

	res := e.deps.Orchestrator.Orchestrate(ctx, q.Text, q.AgentCount)
	synth, err := e.deps.Coordinator.Synthesize(ctx, res, q.Text, coordinator)
	if err != nil {
		log.Warn("coordination failed", slog.String("error", err.Error()))
		return nil, err
	}

	summary := synth.Summary
	resp := &models.SearchResponse{
		RequestID:    logger.RequestID(ctx),
		Query:        q.Text,
		Summary:      synth.Analysis,
		Sources:      []models.Source{},
		SearchMode:   models.SearchModeMultiAgent,
		Model:        coordinator,
		AgentSummary: &summary,
		MultiAgent: &models.MultiAgentInfo{
			AgentCount:       q.AgentCount,
			AgentModel:       e.settings.AgentModel,
			CoordinatorModel: coordinator,
			SuccessRate:      res.SuccessRate,
		},
		RedditURLs:    synth.URLs,
		ExecutionTime: e.now().Sub(started).Seconds(),
	}
	log.Info("search finished", slog.Int("urls", len(synth.URLs)), slog.Float64("seconds", resp.ExecutionTime))
	return resp, nil
}

// Estimate prices a query without running it.
func (e *Engine) Estimate(q models.Query) (llm.Estimate, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return llm.Estimate{}, err
	}
	return llm.EstimateCost(llm.EstimateInput{
		MultiAgent:       q.Mode == models.ModeMultiAgent,
		MaxPosts:         q.MaxPosts,
		AgentCount:       q.AgentCount,
		Model:            firstNonEmpty(q.Model, e.settings.DefaultModel),
		AgentModel:       e.settings.AgentModel,
		CoordinatorModel: firstNonEmpty(q.CoordinatorModel, e.settings.CoordinatorModel),
	}), nil
}

func (e *Engine) generate(ctx context.Context, req llm.Request) (string, error) {
	return e.deps.Generator.Generate(ctx, req)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
