// Package research runs the multi-agent web research mode: independent
// agents search the web with the generation provider's tools, and a
// coordinator synthesizes whatever they found.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/processing"
	"github.com/DeafMist/thread-scout/internal/reddit"
)

const (
	agentMaxTokens    = 3000
	maxPostsPerAgent  = 5
	responseTextLimit = 500
)

// Error types recorded on failed findings.
const (
	ErrorTypeTimeout           = "Timeout"
	ErrorTypeCanceled          = "Canceled"
	ErrorTypeRateLimitExceeded = "RateLimitExceeded"
	ErrorTypeProvider          = "ProviderError"
	ErrorTypePanic             = "Panic"
)

// Agent performs one focus-scoped research task.
type Agent struct {
	gen     llm.Generator
	model   string
	timeout time.Duration
	log     *slog.Logger
}

// NewAgent builds an agent that calls gen with model under timeout.
func NewAgent(gen llm.Generator, model string, timeout time.Duration, log *slog.Logger) *Agent {
	return &Agent{gen: gen, model: model, timeout: timeout, log: log}
}

// Run never fails: provider errors are recorded on the returned finding.
func (a *Agent) Run(ctx context.Context, query string, agentID int, focus string) models.AgentFinding {
	log := logger.From(ctx, a.log).With(slog.Int("agent_id", agentID), slog.String("focus", focus))
	started := time.Now()

	finding := models.AgentFinding{AgentID: agentID, Focus: focus, Posts: []models.PostRef{}}

	text, err := a.generate(ctx, llm.Request{
		Model:        a.model,
		Prompt:       agentPrompt(query, focus),
		MaxTokens:    agentMaxTokens,
		Capabilities: []llm.Capability{llm.CapabilitySearch, llm.CapabilityFetch},
	})
	finding.Duration = time.Since(started)
	if err != nil {
		finding.Error = err.Error()
		finding.ErrorType = classify(err)
		log.Warn("research agent failed", slog.String("error_type", finding.ErrorType), slog.String("error", finding.Error))
		return finding
	}

	urls := reddit.ExtractThreadURLs(text)
	if len(urls) > maxPostsPerAgent {
		urls = urls[:maxPostsPerAgent]
	}
	for _, u := range urls {
		sub, _, _ := reddit.ParseThread(u)
		finding.Posts = append(finding.Posts, models.PostRef{
			URL:                 u,
			Title:               "Reddit post from r/" + sub,
			Summary:             "Post found via web search",
			Subreddit:           sub,
			RelevanceScore:      7,
			EstimatedEngagement: "medium",
		})
	}

	finding.Success = true
	finding.ResponseText = processing.Truncate(text, responseTextLimit)
	if len(finding.Posts) == 0 {
		finding.Strategy = fmt.Sprintf("Web search attempted for %q with focus %q but no Reddit posts found", query, focus)
		if others := len(processing.ExtractURLs(text)); others > 0 {
			finding.Strategy += fmt.Sprintf(" (%d other links cited)", others)
		}
	} else {
		finding.Strategy = fmt.Sprintf("Used web search to find Reddit posts about %q with focus on %s", query, focus)
	}

	log.Info("research agent finished", slog.Int("posts", len(finding.Posts)), slog.Duration("took", finding.Duration))
	return finding
}

// generate runs the provider call on its own goroutine so a provider that
// ignores ctx cannot hold the agent past its deadline.
func (a *Agent) generate(ctx context.Context, req llm.Request) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := a.gen.Generate(ctx, req)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func classify(err error) string {
	var rle *llm.RateLimitExceededError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.As(err, &rle):
		return ErrorTypeRateLimitExceeded
	default:
		return ErrorTypeProvider
	}
}

func agentPrompt(query, focus string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are researching Reddit discussions about: %q\n", query)
	fmt.Fprintf(&b, "Search focus: %s\n\n", focus)
	b.WriteString("WORKFLOW:\n")
	fmt.Fprintf(&b, "1. Search the web for %q.\n", query+" "+focus+" site:reddit.com")
	b.WriteString("2. Open the most relevant Reddit threads you find (up to 3-4) and read the post and its top comments.\n")
	b.WriteString("3. Analyze the discussions.\n\n")
	b.WriteString("WHAT TO EXTRACT:\n")
	fmt.Fprintf(&b, "- concrete recommendations related to %q\n", query)
	b.WriteString("- product and brand names with the prices people mention\n")
	b.WriteString("- community consensus, popular opinions and common warnings\n")
	b.WriteString("- overall sentiment and how confident the recommendations are\n\n")
	b.WriteString("Write a detailed summary of your findings and cite every Reddit thread you used by its full URL ")
	b.WriteString("(https://www.reddit.com/r/<subreddit>/comments/<id>/...).\n")
	fmt.Fprintf(&b, "Keep the emphasis on %s.", focus)
	return b.String()
}
