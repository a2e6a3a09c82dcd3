package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
)

const coordinatorMaxTokens = 4000

// ErrNoSuccessfulAgents means every agent of a run failed.
var ErrNoSuccessfulAgents = errors.New("no successful agents to coordinate")

// AgentFailure is the diagnostic kept for each failed agent.
type AgentFailure struct {
	AgentID   int    `json:"agent_id"`
	ErrorType string `json:"error_type"`
	Error     string `json:"error"`
}

// OrchestrationError reports that no agent produced a usable finding.
type OrchestrationError struct {
	Summary  models.AgentSummary
	Failures []AgentFailure
}

func (e *OrchestrationError) Error() string {
	types := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		types = append(types, fmt.Sprintf("agent %d: %s", f.AgentID, f.ErrorType))
	}
	return fmt.Sprintf("all %d research agents failed (%s)", e.Summary.TotalSearches, strings.Join(types, ", "))
}

func (e *OrchestrationError) Unwrap() error { return ErrNoSuccessfulAgents }

// Coordinator turns the agents' findings into one analysis.
type Coordinator struct {
	gen llm.Generator
	log *slog.Logger
}

// NewCoordinator builds a coordinator. gen is expected to carry the retry
// policy already; Synthesize makes exactly one call.
func NewCoordinator(gen llm.Generator, log *slog.Logger) *Coordinator {
	return &Coordinator{gen: gen, log: log}
}

// Synthesize always returns a populated summary. With no successful agent it
// fails with *OrchestrationError and leaves the provider untouched.
func (c *Coordinator) Synthesize(ctx context.Context, res models.OrchestratorResult, query, model string) (models.SynthesisResult, error) {
	log := logger.From(ctx, c.log).With(slog.String("model", model))

	summary, urls := summarize(res)
	out := models.SynthesisResult{Summary: summary, URLs: urls}

	if summary.SuccessfulSearches == 0 {
		err := &OrchestrationError{Summary: summary, Failures: failures(res)}
		out.Error = ErrNoSuccessfulAgents.Error()
		log.Warn("coordinator skipped", slog.Int("failed", summary.FailedSearches))
		return out, err
	}

	text, err := c.gen.Generate(ctx, llm.Request{
		Model:     model,
		Prompt:    coordinatorPrompt(res, summary, query),
		MaxTokens: coordinatorMaxTokens,
	})
	if err != nil {
		out.Error = err.Error()
		log.Error("coordinator failed", slog.String("error", err.Error()))
		return out, fmt.Errorf("synthesize findings: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		text = "No response from coordinator"
	}

	out.Success = true
	out.Analysis = text
	log.Info("coordinator finished", slog.Int("urls", len(urls)))
	return out, nil
}

// summarize counts the run and collects the unique thread URLs of
// successful agents in order of appearance.
func summarize(res models.OrchestratorResult) (models.AgentSummary, []string) {
	s := models.AgentSummary{
		TotalSearches:      len(res.Findings),
		SuccessfulSearches: res.Successful,
		FailedSearches:     res.Failed,
		ExecutionTime:      res.Elapsed.Seconds(),
	}
	seen := map[string]struct{}{}
	urls := []string{}
	for _, f := range res.Findings {
		if !f.Success {
			continue
		}
		s.TotalRedditPosts += len(f.Posts)
		for _, p := range f.Posts {
			if _, dup := seen[p.URL]; dup || p.URL == "" {
				continue
			}
			seen[p.URL] = struct{}{}
			urls = append(urls, p.URL)
		}
	}
	s.TotalRedditURLs = len(urls)
	return s, urls
}

func failures(res models.OrchestratorResult) []AgentFailure {
	var out []AgentFailure
	for _, f := range res.Findings {
		if f.Success {
			continue
		}
		out = append(out, AgentFailure{AgentID: f.AgentID, ErrorType: f.ErrorType, Error: f.Error})
	}
	return out
}

func coordinatorPrompt(res models.OrchestratorResult, s models.AgentSummary, query string) string {
	var b strings.Builder
	b.WriteString("You coordinate several web research agents and must synthesize their findings.\n\n")
	fmt.Fprintf(&b, "QUERY: %q\n\n", query)
	b.WriteString("RUN SUMMARY:\n")
	fmt.Fprintf(&b, "- Agents deployed: %d\n", s.TotalSearches)
	fmt.Fprintf(&b, "- Successful agents: %d\n", s.SuccessfulSearches)
	fmt.Fprintf(&b, "- Failed agents: %d\n", s.FailedSearches)
	fmt.Fprintf(&b, "- Reddit posts found: %d\n", s.TotalRedditPosts)
	fmt.Fprintf(&b, "- Unique Reddit URLs: %d\n\n", s.TotalRedditURLs)

	b.WriteString("AGENT FINDINGS:\n")
	for _, f := range res.Findings {
		if !f.Success {
			continue
		}
		fmt.Fprintf(&b, "\n=== AGENT %d ===\n", f.AgentID)
		fmt.Fprintf(&b, "Focus: %s\n", f.Focus)
		fmt.Fprintf(&b, "Posts found: %d\n", len(f.Posts))
		if len(f.Posts) == 0 {
			b.WriteString("No Reddit posts found\n")
		}
		for i, p := range f.Posts {
			fmt.Fprintf(&b, "  %d. %s\n     URL: %s\n     Subreddit: r/%s\n     Summary: %s\n", i+1, p.Title, p.URL, p.Subreddit, p.Summary)
		}
		if f.ResponseText != "" {
			fmt.Fprintf(&b, "Agent notes: %s\n", f.ResponseText)
		}
		fmt.Fprintf(&b, "Strategy: %s\n", f.Strategy)
	}

	if fails := failures(res); len(fails) > 0 {
		fmt.Fprintf(&b, "\n=== FAILED AGENTS (%d) ===\n", len(fails))
		for _, f := range fails {
			fmt.Fprintf(&b, "Agent %d: %s - %s\n", f.AgentID, f.ErrorType, f.Error)
		}
	}

	b.WriteString("\nWrite an analysis with these five sections:\n\n")
	b.WriteString("1. **SEARCH EFFECTIVENESS**: how well the agents performed and whether they found relevant Reddit content.\n\n")
	b.WriteString("2. **REDDIT CONTENT ANALYSIS**: key themes and recommendations, the most valuable discussions, and community consensus where present.\n\n")
	fmt.Fprintf(&b, "3. **RECOMMENDATIONS**: the top recommendations for %q based on the discussions found.\n\n", query)
	b.WriteString("4. **LIMITATIONS**: failed agents, missing results and anything else that limits this search.\n\n")
	b.WriteString("5. **CONFIDENCE LEVEL**: how confident you are in these recommendations given the data.\n\n")
	b.WriteString("If the agents found nothing meaningful, say so plainly and explain why the search was ineffective.")
	return b.String()
}
