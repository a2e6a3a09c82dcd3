package research_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/research"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func threadText(ids ...string) string {
	var b strings.Builder
	b.WriteString("Here is what I found.\n")
	for _, id := range ids {
		b.WriteString("See https://www.reddit.com/r/hiking/comments/" + id + "/some_title/ for details.\n")
	}
	return b.String()
}

func TestAgentParsesThreads(t *testing.T) {
	var got llm.Request
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return threadText("aa1", "bb2", "aa1", "cc3", "dd4", "ee5", "ff6"), nil
	})

	f := research.NewAgent(gen, "gemini-2.5-flash-lite", time.Second, logger.Discard()).
		Run(context.Background(), "hiking shoes", 2, research.FocusFor(1))

	require.True(t, f.Success)
	require.Equal(t, 2, f.AgentID)
	require.Len(t, f.Posts, 5)
	require.Equal(t, "https://www.reddit.com/r/hiking/comments/aa1/", f.Posts[0].URL)
	require.Equal(t, "Reddit post from r/hiking", f.Posts[0].Title)
	require.Equal(t, 7, f.Posts[0].RelevanceScore)
	require.Equal(t, "medium", f.Posts[0].EstimatedEngagement)
	require.Contains(t, f.Strategy, "Used web search")
	require.LessOrEqual(t, len(f.ResponseText), 500)

	require.Equal(t, "gemini-2.5-flash-lite", got.Model)
	require.EqualValues(t, 3000, got.MaxTokens)
	require.ElementsMatch(t, []llm.Capability{llm.CapabilitySearch, llm.CapabilityFetch}, got.Capabilities)
	require.Contains(t, got.Prompt, "hiking shoes best recommendations highly upvoted site:reddit.com")
}

func TestAgentNoThreadsIsSuccess(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "Nothing relevant turned up.", nil
	})
	f := research.NewAgent(gen, "m", time.Second, logger.Discard()).Run(context.Background(), "q", 1, research.FocusFor(0))

	require.True(t, f.Success)
	require.Empty(t, f.Posts)
	require.Contains(t, f.Strategy, "no Reddit posts found")
	require.NotContains(t, f.Strategy, "other links")
	require.Empty(t, f.Error)

	gen = func(context.Context, llm.Request) (string, error) {
		return "See https://www.rei.com/moab and https://example.com/review.", nil
	}
	f = research.NewAgent(gen, "m", time.Second, logger.Discard()).Run(context.Background(), "q", 1, research.FocusFor(0))
	require.True(t, f.Success)
	require.Contains(t, f.Strategy, "(2 other links cited)")
}

func TestAgentFailureKinds(t *testing.T) {
	cases := []struct {
		name string
		gen  llm.GeneratorFunc
		want string
	}{
		{
			name: "timeout",
			gen: func(ctx context.Context, _ llm.Request) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			want: research.ErrorTypeTimeout,
		},
		{
			name: "rate limit",
			gen: func(context.Context, llm.Request) (string, error) {
				return "", &llm.RateLimitExceededError{Model: "m", Attempts: 3, Err: errors.New("429")}
			},
			want: research.ErrorTypeRateLimitExceeded,
		},
		{
			name: "provider",
			gen: func(context.Context, llm.Request) (string, error) {
				return "", &llm.ProviderError{Model: "m", Err: errors.New("invalid argument")}
			},
			want: research.ErrorTypeProvider,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := research.NewAgent(tc.gen, "m", 20*time.Millisecond, logger.Discard()).Run(context.Background(), "q", 1, "focus")
			require.False(t, f.Success)
			require.Equal(t, tc.want, f.ErrorType)
			require.NotEmpty(t, f.Error)
			require.Empty(t, f.Posts)
		})
	}
}

type researcherFunc func(ctx context.Context, query string, agentID int, focus string) models.AgentFinding

func (f researcherFunc) Run(ctx context.Context, query string, agentID int, focus string) models.AgentFinding {
	return f(ctx, query, agentID, focus)
}

func TestOrchestratorIsolatesPanics(t *testing.T) {
	r := researcherFunc(func(_ context.Context, _ string, id int, focus string) models.AgentFinding {
		if id == 2 {
			panic("agent exploded")
		}
		return models.AgentFinding{AgentID: id, Focus: focus, Success: true,
			Posts: []models.PostRef{{URL: "https://www.reddit.com/r/x/comments/a" + string(rune('0'+id)) + "/"}}}
	})

	res := research.NewOrchestrator(r, 5, logger.Discard()).Orchestrate(context.Background(), "q", 3)

	require.Len(t, res.Findings, 3)
	require.Equal(t, 2, res.Successful)
	require.Equal(t, 1, res.Failed)
	require.InDelta(t, 0.667, res.SuccessRate, 0.001)
	require.Equal(t, 2, res.TotalPosts)
	require.Equal(t, research.ErrorTypePanic, res.Findings[1].ErrorType)
	require.Equal(t, 2, res.Findings[1].AgentID)
}

func TestOrchestratorKeepsOrdinalOrder(t *testing.T) {
	r := researcherFunc(func(_ context.Context, _ string, id int, focus string) models.AgentFinding {
		time.Sleep(time.Duration(6-id) * 5 * time.Millisecond)
		return models.AgentFinding{AgentID: id, Focus: focus, Success: true}
	})

	res := research.NewOrchestrator(r, 0, logger.Discard()).Orchestrate(context.Background(), "q", 5)
	for i, f := range res.Findings {
		require.Equal(t, i+1, f.AgentID)
		require.Equal(t, research.Focuses[i], f.Focus)
	}
	require.Equal(t, research.Focuses[0], research.FocusFor(5))
}

func TestOrchestratorRespectsParallelLimit(t *testing.T) {
	var inFlight, peak int32
	r := researcherFunc(func(_ context.Context, _ string, id int, focus string) models.AgentFinding {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return models.AgentFinding{AgentID: id, Focus: focus, Success: true}
	})

	res := research.NewOrchestrator(r, 2, logger.Discard()).Orchestrate(context.Background(), "q", 5)
	require.Equal(t, 5, res.Successful)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestOrchestratorZeroAgents(t *testing.T) {
	res := research.NewOrchestrator(nil, 5, logger.Discard()).Orchestrate(context.Background(), "q", 0)
	require.Empty(t, res.Findings)
	require.Zero(t, res.SuccessRate)
}

func TestCoordinatorNoSuccessSkipsProvider(t *testing.T) {
	var calls int32
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "analysis", nil
	})
	res := models.OrchestratorResult{
		Findings: []models.AgentFinding{
			{AgentID: 1, ErrorType: research.ErrorTypeTimeout, Error: "context deadline exceeded"},
			{AgentID: 2, ErrorType: research.ErrorTypeProvider, Error: "boom"},
		},
		Failed: 2,
	}

	out, err := research.NewCoordinator(gen, logger.Discard()).Synthesize(context.Background(), res, "q", "gemini-2.5-pro")

	require.ErrorIs(t, err, research.ErrNoSuccessfulAgents)
	var oe *research.OrchestrationError
	require.ErrorAs(t, err, &oe)
	require.Len(t, oe.Failures, 2)
	require.Contains(t, oe.Error(), "agent 1: Timeout")
	require.False(t, out.Success)
	require.Zero(t, out.Summary.SuccessfulSearches)
	require.Equal(t, 2, out.Summary.FailedSearches)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestCoordinatorProviderFailure(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "", &llm.ProviderError{Model: "m", Err: errors.New("bad gateway")}
	})
	res := models.OrchestratorResult{
		Findings:   []models.AgentFinding{{AgentID: 1, Success: true}},
		Successful: 1,
	}

	out, err := research.NewCoordinator(gen, logger.Discard()).Synthesize(context.Background(), res, "q", "m")
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	require.False(t, out.Success)
	require.Equal(t, 1, out.Summary.SuccessfulSearches)
}

func TestMultiAgentScenario(t *testing.T) {
	responses := map[string]string{
		research.Focuses[2]: "I could not find anything useful.",
		research.Focuses[3]: threadText("abc1", "abc2"),
		research.Focuses[4]: threadText("abc3"),
	}
	var mu sync.Mutex
	var coordinatorPrompts []string

	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if req.Model == "coordinator" {
			mu.Lock()
			coordinatorPrompts = append(coordinatorPrompts, req.Prompt)
			mu.Unlock()
			return "1. **SEARCH EFFECTIVENESS** ...", nil
		}
		for focus, text := range responses {
			if strings.Contains(req.Prompt, "Search focus: "+focus) {
				return text, nil
			}
		}
		<-ctx.Done()
		return "", ctx.Err()
	})

	agent := research.NewAgent(gen, "agent", 30*time.Millisecond, logger.Discard())
	res := research.NewOrchestrator(agent, 5, logger.Discard()).Orchestrate(context.Background(), "best budget hiking shoes", 5)

	require.Len(t, res.Findings, 5)
	require.Equal(t, 3, res.TotalPosts)
	require.Equal(t, 3, res.Successful)
	require.Equal(t, 2, res.Failed)
	require.InDelta(t, 0.6, res.SuccessRate, 1e-9)
	require.Equal(t, research.ErrorTypeTimeout, res.Findings[0].ErrorType)
	require.Equal(t, research.ErrorTypeTimeout, res.Findings[1].ErrorType)

	out, err := research.NewCoordinator(gen, logger.Discard()).Synthesize(context.Background(), res, "best budget hiking shoes", "coordinator")
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, 2, out.Summary.FailedSearches)
	require.Equal(t, 3, out.Summary.SuccessfulSearches)
	require.Equal(t, 3, out.Summary.TotalRedditPosts)
	require.Equal(t, 3, out.Summary.TotalRedditURLs)
	require.Len(t, out.URLs, 3)

	require.Len(t, coordinatorPrompts, 1)
	require.Contains(t, coordinatorPrompts[0], "=== FAILED AGENTS (2) ===")
	require.Contains(t, coordinatorPrompts[0], "CONFIDENCE LEVEL")
}
