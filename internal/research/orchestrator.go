package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
)

// Focuses are assigned to agents in rotation.
var Focuses = []string{
	"recent discussions 2024 2023",
	"best recommendations highly upvoted",
	"detailed reviews comparison",
	"community consensus popular",
	"expert opinions detailed analysis",
}

// FocusFor returns the focus label of the agent with 0-based ordinal i.
func FocusFor(i int) string {
	return Focuses[i%len(Focuses)]
}

// Researcher is a single research task runner.
type Researcher interface {
	Run(ctx context.Context, query string, agentID int, focus string) models.AgentFinding
}

// Orchestrator fans research agents out concurrently and collects every
// finding, whatever its outcome.
type Orchestrator struct {
	agent    Researcher
	parallel int
	log      *slog.Logger
}

// NewOrchestrator bounds concurrent agents to parallel (0 means unbounded).
func NewOrchestrator(agent Researcher, parallel int, log *slog.Logger) *Orchestrator {
	return &Orchestrator{agent: agent, parallel: parallel, log: log}
}

// Orchestrate runs agentCount agents and waits for all of them. Findings are
// indexed by ordinal; agent ids are 1-based.
func (o *Orchestrator) Orchestrate(ctx context.Context, query string, agentCount int) models.OrchestratorResult {
	log := logger.From(ctx, o.log)
	if agentCount < 0 {
		agentCount = 0
	}
	started := time.Now()
	log.Info("launching research agents", slog.Int("agents", agentCount))

	findings := make([]models.AgentFinding, agentCount)

	// Goroutines always return nil so one failure never cancels siblings.
	// Each writes only its own slot.
	var g errgroup.Group
	if o.parallel > 0 {
		g.SetLimit(o.parallel)
	}
	for i := 0; i < agentCount; i++ {
		id, focus := i+1, FocusFor(i)
		g.Go(func() error {
			findings[id-1] = o.runSafely(ctx, query, id, focus)
			return nil
		})
	}
	_ = g.Wait()

	res := models.OrchestratorResult{Findings: findings, Elapsed: time.Since(started)}
	for _, f := range findings {
		if f.Success {
			res.Successful++
			res.TotalPosts += len(f.Posts)
		} else {
			res.Failed++
		}
	}
	if agentCount > 0 {
		res.SuccessRate = float64(res.Successful) / float64(agentCount)
	}

	log.Info("research agents finished",
		slog.Int("successful", res.Successful),
		slog.Int("failed", res.Failed),
		slog.Int("posts", res.TotalPosts),
		slog.Duration("took", res.Elapsed))
	return res
}

func (o *Orchestrator) runSafely(ctx context.Context, query string, id int, focus string) (f models.AgentFinding) {
	defer func() {
		if r := recover(); r != nil {
			logger.From(ctx, o.log).Error("research agent panicked", slog.Int("agent_id", id), slog.Any("panic", r))
			f = models.AgentFinding{
				AgentID:   id,
				Focus:     focus,
				Posts:     []models.PostRef{},
				Error:     fmt.Sprint(r),
				ErrorType: ErrorTypePanic,
			}
		}
	}()
	return o.agent.Run(ctx, query, id, focus)
}
