package llm

import (
	"math"
	"strings"

	"github.com/DeafMist/thread-scout/internal/models"
)

// Price is the cost in USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// Known generation models and their list prices.
var prices = map[string]Price{
	"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40},
	"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":        {Input: 1.25, Output: 10.00},
	"gemini-2.0-flash":      {Input: 0.10, Output: 0.40},
	"gemini-2.0-flash-lite": {Input: 0.075, Output: 0.30},
}

// FreeTierModel is estimated at zero cost.
const FreeTierModel = "gemini-2.0-flash-lite"

const fallbackModel = "gemini-2.5-flash"

// KnownModel reports whether model has a price entry.
func KnownModel(model string) bool {
	_, ok := prices[model]
	return ok
}

// Models lists every priced model id.
func Models() []string {
	out := make([]string, 0, len(prices))
	for m := range prices {
		out = append(out, m)
	}
	return out
}

// PriceOf returns the model price, falling back to the default model.
func PriceOf(model string) Price {
	if p, ok := prices[model]; ok {
		return p
	}
	return prices[fallbackModel]
}

// EstimateInput describes a prospective request.
type EstimateInput struct {
	MultiAgent       bool
	MaxPosts         int
	AgentCount       int
	Model            string
	AgentModel       string
	CoordinatorModel string
}

// Tokens is a token budget split.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Estimate is the projected token usage and cost of a request.
type Estimate struct {
	SearchMode        string  `json:"search_mode"`
	Tokens            Tokens  `json:"estimated_tokens"`
	AgentTokens       *Tokens `json:"agent_tokens,omitempty"`
	CoordinatorTokens *Tokens `json:"coordinator_tokens,omitempty"`
	PlatformCost      float64 `json:"platform_api_cost"`
	AgentCost         float64 `json:"agent_cost,omitempty"`
	CoordinatorCost   float64 `json:"coordinator_cost,omitempty"`
	TotalCost         float64 `json:"total_cost"`
	Model             string  `json:"model,omitempty"`
	AgentModel        string  `json:"agent_model,omitempty"`
	CoordinatorModel  string  `json:"coordinator_model,omitempty"`
	Posts             int     `json:"posts,omitempty"`
	AgentCount        int     `json:"agent_count,omitempty"`
}

// Per-request token heuristics.
const (
	postTokens           = 300
	commentTokens        = 50
	commentsPerPost      = 5
	promptOverhead       = 500
	summaryTokens        = 400
	agentInputTokens     = 1000
	agentOutputTokens    = 500
	coordinatorInTokens  = 3000
	coordinatorOutTokens = 1000
)

// EstimateCost projects token usage and USD cost.
func EstimateCost(in EstimateInput) Estimate {
	if in.MultiAgent {
		agents := Tokens{Input: in.AgentCount * agentInputTokens, Output: in.AgentCount * agentOutputTokens}
		agents.Total = agents.Input + agents.Output
		coord := Tokens{Input: coordinatorInTokens, Output: coordinatorOutTokens, Total: coordinatorInTokens + coordinatorOutTokens}

		agentCost := cost(in.AgentModel, agents)
		coordCost := cost(in.CoordinatorModel, coord)
		return Estimate{
			SearchMode:        models.SearchModeMultiAgent,
			Tokens:            Tokens{Input: agents.Input + coord.Input, Output: agents.Output + coord.Output, Total: agents.Total + coord.Total},
			AgentTokens:       &agents,
			CoordinatorTokens: &coord,
			AgentCost:         round4(agentCost),
			CoordinatorCost:   round4(coordCost),
			TotalCost:         round4(agentCost + coordCost),
			AgentModel:        in.AgentModel,
			CoordinatorModel:  in.CoordinatorModel,
			AgentCount:        in.AgentCount,
		}
	}

	t := Tokens{Input: in.MaxPosts*(postTokens+commentsPerPost*commentTokens) + promptOverhead, Output: summaryTokens}
	t.Total = t.Input + t.Output
	total := cost(in.Model, t)
	return Estimate{
		SearchMode: models.SearchModeTraditional,
		Tokens:     t,
		TotalCost:  round4(total),
		Model:      in.Model,
		Posts:      in.MaxPosts,
	}
}

func cost(model string, t Tokens) float64 {
	if strings.EqualFold(model, FreeTierModel) {
		return 0
	}
	p := PriceOf(model)
	return float64(t.Input)/1_000_000*p.Input + float64(t.Output)/1_000_000*p.Output
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
