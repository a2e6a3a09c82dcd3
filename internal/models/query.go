package models

import (
	"fmt"
	"strings"
)

// Mode selects the request flow.
type Mode string

const (
	ModeTraditional Mode = "traditional"
	ModeMultiAgent  Mode = "multi_agent"
)

// Search-mode tags reported back to the caller.
const (
	SearchModeTraditional = "traditional_reddit_search"
	SearchModeMultiAgent  = "multi_agent_web_search"
)

const (
	MinPosts  = 1
	MaxPosts  = 10
	MinAgents = 1
	MaxAgents = 5
)

// Query is the caller's request. It is passed by value and never mutated.
type Query struct {
	Text             string `json:"query"`
	Mode             Mode   `json:"mode,omitempty"`
	MaxPosts         int    `json:"max_posts,omitempty"`
	AgentCount       int    `json:"agent_count,omitempty"`
	Model            string `json:"model,omitempty"`
	CoordinatorModel string `json:"coordinator_model,omitempty"`
	UseWebSearch     bool   `json:"use_web_search,omitempty"`
}

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Normalize fills defaults and resolves the flow from UseWebSearch.
func (q Query) Normalize() Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.UseWebSearch {
		q.Mode = ModeMultiAgent
	}
	if q.Mode == "" {
		q.Mode = ModeTraditional
	}
	if q.MaxPosts == 0 {
		q.MaxPosts = 3
	}
	if q.AgentCount == 0 {
		q.AgentCount = 3
	}
	return q
}

// Validate checks the structural constraints of a normalized query.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if q.Mode != ModeTraditional && q.Mode != ModeMultiAgent {
		return &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", q.Mode)}
	}
	if q.MaxPosts < MinPosts || q.MaxPosts > MaxPosts {
		return &ValidationError{Field: "max_posts", Reason: fmt.Sprintf("must be between %d and %d", MinPosts, MaxPosts)}
	}
	if q.AgentCount < MinAgents || q.AgentCount > MaxAgents {
		return &ValidationError{Field: "agent_count", Reason: fmt.Sprintf("must be between %d and %d", MinAgents, MaxAgents)}
	}
	return nil
}
