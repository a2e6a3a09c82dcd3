package models

import "time"

// PostRef is a thread reference surfaced by a research agent.
type PostRef struct {
	URL                 string `json:"url"`
	Title               string `json:"title"`
	Summary             string `json:"summary"`
	Subreddit           string `json:"subreddit"`
	RelevanceScore      int    `json:"relevance_score"`
	EstimatedEngagement string `json:"estimated_engagement"`
}

// AgentFinding is the outcome of one research agent. Failed agents carry
// Error and ErrorType and no posts.
type AgentFinding struct {
	AgentID      int           `json:"agent_id"`
	Focus        string        `json:"focus"`
	Posts        []PostRef     `json:"reddit_posts"`
	Strategy     string        `json:"search_strategy"`
	ResponseText string        `json:"agent_response,omitempty"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	ErrorType    string        `json:"error_type,omitempty"`
	Duration     time.Duration `json:"-"`
}

// OrchestratorResult aggregates every agent's finding, indexed by ordinal.
type OrchestratorResult struct {
	Findings    []AgentFinding `json:"agent_results"`
	Successful  int            `json:"successful_agents"`
	Failed      int            `json:"failed_agents"`
	SuccessRate float64        `json:"success_rate"`
	TotalPosts  int            `json:"total_reddit_posts"`
	Elapsed     time.Duration  `json:"-"`
}

// AgentSummary is the count block reported for multi-agent runs.
type AgentSummary struct {
	TotalSearches      int     `json:"total_searches"`
	SuccessfulSearches int     `json:"successful_searches"`
	FailedSearches     int     `json:"failed_searches"`
	TotalRedditPosts   int     `json:"total_reddit_posts"`
	TotalRedditURLs    int     `json:"total_reddit_urls"`
	ExecutionTime      float64 `json:"execution_time"`
}

// SynthesisResult is the coordinator's output.
type SynthesisResult struct {
	Success  bool         `json:"success"`
	Analysis string       `json:"coordinator_analysis,omitempty"`
	Summary  AgentSummary `json:"agent_summary"`
	URLs     []string     `json:"reddit_urls_found"`
	Error    string       `json:"error,omitempty"`
}
