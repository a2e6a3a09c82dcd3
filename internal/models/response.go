package models

// Source is the caller-facing projection of a resolved post.
type Source struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Upvotes     int     `json:"upvotes"`
	Subreddit   string  `json:"subreddit"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	AgeDays     int     `json:"age_days"`
}

// Link is an external page surfaced by link enhancement.
type Link struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Domain  string `json:"domain"`
}

// MultiAgentInfo describes how a multi-agent answer was produced.
type MultiAgentInfo struct {
	AgentCount       int     `json:"agent_count"`
	AgentModel       string  `json:"agent_model"`
	CoordinatorModel string  `json:"coordinator_model"`
	SuccessRate      float64 `json:"success_rate"`
}

// SearchResponse is the result of one request, in either mode.
type SearchResponse struct {
	RequestID            string            `json:"request_id"`
	Query                string            `json:"query"`
	Summary              string            `json:"summary"`
	Sources              []Source          `json:"sources"`
	Analysis             *AnalysisReport   `json:"analysis,omitempty"`
	SearchMode           string            `json:"search_mode"`
	Model                string            `json:"model"`
	AgentSummary         *AgentSummary     `json:"agent_summary,omitempty"`
	MultiAgent           *MultiAgentInfo   `json:"multi_agent_analysis,omitempty"`
	RedditURLs           []string          `json:"reddit_urls_found,omitempty"`
	ExtractedSearchTerms []string          `json:"extracted_search_terms,omitempty"`
	EnhancedLinks        map[string][]Link `json:"enhanced_links,omitempty"`
	ExecutionTime        float64           `json:"execution_time"`
}

// ErrorResponse is written for failed requests.
type ErrorResponse struct {
	Error        string        `json:"error"`
	Details      string        `json:"details,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
	AgentSummary *AgentSummary `json:"agent_summary,omitempty"`
}
