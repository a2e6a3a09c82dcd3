package models

import "time"

// ReportDocument is the archived projection of a finished request stored in
// Elasticsearch.
type ReportDocument struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	Query      string    `json:"query"`
	SearchMode string    `json:"search_mode"`
	Model      string    `json:"model"`
	Headline   string    `json:"headline"`
	Summary    string    `json:"summary"`
	SourceURLs []string  `json:"source_urls"`
	Subreddits []string  `json:"subreddits"`
	Keywords   []string  `json:"keywords"`
	TotalPosts int       `json:"total_posts"`
	Sentiment  string    `json:"sentiment,omitempty"`
	Freshness  float64   `json:"freshness"`
	Timestamp  time.Time `json:"timestamp"`
}
