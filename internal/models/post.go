package models

import "time"

// CandidateURL is a canonical thread URL plus the backend that produced it.
type CandidateURL struct {
	URL     string `json:"url"`
	Backend string `json:"backend"`
}

// Comment is a single reply attached to a resolved post.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolvedPost is the normalized thread record used downstream. Both
// resolution paths produce this one shape.
type ResolvedPost struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Subreddit   string    `json:"subreddit"`
	Author      string    `json:"author"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	UpvoteRatio float64   `json:"upvote_ratio"`
	CreatedAt   time.Time `json:"created_at"`
	Comments    []Comment `json:"comments"`
	Origin      string    `json:"origin"`
}

// AgeDays returns the whole-day age of the post relative to now.
func (p ResolvedPost) AgeDays(now time.Time) int {
	if p.CreatedAt.IsZero() || now.Before(p.CreatedAt) {
		return 0
	}
	return int(now.Sub(p.CreatedAt).Hours() / 24)
}
