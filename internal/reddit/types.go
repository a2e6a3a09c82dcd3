package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Thing is the generic envelope of every API object.
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Listing is a page of things.
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []Thing `json:"children"`
		After    string  `json:"after"`
	} `json:"data"`
}

// Post is the t3 payload. Score and UpvoteRatio are pointers so callers can
// tell omitted values from zero.
type Post struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Selftext    string   `json:"selftext"`
	Subreddit   string   `json:"subreddit"`
	Author      string   `json:"author"`
	URL         string   `json:"url"`
	Permalink   string   `json:"permalink"`
	Score       *int     `json:"score"`
	NumComments int      `json:"num_comments"`
	UpvoteRatio *float64 `json:"upvote_ratio"`
	CreatedUTC  float64  `json:"created_utc"`
}

// Created converts the epoch timestamp.
func (p Post) Created() time.Time {
	return epoch(p.CreatedUTC)
}

// ThreadURL returns the canonical URL of the post.
func (p Post) ThreadURL() string {
	if u, ok := CanonicalThreadURL(p.Permalink); ok {
		return u
	}
	return ThreadURL(p.Subreddit, p.ID)
}

// CommentData is the t1 payload.
type CommentData struct {
	ID         string          `json:"id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

// Created converts the epoch timestamp.
func (c CommentData) Created() time.Time {
	return epoch(c.CreatedUTC)
}

// CommentNode is one node of a comment tree. More marks a "load more" stub.
type CommentNode struct {
	Comment CommentData
	Replies []CommentNode
	More    bool
}

// Submission is a post with its comment tree.
type Submission struct {
	Post     Post
	Comments []CommentNode
}

// FlattenComments walks the tree depth-first and drops "more" stubs.
func (s *Submission) FlattenComments() []CommentData {
	var out []CommentData
	var walk func(nodes []CommentNode)
	walk = func(nodes []CommentNode) {
		for _, n := range nodes {
			if n.More {
				continue
			}
			out = append(out, n.Comment)
			walk(n.Replies)
		}
	}
	walk(s.Comments)
	return out
}

// DecodeListings decodes the two-element [post, comments] thread payload.
func DecodeListings(data []byte) ([]Listing, error) {
	var listings []Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("decode thread listing: %w", err)
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("decode thread listing: empty payload")
	}
	return listings, nil
}

// Posts returns the t3 children of the listing.
func (l Listing) Posts() ([]Post, error) {
	out := make([]Post, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var p Post
		if err := json.Unmarshal(child.Data, &p); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// CommentTree decodes the listing children into comment nodes, recursing
// into nested replies.
func (l Listing) CommentTree() ([]CommentNode, error) {
	out := make([]CommentNode, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		switch child.Kind {
		case "more":
			out = append(out, CommentNode{More: true})
		case "t1":
			var c CommentData
			if err := json.Unmarshal(child.Data, &c); err != nil {
				return nil, fmt.Errorf("decode comment: %w", err)
			}
			node := CommentNode{Comment: c}
			if replies := bytes.TrimSpace(c.Replies); len(replies) > 0 && replies[0] == '{' {
				var nested Listing
				if err := json.Unmarshal(replies, &nested); err != nil {
					return nil, fmt.Errorf("decode replies: %w", err)
				}
				children, err := nested.CommentTree()
				if err != nil {
					return nil, err
				}
				node.Replies = children
			}
			out = append(out, node)
		}
	}
	return out, nil
}

func epoch(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}
