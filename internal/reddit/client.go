package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	TokenURL = "https://www.reddit.com/api/v1/access_token"
	APIBase  = "https://oauth.reddit.com"
)

// ErrNotFound is returned when a thread does not exist or was removed.
var ErrNotFound = errors.New("reddit: not found")

// PlatformError describes a failed platform API call.
type PlatformError struct {
	Op     string
	Status int
	Err    error
}

func (e *PlatformError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("reddit %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("reddit %s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// Client talks to the authenticated API with app-only OAuth credentials.
type Client struct {
	http      *http.Client
	base      string
	userAgent string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.base = base }
}

// WithHTTPClient replaces the OAuth-backed HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client using the client-credentials grant. Tokens are
// fetched lazily and refreshed by the oauth2 transport.
func NewClient(clientID, clientSecret, userAgent string, timeout time.Duration, opts ...Option) *Client {
	base := &http.Client{
		Timeout:   timeout,
		Transport: userAgentTransport{next: http.DefaultTransport, userAgent: userAgent},
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	authed := cc.Client(ctx)
	authed.Timeout = timeout

	c := &Client{http: authed, base: APIBase, userAgent: userAgent}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSubmission loads a thread with its full comment tree.
func (c *Client) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	q := url.Values{}
	q.Set("sort", "top")
	q.Set("raw_json", "1")
	q.Set("limit", "100")

	body, err := c.get(ctx, "get_submission", "/comments/"+url.PathEscape(id), q)
	if err != nil {
		return nil, err
	}
	listings, err := DecodeListings(body)
	if err != nil {
		return nil, &PlatformError{Op: "get_submission", Err: err}
	}
	posts, err := listings[0].Posts()
	if err != nil {
		return nil, &PlatformError{Op: "get_submission", Err: err}
	}
	if len(posts) == 0 {
		return nil, &PlatformError{Op: "get_submission", Err: ErrNotFound}
	}

	sub := &Submission{Post: posts[0]}
	if len(listings) > 1 {
		tree, err := listings[1].CommentTree()
		if err != nil {
			return nil, &PlatformError{Op: "get_submission", Err: err}
		}
		sub.Comments = tree
	}
	return sub, nil
}

// SearchSubreddit runs a relevance-sorted, all-time search restricted to one
// subreddit.
func (c *Client) SearchSubreddit(ctx context.Context, name, query string, limit int) ([]Post, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("restrict_sr", "1")
	q.Set("sort", "relevance")
	q.Set("t", "all")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")

	body, err := c.get(ctx, "search_subreddit", "/r/"+url.PathEscape(name)+"/search", q)
	if err != nil {
		return nil, err
	}
	var listing Listing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, &PlatformError{Op: "search_subreddit", Err: err}
	}
	posts, err := listing.Posts()
	if err != nil {
		return nil, &PlatformError{Op: "search_subreddit", Err: err}
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &PlatformError{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &PlatformError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &PlatformError{Op: op, Status: resp.StatusCode, Err: ErrNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &PlatformError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", snippet)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &PlatformError{Op: op, Err: err}
	}
	return body, nil
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(r)
}
