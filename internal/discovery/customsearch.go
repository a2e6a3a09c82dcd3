package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DeafMist/thread-scout/internal/models"
)

const customSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

// SearchItem is one Custom Search result.
type SearchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// CustomSearch is a minimal client for the Google Custom Search JSON API.
type CustomSearch struct {
	client   *http.Client
	endpoint string
	apiKey   string
	engineID string
}

// NewCustomSearch builds a client. Empty credentials yield a client whose
// Configured method reports false.
func NewCustomSearch(client *http.Client, apiKey, engineID string) *CustomSearch {
	if client == nil {
		client = &http.Client{}
	}
	return &CustomSearch{client: client, endpoint: customSearchEndpoint, apiKey: apiKey, engineID: engineID}
}

// WithEndpoint points the client at a different API URL.
func (c *CustomSearch) WithEndpoint(endpoint string) *CustomSearch {
	c.endpoint = endpoint
	return c
}

// Configured reports whether both credentials are present.
func (c *CustomSearch) Configured() bool {
	return c != nil && c.apiKey != "" && c.engineID != ""
}

// Query runs one search. num is clamped to the API maximum of 10.
func (c *CustomSearch) Query(ctx context.Context, query string, num int) ([]SearchItem, error) {
	if !c.Configured() {
		return nil, ErrUnconfigured
	}
	if num <= 0 || num > 10 {
		num = 10
	}
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(num))
	q.Set("fields", "items(title,link,snippet)")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ThrottledError{Service: "customsearch", Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("custom search: status %d: %s", resp.StatusCode, snippet)
	}

	var payload struct {
		Items []SearchItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode custom search: %w", err)
	}
	return payload.Items, nil
}

// SearchAPI is the highest-priority backend: the official search API
// restricted to the platform's domain.
type SearchAPI struct {
	cs *CustomSearch
}

// NewSearchAPI wraps a Custom Search client as a backend.
func NewSearchAPI(cs *CustomSearch) *SearchAPI {
	return &SearchAPI{cs: cs}
}

func (s *SearchAPI) Name() string { return "search_api" }

func (s *SearchAPI) Search(ctx context.Context, query string, limit int) ([]models.CandidateURL, error) {
	if !s.cs.Configured() {
		return nil, ErrUnconfigured
	}
	items, err := s.cs.Query(ctx, query+" site:reddit.com", limit*2)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(items))
	for _, it := range items {
		urls = append(urls, it.Link)
	}
	return candidates(urls, s.Name()), nil
}
