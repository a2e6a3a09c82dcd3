package discovery

import (
	"context"
	"net/http"
	"net/url"

	"github.com/DeafMist/thread-scout/internal/models"
)

const duckDuckGoBase = "https://html.duckduckgo.com"

// DuckDuckGo scrapes the HTML-only results endpoint.
type DuckDuckGo struct {
	client *http.Client
	base   string
}

// NewDuckDuckGo builds the DuckDuckGo backend. base may be empty.
func NewDuckDuckGo(client *http.Client, base string) *DuckDuckGo {
	if client == nil {
		client = &http.Client{}
	}
	if base == "" {
		base = duckDuckGoBase
	}
	return &DuckDuckGo{client: client, base: base}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]models.CandidateURL, error) {
	q := url.Values{}
	q.Set("q", query+" site:reddit.com")

	doc, err := fetchHTML(ctx, d.client, d.base+"/html/?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return candidates(threadLinks(doc, limit), d.Name()), nil
}
