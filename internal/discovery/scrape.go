package discovery

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DeafMist/thread-scout/internal/models"
)

const googleBase = "https://www.google.com"

// Scrape queries the public Google results page over plain HTTP.
type Scrape struct {
	client *http.Client
	base   string
}

// NewScrape builds the plain-HTTP Google backend. base may be empty.
func NewScrape(client *http.Client, base string) *Scrape {
	if client == nil {
		client = &http.Client{}
	}
	if base == "" {
		base = googleBase
	}
	return &Scrape{client: client, base: base}
}

func (s *Scrape) Name() string { return "google_scrape" }

func (s *Scrape) Search(ctx context.Context, query string, limit int) ([]models.CandidateURL, error) {
	q := url.Values{}
	q.Set("q", query+" site:reddit.com")
	q.Set("num", strconv.Itoa(limit*2))
	q.Set("hl", "en")

	doc, err := fetchHTML(ctx, s.client, s.base+"/search?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return candidates(threadLinks(doc, limit), s.Name()), nil
}
