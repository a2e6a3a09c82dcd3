package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/DeafMist/thread-scout/internal/discovery"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
)

const (
	maxLinkTerms    = 5
	maxLinksPerTerm = 3
)

var linkBlock = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// targetDomains are the retail and review sites worth linking to.
var targetDomains = map[string]bool{
	"amazon.com":       true,
	"bestbuy.com":      true,
	"target.com":       true,
	"walmart.com":      true,
	"newegg.com":       true,
	"ebay.com":         true,
	"wirecutter.com":   true,
	"cnet.com":         true,
	"techradar.com":    true,
	"pcmag.com":        true,
	"tomsguide.com":    true,
	"tomshardware.com": true,
}

// LinkData is the structured block the summarizer appends to its answer.
type LinkData struct {
	RedditLinks []string `json:"reddit_links"`
	SearchTerms []string `json:"search_terms"`
}

// ExtractLinkData parses the first fenced json block of text. A missing or
// malformed block yields empty data.
func ExtractLinkData(text string) LinkData {
	var data LinkData
	m := linkBlock.FindStringSubmatch(text)
	if m == nil {
		return data
	}
	if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
		return LinkData{}
	}
	data.SearchTerms = compact(data.SearchTerms)
	data.RedditLinks = compact(data.RedditLinks)
	return data
}

// ProductSearcher looks up pages for a product query.
type ProductSearcher interface {
	Configured() bool
	Query(ctx context.Context, query string, num int) ([]discovery.SearchItem, error)
}

// Enhancer attaches retail and review links to search terms.
type Enhancer struct {
	search ProductSearcher
	log    *slog.Logger
}

// NewEnhancer builds an enhancer. Without a configured searcher every term
// gets the retailer search-page links.
func NewEnhancer(search ProductSearcher, log *slog.Logger) *Enhancer {
	return &Enhancer{search: search, log: log}
}

// Enhance returns links for at most five terms.
func (e *Enhancer) Enhance(ctx context.Context, terms []string) map[string][]models.Link {
	if len(terms) > maxLinkTerms {
		terms = terms[:maxLinkTerms]
	}
	out := make(map[string][]models.Link, len(terms))
	for _, term := range terms {
		links := e.lookup(ctx, term)
		if len(links) == 0 {
			links = FallbackLinks(term)
		}
		out[term] = links
	}
	return out
}

func (e *Enhancer) lookup(ctx context.Context, term string) []models.Link {
	if e.search == nil || !e.search.Configured() {
		return nil
	}
	items, err := e.search.Query(ctx, term+" buy review store price", maxLinksPerTerm*2)
	if err != nil {
		logger.From(ctx, e.log).Warn("product link search failed", slog.String("term", term), slog.String("error", err.Error()))
		return nil
	}

	seen := map[string]bool{}
	var links []models.Link
	for _, it := range items {
		domain := domainOf(it.Link)
		if !targetDomains[domain] || seen[domain] {
			continue
		}
		seen[domain] = true
		links = append(links, models.Link{Title: it.Title, URL: it.Link, Snippet: it.Snippet, Domain: domain})
		if len(links) == maxLinksPerTerm {
			break
		}
	}
	return links
}

// FallbackLinks points at retailer search pages for term.
func FallbackLinks(term string) []models.Link {
	q := url.QueryEscape(term)
	return []models.Link{
		{Title: "Search Amazon for " + term, URL: "https://www.amazon.com/s?k=" + q, Domain: "amazon.com"},
		{Title: "Search Best Buy for " + term, URL: "https://www.bestbuy.com/site/searchpage.jsp?st=" + q, Domain: "bestbuy.com"},
		{Title: "Search Target for " + term, URL: "https://www.target.com/s?searchTerm=" + q, Domain: "target.com"},
	}
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}
