package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/DeafMist/thread-scout/internal/reddit"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// fetchHTML performs a browser-like GET and returns the body.
func fetchHTML(ctx context.Context, client *http.Client, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &ThrottledError{Service: req.URL.Host, Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// anchorHrefs walks the document and returns every anchor target with known
// search-engine redirect wrappers removed.
func anchorHrefs(doc string) []string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil
	}
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					out = append(out, unwrapRedirect(attr.Val))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// unwrapRedirect resolves Google "/url?q=" and DuckDuckGo "uddg=" links.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	q := u.Query()
	switch {
	case strings.HasSuffix(u.Path, "/l/") || strings.HasSuffix(u.Path, "/l"):
		if target := q.Get("uddg"); target != "" {
			return target
		}
	case u.Path == "/url":
		if target := q.Get("q"); target != "" {
			return target
		}
		if target := q.Get("url"); target != "" {
			return target
		}
	}
	return href
}

// threadLinks extracts thread URLs from a results page: anchors first, then a
// plain-text scan of the raw body when no anchor qualified.
func threadLinks(doc string, limit int) []string {
	if out := uniqueThreads(anchorHrefs(doc), limit); len(out) > 0 {
		return out
	}
	return uniqueThreads(reddit.ExtractThreadURLs(doc), limit)
}

// uniqueThreads unwraps, canonicalizes and deduplicates hrefs of thread
// shape, in order. The limit counts distinct threads.
func uniqueThreads(hrefs []string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, href := range hrefs {
		if limit > 0 && len(out) >= limit {
			break
		}
		u, ok := reddit.CanonicalThreadURL(unwrapRedirect(href))
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
