package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/DeafMist/thread-scout/internal/models"
)

// Browser renders the Google results page in headless Chrome. It is used
// because the plain-HTTP page is frequently served without organic results.
type Browser struct {
	enabled    bool
	controlURL string
	base       string
}

// NewBrowser builds the headless-browser backend. An empty controlURL
// launches a locally installed browser per search.
func NewBrowser(enabled bool, controlURL string) *Browser {
	return &Browser{enabled: enabled, controlURL: controlURL, base: googleBase}
}

func (b *Browser) Name() string { return "headless_browser" }

// SearchURL builds the results URL restricted to the last two years.
func (b *Browser) SearchURL(query string, limit int) string {
	q := url.Values{}
	q.Set("q", query+" site:reddit.com")
	q.Set("tbs", "qdr:y2")
	q.Set("num", strconv.Itoa(limit*2))
	q.Set("hl", "en")
	return b.base + "/search?" + q.Encode()
}

func (b *Browser) Search(ctx context.Context, query string, limit int) ([]models.CandidateURL, error) {
	if !b.enabled {
		return nil, ErrUnconfigured
	}

	controlURL := b.controlURL
	if controlURL == "" {
		bin, ok := launcher.LookPath()
		if !ok {
			return nil, fmt.Errorf("%w: no local chrome found", ErrUnavailable)
		}
		l := launcher.New().Bin(bin).Headless(true).Context(ctx)
		defer l.Kill()

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: b.SearchURL(query, limit)})
	if err != nil {
		return nil, fmt.Errorf("open results page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for results: %w", err)
	}

	elements, err := page.Elements("a[href]")
	if err != nil {
		return nil, fmt.Errorf("collect links: %w", err)
	}

	hrefs := make([]string, 0, len(elements))
	for _, el := range elements {
		href, err := el.Attribute("href")
		if err != nil || href == nil || *href == "" {
			continue
		}
		hrefs = append(hrefs, *href)
	}
	return candidates(uniqueThreads(hrefs, limit), b.Name()), nil
}
