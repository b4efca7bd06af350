package sourcecheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsGate answers whether the catalog sweep may fetch a URL, caching
// one robots.txt per host. An unreachable robots.txt reads as allowed:
// the sweep reports on sources, it does not crawl them.
type robotsGate struct {
	client *http.Client
	agent  string

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
}

func newRobotsGate(client *http.Client, userAgent string) *robotsGate {
	return &robotsGate{
		client: client,
		agent:  productToken(userAgent),
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// allowed reports whether the URL may be fetched and the crawl delay the
// host asks for.
func (g *robotsGate) allowed(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse url: %w", err)
	}

	data, err := g.robotsFor(ctx, parsed.Scheme, parsed.Host)
	if err != nil {
		return true, 0, nil
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	allowed := data.TestAgent(path, g.agent)

	var delay time.Duration
	if group := data.FindGroup(g.agent); group != nil {
		delay = group.CrawlDelay
	}
	return allowed, delay, nil
}

func (g *robotsGate) robotsFor(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	g.mu.RLock()
	data, ok := g.cache[host]
	g.mu.RUnlock()
	if ok {
		return data, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", g.agent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	g.mu.Lock()
	g.cache[host] = data
	g.mu.Unlock()
	return data, nil
}

// productToken reduces a full User-Agent header to the token robots.txt
// groups match against: "Prahari/0.1 (+https://...)" becomes "Prahari".
func productToken(userAgent string) string {
	fields := strings.Fields(userAgent)
	if len(fields) == 0 {
		return userAgent
	}
	return strings.Split(fields[0], "/")[0]
}
