// Package sourcecheck sweeps the catalog of medical sources and reports
// which of their URLs still resolve. The sweep is polite: robots.txt is
// honored, requests are paced per domain, and bodies are read only up to
// a configured cap.
package sourcecheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/prahari-health/prahari/internal/model"
	"github.com/prahari-health/prahari/internal/util"
	"github.com/prahari-health/prahari/internal/worker"
)

// maxCrawlDelay caps how long one host can stall the sweep
const maxCrawlDelay = 10 * time.Second

// Status classifies the outcome of checking one source URL
type Status string

const (
	StatusReachable Status = "reachable" // URL answered below 400
	StatusBlocked   Status = "blocked"   // robots.txt disallows fetching
	StatusBroken    Status = "broken"    // network failure or status >= 400
	StatusSkipped   Status = "skipped"   // no URL on record, or sweep cancelled
)

// SourceReport is the sweep outcome for one catalog source
type SourceReport struct {
	Source     model.MedicalSource `json:"source"`
	URL        string              `json:"url"`
	FinalURL   string              `json:"final_url,omitempty"`
	Status     Status              `json:"status"`
	HTTPStatus int                 `json:"http_status,omitempty"`
	Detail     string              `json:"detail,omitempty"` // Page title when reachable, reason otherwise
	CheckedAt  time.Time           `json:"checked_at"`
	Duration   time.Duration       `json:"duration"`
}

// Checker sweeps source URLs
type Checker struct {
	client     *http.Client
	robots     *robotsGate
	limiter    *worker.Limiter
	userAgent  string
	maxBytes   int64
	maxWorkers int
	logger     *zap.Logger
}

// NewChecker creates a sweep checker from the HTTP and rate limit
// configuration.
func NewChecker(httpCfg model.HTTPConfig, rateCfg model.RateLimitConfig, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := httpCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := httpCfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	return &Checker{
		client:     client,
		robots:     newRobotsGate(client, httpCfg.UserAgent),
		limiter:    worker.NewLimiter(rateCfg.RequestsPerSecond, rateCfg.Burst),
		userAgent:  httpCfg.UserAgent,
		maxBytes:   maxBytes,
		maxWorkers: 4,
		logger:     logger,
	}
}

// CheckAll sweeps every source concurrently, preserving input order in the
// returned reports. Cancellation marks unswept sources skipped.
func (c *Checker) CheckAll(ctx context.Context, sources []model.MedicalSource) []SourceReport {
	reports := make([]SourceReport, len(sources))
	if len(sources) == 0 {
		return reports
	}

	semaphore := make(chan struct{}, c.maxWorkers)
	var wg sync.WaitGroup

	for i, src := range sources {
		select {
		case <-ctx.Done():
			reports[i] = SourceReport{
				Source:    src,
				URL:       src.URL,
				Status:    StatusSkipped,
				Detail:    "sweep cancelled",
				CheckedAt: time.Now().UTC(),
			}
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, source model.MedicalSource) {
			defer wg.Done()
			defer func() { <-semaphore }()
			reports[idx] = c.CheckSource(ctx, source)
		}(i, src)
	}

	wg.Wait()
	return reports
}

// CheckSource checks one source URL. It never returns an error: whatever
// happens is encoded in the report.
func (c *Checker) CheckSource(ctx context.Context, src model.MedicalSource) (report SourceReport) {
	report = SourceReport{
		Source:    src,
		URL:       src.URL,
		CheckedAt: time.Now().UTC(),
	}
	if src.URL == "" {
		report.Status = StatusSkipped
		report.Detail = "no url on record"
		return report
	}

	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		c.logger.Debug("source checked",
			zap.String("source", src.Name),
			zap.String("status", string(report.Status)),
			zap.Int("http_status", report.HTTPStatus),
			zap.Duration("duration", report.Duration))
	}()

	allowed, crawlDelay, err := c.robots.allowed(ctx, src.URL)
	if err != nil {
		report.Status = StatusBroken
		report.Detail = err.Error()
		return report
	}
	if !allowed {
		report.Status = StatusBlocked
		report.Detail = "disallowed by robots.txt"
		return report
	}

	if crawlDelay > maxCrawlDelay {
		crawlDelay = maxCrawlDelay
	}
	if err := c.limiter.WaitWithDelay(ctx, src.URL, crawlDelay); err != nil {
		report.Status = StatusSkipped
		report.Detail = "sweep cancelled"
		return report
	}

	c.fetch(ctx, &report)
	return report
}

// fetch performs the GET and fills status, final URL and page title
func (c *Checker) fetch(ctx context.Context, report *SourceReport) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, report.URL, nil)
	if err != nil {
		report.Status = StatusBroken
		report.Detail = fmt.Sprintf("create request: %v", err)
		return
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		report.Status = StatusBroken
		report.Detail = fmt.Sprintf("fetch: %v", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	report.HTTPStatus = resp.StatusCode
	report.FinalURL = resp.Request.URL.String()

	if resp.StatusCode >= 400 {
		report.Status = StatusBroken
		report.Detail = fmt.Sprintf("unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return
	}

	report.Status = StatusReachable
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		report.Detail = pageTitle(io.LimitReader(resp.Body, c.maxBytes))
	}
}

// pageTitle pulls the first <title> text out of an HTML body. Parse
// failures read as no title; the page already counted as reachable.
func pageTitle(r io.Reader) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// CountByStatus tallies sweep reports for the summary line
func CountByStatus(reports []SourceReport) map[Status]int {
	counts := make(map[Status]int, 4)
	for _, r := range reports {
		counts[r.Status]++
	}
	return counts
}
