package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound requests per target domain. Each domain gets an
// independent token bucket so one slow catalog host cannot consume the
// budget of the rest of a sweep.
type Limiter struct {
	mu          sync.RWMutex
	buckets     map[string]*rate.Limiter
	domainRate  rate.Limit
	domainBurst int
}

// NewLimiter creates a limiter with the default per-domain rate
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2.0
	}
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		buckets:     make(map[string]*rate.Limiter),
		domainRate:  rate.Limit(requestsPerSecond),
		domainBurst: burst,
	}
}

// Wait blocks until the domain of rawURL has a token available
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain, err := domainOf(rawURL)
	if err != nil {
		return err
	}
	return l.bucket(domain).Wait(ctx)
}

// WaitWithDelay waits for a token, then sits out an extra crawl delay
func (l *Limiter) WaitWithDelay(ctx context.Context, rawURL string, delay time.Duration) error {
	if err := l.Wait(ctx, rawURL); err != nil {
		return err
	}

	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// Allow reports whether a request to rawURL may go out right now
func (l *Limiter) Allow(rawURL string) bool {
	domain, err := domainOf(rawURL)
	if err != nil {
		return false
	}
	return l.bucket(domain).Allow()
}

// SetDomainRate overrides the rate for one domain, for catalog hosts that
// advertise a crawl budget of their own
func (l *Limiter) SetDomainRate(domain string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.domainBurst
	}

	l.mu.Lock()
	l.buckets[domain] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	l.mu.Unlock()
}

// bucket returns the limiter for a domain, creating it on first use.
// Checked twice so the hot path stays on the read lock.
func (l *Limiter) bucket(domain string) *rate.Limiter {
	l.mu.RLock()
	b, ok := l.buckets[domain]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[domain]; ok {
		return b
	}

	b = rate.NewLimiter(l.domainRate, l.domainBurst)
	l.buckets[domain] = b
	return b
}

func domainOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return parsed.Host, nil
}
