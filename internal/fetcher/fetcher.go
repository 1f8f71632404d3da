// Package fetcher retrieves pages politely: one HTTP client, a
// per-host rate limit, and bounded response bodies.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const (
	defaultUserAgent   = "outreach-cli/1.0 (contact discovery; abuse: ops@sells-group.com)"
	defaultMaxBodySize = 2 << 20 // 2 MiB, contact pages are small
	defaultTimeout     = 15 * time.Second
)

// Fetcher downloads pages with a per-host request rate cap so crawling
// one employer's site never hammers it.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	perHostRPS  rate.Limit
	burst       int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Fetcher)

func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithPerHostRate caps requests per second to any single host.
func WithPerHostRate(rps float64, burst int) Option {
	return func(f *Fetcher) {
		f.perHostRPS = rate.Limit(rps)
		f.burst = burst
	}
}

func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) { f.maxBodySize = n }
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: defaultTimeout},
		userAgent:   defaultUserAgent,
		maxBodySize: defaultMaxBodySize,
		perHostRPS:  rate.Limit(1),
		burst:       2,
		limiters:    make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.perHostRPS, f.burst)
		f.limiters[host] = l
	}
	return l
}

// Page is one fetched document.
type Page struct {
	URL         string
	FinalURL    string
	Body        []byte
	ContentType string
}

// IsHTML reports whether the response claimed an HTML content type.
func (p *Page) IsHTML() bool {
	return strings.Contains(p.ContentType, "text/html") ||
		strings.Contains(p.ContentType, "application/xhtml")
}

// Fetch GETs url, waiting on the host's rate limiter first. Transient
// statuses come back wrapped as resilience.TransientError so callers
// can retry; other non-2xx statuses are permanent failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "building request for %s", url)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	if err := f.limiter(req.URL.Hostname()).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit wait")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetching %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := eris.Errorf("fetching %s: status %d", url, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, eris.Wrapf(err, "reading body of %s", url)
	}
	return &Page{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
