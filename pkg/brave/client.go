// Package brave is a minimal client for the Brave Web Search API.
package brave

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1"

// Client is the search surface the rest of the tool consumes.
type Client interface {
	// WebSearch runs one query and returns up to count results.
	WebSearch(ctx context.Context, query string, count int) ([]WebResult, error)
}

// WebResult is one organic result.
type WebResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type searchResponse struct {
	Web struct {
		Results []WebResult `json:"results"`
	} `json:"web"`
}

type httpClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	backoff time.Duration
}

type Option func(*httpClient)

func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.client = hc }
}

// WithRetryBackoff overrides the initial retry delay.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *httpClient) { c.backoff = d }
}

func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("brave: api key is required")
	}
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		backoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *httpClient) WebSearch(ctx context.Context, query string, count int) ([]WebResult, error) {
	if count <= 0 || count > 20 {
		count = 10
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/web/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "brave: building request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	body, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "brave: decoding response")
	}
	return parsed.Web.Results, nil
}

// retryDo issues the request, retrying rate limits and server errors
// with doubling backoff.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, error) {
	const maxAttempts = 3
	backoff := c.backoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "brave: search request")
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = eris.Wrap(err, "brave: reading response")
			continue
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = eris.Errorf("brave: search returned status %d: %s", resp.StatusCode, truncate(body, 200))
		default:
			return nil, eris.Errorf("brave: search returned status %d: %s", resp.StatusCode, truncate(body, 200))
		}
	}
	return nil, lastErr
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
