// Package apollo is a minimal client for the Apollo.io people-match
// API, used only to verify email deliverability.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.apollo.io/v1"

// Verdict is the deliverability outcome for one address.
type Verdict string

const (
	VerdictValid   Verdict = "valid"
	VerdictInvalid Verdict = "invalid"
	VerdictUnknown Verdict = "unknown"
)

type Client interface {
	// VerifyEmail asks Apollo whether the address is deliverable.
	// Provider hiccups surface as VerdictUnknown with the error.
	VerifyEmail(ctx context.Context, email string) (Verdict, error)
}

type matchRequest struct {
	Email string `json:"email"`
}

type matchResponse struct {
	Person struct {
		Email       string `json:"email"`
		EmailStatus string `json:"email_status"`
	} `json:"person"`
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

func WithRetryBackoff(d time.Duration) Option {
	return func(c *httpClient) { c.backoff = d }
}

func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("apollo: api key is required")
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

func (c *httpClient) VerifyEmail(ctx context.Context, email string) (Verdict, error) {
	payload, err := json.Marshal(matchRequest{Email: email})
	if err != nil {
		return VerdictUnknown, eris.Wrap(err, "apollo: encoding request")
	}

	const maxAttempts = 3
	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return VerdictUnknown, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/people/match", bytes.NewReader(payload))
		if err != nil {
			return VerdictUnknown, eris.Wrap(err, "apollo: building request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "apollo: match request")
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = eris.Wrap(err, "apollo: reading response")
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var parsed matchResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return VerdictUnknown, eris.Wrap(err, "apollo: decoding response")
			}
			return verdictFromStatus(parsed.Person.EmailStatus), nil
		case resp.StatusCode == http.StatusNotFound:
			// no person on file says nothing about deliverability
			return VerdictUnknown, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = eris.Errorf("apollo: match returned status %d", resp.StatusCode)
		default:
			return VerdictUnknown, eris.Errorf("apollo: match returned status %d", resp.StatusCode)
		}
	}
	return VerdictUnknown, lastErr
}

func verdictFromStatus(status string) Verdict {
	switch status {
	case "verified", "valid":
		return VerdictValid
	case "invalid", "bounced", "undeliverable":
		return VerdictInvalid
	default:
		return VerdictUnknown
	}
}
