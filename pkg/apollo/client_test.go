package apollo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEmail(t *testing.T) {
	tests := []struct {
		status string
		want   Verdict
	}{
		{"verified", VerdictValid},
		{"invalid", VerdictInvalid},
		{"extrapolated", VerdictUnknown},
		{"", VerdictUnknown},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/people/match", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			var req matchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "amy@stripe.com", req.Email)
			_, _ = w.Write([]byte(`{"person":{"email":"amy@stripe.com","email_status":"` + tt.status + `"}}`))
		}))

		c, err := NewClient("secret", WithBaseURL(srv.URL))
		require.NoError(t, err)
		verdict, err := c.VerifyEmail(context.Background(), "amy@stripe.com")
		require.NoError(t, err)
		assert.Equal(t, tt.want, verdict, "email_status %q", tt.status)
		srv.Close()
	}
}

func TestVerifyEmailUnknownPerson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	verdict, err := c.VerifyEmail(context.Background(), "nobody@acme.com")
	require.NoError(t, err)
	assert.Equal(t, VerdictUnknown, verdict)
}

func TestVerifyEmailRetriesServerError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"person":{"email_status":"verified"}}`))
	}))
	defer srv.Close()

	c, err := NewClient("k", WithBaseURL(srv.URL), WithRetryBackoff(time.Millisecond))
	require.NoError(t, err)
	verdict, err := c.VerifyEmail(context.Background(), "amy@stripe.com")
	require.NoError(t, err)
	assert.Equal(t, VerdictValid, verdict)
	assert.EqualValues(t, 2, calls.Load())
}

func TestVerifyEmailAuthFailureNoRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient("bad", WithBaseURL(srv.URL))
	require.NoError(t, err)
	verdict, err := c.VerifyEmail(context.Background(), "amy@stripe.com")
	require.Error(t, err)
	assert.Equal(t, VerdictUnknown, verdict)
	assert.EqualValues(t, 1, calls.Load())
}
