package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castforge/internal/config"
	"castforge/internal/support/exception"
)

func stubResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, handler func(*http.Request) (*http.Response, error)) *GeminiClient {
	t.Helper()
	c := NewGeminiClient(config.UpstreamConfig{BaseURL: "https://example.invalid"}, "test-key")
	c.do = handler
	return c
}

const successBody = `{
	"candidates": [{"content": {"parts": [{"text": "hello "}, {"text": "world"}]}}],
	"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 34}
}`

func TestGeminiInvokeSuccess(t *testing.T) {
	var seen *http.Request
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		seen = r
		return stubResponse(http.StatusOK, successBody), nil
	})

	res, err := c.Invoke(context.Background(), Request{Prompt: "hi", Model: "gemini-2.5-flash", MaxOutputTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, 12, res.InputTokens)
	assert.Equal(t, 34, res.OutputTokens)

	require.NotNil(t, seen)
	assert.Contains(t, seen.URL.Path, "models/gemini-2.5-flash:generateContent")
	assert.Equal(t, "test-key", seen.URL.Query().Get("key"))
}

func TestGeminiInvokeRequestKeyOverridesClientKey(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "per-job-key", r.URL.Query().Get("key"))
		return stubResponse(http.StatusOK, successBody), nil
	})
	_, err := c.Invoke(context.Background(), Request{Prompt: "hi", Model: "m", APIKey: "per-job-key"})
	require.NoError(t, err)
}

func TestGeminiInvokeMissingKey(t *testing.T) {
	c := NewGeminiClient(config.UpstreamConfig{}, "")
	_, err := c.Invoke(context.Background(), Request{Prompt: "hi", Model: "m"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrValidation))
}

func TestGeminiInvokeStatusClassification(t *testing.T) {
	cases := []struct {
		status      int
		transient   bool
		rateLimited bool
	}{
		{http.StatusTooManyRequests, true, true},
		{http.StatusRequestTimeout, true, false},
		{http.StatusInternalServerError, true, false},
		{http.StatusServiceUnavailable, true, false},
		{http.StatusBadRequest, false, false},
		{http.StatusForbidden, false, false},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(*http.Request) (*http.Response, error) {
			return stubResponse(tc.status, `{"error": "nope"}`), nil
		})
		_, err := c.Invoke(context.Background(), Request{Prompt: "p", Model: "m"})
		require.Error(t, err, "status=%d", tc.status)
		assert.Equal(t, tc.transient, exception.IsTransient(err), "status=%d", tc.status)
		assert.Equal(t, tc.rateLimited, errors.Is(err, exception.ErrRateLimited), "status=%d", tc.status)
	}
}

func TestGeminiInvokeTransportErrorIsTransient(t *testing.T) {
	// A client-side timeout matches context.DeadlineExceeded even though
	// the caller's context is still live. It must classify as a transient
	// upstream failure, never as a successful empty result.
	timeout := fmt.Errorf("Post \"https://example.invalid\": %w", context.DeadlineExceeded)
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, timeout
	})

	res, err := c.Invoke(context.Background(), Request{Prompt: "p", Model: "m"})
	require.Error(t, err)
	assert.True(t, exception.IsTransient(err))
	assert.Empty(t, res.Text)

	var be *exception.BatchError
	require.True(t, errors.As(err, &be))
	assert.ErrorIs(t, be.OriginalErr, context.DeadlineExceeded)
}

func TestGeminiInvokeCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		cancel()
		return nil, r.Context().Err()
	})

	_, err := c.Invoke(ctx, Request{Prompt: "p", Model: "m"})
	require.Error(t, err)
	// Cancellation is the caller's doing, not an upstream fault.
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, exception.IsTransient(err))
}

func TestGeminiInvokeEmptyCandidatesIsTransient(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return stubResponse(http.StatusOK, `{"candidates": []}`), nil
	})
	_, err := c.Invoke(context.Background(), Request{Prompt: "p", Model: "m"})
	require.Error(t, err)
	assert.True(t, exception.IsTransient(err))
}
