package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"castforge/internal/config"
	"castforge/internal/support/exception"
)

const moduleName = "upstream"

// GeminiClient talks to the Google Generative Language API
// (generateContent). Only the fields castforge needs are modeled.
type GeminiClient struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	// do is swapped in tests to stub the transport.
	do func(*http.Request) (*http.Response, error)
}

// DefaultBaseURL is the Google Generative Language API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// NewGeminiClient builds a client from config plus the process-level
// credential. The key may be empty when every request carries its own.
func NewGeminiClient(cfg config.UpstreamConfig, apiKey string) *GeminiClient {
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 120
	}
	hc := &http.Client{Timeout: time.Duration(timeout) * time.Second}
	return &GeminiClient{
		hc:      hc,
		baseURL: baseURL,
		apiKey:  apiKey,
		do:      hc.Do,
	}
}

// Request/response wire types (minimal fields).
type gmPart struct {
	Text string `json:"text"`
}
type gmContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gmPart `json:"parts"`
}
type gmGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}
type gmReq struct {
	Contents         []gmContent         `json:"contents"`
	GenerationConfig *gmGenerationConfig `json:"generationConfig,omitempty"`
}
type gmResp struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Invoke implements Client against the generateContent endpoint.
// 429 maps to a transient rate-limited error, 408/5xx to transient errors,
// any other non-2xx to a permanent one.
func (c *GeminiClient) Invoke(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(&gmReq{
		Contents: []gmContent{{Role: "user", Parts: []gmPart{{Text: req.Prompt}}}},
		GenerationConfig: &gmGenerationConfig{
			MaxOutputTokens: req.MaxOutputTokens,
		},
	})
	if err != nil {
		return Result{}, exception.New(moduleName, "failed to encode request", err, false)
	}

	apiKey := c.apiKey
	if req.APIKey != "" {
		apiKey = req.APIKey
	}
	if apiKey == "" {
		return Result{}, exception.New(moduleName, "missing API key", exception.ErrValidation, false)
	}

	u, err := url.Parse(fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(req.Model)))
	if err != nil {
		return Result{}, exception.New(moduleName, "invalid upstream URL", err, false)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return Result{}, exception.New(moduleName, "failed to build request", err, false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		// Only surface the caller's own cancellation as a context error.
		// The client-side timeout also matches context.DeadlineExceeded;
		// with a live caller context it is an upstream fault and retryable.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, exception.New(moduleName, "upstream call failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{}, exception.New(moduleName, "upstream rate limited", exception.ErrRateLimited, true)
	}
	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := fmt.Sprintf("upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
		transient := resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode/100 == 5
		return Result{}, exception.New(moduleName, msg, nil, transient)
	}

	var gr gmResp
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return Result{}, exception.New(moduleName, "failed to decode upstream response", err, true)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return Result{}, exception.New(moduleName, "upstream returned no candidates", nil, true)
	}
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if text == "" {
		return Result{}, exception.New(moduleName, "upstream returned empty text", nil, true)
	}

	return Result{
		Text:         text,
		InputTokens:  gr.UsageMetadata.PromptTokenCount,
		OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
	}, nil
}

var _ Client = (*GeminiClient)(nil)
