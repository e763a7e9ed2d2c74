// Package ai is the client for the AI enrichment proxy: multimodal
// image analysis and text embeddings behind a single POST endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lostfound-ai/internal/contextutil"
)

// TaskKind selects the embedding task type. Documents and queries are
// embedded differently but remain comparable.
type TaskKind string

const (
	// TaskDocument embeds item search text for indexing.
	TaskDocument TaskKind = "RETRIEVAL_DOCUMENT"
	// TaskQuery embeds a user query for ranking.
	TaskQuery TaskKind = "RETRIEVAL_QUERY"
)

// Fallback values applied when image analysis cannot be parsed.
const (
	FallbackNameTag     = "Unknown"
	FallbackDescription = "Unable to analyze image"
)

// Client talks to the enrichment proxy. It owns no state beyond the
// HTTP client; cancellation is carried by the request context.
type Client struct {
	BaseURL      string
	APIKey       string
	ExpectedSize int // expected embedding dimension, 0 disables validation
	client       *http.Client
}

// NewClient creates a new enrichment client. expectedSize is the
// embedding dimension every returned vector is validated against; pass
// 0 to skip validation.
func NewClient(baseURL, apiKey string, expectedSize int) *Client {
	return &Client{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		ExpectedSize: expectedSize,
		client:       http.DefaultClient,
	}
}

// Analysis is the structured result of analyzing an item photo.
type Analysis struct {
	NameTag     string `json:"nameTag"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// proxyRequest is the request payload understood by the proxy for both
// generation and embedding modes.
type proxyRequest struct {
	Mode      string `json:"mode"`
	Prompt    string `json:"prompt,omitempty"`
	ImageData string `json:"imageData,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Text      string `json:"text,omitempty"`
	TaskType  string `json:"taskType,omitempty"`
}

// generateResponse mirrors the provider's generation payload. The
// analysis JSON is embedded as text in the first candidate part.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// embedResponse mirrors the provider's embedding payload.
type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// AnalyzeImage sends an item photo to the multimodal endpoint and
// returns structured fields constrained to the given category
// vocabulary. Parse failures are recovered with fallback values and a
// nil error; transport and non-2xx failures return an error. A
// cancelled context is reported via the error and must be treated as
// silence by callers, not as a failure.
func (c *Client) AnalyzeImage(ctx context.Context, image []byte, mimeType string, vocabulary []string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		// Cancelled before dispatch: the call must not be sent.
		return Analysis{}, err
	}
	if len(vocabulary) == 0 {
		return Analysis{}, fmt.Errorf("empty category vocabulary")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	prompt := fmt.Sprintf(
		`Analyze this lost item photo. Categorize as one of: %s. Return JSON: { "nameTag": "string", "category": "string", "description": "string" }`,
		strings.Join(vocabulary, ", "),
	)
	payload := proxyRequest{
		Mode:      "generate",
		Prompt:    prompt,
		ImageData: base64.StdEncoding.EncodeToString(image),
		MimeType:  mimeType,
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		return Analysis{}, err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fallbackAnalysis(vocabulary), nil
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return fallbackAnalysis(vocabulary), nil
	}

	return parseAnalysis(resp.Candidates[0].Content.Parts[0].Text, vocabulary), nil
}

// EmbedText sends text to the embedding endpoint. A nil vector with a
// nil error means "no embedding" and is a normal outcome: non-success
// responses, malformed payloads and dimension mismatches are all
// reported that way. The only non-nil error is context cancellation.
func (c *Client) EmbedText(ctx context.Context, text string, task TaskKind) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	logger := contextutil.LoggerFromContext(ctx)

	payload := proxyRequest{
		Mode:     "embed",
		Text:     text,
		TaskType: string(task),
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WarnContext(ctx, "embedding request failed", "error", err)
		return nil, nil
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logger.WarnContext(ctx, "malformed embedding payload", "error", err)
		return nil, nil
	}
	if len(resp.Embedding.Values) == 0 {
		logger.WarnContext(ctx, "embedding payload missing values")
		return nil, nil
	}
	if c.ExpectedSize > 0 && len(resp.Embedding.Values) != c.ExpectedSize {
		logger.WarnContext(ctx, "embedding size mismatch",
			"got", len(resp.Embedding.Values), "want", c.ExpectedSize)
		return nil, nil
	}

	return resp.Embedding.Values, nil
}

// post issues the proxy request and returns the raw response body for
// 2xx responses.
func (c *Client) post(ctx context.Context, payload proxyRequest) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/gemini/analyze", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Aborted mid-flight; distinguishable from failure.
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	return raw, nil
}

func fallbackAnalysis(vocabulary []string) Analysis {
	return Analysis{
		NameTag:     FallbackNameTag,
		Category:    vocabulary[0],
		Description: FallbackDescription,
	}
}
