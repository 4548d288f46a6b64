// Package embedding calls the sentence-embedding service used for semantic
// product search.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Dimensions is the vector size stored in shipments.embedding.
const Dimensions = 384

// Func is the signature of anything that can embed a piece of text.
type Func func(ctx context.Context, text string) ([]float32, error)

// Client talks to the embedding service over HTTP.
type Client struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

// NewClient returns a client for the service at url.
func NewClient(url string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        url,
		logger:     logger.With("component", "embedding_client"),
	}
}

type request struct {
	Text string `json:"text"`
}

type response struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(request{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding service returned non-OK status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(out.Embedding) != Dimensions {
		c.logger.WarnContext(ctx, "Embedding has unexpected size", "dims", len(out.Embedding), "want", Dimensions)
		return nil, fmt.Errorf("embedding service returned %d dimensions, want %d", len(out.Embedding), Dimensions)
	}
	return out.Embedding, nil
}
