package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const defaultEmbedEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/text-embedding-004"

// Embedder produces a vector for a piece of text. Satisfied by Client and
// by test fakes.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type embedRequest struct {
	Content struct {
		Parts []contentPart `json:"parts"`
	} `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// EmbedText requests an embedding for text. Unlike Generate there is no
// fallback here: embeddings are an enrichment and callers treat failure as
// non-fatal.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if c.APIKey == "" {
		return nil, errors.New("embedding requires an API key")
	}

	var reqBody embedRequest
	reqBody.Content.Parts = []contentPart{{Text: text}}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	embedEndpoint := c.EmbedEndpoint
	if embedEndpoint == "" {
		embedEndpoint = defaultEmbedEndpoint
	}
	endpoint := fmt.Sprintf("%s:embedContent?key=%s", embedEndpoint, url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned status: %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, errors.New("response contained no embedding")
	}

	return parsed.Embedding.Values, nil
}
