// Package rerank provides HTTP clients for cross-encoder reranking
// providers. Reranking is best-effort: callers treat any error as a
// signal to keep their existing scores.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zcb617/openclaw-memory-pro/config"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory"
)

const defaultTimeout = 5 * time.Second

// provider prepares a provider-specific HTTP request.
type provider interface {
	// name identifies the provider in errors.
	name() string

	// newRequest builds the rerank HTTP request for one call.
	newRequest(ctx context.Context, body []byte) (*http.Request, error)
}

// rerankRequest is the wire format shared by the supported providers.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// rerankResponse is the wire format of a rerank reply.
type rerankResponse struct {
	Results []memory.RerankResult `json:"results"`
}

// Client calls a cross-encoder rerank API. The provider shape is chosen
// once at construction; every call makes exactly one attempt within the
// configured timeout.
type Client struct {
	provider   provider
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a rerank client from configuration.
func New(cfg config.RerankConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("rerank: endpoint is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("rerank: model is required")
	}

	var p provider
	switch cfg.Provider {
	case "cohere", "":
		p = &cohereProvider{endpoint: cfg.Endpoint, apiKey: cfg.APIKey}
	case "azure":
		if cfg.APIVersion == "" {
			return nil, fmt.Errorf("rerank: api_version is required for the azure provider")
		}
		p = &azureProvider{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, apiVersion: cfg.APIVersion}
	default:
		return nil, fmt.Errorf("rerank: unknown provider %q", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		provider:   p,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}, nil
}

// Rerank scores documents against the query. One attempt, no retries;
// the caller falls back to its own scores on error.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]memory.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rerank: rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: marshal request: %w", err)
	}

	req, err := c.provider.newRequest(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("rerank: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: %s request failed: %w", c.provider.name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank: %s returned status %d: %s",
			c.provider.name(), resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}
	return parsed.Results, nil
}

func newJSONRequest(ctx context.Context, endpoint string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
