package rerank

import (
	"context"
	"net/http"
)

// cohereProvider targets the Cohere v2 rerank API and compatible
// self-hosted endpoints. Authentication is a bearer token.
type cohereProvider struct {
	endpoint string
	apiKey   string
}

func (p *cohereProvider) name() string { return "cohere" }

func (p *cohereProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := newJSONRequest(ctx, p.endpoint, body)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return req, nil
}
