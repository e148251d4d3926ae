package rerank

import (
	"context"
	"net/http"
)

// azureProvider targets Azure-hosted rerank deployments, which
// authenticate with an api-key header and require an explicit
// api-version header.
type azureProvider struct {
	endpoint   string
	apiKey     string
	apiVersion string
}

func (p *azureProvider) name() string { return "azure" }

func (p *azureProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := newJSONRequest(ctx, p.endpoint, body)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("api-key", p.apiKey)
	}
	req.Header.Set("api-version", p.apiVersion)
	return req, nil
}
