package resilience

import (
	"context"
	"net/http"
	"time"
)

// HTTPClient is a pooled HTTP client with circuit breaker protection, shared
// by the upstream adapters.
type HTTPClient struct {
	client  *http.Client
	breaker *Breaker
	retry   RetryConfig
}

// NewHTTPClient builds a client with sane transport limits for a single
// upstream host.
func NewHTTPClient(timeout time.Duration, breaker *Breaker) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxConnsPerHost:       20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		breaker: breaker,
		retry:   DefaultRetryConfig(),
	}
}

// Do executes the request under breaker protection with transport-level
// retries. The response body is the caller's to close.
func (h *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response

	err := Retry(ctx, h.retry, func() error {
		return h.breaker.Call(func() error {
			r, err := h.client.Do(req.Clone(ctx))
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// BreakerStats exposes the breaker snapshot for the health endpoint.
func (h *HTTPClient) BreakerStats() map[string]interface{} {
	return h.breaker.Stats()
}

// Close releases idle transport connections.
func (h *HTTPClient) Close() {
	if transport, ok := h.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
