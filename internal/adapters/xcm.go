// Package adapters holds HTTP clients for the two upstream reputation
// sources: the cross-chain (XCM) query gateway and the DKG edge node.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dotrep-labs/reputation-engine/internal/errors"
	"github.com/dotrep-labs/reputation-engine/internal/resilience"
	"github.com/dotrep-labs/reputation-engine/internal/types"
)

// XCMAdapter queries per-chain reputation observations through the XCM
// gateway service.
type XCMAdapter struct {
	baseURL string
	http    *resilience.HTTPClient
}

// xcmResponse is the gateway's wire shape.
type xcmResponse struct {
	Results []types.XCMResult `json:"results"`
}

// NewXCMAdapter creates an adapter for the given gateway base URL.
func NewXCMAdapter(baseURL string, timeout time.Duration) *XCMAdapter {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	})
	return &XCMAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    resilience.NewHTTPClient(timeout, breaker),
	}
}

// QueryReputation fetches reputation observations for an account on the
// given chains. An account unknown to every chain returns an empty slice.
func (x *XCMAdapter) QueryReputation(ctx context.Context, account string, chains []string) ([]types.XCMResult, error) {
	endpoint := fmt.Sprintf("%s/reputation/%s?chains=%s",
		x.baseURL, url.PathEscape(account), url.QueryEscape(strings.Join(chains, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to build XCM gateway request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := x.http.Do(ctx, req)
	if err != nil {
		return nil, errors.NewUpstreamError("xcm", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []types.XCMResult{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.NewUpstreamError("xcm",
			fmt.Errorf("gateway status %d: %s", resp.StatusCode, string(body)))
	}

	var payload xcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.NewUpstreamError("xcm", fmt.Errorf("decoding gateway response: %w", err))
	}
	if payload.Results == nil {
		return []types.XCMResult{}, nil
	}
	return payload.Results, nil
}

// BreakerStats exposes circuit breaker state for the health endpoint.
func (x *XCMAdapter) BreakerStats() map[string]interface{} {
	return x.http.BreakerStats()
}

// Close releases idle connections.
func (x *XCMAdapter) Close() {
	x.http.Close()
}
