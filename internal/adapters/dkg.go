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

// DKGAdapter fetches reputation knowledge assets from an OriginTrail-style
// DKG edge node.
type DKGAdapter struct {
	baseURL string
	http    *resilience.HTTPClient
}

// dkgResponse is the edge node's wire shape.
type dkgResponse struct {
	Assets []types.DKGAsset `json:"assets"`
}

// NewDKGAdapter creates an adapter for the given edge node base URL.
func NewDKGAdapter(baseURL string, timeout time.Duration) *DKGAdapter {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	})
	return &DKGAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    resilience.NewHTTPClient(timeout, breaker),
	}
}

// QueryAssets fetches the reputation assets published for a developer. A
// developer with no published assets returns an empty slice.
func (d *DKGAdapter) QueryAssets(ctx context.Context, account string) ([]types.DKGAsset, error) {
	endpoint := fmt.Sprintf("%s/assets?developer=%s", d.baseURL, url.QueryEscape(account))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to build DKG node request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(ctx, req)
	if err != nil {
		return nil, errors.NewUpstreamError("dkg", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []types.DKGAsset{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.NewUpstreamError("dkg",
			fmt.Errorf("edge node status %d: %s", resp.StatusCode, string(body)))
	}

	var payload dkgResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.NewUpstreamError("dkg", fmt.Errorf("decoding edge node response: %w", err))
	}
	if payload.Assets == nil {
		return []types.DKGAsset{}, nil
	}
	return payload.Assets, nil
}

// BreakerStats exposes circuit breaker state for the health endpoint.
func (d *DKGAdapter) BreakerStats() map[string]interface{} {
	return d.http.BreakerStats()
}

// Close releases idle connections.
func (d *DKGAdapter) Close() {
	d.http.Close()
}
