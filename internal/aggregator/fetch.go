package aggregator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotrep-labs/reputation-engine/internal/errors"
	"github.com/dotrep-labs/reputation-engine/internal/types"
)

// XCMClient queries per-chain reputation observations by account.
type XCMClient interface {
	QueryReputation(ctx context.Context, account string, chains []string) ([]types.XCMResult, error)
}

// DKGClient queries knowledge-graph reputation assets by developer id.
type DKGClient interface {
	QueryAssets(ctx context.Context, account string) ([]types.DKGAsset, error)
}

// Monitor receives aggregation outcomes. Satisfied by monitoring.Metrics.
type Monitor interface {
	IncrementUpstreamCall(source string, success bool)
	IncrementMerge(degraded bool)
}

type nopMonitor struct{}

func (nopMonitor) IncrementUpstreamCall(string, bool) {}
func (nopMonitor) IncrementMerge(bool)                {}

// Aggregator fetches from both sources concurrently and merges the results.
// Stateless between requests.
type Aggregator struct {
	xcm               XCMClient
	dkg               DKGClient
	sourceTimeout     time.Duration
	percentileCeiling float64
	monitor           Monitor
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSourceTimeout caps the time spent waiting on each source.
func WithSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.sourceTimeout = d
		}
	}
}

// WithPercentileCeiling sets the raw DKG score that maps to percentile 100.
func WithPercentileCeiling(ceiling float64) Option {
	return func(a *Aggregator) {
		if ceiling > 0 {
			a.percentileCeiling = ceiling
		}
	}
}

// WithMonitor records upstream outcomes and merge completions.
func WithMonitor(m Monitor) Option {
	return func(a *Aggregator) {
		if m != nil {
			a.monitor = m
		}
	}
}

// New creates an aggregator over the two upstream sources.
func New(xcm XCMClient, dkg DKGClient, opts ...Option) *Aggregator {
	a := &Aggregator{
		xcm:               xcm,
		dkg:               dkg,
		sourceTimeout:     10 * time.Second,
		percentileCeiling: DefaultPercentileCeiling,
		monitor:           nopMonitor{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MultiChainReputation queries both sources in parallel with independent
// timeouts, then merges whatever returned successfully. One source failing
// degrades the result to the surviving source; both failing is an upstream
// error. If the caller's context is cancelled before the join completes, the
// in-flight fetches are cancelled and no partial merge is returned.
func (a *Aggregator) MultiChainReputation(ctx context.Context, account string, chains []string) ([]types.ChainReputation, Metrics, error) {
	var (
		xcmResults []types.XCMResult
		xcmErr     error
		dkgAssets  []types.DKGAsset
		dkgErr     error
	)

	// A plain group: one source failing must not cancel the other, so each
	// goroutine captures its error instead of returning it.
	var g errgroup.Group

	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()
		xcmResults, xcmErr = a.xcm.QueryReputation(fetchCtx, account, chains)
		return nil
	})

	g.Go(func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()
		dkgAssets, dkgErr = a.dkg.QueryAssets(fetchCtx, account)
		return nil
	})

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, Metrics{}, errors.ToAppError(err)
	}

	a.monitor.IncrementUpstreamCall("xcm", xcmErr == nil)
	a.monitor.IncrementUpstreamCall("dkg", dkgErr == nil)

	if xcmErr != nil && dkgErr != nil {
		slog.Error("All reputation sources failed",
			"account", account,
			"xcm_error", xcmErr,
			"dkg_error", dkgErr)
		return nil, Metrics{}, errors.NewUpstreamError("xcm+dkg", xcmErr)
	}
	if xcmErr != nil {
		slog.Warn("XCM source failed, degrading to DKG-only merge",
			"account", account, "error", xcmErr)
		xcmResults = nil
	}
	if dkgErr != nil {
		slog.Warn("DKG source failed, degrading to XCM-only merge",
			"account", account, "error", dkgErr)
		dkgAssets = nil
	}

	records := Merge(xcmResults, dkgAssets, a.percentileCeiling)
	a.monitor.IncrementMerge(xcmErr != nil || dkgErr != nil)
	return records, Reduce(records), nil
}
