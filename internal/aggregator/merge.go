// Package aggregator merges per-chain reputation observations from the
// cross-chain query layer (XCM) and the decentralized knowledge graph (DKG)
// into unified ChainReputation records.
package aggregator

import (
	"math"

	"github.com/dotrep-labs/reputation-engine/internal/types"
)

// DefaultPercentileCeiling is the raw DKG score that maps to the 100th
// percentile when no XCM-computed percentile is available. The upstream
// scale is inconsistent between sources; keep this configurable.
const DefaultPercentileCeiling = 1000.0

// Merge reconciles XCM results and DKG assets into one record per chain.
//
// XCM results seed the output in arrival order. Each DKG asset with a chain
// is matched against the seeded records; on a match the record is upgraded
// to source "both" and the DKG score wins only if it is strictly greater
// than the current score or the asset was published after the record's
// lastUpdated (last-writer/greater-value hybrid, not an overwrite). Assets
// without a chain become their own "dkg"-labeled record. Unmatched assets
// are appended in DKG input order with a percentile derived linearly from
// the raw score against ceiling, floored, and zero contributions.
//
// The per-chain conflict resolution is order-independent for a given
// XCM/DKG pair; insertion order of new DKG-only records follows input order.
func Merge(xcm []types.XCMResult, assets []types.DKGAsset, ceiling float64) []types.ChainReputation {
	if ceiling <= 0 {
		ceiling = DefaultPercentileCeiling
	}

	records := make([]types.ChainReputation, 0, len(xcm)+len(assets))
	index := make(map[string]int, len(xcm))

	for _, res := range xcm {
		if _, dup := index[res.Chain]; dup {
			continue
		}
		index[res.Chain] = len(records)
		records = append(records, types.ChainReputation{
			Chain:         res.Chain,
			Score:         res.Score,
			Percentile:    res.Percentile,
			Contributions: res.Contributions,
			Verified:      res.Verified,
			LastUpdated:   res.LastUpdated,
			Source:        types.SourceXCM,
			XCMTxHash:     res.TxHash,
		})
	}

	for _, asset := range assets {
		if asset.Chain == "" {
			// Chainless assets stand alone under the synthetic "dkg" chain.
			records = append(records, newDKGRecord(asset, "dkg", ceiling))
			continue
		}

		i, ok := index[asset.Chain]
		if !ok {
			index[asset.Chain] = len(records)
			records = append(records, newDKGRecord(asset, asset.Chain, ceiling))
			continue
		}

		rec := records[i]
		if rec.Source == types.SourceXCM {
			rec.Source = types.SourceBoth
		}
		if asset.ReputationScore > rec.Score || asset.PublishedAt.After(rec.LastUpdated) {
			rec.Score = asset.ReputationScore
			// An older asset can win on score alone; the record's
			// last-updated time never moves backward.
			if asset.PublishedAt.After(rec.LastUpdated) {
				rec.LastUpdated = asset.PublishedAt
			}
			rec.DKGUAL = asset.UAL
		} else if rec.DKGUAL == "" {
			rec.DKGUAL = asset.UAL
		}
		rec.Verified = rec.Verified || asset.Verified
		records[i] = rec
	}

	return records
}

func newDKGRecord(asset types.DKGAsset, chain string, ceiling float64) types.ChainReputation {
	return types.ChainReputation{
		Chain:         chain,
		Score:         asset.ReputationScore,
		Percentile:    estimatePercentile(asset.ReputationScore, ceiling),
		Contributions: 0, // DKG assets carry no contribution count
		Verified:      asset.Verified,
		LastUpdated:   asset.PublishedAt,
		Source:        types.SourceDKG,
		DKGUAL:        asset.UAL,
	}
}

// estimatePercentile maps a raw DKG score onto [0,100] linearly against the
// configured ceiling, floored.
func estimatePercentile(score, ceiling float64) int {
	if score <= 0 {
		return 0
	}
	p := int(math.Floor(score / ceiling * 100))
	if p > 100 {
		return 100
	}
	return p
}

// Metrics are simple reductions over a merged record set. Empty input
// yields zero values, not an error.
type Metrics struct {
	RecordCount        int     `json:"record_count"`
	MeanScore          float64 `json:"mean_score"`
	TotalContributions int     `json:"total_contributions"`
	VerifiedCount      int     `json:"verified_count"`
}

// Reduce computes aggregate metrics over merged records.
func Reduce(records []types.ChainReputation) Metrics {
	m := Metrics{RecordCount: len(records)}
	if len(records) == 0 {
		return m
	}
	sum := 0.0
	for _, rec := range records {
		sum += rec.Score
		m.TotalContributions += rec.Contributions
		if rec.Verified {
			m.VerifiedCount++
		}
	}
	m.MeanScore = sum / float64(len(records))
	return m
}
