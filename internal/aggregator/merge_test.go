package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotrep-labs/reputation-engine/internal/types"
)

var (
	t1 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
)

func xcmResult(chain string, score float64, updated time.Time) types.XCMResult {
	return types.XCMResult{
		Chain:         chain,
		Score:         score,
		Percentile:    70,
		Contributions: 42,
		Verified:      true,
		TxHash:        "0xA",
		LastUpdated:   updated,
	}
}

func dkgAsset(chain string, score float64, published time.Time) types.DKGAsset {
	return types.DKGAsset{
		UAL:             "did:dkg:otp/0x123/456",
		Chain:           chain,
		ReputationScore: score,
		PublishedAt:     published,
		Verified:        false,
	}
}

func TestMergeBothSourcesDKGWins(t *testing.T) {
	records := Merge(
		[]types.XCMResult{xcmResult("polkadot", 80, t1)},
		[]types.DKGAsset{dkgAsset("polkadot", 95, t2)},
		DefaultPercentileCeiling)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "polkadot", rec.Chain)
	assert.Equal(t, 95.0, rec.Score)
	assert.Equal(t, types.SourceBoth, rec.Source)
	assert.Equal(t, t2, rec.LastUpdated)
	assert.Equal(t, "did:dkg:otp/0x123/456", rec.DKGUAL)
	assert.Equal(t, "0xA", rec.XCMTxHash)
	assert.Equal(t, 42, rec.Contributions, "contribution count always comes from XCM")
}

func TestMergeXCMWinsWhenNewerAndHigher(t *testing.T) {
	records := Merge(
		[]types.XCMResult{xcmResult("polkadot", 90, t2)},
		[]types.DKGAsset{dkgAsset("polkadot", 70, t1)},
		DefaultPercentileCeiling)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, 90.0, rec.Score)
	assert.Equal(t, t2, rec.LastUpdated)
	assert.Equal(t, types.SourceBoth, rec.Source)
	assert.Equal(t, "did:dkg:otp/0x123/456", rec.DKGUAL,
		"losing asset still contributes its UAL as provenance")
}

func TestMergeOlderButHigherDKGWins(t *testing.T) {
	// Published before the XCM update but with a strictly greater score:
	// greater-value wins over last-writer, yet the record's last-updated
	// time must not move backward to the older publish time.
	records := Merge(
		[]types.XCMResult{xcmResult("polkadot", 80, t2)},
		[]types.DKGAsset{dkgAsset("polkadot", 95, t1)},
		DefaultPercentileCeiling)

	require.Len(t, records, 1)
	assert.Equal(t, 95.0, records[0].Score)
	assert.Equal(t, t2, records[0].LastUpdated)
	assert.Equal(t, "did:dkg:otp/0x123/456", records[0].DKGUAL)
}

func TestMergeEqualScoreNotOverwritten(t *testing.T) {
	// Equal score and older publish time: the XCM record stands.
	records := Merge(
		[]types.XCMResult{xcmResult("polkadot", 80, t2)},
		[]types.DKGAsset{dkgAsset("polkadot", 80, t1)},
		DefaultPercentileCeiling)

	require.Len(t, records, 1)
	assert.Equal(t, 80.0, records[0].Score)
	assert.Equal(t, t2, records[0].LastUpdated)
}

func TestMergeChainlessAssetStandsAlone(t *testing.T) {
	records := Merge(
		[]types.XCMResult{xcmResult("polkadot", 80, t1)},
		[]types.DKGAsset{dkgAsset("", 500, t2)},
		DefaultPercentileCeiling)

	require.Len(t, records, 2)
	standalone := records[1]
	assert.Equal(t, "dkg", standalone.Chain)
	assert.Equal(t, types.SourceDKG, standalone.Source)
	assert.Equal(t, 500.0, standalone.Score)
	assert.Equal(t, 50, standalone.Percentile)
	assert.Zero(t, standalone.Contributions)
}

func TestMergeUnmatchedChainAppended(t *testing.T) {
	records := Merge(
		[]types.XCMResult{xcmResult("polkadot", 80, t1)},
		[]types.DKGAsset{dkgAsset("kusama", 230, t2)},
		DefaultPercentileCeiling)

	require.Len(t, records, 2)
	assert.Equal(t, "polkadot", records[0].Chain)
	kusama := records[1]
	assert.Equal(t, "kusama", kusama.Chain)
	assert.Equal(t, types.SourceDKG, kusama.Source)
	assert.Equal(t, 23, kusama.Percentile)
	assert.Zero(t, kusama.Contributions)
}

func TestMergeVerifiedIsUnionOfSources(t *testing.T) {
	xcm := xcmResult("polkadot", 80, t1)
	xcm.Verified = false
	asset := dkgAsset("polkadot", 95, t2)
	asset.Verified = true

	records := Merge([]types.XCMResult{xcm}, []types.DKGAsset{asset}, DefaultPercentileCeiling)

	require.Len(t, records, 1)
	assert.True(t, records[0].Verified)
}

func TestMergeDuplicateXCMChainFirstWins(t *testing.T) {
	first := xcmResult("polkadot", 80, t1)
	second := xcmResult("polkadot", 99, t2)

	records := Merge([]types.XCMResult{first, second}, nil, DefaultPercentileCeiling)

	require.Len(t, records, 1)
	assert.Equal(t, 80.0, records[0].Score)
}

func TestMergeEmptySources(t *testing.T) {
	assert.Empty(t, Merge(nil, nil, DefaultPercentileCeiling))

	xcmOnly := Merge([]types.XCMResult{xcmResult("polkadot", 80, t1)}, nil, DefaultPercentileCeiling)
	require.Len(t, xcmOnly, 1)
	assert.Equal(t, types.SourceXCM, xcmOnly[0].Source)

	dkgOnly := Merge(nil, []types.DKGAsset{dkgAsset("kusama", 100, t1)}, DefaultPercentileCeiling)
	require.Len(t, dkgOnly, 1)
	assert.Equal(t, types.SourceDKG, dkgOnly[0].Source)
}

func TestEstimatePercentile(t *testing.T) {
	tests := []struct {
		score    float64
		ceiling  float64
		expected int
	}{
		{0, 1000, 0},
		{-5, 1000, 0},
		{999, 1000, 99},
		{995, 1000, 99},
		{1000, 1000, 100},
		{5000, 1000, 100},
		{333, 1000, 33},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, estimatePercentile(tt.score, tt.ceiling),
			"score=%v ceiling=%v", tt.score, tt.ceiling)
	}
}

func TestMergeNonPositiveCeilingFallsBack(t *testing.T) {
	records := Merge(nil, []types.DKGAsset{dkgAsset("kusama", 500, t1)}, 0)

	require.Len(t, records, 1)
	assert.Equal(t, 50, records[0].Percentile)
}

func TestReduce(t *testing.T) {
	assert.Equal(t, Metrics{}, Reduce(nil))
	assert.Equal(t, Metrics{}, Reduce([]types.ChainReputation{}))

	records := []types.ChainReputation{
		{Chain: "polkadot", Score: 80, Contributions: 40, Verified: true},
		{Chain: "kusama", Score: 60, Contributions: 10, Verified: false},
	}

	m := Reduce(records)
	assert.Equal(t, 2, m.RecordCount)
	assert.Equal(t, 70.0, m.MeanScore)
	assert.Equal(t, 50, m.TotalContributions)
	assert.Equal(t, 1, m.VerifiedCount)
}
