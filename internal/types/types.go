package types

import "time"

// ContributionEvent is a single verified contribution ingested from the
// verification pipeline. Immutable once verified.
type ContributionEvent struct {
	ID               string     `json:"id"`
	ActorID          string     `json:"actor_id"`
	WeekStart        time.Time  `json:"week_start"`
	Type             string     `json:"type"` // commit, pull_request, review, issue, documentation, bug_report
	Weight           float64    `json:"weight"`
	Timestamp        time.Time  `json:"timestamp"`
	Verified         bool       `json:"verified"`
	Repo             string     `json:"repo"`
	CID              string     `json:"cid,omitempty"`
	ReputationPoints float64    `json:"reputation_points"`
	AnchoredAt       *time.Time `json:"anchored_at,omitempty"`
}

// RankedAt returns the time used for recency tie-breaking: the anchor time
// when the event has been anchored, otherwise the event timestamp.
func (e *ContributionEvent) RankedAt() time.Time {
	if e.AnchoredAt != nil {
		return *e.AnchoredAt
	}
	return e.Timestamp
}

// WeeklyAggregate is the derived per-actor, per-week contribution count.
type WeeklyAggregate struct {
	ActorID   string    `json:"actor_id"`
	WeekStart time.Time `json:"week_start"`
	Count     int       `json:"count"`
}

// ReputationVector holds the four axis scores, each bounded to [0,100].
type ReputationVector struct {
	Quality     float64 `json:"quality"`
	Impact      float64 `json:"impact"`
	Consistency float64 `json:"consistency"`
	Community   float64 `json:"community"`
}

// ScoreResult is the composite reputation score for one actor.
type ScoreResult struct {
	ActorID     string           `json:"actor_id"`
	FinalScore  float64          `json:"final_score"`
	Vector      ReputationVector `json:"vector"`
	Explanation []string         `json:"explanation"`
}

// AnomalyRecord is one flagged actor-week from anomaly detection.
type AnomalyRecord struct {
	Actor     string    `json:"actor"`
	WeekStart time.Time `json:"week_start"`
	Count     int       `json:"count"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
	Z         float64   `json:"z"`
}

// EvidenceItem is one ranked piece of evidence backing a score.
type EvidenceItem struct {
	Summary          string     `json:"summary"`
	ExplanationNL    string     `json:"explanation_nl"`
	Repo             string     `json:"repo"`
	EventType        string     `json:"event_type"`
	ReputationPoints float64    `json:"reputation_points"`
	Verified         bool       `json:"verified"`
	CID              string     `json:"cid,omitempty"`
	AnchoredAt       *time.Time `json:"anchored_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Reputation sources for merged ChainReputation records.
const (
	SourceXCM  = "xcm"
	SourceDKG  = "dkg"
	SourceBoth = "both"
)

// XCMResult is a raw per-chain reputation observation returned by the
// cross-chain query layer.
type XCMResult struct {
	Chain         string    `json:"chain"`
	Score         float64   `json:"score"`
	Percentile    int       `json:"percentile"`
	Contributions int       `json:"contributions"`
	Verified      bool      `json:"verified"`
	TxHash        string    `json:"tx_hash"`
	LastUpdated   time.Time `json:"last_updated"`
}

// DKGAsset is a reputation knowledge asset fetched from the decentralized
// knowledge graph, identified by its UAL.
type DKGAsset struct {
	UAL             string    `json:"ual"`
	Chain           string    `json:"chain,omitempty"`
	ReputationScore float64   `json:"reputation_score"`
	PublishedAt     time.Time `json:"published_at"`
	Verified        bool      `json:"verified"`
}

// ChainReputation is one merged, immutable per-chain reputation record.
type ChainReputation struct {
	Chain         string    `json:"chain"`
	Score         float64   `json:"score"`
	Percentile    int       `json:"percentile"`
	Contributions int       `json:"contributions"`
	Verified      bool      `json:"verified"`
	LastUpdated   time.Time `json:"last_updated"`
	Source        string    `json:"source"` // xcm, dkg, both
	DKGUAL        string    `json:"dkg_ual,omitempty"`
	XCMTxHash     string    `json:"xcm_tx_hash,omitempty"`
}

// IngestRequest is the batch payload posted by the ingestion pipeline.
type IngestRequest struct {
	Events []ContributionEvent `json:"events" binding:"required"`
}
