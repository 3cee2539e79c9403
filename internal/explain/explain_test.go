package explain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotrep-labs/reputation-engine/internal/types"
)

func evidenceEvent(id string, points float64, ts time.Time) types.ContributionEvent {
	return types.ContributionEvent{
		ID:               id,
		ActorID:          "alice",
		Type:             "pull_request",
		Timestamp:        ts,
		Verified:         true,
		Repo:             "dotrep/core",
		ReputationPoints: points,
	}
}

func TestTopEvidenceEmptyAndNonPositiveLimit(t *testing.T) {
	events := []types.ContributionEvent{
		evidenceEvent("e1", 10, time.Now()),
	}

	assert.Empty(t, TopEvidence(nil, 5))
	assert.Empty(t, TopEvidence(events, 0))
	assert.Empty(t, TopEvidence(events, -3))
}

func TestTopEvidenceRanksByPoints(t *testing.T) {
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	events := []types.ContributionEvent{
		evidenceEvent("low", 5, base),
		evidenceEvent("high", 90, base),
		evidenceEvent("mid", 40, base.Add(time.Hour)),
	}

	items := TopEvidence(events, 2)

	require.Len(t, items, 2)
	assert.Equal(t, 90.0, items[0].ReputationPoints)
	assert.Equal(t, 40.0, items[1].ReputationPoints)
}

func TestTopEvidenceLimitExceedsEvents(t *testing.T) {
	events := []types.ContributionEvent{
		evidenceEvent("e1", 10, time.Now()),
		evidenceEvent("e2", 20, time.Now()),
	}

	assert.Len(t, TopEvidence(events, 50), 2)
}

func TestTopEvidenceTieBreakByRecency(t *testing.T) {
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	older := evidenceEvent("older", 50, base)
	newer := evidenceEvent("newer", 50, base.AddDate(0, 1, 0))

	items := TopEvidence([]types.ContributionEvent{older, newer}, 2)

	require.Len(t, items, 2)
	assert.Equal(t, newer.Timestamp, items[0].CreatedAt)
}

func TestTopEvidenceAnchorTimeWinsTie(t *testing.T) {
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	anchor := base.AddDate(0, 2, 0)

	anchored := evidenceEvent("anchored", 50, base)
	anchored.AnchoredAt = &anchor
	unanchored := evidenceEvent("unanchored", 50, base.AddDate(0, 1, 0))

	items := TopEvidence([]types.ContributionEvent{unanchored, anchored}, 2)

	require.Len(t, items, 2)
	// The anchor time post-dates the other event's timestamp, so the
	// anchored event ranks first despite its older creation time.
	assert.Equal(t, base, items[0].CreatedAt)
	assert.NotNil(t, items[0].AnchoredAt)
}

func TestTopEvidenceTieBreakByIDIsDeterministic(t *testing.T) {
	ts := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	a := evidenceEvent("aaa", 50, ts)
	a.Repo = "dotrep/first"
	b := evidenceEvent("bbb", 50, ts)
	b.Repo = "dotrep/second"

	forward := TopEvidence([]types.ContributionEvent{a, b}, 2)
	backward := TopEvidence([]types.ContributionEvent{b, a}, 2)

	// Points and times fully tie; the event id decides, so input order is
	// irrelevant.
	assert.Equal(t, forward, backward)
	require.Len(t, forward, 2)
	assert.Equal(t, "dotrep/first", forward[0].Repo)
}

func TestNarrationTemplates(t *testing.T) {
	tests := []struct {
		eventType string
		contains  string
	}{
		{"commit", "Committed code to dotrep/core"},
		{"pull_request", "Opened a pull request in dotrep/core"},
		{"review", "Reviewed code in dotrep/core"},
		{"issue", "Reported or triaged an issue in dotrep/core"},
		{"documentation", "Improved documentation in dotrep/core"},
		{"bug_report", "Filed a bug report in dotrep/core"},
		{"conference_talk", "Contributed a conference_talk to dotrep/core"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			ev := evidenceEvent("e1", 12.5, time.Now())
			ev.Type = tt.eventType

			items := TopEvidence([]types.ContributionEvent{ev}, 1)

			require.Len(t, items, 1)
			assert.Contains(t, items[0].ExplanationNL, tt.contains)
			assert.Contains(t, items[0].ExplanationNL, "12.5")
			assert.NotContains(t, items[0].ExplanationNL, "anchored on-chain")
		})
	}
}

func TestNarrationMentionsAnchor(t *testing.T) {
	anchor := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	ev := evidenceEvent("e1", 30, anchor.AddDate(0, 0, -1))
	ev.AnchoredAt = &anchor

	items := TopEvidence([]types.ContributionEvent{ev}, 1)

	require.Len(t, items, 1)
	assert.Contains(t, items[0].ExplanationNL, "anchored on-chain")
	assert.Equal(t, "pull_request in dotrep/core (+30.0 pts)", items[0].Summary)
}
