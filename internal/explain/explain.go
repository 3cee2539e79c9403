// Package explain selects and ranks the evidence items that justify an
// actor's score. Explanations are template-derived from event attributes so
// output is deterministic and testable.
package explain

import (
	"fmt"
	"sort"

	"github.com/dotrep-labs/reputation-engine/internal/types"
)

// TopEvidence returns the top-limit events by reputation points, ties broken
// by most-recent anchor (or event) time, then by event id for full
// determinism. Fewer events than limit returns all of them; zero events
// returns an empty slice, never an error.
func TopEvidence(events []types.ContributionEvent, limit int) []types.EvidenceItem {
	if limit <= 0 || len(events) == 0 {
		return []types.EvidenceItem{}
	}

	ranked := make([]types.ContributionEvent, len(events))
	copy(ranked, events)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ReputationPoints != ranked[j].ReputationPoints {
			return ranked[i].ReputationPoints > ranked[j].ReputationPoints
		}
		ti, tj := ranked[i].RankedAt(), ranked[j].RankedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ranked[i].ID < ranked[j].ID
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}

	items := make([]types.EvidenceItem, 0, limit)
	for _, ev := range ranked[:limit] {
		items = append(items, types.EvidenceItem{
			Summary:          summarize(ev),
			ExplanationNL:    narrate(ev),
			Repo:             ev.Repo,
			EventType:        ev.Type,
			ReputationPoints: ev.ReputationPoints,
			Verified:         ev.Verified,
			CID:              ev.CID,
			AnchoredAt:       ev.AnchoredAt,
			CreatedAt:        ev.Timestamp,
		})
	}
	return items
}

func summarize(ev types.ContributionEvent) string {
	return fmt.Sprintf("%s in %s (+%.1f pts)", ev.Type, ev.Repo, ev.ReputationPoints)
}

func narrate(ev types.ContributionEvent) string {
	var body string
	switch ev.Type {
	case "commit":
		body = fmt.Sprintf("Committed code to %s, earning %.1f reputation points.", ev.Repo, ev.ReputationPoints)
	case "pull_request":
		body = fmt.Sprintf("Opened a pull request in %s that earned %.1f reputation points.", ev.Repo, ev.ReputationPoints)
	case "review":
		body = fmt.Sprintf("Reviewed code in %s, contributing %.1f reputation points.", ev.Repo, ev.ReputationPoints)
	case "issue":
		body = fmt.Sprintf("Reported or triaged an issue in %s for %.1f reputation points.", ev.Repo, ev.ReputationPoints)
	case "documentation":
		body = fmt.Sprintf("Improved documentation in %s, earning %.1f reputation points.", ev.Repo, ev.ReputationPoints)
	case "bug_report":
		body = fmt.Sprintf("Filed a bug report in %s worth %.1f reputation points.", ev.Repo, ev.ReputationPoints)
	default:
		body = fmt.Sprintf("Contributed a %s to %s worth %.1f reputation points.", ev.Type, ev.Repo, ev.ReputationPoints)
	}
	if ev.AnchoredAt != nil {
		body += " The contribution is anchored on-chain."
	}
	return body
}
