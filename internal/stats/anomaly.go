// Package stats flags anomalous actor-weeks by comparing each actor's
// weekly contribution count against the rest of the population for the same
// week (cross-sectional, not per-actor over time).
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/dotrep-labs/reputation-engine/internal/types"
)

// Options controls a detection run.
type Options struct {
	// Threshold is the sensitivity k: an actor-week is flagged when
	// |z| >= k.
	Threshold float64
	// Robust switches the per-week baseline from mean/stddev to
	// median/MAD, which resists contamination by the outliers themselves.
	Robust bool
}

// DetectAnomalies computes per-week cross-sectional z-scores over the given
// aggregates and returns the flagged actor-weeks ordered by descending |z|,
// ties broken by earlier week first, then actor id ascending. Weeks whose
// dispersion is zero flag nothing regardless of the threshold. Pure; the
// input slice is not modified.
func DetectAnomalies(rows []types.WeeklyAggregate, opts Options) []types.AnomalyRecord {
	if len(rows) == 0 || opts.Threshold <= 0 {
		return []types.AnomalyRecord{}
	}

	byWeek := make(map[int64][]types.WeeklyAggregate)
	for _, row := range rows {
		key := row.WeekStart.UTC().Unix()
		byWeek[key] = append(byWeek[key], row)
	}

	flagged := make([]types.AnomalyRecord, 0)
	for _, group := range byWeek {
		counts := make([]float64, len(group))
		for i, row := range group {
			counts[i] = float64(row.Count)
		}

		var center, spread float64
		if opts.Robust {
			center = median(counts)
			spread = madScale * mad(counts)
		} else {
			center = mean(counts)
			spread = stddev(counts)
		}
		if spread == 0 {
			// All actors equal for this week; z would be meaningless.
			continue
		}

		for _, row := range group {
			z := (float64(row.Count) - center) / spread
			if math.Abs(z) >= opts.Threshold {
				flagged = append(flagged, types.AnomalyRecord{
					Actor:     row.ActorID,
					WeekStart: row.WeekStart,
					Count:     row.Count,
					Mean:      center,
					Std:       spread,
					Z:         z,
				})
			}
		}
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		ai, aj := math.Abs(flagged[i].Z), math.Abs(flagged[j].Z)
		if ai != aj {
			return ai > aj
		}
		if !flagged[i].WeekStart.Equal(flagged[j].WeekStart) {
			return flagged[i].WeekStart.Before(flagged[j].WeekStart)
		}
		return flagged[i].Actor < flagged[j].Actor
	})

	return flagged
}

// AlignWeek truncates a timestamp to the start of its ISO week (Monday
// 00:00 UTC). Weekly aggregates are keyed on this boundary.
func AlignWeek(t time.Time) time.Time {
	t = t.UTC()
	day := t.Truncate(24 * time.Hour)
	weekday := int(day.Weekday())
	// time.Weekday has Sunday = 0; shift so Monday is the week start.
	offset := (weekday + 6) % 7
	return day.AddDate(0, 0, -offset)
}
