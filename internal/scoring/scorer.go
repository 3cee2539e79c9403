package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dotrep-labs/reputation-engine/internal/types"
)

// Axis names for the reputation vector.
const (
	AxisQuality     = "quality"
	AxisImpact      = "impact"
	AxisConsistency = "consistency"
	AxisCommunity   = "community"
)

// Axes lists the four axes in canonical order.
var Axes = []string{AxisQuality, AxisImpact, AxisConsistency, AxisCommunity}

const weightSumTolerance = 1e-9

// Config holds the scoring parameters. Validated once at startup; a bad
// configuration never surfaces at request time.
type Config struct {
	// DecayFactor is the per-day exponential decay rate.
	DecayFactor float64 `koanf:"decay_factor"`
	// Precision is the number of decimal places kept on the final score.
	Precision int `koanf:"precision"`
	// AxisWeights maps each axis to its share of the composite score.
	// Must cover exactly the four axes and sum to 1.0.
	AxisWeights map[string]float64 `koanf:"axis_weights"`
	// AxisCeilings maps each axis to the decayed-point sum that saturates
	// the axis at 100.
	AxisCeilings map[string]float64 `koanf:"axis_ceilings"`
	// EventAxisShares maps an event type to the share of its decayed weight
	// credited to each axis.
	EventAxisShares map[string]map[string]float64 `koanf:"event_axis_shares"`
}

// DefaultConfig returns the scoring parameters used when no configuration
// file overrides them.
func DefaultConfig() Config {
	return Config{
		DecayFactor: 0.01,
		Precision:   0,
		AxisWeights: map[string]float64{
			AxisQuality:     0.30,
			AxisImpact:      0.30,
			AxisConsistency: 0.20,
			AxisCommunity:   0.20,
		},
		AxisCeilings: map[string]float64{
			AxisQuality:     500,
			AxisImpact:      500,
			AxisConsistency: 500,
			AxisCommunity:   500,
		},
		EventAxisShares: map[string]map[string]float64{
			"commit":        {AxisConsistency: 0.5, AxisQuality: 0.3, AxisImpact: 0.2},
			"pull_request":  {AxisImpact: 0.5, AxisQuality: 0.3, AxisCommunity: 0.2},
			"review":        {AxisQuality: 0.6, AxisCommunity: 0.4},
			"issue":         {AxisCommunity: 0.7, AxisImpact: 0.3},
			"documentation": {AxisQuality: 0.5, AxisCommunity: 0.5},
			"bug_report":    {AxisQuality: 0.6, AxisImpact: 0.4},
		},
	}
}

// Validate rejects configurations the engine must never run with.
func (c Config) Validate() error {
	if c.DecayFactor < 0 {
		return fmt.Errorf("decay_factor must not be negative, got %v", c.DecayFactor)
	}
	if c.Precision < 0 {
		return fmt.Errorf("precision must not be negative, got %d", c.Precision)
	}
	if len(c.AxisWeights) != len(Axes) {
		return fmt.Errorf("axis_weights must cover exactly %d axes, got %d", len(Axes), len(c.AxisWeights))
	}
	sum := 0.0
	for _, axis := range Axes {
		w, ok := c.AxisWeights[axis]
		if !ok {
			return fmt.Errorf("axis_weights missing axis %q", axis)
		}
		if w < 0 {
			return fmt.Errorf("axis_weights[%s] must not be negative, got %v", axis, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("axis_weights must sum to 1.0, got %v", sum)
	}
	for _, axis := range Axes {
		ceil, ok := c.AxisCeilings[axis]
		if !ok {
			return fmt.Errorf("axis_ceilings missing axis %q", axis)
		}
		if ceil <= 0 {
			return fmt.Errorf("axis_ceilings[%s] must be positive, got %v", axis, ceil)
		}
	}
	for eventType, shares := range c.EventAxisShares {
		for axis, share := range shares {
			if !isKnownAxis(axis) {
				return fmt.Errorf("event_axis_shares[%s] references unknown axis %q", eventType, axis)
			}
			if share < 0 {
				return fmt.Errorf("event_axis_shares[%s][%s] must not be negative, got %v", eventType, axis, share)
			}
		}
	}
	return nil
}

func isKnownAxis(axis string) bool {
	for _, a := range Axes {
		if a == axis {
			return true
		}
	}
	return false
}

// ComputeScore computes the 4-axis vector and composite score for an actor
// from its verified events. Deterministic given (events, now, config):
// identical inputs produce bit-identical output. Zero verified events yields
// a zero vector and final score 0.
func ComputeScore(actorID string, events []types.ContributionEvent, now time.Time, cfg Config) types.ScoreResult {
	sums := make(map[string]float64, len(Axes))
	verified := 0

	// Events are summed in timestamp order so the accumulation is
	// independent of storage order.
	ordered := make([]types.ContributionEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, ev := range ordered {
		if !ev.Verified {
			continue
		}
		verified++
		decayed := DecayWeight(ev.ReputationPoints, AgeInDays(ev.Timestamp, now), cfg.DecayFactor)
		shares, ok := cfg.EventAxisShares[ev.Type]
		if !ok {
			// Unrecognized event types carry their full weight on quality.
			sums[AxisQuality] += decayed
			continue
		}
		for _, axis := range Axes {
			if share, ok := shares[axis]; ok {
				sums[axis] += decayed * share
			}
		}
	}

	vector := types.ReputationVector{
		Quality:     normalizeAxis(sums[AxisQuality], cfg.AxisCeilings[AxisQuality]),
		Impact:      normalizeAxis(sums[AxisImpact], cfg.AxisCeilings[AxisImpact]),
		Consistency: normalizeAxis(sums[AxisConsistency], cfg.AxisCeilings[AxisConsistency]),
		Community:   normalizeAxis(sums[AxisCommunity], cfg.AxisCeilings[AxisCommunity]),
	}

	final := cfg.AxisWeights[AxisQuality]*vector.Quality +
		cfg.AxisWeights[AxisImpact]*vector.Impact +
		cfg.AxisWeights[AxisConsistency]*vector.Consistency +
		cfg.AxisWeights[AxisCommunity]*vector.Community

	return types.ScoreResult{
		ActorID:     actorID,
		FinalScore:  roundTo(final, cfg.Precision),
		Vector:      vector,
		Explanation: explain(verified, vector, cfg),
	}
}

// normalizeAxis maps a decayed-point sum into [0,100] against the ceiling.
func normalizeAxis(sum, ceiling float64) float64 {
	if sum <= 0 {
		return 0
	}
	score := sum / ceiling * 100
	if score > 100 {
		return 100
	}
	return score
}

func roundTo(x float64, precision int) float64 {
	scale := math.Pow10(precision)
	return math.Round(x*scale) / scale
}

func explain(verified int, v types.ReputationVector, cfg Config) []string {
	lines := []string{
		fmt.Sprintf("score derived from %d verified contributions with decay factor %g per day", verified, cfg.DecayFactor),
		fmt.Sprintf("quality %.1f/100 weighted %.0f%%", v.Quality, cfg.AxisWeights[AxisQuality]*100),
		fmt.Sprintf("impact %.1f/100 weighted %.0f%%", v.Impact, cfg.AxisWeights[AxisImpact]*100),
		fmt.Sprintf("consistency %.1f/100 weighted %.0f%%", v.Consistency, cfg.AxisWeights[AxisConsistency]*100),
		fmt.Sprintf("community %.1f/100 weighted %.0f%%", v.Community, cfg.AxisWeights[AxisCommunity]*100),
	}
	return lines
}
