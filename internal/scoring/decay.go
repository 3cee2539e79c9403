package scoring

import (
	"math"
	"time"
)

const secondsPerDay = 86400.0

// AgeInDays returns the age of an event at the reference time, in days.
// Events timestamped in the future decay as if they were fresh.
func AgeInDays(timestamp, now time.Time) float64 {
	age := now.Sub(timestamp).Seconds() / secondsPerDay
	if age < 0 {
		return 0
	}
	return age
}

// DecayWeight computes points * exp(-decayFactor * ageDays).
func DecayWeight(points, ageDays, decayFactor float64) float64 {
	if decayFactor < 0 {
		return 0
	}
	return points * math.Exp(-decayFactor*ageDays)
}
