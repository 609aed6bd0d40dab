package history

import (
	"time"

	"TargetSentinel/internal/model"
)

// inactiveAfter is how long a score must stay below inactiveScore before
// a company is demoted to Inactive.
const (
	inactiveAfter = 90 * 24 * time.Hour
	inactiveScore = 50.0
)

// AssignTier maps a snapshot score and the special-condition flags to a
// watchlist tier. Pure: demotion to Inactive is the only transition that
// needs history and lives in the Tracker instead.
//
// Tier1: score >= 80, or >= 75 with two or more conditions.
// Tier2: 70..79, or 60..69 with two or more conditions.
// Tier3: 60..69.
// Tier4: 50..59 with at least one condition.
func AssignTier(score float64, cond model.SpecialConditions) model.Tier {
	n := cond.Count()
	switch {
	case score >= 80 || (score >= 75 && n >= 2):
		return model.Tier1
	case score >= 70 || (score >= 60 && n >= 2):
		return model.Tier2
	case score >= 60:
		return model.Tier3
	case score >= 50 && n >= 1:
		return model.Tier4
	default:
		return model.TierNone
	}
}

// sustainedLow reports whether every snapshot in history (ascending,
// covering at least the inactivity span before asOf) scored below
// inactiveScore. History shorter than the span cannot qualify.
func sustainedLow(hist []model.CompanyScoreSnapshot, asOf time.Time) bool {
	if len(hist) == 0 {
		return false
	}
	cutoff := asOf.Add(-inactiveAfter)
	if hist[0].EvaluatedAt.After(cutoff) {
		return false
	}
	for _, snap := range hist {
		if snap.CompositeScore >= inactiveScore {
			return false
		}
	}
	return true
}
