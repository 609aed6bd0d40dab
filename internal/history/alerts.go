package history

import (
	"fmt"
	"time"

	"TargetSentinel/internal/model"
)

// dedupWindow suppresses repeat alerts for a company.
const dedupWindow = 24 * time.Hour

// trigger is one qualifying alert condition. Co-occurring triggers merge
// into a single alert at the highest severity.
type trigger struct {
	severity model.Severity
	reason   string
}

// classify derives the alert triggers for an evaluation from the score
// deltas, threshold crossings, and tier movement. Score drops alert one
// severity below the corresponding surge band.
func classify(score, prevScore, delta7, delta30 float64, hadPrev bool, tierChange *model.TierChange) []trigger {
	var out []trigger

	switch {
	case delta7 >= 15:
		out = append(out, trigger{model.SeverityCritical, fmt.Sprintf("score surged %+.1f in 7d", delta7)})
	case delta7 >= 10 || delta30 >= 15:
		out = append(out, trigger{model.SeverityHigh, fmt.Sprintf("score rose %+.1f in 7d / %+.1f in 30d", delta7, delta30)})
	case delta7 >= 5 || delta30 >= 10:
		out = append(out, trigger{model.SeverityMedium, fmt.Sprintf("score rose %+.1f in 7d / %+.1f in 30d", delta7, delta30)})
	case delta30 >= 5:
		out = append(out, trigger{model.SeverityLow, fmt.Sprintf("score rose %+.1f in 30d", delta30)})
	case delta7 <= -15:
		out = append(out, trigger{model.SeverityHigh, fmt.Sprintf("score dropped %+.1f in 7d", delta7)})
	case delta7 <= -10 || delta30 <= -15:
		out = append(out, trigger{model.SeverityMedium, fmt.Sprintf("score fell %+.1f in 7d / %+.1f in 30d", delta7, delta30)})
	case delta7 <= -5 || delta30 <= -10:
		out = append(out, trigger{model.SeverityLow, fmt.Sprintf("score fell %+.1f in 7d / %+.1f in 30d", delta7, delta30)})
	}

	if hadPrev {
		switch {
		case score >= 85 && prevScore < 85:
			out = append(out, trigger{model.SeverityCritical, fmt.Sprintf("score crossed 85 (%.1f)", score)})
		case score >= 80 && prevScore < 80:
			out = append(out, trigger{model.SeverityHigh, fmt.Sprintf("score crossed 80 (%.1f)", score)})
		}
	}

	if tierChange != nil {
		out = append(out, trigger{model.SeverityLow, fmt.Sprintf("tier %s -> %s", tierChange.From, tierChange.To)})
	}
	return out
}

// merge collapses co-occurring triggers into one alert candidate.
func merge(triggers []trigger) (model.Severity, []string) {
	severity := model.SeverityLow
	reasons := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t.severity > severity {
			severity = t.severity
		}
		reasons = append(reasons, t.reason)
	}
	return severity, reasons
}
