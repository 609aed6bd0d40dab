package notifier

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"TargetSentinel/internal/model"
)

// FormatSnapshot renders an evaluation snapshot for delivery downstream.
func FormatSnapshot(snap *model.CompanyScoreSnapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("TargetSentinel evaluation | %s | %s\n\n",
		snap.CompanyID, snap.EvaluatedAt.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Composite score: %.1f (p%.0f, confidence %.2f)\n",
		snap.CompositeScore, snap.Percentile, snap.AggregateConfidence))
	b.WriteString(fmt.Sprintf("Watchlist tier: %s\n\n", snap.Tier))

	b.WriteString("Factor detail:\n")
	for _, fr := range snap.Factors {
		b.WriteString(fmt.Sprintf("  %-22s %5.1f (quality %.2f, %d signals) = %+.2f\n",
			fr.Factor, fr.Score, fr.Quality, fr.SignalCount, fr.Weighted))
	}

	if len(snap.Drivers) > 0 {
		names := make([]string, len(snap.Drivers))
		for i, f := range snap.Drivers {
			names[i] = string(f)
		}
		b.WriteString(fmt.Sprintf("\nTop drivers: %s\n", strings.Join(names, ", ")))
	}
	if len(snap.Risks) > 0 {
		names := make([]string, len(snap.Risks))
		for i, f := range snap.Risks {
			names[i] = string(f)
		}
		b.WriteString(fmt.Sprintf("Risks: %s\n", strings.Join(names, ", ")))
	}
	return b.String()
}

// FormatAlert renders an alert.
func FormatAlert(alert *model.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s | %s\n", alert.Severity, alert.CompanyID,
		alert.CreatedAt.Format("2006-01-02 15:04")))
	for _, reason := range alert.Reasons {
		b.WriteString(fmt.Sprintf("  - %s\n", reason))
	}
	return b.String()
}

// FormatMatches renders a ranked acquirer match list.
func FormatMatches(matches []model.AcquirerMatch) string {
	if len(matches) == 0 {
		return "No acquirer matches (empty catalog or no profile).\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Acquirer matches for %s:\n\n", matches[0].TargetID))
	for _, match := range matches {
		b.WriteString(fmt.Sprintf("%2d. %-24s score %5.1f  p=%.0f%%  $%s-$%s\n",
			match.Rank, match.AcquirerName, match.MatchScore, match.Probability*100,
			humanize.SIWithDigits(match.ValuationLow, 1, ""),
			humanize.SIWithDigits(match.ValuationHigh, 1, "")))
		for _, reason := range match.Rationale {
			b.WriteString(fmt.Sprintf("      %s\n", reason))
		}
	}
	return b.String()
}
