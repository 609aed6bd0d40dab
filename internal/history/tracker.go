package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TargetSentinel/internal/model"
)

// Tracker records snapshots, drives the watchlist state machine, and
// emits deduplicated alerts.
type Tracker struct {
	store Store
	log   zerolog.Logger
}

// NewTracker creates a Tracker over a history store.
func NewTracker(store Store, log zerolog.Logger) *Tracker {
	return &Tracker{store: store, log: log}
}

// Record persists a snapshot and applies tiering and alerting. Stale
// snapshots return model.ErrStale untouched so the caller can drop them.
func (t *Tracker) Record(ctx context.Context, snap model.CompanyScoreSnapshot, cond model.SpecialConditions) (model.CompanyScoreSnapshot, []model.Alert, *model.TierChange, error) {
	prev, err := t.store.LatestSnapshot(ctx, snap.CompanyID)
	if err != nil {
		return snap, nil, nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	snap.Tier = AssignTier(snap.CompositeScore, cond)

	// History buffer wide enough for both the 30d delta and the 90d
	// sustained-low scan.
	hist, err := t.store.SnapshotsSince(ctx, snap.CompanyID, snap.EvaluatedAt.Add(-inactiveAfter-30*24*time.Hour))
	if err != nil {
		return snap, nil, nil, fmt.Errorf("load history: %w", err)
	}

	if err := t.store.SaveSnapshot(ctx, snap); err != nil {
		if errors.Is(err, model.ErrStale) {
			t.log.Debug().Str("company", snap.CompanyID).Time("as_of", snap.EvaluatedAt).Msg("superseded evaluation dropped")
		}
		return snap, nil, nil, err
	}

	tierChange, err := t.updateWatchlist(ctx, snap, hist)
	if err != nil {
		return snap, nil, nil, err
	}

	alerts, err := t.alert(ctx, snap, prev, hist, tierChange)
	if err != nil {
		return snap, nil, nil, err
	}
	return snap, alerts, tierChange, nil
}

// updateWatchlist applies the state machine:
// NotTracked -> {Tier1..Tier4} <-> Inactive -> Removed (permanent).
func (t *Tracker) updateWatchlist(ctx context.Context, snap model.CompanyScoreSnapshot, hist []model.CompanyScoreSnapshot) (*model.TierChange, error) {
	entry, err := t.store.WatchlistEntry(ctx, snap.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load watchlist entry: %w", err)
	}
	if entry != nil && entry.State == model.StateRemoved {
		return nil, nil
	}

	prevTier := model.TierNone
	if entry != nil {
		prevTier = entry.Tier
	}
	newTier := snap.Tier

	// Sustained-low demotion needs history: score below 50 for 90
	// consecutive days. The full snapshot slice includes the new one's
	// predecessors; the new snapshot itself is below 50 in this branch.
	if newTier == model.TierNone && entry != nil && entry.State == model.StateActive &&
		snap.CompositeScore < inactiveScore && sustainedLow(append(hist, snap), snap.EvaluatedAt) {
		if err := t.store.SaveWatchlistEntry(ctx, model.WatchlistEntry{
			CompanyID:  snap.CompanyID,
			State:      model.StateInactive,
			Tier:       model.TierNone,
			EnteredAt:  entry.EnteredAt,
			ExitReason: "score below 50 for 90 consecutive days",
		}); err != nil {
			return nil, fmt.Errorf("save watchlist entry: %w", err)
		}
		return &model.TierChange{
			CompanyID: snap.CompanyID, From: prevTier, To: model.TierNone,
			At: snap.EvaluatedAt, Reason: "demoted to inactive",
		}, nil
	}

	if newTier == prevTier {
		return nil, nil
	}

	updated := model.WatchlistEntry{CompanyID: snap.CompanyID, Tier: newTier}
	switch {
	case newTier == model.TierNone:
		// Off the score bands but not yet 90 days low: stays tracked
		// only if already on the list.
		if entry == nil {
			return nil, nil
		}
		updated.State = entry.State
		updated.EnteredAt = entry.EnteredAt
	case entry == nil:
		updated.State = model.StateActive
		updated.EnteredAt = snap.EvaluatedAt
	default:
		updated.State = model.StateActive // re-activation from Inactive included
		updated.EnteredAt = entry.EnteredAt
	}
	if err := t.store.SaveWatchlistEntry(ctx, updated); err != nil {
		return nil, fmt.Errorf("save watchlist entry: %w", err)
	}

	return &model.TierChange{
		CompanyID: snap.CompanyID, From: prevTier, To: newTier,
		At: snap.EvaluatedAt, Reason: fmt.Sprintf("score %.1f", snap.CompositeScore),
	}, nil
}

// alert classifies, merges, dedups, and persists the evaluation's alert.
func (t *Tracker) alert(ctx context.Context, snap model.CompanyScoreSnapshot, prev *model.CompanyScoreSnapshot, hist []model.CompanyScoreSnapshot, tierChange *model.TierChange) ([]model.Alert, error) {
	var prevScore float64
	hadPrev := prev != nil
	if hadPrev {
		prevScore = prev.CompositeScore
	}
	delta7 := deltaOver(hist, snap, 7*24*time.Hour)
	delta30 := deltaOver(hist, snap, 30*24*time.Hour)

	triggers := classify(snap.CompositeScore, prevScore, delta7, delta30, hadPrev, tierChange)
	if len(triggers) == 0 {
		return nil, nil
	}
	severity, reasons := merge(triggers)

	// Dedup: a same-or-higher severity alert inside the window absorbs
	// this one; a strictly higher severity still escalates.
	recent, err := t.store.StrongestAlertSince(ctx, snap.CompanyID, snap.EvaluatedAt.Add(-dedupWindow))
	if err != nil {
		return nil, fmt.Errorf("load recent alerts: %w", err)
	}
	if recent != nil && recent.Severity >= severity {
		t.log.Debug().Str("company", snap.CompanyID).Stringer("severity", severity).Msg("alert suppressed by dedup window")
		return nil, nil
	}

	alert := model.Alert{
		ID:        uuid.NewString(),
		CompanyID: snap.CompanyID,
		Severity:  severity,
		Reasons:   reasons,
		DedupKey:  fmt.Sprintf("%s|%s", snap.CompanyID, snap.EvaluatedAt.Truncate(dedupWindow).Format(time.RFC3339)),
		CreatedAt: snap.EvaluatedAt,
	}
	if err := t.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert: %w", err)
	}
	return []model.Alert{alert}, nil
}

// deltaOver computes the score change against the newest snapshot at
// least `window` older than the evaluation. With no reference that old,
// the earliest available snapshot is used; an empty history yields 0.
func deltaOver(hist []model.CompanyScoreSnapshot, snap model.CompanyScoreSnapshot, window time.Duration) float64 {
	if len(hist) == 0 {
		return 0
	}
	cutoff := snap.EvaluatedAt.Add(-window)
	ref := hist[0]
	for _, s := range hist {
		if s.EvaluatedAt.After(cutoff) {
			break
		}
		ref = s
	}
	return snap.CompositeScore - ref.CompositeScore
}

// Remove permanently drops a company from tracking. Terminal by design:
// a removed company never re-enters the watchlist.
func (t *Tracker) Remove(ctx context.Context, companyID, reason string, at time.Time) error {
	entry, err := t.store.WatchlistEntry(ctx, companyID)
	if err != nil {
		return fmt.Errorf("load watchlist entry: %w", err)
	}
	entered := at
	if entry != nil {
		entered = entry.EnteredAt
	}
	return t.store.SaveWatchlistEntry(ctx, model.WatchlistEntry{
		CompanyID:  companyID,
		State:      model.StateRemoved,
		Tier:       model.TierNone,
		EnteredAt:  entered,
		ExitReason: reason,
	})
}

// SweepInactive demotes every active entry whose score has stayed below
// the inactivity threshold for the full span. Run daily by the scheduler
// so companies that stop producing signals still age out.
func (t *Tracker) SweepInactive(ctx context.Context, asOf time.Time) (int, error) {
	entries, err := t.store.Watchlist(ctx)
	if err != nil {
		return 0, fmt.Errorf("load watchlist: %w", err)
	}
	demoted := 0
	for _, entry := range entries {
		if entry.State != model.StateActive {
			continue
		}
		hist, err := t.store.SnapshotsSince(ctx, entry.CompanyID, asOf.Add(-inactiveAfter-30*24*time.Hour))
		if err != nil {
			return demoted, fmt.Errorf("load history for %s: %w", entry.CompanyID, err)
		}
		if !sustainedLow(hist, asOf) {
			continue
		}
		entry.State = model.StateInactive
		entry.Tier = model.TierNone
		entry.ExitReason = "score below 50 for 90 consecutive days"
		if err := t.store.SaveWatchlistEntry(ctx, entry); err != nil {
			return demoted, fmt.Errorf("save watchlist entry: %w", err)
		}
		t.log.Info().Str("company", entry.CompanyID).Msg("demoted to inactive")
		demoted++
	}
	return demoted, nil
}
