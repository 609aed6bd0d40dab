package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TargetSentinel/internal/model"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fullSnapshot(companyID string, at time.Time, score float64) model.CompanyScoreSnapshot {
	return model.CompanyScoreSnapshot{
		CompanyID:      companyID,
		EvaluatedAt:    at,
		CompositeScore: score,
		Factors: []model.FactorResult{
			{Factor: model.FactorClinicalPipeline, Score: score, Quality: 0.8, Confidence: 0.7, Weighted: 0.3 * score * 0.8, SignalCount: 4},
		},
		AggregateConfidence: 0.7,
		Percentile:          62.5,
		Tier:                model.Tier2,
		Drivers:             []model.FactorCategory{model.FactorClinicalPipeline},
		Risks:               []model.FactorCategory{model.FactorCashRunway},
	}
}

func TestSQLiteSnapshotRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	in := fullSnapshot("acme-bio", evalAt, 74.5)
	require.NoError(t, store.SaveSnapshot(ctx, in))

	got, err := store.LatestSnapshot(ctx, "acme-bio")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.CompositeScore, got.CompositeScore)
	assert.Equal(t, in.Tier, got.Tier)
	assert.Equal(t, in.Factors, got.Factors)
	assert.Equal(t, in.Drivers, got.Drivers)
	assert.Equal(t, in.Risks, got.Risks)
	assert.True(t, got.EvaluatedAt.Equal(in.EvaluatedAt))

	missing, err := store.LatestSnapshot(ctx, "ghost-bio")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteSnapshotMonotonicity(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, fullSnapshot("acme-bio", evalAt, 70)))

	err := store.SaveSnapshot(ctx, fullSnapshot("acme-bio", evalAt, 75))
	assert.ErrorIs(t, err, model.ErrStale)
	err = store.SaveSnapshot(ctx, fullSnapshot("acme-bio", evalAt.Add(-time.Hour), 75))
	assert.ErrorIs(t, err, model.ErrStale)

	require.NoError(t, store.SaveSnapshot(ctx, fullSnapshot("acme-bio", evalAt.Add(time.Hour), 75)))

	// The stale writes left no trace.
	snaps, err := store.SnapshotsSince(ctx, "acme-bio", evalAt.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 70.0, snaps[0].CompositeScore)
	assert.Equal(t, 75.0, snaps[1].CompositeScore)
}

func TestSQLiteLatestAll(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, fullSnapshot("beta-bio", evalAt, 60)))
	require.NoError(t, store.SaveSnapshot(ctx, fullSnapshot("beta-bio", evalAt.Add(time.Hour), 65)))
	require.NoError(t, store.SaveSnapshot(ctx, fullSnapshot("acme-bio", evalAt, 80)))

	latest, err := store.LatestAll(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "acme-bio", latest[0].CompanyID)
	assert.Equal(t, 80.0, latest[0].CompositeScore)
	assert.Equal(t, "beta-bio", latest[1].CompanyID)
	assert.Equal(t, 65.0, latest[1].CompositeScore)
}

func TestSQLiteAlertRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	low := model.Alert{
		ID: uuid.NewString(), CompanyID: "acme-bio", Severity: model.SeverityLow,
		Reasons: []string{"tier NONE -> TIER_3"}, DedupKey: "acme-bio|d1", CreatedAt: evalAt,
	}
	high := model.Alert{
		ID: uuid.NewString(), CompanyID: "acme-bio", Severity: model.SeverityHigh,
		Reasons: []string{"score rose +11.0 in 7d", "score crossed 80 (81.0)"},
		DedupKey: "acme-bio|d1", CreatedAt: evalAt.Add(2 * time.Hour),
	}
	require.NoError(t, store.SaveAlert(ctx, low))
	require.NoError(t, store.SaveAlert(ctx, high))

	got, err := store.StrongestAlertSince(ctx, "acme-bio", evalAt.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, high.ID, got.ID)
	assert.Equal(t, model.SeverityHigh, got.Severity)
	assert.Equal(t, high.Reasons, got.Reasons)
	assert.True(t, got.CreatedAt.Equal(high.CreatedAt))

	// The window excludes older alerts.
	got, err = store.StrongestAlertSince(ctx, "acme-bio", evalAt.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteWatchlistUpsert(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	entry := model.WatchlistEntry{
		CompanyID: "acme-bio", State: model.StateActive, Tier: model.Tier3, EnteredAt: evalAt,
	}
	require.NoError(t, store.SaveWatchlistEntry(ctx, entry))

	entry.Tier = model.Tier1
	require.NoError(t, store.SaveWatchlistEntry(ctx, entry))

	got, err := store.WatchlistEntry(ctx, "acme-bio")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.Tier1, got.Tier)
	assert.Equal(t, model.StateActive, got.State)
	assert.True(t, got.EnteredAt.Equal(evalAt))

	require.NoError(t, store.SaveWatchlistEntry(ctx, model.WatchlistEntry{
		CompanyID: "zeta-rx", State: model.StateInactive, Tier: model.TierNone,
		EnteredAt: evalAt, ExitReason: "score below 50 for 90 consecutive days",
	}))
	all, err := store.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "acme-bio", all[0].CompanyID)
	assert.Equal(t, "zeta-rx", all[1].CompanyID)
	assert.Equal(t, "score below 50 for 90 consecutive days", all[1].ExitReason)
}

func TestTrackerOverSQLite(t *testing.T) {
	store := newSQLiteStore(t)
	tracker := NewTracker(store, zerolog.Nop())
	ctx := context.Background()

	snap, alerts, change, err := tracker.Record(ctx, snapshot("acme-bio", evalAt, 72), model.SpecialConditions{})
	require.NoError(t, err)
	assert.Equal(t, model.Tier2, snap.Tier)
	require.NotNil(t, change)
	require.Len(t, alerts, 1)

	_, _, _, err = tracker.Record(ctx, snapshot("acme-bio", evalAt, 72), model.SpecialConditions{})
	assert.ErrorIs(t, err, model.ErrStale)
}
