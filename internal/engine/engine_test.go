package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TargetSentinel/internal/config"
	"TargetSentinel/internal/history"
	"TargetSentinel/internal/model"
	"TargetSentinel/internal/repository"
)

var evalAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type staticCatalog struct {
	acquirers []model.AcquirerProfile
	targets   map[string]model.TargetProfile
}

func (s staticCatalog) Acquirers() []model.AcquirerProfile { return s.acquirers }

func (s staticCatalog) Target(companyID string) (model.TargetProfile, bool) {
	tgt, ok := s.targets[companyID]
	return tgt, ok
}

func strongAcquirer(id string) model.AcquirerProfile {
	return model.AcquirerProfile{
		ID:              id,
		Name:            id,
		Priorities:      map[string]int{"oncology": 1},
		DealCapacity:    10e9,
		TypicalDealSize: 3e9,
		PreferredStages: []model.Stage{model.StagePhase3},
		PatentCliffs: []model.PatentCliff{
			{Drug: "oldblock", AnnualRevenue: 3e9, MonthsToExpiry: 18, TherapeuticArea: "oncology"},
		},
		HistoricalDeals: []model.HistoricalDeal{
			{TargetName: "prior-bio", TherapeuticArea: "oncology", Stage: model.StagePhase3, Value: 2.5e9},
		},
	}
}

func newTestEngine(t *testing.T, catalog CatalogSource, conditions ConditionsProvider) (*Engine, repository.Store) {
	t.Helper()
	cfg := config.DefaultScoring()
	require.NoError(t, cfg.Validate())
	if catalog == nil {
		catalog = staticCatalog{}
	}
	repo := repository.NewMemoryStore()
	e := New(repo, history.NewMemoryStore(), catalog, conditions, cfg, zerolog.Nop())
	t.Cleanup(e.Close)
	return e, repo
}

// seedUniform appends n signals per factor with the given raw value, all
// stamped at the evaluation instant so decay stays out of the arithmetic.
func seedUniform(t *testing.T, repo repository.Store, companyID string, value float64, perFactor int) {
	t.Helper()
	types := map[model.FactorCategory]model.SignalType{
		model.FactorClinicalPipeline:     model.SignalClinical,
		model.FactorPatentPosition:       model.SignalPatent,
		model.FactorCashRunway:           model.SignalFinancial,
		model.FactorManagementSignals:    model.SignalManagement,
		model.FactorStrategicFit:         model.SignalMarket,
		model.FactorCompetitiveLandscape: model.SignalMarket,
		model.FactorRegulatoryPathway:    model.SignalRegulatory,
		model.FactorHistoricalPattern:    model.SignalInsider,
	}
	for factor, typ := range types {
		for i := 0; i < perFactor; i++ {
			_, err := repo.Append(context.Background(), model.Signal{
				CompanyID:         companyID,
				Type:              typ,
				Factor:            factor,
				RawValue:          value,
				Timestamp:         evalAt,
				Confidence:        1,
				SourceReliability: 1,
			})
			require.NoError(t, err)
		}
	}
}

func TestEvaluateNoSignals(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	snap, alerts, change, err := e.Evaluate(context.Background(), "ghost-bio", evalAt)
	require.NoError(t, err)

	// Every factor degrades to the baseline at zero quality, so the
	// composite collapses to zero rather than a misleading midpoint.
	assert.Zero(t, snap.CompositeScore)
	assert.Zero(t, snap.AggregateConfidence)
	assert.Equal(t, model.TierNone, snap.Tier)
	assert.Equal(t, 50.0, snap.Percentile, "first company in an empty universe")
	assert.Empty(t, alerts)
	assert.Nil(t, change)
}

func TestEvaluateFullPipeline(t *testing.T) {
	e, repo := newTestEngine(t, nil, nil)
	seedUniform(t, repo, "acme-bio", 72, 5)

	snap, _, change, err := e.Evaluate(context.Background(), "acme-bio", evalAt)
	require.NoError(t, err)

	// Uniform 72s plus the top momentum bonus give 77 at full quality.
	assert.InDelta(t, 77, snap.CompositeScore, 1e-9)
	assert.InDelta(t, 1, snap.AggregateConfidence, 1e-9)
	assert.Equal(t, model.Tier2, snap.Tier)
	require.NotNil(t, change)
	assert.Equal(t, model.Tier2, change.To)
	require.Len(t, snap.Factors, 8)
	assert.Len(t, snap.Drivers, 3)
	assert.Empty(t, snap.Risks)
}

func TestEvaluateDeterministic(t *testing.T) {
	// Two engines over identically seeded stores produce identical
	// snapshots apart from evaluation bookkeeping that carries no state.
	run := func() model.CompanyScoreSnapshot {
		e, repo := newTestEngine(t, nil, nil)
		seedUniform(t, repo, "acme-bio", 63, 3)
		snap, _, _, err := e.Evaluate(context.Background(), "acme-bio", evalAt)
		require.NoError(t, err)
		return snap
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestEvaluateSupersededIsDropped(t *testing.T) {
	e, repo := newTestEngine(t, nil, nil)
	seedUniform(t, repo, "acme-bio", 72, 2)

	_, _, _, err := e.Evaluate(context.Background(), "acme-bio", evalAt)
	require.NoError(t, err)

	// An evaluation at the same instant is superseded: no error, no alerts.
	snap, alerts, change, err := e.Evaluate(context.Background(), "acme-bio", evalAt)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Nil(t, change)
	assert.NotZero(t, snap.CompositeScore)
}

func TestConditionsLiftTier(t *testing.T) {
	catalog := staticCatalog{
		acquirers: []model.AcquirerProfile{strongAcquirer("pharma-a"), strongAcquirer("pharma-b")},
		targets: map[string]model.TargetProfile{
			"acme-bio": {
				CompanyID:         "acme-bio",
				TherapeuticAreas:  []string{"oncology"},
				LeadStage:         model.StagePhase3,
				MonthsToApproval:  14,
				MonthsToCatalyst:  5,
				EnterpriseValue:   2e9,
				PeakSalesEstimate: 1.5e9,
				CashRunwayMonths:  10,
			},
		},
	}

	// 77 alone is Tier2; the runway squeeze plus two strong acquirer
	// matches lift it to Tier1.
	e, repo := newTestEngine(t, catalog, nil)
	seedUniform(t, repo, "acme-bio", 72, 5)
	snap, _, _, err := e.Evaluate(context.Background(), "acme-bio", evalAt)
	require.NoError(t, err)
	assert.InDelta(t, 77, snap.CompositeScore, 1e-9)
	assert.Equal(t, model.Tier1, snap.Tier)

	bare, repo2 := newTestEngine(t, nil, nil)
	seedUniform(t, repo2, "acme-bio", 72, 5)
	snap, _, _, err = bare.Evaluate(context.Background(), "acme-bio", evalAt)
	require.NoError(t, err)
	assert.Equal(t, model.Tier2, snap.Tier)
}

func TestExternalConditionsFlowThrough(t *testing.T) {
	conditions := StaticConditions{
		"acme-bio": {StrategicReview: true, AdvisorHired: true},
	}
	e, repo := newTestEngine(t, nil, conditions)
	seedUniform(t, repo, "acme-bio", 72, 5)

	snap, _, _, err := e.Evaluate(context.Background(), "acme-bio", evalAt)
	require.NoError(t, err)
	assert.Equal(t, model.Tier1, snap.Tier)
}

func TestPercentileAcrossUniverse(t *testing.T) {
	e, repo := newTestEngine(t, nil, nil)
	seedUniform(t, repo, "low-bio", 30, 3)
	seedUniform(t, repo, "mid-bio", 60, 3)
	seedUniform(t, repo, "high-bio", 90, 3)

	ctx := context.Background()
	_, _, _, err := e.Evaluate(ctx, "low-bio", evalAt)
	require.NoError(t, err)
	_, _, _, err = e.Evaluate(ctx, "mid-bio", evalAt.Add(time.Minute))
	require.NoError(t, err)

	snap, _, _, err := e.Evaluate(ctx, "high-bio", evalAt.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.Percentile, "scores above both peers")
}

func TestMatchRequiresHistoryAndProfile(t *testing.T) {
	catalog := staticCatalog{
		acquirers: []model.AcquirerProfile{strongAcquirer("pharma-a")},
		targets: map[string]model.TargetProfile{
			"acme-bio": {CompanyID: "acme-bio", TherapeuticAreas: []string{"oncology"}, LeadStage: model.StagePhase3, EnterpriseValue: 2e9},
		},
	}
	e, repo := newTestEngine(t, catalog, nil)
	ctx := context.Background()

	// No score history yet.
	_, err := e.Match(ctx, "acme-bio")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)

	seedUniform(t, repo, "acme-bio", 72, 2)
	seedUniform(t, repo, "unprofiled-bio", 72, 2)
	_, _, _, err = e.Evaluate(ctx, "acme-bio", evalAt)
	require.NoError(t, err)
	_, _, _, err = e.Evaluate(ctx, "unprofiled-bio", evalAt)
	require.NoError(t, err)

	matches, err := e.Match(ctx, "acme-bio")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "pharma-a", matches[0].AcquirerID)
	assert.Equal(t, 1, matches[0].Rank)

	// Scored but absent from the target catalog.
	_, err = e.Match(ctx, "unprofiled-bio")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestIngestTriggersReevaluation(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	ctx := context.Background()

	stored, err := e.Ingest(ctx, model.Signal{
		CompanyID:         "acme-bio",
		Type:              model.SignalClinical,
		Factor:            model.FactorClinicalPipeline,
		RawValue:          88,
		Timestamp:         time.Now().UTC().Add(-time.Hour),
		Confidence:        0.9,
		SourceReliability: 0.95,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)

	// The mailbox evaluates asynchronously; a snapshot shows up shortly.
	assert.Eventually(t, func() bool {
		snap, _, _, evalErr := e.Evaluate(ctx, "acme-bio", time.Now().UTC())
		return evalErr == nil && snap.CompositeScore > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIngestRejectsMalformed(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	_, err := e.Ingest(context.Background(), model.Signal{CompanyID: ""})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
}
