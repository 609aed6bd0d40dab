// Package engine wires the scoring pipeline together and exposes the
// computation interface consumed by report, alert, and API layers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"TargetSentinel/internal/config"
	"TargetSentinel/internal/decay"
	"TargetSentinel/internal/history"
	"TargetSentinel/internal/matcher"
	"TargetSentinel/internal/model"
	"TargetSentinel/internal/repository"
	"TargetSentinel/internal/scorer"
)

// Engine is the scoring facade. Scoring is pure given a fetched signal
// window; the repository query is the only suspension point on the path.
type Engine struct {
	repo       repository.Store
	histStore  history.Store
	tracker    *history.Tracker
	decayer    *decay.Engine
	scorer     *scorer.Scorer
	matcher    *matcher.Matcher
	catalog    CatalogSource
	conditions ConditionsProvider
	cfg        *config.Scoring
	log        zerolog.Logger

	mailboxes *mailboxSet
}

// New builds an Engine from its collaborators. cfg must already be
// validated; a nil conditions provider means no external flags.
func New(repo repository.Store, histStore history.Store, catalog CatalogSource, conditions ConditionsProvider, cfg *config.Scoring, log zerolog.Logger) *Engine {
	if conditions == nil {
		conditions = StaticConditions{}
	}
	e := &Engine{
		repo:       repo,
		histStore:  histStore,
		tracker:    history.NewTracker(histStore, log),
		decayer:    decay.New(cfg),
		scorer:     scorer.New(cfg),
		matcher:    matcher.New(log),
		catalog:    catalog,
		conditions: conditions,
		cfg:        cfg,
		log:        log,
	}
	e.mailboxes = newMailboxSet(e.reevaluate, log)
	return e
}

// Window returns the evaluation lookback window.
func (e *Engine) Window() time.Duration {
	return time.Duration(e.cfg.WindowDays) * 24 * time.Hour
}

// Ingest appends a signal and triggers a coalesced re-evaluation of the
// company. The ingestion error surfaces; evaluation runs asynchronously.
func (e *Engine) Ingest(ctx context.Context, sig model.Signal) (model.Signal, error) {
	stored, err := e.repo.Append(ctx, sig)
	if err != nil {
		return model.Signal{}, err
	}
	e.mailboxes.notify(stored.CompanyID, time.Now().UTC())
	return stored, nil
}

// Evaluate scores a company as of the given instant, persists the
// snapshot, and returns any alerts and tier change. A superseded
// evaluation returns the computed snapshot with no alerts and no error.
func (e *Engine) Evaluate(ctx context.Context, companyID string, asOf time.Time) (model.CompanyScoreSnapshot, []model.Alert, *model.TierChange, error) {
	signals, err := e.repo.Query(ctx, companyID, asOf, e.Window())
	if err != nil {
		return model.CompanyScoreSnapshot{}, nil, nil, fmt.Errorf("query signals: %w", err)
	}

	factors := e.decayer.CombineByFactor(signals, asOf)
	snap := e.scorer.Compute(companyID, asOf, factors)

	snap.Percentile, err = e.percentile(ctx, snap)
	if err != nil {
		return snap, nil, nil, err
	}

	cond, err := e.deriveConditions(ctx, companyID, snap)
	if err != nil {
		return snap, nil, nil, err
	}

	snap, alerts, tierChange, err := e.tracker.Record(ctx, snap, cond)
	if errors.Is(err, model.ErrStale) {
		e.log.Debug().Str("company", companyID).Time("as_of", asOf).Msg("stale evaluation discarded")
		return snap, nil, nil, nil
	}
	if err != nil {
		return snap, nil, nil, err
	}

	e.log.Info().
		Str("company", companyID).
		Float64("score", snap.CompositeScore).
		Float64("confidence", snap.AggregateConfidence).
		Stringer("tier", snap.Tier).
		Int("alerts", len(alerts)).
		Msg("evaluated")
	return snap, alerts, tierChange, nil
}

// Match ranks the acquirer catalog against a company's latest snapshot.
func (e *Engine) Match(ctx context.Context, companyID string) ([]model.AcquirerMatch, error) {
	snap, err := e.histStore.LatestSnapshot(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: company %q has no score history", model.ErrValidation, companyID)
	}
	target, ok := e.catalog.Target(companyID)
	if !ok {
		return nil, fmt.Errorf("%w: no target profile for %q", model.ErrValidation, companyID)
	}
	result := e.matcher.Match(target, *snap, e.catalog.Acquirers())
	return result.Matches, nil
}

// percentile ranks the composite among the latest snapshots of all
// tracked companies, on a 0..100 scale.
func (e *Engine) percentile(ctx context.Context, snap model.CompanyScoreSnapshot) (float64, error) {
	latest, err := e.histStore.LatestAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load universe snapshots: %w", err)
	}
	total, below := 0, 0
	for _, other := range latest {
		if other.CompanyID == snap.CompanyID {
			continue
		}
		total++
		if other.CompositeScore <= snap.CompositeScore {
			below++
		}
	}
	if total == 0 {
		return 50, nil
	}
	return float64(below) / float64(total) * 100, nil
}

// deriveConditions merges the externally asserted flags with the two the
// engine computes itself: the runway/catalyst squeeze and the
// strong-acquirer-fit flag (>=2 matches at fit >=75).
func (e *Engine) deriveConditions(ctx context.Context, companyID string, snap model.CompanyScoreSnapshot) (model.SpecialConditions, error) {
	cond := e.conditions.Conditions(companyID)

	target, ok := e.catalog.Target(companyID)
	if !ok {
		return cond, nil
	}
	if target.CashRunwayMonths > 0 && target.CashRunwayMonths < 12 &&
		target.MonthsToCatalyst > 0 && target.MonthsToCatalyst < 6 {
		cond.RunwayCatalystSqueeze = true
	}

	result := e.matcher.Match(target, snap, e.catalog.Acquirers())
	fits := 0
	for _, match := range result.Matches {
		if match.MatchScore >= 75 {
			fits++
		}
	}
	if fits >= 2 {
		cond.StrongAcquirerFit = true
	}
	return cond, nil
}

// reevaluate is the mailbox worker body.
func (e *Engine) reevaluate(ctx context.Context, companyID string, asOf time.Time) {
	if _, _, _, err := e.Evaluate(ctx, companyID, asOf); err != nil {
		e.log.Error().Err(err).Str("company", companyID).Msg("re-evaluation failed")
	}
}

// Tracker exposes watchlist maintenance to the scheduler.
func (e *Engine) Tracker() *history.Tracker {
	return e.tracker
}

// Companies lists every company with stored signals.
func (e *Engine) Companies(ctx context.Context) ([]string, error) {
	return e.repo.Companies(ctx)
}

// Close stops the evaluation mailboxes.
func (e *Engine) Close() {
	e.mailboxes.close()
}
