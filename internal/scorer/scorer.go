// Package scorer combines the 8 factor values into one 0..100 composite
// score with an aggregate confidence and an explainability summary.
package scorer

import (
	"sort"
	"time"

	"TargetSentinel/internal/config"
	"TargetSentinel/internal/decay"
	"TargetSentinel/internal/model"
)

// Scorer computes composite score snapshots from factor values. Pure and
// deterministic: identical inputs yield identical snapshots.
type Scorer struct {
	cfg *config.Scoring
}

// New creates a Scorer from a validated table set.
func New(cfg *config.Scoring) *Scorer {
	return &Scorer{cfg: cfg}
}

// Compute builds the score snapshot for one evaluation.
//
// Composite = clamp(sum(w_i * S_i * D_i), 0, 100). The sum is not
// renormalized by sum(w_i * D_i): sparse or low-quality data suppresses
// the composite rather than being silently ignored.
func (s *Scorer) Compute(companyID string, asOf time.Time, factors map[model.FactorCategory]decay.FactorValue) model.CompanyScoreSnapshot {
	results := make([]model.FactorResult, 0, len(model.FactorCategories))
	var composite, confidence float64

	for _, f := range model.FactorCategories {
		fv := factors[f]
		w := s.cfg.Weights[f]
		weighted := w * fv.Score * fv.Quality
		composite += weighted
		confidence += w * fv.Quality

		results = append(results, model.FactorResult{
			Factor:      f,
			Score:       fv.Score,
			Quality:     fv.Quality,
			Confidence:  fv.Confidence,
			Weighted:    weighted,
			SignalCount: fv.SignalCount,
		})
	}

	return model.CompanyScoreSnapshot{
		CompanyID:           companyID,
		EvaluatedAt:         asOf,
		CompositeScore:      clamp(composite, 0, 100),
		Factors:             results,
		AggregateConfidence: clamp(confidence, 0, 1),
		Drivers:             s.drivers(results),
		Risks:               risks(results),
	}
}

// drivers returns the top 3 factors by w_i * S_i contribution. Ties break
// by canonical factor order so the summary is reproducible.
func (s *Scorer) drivers(results []model.FactorResult) []model.FactorCategory {
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ca := s.cfg.Weights[results[idx[a]].Factor] * results[idx[a]].Score
		cb := s.cfg.Weights[results[idx[b]].Factor] * results[idx[b]].Score
		return ca > cb
	})

	n := 3
	if len(idx) < n {
		n = len(idx)
	}
	out := make([]model.FactorCategory, 0, n)
	for _, i := range idx[:n] {
		out = append(out, results[i].Factor)
	}
	return out
}

// risks returns factors scoring below 50, weakest first.
func risks(results []model.FactorResult) []model.FactorCategory {
	var weak []model.FactorResult
	for _, fr := range results {
		if fr.Score < 50 {
			weak = append(weak, fr)
		}
	}
	sort.SliceStable(weak, func(a, b int) bool {
		return weak[a].Score < weak[b].Score
	})
	out := make([]model.FactorCategory, 0, len(weak))
	for _, fr := range weak {
		out = append(out, fr.Factor)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
