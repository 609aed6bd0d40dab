// Package backtest replays historical signal windows to measure how well
// the scoring and matching tables predict realized acquisitions. Fully
// offline: it builds its own in-memory stores and never touches the live
// per-company path.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"TargetSentinel/internal/config"
	"TargetSentinel/internal/decay"
	"TargetSentinel/internal/matcher"
	"TargetSentinel/internal/model"
	"TargetSentinel/internal/repository"
	"TargetSentinel/internal/scorer"
)

// Dataset is a reconstructed historical universe.
type Dataset struct {
	Signals   []model.Signal          `yaml:"signals"`
	Targets   []model.TargetProfile   `yaml:"targets"`
	Acquirers []model.AcquirerProfile `yaml:"acquirers"`

	// Outcomes marks companies acquired within the evaluation horizon.
	Outcomes map[string]bool `yaml:"outcomes"`

	// EvaluationDates are the as-of instants to replay, ascending.
	EvaluationDates []time.Time `yaml:"evaluation_dates"`
}

// CalibrationBucket compares predicted probability against realized
// frequency inside one probability band.
type CalibrationBucket struct {
	Low, High     float64
	Count         int
	PredictedMean float64
	ObservedRate  float64
}

// Metrics summarizes a backtest run.
type Metrics struct {
	K            int
	PrecisionAtK float64 // averaged over evaluation dates
	Brier        float64
	Calibration  []CalibrationBucket
	Evaluations  int
}

// Harness replays a dataset against a specific table version.
type Harness struct {
	cfg *config.Scoring
	k   int
	log zerolog.Logger
}

// New creates a Harness. k is the precision@K cutoff.
func New(cfg *config.Scoring, k int, log zerolog.Logger) *Harness {
	return &Harness{cfg: cfg, k: k, log: log}
}

type prediction struct {
	companyID   string
	score       float64
	probability float64
	hasProfile  bool
}

// Run executes the backtest. Malformed signals in the dataset surface as
// validation errors rather than being silently skipped.
func (h *Harness) Run(ctx context.Context, ds Dataset) (Metrics, error) {
	if len(ds.EvaluationDates) == 0 {
		return Metrics{}, fmt.Errorf("%w: no evaluation dates", model.ErrValidation)
	}

	repo := repository.NewMemoryStore()
	for _, sig := range ds.Signals {
		if _, err := repo.Append(ctx, sig); err != nil {
			return Metrics{}, fmt.Errorf("load dataset: %w", err)
		}
	}

	targets := make(map[string]model.TargetProfile, len(ds.Targets))
	for _, tgt := range ds.Targets {
		targets[tgt.CompanyID] = tgt
	}

	dec := decay.New(h.cfg)
	scr := scorer.New(h.cfg)
	mat := matcher.New(h.log)
	window := time.Duration(h.cfg.WindowDays) * 24 * time.Hour

	companies, err := repo.Companies(ctx)
	if err != nil {
		return Metrics{}, err
	}

	var precisionSum float64
	var brierSum float64
	var brierN int
	var probPredictions []prediction

	for _, asOf := range ds.EvaluationDates {
		preds := make([]prediction, 0, len(companies))
		for _, companyID := range companies {
			signals, err := repo.Query(ctx, companyID, asOf, window)
			if err != nil {
				return Metrics{}, err
			}
			snap := scr.Compute(companyID, asOf, dec.CombineByFactor(signals, asOf))

			pred := prediction{companyID: companyID, score: snap.CompositeScore}
			if tgt, ok := targets[companyID]; ok {
				result := mat.Match(tgt, snap, ds.Acquirers)
				pred.hasProfile = true
				if len(result.Matches) > 0 {
					pred.probability = result.Matches[0].Probability
				}
			}
			preds = append(preds, pred)
		}

		precisionSum += h.precisionAtK(preds, ds.Outcomes)
		for _, pred := range preds {
			if !pred.hasProfile {
				continue
			}
			y := 0.0
			if ds.Outcomes[pred.companyID] {
				y = 1
			}
			diff := pred.probability - y
			brierSum += diff * diff
			brierN++
			probPredictions = append(probPredictions, pred)
		}
	}

	metrics := Metrics{
		K:            h.k,
		PrecisionAtK: precisionSum / float64(len(ds.EvaluationDates)),
		Calibration:  h.calibration(probPredictions, ds.Outcomes),
		Evaluations:  len(ds.EvaluationDates) * len(companies),
	}
	if brierN > 0 {
		metrics.Brier = brierSum / float64(brierN)
	}
	return metrics, nil
}

// precisionAtK is the acquired fraction of the top-K scored companies.
// Ordering ties break by company id for reproducibility.
func (h *Harness) precisionAtK(preds []prediction, outcomes map[string]bool) float64 {
	sort.SliceStable(preds, func(a, b int) bool {
		if preds[a].score != preds[b].score {
			return preds[a].score > preds[b].score
		}
		return preds[a].companyID < preds[b].companyID
	})
	k := h.k
	if len(preds) < k {
		k = len(preds)
	}
	if k == 0 {
		return 0
	}
	hits := 0
	for _, pred := range preds[:k] {
		if outcomes[pred.companyID] {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// calibrationEdges bound the probability buckets.
var calibrationEdges = []float64{0, 0.05, 0.10, 0.20, 1.0}

func (h *Harness) calibration(preds []prediction, outcomes map[string]bool) []CalibrationBucket {
	buckets := make([]CalibrationBucket, len(calibrationEdges)-1)
	sums := make([]float64, len(buckets))
	hits := make([]int, len(buckets))
	for i := range buckets {
		buckets[i].Low = calibrationEdges[i]
		buckets[i].High = calibrationEdges[i+1]
	}

	for _, pred := range preds {
		idx := len(buckets) - 1
		for i := range buckets {
			if pred.probability < buckets[i].High || i == len(buckets)-1 {
				idx = i
				break
			}
		}
		buckets[idx].Count++
		sums[idx] += pred.probability
		if outcomes[pred.companyID] {
			hits[idx]++
		}
	}

	for i := range buckets {
		if buckets[i].Count > 0 {
			buckets[i].PredictedMean = sums[i] / float64(buckets[i].Count)
			buckets[i].ObservedRate = float64(hits[i]) / float64(buckets[i].Count)
		}
	}
	return buckets
}
