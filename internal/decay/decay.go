// Package decay converts a window of raw signals into an effective
// per-factor value: exponential time decay, confidence decay, correlation
// de-duplication, and a signal-flow momentum bonus.
package decay

import (
	"math"
	"sort"
	"time"

	"TargetSentinel/internal/config"
	"TargetSentinel/internal/model"
)

// Engine applies the configured decay and correlation tables. It is pure
// given a fetched signal window and safe for concurrent use.
type Engine struct {
	cfg *config.Scoring
}

// New creates a decay engine from a validated table set.
func New(cfg *config.Scoring) *Engine {
	return &Engine{cfg: cfg}
}

// FactorValue is the combined state of one factor over a signal window.
type FactorValue struct {
	Score       float64 // S_i, 0..100
	Confidence  float64 // 0..1
	Quality     float64 // D_i = completeness * recency * reliability
	SignalCount int
	Momentum    float64 // applied bonus, for explainability
}

// recencyWeight is e^(-lambda * age). Future-dated signals count as fresh.
func (e *Engine) recencyWeight(sig model.Signal, asOf time.Time) float64 {
	age := sig.AgeDays(asOf)
	if age <= 0 {
		return 1
	}
	return math.Exp(-e.cfg.Lambda(sig.Type) * age)
}

// EffectiveValue returns the time-decayed raw value of a single signal.
func (e *Engine) EffectiveValue(sig model.Signal, asOf time.Time) float64 {
	return sig.RawValue * e.recencyWeight(sig, asOf)
}

// VerificationFactor maps source reliability to the verification multiplier:
// confirmed multi-source 1.0, single-source verified 0.95, single-source
// unverified 0.85, rumor 0.60.
func VerificationFactor(reliability float64) float64 {
	switch {
	case reliability >= 0.90:
		return 1.0
	case reliability >= 0.75:
		return 0.95
	case reliability >= 0.50:
		return 0.85
	default:
		return 0.60
	}
}

// EffectiveConfidence returns the decayed, verification-adjusted
// confidence of a single signal.
func (e *Engine) EffectiveConfidence(sig model.Signal, asOf time.Time) float64 {
	return sig.Confidence * e.recencyWeight(sig, asOf) * VerificationFactor(sig.SourceReliability)
}

// observation is one evidence unit after correlation folding: either a
// lone signal or a folded correlation group.
type observation struct {
	value      float64
	weight     float64
	confidence float64
}

// Combine aggregates one factor's signals into a FactorValue. A factor
// with zero signals degrades to the neutral baseline with confidence 0
// and quality 0; it is not an error.
func (e *Engine) Combine(signals []model.Signal, asOf time.Time) FactorValue {
	if len(signals) == 0 {
		return FactorValue{Score: e.cfg.NeutralBaseline}
	}

	obs := e.fold(signals, asOf)

	var valueSum, confSum, weightSum float64
	for _, o := range obs {
		valueSum += o.value * o.weight
		confSum += o.confidence * o.weight
		weightSum += o.weight
	}

	var score, conf float64
	if weightSum > 0 {
		score = valueSum / weightSum
		conf = confSum / weightSum
	} else {
		score = e.cfg.NeutralBaseline
	}

	momentum := e.momentumBonus(signals, asOf)
	score = clamp(score+momentum, 0, 100)

	return FactorValue{
		Score:       score,
		Confidence:  clamp(conf, 0, 1),
		Quality:     e.quality(signals, asOf),
		SignalCount: len(signals),
		Momentum:    momentum,
	}
}

// fold partitions signals into correlation groups and reduces each group
// to a single observation. The strongest signal counts fully; each
// subsequent correlated signal contributes only its excess over r times
// the running total, so the adjusted sum never exceeds the naive sum.
func (e *Engine) fold(signals []model.Signal, asOf time.Time) []observation {
	groupSize := make(map[string]int)
	for _, sig := range signals {
		if sig.CorrelationGroup != "" {
			groupSize[sig.CorrelationGroup]++
		}
	}

	// Signals whose group has fewer than two members in the window count
	// as uncorrelated. Partition in input order to keep sums deterministic.
	groups := make(map[string][]model.Signal)
	var groupKeys []string
	var lone []model.Signal
	for _, sig := range signals {
		if sig.CorrelationGroup == "" || groupSize[sig.CorrelationGroup] < 2 {
			lone = append(lone, sig)
			continue
		}
		if len(groups[sig.CorrelationGroup]) == 0 {
			groupKeys = append(groupKeys, sig.CorrelationGroup)
		}
		groups[sig.CorrelationGroup] = append(groups[sig.CorrelationGroup], sig)
	}
	sort.Strings(groupKeys)

	var obs []observation
	for _, sig := range lone {
		obs = append(obs, observation{
			value:      e.EffectiveValue(sig, asOf),
			weight:     e.recencyWeight(sig, asOf) * sig.Confidence,
			confidence: e.EffectiveConfidence(sig, asOf),
		})
	}
	for _, key := range groupKeys {
		obs = append(obs, e.foldGroup(groups[key], asOf))
	}
	return obs
}

// FoldGroup reduces a correlation group (>=2 members) to its adjusted
// combined value. Exported for the correlation-bound property tests.
func (e *Engine) FoldGroup(members []model.Signal, asOf time.Time) float64 {
	return e.foldGroup(members, asOf).value
}

func (e *Engine) foldGroup(members []model.Signal, asOf time.Time) observation {
	decayed := make([]float64, len(members))
	for i, sig := range members {
		decayed[i] = e.EffectiveValue(sig, asOf)
	}
	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if decayed[order[a]] != decayed[order[b]] {
			return decayed[order[a]] > decayed[order[b]]
		}
		// Deterministic tie-break: newer first, then ID.
		ma, mb := members[order[a]], members[order[b]]
		if !ma.Timestamp.Equal(mb.Timestamp) {
			return ma.Timestamp.After(mb.Timestamp)
		}
		return ma.ID < mb.ID
	})

	leader := members[order[0]]
	total := decayed[order[0]]
	var weightSum, confWeighted float64
	for _, idx := range order {
		sig := members[idx]
		w := e.recencyWeight(sig, asOf) * sig.Confidence
		weightSum += w
		confWeighted += e.EffectiveConfidence(sig, asOf) * w
	}
	// Each subsequent correlated signal contributes only the part of its
	// value not already explained by the running total: for two signals
	// a >= b this totals a + b - r*a, and for longer groups the
	// contribution floors at zero so a strong signal can fully subsume
	// weaker correlated ones. The adjusted sum never exceeds the naive sum.
	for _, idx := range order[1:] {
		r := e.cfg.CorrelationR(members[idx].Type, leader.Type)
		contribution := decayed[idx] - r*total
		if contribution > 0 {
			total += contribution
		}
	}

	conf := 0.0
	if weightSum > 0 {
		conf = confWeighted / weightSum
	}
	return observation{value: total, weight: weightSum, confidence: conf}
}

// momentumBonus compares recent signal flow against the window baseline.
func (e *Engine) momentumBonus(signals []model.Signal, asOf time.Time) float64 {
	recentCut := asOf.AddDate(0, 0, -e.cfg.Momentum.RecentDays)
	baselineCut := asOf.AddDate(0, 0, -e.cfg.Momentum.BaselineDays)

	var recent, baseline int
	for _, sig := range signals {
		if sig.Timestamp.After(baselineCut) {
			baseline++
		}
		if sig.Timestamp.After(recentCut) {
			recent++
		}
	}
	periods := float64(e.cfg.Momentum.BaselineDays) / float64(e.cfg.Momentum.RecentDays)
	baselineAvg := float64(baseline) / periods
	if baselineAvg == 0 {
		return 0
	}
	return e.cfg.MomentumBonus(float64(recent) / baselineAvg)
}

// quality is D_i = completeness * recency * reliability, each in [0,1].
func (e *Engine) quality(signals []model.Signal, asOf time.Time) float64 {
	if len(signals) == 0 {
		return 0
	}
	completeness := math.Min(1, float64(len(signals))/float64(e.cfg.ExpectedSignalsPerWindow))

	newest := signals[0]
	var reliabilitySum float64
	for _, sig := range signals {
		if sig.Timestamp.After(newest.Timestamp) {
			newest = sig
		}
		reliabilitySum += sig.SourceReliability
	}
	recency := e.recencyWeight(newest, asOf)
	reliability := reliabilitySum / float64(len(signals))

	return clamp(completeness*recency*reliability, 0, 1)
}

// CombineByFactor buckets a company's signal window by factor and
// combines each bucket. Every factor appears in the result, degraded to
// the neutral baseline when empty.
func (e *Engine) CombineByFactor(signals []model.Signal, asOf time.Time) map[model.FactorCategory]FactorValue {
	buckets := make(map[model.FactorCategory][]model.Signal)
	for _, sig := range signals {
		buckets[sig.Factor] = append(buckets[sig.Factor], sig)
	}
	out := make(map[model.FactorCategory]FactorValue, len(model.FactorCategories))
	for _, f := range model.FactorCategories {
		out[f] = e.Combine(buckets[f], asOf)
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
