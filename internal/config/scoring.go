package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"TargetSentinel/internal/model"
)

// weightEpsilon bounds the allowed drift of the factor weight sum from 1.0.
const weightEpsilon = 1e-6

// CorrelationRule maps an unordered signal type pair to a coefficient
// r in [0,1) used to discount correlated signals.
type CorrelationRule struct {
	TypeA model.SignalType `yaml:"type_a"`
	TypeB model.SignalType `yaml:"type_b"`
	R     float64          `yaml:"r"`
}

// MomentumBand maps a signal-flow ratio threshold to a score bonus.
type MomentumBand struct {
	MinRatio float64 `yaml:"min_ratio"`
	Bonus    float64 `yaml:"bonus"`
}

// MomentumConfig controls the signal-acceleration bonus.
type MomentumConfig struct {
	RecentDays   int            `yaml:"recent_days"`
	BaselineDays int            `yaml:"baseline_days"`
	Accelerating []MomentumBand `yaml:"accelerating"` // descending MinRatio
	Decelerating []MomentumBand `yaml:"decelerating"` // ascending MinRatio; bonus applies when ratio <= MinRatio
}

// Scoring is the versioned, immutable table set the engine scores from.
// It is loaded once at construction and passed explicitly, never held in
// a process-wide global, so backtests can replay historical versions.
type Scoring struct {
	Version string `yaml:"version"`

	// Weights maps each of the 8 factors to its share of the composite.
	// Invariant: the weights sum to 1.0 within weightEpsilon.
	Weights map[model.FactorCategory]float64 `yaml:"weights"`

	// HalfLifeDays maps each signal type to its decay half-life.
	HalfLifeDays map[model.SignalType]float64 `yaml:"half_life_days"`

	Correlations       []CorrelationRule `yaml:"correlations"`
	DefaultCorrelation float64           `yaml:"default_correlation"`

	// NeutralBaseline is the factor score assumed when a factor has no
	// signals in the window. Its confidence is always zero.
	NeutralBaseline float64 `yaml:"neutral_baseline"`

	// ExpectedSignalsPerWindow is the completeness denominator: a factor
	// with this many signals in the window counts as fully covered.
	ExpectedSignalsPerWindow int `yaml:"expected_signals_per_window"`

	// WindowDays is the evaluation lookback window.
	WindowDays int `yaml:"window_days"`

	Momentum MomentumConfig `yaml:"momentum"`
}

// DefaultScoring returns the built-in table set.
func DefaultScoring() *Scoring {
	return &Scoring{
		Version: "v1",
		Weights: map[model.FactorCategory]float64{
			model.FactorClinicalPipeline:     0.30,
			model.FactorPatentPosition:       0.12,
			model.FactorCashRunway:           0.18,
			model.FactorManagementSignals:    0.10,
			model.FactorStrategicFit:         0.15,
			model.FactorCompetitiveLandscape: 0.08,
			model.FactorRegulatoryPathway:    0.05,
			model.FactorHistoricalPattern:    0.02,
		},
		HalfLifeDays: map[model.SignalType]float64{
			model.SignalClinical:   230,
			model.SignalPatent:     345,
			model.SignalFinancial:  87,
			model.SignalManagement: 115,
			model.SignalMarket:     58,
			model.SignalInsider:    69,
			model.SignalRegulatory: 173,
		},
		Correlations: []CorrelationRule{
			{TypeA: model.SignalClinical, TypeB: model.SignalRegulatory, R: 0.7},
			{TypeA: model.SignalFinancial, TypeB: model.SignalMarket, R: 0.6},
			{TypeA: model.SignalInsider, TypeB: model.SignalManagement, R: 0.5},
		},
		DefaultCorrelation:       0.7,
		NeutralBaseline:          50,
		ExpectedSignalsPerWindow: 5,
		WindowDays:               180,
		Momentum: MomentumConfig{
			RecentDays:   30,
			BaselineDays: 180,
			Accelerating: []MomentumBand{
				{MinRatio: 2.0, Bonus: 5},
				{MinRatio: 1.5, Bonus: 3},
				{MinRatio: 1.2, Bonus: 1},
			},
			Decelerating: []MomentumBand{
				{MinRatio: 0.5, Bonus: -5},
				{MinRatio: 0.8, Bonus: -3},
			},
		},
	}
}

// LoadScoring reads a scoring table file, falling back to the defaults
// when path is empty. The result is always validated.
func LoadScoring(path string) (*Scoring, error) {
	if path == "" {
		s := DefaultScoring()
		return s, s.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring tables: %w", err)
	}
	s := &Scoring{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse scoring tables: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate enforces the startup invariants. Any violation is fatal: the
// engine refuses to score from a bad table set.
func (s *Scoring) Validate() error {
	sum := 0.0
	for f, w := range s.Weights {
		if !f.Valid() {
			return fmt.Errorf("%w: weight for unknown factor %q", model.ErrConfiguration, f)
		}
		if w < 0 {
			return fmt.Errorf("%w: negative weight %.4f for factor %q", model.ErrConfiguration, w, f)
		}
		sum += w
	}
	for _, f := range model.FactorCategories {
		if _, ok := s.Weights[f]; !ok {
			return fmt.Errorf("%w: missing weight for factor %q", model.ErrConfiguration, f)
		}
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: factor weights sum to %.6f, expected 1.0", model.ErrConfiguration, sum)
	}

	for t, hl := range s.HalfLifeDays {
		if !t.Valid() {
			return fmt.Errorf("%w: half-life for unknown signal type %q", model.ErrConfiguration, t)
		}
		if hl <= 0 {
			return fmt.Errorf("%w: half-life for %q must be positive", model.ErrConfiguration, t)
		}
	}
	for _, t := range model.SignalTypes {
		if _, ok := s.HalfLifeDays[t]; !ok {
			return fmt.Errorf("%w: missing half-life for signal type %q", model.ErrConfiguration, t)
		}
	}

	for _, c := range s.Correlations {
		if !c.TypeA.Valid() || !c.TypeB.Valid() {
			return fmt.Errorf("%w: correlation rule references unknown type (%q,%q)", model.ErrConfiguration, c.TypeA, c.TypeB)
		}
		if c.R < 0 || c.R >= 1 {
			return fmt.Errorf("%w: correlation r=%.3f for (%q,%q) outside [0,1)", model.ErrConfiguration, c.R, c.TypeA, c.TypeB)
		}
	}
	if s.DefaultCorrelation < 0 || s.DefaultCorrelation >= 1 {
		return fmt.Errorf("%w: default correlation %.3f outside [0,1)", model.ErrConfiguration, s.DefaultCorrelation)
	}

	if s.NeutralBaseline < 0 || s.NeutralBaseline > 100 {
		return fmt.Errorf("%w: neutral baseline %.1f outside [0,100]", model.ErrConfiguration, s.NeutralBaseline)
	}
	if s.ExpectedSignalsPerWindow <= 0 {
		return fmt.Errorf("%w: expected_signals_per_window must be positive", model.ErrConfiguration)
	}
	if s.WindowDays <= 0 {
		return fmt.Errorf("%w: window_days must be positive", model.ErrConfiguration)
	}
	if s.Momentum.RecentDays <= 0 || s.Momentum.BaselineDays <= s.Momentum.RecentDays {
		return fmt.Errorf("%w: momentum windows invalid (recent=%d baseline=%d)", model.ErrConfiguration, s.Momentum.RecentDays, s.Momentum.BaselineDays)
	}
	return nil
}

// Lambda returns the decay constant for a signal type: ln2 / half-life.
func (s *Scoring) Lambda(t model.SignalType) float64 {
	hl, ok := s.HalfLifeDays[t]
	if !ok || hl <= 0 {
		return 0
	}
	return math.Ln2 / hl
}

// CorrelationR returns the coefficient for an unordered type pair,
// falling back to the configured default.
func (s *Scoring) CorrelationR(a, b model.SignalType) float64 {
	for _, c := range s.Correlations {
		if (c.TypeA == a && c.TypeB == b) || (c.TypeA == b && c.TypeB == a) {
			return c.R
		}
	}
	return s.DefaultCorrelation
}

// MomentumBonus maps a recent-vs-baseline signal flow ratio to a bonus.
func (s *Scoring) MomentumBonus(ratio float64) float64 {
	for _, b := range s.Momentum.Accelerating {
		if ratio >= b.MinRatio {
			return b.Bonus
		}
	}
	for _, b := range s.Momentum.Decelerating {
		if ratio <= b.MinRatio {
			return b.Bonus
		}
	}
	return 0
}
