package model

import "time"

// Tier is the watchlist priority bucket, 1 (highest) through 4 (monitoring).
type Tier int

const (
	TierNone Tier = 0 // not on the watchlist
	Tier1    Tier = 1
	Tier2    Tier = 2
	Tier3    Tier = 3
	Tier4    Tier = 4
)

func (t Tier) String() string {
	switch t {
	case Tier1:
		return "TIER_1"
	case Tier2:
		return "TIER_2"
	case Tier3:
		return "TIER_3"
	case Tier4:
		return "TIER_4"
	default:
		return "NONE"
	}
}

// FactorResult is the evaluated state of one scoring factor.
type FactorResult struct {
	Factor      FactorCategory `json:"factor"`
	Score       float64        `json:"score"`      // S_i, 0..100
	Quality     float64        `json:"quality"`    // D_i, 0..1
	Confidence  float64        `json:"confidence"` // 0..1
	Weighted    float64        `json:"weighted"`   // w_i * S_i * D_i
	SignalCount int            `json:"signal_count"`
}

// CompanyScoreSnapshot is one point in a company's append-only score
// history. A new snapshot never overwrites a prior one.
type CompanyScoreSnapshot struct {
	CompanyID           string           `json:"company_id"`
	EvaluatedAt         time.Time        `json:"evaluated_at"`
	CompositeScore      float64          `json:"composite_score"` // 0..100
	Factors             []FactorResult   `json:"factors"`         // canonical factor order
	AggregateConfidence float64          `json:"aggregate_confidence"`
	Percentile          float64          `json:"percentile"`
	Tier                Tier             `json:"tier"`
	Drivers             []FactorCategory `json:"drivers"` // top 3 by weighted contribution
	Risks               []FactorCategory `json:"risks"`   // factors scoring below 50
}

// FactorResult returns the result for a factor, or a zero value if absent.
func (s *CompanyScoreSnapshot) FactorResult(f FactorCategory) FactorResult {
	for _, fr := range s.Factors {
		if fr.Factor == f {
			return fr
		}
	}
	return FactorResult{Factor: f}
}

// SpecialConditions are explicit boolean flags that can qualify a company
// for a higher tier than its score band alone would allow. They are
// asserted by upstream analysis, never inferred here.
type SpecialConditions struct {
	RunwayCatalystSqueeze bool `json:"runway_catalyst_squeeze"` // cash runway <12mo with a catalyst <6mo out
	StrategicReview       bool `json:"strategic_review"`
	ActivistStake         bool `json:"activist_stake"`
	AdvisorHired          bool `json:"advisor_hired"`
	StrongAcquirerFit     bool `json:"strong_acquirer_fit"` // >=2 acquirer matches with fit >=75
}

// Count returns the number of conditions currently set.
func (c SpecialConditions) Count() int {
	n := 0
	for _, b := range []bool{
		c.RunwayCatalystSqueeze, c.StrategicReview, c.ActivistStake,
		c.AdvisorHired, c.StrongAcquirerFit,
	} {
		if b {
			n++
		}
	}
	return n
}

// TierChange records a watchlist transition produced by an evaluation.
type TierChange struct {
	CompanyID string    `json:"company_id"`
	From      Tier      `json:"from"`
	To        Tier      `json:"to"`
	At        time.Time `json:"at"`
	Reason    string    `json:"reason"`
}

// WatchlistState is the lifecycle state of a tracked company:
// NotTracked -> {Tier1..Tier4} <-> Inactive -> Removed (permanent).
type WatchlistState string

const (
	StateNotTracked WatchlistState = "not_tracked"
	StateActive     WatchlistState = "active"
	StateInactive   WatchlistState = "inactive"
	StateRemoved    WatchlistState = "removed"
)

// WatchlistEntry tracks a company's current position on the watchlist.
type WatchlistEntry struct {
	CompanyID  string         `json:"company_id"`
	State      WatchlistState `json:"state"`
	Tier       Tier           `json:"tier"`
	EnteredAt  time.Time      `json:"entered_at"`
	ExitReason string         `json:"exit_reason,omitempty"`
}
