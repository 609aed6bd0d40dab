package model

import "time"

// Stage is a development stage of a company's lead program.
type Stage string

const (
	StagePreclinical Stage = "preclinical"
	StagePhase1      Stage = "phase1"
	StagePhase2      Stage = "phase2"
	StagePhase3      Stage = "phase3"
	StageRegistered  Stage = "registered"
	StageMarketed    Stage = "marketed"
)

// stageOrder supports adjacency checks for stage-fit scoring.
var stageOrder = map[Stage]int{
	StagePreclinical: 0,
	StagePhase1:      1,
	StagePhase2:      2,
	StagePhase3:      3,
	StageRegistered:  4,
	StageMarketed:    5,
}

// Distance returns the absolute stage distance, or -1 for an unknown stage.
func (s Stage) Distance(other Stage) int {
	a, ok1 := stageOrder[s]
	b, ok2 := stageOrder[other]
	if !ok1 || !ok2 {
		return -1
	}
	if a > b {
		return a - b
	}
	return b - a
}

// TargetProfile holds the company fundamentals the matcher needs. It is
// maintained by an external system and read-only to the engine.
type TargetProfile struct {
	CompanyID         string   `json:"company_id" yaml:"company_id"`
	Name              string   `json:"name" yaml:"name"`
	TherapeuticAreas  []string `json:"therapeutic_areas" yaml:"therapeutic_areas"`
	LeadStage         Stage    `json:"lead_stage" yaml:"lead_stage"`
	MonthsToApproval  float64  `json:"months_to_approval" yaml:"months_to_approval"`
	MonthsToCatalyst  float64  `json:"months_to_catalyst" yaml:"months_to_catalyst"` // nearest upcoming catalyst
	EnterpriseValue   float64  `json:"enterprise_value" yaml:"enterprise_value"`     // USD
	PeakSalesEstimate float64  `json:"peak_sales_estimate" yaml:"peak_sales_estimate"`
	CashRunwayMonths  float64  `json:"cash_runway_months" yaml:"cash_runway_months"`
}

// PatentCliff is an expiring revenue stream on an acquirer's book.
type PatentCliff struct {
	Drug            string  `json:"drug" yaml:"drug"`
	AnnualRevenue   float64 `json:"annual_revenue" yaml:"annual_revenue"`
	MonthsToExpiry  float64 `json:"months_to_expiry" yaml:"months_to_expiry"`
	TherapeuticArea string  `json:"therapeutic_area" yaml:"therapeutic_area"`
}

// HistoricalDeal is a past acquisition in an acquirer's record.
type HistoricalDeal struct {
	TargetName      string    `json:"target_name" yaml:"target_name"`
	TherapeuticArea string    `json:"therapeutic_area" yaml:"therapeutic_area"`
	Stage           Stage     `json:"stage" yaml:"stage"`
	Value           float64   `json:"value" yaml:"value"`
	ClosedAt        time.Time `json:"closed_at" yaml:"closed_at"`
}

// AcquirerProfile describes a plausible acquirer. Owned and maintained
// externally; read-only to this engine.
type AcquirerProfile struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Priorities      map[string]int   `json:"priorities" yaml:"priorities"` // therapeutic area -> tier 1..3
	PatentCliffs    []PatentCliff    `json:"patent_cliffs" yaml:"patent_cliffs"`
	DealCapacity    float64          `json:"deal_capacity" yaml:"deal_capacity"`         // available M&A capacity, USD
	TypicalDealSize float64          `json:"typical_deal_size" yaml:"typical_deal_size"` // USD
	PreferredStages []Stage          `json:"preferred_stages" yaml:"preferred_stages"`
	HistoricalDeals []HistoricalDeal `json:"historical_deals" yaml:"historical_deals"`
}

// MatchComponents are the six weighted sub-scores of an acquirer match.
type MatchComponents struct {
	Therapeutic       float64 `json:"therapeutic"`        // 25%
	PatentCliff       float64 `json:"patent_cliff"`       // 25%
	Valuation         float64 `json:"valuation"`          // 20%
	Stage             float64 `json:"stage"`              // 15%
	HistoricalPattern float64 `json:"historical_pattern"` // 10%
	Urgency           float64 `json:"urgency"`            // 5%
}

// AcquirerMatch is a derived ranking entry. Recomputed per evaluation,
// cached downstream, never the source of truth.
type AcquirerMatch struct {
	TargetID      string          `json:"target_id"`
	AcquirerID    string          `json:"acquirer_id"`
	AcquirerName  string          `json:"acquirer_name"`
	MatchScore    float64         `json:"match_score"` // 0..100
	Components    MatchComponents `json:"components"`
	Rationale     []string        `json:"rationale"`
	ValuationLow  float64         `json:"valuation_low"`
	ValuationHigh float64         `json:"valuation_high"`
	Probability   float64         `json:"probability"` // 0..1
	Rank          int             `json:"rank"`
	LowConfidence bool            `json:"low_confidence"`
}
