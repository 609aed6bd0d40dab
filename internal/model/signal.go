package model

import "time"

// SignalType classifies the origin of an intelligence signal.
type SignalType string

const (
	SignalClinical   SignalType = "clinical"
	SignalPatent     SignalType = "patent"
	SignalFinancial  SignalType = "financial"
	SignalManagement SignalType = "management"
	SignalMarket     SignalType = "market"
	SignalInsider    SignalType = "insider"
	SignalRegulatory SignalType = "regulatory"
)

// SignalTypes lists every valid signal type in canonical order.
var SignalTypes = []SignalType{
	SignalClinical,
	SignalPatent,
	SignalFinancial,
	SignalManagement,
	SignalMarket,
	SignalInsider,
	SignalRegulatory,
}

// Valid reports whether t is a member of the closed signal type set.
func (t SignalType) Valid() bool {
	for _, v := range SignalTypes {
		if t == v {
			return true
		}
	}
	return false
}

// FactorCategory is one of the 8 top-level scoring dimensions.
type FactorCategory string

const (
	FactorClinicalPipeline     FactorCategory = "clinical_pipeline"
	FactorPatentPosition       FactorCategory = "patent_position"
	FactorCashRunway           FactorCategory = "cash_runway"
	FactorManagementSignals    FactorCategory = "management_signals"
	FactorStrategicFit         FactorCategory = "strategic_fit"
	FactorCompetitiveLandscape FactorCategory = "competitive_landscape"
	FactorRegulatoryPathway    FactorCategory = "regulatory_pathway"
	FactorHistoricalPattern    FactorCategory = "historical_pattern"
)

// FactorCategories lists the 8 factors in canonical order. The order is
// load-bearing: driver/risk tie-breaks and snapshot layout follow it.
var FactorCategories = []FactorCategory{
	FactorClinicalPipeline,
	FactorPatentPosition,
	FactorCashRunway,
	FactorManagementSignals,
	FactorStrategicFit,
	FactorCompetitiveLandscape,
	FactorRegulatoryPathway,
	FactorHistoricalPattern,
}

// Valid reports whether f is a member of the closed factor set.
func (f FactorCategory) Valid() bool {
	for _, v := range FactorCategories {
		if f == v {
			return true
		}
	}
	return false
}

// Signal is a single immutable intelligence observation about a company.
// Once appended to the repository it is never modified.
type Signal struct {
	ID                string         `json:"id" yaml:"id"`
	CompanyID         string         `json:"company_id" yaml:"company_id"`
	Type              SignalType     `json:"signal_type" yaml:"signal_type"`
	Factor            FactorCategory `json:"factor_category" yaml:"factor_category"`
	RawValue          float64        `json:"raw_value" yaml:"raw_value"` // 0..100
	Timestamp         time.Time      `json:"timestamp" yaml:"timestamp"`
	Confidence        float64        `json:"confidence" yaml:"confidence"`                 // 0..1
	SourceReliability float64        `json:"source_reliability" yaml:"source_reliability"` // 0..1
	CorrelationGroup  string         `json:"correlation_group,omitempty" yaml:"correlation_group,omitempty"`
}

// AgeDays returns the signal age in fractional days at the evaluation instant.
func (s Signal) AgeDays(asOf time.Time) float64 {
	return asOf.Sub(s.Timestamp).Hours() / 24
}
