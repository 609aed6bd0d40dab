// Package matcher ranks plausible acquirers for a scored target using six
// weighted sub-scores and fixed lookup tables. Fully deterministic: ties
// break by historical-pattern score, then acquirer id.
package matcher

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"TargetSentinel/internal/model"
)

// Matcher computes acquirer match rankings. Stateless and safe for
// concurrent use.
type Matcher struct {
	log zerolog.Logger
}

// New creates a Matcher.
func New(log zerolog.Logger) *Matcher {
	return &Matcher{log: log}
}

// Result is a ranked match list. LowConfidence is set when the catalog
// was empty or the target snapshot carried little underlying data.
type Result struct {
	Matches       []model.AcquirerMatch
	LowConfidence bool
}

// Match scores every acquirer in the catalog against the target. An empty
// catalog yields an empty ranked list, not an error.
func (m *Matcher) Match(target model.TargetProfile, snap model.CompanyScoreSnapshot, catalog []model.AcquirerProfile) Result {
	if len(catalog) == 0 {
		m.log.Debug().Str("company", target.CompanyID).Msg("empty acquirer catalog")
		return Result{LowConfidence: true}
	}

	matches := make([]model.AcquirerMatch, 0, len(catalog))
	for _, acq := range catalog {
		matches = append(matches, m.scoreOne(target, acq))
	}

	strong := 0
	for _, match := range matches {
		if match.MatchScore >= 80 {
			strong++
		}
	}
	for i := range matches {
		matches[i].Probability = probability(matches[i].MatchScore, strong, target.MonthsToCatalyst)
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].MatchScore != matches[b].MatchScore {
			return matches[a].MatchScore > matches[b].MatchScore
		}
		if matches[a].Components.HistoricalPattern != matches[b].Components.HistoricalPattern {
			return matches[a].Components.HistoricalPattern > matches[b].Components.HistoricalPattern
		}
		return matches[a].AcquirerID < matches[b].AcquirerID
	})

	lowConfidence := snap.AggregateConfidence < 0.3
	for i := range matches {
		matches[i].Rank = i + 1
		matches[i].LowConfidence = lowConfidence
	}
	return Result{Matches: matches, LowConfidence: lowConfidence}
}

func (m *Matcher) scoreOne(target model.TargetProfile, acq model.AcquirerProfile) model.AcquirerMatch {
	comp := model.MatchComponents{
		Therapeutic:       therapeuticAlignment(target, acq),
		PatentCliff:       patentCliffFit(target, acq),
		Valuation:         valuationFit(target, acq),
		Stage:             stageFit(target, acq),
		HistoricalPattern: historicalPattern(target, acq),
		Urgency:           strategicUrgency(acq),
	}
	score := comp.Therapeutic*weightTherapeutic +
		comp.PatentCliff*weightPatentCliff +
		comp.Valuation*weightValuation +
		comp.Stage*weightStage +
		comp.HistoricalPattern*weightHistorical +
		comp.Urgency*weightUrgency

	low, high := valuationRange(target.EnterpriseValue, score)

	return model.AcquirerMatch{
		TargetID:      target.CompanyID,
		AcquirerID:    acq.ID,
		AcquirerName:  acq.Name,
		MatchScore:    score,
		Components:    comp,
		Rationale:     rationale(comp, acq),
		ValuationLow:  low,
		ValuationHigh: high,
	}
}

// therapeuticAlignment scores the best priority tier the target's areas
// hit in the acquirer's strategic map.
func therapeuticAlignment(target model.TargetProfile, acq model.AcquirerProfile) float64 {
	best := 0
	for _, area := range target.TherapeuticAreas {
		tier, ok := acq.Priorities[area]
		if !ok {
			continue
		}
		if best == 0 || tier < best {
			best = tier
		}
	}
	switch best {
	case 1:
		return 100
	case 2:
		return 75
	case 3:
		return 50
	default:
		return 20
	}
}

// patentCliffFit scores the acquirer's best-fitting expiring revenue
// stream: 0.6*timing + 0.3*therapeutic + 0.1*sales replacement.
func patentCliffFit(target model.TargetProfile, acq model.AcquirerProfile) float64 {
	if len(acq.PatentCliffs) == 0 {
		return timingFloor
	}
	best := 0.0
	for _, cliff := range acq.PatentCliffs {
		timing := timingFit(math.Abs(cliff.MonthsToExpiry - target.MonthsToApproval))

		therapeutic := 20.0
		for _, area := range target.TherapeuticAreas {
			if area == cliff.TherapeuticArea {
				therapeutic = 100
				break
			}
		}

		sales := 50.0
		if cliff.AnnualRevenue > 0 {
			sales = math.Min(1, target.PeakSalesEstimate/cliff.AnnualRevenue) * 100
		}

		fit := 0.6*timing + 0.3*therapeutic + 0.1*sales
		if fit > best {
			best = fit
		}
	}
	return best
}

func timingFit(deviationMonths float64) float64 {
	for _, band := range timingBands {
		if deviationMonths <= band.MaxDeviation {
			return band.Score
		}
	}
	return timingFloor
}

// valuationFit = sizeFit(deal-size ratio) * affordability.
func valuationFit(target model.TargetProfile, acq model.AcquirerProfile) float64 {
	dealValue := target.EnterpriseValue * (1 + dealPremiumMid)
	if dealValue <= 0 {
		return 0
	}

	sizeFit := sizeFitFloor
	if acq.TypicalDealSize > 0 {
		ratio := dealValue / acq.TypicalDealSize
		for _, band := range sizeFitBands {
			if ratio >= band.MinRatio && ratio <= band.MaxRatio {
				sizeFit = band.Score
				break
			}
		}
	}

	affordability := 0.0
	if acq.DealCapacity > 0 {
		affordability = math.Min(1, acq.DealCapacity/dealValue)
	}
	return sizeFit * affordability
}

func stageFit(target model.TargetProfile, acq model.AcquirerProfile) float64 {
	if len(acq.PreferredStages) == 0 {
		return 50
	}
	best := 40.0
	for _, stage := range acq.PreferredStages {
		switch target.LeadStage.Distance(stage) {
		case 0:
			return 100
		case 1:
			best = math.Max(best, 70)
		}
	}
	return best
}

// historicalPattern scores the share of the acquirer's past deals that
// match the target's therapeutic area or stage.
func historicalPattern(target model.TargetProfile, acq model.AcquirerProfile) float64 {
	if len(acq.HistoricalDeals) == 0 {
		return 50
	}
	matched := 0
	for _, deal := range acq.HistoricalDeals {
		areaMatch := false
		for _, area := range target.TherapeuticAreas {
			if area == deal.TherapeuticArea {
				areaMatch = true
				break
			}
		}
		if areaMatch || deal.Stage == target.LeadStage {
			matched++
		}
	}
	return float64(matched) / float64(len(acq.HistoricalDeals)) * 100
}

func strategicUrgency(acq model.AcquirerProfile) float64 {
	nearest := math.Inf(1)
	for _, cliff := range acq.PatentCliffs {
		if cliff.MonthsToExpiry < nearest {
			nearest = cliff.MonthsToExpiry
		}
	}
	for _, band := range urgencyBands {
		if nearest <= band.MaxMonths {
			return band.Score
		}
	}
	return urgencyFloor
}

// probability = baseProb(score bucket) * scoreMultiplier(strong matches)
// * timingMultiplier(months to nearest catalyst), capped.
func probability(score float64, strong int, monthsToCatalyst float64) float64 {
	base := baseProbFloor
	for _, band := range baseProbBands {
		if score >= band.MinScore {
			base = band.P
			break
		}
	}

	timing := timingMultFloor
	if monthsToCatalyst > 0 {
		for _, band := range timingMultipliers {
			if monthsToCatalyst <= band.MaxMonths {
				timing = band.Mult
				break
			}
		}
	}
	return math.Min(probabilityCap, base*scoreMultiplier(strong)*timing)
}

// valuationRange applies the premium band for the match score over the
// target's enterprise value.
func valuationRange(enterpriseValue, score float64) (float64, float64) {
	for _, band := range premiumBands {
		if score >= band.MinScore {
			return enterpriseValue * (1 + band.Low), enterpriseValue * (1 + band.High)
		}
	}
	return enterpriseValue, enterpriseValue
}

// rationale names the strongest drivers of a match for operator review.
func rationale(comp model.MatchComponents, acq model.AcquirerProfile) []string {
	var out []string
	if comp.Therapeutic >= 75 {
		out = append(out, "target pipeline sits in a priority therapeutic area")
	}
	if comp.PatentCliff >= 70 {
		out = append(out, "approval timeline lines up with an expiring revenue stream")
	}
	if comp.Valuation >= 80 {
		out = append(out, "deal size fits capacity and historical deal band")
	}
	if comp.Stage >= 100 {
		out = append(out, "lead program at the acquirer's preferred stage")
	}
	if comp.HistoricalPattern >= 70 {
		out = append(out, fmt.Sprintf("consistent with %d prior deals", len(acq.HistoricalDeals)))
	}
	if comp.Urgency >= 80 {
		out = append(out, "near-term patent cliff raises strategic urgency")
	}
	if len(out) == 0 {
		out = append(out, "no dominant fit driver")
	}
	return out
}
