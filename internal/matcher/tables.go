package matcher

// Sub-score weights of the acquirer match composite.
const (
	weightTherapeutic = 0.25
	weightPatentCliff = 0.25
	weightValuation   = 0.20
	weightStage       = 0.15
	weightHistorical  = 0.10
	weightUrgency     = 0.05
)

// timingBands scores |months_to_cliff - months_to_approval| deviation.
var timingBands = []struct {
	MaxDeviation float64
	Score        float64
}{
	{6, 100},
	{12, 80},
	{24, 60},
	{36, 40},
}

const timingFloor = 20.0

// sizeFitBands scores the deal-size ratio (estimated deal value over the
// acquirer's typical deal size). Peak fit sits in [0.5, 1.5].
var sizeFitBands = []struct {
	MinRatio, MaxRatio float64
	Score              float64
}{
	{0.5, 1.5, 100},
	{0.3, 2.0, 80},
	{0.15, 3.0, 60},
	{0.05, 5.0, 40},
}

const sizeFitFloor = 20.0

// baseProbBands maps a match-score bucket to the base deal probability.
var baseProbBands = []struct {
	MinScore float64
	P        float64
}{
	{85, 0.25},
	{75, 0.15},
	{65, 0.08},
	{50, 0.04},
}

const baseProbFloor = 0.01

// scoreMultiplier scales probability by the number of strong (>=80)
// matches across the catalog: a crowded field raises deal likelihood.
func scoreMultiplier(strong int) float64 {
	switch {
	case strong >= 3:
		return 1.5
	case strong == 2:
		return 1.3
	case strong == 1:
		return 1.1
	default:
		return 0.9
	}
}

// timingMultiplier scales probability by proximity of the target's
// nearest catalyst.
var timingMultipliers = []struct {
	MaxMonths float64
	Mult      float64
}{
	{3, 1.4},
	{6, 1.25},
	{12, 1.1},
}

const (
	timingMultFloor = 1.0
	probabilityCap  = 0.95
)

// premiumBands maps a match-score bucket to the acquisition premium range
// applied over enterprise value.
var premiumBands = []struct {
	MinScore  float64
	Low, High float64
}{
	{85, 0.45, 0.85},
	{70, 0.35, 0.65},
	{50, 0.25, 0.50},
	{0, 0.15, 0.35},
}

// dealPremiumMid estimates deal value ahead of the match score, for the
// size-fit and affordability ratios.
const dealPremiumMid = 0.40

// urgencyBands scores the acquirer's nearest patent cliff.
var urgencyBands = []struct {
	MaxMonths float64
	Score     float64
}{
	{12, 100},
	{24, 80},
	{36, 60},
}

const urgencyFloor = 40.0
