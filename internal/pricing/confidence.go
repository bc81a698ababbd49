package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Confidence factor levels.
const (
	HighConfidence   = 0.95
	MediumConfidence = 0.80
	LowConfidence    = 0.60
)

// Aggregate combines factor scores with a geometric mean so one weak factor
// pulls the whole score down.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	product := 1.0
	for _, s := range scores {
		if s <= 0 {
			return 0
		}
		product *= s
	}
	return math.Pow(product, 1.0/float64(len(scores)))
}

// Clamp keeps score in [0, 1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ruleAgreement describes how a matched rule related to the best-price pick.
type ruleAgreement int

const (
	noRuleInfluence ruleAgreement = iota
	ruleAgreesWithPrice
	ruleOverridesPrice
	ruleCategoryOverridesPrice
	ruleNotHonored
)

// confidenceInputs are the facts the score is built from.
type confidenceInputs struct {
	winnerAvailable bool
	alternatives    int
	agreement       ruleAgreement
	reviewFlagged   bool
}

// score returns the confidence rounded to 4 places.
func (in confidenceInputs) score() decimal.Decimal {
	factors := make([]float64, 0, 4)

	if in.winnerAvailable {
		factors = append(factors, 1.0)
	} else {
		factors = append(factors, LowConfidence)
	}

	// more quotes means more market evidence, saturating at three
	depth := 0.7 + 0.1*math.Min(float64(in.alternatives), 3)
	factors = append(factors, depth)

	switch in.agreement {
	case ruleAgreesWithPrice:
		factors = append(factors, 1.0)
	case ruleOverridesPrice:
		factors = append(factors, MediumConfidence)
	case ruleCategoryOverridesPrice:
		factors = append(factors, 0.85)
	case ruleNotHonored:
		factors = append(factors, LowConfidence)
	default:
		factors = append(factors, HighConfidence)
	}

	if in.reviewFlagged {
		factors = append(factors, LowConfidence)
	}

	return decimal.NewFromFloat(Clamp(Aggregate(factors))).Round(4)
}
