package evaluation

import "github.com/shopspring/decimal"

// WeightedScore pairs a selection score with its class weight.
type WeightedScore struct {
	Score  *decimal.Decimal
	Weight decimal.Decimal
}

// AggregateScore returns Σ(score·weight)/Σ(weight) over the scored entries.
// Unscored entries are excluded from both sums. It returns nil when nothing
// is scored or the scored weights sum to zero.
func AggregateScore(scores []WeightedScore) *decimal.Decimal {
	numerator := decimal.Zero
	denominator := decimal.Zero
	for _, s := range scores {
		if s.Score == nil {
			continue
		}
		numerator = numerator.Add(s.Score.Mul(s.Weight))
		denominator = denominator.Add(s.Weight)
	}
	if denominator.IsZero() {
		return nil
	}
	result := numerator.DivRound(denominator, 4)
	return &result
}
