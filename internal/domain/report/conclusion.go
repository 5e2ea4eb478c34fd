package report

import "github.com/shopspring/decimal"

// Tier is the compliance band a score falls into.
type Tier int

const (
	TierUnscored Tier = iota
	TierNeedsImprovement
	TierPartial
	TierStrong
)

var (
	strongThreshold  = decimal.NewFromInt(80)
	partialThreshold = decimal.NewFromInt(60)
)

// TierFor bands a score. Lower bounds are inclusive.
func TierFor(score *decimal.Decimal) Tier {
	switch {
	case score == nil:
		return TierUnscored
	case score.GreaterThanOrEqual(strongThreshold):
		return TierStrong
	case score.GreaterThanOrEqual(partialThreshold):
		return TierPartial
	default:
		return TierNeedsImprovement
	}
}

// Conclusion is the closing statement of a report.
func Conclusion(score *decimal.Decimal) string {
	switch TierFor(score) {
	case TierStrong:
		return "The product demonstrates strong compliance with the evaluated security functional requirements."
	case TierPartial:
		return "The product complies well with most requirements, but some areas require attention."
	case TierNeedsImprovement:
		return "The product requires substantial improvements to achieve satisfactory compliance."
	default:
		return "Evaluation complete; refer to detailed findings."
	}
}

// SummaryVerdict is the one-line outcome in the executive summary.
func SummaryVerdict(score *decimal.Decimal) string {
	switch TierFor(score) {
	case TierStrong:
		return "The product successfully meets the evaluation criteria."
	case TierPartial:
		return "The product meets most criteria with some minor deficiencies."
	case TierNeedsImprovement:
		return "The product requires fundamental improvements to meet the criteria."
	default:
		return ""
	}
}
