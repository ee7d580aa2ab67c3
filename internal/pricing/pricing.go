// Package pricing turns a project analysis into a USDT price quote.
//
// The total is base price times five multipliers, computed in exact decimal
// arithmetic and rounded half-up to the nearest 25 units.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/david/issue-hunter/internal/models"
)

const (
	// Increment is the rounding step of every quote.
	Increment = 25

	// DefaultComplexityScore applies when no score is known.
	DefaultComplexityScore = 3

	// DefaultBasePrice applies to unknown categories.
	DefaultBasePrice = 100
)

var basePrices = map[string]int64{
	"simple_bug":           75,
	"bug_fix":              75,
	"feature_request":      150,
	"performance_issue":    200,
	"architecture_problem": 350,
	"complex_integration":  500,
	"issue":                100,
}

var (
	urgencyMultiplier    = decimal.RequireFromString("1.5")
	nicheStackMultiplier = decimal.RequireFromString("1.2")
	largeSizeMultiplier  = decimal.RequireFromString("1.3")
	fastDeliveryFactor   = decimal.RequireFromString("1.4")
	complexityDivisor    = decimal.NewFromInt(5)
	increment            = decimal.NewFromInt(Increment)
	one                  = decimal.NewFromInt(1)
)

// Input is the subset of an analysis that drives the price.
type Input struct {
	Category        string
	Urgent          bool
	ComplexityScore int // 0 means unknown
	NicheTechStack  bool
	LargeProject    bool
	FastDelivery    bool
}

// InputFromAnalysis maps category and urgency. Technical complexity feeds
// the risk score only; the complexity multiplier stays at its default.
func InputFromAnalysis(a models.ProjectAnalysis) Input {
	return Input{
		Category: a.Category,
		Urgent:   a.IsUrgent,
	}
}

// BasePrice looks up the category, falling back to DefaultBasePrice.
func BasePrice(category string) int64 {
	if p, ok := basePrices[category]; ok {
		return p
	}
	return DefaultBasePrice
}

// Multipliers returns the factors in their fixed order: urgency, complexity,
// tech stack, project size, delivery timeline.
func Multipliers(in Input) []decimal.Decimal {
	score := in.ComplexityScore
	if score <= 0 {
		score = DefaultComplexityScore
	}

	return []decimal.Decimal{
		pick(in.Urgent, urgencyMultiplier),
		decimal.NewFromInt(int64(score)).Div(complexityDivisor),
		pick(in.NicheTechStack, nicheStackMultiplier),
		pick(in.LargeProject, largeSizeMultiplier),
		pick(in.FastDelivery, fastDeliveryFactor),
	}
}

// Price returns round_half_up(base * product(multipliers) / 25) * 25.
func Price(in Input) int {
	total := decimal.NewFromInt(BasePrice(in.Category))
	for _, m := range Multipliers(in) {
		total = total.Mul(m)
	}
	return RoundToIncrement(total)
}

// RoundToIncrement rounds a positive amount half-up to a multiple of 25.
// Exact .5 steps go up.
func RoundToIncrement(amount decimal.Decimal) int {
	steps := amount.Div(increment).Round(0)
	return int(steps.Mul(increment).IntPart())
}

func pick(on bool, m decimal.Decimal) decimal.Decimal {
	if on {
		return m
	}
	return one
}
