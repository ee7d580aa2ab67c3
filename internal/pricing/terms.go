package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/david/issue-hunter/internal/metrics"
	"github.com/david/issue-hunter/internal/models"
)

const (
	Currency       = "USDT"
	DefaultNetwork = "TRC20"

	fullUpfrontLimit = 200
	splitLimit       = 1000
	escrowThreshold  = 1000
)

// Quoter attaches settlement details to a price.
type Quoter struct {
	Currency      string
	Network       string
	WalletAddress string
}

func NewQuoter(network, wallet string) Quoter {
	if network == "" {
		network = DefaultNetwork
	}
	return Quoter{Currency: Currency, Network: network, WalletAddress: wallet}
}

func (q Quoter) Quote(in Input) models.PriceQuote {
	total := Price(in)
	metrics.QuotedAmount.Observe(float64(total))
	return models.PriceQuote{
		TotalAmount:   total,
		Currency:      q.Currency,
		Network:       q.Network,
		WalletAddress: q.WalletAddress,
		Terms:         Terms(total),
		Escrow:        total > escrowThreshold,
	}
}

// Terms picks a payment schedule for the total: full upfront up to 200,
// 50/50 up to 1000, 30/40/30 milestones above.
func Terms(total int) models.PaymentTerms {
	switch {
	case total <= fullUpfrontLimit:
		return models.PaymentTerms{
			Structure:   "full_upfront",
			Description: "100% payment upon agreement.",
		}
	case total <= splitLimit:
		return models.PaymentTerms{
			Structure:   "50_50",
			Description: "50% at project start, 50% on final delivery.",
			Milestones: split(total, []models.Milestone{
				{Percent: 50, Trigger: "project_start"},
				{Percent: 50, Trigger: "final_delivery"},
			}),
		}
	default:
		return models.PaymentTerms{
			Structure:   "milestone_based",
			Description: "30% at project start, 40% when development is complete, 30% on tested delivery.",
			Milestones: split(total, []models.Milestone{
				{Percent: 30, Trigger: "project_start"},
				{Percent: 40, Trigger: "development_complete"},
				{Percent: 30, Trigger: "testing_and_delivery"},
			}),
		}
	}
}

// split sets each milestone to its percentage of total, rounded half-up to
// whole units on its own. Odd totals can therefore sum to one unit more
// than total.
func split(total int, milestones []models.Milestone) []models.Milestone {
	hundred := decimal.NewFromInt(100)
	for i := range milestones {
		amount := decimal.NewFromInt(int64(total)).
			Mul(decimal.NewFromInt(int64(milestones[i].Percent))).
			Div(hundred).
			Round(0)
		milestones[i].Amount = int(amount.IntPart())
	}
	return milestones
}
