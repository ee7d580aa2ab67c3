package models

// Milestone is one tranche of a payment schedule.
type Milestone struct {
	Percent int    `json:"percent"`
	Trigger string `json:"trigger"`
	Amount  int    `json:"amount"`
}

type PaymentTerms struct {
	Structure   string      `json:"structure"` // full_upfront, 50_50, milestone_based
	Description string      `json:"description"`
	Milestones  []Milestone `json:"milestones,omitempty"`
}

// PriceQuote is derived deterministically from a project analysis.
type PriceQuote struct {
	TotalAmount   int          `json:"total_amount"` // multiple of 25
	Currency      string       `json:"currency"`
	Network       string       `json:"network"`
	WalletAddress string       `json:"wallet_address"`
	Terms         PaymentTerms `json:"terms"`
	Escrow        bool         `json:"escrow"`
}
