package models

// ProjectAnalysis is derived from one filtered opportunity.
type ProjectAnalysis struct {
	TechnicalComplexity int      `json:"technical_complexity"` // 0-10
	RequirementsClarity float64  `json:"requirements_clarity"` // 0-10
	Labels              []string `json:"labels"`
	IsUrgent            bool     `json:"is_urgent"`
	Category            string   `json:"category"`
	BodyLength          int      `json:"body_length"`
}

// ClientProfile describes the issue author. Always supplied by a profiler.
type ClientProfile struct {
	Reputation        float64 `json:"reputation"`         // 0-10
	PaymentLikelihood float64 `json:"payment_likelihood"` // 0-1
	IsNew             bool    `json:"is_new"`
}

// MarketSignals are demand and competition scores for the issue's labels.
type MarketSignals struct {
	Demand      float64 `json:"demand"`
	Competition float64 `json:"competition"`
}

type RiskLevel string

const (
	LowRisk      RiskLevel = "LOW_RISK"
	MediumRisk   RiskLevel = "MEDIUM_RISK"
	HighRisk     RiskLevel = "HIGH_RISK"
	VeryHighRisk RiskLevel = "VERY_HIGH_RISK"
)

type RecommendationAction string

const (
	ProceedImmediately    RecommendationAction = "PROCEED_IMMEDIATELY"
	ProceedWithCaution    RecommendationAction = "PROCEED_WITH_CAUTION"
	RequireUpfrontPayment RecommendationAction = "REQUIRE_UPFRONT_PAYMENT"
	DeclinePolitely       RecommendationAction = "DECLINE_POLITELY"
)

type Recommendation struct {
	Action  RecommendationAction `json:"action"`
	Message string               `json:"message"`
}

// RiskAssessment is created once per opportunity per run and never mutated.
type RiskAssessment struct {
	Project        ProjectAnalysis `json:"project"`
	Client         ClientProfile   `json:"client"`
	Market         MarketSignals   `json:"market"`
	OverallScore   float64         `json:"overall_score"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	Recommendation Recommendation  `json:"recommendation"`
}

// Declined reports whether the recommendation is to walk away.
func (a RiskAssessment) Declined() bool {
	return a.Recommendation.Action == DeclinePolitely
}
