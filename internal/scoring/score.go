package scoring

import (
	"math"

	"github.com/david/issue-hunter/internal/models"
)

const (
	lowRiskFloor    = 8.0
	mediumRiskFloor = 6.5
	highRiskFloor   = 5.0
)

var recommendations = map[models.RiskLevel]models.Recommendation{
	models.LowRisk:      {Action: models.ProceedImmediately, Message: "Excellent opportunity."},
	models.MediumRisk:   {Action: models.ProceedWithCaution, Message: "Good opportunity with manageable risks."},
	models.HighRisk:     {Action: models.RequireUpfrontPayment, Message: "Risky. Secure payment first."},
	models.VeryHighRisk: {Action: models.DeclinePolitely, Message: "Too risky to proceed."},
}

// Score combines project, client and market data into an assessment.
// Inputs are clamped into their ranges first, so OverallScore is in [0, 10].
//
//	project = 0.5*(10-complexity) + 0.5*clarity
//	client  = 0.8*reputation + 0.2*paymentLikelihood
//	overall = 0.5*project + 0.5*client
func Score(project models.ProjectAnalysis, client models.ClientProfile, market models.MarketSignals) models.RiskAssessment {
	project.TechnicalComplexity = clampInt(project.TechnicalComplexity, 0, maxComponentScore)
	project.RequirementsClarity = clamp(project.RequirementsClarity, 0, maxComponentScore)
	client.Reputation = clamp(client.Reputation, 0, maxComponentScore)
	client.PaymentLikelihood = clamp(client.PaymentLikelihood, 0, 1)

	projectScore := 0.5*float64(maxComponentScore-project.TechnicalComplexity) + 0.5*project.RequirementsClarity
	clientScore := 0.8*client.Reputation + 0.2*client.PaymentLikelihood
	overall := 0.5*projectScore + 0.5*clientScore

	level := LevelFor(overall)
	return models.RiskAssessment{
		Project:        project,
		Client:         client,
		Market:         market,
		OverallScore:   overall,
		RiskLevel:      level,
		Recommendation: RecommendationFor(level),
	}
}

// LevelFor buckets a score. Each band includes its lower bound.
func LevelFor(score float64) models.RiskLevel {
	switch {
	case score >= lowRiskFloor:
		return models.LowRisk
	case score >= mediumRiskFloor:
		return models.MediumRisk
	case score >= highRiskFloor:
		return models.HighRisk
	default:
		return models.VeryHighRisk
	}
}

func RecommendationFor(level models.RiskLevel) models.Recommendation {
	if r, ok := recommendations[level]; ok {
		return r
	}
	return recommendations[models.VeryHighRisk]
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
