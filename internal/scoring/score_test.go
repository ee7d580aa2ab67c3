package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/david/issue-hunter/internal/models"
)

func TestLevelForBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  models.RiskLevel
	}{
		{10, models.LowRisk},
		{8.0, models.LowRisk},
		{7.999, models.MediumRisk},
		{6.5, models.MediumRisk},
		{6.499, models.HighRisk},
		{5.0, models.HighRisk},
		{4.999, models.VeryHighRisk},
		{0, models.VeryHighRisk},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.score); got != tt.want {
			t.Errorf("LevelFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRecommendationFor(t *testing.T) {
	tests := []struct {
		level  models.RiskLevel
		action models.RecommendationAction
		msg    string
	}{
		{models.LowRisk, models.ProceedImmediately, "Excellent opportunity."},
		{models.MediumRisk, models.ProceedWithCaution, "Good opportunity with manageable risks."},
		{models.HighRisk, models.RequireUpfrontPayment, "Risky. Secure payment first."},
		{models.VeryHighRisk, models.DeclinePolitely, "Too risky to proceed."},
	}
	for _, tt := range tests {
		got := RecommendationFor(tt.level)
		if got.Action != tt.action || got.Message != tt.msg {
			t.Errorf("RecommendationFor(%s) = %+v", tt.level, got)
		}
	}
}

func TestScoreFormula(t *testing.T) {
	// project = 0.5*(10-5) + 0.5*10 = 7.5; client = 0.8*9 + 0.2*0.9 = 7.38
	got := Score(
		models.ProjectAnalysis{TechnicalComplexity: 5, RequirementsClarity: 10},
		models.ClientProfile{Reputation: 9, PaymentLikelihood: 0.9},
		models.MarketSignals{Demand: 8, Competition: 6},
	)
	if math.Abs(got.OverallScore-7.44) > 1e-9 {
		t.Fatalf("expected 7.44, got %v", got.OverallScore)
	}
	if got.RiskLevel != models.MediumRisk || got.Recommendation.Action != models.ProceedWithCaution {
		t.Fatalf("unexpected level/action: %s/%s", got.RiskLevel, got.Recommendation.Action)
	}
	if got.Market.Demand != 8 {
		t.Fatalf("market signals not carried: %+v", got.Market)
	}
}

func TestScoreRangeClampsInputs(t *testing.T) {
	inputs := []struct {
		complexity int
		clarity    float64
		reputation float64
		likelihood float64
	}{
		{-5, -3, -1, -1},
		{50, 99, 42, 7},
		{0, 10, 10, 1},
		{10, 0, 0, 0},
		{3, math.NaN(), 5, 0.5},
	}
	for _, in := range inputs {
		got := Score(
			models.ProjectAnalysis{TechnicalComplexity: in.complexity, RequirementsClarity: in.clarity},
			models.ClientProfile{Reputation: in.reputation, PaymentLikelihood: in.likelihood},
			models.MarketSignals{},
		)
		if got.OverallScore < 0 || got.OverallScore > 10 || math.IsNaN(got.OverallScore) {
			t.Fatalf("score %v out of range for %+v", got.OverallScore, in)
		}
	}
}

func TestAnalyzeProject(t *testing.T) {
	long := strings.Repeat("x", 2501)

	tests := []struct {
		name       string
		opp        models.RawOpportunity
		complexity int
		clarity    float64
		urgent     bool
		category   string
	}{
		{
			name:       "no body",
			opp:        models.RawOpportunity{Title: "Urgent fix needed"},
			complexity: 5, clarity: 1, urgent: true, category: CategoryBugFix,
		},
		{
			name:       "refactor with long body",
			opp:        models.RawOpportunity{Title: "Refactor the data layer", Body: long},
			complexity: 10, clarity: 10, urgent: false, category: CategoryArchitectureProblem,
		},
		{
			name:       "architecture only",
			opp:        models.RawOpportunity{Title: "New architecture for billing", Body: strings.Repeat("y", 250)},
			complexity: 8, clarity: 2.5, urgent: false, category: CategoryArchitectureProblem,
		},
		{
			name:       "body urgency only",
			opp:        models.RawOpportunity{Title: "Slow dashboard", Body: "This is URGENT for our launch"},
			complexity: 5, clarity: 0.29, urgent: true, category: CategoryPerformanceIssue,
		},
		{
			name:       "non-ASCII body measured in characters",
			opp:        models.RawOpportunity{Title: "Checkout error", Body: strings.Repeat("ب", 300)},
			complexity: 5, clarity: 3, urgent: false, category: CategoryBugFix,
		},
		{
			name:       "non-ASCII body under the long threshold",
			opp:        models.RawOpportunity{Title: "Checkout error", Body: strings.Repeat("ب", 1500)},
			complexity: 5, clarity: 10, urgent: false, category: CategoryBugFix,
		},
		{
			name:       "deadline in body is not urgent",
			opp:        models.RawOpportunity{Title: "Payment integration", Body: "deadline next week"},
			complexity: 5, clarity: 0.18, urgent: false, category: CategoryComplexIntegration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeProject(models.FilteredOpportunity{RawOpportunity: tt.opp})
			if got.TechnicalComplexity != tt.complexity {
				t.Errorf("complexity = %d, want %d", got.TechnicalComplexity, tt.complexity)
			}
			if math.Abs(got.RequirementsClarity-tt.clarity) > 1e-9 {
				t.Errorf("clarity = %v, want %v", got.RequirementsClarity, tt.clarity)
			}
			if got.IsUrgent != tt.urgent {
				t.Errorf("urgent = %v, want %v", got.IsUrgent, tt.urgent)
			}
			if got.Category != tt.category {
				t.Errorf("category = %s, want %s", got.Category, tt.category)
			}
			if got.Labels == nil {
				t.Errorf("labels should default to an empty slice")
			}
		})
	}
}

func TestClassifyProblemOrder(t *testing.T) {
	tests := []struct {
		title, body, want string
	}{
		{"Slow query causes error", "", CategoryBugFix},
		{"Optimize rendering", "", CategoryPerformanceIssue},
		{"Refactor and integrate payments", "", CategoryArchitectureProblem},
		{"Stripe integration", "", CategoryComplexIntegration},
		{"Add dark mode", "", CategoryFeatureRequest},
		{"Hiring developer", "long term work", CategoryIssue},
		{"Hiring developer", "we need to implement SSO", CategoryFeatureRequest},
	}
	for _, tt := range tests {
		if got := ClassifyProblem(tt.title, tt.body); got != tt.want {
			t.Errorf("ClassifyProblem(%q, %q) = %s, want %s", tt.title, tt.body, got, tt.want)
		}
	}
}
