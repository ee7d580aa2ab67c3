package scoring

import (
	"strings"
	"unicode/utf8"

	"github.com/david/issue-hunter/internal/models"
)

const (
	baseComplexity    = 5
	archBonus         = 3
	longBodyBonus     = 2
	longBodyThreshold = 2500
	clarityCharsPerPt = 100
	emptyBodyClarity  = 1
	maxComponentScore = 10
)

// Problem categories, used as pricing keys.
const (
	CategoryBugFix              = "bug_fix"
	CategoryPerformanceIssue    = "performance_issue"
	CategoryArchitectureProblem = "architecture_problem"
	CategoryComplexIntegration  = "complex_integration"
	CategoryFeatureRequest      = "feature_request"
	CategoryIssue               = "issue"
)

var problemRules = []struct {
	category string
	keywords []string
}{
	{CategoryBugFix, []string{"bug", "error", "fix", "issue"}},
	{CategoryPerformanceIssue, []string{"performance", "slow", "optimize"}},
	{CategoryArchitectureProblem, []string{"architecture", "refactor"}},
	{CategoryComplexIntegration, []string{"integration", "integrate", "api"}},
	{CategoryFeatureRequest, []string{"feature", "add", "create", "implement"}},
}

// Analyzer derives a ProjectAnalysis from an opportunity.
type Analyzer struct {
	TitleUrgency []string
	BodyUrgency  []string
}

// DefaultAnalyzer flags "urgent", "asap" and "deadline" in titles and
// "urgent" in bodies.
func DefaultAnalyzer() Analyzer {
	return Analyzer{
		TitleUrgency: []string{"urgent", "asap", "deadline"},
		BodyUrgency:  []string{"urgent"},
	}
}

// AnalyzeProject runs the default analyzer.
func AnalyzeProject(opp models.FilteredOpportunity) models.ProjectAnalysis {
	return DefaultAnalyzer().Analyze(opp)
}

func (a Analyzer) Analyze(opp models.FilteredOpportunity) models.ProjectAnalysis {
	title := strings.ToLower(opp.Title)
	body := strings.ToLower(opp.Body)
	bodyLen := utf8.RuneCountInString(opp.Body)

	complexity := baseComplexity
	if strings.Contains(title, "architecture") || strings.Contains(title, "refactor") {
		complexity += archBonus
	}
	if bodyLen > longBodyThreshold {
		complexity += longBodyBonus
	}

	clarity := float64(emptyBodyClarity)
	if bodyLen > 0 {
		clarity = clamp(float64(bodyLen)/clarityCharsPerPt, 0, maxComponentScore)
	}

	labels := opp.Labels
	if labels == nil {
		labels = []string{}
	}

	return models.ProjectAnalysis{
		TechnicalComplexity: clampInt(complexity, 0, maxComponentScore),
		RequirementsClarity: clarity,
		Labels:              labels,
		IsUrgent:            containsAnyFold(title, a.TitleUrgency) || containsAnyFold(body, a.BodyUrgency),
		Category:            ClassifyProblem(opp.Title, opp.Body),
		BodyLength:          bodyLen,
	}
}

// ClassifyProblem maps an issue to a pricing category. Rules are checked in
// order against title and body together; the first hit wins.
func ClassifyProblem(title, body string) string {
	text := strings.ToLower(title + " " + body)
	for _, rule := range problemRules {
		for _, k := range rule.keywords {
			if strings.Contains(text, k) {
				return rule.category
			}
		}
	}
	return CategoryIssue
}

func containsAnyFold(lower string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
