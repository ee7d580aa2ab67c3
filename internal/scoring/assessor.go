package scoring

import (
	"context"

	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/metrics"
	"github.com/david/issue-hunter/internal/models"
)

// Assessor scores opportunities using injected client and market sources.
type Assessor struct {
	Analyzer Analyzer
	Profiler ClientProfiler
	Market   MarketAnalyzer
	Log      logger.Logger
}

// NewAssessor fills nil collaborators with the static stubs.
func NewAssessor(analyzer Analyzer, profiler ClientProfiler, market MarketAnalyzer, log logger.Logger) *Assessor {
	if profiler == nil {
		profiler = NewStaticProfiler()
	}
	if market == nil {
		market = NewStaticMarket()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Assessor{Analyzer: analyzer, Profiler: profiler, Market: market, Log: log}
}

// Assess analyses one opportunity. Profiler and market failures are logged
// and replaced by the static defaults, so the only error is a done context.
func (a *Assessor) Assess(ctx context.Context, opp models.FilteredOpportunity) (models.RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return models.RiskAssessment{}, err
	}

	project := a.Analyzer.Analyze(opp)

	client, err := a.Profiler.Profile(ctx, opp.Author)
	if err != nil {
		a.Log.Warn("Client profiler failed, using defaults",
			logger.String("opportunity_id", opp.ID),
			logger.String("author", opp.Author),
			logger.Error(err),
		)
		client = NewStaticProfiler().Fixed
	}

	market, err := a.Market.Signals(ctx, project.Labels)
	if err != nil {
		a.Log.Warn("Market analyzer failed, using defaults",
			logger.String("opportunity_id", opp.ID),
			logger.Error(err),
		)
		market = NewStaticMarket().Fixed
	}

	assessment := Score(project, client, market)
	metrics.Assessments.WithLabelValues(string(assessment.RiskLevel)).Inc()

	a.Log.Debug("Opportunity assessed",
		logger.String("opportunity_id", opp.ID),
		logger.Float64("overall_score", assessment.OverallScore),
		logger.String("risk_level", string(assessment.RiskLevel)),
	)
	return assessment, nil
}
