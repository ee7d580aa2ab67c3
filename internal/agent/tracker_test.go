package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/david/issue-hunter/internal/models"
)

func outcomeWith(status models.OutcomeStatus, category string, amount int) models.OpportunityOutcome {
	o := models.OpportunityOutcome{Status: status}
	o.Assessment.Project.Category = category
	if status != models.OutcomeDeclined {
		o.Quote = &models.PriceQuote{TotalAmount: amount}
	}
	return o
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.Track(outcomeWith(models.OutcomePosted, "bug_fix", 125))
	tr.Track(outcomeWith(models.OutcomeFailed, "bug_fix", 75))
	tr.Track(outcomeWith(models.OutcomePosted, "feature_request", 150))
	tr.Track(outcomeWith(models.OutcomeDeclined, "", 0))
	tr.Track(outcomeWith(models.OutcomeSkipped, "complex_integration", 500))

	p := tr.Snapshot()
	assert.Equal(t, 5, p.Interactions)
	assert.Equal(t, 4, p.Proposals)
	assert.Equal(t, 2, p.Posted)
	assert.Equal(t, 1, p.Failed)
	assert.Equal(t, 1, p.Skipped)
	assert.Equal(t, 1, p.Declined)
	assert.Equal(t, 850, p.QuotedTotal)
	assert.InDelta(t, 0.5, p.SuccessRate, 1e-9)
	assert.Equal(t, 2, p.ByCategory["bug_fix"])

	p.ByCategory["bug_fix"] = 99
	assert.Equal(t, 2, tr.Snapshot().ByCategory["bug_fix"])

	insights := tr.Insights()
	assert.Contains(t, insights, "Analyzed 5 interactions")
	assert.Contains(t, insights, "Success rate 50%")
	assert.Contains(t, insights, "Most proposed category: bug_fix.")
}

func TestTracker_Empty(t *testing.T) {
	assert.Equal(t,
		"Analyzed 0 interactions: 0 proposals (0 posted, 0 drafted, 0 skipped, 0 failed), 0 declined. Success rate 0%.",
		NewTracker().Insights())
}
