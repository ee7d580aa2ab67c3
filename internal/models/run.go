package models

import (
	"time"

	"github.com/google/uuid"
)

type OutcomeStatus string

const (
	OutcomeDeclined OutcomeStatus = "declined"
	OutcomeDrafted  OutcomeStatus = "drafted" // dry run: draft surfaced, nothing posted
	OutcomePosted   OutcomeStatus = "posted"
	OutcomeSkipped  OutcomeStatus = "skipped" // rate gate closed
	OutcomeFailed   OutcomeStatus = "failed"
)

// OpportunityOutcome records what a run did with one opportunity.
type OpportunityOutcome struct {
	OpportunityID string         `json:"opportunity_id"`
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	Assessment    RiskAssessment `json:"assessment"`
	Quote         *PriceQuote    `json:"quote,omitempty"`
	Draft         string         `json:"draft,omitempty"`
	Status        OutcomeStatus  `json:"status"`
	Error         string         `json:"error,omitempty"`
}

// RunReport summarises one orchestrator run.
type RunReport struct {
	RunID       uuid.UUID            `json:"run_id"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
	DryRun      bool                 `json:"dry_run"`
	Found       int                  `json:"found"`
	Fresh       int                  `json:"fresh"`
	Processed   int                  `json:"processed"`
	Declined    int                  `json:"declined"`
	Posted      int                  `json:"posted"`
	Drafted     int                  `json:"drafted"`
	Skipped     int                  `json:"skipped"`
	Failed      int                  `json:"failed"`
	Aborted     bool                 `json:"aborted"`
	AbortReason string               `json:"abort_reason,omitempty"`
	Outcomes    []OpportunityOutcome `json:"outcomes"`
	Insights    string               `json:"insights,omitempty"`
}

// Status is the single-word run status stored with run history.
func (r RunReport) Status() string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Failed > 0:
		return "partial"
	default:
		return "completed"
	}
}

// Add appends an outcome and bumps the matching counter.
func (r *RunReport) Add(o OpportunityOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Processed++
	switch o.Status {
	case OutcomeDeclined:
		r.Declined++
	case OutcomeDrafted:
		r.Drafted++
	case OutcomePosted:
		r.Posted++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}
