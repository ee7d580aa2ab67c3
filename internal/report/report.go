// Package report renders run reports, run history and quotes as tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/david/issue-hunter/internal/db"
	"github.com/david/issue-hunter/internal/ingest"
	"github.com/david/issue-hunter/internal/models"
)

const titleWidth = 48

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// RenderRun writes the run counters followed by one row per opportunity.
func RenderRun(w io.Writer, r models.RunReport) {
	summary := newTable(w)
	summary.SetTitle("Run " + r.RunID.String())
	summary.AppendHeader(table.Row{"Status", "Dry Run", "Found", "Fresh", "Processed", "Posted", "Drafted", "Declined", "Skipped", "Failed", "Duration"})
	summary.AppendRow(table.Row{
		r.Status(), r.DryRun, r.Found, r.Fresh, r.Processed,
		r.Posted, r.Drafted, r.Declined, r.Skipped, r.Failed,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	})
	if r.AbortReason != "" {
		summary.AppendFooter(table.Row{"Aborted", r.AbortReason})
	}
	summary.Render()

	if len(r.Outcomes) > 0 {
		outcomes := newTable(w)
		outcomes.AppendHeader(table.Row{"#", "Title", "Category", "Score", "Risk", "Action", "Quote", "Status"})
		outcomes.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight},
			{Number: 7, Align: text.AlignRight},
		})
		for i, o := range r.Outcomes {
			outcomes.AppendRow(table.Row{
				i + 1,
				ingest.TruncateText(o.Title, titleWidth),
				o.Assessment.Project.Category,
				fmt.Sprintf("%.2f", o.Assessment.OverallScore),
				o.Assessment.RiskLevel,
				o.Assessment.Recommendation.Action,
				quoteCell(o.Quote),
				statusCell(o),
			})
		}
		outcomes.Render()
	}

	if r.Insights != "" {
		fmt.Fprintln(w, r.Insights)
	}
}

// RenderDrafts writes every drafted or posted reply, one block per
// opportunity.
func RenderDrafts(w io.Writer, r models.RunReport) {
	for _, o := range r.Outcomes {
		if o.Draft == "" {
			continue
		}
		fmt.Fprintf(w, "--- %s (%s)\n%s\n\n", o.Title, o.URL, strings.TrimSpace(o.Draft))
	}
}

// RenderRuns writes a run history listing.
func RenderRuns(w io.Writer, runs []db.RunSummary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Status", "Dry Run", "Found", "Processed", "Posted", "Drafted", "Failed", "Duration", "Started At"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.RunID.String()[:8],
			r.Status,
			r.DryRun,
			r.Found,
			r.Processed,
			r.Posted,
			r.Drafted,
			r.Failed,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}

// RenderQuote writes the total and the payment schedule.
func RenderQuote(w io.Writer, q models.PriceQuote) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%d %s (%s)", q.TotalAmount, q.Currency, q.Network))
	t.AppendHeader(table.Row{"Percent", "Amount", "Trigger"})
	for _, m := range q.Terms.Milestones {
		t.AppendRow(table.Row{fmt.Sprintf("%d%%", m.Percent), m.Amount, m.Trigger})
	}
	t.AppendFooter(table.Row{q.Terms.Structure, q.TotalAmount, escrowNote(q.Escrow)})
	t.Render()
}

func quoteCell(q *models.PriceQuote) string {
	if q == nil {
		return "-"
	}
	return fmt.Sprintf("%d %s", q.TotalAmount, q.Currency)
}

func statusCell(o models.OpportunityOutcome) string {
	if o.Error != "" {
		return fmt.Sprintf("%s: %s", o.Status, ingest.TruncateText(o.Error, 40))
	}
	return string(o.Status)
}

func escrowNote(escrow bool) string {
	if escrow {
		return "escrow"
	}
	return ""
}
