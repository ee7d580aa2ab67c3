package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/issue-hunter/internal/ingest"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/models"
	"github.com/david/issue-hunter/internal/outbound"
	"github.com/david/issue-hunter/internal/pacing"
	"github.com/david/issue-hunter/internal/pricing"
	"github.com/david/issue-hunter/internal/respond"
	"github.com/david/issue-hunter/internal/scoring"
)

var testNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

type stubSearcher struct {
	items []models.RawOpportunity
	calls atomic.Int32
}

func (s *stubSearcher) Search(context.Context, string) ([]models.RawOpportunity, int, error) {
	s.calls.Add(1)
	return s.items, len(s.items), nil
}

type postedComment struct {
	target string
	body   string
}

type recordingPoster struct {
	mu     sync.Mutex
	posted []postedComment
}

func (p *recordingPoster) Post(_ context.Context, target, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posted = append(p.posted, postedComment{target: target, body: body})
	return nil
}

func (p *recordingPoster) Captured() []postedComment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]postedComment(nil), p.posted...)
}

type failingPoster struct {
	calls atomic.Int32
}

func (p *failingPoster) Post(context.Context, string, string) error {
	p.calls.Add(1)
	return errors.New("comment API returned 403")
}

type memoryRuns struct {
	mu      sync.Mutex
	reports []models.RunReport
}

func (m *memoryRuns) SaveRun(_ context.Context, r models.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func opportunity(id, title, body string) models.RawOpportunity {
	return models.RawOpportunity{
		ID:          id,
		Title:       title,
		Body:        body,
		Author:      "client-" + id,
		CreatedAt:   testNow.Add(-2 * time.Hour),
		URL:         "https://github.com/acme/shop/issues/" + id,
		CommentsURL: "https://api.github.com/repos/acme/shop/issues/" + id + "/comments",
	}
}

func newGate(t *testing.T, limit int) *pacing.Gate {
	t.Helper()
	g, err := pacing.NewGate(context.Background(), pacing.Options{
		DailyLimit: limit,
		Clock:      func() time.Time { return testNow },
		Sleep:      func(context.Context, time.Duration) error { return nil },
		Log:        logger.NewTest(t),
	})
	require.NoError(t, err)
	return g
}

func newAgent(t *testing.T, searcher ingest.Searcher, poster outbound.Poster, gate *pacing.Gate, profile models.ClientProfile, mutate func(*Options)) *Agent {
	t.Helper()
	drafter, err := respond.NewDrafter(nil, nil)
	require.NoError(t, err)

	opts := Options{
		Searcher:    searcher,
		Queries:     []string{"urgent fix needed", "hiring developer"},
		Concurrency: 2,
		Filter:      ingest.NewFilter(0, nil),
		Assessor:    scoring.NewAssessor(scoring.DefaultAnalyzer(), scoring.StaticProfiler{Fixed: profile}, nil, logger.NewTest(t)),
		Quoter:      pricing.NewQuoter("TRC20", "TWallet"),
		Drafter:     drafter,
		Poster:      poster,
		Gate:        gate,
		Clock:       func() time.Time { return testNow },
		Log:         logger.NewTest(t),
	}
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(opts)
	require.NoError(t, err)
	return a
}

var goodClient = models.ClientProfile{Reputation: 9, PaymentLikelihood: 0.9}

func TestRun_EndToEnd(t *testing.T) {
	body := strings.Repeat("Checkout fails on submit. ", 40)
	searcher := &stubSearcher{items: []models.RawOpportunity{opportunity("1", "urgent fix needed", body)}}
	poster := &recordingPoster{}
	gate := newGate(t, 15)

	report, err := newAgent(t, searcher, poster, gate, goodClient, nil).Run(context.Background())
	require.NoError(t, err)

	// Both queries return the same item; the filter keeps one.
	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 1, report.Fresh)
	require.Len(t, report.Outcomes, 1)

	out := report.Outcomes[0]
	assert.Contains(t, []models.RiskLevel{models.LowRisk, models.MediumRisk}, out.Assessment.RiskLevel)
	assert.NotEqual(t, models.DeclinePolitely, out.Assessment.Recommendation.Action)
	require.NotNil(t, out.Quote)
	assert.Zero(t, out.Quote.TotalAmount%25)
	// bug_fix 75 * urgency 1.5 * default complexity 0.6 = 67.5 -> 75
	assert.Equal(t, 75, out.Quote.TotalAmount)
	assert.Equal(t, models.OutcomePosted, out.Status)

	posted := poster.Captured()
	require.Len(t, posted, 1)
	assert.Equal(t, "https://api.github.com/repos/acme/shop/issues/1/comments", posted[0].target)
	assert.Equal(t, out.Draft, posted[0].body)
	assert.Contains(t, out.Draft, "@client-1")

	assert.Equal(t, 1, report.Posted)
	assert.Equal(t, 1, gate.Snapshot().SentToday)
	assert.Equal(t, "completed", report.Status())
	assert.Contains(t, report.Insights, "Analyzed 1 interactions")
}

func TestRun_DryRunNeverPostsOrCounts(t *testing.T) {
	searcher := &stubSearcher{items: []models.RawOpportunity{
		opportunity("1", "Fix login bug", strings.Repeat("a", 900)),
		opportunity("2", "Add CSV export", strings.Repeat("b", 900)),
	}}
	gate := newGate(t, 1)

	a := newAgent(t, searcher, nil, gate, goodClient, func(o *Options) { o.DryRun = true })
	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Drafted)
	assert.Zero(t, report.Posted)
	for _, o := range report.Outcomes {
		assert.Equal(t, models.OutcomeDrafted, o.Status)
		assert.NotEmpty(t, o.Draft)
	}
	assert.Zero(t, gate.Snapshot().SentToday)
}

func TestRun_GateClosesMidRun(t *testing.T) {
	searcher := &stubSearcher{items: []models.RawOpportunity{
		opportunity("1", "Fix login bug", strings.Repeat("a", 900)),
		opportunity("2", "Fix signup bug", strings.Repeat("b", 900)),
		opportunity("3", "Fix logout bug", strings.Repeat("c", 900)),
	}}
	poster := &recordingPoster{}

	report, err := newAgent(t, searcher, poster, newGate(t, 1), goodClient, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Posted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Processed)
	assert.True(t, report.Aborted)
	assert.Equal(t, "daily limit reached", report.AbortReason)
	assert.Len(t, poster.Captured(), 1)
}

func TestRun_ClosedGateSkipsSearch(t *testing.T) {
	gate := newGate(t, 1)
	_, err := pacing.Do(context.Background(), gate, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	searcher := &stubSearcher{items: []models.RawOpportunity{opportunity("1", "Fix bug", "")}}
	report, err := newAgent(t, searcher, &recordingPoster{}, gate, goodClient, nil).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Aborted)
	assert.Zero(t, searcher.calls.Load())
	assert.Empty(t, report.Outcomes)
}

func TestRun_PostFailuresContinue(t *testing.T) {
	searcher := &stubSearcher{items: []models.RawOpportunity{
		opportunity("1", "Fix login bug", strings.Repeat("a", 900)),
		opportunity("2", "Fix signup bug", strings.Repeat("b", 900)),
	}}
	poster := &failingPoster{}
	gate := newGate(t, 15)

	report, err := newAgent(t, searcher, poster, gate, goodClient, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, int32(2), poster.calls.Load())
	assert.Zero(t, gate.Snapshot().SentToday)
	assert.False(t, report.Aborted)
	assert.Equal(t, "partial", report.Status())
	for _, o := range report.Outcomes {
		assert.Contains(t, o.Error, "ACTION_FAILURE")
	}
}

func TestRun_DeclinedOpportunitiesAreNotPosted(t *testing.T) {
	searcher := &stubSearcher{items: []models.RawOpportunity{opportunity("1", "Refactor everything", "")}}
	poster := &recordingPoster{}

	report, err := newAgent(t, searcher, poster, newGate(t, 15), models.ClientProfile{Reputation: 1, PaymentLikelihood: 0.1}, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, models.OutcomeDeclined, report.Outcomes[0].Status)
	assert.Nil(t, report.Outcomes[0].Quote)
	assert.Equal(t, 1, report.Declined)
	assert.Empty(t, poster.Captured())
}

func TestRun_MaxPerRunAndPersistence(t *testing.T) {
	var items []models.RawOpportunity
	for i := 0; i < 6; i++ {
		items = append(items, opportunity(fmt.Sprint(i), fmt.Sprintf("Fix bug %d", i), strings.Repeat("x", 900)))
	}
	runs := &memoryRuns{}

	a := newAgent(t, &stubSearcher{items: items}, &recordingPoster{}, newGate(t, 15), goodClient, func(o *Options) {
		o.Runs = runs
	})
	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxPerRun, report.Processed)
	require.Len(t, runs.reports, 1)
	assert.Equal(t, report.RunID, runs.reports[0].RunID)
	assert.Equal(t, 3, a.Tracker().Snapshot().Posted)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &stubSearcher{items: []models.RawOpportunity{opportunity("1", "Fix bug", "")}}
	report, err := newAgent(t, searcher, &recordingPoster{}, newGate(t, 15), goodClient, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Aborted)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	drafter, _ := respond.NewDrafter(nil, nil)
	_, err = New(Options{
		Searcher: &stubSearcher{},
		Assessor: scoring.NewAssessor(scoring.DefaultAnalyzer(), nil, nil, nil),
		Drafter:  drafter,
		Gate:     newGate(t, 1),
	})
	assert.Error(t, err, "poster is required outside dry run")
}
