package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/david/issue-hunter/internal/models"
)

// Performance is a point-in-time copy of the tracker counters.
type Performance struct {
	Interactions int            `json:"interactions"`
	Proposals    int            `json:"proposals"`
	Posted       int            `json:"posted"`
	Drafted      int            `json:"drafted"`
	Skipped      int            `json:"skipped"`
	Failed       int            `json:"failed"`
	Declined     int            `json:"declined"`
	SuccessRate  float64        `json:"success_rate"` // moving average of post success over proposals
	QuotedTotal  int            `json:"quoted_total"`
	ByCategory   map[string]int `json:"by_category"`
}

// Tracker accumulates outcomes across runs. Safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	perf Performance
}

func NewTracker() *Tracker {
	return &Tracker{perf: Performance{ByCategory: map[string]int{}}}
}

// Track folds one outcome into the counters.
func (t *Tracker) Track(o models.OpportunityOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.perf.Interactions++
	switch o.Status {
	case models.OutcomeDeclined:
		t.perf.Declined++
		return
	case models.OutcomeDrafted:
		t.perf.Drafted++
	case models.OutcomePosted:
		t.perf.Posted++
	case models.OutcomeSkipped:
		t.perf.Skipped++
	case models.OutcomeFailed:
		t.perf.Failed++
	}

	if o.Quote == nil {
		return
	}
	t.perf.Proposals++
	t.perf.QuotedTotal += o.Quote.TotalAmount
	t.perf.ByCategory[o.Assessment.Project.Category]++

	hit := 0.0
	if o.Status == models.OutcomePosted || o.Status == models.OutcomeDrafted {
		hit = 1
	}
	weight := 1 / float64(t.perf.Proposals)
	t.perf.SuccessRate += (hit - t.perf.SuccessRate) * weight
}

func (t *Tracker) Snapshot() Performance {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.perf
	p.ByCategory = make(map[string]int, len(t.perf.ByCategory))
	for k, v := range t.perf.ByCategory {
		p.ByCategory[k] = v
	}
	return p
}

// Insights summarises the counters in one sentence.
func (t *Tracker) Insights() string {
	p := t.Snapshot()
	msg := fmt.Sprintf("Analyzed %d interactions: %d proposals (%d posted, %d drafted, %d skipped, %d failed), %d declined. Success rate %.0f%%.",
		p.Interactions, p.Proposals, p.Posted, p.Drafted, p.Skipped, p.Failed, p.Declined, p.SuccessRate*100)
	if top := topCategory(p.ByCategory); top != "" {
		msg += fmt.Sprintf(" Most proposed category: %s.", top)
	}
	return msg
}

func topCategory(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}
