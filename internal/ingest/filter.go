package ingest

import (
	"strings"
	"time"

	"github.com/david/issue-hunter/internal/models"
)

// DefaultFreshnessWindow is the maximum age of an issue still worth answering.
const DefaultFreshnessWindow = 48 * time.Hour

// DefaultNegativeKeywords exclude learning and marketing requests.
var DefaultNegativeKeywords = []string{"course", "learn", "tutorial", "marketing", "seo", "design", "lesson", "class"}

// Filter prunes a batch of search hits. It has no side effects.
type Filter struct {
	FreshnessWindow  time.Duration
	NegativeKeywords []string
}

// FilterStats counts dropped items per reason.
type FilterStats struct {
	Duplicate int
	Stale     int
	Excluded  int
}

func NewFilter(window time.Duration, negative []string) Filter {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if negative == nil {
		negative = DefaultNegativeKeywords
	}
	return Filter{FreshnessWindow: window, NegativeKeywords: negative}
}

// Apply keeps the first occurrence of each ID, then drops items at least
// FreshnessWindow old (or with no timestamp), then drops titles containing a
// negative keyword. Survivors keep input order.
func (f Filter) Apply(raw []models.RawOpportunity, now time.Time) []models.FilteredOpportunity {
	out, _ := f.ApplyWithStats(raw, now)
	return out
}

// ApplyWithStats is Apply plus per-reason drop counts.
func (f Filter) ApplyWithStats(raw []models.RawOpportunity, now time.Time) ([]models.FilteredOpportunity, FilterStats) {
	window := f.FreshnessWindow
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	keywords := make([]string, 0, len(f.NegativeKeywords))
	for _, k := range f.NegativeKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	var stats FilterStats
	seen := make(map[string]struct{}, len(raw))
	out := make([]models.FilteredOpportunity, 0, len(raw))

	for _, opp := range raw {
		// 1. Dedup
		if _, dup := seen[opp.ID]; dup {
			stats.Duplicate++
			continue
		}
		seen[opp.ID] = struct{}{}

		// 2. Recency
		if opp.CreatedAt.IsZero() || opp.Age(now) >= window {
			stats.Stale++
			continue
		}

		// 3. Negative keywords
		if containsAny(strings.ToLower(opp.Title), keywords) {
			stats.Excluded++
			continue
		}

		out = append(out, models.FilteredOpportunity{RawOpportunity: opp})
	}

	return out, stats
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
