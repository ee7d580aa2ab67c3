package models

import (
	"time"
)

// RawOpportunity is a single search hit as returned by the search collaborator.
type RawOpportunity struct {
	ID          string    `json:"id"`
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"` // zero when missing or unparsable
	Labels      []string  `json:"labels"`
	URL         string    `json:"url"`
	CommentsURL string    `json:"comments_url"`
	Repository  string    `json:"repository"`
}

// FilteredOpportunity is a RawOpportunity that survived dedup, recency and
// keyword filtering.
type FilteredOpportunity struct {
	RawOpportunity
}

// Age returns how long ago the opportunity was created relative to now.
func (o RawOpportunity) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}
