package ingest

import (
	"context"
	"io"
	"time"

	"github.com/david/issue-hunter/internal/models"
)

// Searcher returns the hits for one query plus the API's total-count hint.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.RawOpportunity, int, error)
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
