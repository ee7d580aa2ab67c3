package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/models"
)

// SearchStats summarises one fan-out.
type SearchStats struct {
	Queries   int
	Failed    int
	TotalHint int
}

// SearchAll issues every query with at most concurrency requests in flight
// and concatenates the hits in query order. A failed query contributes zero
// results; only cancellation of ctx is returned as an error.
func SearchAll(ctx context.Context, searcher Searcher, queries []string, concurrency int, log logger.Logger) ([]models.RawOpportunity, SearchStats, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.NewNop()
	}

	type queryResult struct {
		items []models.RawOpportunity
		total int
		err   error
	}
	results := make([]queryResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, q := range queries {
		g.Go(func() error {
			items, total, err := searcher.Search(gctx, q)
			results[i] = queryResult{items: items, total: total, err: err}
			return nil
		})
	}
	_ = g.Wait()

	stats := SearchStats{Queries: len(queries)}
	var all []models.RawOpportunity
	for i, r := range results {
		if r.err != nil {
			stats.Failed++
			log.Warn("Search failed, counting as zero results",
				logger.String("query", queries[i]),
				logger.Error(r.err),
			)
			continue
		}
		stats.TotalHint += r.total
		all = append(all, r.items...)
	}

	if err := ctx.Err(); err != nil {
		return all, stats, err
	}
	return all, stats, nil
}
