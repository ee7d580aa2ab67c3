package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/david/issue-hunter/internal/apperrors"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/metrics"
	"github.com/david/issue-hunter/internal/models"
)

// GitHubSearcher queries the GitHub issue search API.
type GitHubSearcher struct {
	Fetcher Fetcher
	BaseURL string
	PerPage int
	Log     logger.Logger
}

func NewGitHubSearcher(fetcher Fetcher, cfg GitHubSourceConfig, log logger.Logger) *GitHubSearcher {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	if cfg.PerPage <= 0 || cfg.PerPage > 100 {
		cfg.PerPage = 50
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GitHubSearcher{
		Fetcher: fetcher,
		BaseURL: strings.TrimRight(cfg.APIURL, "/"),
		PerPage: cfg.PerPage,
		Log:     log,
	}
}

// GitHubSearchResponse is the body of GET /search/issues.
type GitHubSearchResponse struct {
	TotalCount        int           `json:"total_count"`
	IncompleteResults bool          `json:"incomplete_results"`
	Items             []GitHubIssue `json:"items"`
}

// GitHubIssue captures the fields of a search hit the hunter uses.
type GitHubIssue struct {
	ID            int64         `json:"id"`
	Number        int           `json:"number"`
	Title         string        `json:"title"`
	Body          *string       `json:"body"`
	HTMLURL       string        `json:"html_url"`
	CommentsURL   string        `json:"comments_url"`
	RepositoryURL string        `json:"repository_url"`
	CreatedAt     string        `json:"created_at"`
	User          *GitHubUser   `json:"user"`
	Labels        []GitHubLabel `json:"labels"`
}

type GitHubUser struct {
	Login string `json:"login"`
}

type GitHubLabel struct {
	Name string `json:"name"`
}

// SearchURL builds the issue search request for a query.
func (s *GitHubSearcher) SearchURL(query string) string {
	params := url.Values{}
	params.Set("q", query+" is:issue is:open")
	params.Set("sort", "created")
	params.Set("order", "desc")
	params.Set("per_page", fmt.Sprintf("%d", s.PerPage))
	return s.BaseURL + "/search/issues?" + params.Encode()
}

// Search runs one query. Any transport or decoding failure is returned as a
// TRANSIENT_FETCH error; callers treat it as zero results.
func (s *GitHubSearcher) Search(ctx context.Context, query string) ([]models.RawOpportunity, int, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	s.Log.Debug("Searching issues", logger.String("query", query))

	doc, err := s.Fetcher.Fetch(ctx, s.SearchURL(query))
	if err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, 0, apperrors.NewTransientFetchError(query, err)
	}
	defer doc.Body.Close()

	var resp GitHubSearchResponse
	if err := json.NewDecoder(doc.Body).Decode(&resp); err != nil {
		metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, 0, apperrors.NewTransientFetchError(query, fmt.Errorf("decoding response: %w", err))
	}
	metrics.SearchRequests.WithLabelValues("ok").Inc()

	opportunities := make([]models.RawOpportunity, 0, len(resp.Items))
	for _, item := range resp.Items {
		opp, malformed := FromIssue(item)
		for _, field := range malformed {
			s.Log.Warn("Defaulted malformed field",
				logger.String("query", query),
				logger.String("opportunity_id", opp.ID),
				logger.Error(apperrors.NewMalformedInputError(field, item.HTMLURL)),
			)
		}
		opportunities = append(opportunities, opp)
	}

	s.Log.Info("Search complete",
		logger.String("query", query),
		logger.Int("items", len(opportunities)),
		logger.Int("total_count", resp.TotalCount),
	)

	return opportunities, resp.TotalCount, nil
}
