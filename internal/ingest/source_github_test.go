package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/issue-hunter/internal/apperrors"
	"github.com/david/issue-hunter/internal/logger"
)

const searchFixture = `{
  "total_count": 2,
  "incomplete_results": false,
  "items": [
    {
      "id": 1001,
      "number": 7,
      "title": "  Urgent fix needed  for checkout ",
      "body": "<p>Payments fail <b>intermittently</b></p><script>alert(1)</script>",
      "html_url": "https://github.com/acme/shop/issues/7",
      "comments_url": "https://api.github.com/repos/acme/shop/issues/7/comments",
      "repository_url": "https://api.github.com/repos/acme/shop",
      "created_at": "2026-02-12T10:00:00Z",
      "user": {"login": "alice"},
      "labels": [{"name": "bug"}, {"name": "Bug"}, {"name": "help wanted"}]
    },
    {
      "id": 1002,
      "number": 8,
      "title": "Need help ASAP",
      "body": null,
      "html_url": "https://github.com/acme/shop/issues/8",
      "comments_url": "https://api.github.com/repos/acme/shop/issues/8/comments",
      "repository_url": "https://api.github.com/repos/acme/shop",
      "created_at": "not-a-date",
      "user": {"login": "bob"},
      "labels": []
    }
  ]
}`

func newTestFetcher() *RateLimitedFetcher {
	f := NewRateLimitedFetcher(FetchConfig{RateLimitRPS: 1000, MaxRetries: 2, Token: "secret"}).AllowPrivateNetworks()
	f.backoffBase = time.Millisecond
	return f
}

func TestGitHubSearcher_Search(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/issues", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "created", r.URL.Query().Get("sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchFixture)
	}))
	defer srv.Close()

	s := NewGitHubSearcher(newTestFetcher(), GitHubSourceConfig{APIURL: srv.URL}, logger.NewTest(t))
	items, total, err := s.Search(context.Background(), "urgent fix needed")
	require.NoError(t, err)

	assert.Equal(t, "urgent fix needed is:issue is:open", gotQuery)
	assert.Equal(t, "token secret", gotAuth)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "1001", first.ID)
	assert.Equal(t, 7, first.Number)
	assert.Equal(t, "Urgent fix needed for checkout", first.Title)
	assert.Equal(t, "Payments fail intermittently", first.Body)
	assert.Equal(t, "alice", first.Author)
	assert.Equal(t, "acme/shop", first.Repository)
	assert.Equal(t, []string{"bug", "help wanted"}, first.Labels)
	assert.Equal(t, time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC), first.CreatedAt)

	second := items[1]
	assert.Empty(t, second.Body)
	assert.True(t, second.CreatedAt.IsZero())
}

func TestGitHubSearcher_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"total_count":0,"items":[]}`)
	}))
	defer srv.Close()

	s := NewGitHubSearcher(newTestFetcher(), GitHubSourceConfig{APIURL: srv.URL}, nil)
	items, _, err := s.Search(context.Background(), "hiring developer")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGitHubSearcher_NonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewGitHubSearcher(newTestFetcher(), GitHubSourceConfig{APIURL: srv.URL}, nil)
	items, total, err := s.Search(context.Background(), "budget available")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeTransientFetch))
	assert.Nil(t, items)
	assert.Zero(t, total)
	assert.Equal(t, int32(1), calls.Load())

	var statusErr *StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestGitHubSearcher_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [`)
	}))
	defer srv.Close()

	s := NewGitHubSearcher(newTestFetcher(), GitHubSourceConfig{APIURL: srv.URL}, nil)
	_, _, err := s.Search(context.Background(), "client waiting")
	assert.True(t, apperrors.Is(err, apperrors.CodeTransientFetch))
}

func TestRateLimitedFetcher_BlocksPrivateByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	f := NewRateLimitedFetcher(FetchConfig{RateLimitRPS: 1000, MaxRetries: 1})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked private IP")
}
