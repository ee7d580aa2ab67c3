package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/issue-hunter/internal/logger"
)

func serve(t *testing.T, a *Authenticator, set func(r *http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		sub, err := SubjectFromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, sub)
	}, a.Admin)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	set(req)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAdmin(t *testing.T) {
	a, err := New("s3cret", "signing-key", logger.NewTest(t))
	require.NoError(t, err)

	token, err := a.IssueToken("ops@example.com", time.Hour)
	require.NoError(t, err)

	other, err := New("s3cret", "different-key", nil)
	require.NoError(t, err)
	foreign, err := other.IssueToken("ops@example.com", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		set      func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{"admin header", func(r *http.Request) { r.Header.Set("X-Admin-Secret", "s3cret") }, http.StatusOK, "admin"},
		{"secret as bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }, http.StatusOK, "admin"},
		{"jwt", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "ops@example.com"},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"wrong header", func(r *http.Request) { r.Header.Set("X-Admin-Secret", "nope") }, http.StatusUnauthorized, ""},
		{"bad scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic s3cret") }, http.StatusUnauthorized, ""},
		{"foreign jwt", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+foreign) }, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, a, tt.set)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestParseToken_Expired(t *testing.T) {
	a, err := New("s3cret", "signing-key", nil)
	require.NoError(t, err)

	issued := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }
	token, err := a.IssueToken("ops", time.Minute)
	require.NoError(t, err)

	_, err = a.ParseToken(token)
	require.NoError(t, err)

	a.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = a.ParseToken(token)
	assert.Error(t, err)
}

func TestNew_GeneratesSecrets(t *testing.T) {
	a, err := New("", "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, a.adminSecret)
	assert.NotEmpty(t, a.jwtSecret)

	b, err := New("", "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.adminSecret, b.adminSecret)
}
