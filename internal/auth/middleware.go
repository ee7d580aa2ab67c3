// Package auth guards admin endpoints with a shared secret or a signed JWT.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/david/issue-hunter/internal/logger"
)

type contextKey string

const SubjectKey contextKey = "subject"

const (
	roleAdmin       = "admin"
	DefaultTokenTTL = 24 * time.Hour
)

// Authenticator holds the admin secret and the JWT signing key. Either may be
// generated at startup when not configured.
type Authenticator struct {
	adminSecret string
	jwtSecret   []byte
	now         func() time.Time
}

// New builds an Authenticator. Empty secrets are replaced with ephemeral
// random ones and a warning is logged.
func New(adminSecret, jwtSecret string, log logger.Logger) (*Authenticator, error) {
	if log == nil {
		log = logger.NewNop()
	}

	adminSecret = strings.TrimSpace(adminSecret)
	if adminSecret == "" {
		s, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate admin secret fallback: %w", err)
		}
		adminSecret = s
		log.Warn("Admin secret is not set; using ephemeral in-memory fallback secret")
	}

	jwtSecret = strings.TrimSpace(jwtSecret)
	if jwtSecret == "" {
		s, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
		}
		jwtSecret = s
		log.Warn("JWT secret is not set; using ephemeral in-memory fallback secret")
	}

	return &Authenticator{adminSecret: adminSecret, jwtSecret: []byte(jwtSecret), now: time.Now}, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IssueToken signs an admin token for subject.
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := a.now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": roleAdmin,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ParseToken validates tokenString and returns its subject.
func (a *Authenticator) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	if role, _ := claims["role"].(string); role != roleAdmin {
		return "", errors.New("token is not an admin token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("invalid token subject")
	}
	return sub, nil
}

// Admin accepts the X-Admin-Secret header, the secret as a Bearer token, or
// a Bearer JWT issued by IssueToken.
func (a *Authenticator) Admin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if header := c.Request().Header.Get("X-Admin-Secret"); header != "" && a.secretMatches(header) {
			c.Set(string(SubjectKey), roleAdmin)
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
		}

		if a.secretMatches(parts[1]) {
			c.Set(string(SubjectKey), roleAdmin)
			return next(c)
		}

		sub, err := a.ParseToken(parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized admin access")
		}
		c.Set(string(SubjectKey), sub)
		return next(c)
	}
}

func (a *Authenticator) secretMatches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.adminSecret)) == 1
}

// SubjectFromContext returns who passed the Admin middleware.
func SubjectFromContext(c echo.Context) (string, error) {
	sub, ok := c.Get(string(SubjectKey)).(string)
	if !ok || sub == "" {
		return "", errors.New("subject not found in context")
	}
	return sub, nil
}
