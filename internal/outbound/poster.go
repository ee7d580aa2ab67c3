// Package outbound writes drafted replies back to the issue tracker.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/david/issue-hunter/internal/logger"
)

// Poster performs one outbound write. Its error is the action failure seen
// by the rate gate.
type Poster interface {
	Post(ctx context.Context, target, body string) error
}

// GitHubPoster creates issue comments through the REST API.
type GitHubPoster struct {
	Client *http.Client
	Token  string
	Log    logger.Logger
}

func NewGitHubPoster(token string, timeout time.Duration, log logger.Logger) *GitHubPoster {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GitHubPoster{
		Client: &http.Client{Timeout: timeout},
		Token:  token,
		Log:    log,
	}
}

type commentRequest struct {
	Body string `json:"body"`
}

// Post sends {"body": body} to target, an issue comments URL. Any non-2xx
// answer is an error.
func (p *GitHubPoster) Post(ctx context.Context, target, body string) error {
	if target == "" {
		return fmt.Errorf("missing comments URL")
	}

	payload, err := json.Marshal(commentRequest{Body: body})
	if err != nil {
		return fmt.Errorf("marshaling comment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	if p.Token != "" {
		req.Header.Set("Authorization", "token "+p.Token)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("posting comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("comment API returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	p.Log.Info("Comment posted", logger.String("target", target), logger.Int("status", resp.StatusCode))
	return nil
}
