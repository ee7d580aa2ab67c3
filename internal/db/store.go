package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/issue-hunter/internal/models"
	"github.com/david/issue-hunter/internal/pacing"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RunSummary is one row of run history without the per-opportunity detail.
type RunSummary struct {
	RunID       uuid.UUID `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Status      string    `json:"status"`
	DryRun      bool      `json:"dry_run"`
	Found       int       `json:"found"`
	Fresh       int       `json:"fresh"`
	Processed   int       `json:"processed"`
	Declined    int       `json:"declined"`
	Posted      int       `json:"posted"`
	Drafted     int       `json:"drafted"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	AbortReason string    `json:"abort_reason,omitempty"`
	Insights    string    `json:"insights,omitempty"`
}

type ListRunsParams struct {
	Status string // "completed", "partial", "aborted" or empty for all
	DryRun *bool
	Since  time.Time
	Limit  int
	Offset int
}

type RunList struct {
	Runs   []RunSummary `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

const summaryCols = `run_id, started_at, finished_at, status, dry_run,
	found, fresh, processed, declined, posted, drafted, skipped, failed,
	abort_reason, insights`

func scanSummary(scan func(dest ...any) error) (RunSummary, error) {
	var r RunSummary
	err := scan(
		&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.DryRun,
		&r.Found, &r.Fresh, &r.Processed, &r.Declined, &r.Posted, &r.Drafted, &r.Skipped, &r.Failed,
		&r.AbortReason, &r.Insights,
	)
	return r, err
}

// SaveRun upserts a finished run keyed by its run ID.
func (s *Store) SaveRun(ctx context.Context, report models.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO hunter_runs (run_id, started_at, finished_at, status, dry_run,
			found, fresh, processed, declined, posted, drafted, skipped, failed,
			abort_reason, insights, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			found = EXCLUDED.found,
			fresh = EXCLUDED.fresh,
			processed = EXCLUDED.processed,
			declined = EXCLUDED.declined,
			posted = EXCLUDED.posted,
			drafted = EXCLUDED.drafted,
			skipped = EXCLUDED.skipped,
			failed = EXCLUDED.failed,
			abort_reason = EXCLUDED.abort_reason,
			insights = EXCLUDED.insights,
			report = EXCLUDED.report
	`,
		report.RunID, report.StartedAt, report.FinishedAt, report.Status(), report.DryRun,
		report.Found, report.Fresh, report.Processed, report.Declined, report.Posted, report.Drafted, report.Skipped, report.Failed,
		report.AbortReason, report.Insights, payload,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", report.RunID, err)
	}
	return nil
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, params ListRunsParams) (*RunList, error) {
	params.Limit, params.Offset = normalizePage(params.Limit, params.Offset)
	where, args := buildRunsWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM hunter_runs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	sql := fmt.Sprintf(`
		SELECT %s
		FROM hunter_runs%s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d
	`, summaryCols, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		r, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &RunList{Runs: runs, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// GetRun loads the full report of one run.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*models.RunReport, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, "SELECT report FROM hunter_runs WHERE run_id = $1", id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	var report models.RunReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return &report, nil
}

// GetStats aggregates run history totals.
func (s *Store) GetStats(ctx context.Context) (map[string]any, error) {
	var runs, posted, drafted, declined, failed int
	var lastRun *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(posted), 0),
			COALESCE(SUM(drafted), 0),
			COALESCE(SUM(declined), 0),
			COALESCE(SUM(failed), 0),
			MAX(started_at)
		FROM hunter_runs
	`).Scan(&runs, &posted, &drafted, &declined, &failed, &lastRun)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}

	return map[string]any{
		"runs":     runs,
		"posted":   posted,
		"drafted":  drafted,
		"declined": declined,
		"failed":   failed,
		"last_run": lastRun,
	}, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func buildRunsWhere(params ListRunsParams) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if status := strings.ToLower(strings.TrimSpace(params.Status)); status != "" && status != "all" {
		args = append(args, status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.DryRun != nil {
		args = append(args, *params.DryRun)
		conds = append(conds, fmt.Sprintf("dry_run = $%d", len(args)))
	}
	if !params.Since.IsZero() {
		args = append(args, params.Since)
		conds = append(conds, fmt.Sprintf("started_at >= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// RateStateStore persists the rate gate counters in the rate_state table.
type RateStateStore struct {
	pool *pgxpool.Pool
	name string
}

var _ pacing.Store = (*RateStateStore)(nil)

func NewRateStateStore(pool *pgxpool.Pool, name string) *RateStateStore {
	if name == "" {
		name = "default"
	}
	return &RateStateStore{pool: pool, name: name}
}

func (r *RateStateStore) Load(ctx context.Context) (pacing.State, bool, error) {
	state, err := scanRateState(r.pool.QueryRow(ctx, rateStateQuery, r.name))
	if errors.Is(err, pgx.ErrNoRows) {
		return pacing.State{}, false, nil
	}
	if err != nil {
		return pacing.State{}, false, fmt.Errorf("loading rate state: %w", err)
	}
	return state, true, nil
}

// Update locks the row for the length of a transaction, so concurrent
// reservations from several processes are applied one at a time.
func (r *RateStateStore) Update(ctx context.Context, fn pacing.UpdateFunc) (pacing.State, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return pacing.State{}, fmt.Errorf("beginning rate state transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		"INSERT INTO rate_state (name, daily_limit) VALUES ($1, 0) ON CONFLICT (name) DO NOTHING", r.name,
	); err != nil {
		return pacing.State{}, fmt.Errorf("creating rate state: %w", err)
	}

	current, err := scanRateState(tx.QueryRow(ctx, rateStateQuery+" FOR UPDATE", r.name))
	if err != nil {
		return pacing.State{}, fmt.Errorf("locking rate state: %w", err)
	}

	next, write := fn(current)
	if !write {
		return current, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE rate_state SET
			daily_limit = $2,
			sent_today = $3,
			last_action_at = $4,
			counter_day = $5,
			updated_at = NOW()
		WHERE name = $1
	`, r.name, next.DailyLimit, next.SentToday, next.LastActionAt, next.Day); err != nil {
		return pacing.State{}, fmt.Errorf("saving rate state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return pacing.State{}, fmt.Errorf("committing rate state: %w", err)
	}
	return next, nil
}

const rateStateQuery = "SELECT daily_limit, sent_today, last_action_at, counter_day FROM rate_state WHERE name = $1"

func scanRateState(row pgx.Row) (pacing.State, error) {
	var state pacing.State
	err := row.Scan(&state.DailyLimit, &state.SentToday, &state.LastActionAt, &state.Day)
	return state, err
}
