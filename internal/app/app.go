// Package app builds the hunter object graph from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/david/issue-hunter/internal/agent"
	"github.com/david/issue-hunter/internal/apperrors"
	"github.com/david/issue-hunter/internal/config"
	"github.com/david/issue-hunter/internal/db"
	"github.com/david/issue-hunter/internal/ingest"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/outbound"
	"github.com/david/issue-hunter/internal/pacing"
	"github.com/david/issue-hunter/internal/pricing"
	"github.com/david/issue-hunter/internal/respond"
	"github.com/david/issue-hunter/internal/scoring"
)

// Deps holds everything a command needs. Store is nil without a database.
type Deps struct {
	Config   *config.Config
	Log      logger.Logger
	Agent    *agent.Agent
	Assessor *scoring.Assessor
	Quoter   pricing.Quoter
	Gate     *pacing.Gate
	Tracker  *agent.Tracker
	Store    *db.Store

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Build connects to the optional backends and wires the agent. The caller
// must Close the result.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	poster, err := d.poster()
	if err != nil {
		return nil, err
	}

	if cfg.Database.URL != "" {
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		d.pool = pool
		if err := db.ApplyMigrations(ctx, pool, log); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		d.Store = db.NewStore(pool)
	}

	if cfg.Pacing.Store == config.StoreRedis {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := d.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	gate, err := pacing.NewGate(ctx, pacing.Options{
		DailyLimit: cfg.Pacing.DailyLimit,
		MinDelay:   cfg.Pacing.MinDelay,
		MaxDelay:   cfg.Pacing.MaxDelay,
		Store:      d.rateStore(),
		Log:        log.With(logger.String("component", "pacing")),
	})
	if err != nil {
		return nil, err
	}
	d.Gate = gate

	var profiler scoring.ClientProfiler = scoring.NewStaticProfiler()
	if d.redis != nil {
		profiler = scoring.NewCachedProfiler(profiler, d.redis, cfg.Redis.ProfileTTL, log)
	}
	analyzer := scoring.Analyzer{TitleUrgency: cfg.Urgency.Title, BodyUrgency: cfg.Urgency.Body}
	d.Assessor = scoring.NewAssessor(analyzer, profiler, nil, log.With(logger.String("component", "scoring")))
	d.Quoter = pricing.NewQuoter(cfg.Payment.Network, cfg.Payment.WalletAddress)
	d.Tracker = agent.NewTracker()

	drafter, err := respond.NewDrafter(nil, nil)
	if err != nil {
		return nil, err
	}

	src := cfg.SourceConfig()
	searcher := ingest.NewGitHubSearcher(ingest.NewRateLimitedFetcher(src.Fetch), src, log.With(logger.String("component", "search")))

	opts := agent.Options{
		Searcher:    searcher,
		Queries:     cfg.Search.Queries,
		Concurrency: cfg.Search.Concurrency,
		Filter:      ingest.NewFilter(cfg.FreshnessWindow(), cfg.Filter.NegativeKeywords),
		Assessor:    d.Assessor,
		Quoter:      d.Quoter,
		Drafter:     drafter,
		Poster:      poster,
		Gate:        gate,
		Tracker:     d.Tracker,
		DryRun:      cfg.Agent.DryRun,
		MaxPerRun:   cfg.Agent.MaxPerRun,
		RunTimeout:  cfg.Agent.RunTimeout,
		Log:         log,
	}
	if d.Store != nil {
		opts.Runs = d.Store
	}

	a, err := agent.New(opts)
	if err != nil {
		return nil, err
	}
	d.Agent = a

	ok = true
	return d, nil
}

func (d *Deps) rateStore() pacing.Store {
	switch {
	case d.Config.Pacing.Store == config.StoreRedis && d.redis != nil:
		return pacing.NewRedisStore(d.redis, d.Config.Pacing.RedisKey)
	case d.Config.Pacing.Store == config.StorePostgres && d.pool != nil:
		return db.NewRateStateStore(d.pool, "")
	default:
		return pacing.NewMemoryStore()
	}
}

func (d *Deps) poster() (outbound.Poster, error) {
	if d.Config.Agent.DryRun {
		return nil, nil
	}
	if strings.TrimSpace(d.Config.GitHub.Token) == "" {
		err := apperrors.NewConfigurationError("github.token", config.ErrMissingToken.Error())
		err.Err = config.ErrMissingToken
		return nil, err
	}
	return outbound.NewGitHubPoster(d.Config.GitHub.Token, d.Config.GitHub.Timeout, d.Log.With(logger.String("component", "outbound"))), nil
}

func (d *Deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.Log != nil {
		_ = d.Log.Sync()
	}
}
