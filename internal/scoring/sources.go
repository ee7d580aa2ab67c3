package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/models"
)

// ClientProfiler looks up what is known about an issue author.
type ClientProfiler interface {
	Profile(ctx context.Context, author string) (models.ClientProfile, error)
}

// MarketAnalyzer scores demand and competition for a set of labels.
type MarketAnalyzer interface {
	Signals(ctx context.Context, labels []string) (models.MarketSignals, error)
}

// StaticProfiler returns the same profile for every author.
type StaticProfiler struct {
	Fixed models.ClientProfile
}

// NewStaticProfiler returns a profiler with reputation 8 and payment
// likelihood 0.9 for every author.
func NewStaticProfiler() StaticProfiler {
	return StaticProfiler{Fixed: models.ClientProfile{Reputation: 8, PaymentLikelihood: 0.9}}
}

func (p StaticProfiler) Profile(context.Context, string) (models.ClientProfile, error) {
	return p.Fixed, nil
}

// StaticMarket returns the same signals for every label set.
type StaticMarket struct {
	Fixed models.MarketSignals
}

func NewStaticMarket() StaticMarket {
	return StaticMarket{Fixed: models.MarketSignals{Demand: 8, Competition: 6}}
}

func (m StaticMarket) Signals(context.Context, []string) (models.MarketSignals, error) {
	return m.Fixed, nil
}

// CachedProfiler caches another profiler's answers in redis under
// profile:<author>. Cache failures fall through to the wrapped profiler.
type CachedProfiler struct {
	next  ClientProfiler
	redis *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

func NewCachedProfiler(next ClientProfiler, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedProfiler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedProfiler{next: next, redis: client, ttl: ttl, log: log}
}

func profileKey(author string) string {
	return "profile:" + author
}

func (c *CachedProfiler) Profile(ctx context.Context, author string) (models.ClientProfile, error) {
	key := profileKey(author)
	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var profile models.ClientProfile
		if err := json.Unmarshal([]byte(val), &profile); err == nil {
			return profile, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("Profile cache read failed", logger.String("author", author), logger.Error(err))
	}

	profile, err := c.next.Profile(ctx, author)
	if err != nil {
		return models.ClientProfile{}, fmt.Errorf("profiling %s: %w", author, err)
	}

	data, _ := json.Marshal(profile)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("Profile cache write failed", logger.String("author", author), logger.Error(err))
	}
	return profile, nil
}
