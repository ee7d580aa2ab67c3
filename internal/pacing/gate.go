// Package pacing caps and spaces outbound actions.
//
// A Gate is OPEN while the effective count of today's successful actions
// plus in-flight reservations is below the daily limit, and CLOSED
// otherwise. Counts reset lazily at the UTC day boundary. Reservations are
// claimed through the Store, so gates in different processes sharing one
// store never overshoot the limit together.
package pacing

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/david/issue-hunter/internal/apperrors"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/metrics"
)

const (
	DefaultDailyLimit = 15
	DefaultMinDelay   = 500 * time.Millisecond
	DefaultMaxDelay   = 2 * time.Second
)

// State is the persisted counter set. SentToday counts successful actions
// plus in-flight reservations for the UTC day in Day.
type State struct {
	DailyLimit   int        `json:"daily_limit"`
	SentToday    int        `json:"sent_today"`
	LastActionAt *time.Time `json:"last_action_at,omitempty"`
	Day          string     `json:"day,omitempty"`
}

// Effective returns SentToday, or 0 when the counter belongs to an earlier
// UTC day than now. State written before Day existed falls back to
// LastActionAt.
func (s State) Effective(now time.Time) int {
	switch {
	case s.Day != "":
		if s.Day < DayKey(now) {
			return 0
		}
	case s.LastActionAt != nil:
		if DayKey(*s.LastActionAt) < DayKey(now) {
			return 0
		}
	}
	return s.SentToday
}

// DayKey formats the UTC day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Reserve claims one slot for the UTC day of now. It returns s unchanged
// and false when the day's slots are used up.
func (s State) Reserve(now time.Time, limit int) (State, bool) {
	n := s.Effective(now)
	if n >= limit {
		return s, false
	}
	s.DailyLimit = limit
	s.SentToday = n + 1
	s.Day = DayKey(now)
	return s, true
}

// Release returns a slot reserved on day. Slots from a past day are gone
// already.
func (s State) Release(day string) (State, bool) {
	if s.Day != day || s.SentToday == 0 {
		return s, false
	}
	s.SentToday--
	return s, true
}

// Record stamps a reserved slot as a completed action.
func (s State) Record(now time.Time) State {
	s.LastActionAt = &now
	return s
}

// Clock returns the current time.
type Clock func() time.Time

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Rand is the subset of *rand.Rand the gate needs.
type Rand interface {
	Int63n(n int64) int64
}

// Options configure a Gate. Zero values get defaults.
type Options struct {
	DailyLimit int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Store      Store
	Clock      Clock
	Rand       Rand
	Sleep      SleepFunc
	Log        logger.Logger
}

// Gate paces and limits guarded actions. Safe for concurrent use.
type Gate struct {
	mu    sync.Mutex
	state State // last state seen in the store
	limit int

	store    Store
	clock    Clock
	rnd      Rand
	sleep    SleepFunc
	minDelay time.Duration
	maxDelay time.Duration
	log      logger.Logger
}

// Result is the outcome of a guarded action. Skipped means the gate was
// CLOSED and the action never ran.
type Result[T any] struct {
	Value   T
	Skipped bool
}

// NewGate loads persisted state from the store. The configured daily limit
// always replaces the stored one.
func NewGate(ctx context.Context, opts Options) (*Gate, error) {
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = DefaultDailyLimit
	}
	if opts.MinDelay < 0 {
		opts.MinDelay = 0
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}

	state, found, err := opts.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rate state: %w", err)
	}
	if !found {
		state = State{}
	}
	state.DailyLimit = opts.DailyLimit

	return &Gate{
		state:    state,
		limit:    opts.DailyLimit,
		store:    opts.Store,
		clock:    opts.Clock,
		rnd:      opts.Rand,
		sleep:    opts.Sleep,
		minDelay: opts.MinDelay,
		maxDelay: opts.MaxDelay,
		log:      opts.Log,
	}, nil
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs action through the gate. When the gate is CLOSED it returns a
// skipped Result and a nil error without calling action. Otherwise it sleeps
// a random delay in [MinDelay, MaxDelay], runs action, and counts it only if
// it succeeded. A failed action is returned as an ACTION_FAILURE error.
func Do[T any](ctx context.Context, g *Gate, action func(context.Context) (T, error)) (Result[T], error) {
	day, ok, err := g.reserve(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	if !ok {
		metrics.GuardedActions.WithLabelValues("skipped").Inc()
		g.log.Info("Rate gate closed, skipping action", logger.Int("daily_limit", g.limit))
		return Result[T]{Skipped: true}, nil
	}

	delay := g.delay()
	if err := g.sleep(ctx, delay); err != nil {
		g.release(ctx, day)
		return Result[T]{}, err
	}

	value, err := action(ctx)
	if err != nil {
		g.release(ctx, day)
		metrics.GuardedActions.WithLabelValues("failed").Inc()
		return Result[T]{}, apperrors.NewActionFailure(err)
	}

	g.record(ctx)
	metrics.GuardedActions.WithLabelValues("succeeded").Inc()
	return Result[T]{Value: value}, nil
}

// Refresh reloads the counters from the store so Open and Remaining see
// actions taken by other gates sharing it.
func (g *Gate) Refresh(ctx context.Context) error {
	state, found, err := g.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading rate state: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if found {
		g.setLocked(state)
	}
	return nil
}

// Open reports whether a new action would be admitted now.
func (g *Gate) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Effective(g.clock()) < g.limit
}

// Remaining is the number of actions still admissible today.
func (g *Gate) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return max(0, g.limit-g.state.Effective(g.clock()))
}

// Snapshot returns a copy of the last known state.
func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.state
	if s.LastActionAt != nil {
		t := *s.LastActionAt
		s.LastActionAt = &t
	}
	return s
}

func (g *Gate) setLocked(state State) {
	state.DailyLimit = g.limit
	g.state = state
}

// reserve claims a slot in the store and returns the day it was claimed on.
func (g *Gate) reserve(ctx context.Context) (string, bool, error) {
	now := g.clock()
	var claimed bool
	state, err := g.store.Update(ctx, func(s State) (State, bool) {
		s, claimed = s.Reserve(now, g.limit)
		return s, claimed
	})
	if err != nil {
		return "", false, fmt.Errorf("reserving rate slot: %w", err)
	}

	g.mu.Lock()
	g.setLocked(state)
	g.mu.Unlock()
	return DayKey(now), claimed, nil
}

func (g *Gate) release(ctx context.Context, day string) {
	// ctx may already be cancelled here.
	state, err := g.store.Update(context.WithoutCancel(ctx), func(s State) (State, bool) {
		return s.Release(day)
	})
	if err != nil {
		g.log.Warn("Failed to release rate slot", logger.Error(err))
		return
	}
	g.mu.Lock()
	g.setLocked(state)
	g.mu.Unlock()
}

func (g *Gate) delay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	span := g.maxDelay - g.minDelay
	if span <= 0 {
		return g.minDelay
	}
	return g.minDelay + time.Duration(g.rnd.Int63n(int64(span)+1))
}

// record stamps the reserved slot as a completed action. The slot stays
// counted even when the stamp cannot be persisted.
func (g *Gate) record(ctx context.Context) {
	now := g.clock()
	state, err := g.store.Update(context.WithoutCancel(ctx), func(s State) (State, bool) {
		return s.Record(now), true
	})

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.log.Warn("Failed to persist rate state", logger.Error(err))
		g.state = g.state.Record(now)
		return
	}
	g.setLocked(state)
	g.log.Debug("Action recorded",
		logger.Int("sent_today", g.state.SentToday),
		logger.Int("daily_limit", g.limit),
	)
}
