package pacing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// UpdateFunc maps the stored state to its successor. It returns false to
// leave the store untouched. It may run more than once and must not have
// side effects beyond its return values.
type UpdateFunc func(State) (State, bool)

// Store persists State between runs and serialises updates across every
// gate sharing it.
type Store interface {
	// Load returns found=false when nothing has been saved yet.
	Load(ctx context.Context) (state State, found bool, err error)
	// Update applies fn atomically and returns the resulting state, or the
	// current one when fn declines to write.
	Update(ctx context.Context, fn UpdateFunc) (State, error)
}

// MemoryStore keeps state for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, false, nil
	}
	return *m.state, true, nil
}

func (m *MemoryStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &state
	return nil
}

func (m *MemoryStore) Update(_ context.Context, fn UpdateFunc) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current State
	if m.state != nil {
		current = *m.state
	}
	next, write := fn(current)
	if !write {
		return current, nil
	}
	m.state = &next
	return next, nil
}

// DefaultRedisKey holds the JSON-encoded state.
const DefaultRedisKey = "hunter:rate_state"

const maxRedisUpdateAttempts = 50

// RedisStore keeps state as JSON under a single key. Updates use
// WATCH/MULTI and retry when another client wrote the key in between.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) Load(ctx context.Context) (State, bool, error) {
	return r.load(ctx, r.client)
}

func (r *RedisStore) load(ctx context.Context, c redisGetter) (State, bool, error) {
	val, err := c.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}

	var state State
	if err := json.Unmarshal(val, &state); err != nil {
		return State{}, false, fmt.Errorf("decoding rate state: %w", err)
	}
	return state, true, nil
}

func (r *RedisStore) Update(ctx context.Context, fn UpdateFunc) (State, error) {
	var result State
	txf := func(tx *redis.Tx) error {
		current, _, err := r.load(ctx, tx)
		if err != nil {
			return err
		}
		next, write := fn(current)
		if !write {
			result = current
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encoding rate state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for attempt := 0; attempt < maxRedisUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return State{}, fmt.Errorf("redis update %s: %w", r.key, err)
		}
		return result, nil
	}
	return State{}, fmt.Errorf("redis update %s: %w", r.key, redis.TxFailedErr)
}
