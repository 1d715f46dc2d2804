package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// FallbackStore prefers a Redis-backed StateStore and falls back to process
// memory for redisBreakerDuration whenever Redis fails.
type FallbackStore struct {
	cfg            SettingsConfig
	nowFn          func() time.Time
	memory         *MemoryStateStore
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisStore     StateStore
	breakerUntil   time.Time
}

// NewFallbackStore constructs a FallbackStore with default dependencies when nil.
func NewFallbackStore(cfg SettingsConfig, nowFn func() time.Time, newRedisClient RedisClientFactory) *FallbackStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &FallbackStore{
		cfg:            cfg.Normalize(),
		nowFn:          nowFn,
		memory:         NewMemoryStateStore(),
		newRedisClient: newRedisClient,
	}
}

// newFallbackStoreWith wires an already constructed primary store.
func newFallbackStoreWith(primary StateStore, nowFn func() time.Time) *FallbackStore {
	s := NewFallbackStore(SettingsConfig{RedisEnabled: true}, nowFn, nil)
	s.redisStore = primary
	return s
}

// Memory returns the fallback store.
func (s *FallbackStore) Memory() *MemoryStateStore { return s.memory }

// Get implements StateStore.
func (s *FallbackStore) Get(ctx context.Context, externalID int64) (RateState, bool, error) {
	if primary := s.primary(ctx); primary != nil {
		state, found, errGet := primary.Get(ctx, externalID)
		if errGet == nil {
			return state, found, nil
		}
		s.tripBreaker(errGet)
	}
	return s.memory.Get(ctx, externalID)
}

// Put implements StateStore.
func (s *FallbackStore) Put(ctx context.Context, externalID int64, state RateState) error {
	if primary := s.primary(ctx); primary != nil {
		errPut := primary.Put(ctx, externalID, state)
		if errPut == nil {
			return nil
		}
		s.tripBreaker(errPut)
	}
	return s.memory.Put(ctx, externalID, state)
}

// CompareAndSwap implements StateStore. A Redis failure mid-update reports a
// lost race so the caller re-reads from the fallback.
func (s *FallbackStore) CompareAndSwap(ctx context.Context, externalID int64, expected uint64, next RateState) (bool, error) {
	if primary := s.primary(ctx); primary != nil {
		swapped, errSwap := primary.CompareAndSwap(ctx, externalID, expected, next)
		if errSwap == nil {
			return swapped, nil
		}
		s.tripBreaker(errSwap)
		return false, nil
	}
	return s.memory.CompareAndSwap(ctx, externalID, expected, next)
}

// Delete removes state from both backends.
func (s *FallbackStore) Delete(ctx context.Context, externalID int64) error {
	var errPrimary error
	if primary := s.primary(ctx); primary != nil {
		if errDel := primary.Delete(ctx, externalID); errDel != nil {
			s.tripBreaker(errDel)
			errPrimary = errDel
		}
	}
	errMemory := s.memory.Delete(ctx, externalID)
	return errors.Join(errPrimary, errMemory)
}

// Sweep sweeps the memory fallback; Redis expires keys itself.
func (s *FallbackStore) Sweep(ctx context.Context, idleBefore time.Time) (int, error) {
	return s.memory.Sweep(ctx, idleBefore)
}

// Close releases the Redis client when one was opened.
func (s *FallbackStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if closer, ok := s.redisStore.(interface{ Close() error }); ok {
		s.redisStore = nil
		return closer.Close()
	}
	return nil
}

func (s *FallbackStore) primary(ctx context.Context) StateStore {
	if !s.cfg.RedisEnabled {
		return nil
	}
	now := s.nowFn()
	if s.isBreakerActive(now) {
		return nil
	}
	store, errEnsure := s.ensureRedis(ctx)
	if errEnsure != nil {
		s.tripBreaker(errEnsure)
		return nil
	}
	return store
}

func (s *FallbackStore) isBreakerActive(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.breakerUntil.IsZero() {
		return false
	}
	if now.Before(s.breakerUntil) {
		return true
	}
	s.breakerUntil = time.Time{}
	return false
}

func (s *FallbackStore) tripBreaker(err error) {
	if err == nil {
		return
	}
	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.breakerUntil.IsZero() && now.Before(s.breakerUntil) {
		return
	}
	s.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate state: redis unavailable, falling back to memory")
}

func (s *FallbackStore) ensureRedis(ctx context.Context) (StateStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.redisStore != nil {
		return s.redisStore, nil
	}
	if s.cfg.RedisAddr == "" {
		return nil, errors.New("rate state redis: missing address")
	}

	client := s.newRedisClient(&redis.Options{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPassword,
		DB:       s.cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	s.redisStore = NewRedisStateStore(client, s.cfg.RedisPrefix, s.cfg.StateTTL)
	return s.redisStore, nil
}
