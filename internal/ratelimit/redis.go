package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var errVersionMismatch = errors.New("rate state version mismatch")

// RedisStateStore keeps RateState in Redis as JSON, using WATCH/MULTI for
// compare-and-swap. Keys expire after ttl of inactivity, which replaces the
// sweep for this backend.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore constructs a RedisStateStore.
func NewRedisStateStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{
		client: client,
		prefix: strings.TrimSpace(prefix),
		ttl:    ttl,
	}
}

// Get implements StateStore.
func (s *RedisStateStore) Get(ctx context.Context, externalID int64) (RateState, bool, error) {
	raw, errGet := s.client.Get(ctx, StateKey(s.prefix, externalID)).Bytes()
	if errors.Is(errGet, redis.Nil) {
		return RateState{}, false, nil
	}
	if errGet != nil {
		return RateState{}, false, fmt.Errorf("rate state redis: get: %w", errGet)
	}
	state, errDecode := decodeState(raw)
	if errDecode != nil {
		return RateState{}, false, errDecode
	}
	return state, true, nil
}

// Put implements StateStore.
func (s *RedisStateStore) Put(ctx context.Context, externalID int64, state RateState) error {
	key := StateKey(s.prefix, externalID)
	errWatch := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var version uint64
		raw, errGet := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(errGet, redis.Nil):
		case errGet != nil:
			return errGet
		default:
			current, errDecode := decodeState(raw)
			if errDecode != nil {
				return errDecode
			}
			version = current.Version
		}
		next := state.Clone()
		next.Version = version + 1
		return s.write(ctx, tx, key, next)
	}, key)
	if errWatch != nil {
		return fmt.Errorf("rate state redis: put: %w", errWatch)
	}
	return nil
}

// CompareAndSwap implements StateStore.
func (s *RedisStateStore) CompareAndSwap(ctx context.Context, externalID int64, expected uint64, next RateState) (bool, error) {
	key := StateKey(s.prefix, externalID)
	errWatch := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, errGet := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(errGet, redis.Nil):
			if expected != 0 {
				return errVersionMismatch
			}
		case errGet != nil:
			return errGet
		default:
			current, errDecode := decodeState(raw)
			if errDecode != nil {
				return errDecode
			}
			if current.Version != expected {
				return errVersionMismatch
			}
		}
		stored := next.Clone()
		stored.Version = expected + 1
		return s.write(ctx, tx, key, stored)
	}, key)
	if errWatch == nil {
		return true, nil
	}
	if errors.Is(errWatch, errVersionMismatch) || errors.Is(errWatch, redis.TxFailedErr) {
		return false, nil
	}
	return false, fmt.Errorf("rate state redis: compare and swap: %w", errWatch)
}

func (s *RedisStateStore) write(ctx context.Context, tx *redis.Tx, key string, state RateState) error {
	payload, errMarshal := json.Marshal(state)
	if errMarshal != nil {
		return fmt.Errorf("marshal rate state: %w", errMarshal)
	}
	_, errExec := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, s.ttl)
		return nil
	})
	return errExec
}

// Delete implements StateStore.
func (s *RedisStateStore) Delete(ctx context.Context, externalID int64) error {
	if errDel := s.client.Del(ctx, StateKey(s.prefix, externalID)).Err(); errDel != nil {
		return fmt.Errorf("rate state redis: delete: %w", errDel)
	}
	return nil
}

// Sweep is a no-op: Redis expires idle keys on its own.
func (s *RedisStateStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Ping checks connectivity.
func (s *RedisStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}

func decodeState(raw []byte) (RateState, error) {
	var state RateState
	if errUnmarshal := json.Unmarshal(raw, &state); errUnmarshal != nil {
		return RateState{}, fmt.Errorf("rate state redis: decode: %w", errUnmarshal)
	}
	state.ensureMaps()
	return state, nil
}
