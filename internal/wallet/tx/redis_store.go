package tx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "cross-dapp:tx:"

// RedisStore keeps outcomes in redis so that a restarted process or a
// second instance can resume tracking.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithTTL expires records after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Put(ctx context.Context, outcome Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return errors.Wrap(err, "failed to encode outcome")
	}

	if err := s.client.Set(ctx, s.key(outcome.Hash), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to store outcome")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, hash common.Hash) (Outcome, bool, error) {
	data, err := s.client.Get(ctx, s.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, errors.Wrap(err, "failed to load outcome")
	}

	var outcome Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return Outcome{}, false, errors.Wrap(err, "failed to decode outcome")
	}
	return outcome, true, nil
}

func (s *RedisStore) key(hash common.Hash) string {
	return s.prefix + hash.Hex()
}
