package breaker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const flagKeyPrefix = "planbuilder::breaker::"

// FlagStore persists the time of the last timeout per operation.
type FlagStore interface {
	RecordTimeout(ctx context.Context, op string, at time.Time) error
	LastTimeout(ctx context.Context, op string) (time.Time, bool, error)
}

type RedisFlagStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisFlagStore keeps every flag for ttl, which should cover the cooldown.
func NewRedisFlagStore(redisClient *redis.Client, ttl time.Duration) *RedisFlagStore {
	return &RedisFlagStore{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func (s *RedisFlagStore) RecordTimeout(ctx context.Context, op string, at time.Time) error {
	cmd := s.redisClient.Set(ctx, flagKeyPrefix+op, at.UnixMilli(), s.ttl)
	return cmd.Err()
}

func (s *RedisFlagStore) LastTimeout(ctx context.Context, op string) (time.Time, bool, error) {
	cmd := s.redisClient.Get(ctx, flagKeyPrefix+op)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	atMillis, err := strconv.ParseInt(cmd.Val(), 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}

	return time.UnixMilli(atMillis), true, nil
}
