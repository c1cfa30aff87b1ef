package authlockout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"incorp/internal/ratelimit/models"
	"incorp/pkg/requestcontext"
)

const lockoutKeyPrefix = "portal:lockout:"

// recordFailure restarts the hash when its window or lock has lapsed, then
// counts the failure. Times are unix milliseconds. A live lock keeps its
// expiry.
var recordFailure = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local first = tonumber(redis.call('HGET', key, 'first') or '0')
local locked = tonumber(redis.call('HGET', key, 'locked') or '0')
if first == 0 or (locked > 0 and locked <= now) or (locked == 0 and now - first >= window) then
  redis.call('DEL', key)
  redis.call('HSET', key, 'first', ARGV[1])
  locked = 0
end
redis.call('HINCRBY', key, 'count', 1)
redis.call('HSET', key, 'last', ARGV[1])
if locked <= now then
  redis.call('PEXPIRE', key, window)
end
return redis.call('HMGET', key, 'count', 'first', 'last', 'locked')
`)

// RedisAuthLockoutStore shares counters across portal instances.
type RedisAuthLockoutStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisAuthLockoutStore {
	return &RedisAuthLockoutStore{client: client}
}

func (s *RedisAuthLockoutStore) RecordFailure(ctx context.Context, identifier string, window time.Duration) (*models.AuthLockout, error) {
	now := requestcontext.Now(ctx).UnixMilli()
	res, err := recordFailure.Run(ctx, s.client, []string{lockoutKeyPrefix + identifier}, now, window.Milliseconds()).Slice()
	if err != nil {
		return nil, fmt.Errorf("record auth failure: %w", err)
	}
	fields := map[string]string{}
	for i, name := range []string{"count", "first", "last", "locked"} {
		if i < len(res) {
			if v, ok := res[i].(string); ok {
				fields[name] = v
			}
		}
	}
	return decode(identifier, fields)
}

// Get returns the record, or nil when there is none.
func (s *RedisAuthLockoutStore) Get(ctx context.Context, identifier string) (*models.AuthLockout, error) {
	fields, err := s.client.HGetAll(ctx, lockoutKeyPrefix+identifier).Result()
	if err != nil {
		return nil, fmt.Errorf("get auth lockout: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decode(identifier, fields)
}

// Lock blocks the identifier until the given time; the key expires with it.
func (s *RedisAuthLockoutStore) Lock(ctx context.Context, identifier string, until time.Time) error {
	key := lockoutKeyPrefix + identifier
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "locked", until.UnixMilli())
		pipe.PExpireAt(ctx, key, until)
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock identifier: %w", err)
	}
	return nil
}

func (s *RedisAuthLockoutStore) Clear(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, lockoutKeyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("clear auth lockout: %w", err)
	}
	return nil
}

func decode(identifier string, fields map[string]string) (*models.AuthLockout, error) {
	rec := &models.AuthLockout{Identifier: identifier}
	var err error
	if v := fields["count"]; v != "" {
		if rec.FailureCount, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("decode failure count: %w", err)
		}
	}
	if rec.FirstFailureAt, err = millis(fields["first"]); err != nil {
		return nil, err
	}
	if rec.LastFailureAt, err = millis(fields["last"]); err != nil {
		return nil, err
	}
	if v := fields["locked"]; v != "" && v != "0" {
		until, err := millis(v)
		if err != nil {
			return nil, err
		}
		rec.LockedUntil = &until
	}
	return rec, nil
}

func millis(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
