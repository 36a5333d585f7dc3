package location

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RedisStore keeps one session's location under a single Redis key with no expiry.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore returns a RedisStore for the given session.
func NewRedisStore(rdb *redis.Client, session string) *RedisStore {
	return &RedisStore{rdb: rdb, key: SessionKey(session)}
}

// SessionKey returns the Redis key holding a session's location.
func SessionKey(session string) string {
	return "civictrack:" + session + ":" + StorageKey
}

// RedisProvider returns a Provider backed by rdb.
func RedisProvider(rdb *redis.Client) Provider {
	return func(session string) Store {
		return NewRedisStore(rdb, session)
	}
}

func (r *RedisStore) Save(ctx context.Context, loc UserLocation) error {
	data, err := Encode(loc)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return eris.Wrapf(err, "location: redis set %s", r.key)
	}
	return nil
}

// Load treats Redis failures like a missing value so callers fail closed.
func (r *RedisStore) Load(ctx context.Context) (UserLocation, bool) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return UserLocation{}, false
	}
	if err != nil {
		zap.L().Warn("location: redis get failed", zap.String("key", r.key), zap.Error(err))
		return UserLocation{}, false
	}
	loc, ok := Decode(data)
	if !ok {
		zap.L().Debug("location: ignoring malformed stored value", zap.String("key", r.key))
	}
	return loc, ok
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return eris.Wrapf(err, "location: redis del %s", r.key)
	}
	return nil
}
