package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process pointing at the same key.
// The TTL bounds how long a crashed holder can block others.
type Redis struct {
	rdb   redis.UniversalClient
	key   string
	ttl   time.Duration
	retry time.Duration
}

func NewRedis(rdb redis.UniversalClient, key string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{rdb: rdb, key: key, ttl: ttl, retry: 200 * time.Millisecond}
}

func (l *Redis) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	t := time.NewTicker(l.retry)
	defer t.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", l.key, err)
		}
		if ok {
			return func() {
				// release must outlive a cancelled run context
				rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, l.rdb, []string{l.key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Held reports whether any process currently holds the lock.
func (l *Redis) Held(ctx context.Context) (bool, error) {
	_, err := l.rdb.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return err == nil, err
}
