package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultLockTTL      = 30 * time.Second
	defaultRetryBackoff = 50 * time.Millisecond
	redisKeyPrefix      = "payments:lock:"
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// RedisLocker is a Locker shared by every instance pointing at the same Redis.
type RedisLocker struct {
	Client       *redis.Client
	TTL          time.Duration
	RetryBackoff time.Duration
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.Client == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return ErrNilCallback
	}

	ttl := l.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = defaultRetryBackoff
	}

	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.Client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if ok {
			defer l.release(redisKey, token)
			return fn(ctx)
		}

		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// release only deletes the key while it still holds token. When the script
// cannot run the key is left to expire with its TTL.
func (l *RedisLocker) release(key, token string) {
	err := l.Client.Eval(context.Background(), releaseScript, []string{key}, token).Err()
	if err == nil {
		return
	}
	logrus.WithError(err).WithField("key", key).Warn("Failed to release lock, leaving it to expire")
}
