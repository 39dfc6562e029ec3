package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dunning/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockKeyEmpty   = errors.New("lock_key_empty")
	ErrLockTTLInvalid = errors.New("lock_ttl_invalid")
)

// Locker keeps one billing run alive across replicas. A nil Locker grants
// every request, which is how a single instance without Redis runs.
type Locker struct {
	client *redis.Client
	script *redis.Script
	key    string
	ttl    time.Duration
}

func NewLocker(client *redis.Client, key string, ttl time.Duration) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		key:    key,
		ttl:    ttl,
	}
}

// TryLock returns the token to release with, and false when another holder has it.
func (l *Locker) TryLock(ctx context.Context) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if l.key == "" {
		return "", false, ErrLockKeyEmpty
	}
	if l.ttl <= 0 {
		return "", false, ErrLockTTLInvalid
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the lock only while it still carries token.
func (l *Locker) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.key}, token).Err()
}

// NewRedisClient returns nil when REDIS_ADDR is unset.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("scheduler.redis.unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func provideLocker(client *redis.Client, cfg Config) *Locker {
	return NewLocker(client, cfg.LockKey, cfg.LockTTL)
}
