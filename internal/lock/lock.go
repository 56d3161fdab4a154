// Package lock implements a Redis run lock so overlapping sync invocations
// cannot create the same activity twice.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLocked is returned by Acquire when another run holds the lock.
var ErrLocked = errors.New("sync already running")

// DefaultKey is the key the sync run lock is stored under.
const DefaultKey = "strautonotion:sync"

// release only deletes the key if it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

type RedisLocker struct {
	conn *redis.Client
}

func NewRedisLocker(ctx context.Context, addr string) (*RedisLocker, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisLocker{conn: client}, nil
}

// Acquire takes the lock for up to ttl. The ttl bounds how long a crashed run
// can block the next one.
func (rl *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()
	ok, err := rl.conn.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %q: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: lock %q is held", ErrLocked, key)
	}
	return &redisLock{conn: rl.conn, key: key, token: token}, nil
}

// Close closes the Redis connection.
func (rl *RedisLocker) Close() error {
	return rl.conn.Close()
}

type redisLock struct {
	conn  *redis.Client
	key   string
	token string
}

// Release frees the lock unless it has expired and been taken by another run.
func (l *redisLock) Release(ctx context.Context) error {
	if err := release.Run(ctx, l.conn, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("releasing lock %q: %w", l.key, err)
	}
	return nil
}

// Noop is a Locker used when no Redis URL is configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (Lock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Release(context.Context) error { return nil }
