// Package lock serialises occurrence generation for one (template, month)
// across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when the lock is still held by someone else
// after the wait budget.
var ErrNotObtained = errors.New("lock not obtained")

// Release gives a lock back. Releasing an expired lock is not an error.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// GenerationKey names the lock guarding one template month.
func GenerationKey(templateID, month string) string {
	return fmt.Sprintf("obligations:generate:%s:%s", templateID, month)
}

// Redis uses bsm/redislock. The lock expires after ttl so a crashed holder
// never blocks generation for longer than that.
type Redis struct {
	rdb    *redis.Client
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedis(addr string, ttl, wait time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Redis{rdb: rdb, client: redislock.New(rdb), ttl: ttl, wait: wait}, nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	l, err := r.client.Obtain(ctx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		err := l.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			slog.WarnContext(ctx, "Lock expired before release", "key", key, "ttl", r.ttl)
			return nil
		}
		return err
	}, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Local serialises holders of the same key inside one process.
type Local struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]chan struct{})}
}

func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	for {
		l.mu.Lock()
		held, busy := l.locks[key]
		if !busy {
			ch := make(chan struct{})
			l.locks[key] = ch
			l.mu.Unlock()
			return func(context.Context) error {
				l.mu.Lock()
				delete(l.locks, key)
				l.mu.Unlock()
				close(ch)
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, key, ctx.Err())
		}
	}
}

// Noop never blocks.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}
