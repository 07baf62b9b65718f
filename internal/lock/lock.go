// Package lock provides per-key mutual exclusion for the conversation cursor
// read-modify-write.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context expired.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes work per key. The returned release func is always safe
// to call.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Nop never blocks.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// Local serializes keys within one process.
type Local struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]chan struct{})}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return func() {}, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a single-instance SET NX PX lock.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis returns a lock whose keys expire after ttl so a crashed holder
// cannot block a correspondent forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: client, prefix: "ledger:lock:", ttl: ttl, retry: 50 * time.Millisecond}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()
	t := time.NewTicker(r.retry)
	defer t.Stop()
	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return func() {}, fmt.Errorf("acquire %s: %w", k, err)
		}
		if ok {
			return func() {
				// Release must run even if ctx is already cancelled.
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, r.client, []string{k}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return func() {}, fmt.Errorf("%w: %s: %v", ErrNotAcquired, k, ctx.Err())
		case <-t.C:
		}
	}
}
