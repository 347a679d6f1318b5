// Package locker provides a per-unit lock shared by every instance of the
// service through Redis.  It implements ledger.UnitLocker.
package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/turf-reservation/internal/ledger"
)

// ErrTimeout is returned when the lock could not be taken before Wait
// elapsed.  It wraps ledger.ErrLockTimeout.
var ErrTimeout = fmt.Errorf("locker: %w", ledger.ErrLockTimeout)

// releaseScript deletes the key only when it still holds our token, so a
// holder whose TTL expired never frees somebody else's lock.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a SET NX PX lock keyed by unit id.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration // upper bound on how long a crashed holder blocks the unit
	wait   time.Duration // how long LockUnit keeps retrying
	retry  time.Duration
}

// NewRedis returns a Redis locker.  Zero durations fall back to a 5s TTL,
// a 3s wait and a 25ms retry interval.
func NewRedis(rdb redis.UniversalClient, prefix string, ttl, wait time.Duration) *Redis {
	if prefix == "" {
		prefix = "lock:unit"
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *Redis) key(unitID uint64) string {
	return fmt.Sprintf("%s:%d", l.prefix, unitID)
}

// LockUnit blocks until the unit lock is held, ctx is done or the wait
// budget is spent.
func (l *Redis) LockUnit(ctx context.Context, unitID uint64) (func(), error) {
	key := l.key(unitID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("locker: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled by the time the
		// deferred unlock runs.
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{key}, token).Err()
	}, nil
}
