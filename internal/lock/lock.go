// Package lock implements the per-user advisory lock used to throttle a
// user to one in-flight booking attempt per ticket tier at a time (spec
// §4.3). It is a UX
// safeguard only: if the Redis-backed store is unreachable, Acquire
// degrades open (returns true) rather than blocking the conversation, and
// the booking engine's conditional database update remains the actual
// correctness barrier (spec §4.7, §9). Grounded on the teacher's
// services/lock_service.go SETNX-with-TTL pattern.
package lock

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketbot/internal/monitoring"
)

const prefix = "lock:booking:"

type Registry struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRegistry(client *redis.Client, ttl time.Duration) *Registry {
	return &Registry{redis: client, ttl: ttl}
}

// Acquire attempts to set an owned lock on the resource string passed as
// phone (the conversation controller passes tier:<tid>:user:<phone>).
// owner tags the holder (the controller passes the normalized phone) so
// ReleaseOwned only releases a lock that owner still holds.
//
// On Redis error, Acquire logs a warning and returns true: a user is
// never blocked from proceeding just because the throttle is down.
func (r *Registry) Acquire(ctx context.Context, phone, owner string) bool {
	ok, err := r.redis.SetNX(ctx, prefix+phone, owner, r.ttl).Result()
	if err != nil {
		log.Printf("lock: redis unavailable, degrading open for %s: %v", phone, err)
		monitoring.TrackLockAcquire("degraded_open")
		return true
	}
	if ok {
		monitoring.TrackLockAcquire("acquired")
	} else {
		monitoring.TrackLockAcquire("denied")
	}
	return ok
}

// ReleaseOwned releases the lock only if it is still held by owner,
// avoiding releasing a lock a later attempt has since acquired.
func (r *Registry) ReleaseOwned(ctx context.Context, phone, owner string) {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
	if err := script.Run(ctx, r.redis, []string{prefix + phone}, owner).Err(); err != nil {
		log.Printf("lock: release failed for %s: %v", phone, err)
	}
}

// ForceRelease unconditionally clears the lock, used by admin tooling and
// by cancellation flows that must unblock a user regardless of owner.
func (r *Registry) ForceRelease(ctx context.Context, phone string) {
	if err := r.redis.Del(ctx, prefix+phone).Err(); err != nil {
		log.Printf("lock: force release failed for %s: %v", phone, err)
	}
}
