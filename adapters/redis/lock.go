// Package redis provides lock.Adapter and breaker.Adapter implementations
// backed by a raw redis/go-redis/v9 client and small Lua scripts, rather
// than a higher-level distributed-mutex library: the port's tryInsert
// admits same-owner re-acquisition and distinguishes "refresh on a
// record with no expiry" from "refresh on an absent record", neither of
// which a library like redsync's opaque Mutex exposes without
// re-implementing a second ownership layer on top of it (§4.1).
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/resilientcore/resilientcore/lock"
)

// tryInsertScript implements tryInsert's three-way admission rule
// atomically: absent, expired (Redis has already evicted the key, so it
// reads as absent), or same owner.
// KEYS[1] = key, ARGV[1] = owner, ARGV[2] = ttl millis (0 = unexpireable).
var tryInsertScript = goredis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false or cur == ARGV[1] then
	if cur == ARGV[1] then
		return 1
	end
	if tonumber(ARGV[2]) > 0 then
		redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	else
		redis.call("SET", KEYS[1], ARGV[1])
	end
	return 1
end
return 0
`)

// releaseScript deletes KEYS[1] iff its value equals ARGV[1].
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript sets a new expiry iff the key is owned by ARGV[1] and
// currently has a TTL (PTTL > 0); a key with no TTL is unexpireable and
// refresh on it must fail (§4.1).
var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
local pttl = redis.call("PTTL", KEYS[1])
if pttl == -1 then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	redis.call("PERSIST", KEYS[1])
end
return 1
`)

// LockAdapter is a lock.Adapter over a single Redis key per lock key;
// expiry is delegated entirely to Redis's own key TTL (so "expired" and
// "absent" are the same observable state, matching §4.1's expiry
// policy without any adapter-side bookkeeping).
type LockAdapter struct {
	client goredis.UniversalClient
}

// NewLockAdapter constructs a LockAdapter over client.
func NewLockAdapter(client goredis.UniversalClient) *LockAdapter {
	return &LockAdapter{client: client}
}

func (a *LockAdapter) TryInsert(ctx context.Context, key, owner string, ttl lock.TTL) (bool, error) {
	res, err := tryInsertScript.Run(ctx, a.client, []string{key}, owner, ttlMillis(ttl)).Int()
	if err != nil {
		return false, fmt.Errorf("redis: tryInsert %q: %w", key, err)
	}
	return res == 1, nil
}

func (a *LockAdapter) Release(ctx context.Context, key, owner string) (bool, error) {
	res, err := releaseScript.Run(ctx, a.client, []string{key}, owner).Int()
	if err != nil {
		return false, fmt.Errorf("redis: release %q: %w", key, err)
	}
	return res == 1, nil
}

func (a *LockAdapter) ForceRelease(ctx context.Context, key string) (bool, error) {
	res, err := a.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: forceRelease %q: %w", key, err)
	}
	return res > 0, nil
}

func (a *LockAdapter) Refresh(ctx context.Context, key, owner string, newTTL lock.TTL) (bool, error) {
	res, err := refreshScript.Run(ctx, a.client, []string{key}, owner, ttlMillis(newTTL)).Int()
	if err != nil {
		return false, fmt.Errorf("redis: refresh %q: %w", key, err)
	}
	return res == 1, nil
}

func (a *LockAdapter) GetRecord(ctx context.Context, key string) (lock.Record, bool, error) {
	pipe := a.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	pttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return lock.Record{}, false, fmt.Errorf("redis: getRecord %q: %w", key, err)
	}

	owner, err := getCmd.Result()
	if errors.Is(err, goredis.Nil) {
		return lock.Record{}, false, nil
	}
	if err != nil {
		return lock.Record{}, false, fmt.Errorf("redis: getRecord %q: %w", key, err)
	}

	pttl := pttlCmd.Val()
	if pttl == -1 {
		return lock.Record{Owner: owner, Unexpireable: true}, true, nil
	}
	return lock.Record{Owner: owner, ExpiresAt: time.Now().Add(pttl)}, true, nil
}

func (a *LockAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

func ttlMillis(ttl lock.TTL) int64 {
	if ttl.IsUnexpireable() {
		return 0
	}
	// 0 means unexpireable to the scripts, so a sub-millisecond TTL is
	// rounded up to 1ms instead.
	if ms := ttl.Duration().Milliseconds(); ms > 0 {
		return ms
	}
	return 1
}
