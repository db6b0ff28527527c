package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/resilientcore/resilientcore/breaker"
)

// Numeric encoding of breaker.State used inside Redis hashes and Lua
// scripts, since Lua has no notion of the Go enum.
const (
	stateClosed   = 0
	stateOpen     = 1
	stateHalfOpen = 2
	stateIsolated = 3
)

func decodeState(n int64) breaker.State {
	switch n {
	case stateOpen:
		return breaker.Open
	case stateHalfOpen:
		return breaker.HalfOpen
	case stateIsolated:
		return breaker.Isolated
	default:
		return breaker.Closed
	}
}

// trackScript updates the per-key counters HINCRBY-style, branching on
// whether the record is currently HALF_OPEN (where it counts probe
// outcomes) or CLOSED/OPEN (where it maintains a consecutive-failure
// streak). ISOLATED records ignore tracking entirely.
// KEYS[1] = key, ARGV[1] = "1" success | "0" failure.
var trackScript = goredis.NewScript(`
local state = tonumber(redis.call("HGET", KEYS[1], "state") or "0")
if state == 3 then
	return 0
end
local success = ARGV[1] == "1"
if state == 2 then
	redis.call("HINCRBY", KEYS[1], "half_open_attempts", 1)
	if success then
		redis.call("HINCRBY", KEYS[1], "half_open_successes", 1)
	end
else
	if success then
		redis.call("HSET", KEYS[1], "consecutive_failures", 0)
	else
		redis.call("HINCRBY", KEYS[1], "consecutive_failures", 1)
	end
end
return 1
`)

// updateStateScript is the single choke point for transitions (§3.2
// invariant 1), returning {from, to} atomically.
// KEYS[1] = key
// ARGV = {failureThreshold, openDurationMillis, halfOpenProbes, halfOpenSuccessThreshold, nowMillis}
var updateStateScript = goredis.NewScript(`
local state = tonumber(redis.call("HGET", KEYS[1], "state") or "0")
local before = state
if state == 3 then
	return {before, 3}
end

local failureThreshold = tonumber(ARGV[1])
local openDuration = tonumber(ARGV[2])
local halfOpenProbes = tonumber(ARGV[3])
local halfOpenSuccessThreshold = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

if state == 0 then
	local failures = tonumber(redis.call("HGET", KEYS[1], "consecutive_failures") or "0")
	if failureThreshold > 0 and failures >= failureThreshold then
		redis.call("HSET", KEYS[1], "state", 1, "opened_at", now)
		state = 1
	end
elseif state == 1 then
	local openedAt = tonumber(redis.call("HGET", KEYS[1], "opened_at") or "0")
	if now - openedAt >= openDuration then
		redis.call("HSET", KEYS[1], "state", 2, "half_open_attempts", 0, "half_open_successes", 0)
		state = 2
	end
elseif state == 2 then
	local attempts = tonumber(redis.call("HGET", KEYS[1], "half_open_attempts") or "0")
	if halfOpenProbes > 0 and attempts >= halfOpenProbes then
		local successes = tonumber(redis.call("HGET", KEYS[1], "half_open_successes") or "0")
		if successes >= halfOpenSuccessThreshold then
			redis.call("HSET", KEYS[1], "state", 0, "consecutive_failures", 0)
			state = 0
		else
			redis.call("HSET", KEYS[1], "state", 1, "opened_at", now, "half_open_attempts", 0, "half_open_successes", 0)
			state = 1
		end
	end
end

return {before, state}
`)

var isolateScript = goredis.NewScript(`redis.call("HSET", KEYS[1], "state", 3) return 1`)

// BreakerAdapter is a breaker.Adapter backed by one Redis hash per key,
// with the transition logic itself implemented in Lua so concurrent
// callers across processes observe a single, atomically-updated record
// (§6.2's atomicity requirement, mirrored from the lock adapter's
// Lua-script approach).
type BreakerAdapter struct {
	client goredis.UniversalClient
}

// NewBreakerAdapter constructs a BreakerAdapter over client.
func NewBreakerAdapter(client goredis.UniversalClient) *BreakerAdapter {
	return &BreakerAdapter{client: client}
}

func (a *BreakerAdapter) GetState(ctx context.Context, key string) (breaker.State, error) {
	res, err := a.client.HGet(ctx, key, "state").Result()
	if err != nil {
		if err == goredis.Nil {
			return breaker.Closed, nil
		}
		return breaker.Closed, fmt.Errorf("redis: getState %q: %w", key, err)
	}
	var n int64
	if _, scanErr := fmt.Sscanf(res, "%d", &n); scanErr != nil {
		return breaker.Closed, fmt.Errorf("redis: getState %q: malformed state %q", key, res)
	}
	return decodeState(n), nil
}

func (a *BreakerAdapter) UpdateState(ctx context.Context, key string, policy breaker.Policy) (breaker.Transition, error) {
	res, err := updateStateScript.Run(ctx, a.client, []string{key},
		policy.FailureThreshold,
		policy.OpenDuration.Milliseconds(),
		policy.HalfOpenProbes,
		policy.HalfOpenSuccessThreshold,
		time.Now().UnixMilli(),
	).Slice()
	if err != nil {
		return breaker.Transition{}, fmt.Errorf("redis: updateState %q: %w", key, err)
	}
	from, to := decodeScriptState(res[0]), decodeScriptState(res[1])
	return breaker.Transition{From: from, To: to}, nil
}

func decodeScriptState(v any) breaker.State {
	n, ok := v.(int64)
	if !ok {
		return breaker.Closed
	}
	return decodeState(n)
}

func (a *BreakerAdapter) TrackFailure(ctx context.Context, key string, slow bool) error {
	return trackScript.Run(ctx, a.client, []string{key}, "0").Err()
}

func (a *BreakerAdapter) TrackSuccess(ctx context.Context, key string, slow bool) error {
	return trackScript.Run(ctx, a.client, []string{key}, "1").Err()
}

func (a *BreakerAdapter) Isolate(ctx context.Context, key string) error {
	return isolateScript.Run(ctx, a.client, []string{key}).Err()
}

func (a *BreakerAdapter) Reset(ctx context.Context, key string) error {
	return a.client.Del(ctx, key).Err()
}

func (a *BreakerAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
