package ratelimit

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Result contains the outcome of a rate limit check
type Result struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the window resets (0 if allowed)
}

// Limiter provides per-owner request throttling using Redis + Lua.
// The counter key scopes contention to one owner; the Lua script makes the
// increment-and-check atomic so concurrent requests cannot slip past the
// limit together.
type Limiter struct {
	redis  *redis.Client
	script *redis.Script
	logger Logger
}

// NewLimiter creates a new rate limiter with the embedded Lua script
func NewLimiter(redisClient *redis.Client, logger Logger) *Limiter {
	return &Limiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		logger: logger,
	}
}

// CheckOwner checks the request budget for a single owner
func (l *Limiter) CheckOwner(ctx context.Context, ownerID string, limit int64, windowSec int) (*Result, error) {
	key := fmt.Sprintf("rate_limit:owner:%s", ownerID)
	return l.check(ctx, key, limit, windowSec)
}

// check executes the rate limit Lua script
func (l *Limiter) check(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	result, err := l.script.Run(ctx, l.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		l.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	res, err := parseScriptResult(result)
	if err != nil {
		return nil, err
	}

	if !res.Allowed {
		l.logger.Warn("rate limit exceeded",
			"key", key,
			"current", res.CurrentCount,
			"limit", limit,
			"retry_after", res.RetryAfterSeconds)
	} else {
		l.logger.Debug("rate limit check passed",
			"key", key,
			"current", res.CurrentCount,
			"limit", limit)
	}

	return res, nil
}

// parseScriptResult decodes the script reply {allowed, current_count,
// limit, retry_after}. Every element is checked rather than asserted so a
// malformed reply surfaces as an error, never a panic.
func parseScriptResult(reply interface{}) (*Result, error) {
	arr, ok := reply.([]interface{})
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	var vals [4]int64
	for i, v := range arr {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result format")
		}
		vals[i] = n
	}

	return &Result{
		Allowed:           vals[0] == 1,
		CurrentCount:      vals[1],
		Limit:             vals[2],
		RetryAfterSeconds: vals[3],
	}, nil
}

// CurrentCount returns the owner's count in the active window without
// incrementing it (for monitoring)
func (l *Limiter) CurrentCount(ctx context.Context, ownerID string) (int64, error) {
	key := fmt.Sprintf("rate_limit:owner:%s", ownerID)
	count, err := l.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil // Key doesn't exist = no requests yet
	}
	return count, err
}

// Reset clears an owner's counter (for testing/admin)
func (l *Limiter) Reset(ctx context.Context, ownerID string) error {
	key := fmt.Sprintf("rate_limit:owner:%s", ownerID)
	return l.redis.Del(ctx, key).Err()
}
