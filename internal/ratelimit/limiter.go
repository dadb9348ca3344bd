package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config contains configuration for send-rate limiting
type Config struct {
	SendLimit  int           // Max messages per window
	SendWindow time.Duration // Message rate limit window
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		SendLimit:  60, // 60 messages per minute
		SendWindow: 60 * time.Second,
	}
}

// Limiter enforces per-user send quotas using Redis fixed windows.
// Keys follow ratelimit:{user_id}:send with the window as TTL.
type Limiter struct {
	client *goredis.Client
	config Config
}

// Result contains the outcome of a rate limit check
type Result struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

func NewLimiter(client *goredis.Client, config Config) *Limiter {
	if config.SendLimit <= 0 {
		config = DefaultConfig()
	}
	return &Limiter{client: client, config: config}
}

// AllowSend checks and consumes one unit of the user's message quota.
func (l *Limiter) AllowSend(ctx context.Context, userID string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:%s:send", userID)
	return l.check(ctx, key, l.config.SendLimit, l.config.SendWindow)
}

// check performs an atomic increment-and-test via a Lua script so two
// concurrent sends cannot both slip under the limit.
func (l *Limiter) check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	script := goredis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('GET', key)
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		local ttl = redis.call('TTL', key)
		if ttl < 0 then
			ttl = window
		end

		if current < limit then
			redis.call('INCR', key)
			if ttl == window then
				redis.call('EXPIRE', key, window)
			end
			return {1, limit - current - 1, ttl}
		else
			return {0, 0, ttl}
		end
	`)

	result, err := script.Run(ctx, l.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &Result{
		Allowed:   resultSlice[0].(int64) == 1,
		Remaining: int(resultSlice[1].(int64)),
		ResetIn:   time.Duration(resultSlice[2].(int64)) * time.Second,
		Limit:     limit,
	}, nil
}

// Reset clears the user's send quota (admin operation).
func (l *Limiter) Reset(ctx context.Context, userID string) error {
	key := fmt.Sprintf("ratelimit:%s:send", userID)
	return l.client.Del(ctx, key).Err()
}
