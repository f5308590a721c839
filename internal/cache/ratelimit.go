package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitIPPrefix = "ratelimit:ip:"
	rateLimitIPTTL    = 10 * time.Second
)

// ErrInvalidRateLimit is returned for a non-positive rate or burst.
var ErrInvalidRateLimit = errors.New("rate and burst must be positive")

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1] bucket; ARGV rate (tokens/s), burst, now (unix ms), ttl (s).
// Returns {allowed, retry_after_ms, tokens_left}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update) / 1000
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil(((1 - tokens) / rate) * 1000)
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckIPRateLimit takes one token from the bucket of ip. Buckets are keyed
// by a hash of the address so raw IPs are never stored.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 || burst <= 0 {
		return nil, ErrInvalidRateLimit
	}

	now := c.now()
	ttl := rateLimitIPTTL
	if refill := time.Duration(burst) * time.Second / time.Duration(ratePerSecond); refill > ttl {
		ttl = refill
	}

	res, err := tokenBucketScript.Run(ctx, c.client,
		[]string{rateLimitIPPrefix + hashIP(ip)},
		ratePerSecond, burst, now.UnixMilli(), int(ttl.Seconds()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	retryAfter := time.Duration(res[1]) * time.Millisecond
	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Second / time.Duration(ratePerSecond)),
		RetryAfter: retryAfter,
	}, nil
}

// hashIP returns the first 8 bytes of the SHA-256 of ip, hex encoded.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}
