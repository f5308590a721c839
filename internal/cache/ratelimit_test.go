package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewWithClient(client)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, mr, &now
}

func TestCheckIPRateLimit_BurstThenReject(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t)

	for i := 0; i < 3; i++ {
		res, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 1, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, int64(2-i), res.Remaining)
	}

	res, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 1, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)
}

func TestCheckIPRateLimit_Refills(t *testing.T) {
	ctx := context.Background()
	c, _, now := newTestCache(t)

	for i := 0; i < 2; i++ {
		res, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 2, 2)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 2, 2)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	*now = now.Add(500 * time.Millisecond)

	res, err = c.CheckIPRateLimit(ctx, "10.0.0.1", 2, 2)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckIPRateLimit_BucketsAreIsolated(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t)

	res, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 1, 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = c.CheckIPRateLimit(ctx, "10.0.0.1", 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = c.CheckIPRateLimit(ctx, "10.0.0.2", 1, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckIPRateLimit_StoresHashedKey(t *testing.T) {
	ctx := context.Background()
	c, mr, _ := newTestCache(t)

	_, err := c.CheckIPRateLimit(ctx, "192.168.1.100", 5, 10)
	require.NoError(t, err)

	assert.True(t, mr.Exists(rateLimitIPPrefix+hashIP("192.168.1.100")))
	assert.False(t, mr.Exists(rateLimitIPPrefix+"192.168.1.100"))
	assert.Greater(t, mr.TTL(rateLimitIPPrefix+hashIP("192.168.1.100")), time.Duration(0))
}

func TestCheckIPRateLimit_InvalidConfig(t *testing.T) {
	c, _, _ := newTestCache(t)

	_, err := c.CheckIPRateLimit(context.Background(), "10.0.0.1", 0, 5)
	assert.ErrorIs(t, err, ErrInvalidRateLimit)
}

func TestCheckIPRateLimit_RedisDown(t *testing.T) {
	c, mr, _ := newTestCache(t)
	mr.Close()

	_, err := c.CheckIPRateLimit(context.Background(), "10.0.0.1", 1, 1)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	c, mr, _ := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestHashIP(t *testing.T) {
	seen := make(map[string]string)
	for _, ip := range []string{"192.168.1.1", "192.168.1.2", "127.0.0.1", "::1", "2001:db8::7334", ""} {
		h := hashIP(ip)
		assert.Regexp(t, `^[0-9a-f]{16}$`, h, ip)
		assert.Equal(t, h, hashIP(ip))
		if prev, dup := seen[h]; dup {
			t.Fatalf("hashIP(%q) collides with hashIP(%q)", ip, prev)
		}
		seen[h] = ip
	}
}
