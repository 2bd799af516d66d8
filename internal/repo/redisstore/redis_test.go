package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inProcess starts an in-memory Redis and returns a client for it.
func inProcess(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

// unreachable returns a client whose every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRateCounter_SurfacesErrors(t *testing.T) {
	c := NewRateCounter(unreachable(t))
	n, _, err := c.Incr(context.Background(), "ip:1.2.3.4", time.Hour)
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestIdempotencyStore_SurfacesErrors(t *testing.T) {
	s := NewIdempotencyStore(unreachable(t))
	_, err := s.Get(context.Background(), "idempotency:abc")
	assert.Error(t, err)
	assert.Error(t, s.Set(context.Background(), "idempotency:abc", "{}", time.Minute))
}

func TestRateCounter_FixedWindow(t *testing.T) {
	mr, client := inProcess(t)
	c := NewRateCounter(client)
	ctx := context.Background()

	n, ttl, err := c.Incr(ctx, "ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:ip:1.2.3.4"))

	mr.FastForward(20 * time.Second)
	n, ttl, err = c.Incr(ctx, "ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 40*time.Second, ttl)

	n, _, err = c.Incr(ctx, "ip:5.6.7.8", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "keys are counted separately")

	mr.FastForward(41 * time.Second)
	n, _, err = c.Incr(ctx, "ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "a new window starts once the old one expires")
}

func TestRateCounter_RepairsMissingExpiry(t *testing.T) {
	mr, client := inProcess(t)
	require.NoError(t, mr.Set("ratelimit:ip:1.2.3.4", "5"))

	n, ttl, err := NewRateCounter(client).Incr(context.Background(), "ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:ip:1.2.3.4"))
}

func TestIdempotencyStore_GetSet(t *testing.T) {
	mr, client := inProcess(t)
	s := NewIdempotencyStore(client)
	ctx := context.Background()

	v, err := s.Get(ctx, "idempotency:missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, "idempotency:abc", `{"status":201}`, time.Hour))
	v, err = s.Get(ctx, "idempotency:abc")
	require.NoError(t, err)
	assert.Equal(t, `{"status":201}`, v)
	assert.Equal(t, time.Hour, mr.TTL("idempotency:abc"))

	mr.FastForward(time.Hour)
	v, err = s.Get(ctx, "idempotency:abc")
	require.NoError(t, err)
	assert.Empty(t, v)
}
