package cache

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/recore/internal/config"
	"github.com/san-kum/recore/internal/kinetics"
)

func runCacheContract(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrMiss)

	tr := kinetics.SolveDefault(0.002, 0.1, 1e-3)
	require.NoError(t, c.Put(ctx, "k", tr))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, tr, got)

	got.Powers[0] = 42
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Powers[0], "cached value must not alias returned slices")
}

func TestMemoryContract(t *testing.T) {
	m, err := NewMemory(8)
	require.NoError(t, err)
	runCacheContract(t, m)
}

func TestMemoryEvicts(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	tr := kinetics.Trajectory{Times: []float64{0}, Powers: []float64{1}}
	require.NoError(t, m.Put(ctx, "a", tr))
	require.NoError(t, m.Put(ctx, "b", tr))
	require.NoError(t, m.Put(ctx, "c", tr))

	assert.Equal(t, 2, m.Len())
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNewMemoryRejectsZeroSize(t *testing.T) {
	_, err := NewMemory(0)
	assert.Error(t, err)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisContract(t *testing.T) {
	_, client := newMiniredis(t)
	runCacheContract(t, NewRedisFromClient(client))
}

func TestRedisPrefixAndTTL(t *testing.T) {
	mr, client := newMiniredis(t)
	r := NewRedisFromClient(client, WithPrefix("test:"), WithTTL(time.Minute))

	tr := kinetics.Trajectory{Times: []float64{0, 1}, Powers: []float64{1, 2}}
	require.NoError(t, r.Put(context.Background(), "abc", tr))

	assert.True(t, mr.Exists("test:abc"))
	assert.Equal(t, time.Minute, mr.TTL("test:abc"))

	mr.FastForward(2 * time.Minute)
	_, err := r.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKeepsDivergedTrajectory(t *testing.T) {
	_, client := newMiniredis(t)
	r := NewRedisFromClient(client)
	ctx := context.Background()

	tr := kinetics.SolveDefault(0.01, 5.0, 1e-3)
	require.False(t, isFinite(tr.Final()), "rho=0.01 is expected to overflow within 5 s")
	require.NoError(t, r.Put(ctx, "diverged", tr))

	got, err := r.Get(ctx, "diverged")
	require.NoError(t, err)
	require.Equal(t, tr.Len(), got.Len())
	assert.Equal(t, tr.Times, got.Times)
	for i, p := range tr.Powers {
		if isFinite(p) {
			assert.Equal(t, p, got.Powers[i])
			continue
		}
		assert.Equal(t, math.IsNaN(p), math.IsNaN(got.Powers[i]), "sample %d", i)
		assert.Equal(t, math.IsInf(p, 1), math.IsInf(got.Powers[i], 1), "sample %d", i)
	}
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func TestKey(t *testing.T) {
	c := kinetics.DefaultConstants()
	req := kinetics.DefaultRequest()

	base := Key(c, req, "rk4")
	assert.Len(t, base, 64)
	assert.Equal(t, base, Key(c, req, "rk4"))

	other := req
	other.Rho = 0.0021
	assert.NotEqual(t, base, Key(c, other, "rk4"))
	assert.NotEqual(t, base, Key(c, req, "euler"))

	c2 := c
	c2.Groups[3].Lambda = 0.3
	assert.NotEqual(t, base, Key(c2, req, "rk4"))
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig(config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = FromConfig(config.CacheConfig{Backend: "memory", Size: 4})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = FromConfig(config.CacheConfig{Backend: "redis", RedisAddr: "localhost:0"})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, c)

	_, err = FromConfig(config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)
}
