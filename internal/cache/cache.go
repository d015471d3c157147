// Package cache stores solved trajectories keyed by everything that
// determines them. Solves are deterministic, so a hit is exact.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/recore/internal/config"
	"github.com/san-kum/recore/internal/kinetics"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (kinetics.Trajectory, error)
	Put(ctx context.Context, key string, tr kinetics.Trajectory) error
}

// Key hashes the exact bit patterns of the constants and request together
// with the integrator name.
func Key(c kinetics.Constants, req kinetics.Request, integrator string) string {
	h := sha256.New()
	var buf [8]byte
	put := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, g := range c.Groups {
		put(g.Lambda)
		put(g.Beta)
	}
	put(c.GenerationTime)
	put(req.Rho)
	put(req.TEnd)
	put(req.Dt)
	h.Write([]byte(integrator))
	return hex.EncodeToString(h.Sum(nil))
}

// FromConfig builds the cache named by cfg.Backend. "none" and "" yield a
// nil Cache.
func FromConfig(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		m, err := NewMemory(cfg.Size)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "redis":
		return NewRedis(cfg.RedisAddr, WithTTL(cfg.TTL)), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", cfg.Backend)
	}
}
