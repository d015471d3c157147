package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/metrics"
)

// Redis keeps trajectories as JSON values so several processes can share
// solved transients.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Redis)

// WithTTL sets the expiration of cached trajectories. Zero keeps them
// forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func NewRedis(address string, opts ...Option) *Redis {
	return NewRedisFromClient(backend.NewClient(&backend.Options{Addr: address}), opts...)
}

func NewRedisFromClient(client *backend.Client, opts ...Option) *Redis {
	r := &Redis{
		client: client,
		prefix: "recore:trajectory:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stored is the value written to redis. A diverged transient carries
// non-finite powers, which plain JSON numbers cannot hold.
type stored struct {
	Times  []float64      `json:"times"`
	Powers metrics.Series `json:"powers"`
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) (kinetics.Trajectory, error) {
	var (
		tr kinetics.Trajectory
		v  stored
	)
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return tr, ErrMiss
		}
		return tr, fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := json.Unmarshal(val, &v); err != nil {
		return tr, fmt.Errorf("failed to unmarshal trajectory: %w", err)
	}
	tr.Times, tr.Powers = v.Times, []float64(v.Powers)
	return tr, nil
}

func (r *Redis) Put(ctx context.Context, key string, tr kinetics.Trajectory) error {
	data, err := json.Marshal(stored{Times: tr.Times, Powers: metrics.Series(tr.Powers)})
	if err != nil {
		return fmt.Errorf("failed to marshal trajectory: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
