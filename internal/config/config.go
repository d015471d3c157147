package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/integrators"
	"github.com/san-kum/recore/internal/kinetics"
)

const (
	DefaultDataDir    = "data"
	DefaultCacheSize  = 256
	DefaultServerAddr = ":8051"
)

type Config struct {
	Transient TransientConfig `yaml:"transient"`
	Constants ConstantsConfig `yaml:"constants"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

type TransientConfig struct {
	Rho        float64 `yaml:"rho"`
	TEnd       float64 `yaml:"t_end"`
	Dt         float64 `yaml:"dt"`
	Integrator string  `yaml:"integrator"`
}

type ConstantsConfig struct {
	Groups         []kinetics.Group `yaml:"groups"`
	GenerationTime float64          `yaml:"generation_time"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // fs or sqlite
	Dir     string `yaml:"dir"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend"` // none, memory or redis
	Size      int           `yaml:"size"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	c := kinetics.DefaultConstants()
	return &Config{
		Transient: TransientConfig{
			Rho:        kinetics.DefaultRho,
			TEnd:       kinetics.DefaultTEnd,
			Dt:         kinetics.DefaultDt,
			Integrator: integrators.Default,
		},
		Constants: ConstantsConfig{
			Groups:         append([]kinetics.Group(nil), c.Groups[:]...),
			GenerationTime: c.GenerationTime,
		},
		Storage: StorageConfig{Backend: "fs", Dir: DefaultDataDir},
		Cache:   CacheConfig{Backend: "none", Size: DefaultCacheSize},
		Server:  ServerConfig{Addr: DefaultServerAddr},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file on top of DefaultConfig, so a file only needs the
// keys it changes. A constants section must list all six groups.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Constants.Groups = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Constants.Groups == nil {
		cfg.Constants.Groups = DefaultConfig().Constants.Groups
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// KineticsConstants converts the constants section into a kinetics value.
func (c *Config) KineticsConstants() (kinetics.Constants, error) {
	var out kinetics.Constants
	if len(c.Constants.Groups) != kinetics.NumGroups {
		return out, fmt.Errorf("%w: expected %d precursor groups, got %d",
			dynamo.ErrParameterBounds, kinetics.NumGroups, len(c.Constants.Groups))
	}
	copy(out.Groups[:], c.Constants.Groups)
	out.GenerationTime = c.Constants.GenerationTime
	return out, out.Validate()
}

func (c *Config) Request() kinetics.Request {
	return kinetics.Request{Rho: c.Transient.Rho, TEnd: c.Transient.TEnd, Dt: c.Transient.Dt}
}

// Validate checks every section a command may touch.
func (c *Config) Validate() error {
	if _, err := c.KineticsConstants(); err != nil {
		return err
	}
	if err := c.Request().Validate(); err != nil {
		return err
	}
	if _, err := integrators.New(c.Transient.Integrator); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "fs", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	switch c.Cache.Backend {
	case "", "none", "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend: %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "memory" && c.Cache.Size <= 0 {
		return fmt.Errorf("memory cache size must be positive, got %d", c.Cache.Size)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("redis cache needs redis_addr")
	}
	return nil
}
