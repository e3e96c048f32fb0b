// Package config loads service settings from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"routeopt/internal/opt"
)

type Config struct {
	Environment string          `yaml:"environment"`
	LogLevel    string          `yaml:"logLevel"`
	Port        string          `yaml:"port"`
	DatabaseURL string          `yaml:"databaseUrl"`
	RedisURL    string          `yaml:"redisUrl"`
	Routing     RoutingConfig   `yaml:"routing"`
	Rate        RateConfig      `yaml:"rate"`
	Cache       CacheConfig     `yaml:"cache"`
	Optimizer   OptimizerConfig `yaml:"optimizer"`
	Worker      WorkerConfig    `yaml:"worker"`
}

// RoutingConfig points at an OSRM-compatible table service. An empty URL
// keeps the optimizer on great-circle estimates.
type RoutingConfig struct {
	URL     string        `yaml:"url"`
	Profile string        `yaml:"profile"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateConfig limits API requests per client address. RPS 0 disables limiting.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type CacheConfig struct {
	ClearSchedule string        `yaml:"clearSchedule"`
	MaxPairs      int           `yaml:"maxPairs"`
	TTL           time.Duration `yaml:"ttl"`
}

type OptimizerConfig struct {
	Algorithm      string  `yaml:"algorithm"`
	MaxIterations  int     `yaml:"maxIterations"`
	TimeLimit      float64 `yaml:"timeLimit"` // seconds
	PopulationSize int     `yaml:"populationSize"`
	Temperature    float64 `yaml:"temperature"`
	SpeedKph       float64 `yaml:"speedKph"`
	// MaxLocations caps the locations accepted per request.
	MaxLocations int `yaml:"maxLocations"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

func Default() Config {
	return Config{
		Environment: "development",
		LogLevel:    "info",
		Port:        "8080",
		Routing:     RoutingConfig{Profile: "driving", RPS: 5, Burst: 1, Timeout: 10 * time.Second},
		Rate:        RateConfig{RPS: 20, Burst: 40},
		Cache:       CacheConfig{ClearSchedule: "@every 30m", MaxPairs: 100000, TTL: 7 * 24 * time.Hour},
		Optimizer:   OptimizerConfig{Algorithm: string(opt.Hybrid), TimeLimit: 30, SpeedKph: 50, MaxLocations: 500},
		Worker:      WorkerConfig{Concurrency: 4},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("ENVIRONMENT", &c.Environment)
	str("LOG_LEVEL", &c.LogLevel)
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("ROUTING_URL", &c.Routing.URL)
	str("CACHE_CLEAR_SCHEDULE", &c.Cache.ClearSchedule)
	str("OPTIMIZER_ALGORITHM", &c.Optimizer.Algorithm)

	var errs []error
	float := func(key string, dst *float64) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
	integer := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	float("ROUTING_RPS", &c.Routing.RPS)
	float("RATE_RPS", &c.Rate.RPS)
	integer("RATE_BURST", &c.Rate.Burst)
	integer("CACHE_MAX_PAIRS", &c.Cache.MaxPairs)
	integer("WORKER_CONCURRENCY", &c.Worker.Concurrency)
	float("OPTIMIZER_TIME_LIMIT", &c.Optimizer.TimeLimit)
	integer("OPTIMIZER_MAX_LOCATIONS", &c.Optimizer.MaxLocations)
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	if !opt.Known(opt.Algorithm(c.Optimizer.Algorithm)) {
		return fmt.Errorf("optimizer.algorithm: unknown algorithm %q", c.Optimizer.Algorithm)
	}
	if c.Optimizer.TimeLimit < 0 || c.Optimizer.MaxIterations < 0 || c.Optimizer.PopulationSize < 0 || c.Optimizer.Temperature < 0 {
		return errors.New("optimizer: limits must be >= 0")
	}
	if c.Optimizer.MaxLocations < 2 {
		return fmt.Errorf("optimizer.maxLocations: %d is below the minimum of 2", c.Optimizer.MaxLocations)
	}
	if c.Rate.RPS < 0 || c.Routing.RPS < 0 {
		return errors.New("rps must be >= 0")
	}
	return nil
}

// Options converts the optimizer section into solver defaults.
func (c Config) Options() opt.Options {
	return opt.Options{
		Algorithm:      opt.Algorithm(c.Optimizer.Algorithm),
		MaxIterations:  c.Optimizer.MaxIterations,
		TimeLimit:      c.Optimizer.TimeLimit,
		PopulationSize: c.Optimizer.PopulationSize,
		Temperature:    c.Optimizer.Temperature,
	}
}

// Level returns the parsed log level, defaulting to info.
func (c Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func (c Config) IsDevelopment() bool { return c.Environment == "development" }
