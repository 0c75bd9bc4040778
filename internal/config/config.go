// Package config loads service configuration from an optional YAML file and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a dispatch node.
type Config struct {
	Port         string   `yaml:"port"`
	DatabaseURL  string   `yaml:"databaseUrl"`
	RedisURL     string   `yaml:"redisUrl"`
	AllowOrigins []string `yaml:"allowOrigins"`
	// Migrate applies db/migrations on start when DatabaseURL is set.
	Migrate bool `yaml:"migrate"`
	// RateRPS and RateBurst limit snapshot ingestion per client address.
	RateRPS   float64 `yaml:"rateRps"`
	RateBurst int     `yaml:"rateBurst"`

	Auth      Auth      `yaml:"auth"`
	Webhooks  Webhooks  `yaml:"webhooks"`
	Scheduler Scheduler `yaml:"scheduler"`
	Routing   Routing   `yaml:"routing"`
	Registry  Registry  `yaml:"registry"`
}

type Auth struct {
	Mode   string `yaml:"mode"` // dev | hmac
	Secret string `yaml:"secret"`
}

type Webhooks struct {
	MaxAttempts int `yaml:"maxAttempts"`
}

type Scheduler struct {
	// Clock is "logical" (advanced by snapshots) or "wall".
	Clock            string   `yaml:"clock"`
	TickInterval     Duration `yaml:"tickInterval"`
	MaxRouteFailures int      `yaml:"maxRouteFailures"`
	MoveToleranceM   float64  `yaml:"moveToleranceM"`
	TieBreak         string   `yaml:"tieBreak"`
	Combination      string   `yaml:"combination"`
}

type Routing struct {
	Provider      string   `yaml:"provider"` // mapbox | straight_line
	MapboxToken   string   `yaml:"mapboxToken"`
	MapboxURL     string   `yaml:"mapboxUrl"`
	MapboxProfile string   `yaml:"mapboxProfile"`
	SpeedMPS      float64  `yaml:"speedMps"`
	Timeout       Duration `yaml:"timeout"`
	RatePerSec    float64  `yaml:"ratePerSec"`
	Burst         int      `yaml:"burst"`
	Parallelism   int      `yaml:"parallelism"`
	CacheTTL      Duration `yaml:"cacheTtl"`
	CacheDecimals int      `yaml:"cacheDecimals"`
}

type Registry struct {
	ServiceDuration Duration `yaml:"serviceDuration"`
	PendingTimeout  Duration `yaml:"pendingTimeout"`
}

// Duration decodes YAML strings such as "1500ms" or "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:      "8080",
		Migrate:   true,
		RateRPS:   5,
		RateBurst: 10,
		Auth:      Auth{Mode: "dev"},
		Webhooks:  Webhooks{MaxAttempts: 10},
		Scheduler: Scheduler{
			Clock:            "logical",
			TickInterval:     Duration{time.Second},
			MaxRouteFailures: 3,
			MoveToleranceM:   50,
			TieBreak:         "id",
			Combination:      "nearest",
		},
		Routing: Routing{
			Provider:      "straight_line",
			MapboxProfile: "driving",
			SpeedMPS:      13.9,
			Timeout:       Duration{5 * time.Second},
			RatePerSec:    10,
			Burst:         20,
			Parallelism:   8,
			CacheTTL:      Duration{10 * time.Minute},
			CacheDecimals: 4,
		},
	}
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.Secret)
	str("MAPBOX_TOKEN", &c.Routing.MapboxToken)
	str("ROUTING_PROVIDER", &c.Routing.Provider)
	str("SCHEDULER_CLOCK", &c.Scheduler.Clock)
	if v := getenv("ALLOW_ORIGINS"); v != "" {
		c.AllowOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowOrigins = append(c.AllowOrigins, o)
			}
		}
	}
	if v := getenv("DB_MIGRATE"); v != "" {
		c.Migrate = v != "false"
	}
	if v := getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.RateRPS = f
	}
	ints := map[string]*int{
		"RATE_BURST":           &c.RateBurst,
		"WEBHOOK_MAX_ATTEMPTS": &c.Webhooks.MaxAttempts,
		"MAX_ROUTE_FAILURES":   &c.Scheduler.MaxRouteFailures,
	}
	for key, dst := range ints {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	durs := map[string]*Duration{
		"TICK_INTERVAL":    &c.Scheduler.TickInterval,
		"SERVICE_DURATION": &c.Registry.ServiceDuration,
		"PENDING_TIMEOUT":  &c.Registry.PendingTimeout,
		"ROUTING_TIMEOUT":  &c.Routing.Timeout,
	}
	for key, dst := range durs {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			dst.Duration = d
		}
	}
	// A token alone selects the Mapbox provider.
	if c.Routing.MapboxToken != "" && getenv("ROUTING_PROVIDER") == "" && c.Routing.Provider == "straight_line" {
		c.Routing.Provider = "mapbox"
	}
	return nil
}

// validate checks that all config values are usable.
func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth mode hmac requires a secret")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	switch c.Scheduler.Clock {
	case "logical", "wall":
	default:
		return fmt.Errorf("unknown scheduler clock %q", c.Scheduler.Clock)
	}
	switch c.Routing.Provider {
	case "straight_line":
	case "mapbox":
		if c.Routing.MapboxToken == "" {
			return fmt.Errorf("routing provider mapbox requires a token")
		}
	default:
		return fmt.Errorf("unknown routing provider %q", c.Routing.Provider)
	}
	if c.Scheduler.TickInterval.Duration <= 0 {
		return fmt.Errorf("scheduler tick interval must be positive")
	}
	if c.Scheduler.MaxRouteFailures <= 0 {
		return fmt.Errorf("maxRouteFailures must be positive")
	}
	if c.Registry.ServiceDuration.Duration < 0 || c.Registry.PendingTimeout.Duration < 0 {
		return fmt.Errorf("registry durations must not be negative")
	}
	return nil
}
