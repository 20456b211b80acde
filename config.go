package tasker

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds configuration for the engine and its worker pool.
type Config struct {
	// Concurrency is the maximum number of invocations processed concurrently.
	Concurrency int

	// Queues is the list of queues the worker pool will poll.
	Queues []string

	// PollInterval is how often idle workers poll for new invocations.
	PollInterval time.Duration

	// ResultPollInterval is how often completion handles poll the result
	// backend while waiting.
	ResultPollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// Codec names the payload codec ("json" or "msgpack").
	Codec string

	// Discovery restricts autodiscovery to the named catalog entries.
	// Empty means every provided entry.
	Discovery []string

	// QueueLimits caps concurrency and dequeue rate per queue.
	QueueLimits []QueueLimit

	// Store selects and configures the result backend.
	Store StoreConfig
}

// QueueLimit bounds how fast the local pool drains one queue.
type QueueLimit struct {
	Name           string
	MaxConcurrency int
	RateLimit      float64
	RateBurst      int
}

// StoreConfig selects the invocation store backend.
type StoreConfig struct {
	// Driver is one of "memory", "redis", "postgres", "mongo".
	Driver string

	// DSN is the backend connection string: a redis://, postgres:// or
	// mongodb:// URL. Ignored by the memory driver.
	DSN string

	// Database names the MongoDB database. Only the mongo driver reads it.
	Database string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:        10,
		Queues:             []string{"default"},
		PollInterval:       1 * time.Second,
		ResultPollInterval: 50 * time.Millisecond,
		ShutdownTimeout:    30 * time.Second,
		Codec:              "json",
		Store:              StoreConfig{Driver: "memory", Database: "tasker"},
	}
}

// fileConfig is the on-disk TOML shape. Durations are written as Go
// duration strings ("250ms", "30s").
type fileConfig struct {
	Concurrency        int      `toml:"concurrency"`
	Queues             []string `toml:"queues"`
	PollInterval       string   `toml:"poll_interval"`
	ResultPollInterval string   `toml:"result_poll_interval"`
	ShutdownTimeout    string   `toml:"shutdown_timeout"`
	Codec              string   `toml:"codec"`
	Discovery          []string `toml:"discovery"`
	QueueLimits        []struct {
		Name           string  `toml:"name"`
		MaxConcurrency int     `toml:"max_concurrency"`
		RateLimit      float64 `toml:"rate_limit"`
		RateBurst      int     `toml:"rate_burst"`
	} `toml:"queue_limit"`
	Store struct {
		Driver   string `toml:"driver"`
		DSN      string `toml:"dsn"`
		Database string `toml:"database"`
	} `toml:"store"`
}

// LoadConfig reads a TOML file and overlays it on DefaultConfig. Keys left
// out of the file keep their default value.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("tasker: config load failed (%s): %w", path, err)
	}
	return ParseConfig(string(data))
}

// ParseConfig parses TOML config text and overlays it on DefaultConfig.
func ParseConfig(data string) (Config, error) {
	var fc fileConfig
	if _, err := toml.Decode(data, &fc); err != nil {
		return Config{}, fmt.Errorf("tasker: config parse failed: %w", err)
	}

	cfg := DefaultConfig()
	if fc.Concurrency > 0 {
		cfg.Concurrency = fc.Concurrency
	}
	if len(fc.Queues) > 0 {
		cfg.Queues = fc.Queues
	}
	if fc.Codec != "" {
		cfg.Codec = fc.Codec
	}
	if len(fc.Discovery) > 0 {
		cfg.Discovery = fc.Discovery
	}
	for _, ql := range fc.QueueLimits {
		cfg.QueueLimits = append(cfg.QueueLimits, QueueLimit(ql))
	}
	if fc.Store.Driver != "" {
		cfg.Store.Driver = fc.Store.Driver
	}
	cfg.Store.DSN = fc.Store.DSN
	if fc.Store.Database != "" {
		cfg.Store.Database = fc.Store.Database
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"poll_interval", fc.PollInterval, &cfg.PollInterval},
		{"result_poll_interval", fc.ResultPollInterval, &cfg.ResultPollInterval},
		{"shutdown_timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("tasker: config %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Concurrency <= 0:
		return fmt.Errorf("tasker: config concurrency must be positive, got %d", c.Concurrency)
	case len(c.Queues) == 0:
		return fmt.Errorf("tasker: config queues must not be empty")
	case c.PollInterval <= 0:
		return fmt.Errorf("tasker: config poll_interval must be positive")
	case c.ResultPollInterval <= 0:
		return fmt.Errorf("tasker: config result_poll_interval must be positive")
	}
	for _, ql := range c.QueueLimits {
		if ql.Name == "" {
			return fmt.Errorf("tasker: config queue_limit needs a name")
		}
		if ql.MaxConcurrency < 0 || ql.RateLimit < 0 || ql.RateBurst < 0 {
			return fmt.Errorf("tasker: config queue_limit %q has a negative value", ql.Name)
		}
	}
	switch c.Store.Driver {
	case "memory", "redis", "postgres", "mongo":
	default:
		return fmt.Errorf("tasker: config store driver %q is not supported", c.Store.Driver)
	}
	return nil
}
