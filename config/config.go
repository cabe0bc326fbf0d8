package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/paramcache/cache"
	"github.com/jonwraymond/paramcache/observe"
	"github.com/jonwraymond/paramcache/secret"
	"github.com/jonwraymond/paramcache/store"
)

// DefaultServiceName is used when the file names no service.
const DefaultServiceName = "paramcache"

// Config is the decoded configuration file.
type Config struct {
	Service    string            `yaml:"service"`
	Version    string            `yaml:"version"`
	Store      StoreConfig       `yaml:"store"`
	Groups     []GroupConfig     `yaml:"groups"`
	Parameters []ParameterConfig `yaml:"parameters"`
	Secrets    SecretsConfig     `yaml:"secrets"`
	Health     HealthConfig      `yaml:"health"`
	Observe    ObserveConfig     `yaml:"observe"`
}

// StoreConfig selects a backend. Settings for every backend live under a
// key named after it; only the selected backend's settings are used.
//
//	store:
//	  backend: ssm
//	  ssm: { region: eu-west-1 }
type StoreConfig struct {
	Backend    string                   `yaml:"backend"`
	Resilience ResilienceConfig         `yaml:"resilience"`
	Backends   map[string]store.Options `yaml:",inline"`
}

// Options returns the settings of the selected backend.
func (s StoreConfig) Options() store.Options {
	if opts, ok := s.Backends[s.Backend]; ok {
		return opts
	}
	return store.Options{}
}

// ResilienceConfig tunes the executor wrapped around the store. Zero values
// take the resilience package defaults.
type ResilienceConfig struct {
	Disabled           bool          `yaml:"disabled"`
	MaxAttempts        int           `yaml:"max_attempts"`
	InitialDelay       time.Duration `yaml:"initial_delay"`
	MaxDelay           time.Duration `yaml:"max_delay"`
	Backoff            string        `yaml:"backoff"`
	Jitter             bool          `yaml:"jitter"`
	Timeout            time.Duration `yaml:"timeout"`
	CircuitMaxFailures int           `yaml:"circuit_max_failures"`
	CircuitReset       time.Duration `yaml:"circuit_reset"`
	Rate               float64       `yaml:"rate"`
	Burst              int           `yaml:"burst"`
}

// GroupConfig declares a group and its members.
type GroupConfig struct {
	Name       string            `yaml:"name"`
	MaxAge     time.Duration     `yaml:"max_age"`
	Decrypt    *bool             `yaml:"decrypt"`
	BatchSize  int               `yaml:"batch_size"`
	Parameters []ParameterConfig `yaml:"parameters"`
}

// ParameterConfig declares a parameter. MaxAge is only valid outside groups.
type ParameterConfig struct {
	Name    string        `yaml:"name"`
	MaxAge  time.Duration `yaml:"max_age"`
	Decrypt *bool         `yaml:"decrypt"`
}

// SecretsConfig controls "secretref:param:" resolution.
type SecretsConfig struct {
	// Strict rejects references that resolve to "".
	Strict bool `yaml:"strict"`
	// AllowUnlisted resolves names that are not configured parameters by
	// caching them on demand.
	AllowUnlisted bool `yaml:"allow_unlisted"`
}

// HealthConfig configures the health checks.
type HealthConfig struct {
	// ProbeKey, when set, adds a store check fetching this key.
	ProbeKey string        `yaml:"probe_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ObserveConfig mirrors observe.Config in file form.
type ObserveConfig struct {
	Tracing struct {
		Enabled   bool    `yaml:"enabled"`
		Exporter  string  `yaml:"exporter"`
		SamplePct float64 `yaml:"sample_pct"`
	} `yaml:"tracing"`
	Metrics struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"metrics"`
	Logging struct {
		Enabled bool   `yaml:"enabled"`
		Level   string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads, expands, parses, and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment variables in data with secret.ExpandEnvStrict,
// decodes it, applies defaults, and validates the result. Unknown fields
// are rejected.
func Parse(data []byte) (*Config, error) {
	expanded, err := secret.ExpandEnvStrict(string(data))
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service == "" {
		c.Service = DefaultServiceName
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Observe.Logging.Level == "" {
		c.Observe.Logging.Level = "info"
	}
	if c.Observe.Tracing.Exporter == "" {
		c.Observe.Tracing.Exporter = "none"
	}
	if c.Observe.Metrics.Exporter == "" {
		c.Observe.Metrics.Exporter = "none"
	}
}

// Validate reports every problem found, joined, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Store.Backend == "" {
		fail("store.backend is required")
	}
	r := c.Store.Resilience
	if r.MaxAttempts < 0 || r.CircuitMaxFailures < 0 || r.Burst < 0 || r.Rate < 0 {
		fail("store.resilience values must not be negative")
	}
	if r.InitialDelay < 0 || r.MaxDelay < 0 || r.Timeout < 0 || r.CircuitReset < 0 {
		fail("store.resilience durations must not be negative")
	}

	seen := make(map[string]string)
	claim := func(name, owner string) {
		if err := cache.ValidateName(name); err != nil {
			fail("%s: %v", owner, err)
			return
		}
		if prev, dup := seen[name]; dup {
			fail("parameter %q declared by both %s and %s", name, prev, owner)
			return
		}
		seen[name] = owner
	}

	groups := make(map[string]bool)
	for i, g := range c.Groups {
		where := fmt.Sprintf("groups[%d]", i)
		if g.Name == "" {
			fail("%s.name is required", where)
		} else if groups[g.Name] {
			fail("group %q declared twice", g.Name)
		}
		groups[g.Name] = true
		if g.MaxAge < 0 {
			fail("%s.max_age must not be negative", where)
		}
		if g.BatchSize < 0 || g.BatchSize > store.MaxBatchSize {
			fail("%s.batch_size must be between 1 and %d", where, store.MaxBatchSize)
		}
		for j, p := range g.Parameters {
			if p.MaxAge != 0 {
				fail("%s.parameters[%d]: max_age is set by the group", where, j)
			}
			claim(p.Name, fmt.Sprintf("group %q", g.Name))
		}
	}
	for i, p := range c.Parameters {
		if p.MaxAge < 0 {
			fail("parameters[%d].max_age must not be negative", i)
		}
		claim(p.Name, fmt.Sprintf("parameters[%d]", i))
	}

	oc := c.ObserverConfig()
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// ObserverConfig converts the observe section for observe.NewObserver.
func (c *Config) ObserverConfig() observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: c.Service,
		Version:     c.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			SamplePct: o.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics.Enabled,
			Exporter: o.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: o.Logging.Enabled,
			Level:   o.Logging.Level,
		},
	}
}
