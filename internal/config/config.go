package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	gateway "storefront/kit/external_payment_gateway"
)

const EnvPrefix = "CHECKOUT"

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Recovery RecoveryConfig `mapstructure:"recovery"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	File        string `mapstructure:"file"`
	RedisURL    string `mapstructure:"redis_url"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	PostgresURL string `mapstructure:"postgres_url"`
	JournalFile string `mapstructure:"journal_file"`
	AuditFile   string `mapstructure:"audit_file"`
}

type GatewayConfig struct {
	Fake               bool                         `mapstructure:"fake"`
	FakeDelay          time.Duration                `mapstructure:"fake_delay"`
	Timeout            time.Duration                `mapstructure:"timeout"`
	RateLimit          float64                      `mapstructure:"rate_limit"`
	RateBurst          int                          `mapstructure:"rate_burst"`
	BreakerFailures    int                          `mapstructure:"breaker_failures"`
	BreakerOpenFor     time.Duration                `mapstructure:"breaker_open_for"`
	DefaultEnvironment string                       `mapstructure:"default_environment"`
	ReturnURL          string                       `mapstructure:"return_url"`
	Environments       map[string]EnvironmentConfig `mapstructure:"environments"`
}

type EnvironmentConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	ClientVersion string `mapstructure:"client_version"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

type RecoveryConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Threshold   time.Duration `mapstructure:"threshold"`
	Concurrency int           `mapstructure:"concurrency"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.file", "")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.redis_prefix", "checkout:")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("store.journal_file", "")
	v.SetDefault("store.audit_file", "")

	v.SetDefault("gateway.fake", true)
	v.SetDefault("gateway.fake_delay", 0)
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("gateway.rate_limit", 20.0)
	v.SetDefault("gateway.rate_burst", 10)
	v.SetDefault("gateway.breaker_failures", 5)
	v.SetDefault("gateway.breaker_open_for", 30*time.Second)
	v.SetDefault("gateway.default_environment", string(gateway.EnvTest))
	v.SetDefault("gateway.return_url", "http://localhost:8080/payments/return")
	for _, name := range []gateway.EnvironmentName{gateway.EnvTest, gateway.EnvProduction} {
		prefix := "gateway.environments." + string(name) + "."
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"client_id", "")
		v.SetDefault(prefix+"client_secret", "")
		v.SetDefault(prefix+"client_version", "1")
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "storefront-checkout")

	v.SetDefault("recovery.interval", time.Minute)
	v.SetDefault("recovery.threshold", 15*time.Minute)
	v.SetDefault("recovery.concurrency", 4)
}

// Load reads defaults, then the optional YAML file at path, then
// CHECKOUT_* environment variables (CHECKOUT_STORE_BACKEND and so on).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url required for redis backend"))
		}
	case BackendPostgres:
		if c.Store.PostgresURL == "" {
			errs = append(errs, errors.New("store.postgres_url required for postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q unknown", c.Store.Backend))
	}

	if c.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("gateway.timeout must be positive"))
	}
	if !gateway.EnvironmentName(c.Gateway.DefaultEnvironment).Valid() {
		errs = append(errs, fmt.Errorf("gateway.default_environment %q unknown", c.Gateway.DefaultEnvironment))
	}
	if !c.Gateway.Fake {
		envs := c.Environments()
		required := []gateway.EnvironmentName{gateway.EnvProduction}
		if def := envs.DefaultName(); def != gateway.EnvProduction {
			required = append(required, def)
		}
		for _, name := range required {
			if _, err := envs.Resolve(name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if c.Recovery.Interval < 0 || c.Recovery.Threshold <= 0 {
		errs = append(errs, errors.New("recovery.threshold must be positive and interval non-negative"))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format %q unknown", c.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
}

// Environments resolves provider credentials by name.
type Environments struct {
	def  gateway.EnvironmentName
	envs map[gateway.EnvironmentName]gateway.Environment
	fake bool
}

func (c *Config) Environments() Environments {
	out := Environments{
		def:  gateway.EnvironmentName(c.Gateway.DefaultEnvironment),
		envs: make(map[gateway.EnvironmentName]gateway.Environment, len(c.Gateway.Environments)),
		fake: c.Gateway.Fake,
	}
	for name, e := range c.Gateway.Environments {
		n := gateway.EnvironmentName(name)
		out.envs[n] = gateway.Environment{
			Name:          n,
			BaseURL:       e.BaseURL,
			ClientID:      e.ClientID,
			ClientSecret:  e.ClientSecret,
			ClientVersion: e.ClientVersion,
		}
	}
	return out
}

// Resolve returns the named environment. With the fake gateway,
// credentials are not required.
func (e Environments) Resolve(name gateway.EnvironmentName) (gateway.Environment, error) {
	if !name.Valid() {
		return gateway.Environment{}, fmt.Errorf("%w: unknown name %q", gateway.ErrEnvironment, name)
	}
	env, ok := e.envs[name]
	if !ok {
		if e.fake {
			return gateway.Environment{Name: name}, nil
		}
		return gateway.Environment{}, fmt.Errorf("%w: %s not configured", gateway.ErrEnvironment, name)
	}
	if e.fake {
		return env, nil
	}
	if err := env.Validate(); err != nil {
		return gateway.Environment{}, err
	}
	return env, nil
}

func (e Environments) DefaultName() gateway.EnvironmentName { return e.def }

func (e Environments) Names() []string {
	out := make([]string, 0, len(e.envs))
	for n := range e.envs {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}
