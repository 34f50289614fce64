package extension

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/xraph/patron/cache/rediscache"
	"github.com/xraph/patron/errreport"
	"github.com/xraph/patron/subscription"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Media backends.
const (
	MediaMemory   = "memory"
	MediaSupabase = "supabase"
)

// Config holds the Patron extension configuration. Standalone it is read
// from a YAML file with environment variables taking precedence. Inside a
// Forge app it is also bound from the "extensions.patron" or "patron" key.
type Config struct {
	Env string `mapstructure:"env" yaml:"env" env:"PATRON_ENV" env-default:"local"`

	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `mapstructure:"disable_routes" yaml:"disable_routes" env:"PATRON_DISABLE_ROUTES"`

	// DisableMetrics skips the Prometheus plugin and /metrics route.
	DisableMetrics bool `mapstructure:"disable_metrics" yaml:"disable_metrics" env:"PATRON_DISABLE_METRICS"`

	// DisableAudit skips the audit log plugin.
	DisableAudit bool `mapstructure:"disable_audit" yaml:"disable_audit" env:"PATRON_DISABLE_AUDIT"`

	HTTP   HTTPConfig       `mapstructure:"http" yaml:"http"`
	Store  StoreConfig      `mapstructure:"store" yaml:"store"`
	Cache  CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Media  MediaConfig      `mapstructure:"media" yaml:"media"`
	Broker BrokerConfig     `mapstructure:"broker" yaml:"broker"`
	Auth   AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Sentry errreport.Config `mapstructure:"sentry" yaml:"sentry"`
	Engine EngineConfig     `mapstructure:"engine" yaml:"engine"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Address         string        `mapstructure:"address" yaml:"address" env:"PATRON_HTTP_ADDR" env-default:":8080"`
	BasePath        string        `mapstructure:"base_path" yaml:"base_path" env-default:"/patron"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" env-default:"30s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" env-default:"15s"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver" env:"PATRON_STORE_DRIVER" env-default:"memory"`
	DSN      string `mapstructure:"dsn" yaml:"dsn" env:"PATRON_STORE_DSN"`
	Database string `mapstructure:"database" yaml:"database" env:"PATRON_STORE_DATABASE" env-default:"patron"`
}

// CacheConfig configures the entitlement cache.
type CacheConfig struct {
	Backend string            `mapstructure:"backend" yaml:"backend" env:"PATRON_CACHE_BACKEND" env-default:"memory"`
	TTL     time.Duration     `mapstructure:"ttl" yaml:"ttl" env:"PATRON_CACHE_TTL" env-default:"30s"`
	Prefix  string            `mapstructure:"prefix" yaml:"prefix" env-default:"patron:ent"`
	Redis   rediscache.Config `mapstructure:"redis" yaml:"redis"`
}

// MediaConfig configures where post media and profile images are stored.
type MediaConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" env:"PATRON_MEDIA_BACKEND" env-default:"memory"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url" env-default:"http://localhost:8080/media"`
	URL        string `mapstructure:"url" yaml:"url" env:"SUPABASE_URL"`
	ServiceKey string `mapstructure:"service_key" yaml:"service_key" env:"SUPABASE_SERVICE_KEY"`
	Bucket     string `mapstructure:"bucket" yaml:"bucket" env:"PATRON_MEDIA_BUCKET" env-default:"media"`
}

// BrokerConfig configures the RabbitMQ event publisher. An empty URL
// disables it.
type BrokerConfig struct {
	URL        string        `mapstructure:"url" yaml:"url" env:"PATRON_AMQP_URL"`
	Exchange   string        `mapstructure:"exchange" yaml:"exchange" env-default:"patron.events"`
	Retries    int           `mapstructure:"retries" yaml:"retries" env-default:"5"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" env-default:"2s"`
}

// AuthConfig configures session tokens for the realtime endpoint. An empty
// secret disables the endpoint.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret" env:"PATRON_JWT_SECRET"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer" env-default:"patron"`
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl" env-default:"24h"`
}

// EngineConfig tunes the engine.
type EngineConfig struct {
	PeriodLength   time.Duration `mapstructure:"period_length" yaml:"period_length" env-default:"720h"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" env-default:"1m"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size" yaml:"sweep_batch_size" env-default:"100"`
	PluginTimeout  time.Duration `mapstructure:"plugin_timeout" yaml:"plugin_timeout" env-default:"5s"`
}

// DefaultConfig returns a Config with the same defaults LoadConfig applies:
// in-memory store, cache and media, with no broker, Sentry or realtime auth.
func DefaultConfig() Config {
	return Config{
		Env: "local",
		HTTP: HTTPConfig{
			Address:         ":8080",
			BasePath:        "/patron",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{Driver: DriverMemory, Database: "patron"},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     30 * time.Second,
			Prefix:  rediscache.DefaultPrefix,
			Redis: rediscache.Config{
				Addr:        "localhost:6379",
				MaxRetries:  3,
				DialTimeout: 5 * time.Second,
				Timeout:     3 * time.Second,
			},
		},
		Media: MediaConfig{
			Backend: MediaMemory,
			BaseURL: "http://localhost:8080/media",
			Bucket:  "media",
		},
		Broker: BrokerConfig{Exchange: "patron.events", Retries: 5, RetryDelay: 2 * time.Second},
		Auth:   AuthConfig{Issuer: "patron", TokenTTL: 24 * time.Hour},
		Sentry: errreport.Config{TracesSampleRate: 0.2},
		Engine: EngineConfig{
			PeriodLength:   subscription.DefaultPeriod,
			SweepInterval:  time.Minute,
			SweepBatchSize: 100,
			PluginTimeout:  5 * time.Second,
		},
	}
}

// LoadConfig reads path and then the environment. An empty path reads the
// environment only.
func LoadConfig(path string) (Config, error) {
	const op = "extension.LoadConfig"

	var cfg Config
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

// Validate checks the combinations LoadConfig cannot express with tags.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverMongo:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}

	switch c.Media.Backend {
	case MediaMemory:
	case MediaSupabase:
		if c.Media.URL == "" || c.Media.ServiceKey == "" {
			errs = append(errs, errors.New("media.url and media.service_key are required for supabase"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media.backend %q", c.Media.Backend))
	}

	if c.Engine.PeriodLength <= 0 {
		errs = append(errs, errors.New("engine.period_length must be positive"))
	}

	return errors.Join(errs...)
}
