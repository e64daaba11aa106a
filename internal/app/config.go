package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Ledger drivers.
const (
	LedgerFile     = "file"
	LedgerPostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SAZON_ prefix), flags, or YAML config files.
type Config struct {
	Addr       string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Catalog    CatalogConfig
	Restaurant RestaurantConfig
	Ledger     LedgerConfig
	Generation GenerationConfig
	Session    SessionConfig
	RateLimit  RateLimitConfig
	Graceful   GracefulConfig
}

// CatalogConfig names the CSV tables of the reference catalog.
type CatalogConfig struct {
	MenuFile      string `default:"data/carta.csv" usage:"Menu of the day CSV" flag:"menu-file"`
	DistrictsFile string `default:"data/distritos.csv" usage:"Delivery districts CSV" flag:"districts-file"`
	DrinksFile    string `default:"data/Bebidas.csv" usage:"Drinks CSV, empty to disable" flag:"drinks-file"`
	DessertsFile  string `default:"data/Postres.csv" usage:"Desserts CSV, empty to disable" flag:"desserts-file"`
}

// RestaurantConfig describes the restaurant the bot takes orders for.
type RestaurantConfig struct {
	Name           string `default:"Sazón Bot" usage:"Restaurant name used in prompts"`
	PickupLocation string `default:"UPCH123" usage:"Pickup location for non-delivery orders" flag:"pickup-location"`
	TimeZone       string `default:"America/Lima" usage:"Time zone of confirmation timestamps" flag:"time-zone"`
}

// LedgerConfig selects where confirmed orders are stored.
type LedgerConfig struct {
	Driver      string `default:"file" usage:"Ledger driver: file or postgres"`
	Path        string `default:"data/orders.csv" usage:"Ledger file for the file driver"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SAZON_LEDGER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Sync        bool   `default:"true" usage:"fsync the ledger file after every append"`
}

// GenerationConfig configures the text generation service.
type GenerationConfig struct {
	Enabled          bool          `default:"false" usage:"Use the generation service for replies"`
	BaseURL          string        `default:"https://api.groq.com/openai/v1" usage:"OpenAI-compatible API base URL" flag:"generation-base-url"`
	APIKey           string        `usage:"API key (SAZON_GENERATION_API_KEY)" flag:"generation-api-key"`
	Model            string        `default:"llama3-70b-8192" usage:"Model name"`
	Temperature      float64       `default:"0.5" usage:"Reply temperature"`
	MaxTokens        int           `default:"1000" usage:"Reply token limit"`
	Timeout          time.Duration `default:"30s" usage:"Per-call timeout"`
	ExtractWithModel bool          `default:"false" usage:"Read confirmations back through the model" flag:"extract-with-model"`
}

// SessionConfig bounds in-memory sessions.
type SessionConfig struct {
	TTL           time.Duration `default:"30m" usage:"Idle time before a session is evicted"`
	MaxSessions   int           `default:"10000" usage:"Maximum live sessions"`
	SweepInterval time.Duration `default:"1m" usage:"Interval of expired session sweeps"`
}

// RateLimitConfig controls the per-client token bucket limiter.
type RateLimitConfig struct {
	RPS   float64 `default:"5" usage:"Sustained requests per second per client"`
	Burst int     `default:"20" usage:"Burst size per client"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "SAZON",
		Files:     []string{"config.yaml", "/etc/sazon/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, ac)
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Ledger.Driver {
	case LedgerFile:
		if c.Ledger.Path == "" {
			return errors.New("ledger path is required for the file driver")
		}
	case LedgerPostgres:
		if c.Ledger.DatabaseURL == "" {
			return errors.New("database URL is required: set SAZON_LEDGER_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	if c.Catalog.MenuFile == "" || c.Catalog.DistrictsFile == "" {
		return errors.New("menu and districts files are required")
	}
	if _, err := time.LoadLocation(c.Restaurant.TimeZone); err != nil {
		return errors.Wrapf(err, "time zone %q", c.Restaurant.TimeZone)
	}
	if c.Generation.Enabled && c.Generation.APIKey == "" {
		return errors.New("generation API key is required when generation is enabled")
	}
	if c.Generation.ExtractWithModel && !c.Generation.Enabled {
		return errors.New("model confirmation extraction requires generation to be enabled")
	}
	if c.RateLimit.RPS <= 0 {
		return errors.New("rate limit RPS must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SAZON_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Ledger.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Ledger.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
