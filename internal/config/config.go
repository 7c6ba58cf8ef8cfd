// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every variable, e.g. SPLITLEDGER_PORT. Tags carry the
// full variable name so nested sections resolve without a section prefix.
const EnvPrefix = "SPLITLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	JWT     JWTConfig
	Ledger  LedgerConfig
	Metrics MetricsConfig
}

type AppConfig struct {
	Env        string `envconfig:"SPLITLEDGER_APP_ENV" default:"dev"`
	Port       int    `envconfig:"SPLITLEDGER_PORT" default:"8080"`
	LogLevel   string `envconfig:"SPLITLEDGER_LOG_LEVEL" default:"info"`
	CORSOrigin string `envconfig:"SPLITLEDGER_CORS_ORIGIN" default:"*"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	Driver          string        `envconfig:"SPLITLEDGER_DB_DRIVER" default:"sqlite"`
	DSN             string        `envconfig:"SPLITLEDGER_DB_DSN" default:"./data/ledger.db"`
	AutoMigrate     bool          `envconfig:"SPLITLEDGER_DB_AUTO_MIGRATE" default:"true"`
	MaxOpenConns    int           `envconfig:"SPLITLEDGER_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"SPLITLEDGER_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"SPLITLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
}

type JWTConfig struct {
	Secret        string        `envconfig:"SPLITLEDGER_JWT_SECRET" required:"true"`
	Issuer        string        `envconfig:"SPLITLEDGER_JWT_ISSUER" default:"splitledger"`
	TokenDuration time.Duration `envconfig:"SPLITLEDGER_JWT_TOKEN_DURATION" default:"24h"`
}

type LedgerConfig struct {
	RoundingMode          string `envconfig:"SPLITLEDGER_ROUNDING_MODE" default:"HALF_UP"`
	DefaultCurrency       string `envconfig:"SPLITLEDGER_DEFAULT_CURRENCY" default:"USD"`
	DefaultSettlementMode string `envconfig:"SPLITLEDGER_DEFAULT_SETTLEMENT_MODE" default:"SIMPLIFIED"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"SPLITLEDGER_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"SPLITLEDGER_METRICS_PATH" default:"/metrics"`
}

// Load reads the configuration from SPLITLEDGER_* variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDB reads only the database section. It is used by tools that never
// serve requests and so have no JWT secret.
func LoadDB() (*DBConfig, error) {
	var cfg DBConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c DBConfig) validate() error {
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported db driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("db dsn is required")
	}
	return nil
}

func (c *Config) validate() error {
	if err := c.DB.validate(); err != nil {
		return err
	}
	if len(c.JWT.Secret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 characters")
	}
	switch strings.ToUpper(c.Ledger.DefaultSettlementMode) {
	case "SIMPLIFIED", "DETAILED":
	default:
		return fmt.Errorf("unsupported default settlement mode %q", c.Ledger.DefaultSettlementMode)
	}
	return nil
}
