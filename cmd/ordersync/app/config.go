package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/agentstation/ordersync/internal/config"
	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
)

// Store backends.
const (
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
)

// Payload cache backends.
const (
	PayloadCacheStore  = "store"
	PayloadCachePebble = "pebble"
	PayloadCacheNone   = "none"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Carrier endpoint
	CarrierURL         string
	CarrierPath        string
	CarrierStatusParam string
	CarrierStatusValue string
	CarrierAPIKey      string
	CarrierAuthHeader  string
	CarrierAuthScheme  string
	CarrierAuthQuery   string
	CarrierTimeout     time.Duration

	// Record store
	StoreBackend string
	StorePath    string

	// Raw payload cache
	PayloadCache string
	PebbleDir    string

	// Enhancement
	ProductCatalog    string
	CustomerTitleCase bool

	// Financials
	CollectTag         string
	AdvancePercent     decimal.Decimal
	RemainderToLargest bool

	// Cycles
	SyncInterval time.Duration
	CycleTimeout time.Duration

	// Ops server
	ServerAddr   string
	ServerAPIKey string

	// Change events
	KafkaBrokers string
	KafkaTopic   string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (handled by cobra)
//  2. Environment variables (ORDERSYNC_*)
//  3. .env files
//  4. Config file (configFile, or .ordersync.yaml in $HOME or the working directory)
//  5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	config.Setup(viper.GetViper())

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ordersync")
		// A missing config file is fine
		_ = viper.ReadInConfig()
	}

	cfg := &Config{
		Format:     config.GetString("output"),
		ConfigFile: viper.ConfigFileUsed(),

		CarrierURL:         config.GetString("carrier.url"),
		CarrierPath:        config.GetString("carrier.path"),
		CarrierStatusParam: config.GetStringDefault("carrier.status_param", constants.DefaultStatusParam),
		CarrierStatusValue: config.GetStringDefault("carrier.status_value", constants.DefaultStatusValue),
		CarrierAPIKey:      config.GetString("carrier.api_key"),
		CarrierAuthHeader:  config.GetStringDefault("carrier.auth_header", "Authorization"),
		CarrierAuthScheme:  config.GetStringDefault("carrier.auth_scheme", "bearer"),
		CarrierAuthQuery:   config.GetString("carrier.auth_query"),

		StoreBackend: strings.ToLower(config.GetStringDefault("store.backend", BackendFiles)),
		StorePath:    config.GetString("store.path"),

		PayloadCache: strings.ToLower(config.GetStringDefault("payload.cache", PayloadCacheStore)),
		PebbleDir:    config.GetString("payload.dir"),

		ProductCatalog:    config.GetString("products.catalog"),
		CustomerTitleCase: config.GetBool("enhance.title_case"),

		CollectTag:         config.GetStringDefault("payment.collect_tag", constants.DefaultCollectTag),
		RemainderToLargest: strings.EqualFold(config.GetString("allocation.remainder"), "largest"),

		ServerAddr:   config.GetStringDefault("server.addr", "localhost:9090"),
		ServerAPIKey: config.GetString("server.api_key"),

		KafkaBrokers: config.GetString("kafka.brokers"),
		KafkaTopic:   config.GetString("kafka.topic"),

		LogLevel:  config.GetStringDefault("log.level", getEnvOrDefault("LOG_LEVEL", "")),
		LogFormat: config.GetStringDefault("log.format", getEnvOrDefault("LOG_FORMAT", "auto")),
		LogOutput: config.GetStringDefault("log.output", getEnvOrDefault("LOG_OUTPUT", "stderr")),
	}

	var err error
	if cfg.CarrierTimeout, err = config.GetDuration("carrier.timeout", constants.DefaultFetchTimeout); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = config.GetDuration("sync.interval", constants.DefaultUpdateInterval); err != nil {
		return nil, err
	}
	if cfg.CycleTimeout, err = config.GetDuration("sync.timeout", constants.DefaultSyncTimeout); err != nil {
		return nil, err
	}

	cfg.AdvancePercent = decimal.NewFromInt(constants.DefaultAdvancePercent)
	if raw := config.GetString("payment.advance_percent"); raw != "" {
		if cfg.AdvancePercent, err = decimal.NewFromString(strings.TrimSpace(raw)); err != nil {
			return nil, errors.NewConfigError("payment.advance_percent", "invalid decimal "+raw, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills paths that depend on the chosen backend.
func (c *Config) applyDefaults() {
	base := ".ordersync"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".ordersync")
	}
	if c.StorePath == "" {
		switch c.StoreBackend {
		case BackendSQLite:
			c.StorePath = filepath.Join(base, "ordersync.db")
		default:
			c.StorePath = filepath.Join(base, "records")
		}
	}
	if c.PebbleDir == "" {
		c.PebbleDir = filepath.Join(base, "payloads")
	}
}

// Validate checks the enumerated settings. Carrier settings are checked
// when the client is built so commands that never fetch can run without
// them.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFiles, BackendSQLite:
	default:
		return errors.NewConfigError("store.backend", "must be files or sqlite, got "+c.StoreBackend, nil)
	}
	switch c.PayloadCache {
	case PayloadCacheStore, PayloadCachePebble, PayloadCacheNone:
	default:
		return errors.NewConfigError("payload.cache", "must be store, pebble or none, got "+c.PayloadCache, nil)
	}
	if c.SyncInterval <= 0 {
		return errors.NewConfigError("sync.interval", "must be positive", nil)
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags so flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files. .env.local
// does not override values already set by .env or the shell.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
