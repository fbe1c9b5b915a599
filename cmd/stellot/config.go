package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stanbar/stellot-sub000/config"
	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/log"
)

const (
	defaultLedgerURL = "http://127.0.0.1:9090"
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 9090
	defaultDBType    = db.TypePebble
	defaultLogLevel  = log.LogLevelInfo
	defaultLogOutput = "stderr"
	defaultDatadir   = ".stellot" // Will be prefixed with user's home directory
)

// Config holds the application configuration
type Config struct {
	Ledger  LedgerConfig
	API     APIConfig
	DB      DBConfig
	Log     LogConfig
	Datadir string
}

// LedgerConfig holds the remote ledger configuration
type LedgerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   time.Duration `mapstructure:"retry"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DBConfig holds the local ledger database configuration
type DBConfig struct {
	Type string `mapstructure:"type"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

func defaultDatadirPath() string {
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	return filepath.Join(userHomeDir, defaultDatadir)
}

// addGlobalFlags registers the flags shared by every command.
func addGlobalFlags(flags *pflag.FlagSet) {
	flags.StringP("ledger.url", "u", defaultLedgerURL, "ledger API endpoint")
	flags.Duration("ledger.timeout", config.DefaultLedgerTimeout, "timeout of a single ledger request")
	flags.Duration("ledger.retry", config.DefaultLedgerRetryBudget, "total time spent retrying a failed ledger request")
	flags.StringP("api.host", "a", defaultAPIHost, "API host (serve)")
	flags.IntP("api.port", "p", defaultAPIPort, "API port (serve)")
	flags.String("db.type", defaultDBType, fmt.Sprintf("ledger database type (%s, %s, %s)", db.TypePebble, db.TypeLevelDB, db.TypeInMem))
	flags.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flags.StringP("datadir", "d", defaultDatadirPath(), "data directory for database files")
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	v.SetDefault("ledger.url", defaultLedgerURL)
	v.SetDefault("ledger.timeout", config.DefaultLedgerTimeout)
	v.SetDefault("ledger.retry", config.DefaultLedgerRetryBudget)
	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("db.type", defaultDBType)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath())

	// Configure Viper to use environment variables
	v.SetEnvPrefix("STELLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	switch cfg.DB.Type {
	case db.TypePebble, db.TypeLevelDB, db.TypeInMem:
	default:
		return fmt.Errorf("invalid database type %q", cfg.DB.Type)
	}
	switch cfg.Log.Level {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	if cfg.Ledger.URL == "" {
		return fmt.Errorf("ledger URL is required (use --ledger.url flag or STELLOT_LEDGER_URL environment variable)")
	}
	return nil
}
