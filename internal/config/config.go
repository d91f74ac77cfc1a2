package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable: DOSH_PORT, DOSH_SQLITE_DB_PATH...
const EnvPrefix = "DOSH"

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Database
	SQLiteDBPath string

	// Logging
	LogLevel  string
	LogFormat string // text or json

	// Presentation
	CurrencySymbol string
	PageSize       int
	TopCategories  int
	// ListCacheTTL bounds how long account/category/group lists are cached;
	// negative disables the cache
	ListCacheTTL time.Duration

	// AMQP change events; disabled when AMQPURL is empty
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets export
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string

	// Sheet sync worker
	SyncInterval time.Duration
	SyncDebounce time.Duration

	// Import
	RulesFile string

	// file names the config file read, if any
	file    string
	fileErr error
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing order of precedence. The config file is taken
// from DOSH_CONFIG; without it ./dosh.toml is used when present.
func Load() *Config {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("sqlite_db_path", "./data/dosh.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("currency_symbol", "£")
	v.SetDefault("page_size", 25)
	v.SetDefault("top_categories", 8)
	v.SetDefault("list_cache_ttl", "30s")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "dosh")
	v.SetDefault("amqp_routing_key", "transactions")
	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_sheet_name", "Transactions")
	v.SetDefault("google_credentials_file", "")
	v.SetDefault("google_credentials_json", "")
	v.SetDefault("google_oauth_client_file", "")
	v.SetDefault("google_oauth_token_file", "token.json")
	v.SetDefault("sync_interval", "15m")
	v.SetDefault("sync_debounce", "5s")
	v.SetDefault("rules_file", "")

	v.SetConfigType("toml")
	explicit := os.Getenv(EnvPrefix + "_CONFIG")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("dosh")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		// a missing implicit file is fine, a broken or missing explicit one is not
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || explicit != "" {
			cfg.fileErr = err
		}
	} else {
		cfg.file = v.ConfigFileUsed()
	}

	cfg.Port = v.GetString("port")
	cfg.ShutdownTimeout = getDuration(v, "shutdown_timeout", 10*time.Second)
	cfg.SQLiteDBPath = v.GetString("sqlite_db_path")
	cfg.LogLevel = strings.ToLower(v.GetString("log_level"))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(v.GetString("log_format")))
	cfg.CurrencySymbol = v.GetString("currency_symbol")
	cfg.PageSize = getInt(v, "page_size", 25)
	cfg.TopCategories = getInt(v, "top_categories", 8)
	cfg.ListCacheTTL = getDuration(v, "list_cache_ttl", 30*time.Second)
	cfg.AMQPURL = v.GetString("amqp_url")
	cfg.AMQPExchange = v.GetString("amqp_exchange")
	cfg.AMQPRoutingKey = v.GetString("amqp_routing_key")
	cfg.GoogleSpreadsheetID = v.GetString("google_spreadsheet_id")
	cfg.GoogleSheetName = v.GetString("google_sheet_name")
	cfg.GoogleCredentialsFile = v.GetString("google_credentials_file")
	cfg.GoogleCredentialsJSON = v.GetString("google_credentials_json")
	cfg.GoogleOAuthClientFile = v.GetString("google_oauth_client_file")
	cfg.GoogleOAuthTokenFile = v.GetString("google_oauth_token_file")
	cfg.SyncInterval = getDuration(v, "sync_interval", 15*time.Minute)
	cfg.SyncDebounce = getDuration(v, "sync_debounce", 5*time.Second)
	cfg.RulesFile = v.GetString("rules_file")

	return cfg
}

// File returns the config file that was read, or "" when none was.
func (c *Config) File() string {
	return c.file
}

// Level maps LogLevel onto a slog level. Unknown names fall back to info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EventsEnabled reports whether change events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.fileErr != nil {
		errors = append(errors, fmt.Sprintf("cannot read config file: %v", c.fileErr))
	}

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if strings.TrimSpace(c.CurrencySymbol) == "" {
		errors = append(errors, "currency symbol cannot be empty")
	}

	if c.PageSize < 1 || c.PageSize > 500 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 500", c.PageSize))
	}
	if c.TopCategories < 1 || c.TopCategories > 50 {
		errors = append(errors, fmt.Sprintf("invalid top categories %d: must be between 1 and 50", c.TopCategories))
	}

	if c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
	}
	if c.SyncDebounce < 0 {
		errors = append(errors, fmt.Sprintf("invalid sync debounce %v: must not be negative", c.SyncDebounce))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateSheets checks the settings needed by the spreadsheet export.
func (c *Config) ValidateSheets() error {
	var errors []string

	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for export")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for export")
	}

	hasFile := c.GoogleCredentialsFile != ""
	hasJSON := c.GoogleCredentialsJSON != ""
	hasOAuth := c.GoogleOAuthClientFile != "" && c.GoogleOAuthTokenFile != ""
	if !hasFile && !hasJSON && !hasOAuth {
		errors = append(errors, "one of DOSH_GOOGLE_CREDENTIALS_FILE, DOSH_GOOGLE_CREDENTIALS_JSON or DOSH_GOOGLE_OAUTH_CLIENT_FILE must be provided for export")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}
	if !hasFile && !hasJSON && hasOAuth {
		for _, f := range []string{c.GoogleOAuthClientFile, c.GoogleOAuthTokenFile} {
			if _, err := os.Stat(f); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth file does not exist: %s (run dosh-oauth-init)", f))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("sheets configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// getInt reads an integer key, falling back to def when the value does not
// parse. viper's GetInt silently yields 0 on garbage.
func getInt(v *viper.Viper, key string, def int) int {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return i
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
