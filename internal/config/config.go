package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Jellyfin JellyfinConfig `mapstructure:"jellyfin"`
	Suggest  SuggestConfig  `mapstructure:"suggest"`
	Apply    ApplyConfig    `mapstructure:"apply"`
	Scan     ScanConfig     `mapstructure:"scan"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// JellyfinConfig holds the media server connection settings.
type JellyfinConfig struct {
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	UserID  string `mapstructure:"user_id"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// SuggestConfig holds the suggestion engine knobs.
type SuggestConfig struct {
	MinGroupSize        int    `mapstructure:"min_group_size"`
	EnableFranchise     bool   `mapstructure:"enable_franchise"`
	EnableStudio        bool   `mapstructure:"enable_studio"`
	EnableFormat        bool   `mapstructure:"enable_format"`
	EnableLength        bool   `mapstructure:"enable_length"`
	EnableAudience      bool   `mapstructure:"enable_audience"`
	EnableMood          bool   `mapstructure:"enable_mood"`
	FranchiseRulesJSON  string `mapstructure:"franchise_rules_json"`
	FranchiseRulesFile  string `mapstructure:"franchise_rules_file"`
	StudioAllowlistJSON string `mapstructure:"studio_allowlist_json"`
	TopStudios          int    `mapstructure:"top_studios"`
}

// ApplyConfig controls whether accepted suggestions touch the media server.
type ApplyConfig struct {
	DryRun               bool `mapstructure:"dry_run"`
	HistoryRetentionDays int  `mapstructure:"history_retention_days"` // 0 keeps the ledger forever
}

// ScanConfig controls scheduled library scans.
type ScanConfig struct {
	Schedule   string `mapstructure:"schedule"` // cron expression, empty disables
	RunOnStart bool   `mapstructure:"run_on_start"`
}

var ErrJellyfinURLMissing = errors.New("jellyfin url is not configured")

// legacyEnv maps config keys to the flat environment names older
// deployments of the sidecar used.
var legacyEnv = map[string]string{
	"jellyfin.url":                  "JELLYFIN_URL",
	"jellyfin.api_key":              "JELLYFIN_API_KEY",
	"jellyfin.user_id":              "JELLYFIN_USER_ID",
	"apply.dry_run":                 "DRY_RUN",
	"server.host":                   "HOST",
	"server.port":                   "PORT",
	"logging.level":                 "LOG_LEVEL",
	"data_dir":                      "DATA_DIR",
	"suggest.min_group_size":        "MIN_GROUP_SIZE",
	"suggest.enable_franchise":      "ENABLE_FRANCHISE",
	"suggest.enable_studio":         "ENABLE_STUDIO",
	"suggest.enable_format":         "ENABLE_FORMAT",
	"suggest.enable_length":         "ENABLE_LENGTH",
	"suggest.enable_audience":       "ENABLE_AUDIENCE",
	"suggest.enable_mood":           "ENABLE_MOOD",
	"suggest.franchise_rules_json":  "FRANCHISE_RULES_JSON",
	"suggest.studio_allowlist_json": "STUDIO_ALLOWLIST_JSON",
	"suggest.top_studios":           "TOP_STUDIOS",
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8088,
		},
		Database: DatabaseConfig{
			Path: "./data/organizer.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Jellyfin: JellyfinConfig{
			Timeout: 60,
		},
		Suggest: SuggestConfig{
			MinGroupSize:        2,
			EnableFranchise:     true,
			EnableStudio:        true,
			EnableFormat:        true,
			EnableLength:        true,
			EnableAudience:      true,
			EnableMood:          true,
			FranchiseRulesJSON:  "{}",
			StudioAllowlistJSON: "[]",
			TopStudios:          20,
		},
		Apply: ApplyConfig{
			DryRun:               true,
			HistoryRetentionDays: 365,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A .env next to the binary is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.organizer")
	}

	v.SetEnvPrefix("ORGANIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "ORGANIZER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The database follows data_dir unless it was set explicitly
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "organizer.db")
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("data_dir", d.DataDir)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", "")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("jellyfin.url", "")
	v.SetDefault("jellyfin.api_key", "")
	v.SetDefault("jellyfin.user_id", "")
	v.SetDefault("jellyfin.timeout", d.Jellyfin.Timeout)

	v.SetDefault("suggest.min_group_size", d.Suggest.MinGroupSize)
	v.SetDefault("suggest.enable_franchise", true)
	v.SetDefault("suggest.enable_studio", true)
	v.SetDefault("suggest.enable_format", true)
	v.SetDefault("suggest.enable_length", true)
	v.SetDefault("suggest.enable_audience", true)
	v.SetDefault("suggest.enable_mood", true)
	v.SetDefault("suggest.franchise_rules_json", d.Suggest.FranchiseRulesJSON)
	v.SetDefault("suggest.franchise_rules_file", "")
	v.SetDefault("suggest.studio_allowlist_json", d.Suggest.StudioAllowlistJSON)
	v.SetDefault("suggest.top_studios", d.Suggest.TopStudios)

	v.SetDefault("apply.dry_run", true)
	v.SetDefault("apply.history_retention_days", d.Apply.HistoryRetentionDays)

	v.SetDefault("scan.schedule", "")
	v.SetDefault("scan.run_on_start", false)
}

// normalize clamps values that have a hard lower bound.
func (c *Config) normalize() {
	if c.Suggest.MinGroupSize < 1 {
		c.Suggest.MinGroupSize = 1
	}
	if c.Suggest.TopStudios < 0 {
		c.Suggest.TopStudios = 0
	}
	if c.Apply.HistoryRetentionDays < 0 {
		c.Apply.HistoryRetentionDays = 0
	}
	if c.Jellyfin.Timeout <= 0 {
		c.Jellyfin.Timeout = 60
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Jellyfin.URL = strings.TrimRight(strings.TrimSpace(c.Jellyfin.URL), "/")
}

// Validate checks values that would prevent the server from starting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// RequireJellyfin reports whether the media server connection is usable.
func (c *Config) RequireJellyfin() error {
	if c.Jellyfin.URL == "" {
		return ErrJellyfinURLMissing
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
