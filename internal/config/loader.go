package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variable names the
// deployment already uses.
var envBindings = map[string]string{
	"app.environment":              "APP_ENV",
	"app.port":                     "PORT",
	"app.allowed_origins":          "ALLOWED_ORIGINS",
	"database.driver":              "DB_DRIVER",
	"database.dsn":                 "DB_DSN",
	"redis.address":                "REDIS_ADDR",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"redis.plan_ttl":               "REDIS_PLAN_TTL",
	"auth.jwt_secret":              "AUTH_JWT_SECRET",
	"auth.jwks_url":                "AUTH_JWKS_URL",
	"auth.issuer":                  "AUTH_ISSUER",
	"auth.audience":                "AUTH_AUDIENCE",
	"auth.timeout":                 "AUTH_TIMEOUT",
	"auth.jwks_ttl":                "AUTH_JWKS_TTL",
	"usage.anon_daily_limit":       "ANON_DAILY_LIMIT",
	"usage.logged_in_daily_limit":  "LOGGED_IN_DAILY_LIMIT",
	"usage.window_seconds":         "USAGE_WINDOW_SECONDS",
	"usage.retention_days":         "USAGE_RETENTION_DAYS",
	"usage.sweep_interval":         "SWEEP_INTERVAL",
	"plans.starter_daily_limit":    "PLAN_STARTER_DAILY_LIMIT",
	"plans.individual_daily_limit": "PLAN_INDIVIDUAL_DAILY_LIMIT",
	"plans.team_daily_limit":       "PLAN_TEAM_DAILY_LIMIT",
	"plans.business_daily_limit":   "PLAN_BUSINESS_DAILY_LIMIT",
	"storage.output_dir":           "OUTPUT_DIR",
	"storage.max_file_size_mb":     "MAX_FILE_SIZE_MB",
	"storage.max_file_age":         "MAX_FILE_AGE",
	"storage.janitor_interval":     "JANITOR_INTERVAL",
	"logging.level":                "LOG_LEVEL",
	"logging.format":               "LOG_FORMAT",
}

// Load reads .env, an optional config.yaml and the environment, in that
// order of increasing precedence.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Normalize()
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "local")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", "https://caniedit.in,https://api.caniedit.in,https://www.caniedit.in")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "root:root@tcp(127.0.0.1:3306)/caniedit?parseTime=true&loc=UTC")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.plan_ttl", time.Minute)

	v.SetDefault("auth.timeout", 5*time.Second)
	v.SetDefault("auth.jwks_ttl", time.Hour)
	v.SetDefault("auth.audience", "authenticated")

	v.SetDefault("usage.anon_daily_limit", 10)
	v.SetDefault("usage.logged_in_daily_limit", 20)
	v.SetDefault("usage.window_seconds", 60*60*24)
	v.SetDefault("usage.retention_days", 30)
	v.SetDefault("usage.sweep_interval", 6*time.Hour)

	v.SetDefault("plans.individual_daily_limit", 100)
	v.SetDefault("plans.team_daily_limit", 200)
	v.SetDefault("plans.business_daily_limit", 9999)

	v.SetDefault("storage.output_dir", "temp_outputs")
	v.SetDefault("storage.max_file_size_mb", 10)
	v.SetDefault("storage.max_file_age", 10*time.Minute)
	v.SetDefault("storage.janitor_interval", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func applyDefaults(cfg *Config) {
	// The starter plan inherits the signed-in limit unless set explicitly.
	if cfg.Plans.StarterDailyLimit <= 0 {
		cfg.Plans.StarterDailyLimit = cfg.Usage.LoggedInDailyLimit
	}
	// Keys are fetched at most once a minute.
	if cfg.Auth.JWKSTTL < time.Minute {
		cfg.Auth.JWKSTTL = time.Minute
	}
	if cfg.App.Environment != "local" && cfg.Logging.Format == "console" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver must be mysql or postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if cfg.Usage.WindowSeconds <= 0 {
		return errors.New("usage.window_seconds must be positive")
	}
	if cfg.Usage.RetentionDays <= 0 {
		return errors.New("usage.retention_days must be positive")
	}
	if cfg.Usage.AnonDailyLimit < 0 {
		return errors.New("usage.anon_daily_limit must not be negative")
	}
	if cfg.Usage.SweepInterval <= 0 {
		return errors.New("usage.sweep_interval must be positive")
	}
	if cfg.Storage.MaxFileSizeMB <= 0 {
		return errors.New("storage.max_file_size_mb must be positive")
	}
	return nil
}

// loadEnvFile loads the first .env found walking up to the module root.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Normalize trims whitespace around string settings sourced from env files.
func (c *Config) Normalize() {
	c.Auth.JWKSURL = strings.TrimSpace(c.Auth.JWKSURL)
	c.Auth.Issuer = strings.TrimSpace(c.Auth.Issuer)
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
}
