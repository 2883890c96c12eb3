package config

import (
	"strings"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Usage    UsageConfig    `mapstructure:"usage"`
	Plans    PlansConfig    `mapstructure:"plans"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Environment    string `mapstructure:"environment"`
	Port           int    `mapstructure:"port"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

// Origins splits the comma separated AllowedOrigins list.
func (a AppConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(a.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig is optional; an empty Address disables the plan cache.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PlanTTL  time.Duration `mapstructure:"plan_ttl"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWKSURL   string        `mapstructure:"jwks_url"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	Timeout   time.Duration `mapstructure:"timeout"`
	JWKSTTL   time.Duration `mapstructure:"jwks_ttl"`
}

type UsageConfig struct {
	AnonDailyLimit     int           `mapstructure:"anon_daily_limit"`
	LoggedInDailyLimit int           `mapstructure:"logged_in_daily_limit"`
	WindowSeconds      int           `mapstructure:"window_seconds"`
	RetentionDays      int           `mapstructure:"retention_days"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

// Window returns the usage window length.
func (u UsageConfig) Window() time.Duration {
	return time.Duration(u.WindowSeconds) * time.Second
}

// PlansConfig carries per-plan daily limit overrides keyed by slug.
type PlansConfig struct {
	StarterDailyLimit    int `mapstructure:"starter_daily_limit"`
	IndividualDailyLimit int `mapstructure:"individual_daily_limit"`
	TeamDailyLimit       int `mapstructure:"team_daily_limit"`
	BusinessDailyLimit   int `mapstructure:"business_daily_limit"`
}

type StorageConfig struct {
	OutputDir     string        `mapstructure:"output_dir"`
	MaxFileSizeMB int           `mapstructure:"max_file_size_mb"`
	MaxFileAge    time.Duration `mapstructure:"max_file_age"`
	JanitorEvery  time.Duration `mapstructure:"janitor_interval"`
}

// MaxFileBytes is the per-file upload limit in bytes.
func (s StorageConfig) MaxFileBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1024 * 1024
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
