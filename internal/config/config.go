package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PROFITSHARE"

type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Provider ProviderConfig `mapstructure:"provider"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
	AuthPerMinute int           `mapstructure:"auth_rate_per_minute"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

// RedisConfig backs the optional per-order lock used by batch jobs.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type JobsConfig struct {
	DryRun               bool   `mapstructure:"dry_run"`
	MaxRetry             int    `mapstructure:"max_retry"`
	RetryIntervalMinutes int    `mapstructure:"retry_interval_minutes"`
	MerchantFilter       string `mapstructure:"merchant_filter"`
	LookbackDays         int    `mapstructure:"lookback_days"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Operator struct {
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Operators []Operator    `mapstructure:"operators"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_per_minute", 100)
	v.SetDefault("server.auth_rate_per_minute", 10)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "profitshare.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_sql", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "profitshare:lock:")
	v.SetDefault("redis.lock_ttl", 2*time.Minute)

	v.SetDefault("provider.base_url", "https://api.mch.weixin.qq.com")
	v.SetDefault("provider.timeout", 10*time.Second)

	v.SetDefault("jobs.dry_run", false)
	v.SetDefault("jobs.max_retry", 3)
	v.SetDefault("jobs.retry_interval_minutes", 30)
	v.SetDefault("jobs.merchant_filter", "")
	v.SetDefault("jobs.lookback_days", 7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
}

// Load reads the YAML file at path (or ./config.yaml when path is empty), then
// applies PROFITSHARE_* environment overrides. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config failed: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base_url is required")
	}
	if c.Jobs.MaxRetry < 0 || c.Jobs.RetryIntervalMinutes < 0 || c.Jobs.LookbackDays < 0 {
		return fmt.Errorf("job parameters must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
