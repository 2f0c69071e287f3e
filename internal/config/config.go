package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	TimeZone     string `mapstructure:"timezone"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
}

// DSN builds the libpq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

type JWTConfig struct {
	AccessSecret  string        `mapstructure:"accessSecret"`
	RefreshSecret string        `mapstructure:"refreshSecret"`
	AccessTTL     time.Duration `mapstructure:"accessTTL"`
	RefreshTTL    time.Duration `mapstructure:"refreshTTL"`
	Issuer        string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
	Stdout     bool   `mapstructure:"stdout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type RetentionConfig struct {
	Days     int           `mapstructure:"days"`
	Interval time.Duration `mapstructure:"interval"` // 0 disables the worker
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Retention RetentionConfig `mapstructure:"retention"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "bus_tracker")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)

	v.SetDefault("jwt.accessTTL", 15*time.Minute)
	v.SetDefault("jwt.refreshTTL", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "bus-tracker")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "./logs/app.log")
	v.SetDefault("log.maxSizeMB", 10)
	v.SetDefault("log.maxBackups", 7)
	v.SetDefault("log.maxAgeDays", 7)
	v.SetDefault("log.stdout", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "bus_tracker:locations")

	v.SetDefault("retention.days", 90)
	v.SetDefault("retention.interval", 24*time.Hour)

	v.SetDefault("cors.allowedOrigins", []string{"*"})
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.port":            "PORT",
	"server.mode":            "GIN_MODE",
	"server.readTimeout":     "SERVER_READ_TIMEOUT",
	"server.writeTimeout":    "SERVER_WRITE_TIMEOUT",
	"server.shutdownTimeout": "SERVER_SHUTDOWN_TIMEOUT",
	"database.host":          "DB_HOST",
	"database.port":          "DB_PORT",
	"database.user":          "DB_USER",
	"database.password":      "DB_PASSWORD",
	"database.name":          "DB_NAME",
	"database.sslmode":       "DB_SSLMODE",
	"database.timezone":      "DB_TIMEZONE",
	"database.maxOpenConns":  "DB_MAX_OPEN_CONNS",
	"database.maxIdleConns":  "DB_MAX_IDLE_CONNS",
	"jwt.accessSecret":       "JWT_SECRET",
	"jwt.refreshSecret":      "JWT_REFRESH_SECRET",
	"jwt.accessTTL":          "JWT_EXPIRE",
	"jwt.refreshTTL":         "JWT_REFRESH_EXPIRE",
	"jwt.issuer":             "JWT_ISSUER",
	"log.level":              "LOG_LEVEL",
	"log.file":               "LOG_FILE",
	"log.stdout":             "LOG_STDOUT",
	"redis.enabled":          "REDIS_ENABLED",
	"redis.addr":             "REDIS_ADDR",
	"redis.password":         "REDIS_PASSWORD",
	"redis.db":               "REDIS_DB",
	"redis.channel":          "REDIS_CHANNEL",
	"retention.days":         "RETENTION_DAYS",
	"retention.interval":     "CLEANUP_INTERVAL",
	"cors.allowedOrigins":    "CORS_ALLOWED_ORIGINS",
}

// Load reads configuration from an optional .env file, an optional config.yaml
// in path, and the environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// 1) Load .env (if present)
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, relying on env vars")
	}

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWT.RefreshSecret == "" {
		return errors.New("JWT_REFRESH_SECRET is required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.Retention.Days < 1 {
		return fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", c.Retention.Days)
	}
	if c.Retention.Interval < 0 {
		return errors.New("CLEANUP_INTERVAL must not be negative")
	}
	return nil
}
