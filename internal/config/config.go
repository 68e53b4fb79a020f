package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Gemini    GeminiConfig
	Session   SessionConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig supports the single, sentinel and cluster modes.
type RedisConfig struct {
	// Mode is "single", "sentinel" or "cluster". Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs lists host:port pairs. In single mode the first one is used.
	Addrs []string `mapstructure:"addrs"`

	// Addr is the single-mode address used when Addrs is empty.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName is only used in sentinel mode.
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // ms
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // ms
}

type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

func (g GeminiConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSec) * time.Second
}

// SessionConfig tunes the test session lifecycle.
type SessionConfig struct {
	DiagnosticQuestions int `mapstructure:"diagnostic_questions"`
	DefaultQuestions    int `mapstructure:"default_questions"`
	// FinalizeLockSec bounds how long a finalize lock may be held in Redis.
	FinalizeLockSec int `mapstructure:"finalize_lock_sec"`
	// StaleAfterHrs is the age after which the janitor removes abandoned sessions.
	StaleAfterHrs       int `mapstructure:"stale_after_hrs"`
	JanitorIntervalMin  int `mapstructure:"janitor_interval_min"`
	LeaderboardCacheSec int `mapstructure:"leaderboard_cache_sec"`
	LeaderboardSize     int `mapstructure:"leaderboard_size"`

	// MasteredMinQuestions is the smallest perfect topic run an adaptive start skips.
	MasteredMinQuestions int `mapstructure:"mastered_min_questions"`
}

type RateLimitConfig struct {
	AuthLimit     int `mapstructure:"auth_limit"`
	AuthIPLimit   int `mapstructure:"auth_ip_limit"`
	LoginLimit    int `mapstructure:"login_limit"`
	WindowSec     int `mapstructure:"window_sec"`
	FinalizeLimit int `mapstructure:"finalize_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 60)
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")

	vip.SetDefault("jwt.expirationHrs", 24*30)

	vip.SetDefault("gemini.model", "gemini-1.5-flash")
	vip.SetDefault("gemini.timeout_sec", 45)

	vip.SetDefault("session.diagnostic_questions", 25)
	vip.SetDefault("session.default_questions", 10)
	vip.SetDefault("session.finalize_lock_sec", 120)
	vip.SetDefault("session.stale_after_hrs", 24)
	vip.SetDefault("session.janitor_interval_min", 60)
	vip.SetDefault("session.leaderboard_cache_sec", 60)
	vip.SetDefault("session.leaderboard_size", 50)
	vip.SetDefault("session.mastered_min_questions", 2)

	vip.SetDefault("rate_limit.auth_limit", 20)
	vip.SetDefault("rate_limit.auth_ip_limit", 60)
	vip.SetDefault("rate_limit.login_limit", 10)
	vip.SetDefault("rate_limit.window_sec", 60)
	vip.SetDefault("rate_limit.finalize_limit", 30)

	vip.SetDefault("log.level", "info")
}

// Load reads configuration from an optional file, the process environment and a local
// .env file. Explicit environment variables win over .env values.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("[Config] failed to read .env file")
	}

	vip := viper.New()
	setDefaults(vip)

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	vip.BindEnv("gemini.api_key", "GEMINI_API_KEY", "API_KEY")
	vip.BindEnv("gemini.model", "GEMINI_MODEL")
	vip.BindEnv("gemini.timeout_sec", "GEMINI_TIMEOUT_SEC")

	vip.BindEnv("session.stale_after_hrs", "SESSION_STALE_AFTER_HRS")
	vip.BindEnv("session.finalize_lock_sec", "SESSION_FINALIZE_LOCK_SEC")

	vip.BindEnv("server.port", "SERVER_PORT", "PORT")
	vip.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	vip.BindEnv("log.level", "LOG_LEVEL")
	vip.BindEnv("log.pretty", "LOG_PRETTY")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				log.Info().Msgf("[Config] config file '%s' not found, using environment and defaults", configPath)
			} else {
				log.Warn().Err(err).Msgf("[Config] failed to read config file '%s'", configPath)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Debug().
			Str("db_host", cfg.Database.Host).
			Str("db_name", cfg.Database.DBName).
			Str("redis_mode", cfg.Redis.Mode).
			Str("redis_addr", cfg.Redis.Addr).
			Bool("gemini_key_set", cfg.Gemini.APIKey != "").
			Str("server_port", cfg.Server.Port).
			Msg("[Config] loaded configuration")
	}

	if err := cfg.Validate(os.Getenv("GIN_MODE")); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings. In release mode a database password is required.
func (c *Config) Validate(ginMode string) error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if ginMode == "release" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}
	if c.Session.DiagnosticQuestions <= 0 || c.Session.DefaultQuestions <= 0 {
		return fmt.Errorf("session question counts must be positive")
	}
	if c.Gemini.APIKey == "" {
		log.Warn().Msg("[Config] GEMINI_API_KEY is not set, AI grading and generation are disabled")
	}
	return nil
}
