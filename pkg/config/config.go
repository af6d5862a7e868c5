package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Replica     DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Consistency ConsistencyConfig
	Search      SearchConfig
	Directory   DirectoryConfig
	Export      ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	// ConnectTimeout bounds the startup ping.
	ConnectTimeout  time.Duration
	ApplicationName string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// Addrs overrides Host/Port; more than one address selects cluster mode.
	Addrs []string
	// MasterName selects sentinel failover; Addrs then lists the sentinels.
	MasterName string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ConsistencyConfig bounds how long writes wait to become visible on the read side.
type ConsistencyConfig struct {
	MaxWait      time.Duration
	PollInterval time.Duration
}

// SearchConfig configures the comment search index and its indexing workers.
type SearchConfig struct {
	IndexName  string
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// DirectoryConfig tunes caching of course, instructor and student lookups.
type DirectoryConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportConfig limits comment exports.
type ExportConfig struct {
	MaxRows int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		ConnectTimeout:  v.GetDuration("DB_CONNECT_TIMEOUT"),
		ApplicationName: v.GetString("DB_APPLICATION_NAME"),
	}

	// Without a dedicated replica every read goes to the primary.
	cfg.Replica = cfg.Database
	if host := v.GetString("DB_REPLICA_HOST"); host != "" {
		cfg.Replica.Host = host
		if port := v.GetInt("DB_REPLICA_PORT"); port > 0 {
			cfg.Replica.Port = port
		}
		if user := v.GetString("DB_REPLICA_USER"); user != "" {
			cfg.Replica.User = user
			cfg.Replica.Password = v.GetString("DB_REPLICA_PASSWORD")
		}
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),

		Addrs:      splitAndTrim(v.GetString("REDIS_ADDRS")),
		MasterName: v.GetString("REDIS_MASTER_NAME"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Consistency = ConsistencyConfig{
		MaxWait:      parseDuration(v.GetString("CONSISTENCY_MAX_WAIT"), 5*time.Second),
		PollInterval: parseDuration(v.GetString("CONSISTENCY_POLL_INTERVAL"), 100*time.Millisecond),
	}
	if cfg.Consistency.PollInterval > cfg.Consistency.MaxWait {
		cfg.Consistency.PollInterval = cfg.Consistency.MaxWait
	}

	workers := v.GetInt("SEARCH_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.Search = SearchConfig{
		IndexName:  v.GetString("SEARCH_INDEX_NAME"),
		Workers:    workers,
		Retries:    v.GetInt("SEARCH_RETRIES"),
		RetryDelay: parseDuration(v.GetString("SEARCH_RETRY_DELAY"), time.Second),
	}

	cfg.Directory = DirectoryConfig{
		CacheEnabled: v.GetBool("ENABLE_DIRECTORY_CACHE"),
		CacheTTL:     parseDuration(v.GetString("DIRECTORY_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Export = ExportConfig{MaxRows: v.GetInt("EXPORT_MAX_ROWS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_comments")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")
	v.SetDefault("DB_APPLICATION_NAME", "comment-api")
	v.SetDefault("DB_REPLICA_HOST", "")
	v.SetDefault("DB_REPLICA_PORT", 0)
	v.SetDefault("DB_REPLICA_USER", "")
	v.SetDefault("DB_REPLICA_PASSWORD", "")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ADDRS", "")
	v.SetDefault("REDIS_MASTER_NAME", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CONSISTENCY_MAX_WAIT", "5s")
	v.SetDefault("CONSISTENCY_POLL_INTERVAL", "100ms")

	v.SetDefault("SEARCH_INDEX_NAME", "comment")
	v.SetDefault("SEARCH_WORKERS", 1)
	v.SetDefault("SEARCH_RETRIES", 3)
	v.SetDefault("SEARCH_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_DIRECTORY_CACHE", true)
	v.SetDefault("DIRECTORY_CACHE_TTL", "10m")

	v.SetDefault("EXPORT_MAX_ROWS", 5000)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
