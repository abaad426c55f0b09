package config

import (
	"errors"
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

	Upstream  UpstreamConfig
	Cache     CacheConfig
	ReadState ReadStateConfig
	Preload   PreloadConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Export    ExportConfig
}

// UpstreamConfig points at the legacy school server's notification endpoints.
type UpstreamConfig struct {
	BaseURL         string
	ListPath        string
	DetailPath      string
	Timeout         time.Duration
	DefaultPageSize int
}

// CacheConfig tunes the in-memory notification cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
}

// ReadStateConfig tunes per-user read-state persistence.
type ReadStateConfig struct {
	// KeyPrefix namespaces every persisted key, mirroring the web client's
	// campus_portal_* localStorage keys.
	KeyPrefix        string
	DebounceInterval time.Duration
	Backend          string // "redis", "postgres" or "memory"
}

// PreloadConfig governs background pre-warming of notification details.
type PreloadConfig struct {
	Enabled  bool
	MaxItems int
	MaxLevel int
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExportConfig tunes archive export endpoints.
type ExportConfig struct {
	Enabled    bool
	Dir        string
	SignSecret string
	ResultTTL  time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Upstream = UpstreamConfig{
		BaseURL:         strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
		ListPath:        v.GetString("UPSTREAM_LIST_PATH"),
		DetailPath:      v.GetString("UPSTREAM_DETAIL_PATH"),
		Timeout:         parseDuration(v.GetString("UPSTREAM_TIMEOUT"), 10*time.Second),
		DefaultPageSize: v.GetInt("UPSTREAM_DEFAULT_PAGE_SIZE"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
		MaxSize: v.GetInt("CACHE_MAX_SIZE"),
	}

	cfg.ReadState = ReadStateConfig{
		KeyPrefix:        v.GetString("READ_STATE_KEY_PREFIX"),
		DebounceInterval: parseDuration(v.GetString("READ_STATE_DEBOUNCE"), 300*time.Millisecond),
		Backend:          v.GetString("READ_STATE_BACKEND"),
	}

	cfg.Preload = PreloadConfig{
		Enabled:  v.GetBool("PRELOAD_ENABLED"),
		MaxItems: v.GetInt("PRELOAD_MAX_ITEMS"),
		MaxLevel: v.GetInt("PRELOAD_MAX_LEVEL"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Export = ExportConfig{
		Enabled:    v.GetBool("EXPORT_ENABLED"),
		Dir:        v.GetString("EXPORT_DIR"),
		SignSecret: v.GetString("EXPORT_SIGN_SECRET"),
		ResultTTL:  parseDuration(v.GetString("EXPORT_RESULT_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:48081")
	v.SetDefault("UPSTREAM_LIST_PATH", "/admin-api/test/notification/api/list")
	v.SetDefault("UPSTREAM_DETAIL_PATH", "/admin-api/test/notification/api/detail")
	v.SetDefault("UPSTREAM_TIMEOUT", "10s")
	v.SetDefault("UPSTREAM_DEFAULT_PAGE_SIZE", 100)

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("CACHE_MAX_SIZE", 200)

	v.SetDefault("READ_STATE_KEY_PREFIX", "campus_portal")
	v.SetDefault("READ_STATE_DEBOUNCE", "300ms")
	v.SetDefault("READ_STATE_BACKEND", "redis")

	v.SetDefault("PRELOAD_ENABLED", true)
	v.SetDefault("PRELOAD_MAX_ITEMS", 3)
	v.SetDefault("PRELOAD_MAX_LEVEL", 2)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXPORT_ENABLED", true)
	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_RESULT_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
