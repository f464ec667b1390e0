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
	Timezone  string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Storage  StorageConfig
	Mileage  MileageConfig
	Summary  SummaryConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled      bool
	URL          string
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// StorageConfig controls where uploaded photos live and how download links are signed.
type StorageConfig struct {
	Dir             string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	OrphanTTL       time.Duration
}

// MileageConfig tunes the submission workflow.
type MileageConfig struct {
	MaxImageBytes int64
	MaxEdits      int
	WarningKM     int
	AlertKM       int
}

// SummaryConfig governs caching of the status summary.
type SummaryConfig struct {
	CacheTTL time.Duration
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("APP_TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		URL:      v.GetString("REDIS_URL"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),

		DialTimeout:  parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
		ReadTimeout:  parseDuration(v.GetString("REDIS_READ_TIMEOUT"), time.Second),
		WriteTimeout: parseDuration(v.GetString("REDIS_WRITE_TIMEOUT"), time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.Storage = StorageConfig{
		Dir:             v.GetString("STORAGE_DIR"),
		SignedURLSecret: v.GetString("SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("SIGNED_URL_TTL"), 15*time.Minute),
		OrphanTTL:       parseDuration(v.GetString("STORAGE_ORPHAN_TTL"), 0),
	}

	maxImage := v.GetInt64("MILEAGE_MAX_IMAGE_BYTES")
	if maxImage <= 0 {
		maxImage = 5 * 1024 * 1024
	}
	cfg.Mileage = MileageConfig{
		MaxImageBytes: maxImage,
		MaxEdits:      v.GetInt("MILEAGE_MAX_EDITS"),
		WarningKM:     v.GetInt("MILEAGE_WARNING_KM"),
		AlertKM:       v.GetInt("MILEAGE_ALERT_KM"),
	}

	cfg.Summary = SummaryConfig{
		CacheTTL: parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_TIMEZONE", "UTC")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mileage")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "mileage-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("STORAGE_DIR", "./storage/mileage")
	v.SetDefault("SIGNED_URL_SECRET", "dev_signed_url_secret")
	v.SetDefault("SIGNED_URL_TTL", "15m")
	v.SetDefault("STORAGE_ORPHAN_TTL", "")

	v.SetDefault("MILEAGE_MAX_IMAGE_BYTES", 5*1024*1024)
	v.SetDefault("MILEAGE_MAX_EDITS", 2)
	v.SetDefault("MILEAGE_WARNING_KM", 120)
	v.SetDefault("MILEAGE_ALERT_KM", 125)

	v.SetDefault("SUMMARY_CACHE_TTL", "5m")
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
