// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port                  string  `mapstructure:"PORT"`
	Env                   string  `mapstructure:"APP_ENV"`
	DBDriver              string  `mapstructure:"DB_DRIVER"`
	DBHost                string  `mapstructure:"DB_HOST"`
	DBPort                string  `mapstructure:"DB_PORT"`
	DBUser                string  `mapstructure:"DB_USER"`
	DBPassword            string  `mapstructure:"DB_PASSWORD"`
	DBName                string  `mapstructure:"DB_NAME"`
	DBSSLMode             string  `mapstructure:"DB_SSLMODE"`
	DBSQLitePath          string  `mapstructure:"DB_SQLITE_PATH"`
	RedisURL              string  `mapstructure:"REDIS_URL"`
	AllowedOrigins        string  `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags          string  `mapstructure:"FEATURE_FLAGS"`
	UploadDir             string  `mapstructure:"UPLOAD_DIR"`
	UploadBackend         string  `mapstructure:"UPLOAD_BACKEND"`
	S3Endpoint            string  `mapstructure:"S3_ENDPOINT"`
	S3AccessKey           string  `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey           string  `mapstructure:"S3_SECRET_KEY"`
	S3Bucket              string  `mapstructure:"S3_BUCKET"`
	S3UseSSL              bool    `mapstructure:"S3_USE_SSL"`
	CacheTTLSeconds       int     `mapstructure:"CACHE_TTL_SECONDS"`
	CacheLocalSize        int     `mapstructure:"CACHE_LOCAL_SIZE"`
	CaptchaTTLMinutes     int     `mapstructure:"CAPTCHA_TTL_MINUTES"`
	EventStream           string  `mapstructure:"EVENT_STREAM"`
	EventGroup            string  `mapstructure:"EVENT_GROUP"`
	EventMaxRetries       int     `mapstructure:"EVENT_MAX_RETRIES"`
	IndexerEnabled        bool    `mapstructure:"INDEXER_ENABLED"`
	RequestTimeoutSeconds int     `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	BodyLimitMB           int     `mapstructure:"BODY_LIMIT_MB"`
	TracingEnabled        bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter       string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint          string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio    float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

const defaultDBPassword = "password"

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) || env == "production" {
				return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not loaded: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "comments")
	viper.SetDefault("DB_PASSWORD", defaultDBPassword)
	viper.SetDefault("DB_NAME", "comments")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "comments.db")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")
	viper.SetDefault("FEATURE_FLAGS", "realtime=on,search_indexing=on,thumbnails=on")
	viper.SetDefault("UPLOAD_DIR", "wwwroot/uploads")
	viper.SetDefault("UPLOAD_BACKEND", "local")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("S3_ACCESS_KEY", "")
	viper.SetDefault("S3_SECRET_KEY", "")
	viper.SetDefault("S3_BUCKET", "comment-uploads")
	viper.SetDefault("S3_USE_SSL", false)
	viper.SetDefault("CACHE_TTL_SECONDS", 300)
	viper.SetDefault("CACHE_LOCAL_SIZE", 1000)
	viper.SetDefault("CAPTCHA_TTL_MINUTES", 10)
	viper.SetDefault("EVENT_STREAM", "comments:events")
	viper.SetDefault("EVENT_GROUP", "comment-indexer")
	viper.SetDefault("EVENT_MAX_RETRIES", 5)
	viper.SetDefault("INDEXER_ENABLED", true)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 15)
	viper.SetDefault("BODY_LIMIT_MB", 10)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.UploadBackend = strings.ToLower(strings.TrimSpace(c.UploadBackend))
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	switch c.UploadBackend {
	case "local":
		if c.UploadDir == "" {
			return errors.New("UPLOAD_DIR is required for the local upload backend")
		}
	case "s3":
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3Bucket == "" {
			return errors.New("S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY and S3_BUCKET are required for the s3 upload backend")
		}
	default:
		return fmt.Errorf("UPLOAD_BACKEND must be local or s3, got %q", c.UploadBackend)
	}
	if c.CaptchaTTLMinutes <= 0 {
		return errors.New("CAPTCHA_TTL_MINUTES must be positive")
	}
	if c.CacheTTLSeconds <= 0 {
		return errors.New("CACHE_TTL_SECONDS must be positive")
	}

	if c.IsProduction() {
		if c.DBDriver == "postgres" && (c.DBPassword == defaultDBPassword || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.AllowedOrigins == "*" {
			return errors.New("ALLOWED_ORIGINS cannot be '*' in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.UploadBackend == "s3" && !c.S3UseSSL {
			log.Println("WARNING: S3_USE_SSL is false in production. Attachments will travel unencrypted.")
		}
	}

	return nil
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// IsDevelopment reports whether error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development"
}

// CacheTTL is the lifetime of cached comment reads.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// CaptchaTTL is the lifetime of a generated challenge.
func (c *Config) CaptchaTTL() time.Duration {
	return time.Duration(c.CaptchaTTLMinutes) * time.Minute
}

// RequestTimeout is the deadline applied to comment creation.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
