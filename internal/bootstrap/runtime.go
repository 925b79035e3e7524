// Package bootstrap opens the runtime dependencies shared by the server and
// the standalone commands.
package bootstrap

import (
	"context"
	"fmt"

	"commentboard/internal/cache"
	"commentboard/internal/config"
	"commentboard/internal/database"
	"commentboard/internal/middleware"
	"commentboard/internal/observability"
	"commentboard/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and to Redis. An unreachable Redis
// is not an error; the returned client is nil and callers degrade.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return db, cache.GetClient(), nil
}

// OpenStorage returns the attachment store selected by UPLOAD_BACKEND.
func OpenStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.UploadBackend {
	case "s3":
		store, err := storage.NewMinioStore(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			return nil, err
		}
		middleware.Logger.Info("attachment storage ready", "backend", "s3", "bucket", cfg.S3Bucket)
		return store, nil
	default:
		store, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		middleware.Logger.Info("attachment storage ready", "backend", "local", "dir", store.Dir())
		return store, nil
	}
}

// InitTracing installs the tracer provider for serviceName. The returned
// function flushes and stops it.
func InitTracing(cfg *config.Config, serviceName string) (func(context.Context) error, error) {
	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	if cfg.TracingEnabled {
		middleware.Logger.Info("tracing enabled", "exporter", cfg.TracingExporter, "service", serviceName)
	}
	return shutdown, nil
}
