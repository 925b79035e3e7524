// Package server contains HTTP and WebSocket handlers for the comment board API.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "commentboard/docs" // swagger docs
	"commentboard/internal/bootstrap"
	"commentboard/internal/cache"
	"commentboard/internal/config"
	"commentboard/internal/database"
	"commentboard/internal/featureflags"
	"commentboard/internal/indexer"
	"commentboard/internal/middleware"
	"commentboard/internal/models"
	"commentboard/internal/notifications"
	"commentboard/internal/repository"
	"commentboard/internal/service"
	"commentboard/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          storage.Store
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	indexerDone    chan struct{}
	stopTracing    func(context.Context) error

	commentRepo    repository.CommentRepository
	documentRepo   repository.DocumentRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	events         *notifications.EventQueue
	featureFlags   *featureflags.Manager
	captchaService *service.CaptchaService
	fileService    *service.FileService
	commentService *service.CommentService
}

// NewServer connects to the database, Redis and attachment storage named by
// cfg and builds a Server over them.
func NewServer(cfg *config.Config) (*Server, error) {
	middleware.ConfigureLogger(cfg.Env)
	stopTracing, err := bootstrap.InitTracing(cfg, "commentboard-api")
	if err != nil {
		return nil, err
	}
	db, rdb, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	store, err := bootstrap.OpenStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("attachment storage: %w", err)
	}
	s, err := NewServerWithDeps(cfg, db, rdb, store)
	if err != nil {
		return nil, err
	}
	s.stopTracing = stopTracing
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: the cache falls back to the in-process LRU, the
// realtime channel stays local and no events are queued for the indexer.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Store) (*Server, error) {
	local, err := cache.NewLocal(cfg.CacheLocalSize)
	if err != nil {
		return nil, fmt.Errorf("local cache: %w", err)
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		store:          store,
		promMiddleware: middleware.InitMetrics("commentboard-api"),
		commentRepo:    repository.NewCommentRepository(db),
		documentRepo:   repository.NewDocumentRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		captchaService: service.NewCaptchaService(repository.NewCaptchaRepository(db), cfg.CaptchaTTL()),
		fileService:    service.NewFileService(store),
	}

	deps := service.CommentServiceDeps{
		Comments:  s.commentRepo,
		Users:     repository.NewUserRepository(db),
		Documents: s.documentRepo,
		Captcha:   s.captchaService,
		Sanitizer: service.NewSanitizer(),
		Files:     s.fileService,
		Cache:     cache.NewStore(redisClient, local),
		Realtime:  newRealtimeBroadcaster(s.hub, s.notifier),
		Flags:     s.featureFlags,
		CacheTTL:  cfg.CacheTTL(),
		Timeout:   cfg.RequestTimeout(),
	}
	if redisClient != nil {
		s.events, err = notifications.NewEventQueue(redisClient, notifications.EventQueueConfig{
			Stream:     cfg.EventStream,
			Group:      cfg.EventGroup,
			MaxRetries: cfg.EventMaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("event queue: %w", err)
		}
		deps.Events = s.events
	}
	s.commentService = service.NewCommentService(deps)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Copies request ID, trace ID and client IP into the request context
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Attachments are served cross-origin to the SPA.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:3001"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.APIResponse[any]{
				Success: false,
				Message: "Too many requests, please try again later.",
				Errors:  []string{"rate limit exceeded"},
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Attachments
	if local, ok := s.store.(*storage.LocalStore); ok {
		app.Static(strings.TrimSuffix(service.PublicPrefix, "/"), local.Dir(), fiber.Static{
			MaxAge: 3600,
		})
	} else {
		app.Get(service.PublicPrefix+"*", s.GetUpload)
	}
	api.Get("/files/*", s.GetFile)

	// Comments. /search must be registered before /:id.
	comments := api.Group("/comments")
	comments.Get("/", s.ListComments)
	comments.Get("/search", s.SearchComments)
	comments.Post("/", middleware.RateLimit(
		s.redis, s.config.Env, 5, time.Minute, "create_comment"), s.CreateComment)
	comments.Get("/:id/replies", s.GetReplies)
	comments.Get("/:id", s.GetComment)
	comments.Delete("/:id", s.DeleteComment)

	// Captcha
	captcha := api.Group("/captcha")
	captcha.Get("/", middleware.RateLimit(
		s.redis, s.config.Env, 20, time.Minute, "captcha"), s.GetCaptcha)
	captcha.Post("/validate", s.ValidateCaptcha)

	api.Get("/feature-flags", s.GetFeatureFlags)

	// Realtime
	app.Get("/ws/comments", s.WebSocketUpgradeRequired(), s.CommentsWebSocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database, Redis and attachment storage. Redis
// being down only degrades the service since every Redis consumer has a
// local fallback.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		middleware.Logger.WarnContext(ctx, "database ping failed", "error", err)
		dbStatus = "unhealthy"
	}

	storageStatus := "healthy"
	if s.store == nil {
		storageStatus = "unavailable"
	} else if _, err := s.store.Exists(ctx, ".healthcheck"); err != nil {
		middleware.Logger.WarnContext(ctx, "storage check failed", "error", err)
		storageStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus != "healthy" || storageStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus != "healthy":
		overallStatus = "degraded"
	}

	connected, members := s.hub.Counts()
	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"storage":  storageStatus,
		},
		"websockets": fiber.Map{
			"connected": connected,
			"joined":    members,
		},
		"time": time.Now(),
	})
}

// ErrorHandler renders errors that escape handlers in the standard envelope.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
	}
	return models.RespondWithError(c, status, err, s.config.IsDevelopment())
}

// App builds a Fiber app with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Comment Board API",
		BodyLimit:    max(s.config.BodyLimitMB, 1) * 1024 * 1024,
		ErrorHandler: s.ErrorHandler,
	})
	s.app = app
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// StartBackground wires the hub to Redis and, when enabled, runs the search
// indexer in-process. It stops when Shutdown is called.
func (s *Server) StartBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	if s.notifier.Enabled() {
		if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start realtime wiring", "hub", s.hub.Name(), "error", err)
		}
	}

	if s.config.IndexerEnabled && s.events != nil {
		ix := indexer.New(s.commentRepo, s.documentRepo)
		s.indexerDone = make(chan struct{})
		go func() {
			defer close(s.indexerDone)
			if err := ix.Run(ctx, s.events, 2); err != nil && ctx.Err() == nil {
				middleware.Logger.Error("search indexer exited", "error", err)
			}
		}()
	}
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	s.StartBackground()

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop wiring and the indexer
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Close WebSocket connections gracefully
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err)
	}

	// Let in-flight fan-out finish before its backends go away
	s.commentService.Wait()
	if s.indexerDone != nil {
		select {
		case <-s.indexerDone:
		case <-ctx.Done():
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil {
			middleware.Logger.Error("error flushing traces", "error", err)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
