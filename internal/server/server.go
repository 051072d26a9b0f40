// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "agora/docs" // swagger docs
	"agora/internal/auth"
	"agora/internal/autoreply"
	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/moderation"
	"agora/internal/notifications"
	"agora/internal/queue"
	"agora/internal/repository"
	"agora/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/carlmjohnson/versioninfo"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config           *config.Config
	db               *gorm.DB
	redis            *redis.Client
	app              *fiber.App
	promMiddleware   *fiberprometheus.FiberPrometheus
	shutdownCtx      context.Context
	shutdownFn       context.CancelFunc
	tokens           *auth.Manager
	limiter          *middleware.Limiter
	notifier         *notifications.Notifier
	hub              *notifications.Hub
	featureFlags     *featureflags.Manager
	postService      *service.PostService
	commentService   *service.CommentService
	userService      *service.UserService
	analyticsService *service.AnalyticsService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: auto-replies are then not scheduled and live events
// stay in-process.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	screen, err := moderation.LoadScreen(cfg.ProfanityWordlist)
	if err != nil {
		return nil, fmt.Errorf("load profanity word list: %w", err)
	}
	policy := moderation.NewPolicy(screen)

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient)

	var hook service.CommentHook
	if redisClient != nil {
		hook = autoreply.NewScheduler(queue.NewRedisQueue(redisClient, cfg.QueueName), flags)
	} else {
		middleware.Logger.Warn("redis unavailable, auto-replies will not be scheduled")
	}

	server := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   middleware.InitMetrics("agora-api"),
		tokens:           auth.NewManager(cfg, redisClient),
		limiter:          middleware.NewLimiter(redisClient, cfg.Env),
		notifier:         notifier,
		hub:              notifications.NewHub(),
		featureFlags:     flags,
		postService:      service.NewPostService(postRepo, policy, notifier),
		commentService:   service.NewCommentService(commentRepo, postRepo, policy, hook, notifier),
		userService:      service.NewUserService(userRepo),
		analyticsService: service.NewAnalyticsService(commentRepo),
	}
	server.shutdownCtx, server.shutdownFn = context.WithCancel(context.Background())

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagates request, user and trace IDs into the user context.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Agora Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	authRequired := s.AuthRequired()

	// Account and token routes
	api.Post("/register", s.limiter.Handler(middleware.Rule{
		Name: "register", Limit: 5, Window: 10 * time.Minute}), s.Register)
	token := api.Group("/token")
	token.Post("/pair", s.limiter.Handler(middleware.Rule{
		Name: "token_pair", Limit: 10, Window: 5 * time.Minute}), s.TokenPair)
	token.Post("/refresh", s.TokenRefresh)
	token.Post("/verify", s.TokenVerify)

	posts := api.Group("/posts")
	// Must precede /:id so the literal segment is not parsed as an ID.
	posts.Get("/comments-daily-breakdown", authRequired, s.GetCommentsDailyBreakdown)

	posts.Get("/", s.GetPosts)
	posts.Post("/", authRequired, s.limiter.Handler(middleware.Rule{
		Name: "create_post", Limit: 10, Window: 5 * time.Minute}), s.CreatePost)

	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", authRequired, s.limiter.Handler(middleware.Rule{
		Name: "create_comment", Limit: 20, Window: time.Minute}), s.CreateComment)
	posts.Patch("/:id/comments/:commentId", authRequired, s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", authRequired, s.DeleteComment)

	posts.Get("/:id", s.GetPost)
	posts.Patch("/:id", authRequired, s.UpdatePost)
	posts.Delete("/:id", authRequired, s.DeletePost)

	api.Get("/ws", authRequired, s.WebsocketHandler())

	admin := api.Group("/admin", authRequired, s.StaffRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "up",
		"version": versioninfo.Short(),
		"time":    time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// The delayed queue lives in Redis, so the API is not ready without it.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version":  versioninfo.Short(),
		"revision": versioninfo.Revision,
		"status":   overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the bearer-token authentication middleware.
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.AuthRequired(s.tokens)
}

// StaffRequired returns middleware that rejects non-staff users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := s.principal(c)
		if err != nil {
			return nil
		}
		if !principal.IsStaff {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Staff access required"))
		}
		return c.Next()
	}
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "Agora API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Message: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error",
				slog.String("path", c.Path()), slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// StartWiring connects the live-event notifier to the WebSocket hub.
func (s *Server) StartWiring() {
	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start event wiring", slog.String("error", err.Error()))
		}
	}()
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	s.StartWiring()

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port),
		slog.String("version", versioninfo.Short()))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Stops the event subscriber.
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down websocket hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
