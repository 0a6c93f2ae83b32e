// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "gymfix/docs" // swagger docs
	"gymfix/internal/authz"
	"gymfix/internal/bootstrap"
	"gymfix/internal/config"
	"gymfix/internal/featureflags"
	"gymfix/internal/middleware"
	"gymfix/internal/models"
	"gymfix/internal/notifications"
	"gymfix/internal/observability"
	"gymfix/internal/repository"
	"gymfix/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	traceShutdown  func(context.Context) error

	userRepo       repository.UserRepository
	tenantRepo     repository.TenantRepository
	membershipRepo repository.MembershipRepository
	equipmentRepo  repository.EquipmentRepository
	ticketRepo     repository.TicketRepository
	visitRepo      repository.VisitRepository
	confirmRepo    repository.ConfirmationRepository

	resolver     *authz.Resolver
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	userService         *service.UserService
	tenantService       *service.TenantService
	memberService       *service.MemberService
	equipmentService    *service.EquipmentService
	ticketService       *service.TicketService
	visitService        *service.VisitService
	notificationService *service.NotificationService
	photoService        *service.PhotoService

	// Consumed WebSocket tickets are kept briefly in-process so the multi-pass
	// Fiber websocket handshake can re-run AuthRequired after the single-use
	// ticket is gone from Redis.
	consumedTicketsMu sync.Mutex
	consumedTickets   map[string]consumedTicketEntry
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{
		SeedBuiltIns: strings.EqualFold(cfg.Env, "development"),
	})
	if err != nil {
		return nil, fmt.Errorf("runtime initialization failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	server := &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		promMiddleware:  middleware.InitMetrics("gymfix-api"),
		userRepo:        repository.NewUserRepository(db),
		tenantRepo:      repository.NewTenantRepository(db),
		membershipRepo:  repository.NewMembershipRepository(db),
		equipmentRepo:   repository.NewEquipmentRepository(db),
		ticketRepo:      repository.NewTicketRepository(db),
		visitRepo:       repository.NewVisitRepository(db),
		confirmRepo:     repository.NewConfirmationRepository(db),
		resolver:        authz.NewResolver(db),
		featureFlags:    featureflags.NewManager(cfg.FeatureFlags),
		consumedTickets: make(map[string]consumedTicketEntry),
	}

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub(redisClient)
		server.hub.SetPresenceHooks(notifications.PresenceHooks{
			StaffOnline: func(userID uint) {
				middleware.Logger.Debug("staff online", slog.Uint64("user_id", uint64(userID)))
			},
			StaffOffline: func(userID uint) {
				middleware.Logger.Debug("staff offline", slog.Uint64("user_id", uint64(userID)))
			},
		})
	} else {
		server.notifier = notifications.NewNotifier(nil)
	}

	notificationRepo := repository.NewNotificationRepository(db)
	var livePresence service.LivePresence
	if server.hub != nil {
		livePresence = server.hub
	}
	server.notificationService = service.NewNotificationService(notificationRepo, server.notifier, livePresence)
	server.userService = service.NewUserService(server.userRepo)
	server.tenantService = service.NewTenantService(server.tenantRepo, server.membershipRepo, server.resolver)
	server.memberService = service.NewMemberService(server.membershipRepo, server.tenantRepo, server.userRepo,
		server.resolver, server.notificationService)
	server.equipmentService = service.NewEquipmentService(server.equipmentRepo, server.tenantRepo, server.resolver)
	server.ticketService = service.NewTicketService(server.ticketRepo, server.equipmentRepo, server.membershipRepo,
		server.confirmRepo, server.resolver, server.notificationService)
	server.visitService = service.NewVisitService(server.visitRepo, server.ticketRepo, server.membershipRepo,
		server.resolver, server.notificationService)
	server.photoService = service.NewPhotoService(cfg)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// OpenTelemetry spans per request
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
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
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
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
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Gymfix Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", s.AuthRequired(), s.Refresh)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Evidence photos are served publicly; names are unguessable content hashes.
	app.Get("/media/photos/:kind/:name", s.ServePhoto)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/search", middleware.RateLimit(
		s.redis, 10, time.Minute, "user_search"), s.SearchUsers)
	users.Get("/", s.AdminRequired(), s.GetAllUsers)
	users.Post("/:id/promote-admin", s.AdminRequired(), s.PromoteToAdmin)
	users.Post("/:id/demote-admin", s.AdminRequired(), s.DemoteFromAdmin)
	users.Get("/:id", s.GetUserProfile)

	// Factory routes
	factories := protected.Group("/factories")
	factories.Post("/", s.AdminRequired(), s.CreateFactory)
	factories.Get("/:id/gyms", s.ListFactoryGyms)
	factories.Post("/:id/gyms", s.CreateGym)
	factories.Get("/:id/members", s.ListFactoryMembers)
	factories.Post("/:id/members", s.AddFactoryMember)
	factories.Get("/:id/tickets", s.ListFactoryTickets)

	// Gym routes
	gyms := protected.Group("/gyms")
	gyms.Get("/", s.ListMyGyms)
	gyms.Get("/:id", s.GetGym)
	gyms.Get("/:id/members", s.ListGymMembers)
	gyms.Post("/:id/members", s.AddGymMember)
	gyms.Put("/:id/members/:userId", s.UpdateGymMemberRole)
	gyms.Delete("/:id/members/:userId", s.RemoveGymMember)
	gyms.Get("/:id/equipment", s.ListGymEquipment)
	gyms.Get("/:id/tickets", s.ListGymTickets)

	// Equipment routes
	equipment := protected.Group("/equipment")
	equipment.Post("/", s.CreateEquipment)
	equipment.Get("/scan/:code", s.ScanEquipment)
	equipment.Post("/:id/reassign", s.ReassignEquipment)

	// Ticket routes
	tickets := protected.Group("/tickets")
	tickets.Post("/", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "report_fault"), s.ReportFault)
	tickets.Post("/:id/transition", s.TransitionTicket)
	tickets.Post("/:id/comments", middleware.RateLimit(
		s.redis, 15, time.Minute, "ticket_comment"), s.CommentTicket)
	tickets.Get("/:id/events", s.ListTicketEvents)
	tickets.Post("/:id/visit", s.RequestVisit)
	tickets.Get("/:id/visit", s.GetVisit)
	tickets.Post("/:id/visit/approve", s.ApproveVisit)
	tickets.Post("/:id/visit/reject", s.RejectVisit)
	tickets.Post("/:id/confirmations", s.ConfirmResolution)
	tickets.Get("/:id/confirmations", s.ListConfirmations)
	tickets.Get("/:id", s.GetTicket)

	// Photo upload for fault reports and confirmations
	protected.Post("/photos", middleware.RateLimit(
		s.redis, 20, 10*time.Minute, "photo_upload"), s.UploadPhoto)

	// Notification routes
	notificationRoutes := protected.Group("/notifications")
	notificationRoutes.Get("/", s.ListNotifications)
	notificationRoutes.Get("/unread-count", s.CountUnreadNotifications)
	notificationRoutes.Post("/read-all", s.MarkAllNotificationsRead)
	notificationRoutes.Post("/:id/read", s.MarkNotificationRead)

	// WebSocket ticket issuance and endpoint
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/broadcast", s.BroadcastAnnouncement)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
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
		// Redis is considered required for full readiness in this app
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdmin(c, userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		isWSPath := strings.HasPrefix(path, "/api/ws")

		// 1. Try WebSocket ticket first (short-lived, single-use)
		ticket := c.Query("ticket")
		if ticket != "" && s.redis != nil {
			if userID, ok := s.lookupConsumedTicket(ticket); ok {
				s.setAuthenticatedUser(c, userID, ticket)
				return c.Next()
			}

			key := fmt.Sprintf("ws_ticket:%s", ticket)
			userIDStr, err := s.redis.GetDel(c.Context(), key).Result()
			if err == nil {
				userID, parseErr := strconv.ParseUint(userIDStr, 10, 32)
				if parseErr == nil {
					// Cache in-process: the websocket upgrade re-enters this
					// middleware after the ticket is gone from Redis.
					s.cacheConsumedTicket(ticket, uint(userID))
					s.setAuthenticatedUser(c, uint(userID), ticket)
					return c.Next()
				}
			}
			// If ticket was provided but invalid/expired, we fail if it's a WS path
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to JWT (Bearer token or query param)
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Reject token in query param for WS routes (must use ticket)
		if tokenString == "" && !isWSPath {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		// Parse and validate token
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			// Validate signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		// Extract claims
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		// Validate issuer and audience
		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != jwtIssuer {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token issuer"))
		}
		if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != jwtAudience {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token audience"))
		}

		// Extract user ID from subject claim
		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}

		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		// Check JTI for revocation
		if jti, exists := claims["jti"].(string); exists && jti != "" {
			if s.redis != nil {
				isBlacklisted, err := s.redis.Exists(c.Context(), "blacklist:"+jti).Result()
				if err == nil && isBlacklisted > 0 {
					return models.RespondWithError(c, fiber.StatusUnauthorized,
						models.NewUnauthorizedError("Token has been revoked"))
				}
			}
		}

		s.setAuthenticatedUser(c, uint(userID), "")
		return c.Next()
	}
}

// setAuthenticatedUser stores the user ID in Fiber locals and syncs it to the
// request's UserContext for logging and downstream services.
func (s *Server) setAuthenticatedUser(c *fiber.Ctx, userID uint, wsTicket string) {
	c.Locals("userID", userID)
	if wsTicket != "" {
		c.Locals("wsTicket", wsTicket)
	}
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	traceShutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "gymfix-api",
		ServiceVersion: "1.0.0",
		Environment:    s.config.Env,
		Enabled:        s.config.TracingEnabled,
		Exporter:       s.config.TracingExporter,
		OTLPEndpoint:   s.config.OTLPEndpoint,
		SamplerRatio:   1.0,
	})
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	s.traceShutdown = traceShutdown

	app := fiber.New(fiber.Config{
		AppName: "Gymfix API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the hub to the Redis subscriber if available
	if s.hub != nil && s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close WebSocket connections gracefully
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	// Flush any buffered spans
	if s.traceShutdown != nil {
		if terr := s.traceShutdown(ctx); terr != nil {
			log.Printf("error shutting down tracing: %v", terr)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
