package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marginalia-app/marginalia-api/internal/config"
	"github.com/marginalia-app/marginalia-api/internal/handler"
	"github.com/marginalia-app/marginalia-api/internal/middleware"
	"github.com/marginalia-app/marginalia-api/internal/ratelimit"
	"github.com/marginalia-app/marginalia-api/internal/repository"
	"github.com/marginalia-app/marginalia-api/internal/service"
	"github.com/marginalia-app/marginalia-api/internal/storage"
)

type Server struct {
	router       *gin.Engine
	config       *config.Config
	redis        *storage.RedisClient
	postgres     *storage.Postgres
	limiter      *ratelimit.Limiter
	recorder     *middleware.UsageRecorder
	authHandler  *handler.AuthHandler
	quotaHandler *handler.QuotaHandler
	usageHandler *handler.UsageHandler
	userHandler  *handler.UserHandler
	pruneStop    chan struct{}
	httpServer   *http.Server
}

// How long usage logs are kept before the background pruner removes them
const usageRetention = 90 * 24 * time.Hour

// New wires the quota service. redis may be nil: the limiter then runs
// without a counting store and every decision fails open.
func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	var store ratelimit.CountingStore
	if redis != nil {
		store = ratelimit.NewRedisStore(redis)
	}
	limiter := ratelimit.NewLimiter(store)

	userRepo := repository.NewUserRepository(postgres)
	usageRepo := repository.NewUsageLogRepository(postgres)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	usageService := service.NewUsageService(usageRepo)
	recorder := middleware.NewUsageRecorder(usageRepo, 1024)

	s := &Server{
		router:       router,
		config:       cfg,
		redis:        redis,
		postgres:     postgres,
		limiter:      limiter,
		recorder:     recorder,
		authHandler:  handler.NewAuthHandler(authService),
		quotaHandler: handler.NewQuotaHandler(limiter),
		usageHandler: handler.NewUsageHandler(usageService),
		userHandler:  handler.NewUserHandler(authService, limiter),
		pruneStop:    make(chan struct{}),
	}

	s.setupMiddleware()
	s.setupRoutes(authService)
	s.startUsagePruner(usageService)

	return s
}

// Periodically drops usage logs past the retention window
func (s *Server) startUsagePruner(usageService *service.UsageService) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.pruneStop:
				return
			case <-ticker.C:
				n, err := usageService.Prune(context.Background(), usageRetention)
				if err != nil {
					log.Printf("[usage] prune failed: %v", err)
				} else if n > 0 {
					log.Printf("[usage] pruned %d logs older than %v", n, usageRetention)
				}
			}
		}
	}()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.UsageLogger(s.recorder))
}

func (s *Server) setupRoutes(authService *service.AuthService) {
	s.router.GET("/health", s.healthCheck)

	// Unauthenticated routes are keyed by client IP and evaluated as FREE,
	// an explicit choice rather than a fallback.
	auth := s.router.Group("/auth")
	auth.Use(middleware.RateLimit(s.limiter, ratelimit.OpAPI, middleware.FixedTier(ratelimit.TierFree)))
	{
		auth.POST("/register", s.authHandler.Register)
		auth.POST("/login", s.authHandler.Login)
	}

	v1 := s.router.Group("/v1")
	v1.Use(middleware.RequireAuth(authService))
	v1.Use(middleware.RateLimit(s.limiter, ratelimit.OpAPI, middleware.ClaimsTier()))
	{
		v1.GET("/quota", s.quotaHandler.StatusAll)
		v1.GET("/quota/:operation", s.quotaHandler.Status)
		v1.POST("/limits/:operation/consume", s.quotaHandler.Consume)
	}

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(authService))
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/ratelimit/reset", s.quotaHandler.Reset)
		admin.PUT("/users/:id/tier", s.userHandler.UpdateTier)
		admin.GET("/usage/summary", s.usageHandler.GetSummary)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	// A missing Redis is fail-open mode, not degradation
	redisStatus := "unconfigured"
	redisHealthy := true
	if s.redis != nil {
		redisStatus = "up"
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisStatus = "down"
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !dbHealthy || !redisHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "quota-service",
		"enforcing": s.limiter.Enforcing(),
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisStatus,
			"database": dbHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting quota service on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// In-flight requests still record usage, so the recorder must outlive
	// the HTTP drain
	s.recorder.Close()
	close(s.pruneStop)

	return err
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
