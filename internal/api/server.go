package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mt-trading-dashboard/config"
	"mt-trading-dashboard/internal/auth"
	"mt-trading-dashboard/internal/database"
	"mt-trading-dashboard/internal/events"
	"mt-trading-dashboard/internal/guardian"
	"mt-trading-dashboard/internal/patterns"
	"mt-trading-dashboard/internal/vault"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	db          *database.DB
	cooldowns   *database.RedisCooldownStore
	eventBus    *events.EventBus
	authService *auth.Service
	jwtManager  *auth.JWTManager
	vaultClient *vault.Client
	resolver    *guardian.Resolver
	guard       *guardian.AccountGuard
	detector    *patterns.Detector
	hub         *Hub
	rateLimiter *RateLimiter
	config      *config.Config
	logger      zerolog.Logger
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	db *database.DB,
	cooldowns *database.RedisCooldownStore,
	eventBus *events.EventBus,
	authService *auth.Service,
	jwtManager *auth.JWTManager,
	vaultClient *vault.Client, // Can be nil if vault is disabled
	logger zerolog.Logger,
) *Server {
	if cfg.ServerConfig.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.ServerConfig.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", auth.HeaderAgentAPIKey}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		db:          db,
		cooldowns:   cooldowns,
		eventBus:    eventBus,
		authService: authService,
		jwtManager:  jwtManager,
		vaultClient: vaultClient,
		resolver:    guardian.NewResolver(db, cfg.GuardianConfig.MaterialRoundingPercent),
		guard:       guardian.NewAccountGuard(),
		detector:    patterns.NewDetector(cfg.GuardianConfig.TradingHourStart, cfg.GuardianConfig.TradingHourEnd),
		hub:         NewHub(eventBus, logger),
		rateLimiter: NewRateLimiter(300, time.Minute),
		config:      cfg,
		logger:      logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	return server
}

// rateLimitMiddleware limits requests per endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "rate limit exceeded, slow down",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// Public auth routes
	authGroup := s.router.Group("/api/auth")
	authGroup.Use(s.rateLimitMiddleware())
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
	}

	// Dashboard routes (JWT)
	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	api.Use(auth.Middleware(s.jwtManager))
	{
		api.GET("/accounts", s.handleListAccounts)
		api.POST("/accounts", s.handleCreateAccount)
		api.GET("/accounts/:id", s.handleGetAccount)
		api.DELETE("/accounts/:id", s.handleDeleteAccount)
		api.PUT("/accounts/:id/lock-mode", s.handleSetLockMode)
		api.POST("/accounts/:id/agent-keys", s.handleCreateAgentKey)
		api.DELETE("/accounts/:id/agent-keys/:keyId", s.handleRevokeAgentKey)

		api.POST("/accounts/:id/setup/preview", s.handlePreviewSetup)
		api.POST("/accounts/:id/setup", s.handleCreateSetup)
		api.GET("/accounts/:id/setup", s.handleGetSetup)
		api.DELETE("/accounts/:id/setup", s.handleEndChallenge)

		api.GET("/accounts/:id/symbols", s.handleListSymbolSpecs)
		api.GET("/accounts/:id/mappings", s.handleListMappings)
		api.PUT("/accounts/:id/mappings", s.handleUpsertMapping)
		api.DELETE("/accounts/:id/mappings/:symbol", s.handleDeleteMapping)
		api.GET("/accounts/:id/mappings/suggestions", s.handleSuggestMappings)

		api.POST("/accounts/:id/trades/validate", s.handleValidateTrade)
		api.POST("/accounts/:id/orders", s.handleCreateOrder)
		api.GET("/accounts/:id/orders", s.handleListOrders)
		api.POST("/accounts/:id/orders/:orderId/cancel", s.handleCancelOrder)

		api.GET("/accounts/:id/patterns", s.handleDetectPatterns)
		api.DELETE("/accounts/:id/cooldown", s.handleClearCooldown)
		api.GET("/accounts/:id/violations", s.handleListViolations)
	}

	// Agent routes (per-account API key)
	agent := s.router.Group("/api/agent")
	agent.Use(auth.AgentMiddleware(s.db))
	{
		agent.GET("/orders", s.handleAgentPollOrders)
		agent.POST("/orders/:orderId/execution", s.handleAgentReportExecution)
		agent.POST("/orders/:orderId/close", s.handleAgentReportClose)
		agent.POST("/violations", s.handleAgentReportViolation)
		agent.POST("/symbols/sync", s.handleAgentSymbolSync)
		agent.POST("/balances", s.handleAgentReportBalances)
		agent.POST("/day-rollover", s.handleAgentDayRollover)
	}

	// WebSocket event stream (token passed via query parameter)
	s.router.GET("/ws", s.handleWebSocket)
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.ServerConfig.Host, s.config.ServerConfig.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	response := gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			response["status"] = "degraded"
			response["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response["database"] = "ok"
	}

	c.JSON(http.StatusOK, response)
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
