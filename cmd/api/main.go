package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendtrack/internal/attendance"
	"attendtrack/internal/auth"
	"attendtrack/internal/cloudinary"
	"attendtrack/internal/config"
	"attendtrack/internal/httpmiddleware"
	"attendtrack/internal/metrics"
	"attendtrack/internal/queue"
	"attendtrack/internal/report"
	"attendtrack/internal/stats"
	"attendtrack/internal/store"
	"attendtrack/internal/users"
	"attendtrack/internal/worker"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	logger := log.New(os.Stderr, "api ", log.LstdFlags|log.Lmsgprefix)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg.DatabaseURL)
	if db == nil {
		return err
	}
	if err != nil {
		logger.Printf("warning: db not reachable: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Println("schema migrated")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	// Cloudinary client (nil when not configured)
	var uploader users.Uploader
	if cfg.CloudinaryEnabled() {
		uploader = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		logger.Println("Cloudinary not configured, profile photo uploads disabled")
	}

	loc := cfg.Location()
	signer := auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	usersSvc := users.NewService(users.NewRepository(db.Client), signer,
		auth.GoogleVerifier{ClientID: cfg.GoogleClientID}, uploader, logger)

	attSvc, err := attendance.NewService(attendance.NewRepository(db.Client), usersSvc, q, attendance.Options{
		Location:  loc,
		LateAfter: cfg.LateAfter,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	statsSvc := stats.NewService(attSvc, usersSvc, stats.NewAggregator(loc, logger),
		stats.NewRedisCache(redisClient.Client, cfg.SnapshotTTL), logger)

	// The in-memory queue only reaches consumers in this process.
	if mem, ok := q.(*queue.InMemory); ok {
		w := &worker.Worker{Queue: mem, Stats: statsSvc, Logger: logger}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Printf("in-process worker stopped: %v", err)
			}
		}()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(metrics.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthz(db, redisClient))

	limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	v1 := r.Group("/v1")
	public := v1.Group("", limiter.GinMiddleware())
	authed := v1.Group("", auth.RequireAuth(signer), limiter.GinMiddleware())
	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))

	users.NewHandler(usersSvc).RegisterRoutes(public, authed, admin)
	attendance.NewHandler(attSvc).RegisterRoutes(authed, admin)
	stats.NewHandler(statsSvc).RegisterRoutes(admin)
	report.NewHandler(statsSvc, loc, logger).RegisterRoutes(admin)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Server forced shutdown: %v", err)
	}
	logger.Println("Server exited")
	return nil
}

type healthChecker interface {
	Healthy(ctx context.Context) bool
}

// healthz answers 200 "ok" when both backends respond, otherwise 503 "degraded".
func healthz(db, redis healthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := redis.Healthy(c.Request.Context())
		code, status := http.StatusOK, "ok"
		if !redisHealthy || !dbHealthy {
			code, status = http.StatusServiceUnavailable, "degraded"
		}
		c.JSON(code, gin.H{"status": status, "redis": redisHealthy, "db": dbHealthy})
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
