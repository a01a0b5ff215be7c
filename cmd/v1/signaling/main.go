package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/duocall/signaling/internal/v1/admin"
	"github.com/duocall/signaling/internal/v1/config"
	"github.com/duocall/signaling/internal/v1/coordinator"
	"github.com/duocall/signaling/internal/v1/health"
	"github.com/duocall/signaling/internal/v1/logging"
	"github.com/duocall/signaling/internal/v1/middleware"
	"github.com/duocall/signaling/internal/v1/ratelimit"
	"github.com/duocall/signaling/internal/v1/registry"
	"github.com/duocall/signaling/internal/v1/tracing"
	"github.com/duocall/signaling/internal/v1/transport"
)

const serviceName = "signaling"

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	// --- Tracing (Optional) ---
	var tracerShutdown func(context.Context) error
	if cfg.OtelEnabled {
		tp, err := tracing.InitTracer(context.Background(), serviceName, cfg.OtelCollectorAddr, cfg.DevelopmentMode)
		if err != nil {
			slog.Error("Failed to initialize tracing, continuing without it", "error", err)
		} else {
			tracerShutdown = tp.Shutdown
			slog.Info("✅ Tracing initialized", "collector", cfg.OtelCollectorAddr)
		}
	}

	// --- Rate Limiting ---
	rateLimiter, err := ratelimit.New(cfg.RateLimitAPI, cfg.RateLimitWs)
	if err != nil {
		slog.Error("Failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	// --- Core Signaling Wiring ---
	// Registry owns room lifecycle, coordinator owns the protocol, the
	// transport handler owns sockets. All state is in-process.
	reg := registry.New(cfg.RoomGracePeriod, cfg.RoomCap)
	coord := coordinator.New(reg)

	allowedOrigins := cfg.AllowedOriginList([]string{"http://localhost:3000"})
	wsHandler := transport.NewHandler(coord, cfg.PingPeriod, cfg.IdleTimeout, allowedOrigins, rateLimiter)
	adminHandler := admin.NewHandler(reg)

	// --- Set up Server ---
	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Cors
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	// Error handling and request correlation
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	if cfg.OtelEnabled {
		router.Use(otelgin.Middleware(serviceName))
	}

	// Routing
	router.GET("/rtc", wsHandler.ServeWs)
	router.GET("/", adminHandler.Banner)
	router.GET("/generate-code", rateLimiter.Middleware(), adminHandler.GenerateCode)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(coord)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	// Start the server.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Signaling server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// The context is used to inform the server it has 30 seconds to finish
	// the requests it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close all live signaling sessions, then stop pending room cleanups.
	coord.Shutdown(ctx)
	reg.Shutdown()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	// Flush any buffered spans
	if tracerShutdown != nil {
		if err := tracerShutdown(ctx); err != nil {
			slog.Error("Failed to shut down tracer provider:", "error", err)
		}
	}

	slog.Info("Server exiting")
}
