package main

import (
	"context"
	"fmt"
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

	"github.com/collabboard/backend/go/internal/v1/config"
	"github.com/collabboard/backend/go/internal/v1/health"
	"github.com/collabboard/backend/go/internal/v1/logging"
	"github.com/collabboard/backend/go/internal/v1/middleware"
	"github.com/collabboard/backend/go/internal/v1/ratelimit"
	"github.com/collabboard/backend/go/internal/v1/room"
	"github.com/collabboard/backend/go/internal/v1/transport"
)

// hubStats adapts the hub and room service to the health probe.
type hubStats struct {
	hub *transport.Hub
	svc *room.Service
}

func (s *hubStats) ClientCount() int { return s.hub.ClientCount() }
func (s *hubStats) RoomCount() int   { return s.svc.RoomCount() }

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if err != nil {
		if err == config.ErrHelp {
			fmt.Print(config.Usage(os.Args[0]))
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n%s", err, config.Usage(os.Args[0]))
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Core services ---
	svc := room.NewService()
	guard, err := ratelimit.NewConnGuard(ratelimit.DefaultConnRate)
	if err != nil {
		slog.Error("Failed to create connection guard", "error", err)
		os.Exit(1)
	}
	hub := transport.NewHub(svc, guard, cfg.AllowedOrigins)

	// --- Set up server ---
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	router.Use(cors.New(corsConfig))
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())

	// Health check endpoints
	healthHandler := health.NewHandler(&hubStats{hub: hub, svc: svc})
	router.GET("/health", healthHandler.Check)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Every other path upgrades to WebSocket.
	router.NoRoute(hub.ServeWs)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful shutdown ---
	go func() {
		slog.Info("Whiteboard server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close all active WebSocket connections gracefully.
	if err := hub.Shutdown(ctx); err != nil {
		slog.Error("Error during hub shutdown", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exiting")
}
