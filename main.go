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

	"flightfinder/airports"
	"flightfinder/config"
	"flightfinder/database"
	"flightfinder/handlers"
	"flightfinder/metrics"
	"flightfinder/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file (ignored in production where env vars are set directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration:\n%v", err)
	}
	log.Printf("⚙️  Config: %s", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	directory, err := loadDirectory(ctx, cfg.Directory)
	if err != nil {
		log.Fatalf("❌ Failed to load airport directory: %v", err)
	}
	log.Printf("✅ Airport directory loaded: %d cities", directory.Len())

	m := metrics.New()

	amadeus := services.NewAmadeusClient(cfg.Amadeus, services.WithObserver(m))
	warmCtx, cancel := context.WithTimeout(ctx, cfg.Amadeus.Timeout)
	if err := amadeus.Warm(warmCtx); err != nil {
		log.Printf("⚠️  Amadeus token pre-fetch failed, will retry on first search: %v", err)
	} else {
		log.Printf("✅ Amadeus client ready (%s)", cfg.Amadeus.Environment)
	}
	cancel()

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(), m.Middleware())

	// Trusted proxies (the host platform sits behind a proxy)
	r.SetTrustedProxies([]string{"0.0.0.0/0"})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handlers.NewHandler(directory, amadeus, m).Register(r)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Flight Finder starting on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
}

// loadDirectory prefers the database, then a file, then the built-in table.
func loadDirectory(ctx context.Context, cfg config.DirectoryConfig) (*airports.Directory, error) {
	switch {
	case cfg.DatabaseURL != "":
		return database.LoadDirectory(ctx, cfg.DatabaseURL)
	case cfg.Path != "":
		return airports.LoadFile(cfg.Path)
	default:
		return airports.Embedded()
	}
}
