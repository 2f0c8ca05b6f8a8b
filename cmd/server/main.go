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

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"studio_app_echo/internal/config"
	"studio_app_echo/internal/handlers"
	"studio_app_echo/internal/logging"
	"studio_app_echo/internal/middleware"
	"studio_app_echo/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize Firebase
	var adminAuth services.AdminAuth
	authClient, err := services.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		logger.Warnw("Firebase initialization failed, admin API disabled", "error", err)
	} else {
		adminAuth = authClient
	}
	if len(cfg.AdminEmails) == 0 {
		logger.Warn("ADMIN_EMAILS is empty, nobody can use the admin API")
	}

	// Initialize Database
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, !cfg.IsProduction() && cfg.LogLevel == "debug", logger)
	if err != nil {
		logger.Fatalw("Failed to connect to database", "error", err)
	}
	if err := services.AutoMigrate(db, logger); err != nil {
		logger.Fatalw("Failed to run database migrations", "error", err)
	}

	// Initialize Redis; the API keeps working without it
	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warnw("Redis unavailable, caching disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	} else {
		logger.Warn("REDIS_URL not set, caching disabled")
	}

	if cfg.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, checkout requests will fail")
	}
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}
	gateway := services.NewStripeService(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)

	checkoutService := services.NewCheckoutService(db, gateway, cfg.AppURL, cfg.Stripe.Currency)
	reconciler := services.NewReconciliationService(db, cache, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.CustomErrorHandler(logger)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())

	handlers.RegisterRoutes(e, handlers.Routes{
		Checkout: handlers.NewCheckoutHandler(checkoutService),
		Webhook:  handlers.NewWebhookHandler(gateway, reconciler, logger),
		Catalog:  handlers.NewCatalogHandler(db, cache),
		Admin:    handlers.NewAdminHandler(db, cache, logger),
		Auth:     handlers.NewAuthHandler(adminAuth, cfg.IsProduction()),
	}, middleware.RequireAdmin(adminAuth, cfg.AdminEmails))

	// Start server
	go func() {
		logger.Infow("Server starting", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Graceful shutdown failed", "error", err)
	}
}
