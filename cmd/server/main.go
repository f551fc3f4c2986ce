package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/lunaris-colony/nexus-api/internal/auth"
	"github.com/lunaris-colony/nexus-api/internal/claims"
	"github.com/lunaris-colony/nexus-api/internal/config"
	"github.com/lunaris-colony/nexus-api/internal/database"
	"github.com/lunaris-colony/nexus-api/internal/economy"
	"github.com/lunaris-colony/nexus-api/internal/marketplace"
	"github.com/lunaris-colony/nexus-api/internal/pricing"
	"github.com/lunaris-colony/nexus-api/internal/reputation"
	"github.com/lunaris-colony/nexus-api/internal/stream"
	"github.com/lunaris-colony/nexus-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the colony economy API server with graceful
// shutdown support
func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	hub := stream.NewHub()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	reputationService := reputation.NewService(db)
	reputationHandlers := reputation.NewGinHandlers(reputationService)

	economyService := economy.NewService(db)
	economyHandlers := economy.NewGinHandlers(economyService)

	claimsService := claims.NewService(db, reputationService, hub)
	claimsHandlers := claims.NewGinHandlers(claimsService)

	marketplaceService := marketplace.NewService(db, reputationService)
	marketplaceHandlers := marketplace.NewGinHandlers(marketplaceService)

	pricingService := pricing.NewService(db, hub, nil)
	pricingHandlers := pricing.NewGinHandlers(pricingService)

	// Start the listing expiry sweep
	sweepProcessor := marketplace.NewProcessor(marketplaceService, cfg.Market.SweepInterval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go sweepProcessor.Start(processorCtx)

	// Start the price fluctuation scheduler
	priceScheduler := pricing.NewScheduler(pricingService)
	if err := priceScheduler.Start(cfg.Market.PriceUpdateSchedule); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to start price scheduler")
	}
	defer priceScheduler.Stop()

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.Auth.JWTSecret, hub,
		authHandlers, claimsHandlers, marketplaceHandlers,
		reputationHandlers, economyHandlers, pricingHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// Routes are grouped by functionality:
// - Auth routes: public token issuance
// - Colony routes: claims, marketplace, reputation, balances, prices (JWT)
// - Internal routes: operational triggers (internal auth)
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	hub *stream.Hub,
	authHandlers *auth.GinHandlers,
	claimsHandlers *claims.GinHandlers,
	marketplaceHandlers *marketplace.GinHandlers,
	reputationHandlers *reputation.GinHandlers,
	economyHandlers *economy.GinHandlers,
	pricingHandlers *pricing.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Daily resource routes
		resources := v1.Group("/resources")
		resources.Use(middleware.JWTAuth(jwtSecret))
		{
			resources.GET("", claimsHandlers.PoolStatusHandler())
			resources.GET("/stream", claimsHandlers.StreamPoolsHandler(hub))
			resources.GET("/claims/history", claimsHandlers.ClaimHistoryHandler())
			resources.POST("/:resource_type/claim", claimsHandlers.ClaimHandler())
		}

		// Marketplace routes
		market := v1.Group("/marketplace")
		market.Use(middleware.JWTAuth(jwtSecret))
		{
			market.GET("/listings", marketplaceHandlers.ListActiveHandler())
			market.POST("/listings", marketplaceHandlers.CreateListingHandler())
			market.GET("/listings/mine", marketplaceHandlers.MyListingsHandler())
			market.POST("/listings/:listing_id/purchase", marketplaceHandlers.PurchaseHandler())
			market.POST("/listings/:listing_id/cancel", marketplaceHandlers.CancelHandler())
			market.GET("/trades", marketplaceHandlers.TradeHistoryHandler())
		}

		// Reputation, balances and prices
		colony := v1.Group("")
		colony.Use(middleware.JWTAuth(jwtSecret))
		{
			colony.GET("/reputation", reputationHandlers.GetReputationHandler())
			colony.GET("/balances", economyHandlers.GetBalancesHandler())
			colony.GET("/market/prices", pricingHandlers.GetPricesHandler())
			colony.GET("/market/prices/stream", pricingHandlers.StreamPricesHandler(hub))
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/market/prices/update", pricingHandlers.UpdatePricesHandler())
			internal.POST("/marketplace/sweep", marketplaceHandlers.SweepHandler())
		}
	}
}
