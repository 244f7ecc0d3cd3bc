package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/auction-api/internal/auction"
	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/bidding"
	"github.com/ksred/auction-api/internal/broadcast"
	"github.com/ksred/auction-api/internal/config"
	"github.com/ksred/auction-api/internal/database"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/order"
	"github.com/ksred/auction-api/pkg/logging"
	"github.com/ksred/auction-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// main initializes and runs the auction API server with graceful shutdown
// support. It wires the ledger, bid arbiter, outcome notifier and
// real-time broadcaster together and starts the auction close processor.
func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg)

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// The broadcast registry lives for the whole process; topics come and
	// go with their subscribers.
	registry := broadcast.NewRegistry()
	broadcastHandlers := broadcast.NewGinHandlers(registry)

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.TokenTTL())
	authHandlers := auth.NewGinHandlers(authService)
	registerDemoAccounts(authService)

	auctionService := auction.NewService(db)
	auctionHandlers := auction.NewGinHandlers(auctionService)

	biddingService := bidding.NewService(db, registry, cfg.LockWait())
	biddingHandlers := bidding.NewGinHandlers(biddingService)

	notificationService := notification.NewService(db)
	notificationHandlers := notification.NewGinHandlers(notificationService)

	orderService := order.NewService(db, registry)
	orderHandlers := order.NewGinHandlers(orderService)

	// Create and start the auction close processor
	closer := auction.NewProcessor(db, registry, cfg.CloserInterval())
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go closer.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authService, authHandlers, auctionHandlers, biddingHandlers,
		notificationHandlers, orderHandlers, broadcastHandlers)

	// Create server
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

	processorCancel()
	registry.Close()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// registerDemoAccounts seeds in-memory API credentials so the API can be
// exercised without a user-management service. Charlie is deliberately
// unverified to demonstrate the bid arbiter's verification rejection.
func registerDemoAccounts(authService *auth.Service) {
	for _, account := range []auth.Account{
		{APIKey: "seller-key", APISecret: "seller-secret", Identity: auth.Identity{UserID: "1", UserName: "Demo Seller", Verified: true}},
		{APIKey: "alice-key", APISecret: "alice-secret", Identity: auth.Identity{UserID: "2", UserName: "Alice", Verified: true}},
		{APIKey: "bob-key", APISecret: "bob-secret", Identity: auth.Identity{UserID: "3", UserName: "Bob", Verified: true}},
		{APIKey: "charlie-key", APISecret: "charlie-secret", Identity: auth.Identity{UserID: "4", UserName: "Charlie", Verified: false}},
		{APIKey: "admin-key", APISecret: "admin-secret", Identity: auth.Identity{UserID: "5", UserName: "Admin", Verified: true, Admin: true}},
	} {
		authService.Register(account)
	}
}

// setupRoutes configures all API endpoints and their handlers.
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Auction reads: Public listing and detail endpoints
// - Bidding, notifications, orders: Protected by JWT authentication
// - Admin routes: Protected by JWT plus the admin gate
// - Websocket: JWT-authenticated subscribe endpoint for the broadcaster
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	notificationHandlers *notification.GinHandlers,
	orderHandlers *order.GinHandlers,
	broadcastHandlers *broadcast.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public auction reads
		v1.GET("/auctions", auctionHandlers.ListAuctionsHandler())
		v1.GET("/auctions/:auction_id", auctionHandlers.GetAuctionHandler())
		v1.GET("/auctions/:auction_id/bids", auctionHandlers.ListBidsHandler())

		// Authenticated routes
		authed := v1.Group("")
		authed.Use(middleware.JWTAuth(authService))
		{
			authed.POST("/auctions", auctionHandlers.CreateAuctionHandler())
			authed.PUT("/auctions/:auction_id", auctionHandlers.UpdateAuctionHandler())
			authed.POST("/auctions/:auction_id/bids", biddingHandlers.PlaceBidHandler())

			authed.GET("/notifications/summary", notificationHandlers.SummaryHandler())
			authed.POST("/notifications/mark-read", notificationHandlers.MarkReadHandler())

			authed.POST("/orders", orderHandlers.CheckoutHandler())
			authed.GET("/orders/:order_id", orderHandlers.GetOrderHandler())

			authed.GET("/ws", broadcastHandlers.ServeHandler())
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(authService), middleware.AdminRequired())
		{
			admin.GET("/orders", orderHandlers.ListOrdersHandler())
			admin.PUT("/orders/:order_id/status", orderHandlers.UpdateStatusHandler())
			admin.DELETE("/auctions/:auction_id", auctionHandlers.DeleteAuctionHandler())
		}
	}
}
