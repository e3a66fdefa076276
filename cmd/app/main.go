package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction_go/internal/api"
	"auction_go/internal/app"
	"auction_go/internal/domain"
	"auction_go/internal/engine"
	"auction_go/internal/gateway/ws"

	"github.com/gin-gonic/gin"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Notification Hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// 5. Bid Arbitration Engine
	rules := engine.Rules{
		MinIncrement:        cfg.MinIncrement(),
		LastMinuteThreshold: cfg.LastMinuteThreshold(),
		Extension:           cfg.Extension(),
	}
	var archiver domain.BidArchiver
	if bootstrap.Archive != nil {
		go bootstrap.Archive.Run(ctx)
		archiver = bootstrap.Archive
	}
	auctioneer := engine.NewAuctioneer(rules, domain.SystemClock{}, archiver, hub.BroadcastClose)
	slog.InfoContext(ctx, "✅ Bid arbitration engine ready")

	// 6. Seed sample items (background, like an initial admin import)
	go bootstrap.SeedItems(ctx, auctioneer)

	// 7. Lifecycle Sweeper and time warnings
	sweeper := engine.NewSweeper(auctioneer, cfg.SweepInterval())
	go sweeper.Run(ctx)

	wsHandler := ws.NewHandler(hub, auctioneer, cfg.LastMinuteThreshold(), cfg.Server.AllowedOrigins)
	go wsHandler.RunTimeWarnings(ctx, cfg.TimeWarningInterval())

	// 8. HTTP API
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewAuctionHandler(auctioneer, hub, bootstrap.Archive, bootstrap.Images)
	api.Register(router, handler, wsHandler.HandleConnection, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		slog.Info("✨ Live auction server operational", slog.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", slog.Any("error", err))
	}
	if bootstrap.Archive != nil {
		bootstrap.Archive.Wait() // flush queued archive writes
	}
}
