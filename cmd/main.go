package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"oracle-network/config"
	"oracle-network/db"
	"oracle-network/handlers"
	"oracle-network/logger"
	"oracle-network/metrics"
	"oracle-network/middleware"
	"oracle-network/network"
	"oracle-network/repository"
	"oracle-network/routers"
)

func main() {
	configPath := pflag.String("config", "config/config.yaml", "path to the YAML config file")
	pflag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Logger.Sync()

	logger.Logger.Info("Starting oracle network server...")

	// Connect to LevelDB
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path, cfg.LevelDB.CacheEntries)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	repo := repository.NewRepository(ldb)
	n := network.New(repo)

	if cfg.Network.Bootstrap {
		if err := bootstrap(n, cfg.Network); err != nil {
			logger.Logger.Fatal("Failed to bootstrap network", zap.Error(err))
		}
	}

	h := handlers.NewHandler(n)

	// Setup router
	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler, middleware.Logging())
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	r.Use(limiter.Handler)
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Error("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", cfg.Server.Port))

	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Reset(10000)
			case <-stopCleanup:
				return
			}
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Warn("Graceful shutdown failed", zap.Error(err))
	}
}

// bootstrap initializes the network from config on first start. An already
// initialized store keeps its persisted configuration.
func bootstrap(n *network.Network, nc config.NetworkConfig) error {
	_, err := n.InitializeWithThresholds(nc.Admin, nc.Arbiters, network.Thresholds{
		MinSubmissions: nc.MinSubmissions,
		MinReputation:  nc.MinReputation,
		MaxPrice:       nc.MaxPrice,
	})
	if !errors.Is(err, network.ErrAlreadyInitialized) {
		return err
	}

	stored, err := n.Config()
	if err != nil {
		return err
	}
	if stored.MinSubmissions != nc.MinSubmissions ||
		stored.MinReputation != nc.MinReputation ||
		stored.MaxPrice != nc.MaxPrice {
		logger.Logger.Warn("Stored network config differs from config file; keeping stored values",
			zap.Uint32("min_submissions", stored.MinSubmissions),
			zap.Int64("min_reputation", stored.MinReputation),
			zap.Int64("max_price", stored.MaxPrice))
		return nil
	}
	logger.Logger.Info("Network already initialized, keeping stored config")
	return nil
}
