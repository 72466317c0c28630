package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/asset-ledger/internal/adapter/handler"
	"github.com/rl1809/asset-ledger/internal/adapter/storage"
	"github.com/rl1809/asset-ledger/internal/auth"
	"github.com/rl1809/asset-ledger/internal/config"
	"github.com/rl1809/asset-ledger/internal/core/service"
	"github.com/rl1809/asset-ledger/internal/logger"
	"github.com/rl1809/asset-ledger/internal/metrics"
	"github.com/rl1809/asset-ledger/internal/port"
	"github.com/rl1809/asset-ledger/internal/seed"
)

const serviceName = "asset-ledger"

// store is what both the memory and SQL backends provide.
type store interface {
	port.LedgerRepository
	port.ReferenceRepository
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Fatal("Failed to read .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration.")
	}
	l := logger.CreateLogger(serviceName, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	var (
		st      store
		closeDB func() error
	)
	if cfg.StoreDriver == "memory" {
		st = storage.NewMemoryStore()
		closeDB = func() error { return nil }
		l.Warn("Using in-memory store, nothing survives a restart.")
	} else {
		sqlStore, err := storage.OpenSQLStore(ctx, cfg.StoreDriver, cfg.DatabaseDSN)
		if err != nil {
			l.WithError(err).Fatalf("Failed to open %s store.", cfg.StoreDriver)
		}
		st = sqlStore
		closeDB = sqlStore.Close
		l.Infof("Connected to %s.", cfg.StoreDriver)
	}

	// Initialize Redis
	var (
		rdb   *redis.Client
		cache port.CacheRepository
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			l.WithError(err).Fatal("Failed to connect redis.")
		}
		cache = storage.NewRedisAdapter(rdb)
		l.Info("Connected to redis.")
	}

	// Initialize services
	recorder := metrics.NewRecorder()
	ledgerCfg := service.LedgerConfig{
		CommitRetries: cfg.CommitRetries,
		LockTimeout:   cfg.LockTimeout,
		Metrics:       recorder,
	}
	if cache != nil {
		ledgerCfg.Cache = cache
		ledgerCfg.QueueSize = cfg.QueueSize
	}
	ledger := service.NewLedger(l, st, st, ledgerCfg)
	authz := service.NewAuthorizer(l)
	movements := service.NewMovementService(ledger, authz)
	queries := service.NewQueryService(ledger, st, authz)
	references := service.NewReferenceService(st, authz)
	authService := auth.NewService(l, st, references, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), cfg.AllowSignup)

	if cfg.SeedFile != "" {
		f, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			l.WithError(err).Fatal("Failed to read seed file.")
		}
		if err := seed.Apply(ctx, l, st, ledger, f); err != nil {
			l.WithError(err).Fatal("Failed to apply seed file.")
		}
		l.Infof("Applied seed file %s.", cfg.SeedFile)
	}

	// Start worker pool
	var wg sync.WaitGroup
	if queue := ledger.GetCommitQueue(); queue != nil {
		for i := 0; i < cfg.WorkerCount; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				service.WarmCache(l, id, queue, cache)
			}(i)
		}
		l.Infof("Started %d cache workers.", cfg.WorkerCount)
	}

	// Start gRPC server
	grpcServer := handler.NewGRPCServer(l, handler.NewGRPCHandler(l, movements, queries), authService.Tokens())
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		l.WithError(err).Fatal("Failed to listen.")
	}

	go func() {
		l.Infof("gRPC server listening on :%s.", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			l.WithError(err).Error("gRPC server error.")
		}
	}()

	// Start HTTP server
	httpHandler := handler.NewHTTPHandler(l, handler.HTTPDeps{
		Auth:        authService,
		Movements:   movements,
		Queries:     queries,
		References:  references,
		Metrics:     recorder.Handler(),
		CORSOrigins: cfg.CORSOrigins,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Infof("HTTP server listening on :%s.", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.WithError(err).Error("HTTP server error.")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.WithError(err).Warn("HTTP server did not stop cleanly.")
	}
	l.Info("HTTP server stopped.")

	grpcServer.GracefulStop()
	l.Info("gRPC server stopped.")

	// Close commit queue and wait for workers
	ledger.Close()
	wg.Wait()
	l.Info("Workers stopped.")

	if rdb != nil {
		rdb.Close()
	}
	if err := closeDB(); err != nil {
		l.WithError(err).Warn("Failed to close database.")
	}
	l.Info("Connections closed.")
}
