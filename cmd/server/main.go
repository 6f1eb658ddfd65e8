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

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/unimak/dftrack/api"
	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/config"
	"github.com/unimak/dftrack/internal/dbconn"
	"github.com/unimak/dftrack/internal/slogging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dftrack: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := config.ParseFlags()
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if err := slogging.Initialize(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := slogging.Get()
	defer func() { _ = logger.Close() }()

	if cfg.GetLogLevel() == slogging.LogLevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := dbconn.NewGormDB(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := gormDB.Close(); err != nil {
			logger.Error("Error closing database: %v", err)
		}
	}()
	if err := gormDB.AutoMigrate(models.AllModels()...); err != nil {
		return err
	}

	redisDB, err := dbconn.NewRedisDB(cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisDB.Close(); err != nil {
			logger.Error("Error closing redis: %v", err)
		}
	}()

	if err := os.MkdirAll(cfg.Uploads.Root, 0o750); err != nil {
		return fmt.Errorf("failed to create uploads root %s: %w", cfg.Uploads.Root, err)
	}

	var metrics *api.Metrics
	if cfg.Server.MetricsEnabled {
		metrics = api.NewMetrics()
	}
	sessions := api.NewRedisSessionStore(redisDB.GetClient(), cfg.Session.TTL)
	server := api.NewServer(cfg, gormDB.DB(), sessions, metrics)

	srv := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server on %s (tls=%t, database=%s)", srv.Addr, cfg.Server.TLSEnabled, gormDB.DatabaseType())
		var err error
		if cfg.Server.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error: %v", err)
		return err
	}
	logger.Info("Server gracefully stopped")
	return nil
}
