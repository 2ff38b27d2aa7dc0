package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrosetti/forchetta/internal/auth"
	"github.com/mrosetti/forchetta/internal/dispatch"
	"github.com/mrosetti/forchetta/internal/logger"
	"github.com/mrosetti/forchetta/internal/server"
	"github.com/mrosetti/forchetta/pkg/config"
	"github.com/mrosetti/forchetta/pkg/metrics"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("forchetta %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}
	defer logger.Close()

	if err := run(cfg); err != nil {
		logger.Error("%v", err)
		logger.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger.Info("forchetta %s starting", version)

	// Shut down on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := config.CreateStore(&cfg.Store)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("close store: %v", err)
		}
	}()

	uploader, err := config.CreateBackupUploader(ctx, st, &cfg.Store.Backup)
	if err != nil {
		return fmt.Errorf("configure backups: %w", err)
	}
	if uploader != nil {
		go uploader.Run(ctx)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer := metrics.NewHTTPServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("metrics server: %v", err)
			}
		}()
	}

	dispatcher := dispatch.New(st, auth.NewVerifier())
	srv := server.New(cfg.Server, dispatcher, metrics.NewServerMetrics())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(context.Background())
	}()

	select {
	case err := <-serveErr:
		// Only a listener failure ends Serve before a signal arrives.
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received: %v", ctx.Err())
	if err := srv.Stop(nil); err != nil {
		logger.Warn("shutdown: %v", err)
	}
	if err := <-serveErr; err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	logger.Info("forchetta stopped")
	return nil
}
