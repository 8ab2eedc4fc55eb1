package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amaumene/podcastarr/internal/api"
	"github.com/amaumene/podcastarr/internal/config"
	"github.com/amaumene/podcastarr/internal/models"
	"github.com/amaumene/podcastarr/internal/processor"
	"github.com/amaumene/podcastarr/internal/scheduler"
	"github.com/amaumene/podcastarr/internal/services/feed"
	"github.com/amaumene/podcastarr/internal/services/media"
	"github.com/amaumene/podcastarr/internal/services/storage"
	"github.com/amaumene/podcastarr/internal/services/youtube"
	"github.com/amaumene/podcastarr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting Podcastarr")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize services
	storageClient, err := storage.NewClient(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage client: %w", err)
	}
	logger.Info("Storage client initialized")

	youtubeClient := youtube.NewClient(cfg, logger)
	mediaClient := media.NewClient(cfg, logger)
	downloader := media.NewDownloader(logger)
	publisher := feed.NewPublisher(db, storageClient, cfg.PublicURL, logger)
	logger.Info("Services initialized")

	// 5. Initialize job processor
	proc := processor.NewProcessor(db, youtubeClient, mediaClient, downloader, storageClient, publisher, logger)
	logger.Info("Job processor initialized")

	// 6. Initialize scheduler
	sched := scheduler.NewScheduler(db, proc, cfg.PollingIntervalMinutes, cfg.JobTimeoutMinutes, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. Initialize HTTP server
	server := api.NewServer(cfg, db, logger)

	// Start server in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Podcastarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("Podcastarr stopped")
	return nil
}
