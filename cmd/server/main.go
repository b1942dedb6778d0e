package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/vidgrab/internal/api"
	"github.com/iconidentify/vidgrab/internal/api/handler"
	"github.com/iconidentify/vidgrab/internal/config"
	"github.com/iconidentify/vidgrab/internal/credentials"
	"github.com/iconidentify/vidgrab/internal/extractor"
	"github.com/iconidentify/vidgrab/internal/pacing"
	"github.com/iconidentify/vidgrab/internal/repository"
	"github.com/iconidentify/vidgrab/internal/service"
	"github.com/iconidentify/vidgrab/internal/worker"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidgrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting vidgrab",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Ensure the download directory exists
	store, err := repository.NewArtifactStore(cfg.Storage.DownloadDir)
	if err != nil {
		logger.Error("invalid download directory", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureDirectory(); err != nil {
		logger.Error("failed to create download directory", "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	index, err := repository.OpenArtifactIndex(startCtx, cfg.Index)
	cancelStart()
	if err != nil {
		logger.Error("failed to open artifact index", "backend", cfg.Index.Backend, "error", err)
		os.Exit(1)
	}
	defer index.Close()

	// Initialize dependencies
	jobRepo := repository.NewInMemoryJobRepository(repository.DefaultJobHistory)
	eventSvc := service.NewEventService(service.EventServiceConfig{
		RingBufferSize: cfg.Events.BufferSize,
	}, logger)
	creds := credentials.NewStore(cfg.Credentials, nil, logger)

	engine := extractor.NewClient(cfg.Extractor, logger,
		extractor.WithRequestPacer(pacing.NewRandom(cfg.Extractor.RequestSleepMin, cfg.Extractor.RequestSleepMax)),
		extractor.WithCredentials(creds, cfg.Credentials.PrivilegedHosts),
	)

	// Initialize services
	videoSvc := service.NewVideoService(service.VideoServiceConfig{
		Engine: engine,
		Store:  store,
		Index:  index,
		Jobs:   jobRepo,
		Events: eventSvc,
		Pacer:  pacing.NewRandom(cfg.Pacing.PreDownloadMin, cfg.Pacing.PreDownloadMax),
	}, logger)

	retentionSvc := service.NewRetentionService(cfg.Retention, store, index, eventSvc, logger)

	// Initialize handlers
	handlers := api.Handlers{
		Video:  handler.NewVideoHandler(videoSvc, cfg.Server.PathPrefix, logger),
		Events: handler.NewEventHandler(eventSvc, logger),
		Auth:   handler.NewAuthHandler(creds),
		Health: handler.NewHealthHandler(jobRepo, videoSvc, store.Root()),
	}
	if cfg.Storage.StaticMediaPath != "" {
		handlers.Static = handler.NewStaticHandler(cfg.Storage.StaticMediaPath, logger)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		PathPrefix:     cfg.Server.PathPrefix,
		APIKey:         cfg.Server.APIKey,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, handlers)

	// Start retention janitor
	var janitor *worker.Janitor
	if cfg.Retention.Enabled {
		janitor = worker.NewJanitor(worker.Config{Interval: cfg.Retention.SweepInterval}, retentionSvc, logger)
		janitor.Start()
	} else {
		logger.Info("retention disabled, downloads are kept until removed by hand")
	}

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server",
			"addr", srv.Addr,
			"path_prefix", cfg.Server.PathPrefix,
			"download_dir", store.Root(),
			"index", cfg.Index.Backend,
		)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if janitor != nil {
		if err := janitor.Stop(25 * time.Second); err != nil {
			logger.Error("janitor shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
