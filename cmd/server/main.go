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

	"github.com/iconidentify/vodgrabba/internal/api"
	"github.com/iconidentify/vodgrabba/internal/api/handler"
	"github.com/iconidentify/vodgrabba/internal/config"
	"github.com/iconidentify/vodgrabba/internal/repository"
	"github.com/iconidentify/vodgrabba/internal/service"
	"github.com/iconidentify/vodgrabba/internal/worker"
	"github.com/iconidentify/vodgrabba/pkg/ffmpeg"
	"github.com/iconidentify/vodgrabba/pkg/twitch"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vodgrabba-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting vodgrabba server",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid server config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	settings, err := repository.NewSQLiteSettingsRepository(cfg.Storage.SettingsPath, cfg.Storage.SettingsPassphrase)
	if err != nil {
		logger.Error("failed to open settings", "error", err)
		os.Exit(1)
	}
	defer settings.Close()

	// ffmpeg output would interleave with JSON logs; send it to stderr only.
	converter := ffmpeg.NewConverter(cfg.Converter, logger)
	converter.SetOutput(nil, os.Stderr)

	jobRepo := repository.NewInMemoryJobRepository()
	downloadSvc := service.NewDownloadService(
		twitch.NewClient(cfg.Twitch, logger),
		converter,
		settings,
		jobRepo,
		cfg.Storage,
		logger,
	)

	router := api.NewRouter(
		handler.NewDownloadHandler(downloadSvc, logger),
		handler.NewAuthTokenHandler(downloadSvc, logger),
		handler.NewHealthHandler(jobRepo),
		cfg.Server.APIKey,
		logger,
	)

	pool := worker.NewPool(
		worker.Config{
			Workers:      cfg.Worker.Count,
			PollInterval: cfg.Worker.PollInterval,
		},
		jobRepo,
		downloadSvc,
		logger,
	)
	pool.Start()

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Running conversions are canceled; their jobs are recorded as failed.
	if err := pool.Stop(25 * time.Second); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
