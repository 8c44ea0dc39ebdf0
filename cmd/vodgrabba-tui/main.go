// vodgrabba-tui is a terminal console for downloading Twitch VODs. It accepts
// the same commands as the vodgrabba CLI and shows ffmpeg output live.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/iconidentify/vodgrabba/cmd/vodgrabba-tui/internal/ui"
	"github.com/iconidentify/vodgrabba/internal/command"
	"github.com/iconidentify/vodgrabba/internal/config"
	"github.com/iconidentify/vodgrabba/internal/repository"
	"github.com/iconidentify/vodgrabba/internal/service"
	"github.com/iconidentify/vodgrabba/pkg/ffmpeg"
	"github.com/iconidentify/vodgrabba/pkg/twitch"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	verbose := flag.Bool("v", false, "Log debug output")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	settings, err := repository.NewSQLiteSettingsRepository(cfg.Storage.SettingsPath, cfg.Storage.SettingsPassphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening settings: %v\n", err)
		os.Exit(1)
	}
	defer settings.Close()

	app := ui.NewApp(Version)
	out := app.Output()

	// Anything written to the terminal directly would corrupt the screen.
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	converter := ffmpeg.NewConverter(cfg.Converter, logger)
	converter.SetOutput(out, out)

	svc := service.NewDownloadService(
		twitch.NewClient(cfg.Twitch, logger),
		converter,
		settings,
		nil,
		cfg.Storage,
		logger,
	)

	dispatcher := command.NewDispatcher(svc, out)
	dispatcher.SetTokenReader(app.PromptSecret)
	app.SetRunner(dispatcher)

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
