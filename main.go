package main

import (
	"embed"
	log "log/slog"
	"os"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"speechpanel/internal/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides SPEECHPANEL_LOG_LEVEL)")
	cli.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: cfg.Log.SlogLevel(),
	})))
	log.Info("Booting up", "backend", cfg.Backend.URL)

	app := NewApp(cfg)
	err = wails.Run(&options.App{
		Title:  "Speech recognition",
		Width:  720,
		Height: 640,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Error("Application stopped", "err", err)
		os.Exit(1)
	}
}
