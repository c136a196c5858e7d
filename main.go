package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/topi314/campus-events/internal/xslog"
	"github.com/topi314/campus-events/server"
	"github.com/topi314/campus-events/server/web"
)

func main() {
	cfgPath := flag.String("config", "campus-events.toml", "path to the config file")
	flag.Parse()

	cfg, err := server.LoadConfig(*cfgPath)
	if err != nil {
		slog.Error("Failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	setupLogger(cfg.Log)
	slog.Info("Starting campus-events...", slog.String("config", *cfgPath))
	slog.Info("Config loaded", slog.String("config", cfg.String()))

	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}
	srv.Server.Handler = web.Routes(srv)

	srv.Start()
	defer srv.Stop()

	slog.Info("Server started", slog.String("addr", cfg.Server.Addr))

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGTERM, syscall.SIGINT)
	<-s
}

func setupLogger(cfg server.LogConfig) {
	opts := &slog.HandlerOptions{
		AddSource: cfg.AddSource,
		Level:     cfg.Level,
	}

	var handler slog.Handler
	switch cfg.Format {
	case server.LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	// health checks are only interesting when debugging
	if cfg.Level > slog.LevelDebug {
		handler = xslog.NewFilterHandler(handler, xslog.DropAttrValues(slog.LevelWarn, "path", "/health"))
	}
	slog.SetDefault(slog.New(handler))
}
