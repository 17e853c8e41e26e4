package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market_go/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the yaml configuration")
	flag.Parse()

	// 1. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx, *configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Pprof Server (for performance profiling)
	if cfg.Server.PprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", cfg.Server.PprofAddr))
			if err := http.ListenAndServe(cfg.Server.PprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 4. Instrument registry, then scheduled refreshes
	bootstrap.LoadRegistry(ctx)
	bootstrap.Scheduler.Start()

	// 5. HTTP/WS entry layer
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- bootstrap.Server.Start()
	}()

	slog.InfoContext(ctx, "✨ market-go fully operational. Press Ctrl+C to exit.")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			slog.Error("HTTP server failed", slog.Any("error", err))
		}
	}

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bootstrap.Shutdown(shutdownCtx)
}
