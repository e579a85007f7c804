package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/use-agent/pagebrief/api"
	"github.com/use-agent/pagebrief/api/handler"
	"github.com/use-agent/pagebrief/api/middleware"
	"github.com/use-agent/pagebrief/bot"
	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/pipeline"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pagebrief starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"fetchMode", string(cfg.Fetch.Mode),
		"timeout", cfg.Fetch.Timeout,
	)

	// ── 3. Validate config and assemble the pipeline ────────────────
	// The browser, if any, launches lazily on the first request.
	p, handle, err := pipeline.FromConfig(cfg)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	var stats handler.StatsFunc
	if handle != nil {
		defer func() {
			if err := handle.Close(); err != nil {
				slog.Warn("browser close failed", "error", err)
			}
		}()
		stats = handle.Stats
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	limiters := middleware.NewLimiters(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go limiters.SweepEvery(5*time.Minute, ctx.Done())
	router := api.NewRouter(p, stats, limiters, cfg, startTime)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Start Telegram bot (optional) ────────────────────────────
	var wg sync.WaitGroup
	if cfg.Bot.Token != "" {
		b, err := bot.New(cfg.Bot, p)
		if err != nil {
			slog.Error("failed to start telegram bot", "error", err)
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Run(ctx); err != nil {
				slog.Error("telegram bot stopped", "error", err)
			}
		}()
	} else {
		slog.Info("TELEGRAM_BOT_TOKEN not set, telegram bot disabled")
	}

	// ── 7. Graceful shutdown ────────────────────────────────────────
	<-ctx.Done()
	slog.Info("shutdown signal received")

	// Give in-flight HTTP requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	wg.Wait()

	// handle.Close() runs via defer and kills Chrome.
	slog.Info("pagebrief stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
