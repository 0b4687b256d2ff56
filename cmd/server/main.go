package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docpane/internal/api"
	"github.com/dgallion1/docpane/internal/config"
	"github.com/dgallion1/docpane/internal/parser"
	"github.com/dgallion1/docpane/internal/proxy"
	"github.com/dgallion1/docpane/internal/workspace"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Commit latencies are shared by every document session.
	commits := proxy.NewCommitStats(cfg.CommitStatsWindow)

	docs, err := workspace.New(cfg.DocumentDir, cfg.SessionTTL, commits,
		parser.Options{PDFTextFallback: cfg.PDFFallbackPdftotext}, log)
	if err != nil {
		log.Error("open workspace", "error", err)
		os.Exit(1)
	}
	docs.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(docs, commits, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ActionTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		docs.Stop()
	}()

	log.Info("starting docpane", "port", cfg.Port, "document_dir", cfg.DocumentDir)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
