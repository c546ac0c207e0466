package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/resumekit/interview-agent/internal/analysis"
	"github.com/resumekit/interview-agent/internal/config"
	"github.com/resumekit/interview-agent/internal/content"
	"github.com/resumekit/interview-agent/internal/httpserver"
	"github.com/resumekit/interview-agent/internal/logger"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	var gen httpserver.QuestionGenerator
	if g, err := content.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, zlog); err != nil {
		zlog.Warn("question generator disabled", zap.Error(err))
	} else {
		gen = g
	}

	var analyzer httpserver.ConversationAnalyzer
	if a, err := analysis.NewAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, cfg.AnalysisCacheDir, zlog); err != nil {
		zlog.Warn("conversation analyzer disabled", zap.Error(err))
	} else {
		analyzer = a
	}

	srv := httpserver.New(cfg, gen, analyzer, zlog)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", cfg.HTTPAddress))
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	case sig := <-sigChan:
		zlog.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
}
