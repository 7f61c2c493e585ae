package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mossy-p/castiq/config"
	"github.com/mossy-p/castiq/internal/assets"
	"github.com/mossy-p/castiq/internal/handlers"
	"github.com/mossy-p/castiq/internal/logger"
	"github.com/mossy-p/castiq/internal/pipeline"
	"github.com/mossy-p/castiq/internal/process"
	"github.com/mossy-p/castiq/internal/redis"
	"github.com/mossy-p/castiq/internal/signaling"
	"github.com/mossy-p/castiq/internal/storage"
	"github.com/mossy-p/castiq/internal/store"
	"github.com/mossy-p/castiq/internal/summarizer"
	"github.com/mossy-p/castiq/internal/transcriber"
	"github.com/rs/zerolog/log"
)

// Store is what the server needs from the presence/job backend.
type Store interface {
	store.PresenceStore
	store.JobStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info", "console")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st Store = store.NewMemory()
	if cfg.Redis.Enabled {
		rs, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rs.Close()
		if err := rs.ClearPresence(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to reset presence set")
		}
		st = rs
		log.Info().Str("host", cfg.Redis.Host).Msg("Redis connection established")
	} else {
		log.Info().Msg("Redis disabled, using in-memory store")
	}

	gateway, err := newGateway(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up storage")
	}

	backend, err := newSummarizerBackend(ctx, cfg.Summarizer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up summarizer")
	}
	sum := summarizer.New(backend, summarizer.Options{
		ChunkChars:   cfg.Summarizer.ChunkChars,
		ExcerptChars: cfg.Summarizer.ExcerptChars,
		Fast:         summarizer.Profile{Model: cfg.Summarizer.FastModel, MaxLength: cfg.Summarizer.FastMaxLength, MinLength: cfg.Summarizer.FastMinLength},
		Merge:        summarizer.Profile{Model: cfg.Summarizer.MergeModel, MaxLength: cfg.Summarizer.MergeMaxLength, MinLength: cfg.Summarizer.MergeMinLength},
		Retry: summarizer.RetryPolicy{
			MaxAttempts: cfg.Summarizer.MaxAttempts,
			BaseBackoff: cfg.Summarizer.BaseBackoff,
			MaxBackoff:  cfg.Summarizer.MaxBackoff,
		},
	})

	runner := process.NewExecRunner(cfg.Pipeline.DiagnosticLines)
	render := pipeline.NewRenderStage(gateway, runner, cfg.Pipeline.FFmpegPath, cfg.Render, cfg.Pipeline.TempDir, cfg.Pipeline.OutputDir)
	transcribe := pipeline.NewTranscribeStage(gateway, runner, cfg.Pipeline.FFmpegPath,
		transcriber.New(cfg.Transcriber.URL, cfg.Transcriber.Timeout), cfg.Pipeline.TempDir)
	orchestrator := pipeline.New(gateway, render, transcribe, sum, st, cfg.Pipeline.MaxConcurrentJobs)

	monitor, err := assets.New(cfg.Render.IntroPath, cfg.Render.OutroPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start asset monitor")
	}
	defer monitor.Stop()
	go func() {
		if err := monitor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Asset monitor stopped")
		}
	}()
	if !monitor.Ready() {
		log.Warn().Interface("assets", monitor.Status()).Msg("Render assets missing, /render will fail until they exist")
	}

	registry := signaling.NewRegistry()
	router := handlers.NewRouter(handlers.Deps{
		Config:   cfg,
		Registry: registry,
		Relay:    signaling.NewRelay(registry),
		Presence: st,
		Pipeline: orchestrator,
		Assets:   monitor,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("Starting CastIQ server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func newGateway(cfg config.StorageConfig) (storage.Gateway, error) {
	switch cfg.Backend {
	case "http":
		return storage.NewHTTP(cfg.URL, cfg.Bucket, cfg.Key, cfg.Timeout), nil
	default:
		return storage.NewDisk(cfg.Dir)
	}
}

func newSummarizerBackend(ctx context.Context, cfg config.SummarizerConfig) (summarizer.Backend, error) {
	switch cfg.Backend {
	case "gemini":
		return summarizer.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.Timeout)
	default:
		return summarizer.NewHFClient(cfg.URL, cfg.Token, cfg.Timeout), nil
	}
}
