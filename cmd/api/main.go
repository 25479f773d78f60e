package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/reze/internal/animate"
	"github.com/bobarin/reze/internal/api"
	"github.com/bobarin/reze/internal/config"
	"github.com/bobarin/reze/internal/credential"
	"github.com/bobarin/reze/internal/db"
	"github.com/bobarin/reze/internal/events"
	"github.com/bobarin/reze/internal/logging"
	"github.com/bobarin/reze/internal/services"
	"github.com/bobarin/reze/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(execute())
}

// execute returns the process exit code. Deferred cleanup in run and here
// completes before main exits.
func execute() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		FilePath:    cfg.LogFile,
		Development: cfg.LogDevelopment,
	})
	if err != nil {
		log.Printf("Failed to build logger: %v", err)
		return 1
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return 1
	}
	logger.Info("server exited")
	return 0
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting Reze studio API", zap.String("port", cfg.APIPort))

	gate := credential.NewGate(cfg.GeminiKey)
	if !gate.Available() {
		logger.Warn("no GEMINI_API_KEY set; clients must select a key before generating")
	}

	gemini := services.NewGeminiService(gate, services.GeminiOptions{
		ImageModel: cfg.ImageModel,
		EditModel:  cfg.EditModel,
		ChatModel:  cfg.ChatModel,
		VideoModel: cfg.VideoModel,
		Logger:     logger.Named("veo"),
	})

	var assistant services.Assistant = gemini
	if cfg.AssistantProvider == "openai" {
		assistant = services.NewOpenAIAssistant(cfg.OpenAIKey, cfg.OpenAIModel)
		logger.Info("assistant provider: OpenAI", zap.String("model", cfg.OpenAIModel))
	}

	var (
		observers []animate.Observer
		history   api.GenerationLog
		snapshots api.SnapshotStore
	)

	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		observers = append(observers, db.NewVideoRecorder(database, logger))
		history = database
		logger.Info("generation log enabled")
	}

	if cfg.RedisURL != "" {
		pub, err := events.New(cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		observers = append(observers, pub)
		snapshots = pub
		logger.Info("job events enabled", zap.String("channel", events.ChannelJobs))
	}

	sessions := session.NewRegistry(session.Options{
		Video:           gemini,
		Assistant:       assistant,
		Gate:            gate,
		Logger:          logger,
		Observers:       observers,
		PollInterval:    cfg.VideoPollInterval,
		MessageInterval: cfg.VideoMessageInterval,
		MaxPollDuration: cfg.VideoMaxPollDuration,
		IdleTTL:         cfg.SessionIdleTTL,
	})

	handler := api.NewHandler(api.Deps{
		Gate:       gate,
		Images:     gemini,
		Editor:     gemini,
		Downloader: gemini,
		Sessions:   sessions,
		History:    history,
		Snapshots:  snapshots,
		Logger:     logger,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		Logger:             logger,
	})

	if cfg.BackendAPIKey != "" {
		logger.Info("API key authentication enabled")
	} else {
		logger.Warn("no BACKEND_API_KEY set; API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("API server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
