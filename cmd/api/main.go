package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"longvideo/internal/archive"
	"longvideo/internal/http/handlers"
	httpapi "longvideo/internal/http/httpapi"
	"longvideo/internal/infra"
	"longvideo/internal/infra/credentials"
	"longvideo/internal/orchestrator"
	"longvideo/internal/providers/genai"
	"longvideo/internal/registry"
	"longvideo/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiKey := cfg.GeminiAPIKey
	var recorder *archive.Postgres
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()

		runner := infra.NewSQLRunner(dbpool, logger.With().Str("component", "sql").Logger())
		recorder = archive.NewPostgres(runner)
		if err := recorder.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare archive schema")
		}
		creds := credentials.NewStore(runner)
		if err := creds.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare credentials schema")
		}
		if apiKey, err = creds.ResolveGeminiAPIKey(ctx, apiKey); err != nil {
			logger.Warn().Err(err).Msg("failed to load stored gemini api key")
		}
	}

	genaiLogger := logger.With().Str("component", "genai").Logger()
	gateway, err := genai.NewClient(genai.Options{
		APIKey:  apiKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.VeoModel,
		Logger:  &genaiLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build veo client")
	}
	if gateway.Synthetic() {
		logger.Warn().Msg("GEMINI_API_KEY not set; serving synthetic videos")
	}

	store, err := storage.NewFileStore(cfg.OutputDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare output directory")
	}

	registryLogger := logger.With().Str("component", "registry").Logger()
	reg := registry.New(registry.Options{
		Retention:     cfg.OperationRetention,
		SweepInterval: cfg.SweepInterval,
		RemoveFile:    store.Remove,
		Logger:        &registryLogger,
	})

	orchLogger := logger.With().Str("component", "orchestrator").Logger()
	orchOpts := orchestrator.Options{
		Gateway:        gateway,
		Registry:       reg,
		Store:          store,
		Logger:         &orchLogger,
		PollInterval:   cfg.PollInterval,
		SegmentTimeout: cfg.SegmentTimeout,
	}
	if recorder != nil {
		orchOpts.Archive = recorder
	}
	orch, err := orchestrator.New(context.Background(), orchOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	app := handlers.NewApp(cfg, logger, reg, orch)
	if recorder != nil {
		app.History = recorder
	}

	router := httpapi.NewRouter(app, routerOptions(cfg, logger))

	server := infra.NewHTTPServer(cfg, router, logger)
	logger.Info().
		Str("model", gateway.Model()).
		Int("max_duration_seconds", cfg.MaxVideoDuration).
		Msg("starting long video api")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("orchestrator did not drain before timeout")
	}
	logger.Info().Msg("server stopped")
}

func routerOptions(cfg *infra.Config, logger infra.Logger) httpapi.Options {
	return httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		OutputDir:       cfg.OutputDir,
		OutputURLPrefix: cfg.OutputURLPrefix,
		DownloadTimeout: cfg.HTTPDownloadTimeout,
	}
}
