package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"swipeshop/internal/adapter/repo"
	"swipeshop/internal/catalog"
	"swipeshop/internal/compositor"
	"swipeshop/internal/domain"
	"swipeshop/internal/generation"
	"swipeshop/internal/http/handlers"
	httpapi "swipeshop/internal/http/httpapi"
	"swipeshop/internal/infra"
	"swipeshop/internal/infra/credentials"
	"swipeshop/internal/infra/geoip"
	"swipeshop/internal/middleware"
	"swipeshop/internal/providers/copywriter"
	"swipeshop/internal/providers/genai"
	"swipeshop/internal/session"
	"swipeshop/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if dbpool != nil {
		defer dbpool.Close()
	}

	ledger, keys, err := openLedger(ctx, dbpool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare asset ledger")
	}

	app, sessions, err := buildApp(ctx, cfg, logger, dbpool, ledger, keys)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build application")
	}

	go sessions.Run(ctx)

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  lookup,
		RateLimit:      cfg.RateLimitGenerate,
		RateWindow:     cfg.RateLimitWindow,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Bool("database", dbpool != nil).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// openLedger picks the Postgres ledger when a pool is available and the
// in-memory one otherwise.
func openLedger(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) (domain.AssetLedger, *credentials.Store, error) {
	if pool == nil {
		logger.Warn().Msg("DATABASE_URL not set, asset ledger kept in memory")
		return repo.NewMemoryLedger(), nil, nil
	}
	runner := infra.NewSQLRunner(pool, logger.With().Str("component", "sql").Logger())
	ledger := repo.NewAssetLedger(runner)
	if err := ledger.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	keys := credentials.NewStore(runner)
	if err := keys.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	return ledger, keys, nil
}

func buildApp(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, pool *pgxpool.Pool, ledger domain.AssetLedger, keys *credentials.Store) (*handlers.App, *session.Manager, error) {
	cat, err := catalog.Default()
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		return nil, nil, err
	}
	uploads := storage.NewUploads(store, storage.UploadOptions{
		UploadBaseURL: cfg.PublicBaseURL + "/v1/uploads",
		MaxBytes:      cfg.UploadMaxBytes,
		Ledger:        ledger,
		Logger:        &logger,
	})

	geminiKey, err := keys.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("could not read stored gemini key")
	}
	openaiKey, err := keys.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("could not read stored openai key")
	}

	writer, err := copywriter.New(ctx, copywriter.Options{
		Provider:      cfg.CopyProvider,
		GeminiAPIKey:  geminiKey,
		GeminiModel:   cfg.GeminiTextModel,
		GeminiBaseURL: cfg.GeminiBaseURL,
		OpenAIAPIKey:  openaiKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIOrg:     cfg.OpenAIOrg,
		Logger:        &logger,
	})
	if err != nil {
		return nil, nil, err
	}

	images, err := genai.NewClient(genai.Options{
		APIKey:  geminiKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiImageModel,
		Logger:  &logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if images.Synthetic() {
		logger.Warn().Msg("GEMINI_API_KEY not set, backgrounds are rendered locally")
	}

	gen, err := generation.NewService(generation.Options{
		Catalog:      cat,
		Copywriter:   writer,
		Backgrounds:  images,
		Store:        store,
		Ledger:       ledger,
		Logger:       &logger,
		Timeout:      cfg.GenerationTimeout,
		VariantCount: cfg.VariantCount,
	})
	if err != nil {
		return nil, nil, err
	}

	composer := compositor.New(
		compositor.NewSourceLoader(store, nil, cfg.ImageSourceAllowlist),
		compositor.Options{Width: cfg.ExportWidth, Quality: cfg.ExportQuality, Logger: &logger},
	)

	sessions, err := session.NewManager(&session.Deps{
		Catalog:   cat,
		Generator: gen,
		Uploader:  uploads,
		Composer:  composer,
		Store:     store,
		Ledger:    ledger,
		Logger:    &logger,
	}, cfg.SessionTTL)
	if err != nil {
		return nil, nil, err
	}

	app := &handlers.App{
		Catalog:  cat,
		Sessions: sessions,
		Variants: gen,
		Uploads:  uploads,
		Store:    store,
		Ledger:   ledger,
		Logger:   logger,
	}
	if pool != nil {
		app.Ping = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		}
	}
	return app, sessions, nil
}
