package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"luxgen/internal/adapter/repo"
	"luxgen/internal/compose"
	"luxgen/internal/domain"
	"luxgen/internal/generation"
	"luxgen/internal/http/handlers"
	"luxgen/internal/http/httpapi"
	"luxgen/internal/infra"
	"luxgen/internal/ledger"
	"luxgen/internal/middleware"
	"luxgen/internal/persist"
	"luxgen/internal/providers"
	falprovider "luxgen/internal/providers/fal"
	lumaprovider "luxgen/internal/providers/luma"
	replicateprovider "luxgen/internal/providers/replicate"
	"luxgen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	jobs := repo.NewJobRepository(runner)
	creditLedger := ledger.New(runner, logger)

	store := newObjectStore(cfg, logger)
	persister := persist.New(store, nil, logger)

	adapters := buildAdapters(cfg, &logger)
	if len(adapters) == 0 {
		logger.Fatal().Msg("no provider credentials configured")
	}

	composer := buildComposer(cfg, store, logger)
	if composer == nil {
		logger.Warn().Msg("composition pipeline disabled: segmentation or fal credentials missing")
	}

	orchestrator, err := generation.NewOrchestrator(generation.OrchestratorOptions{
		Ledger:          creditLedger,
		Jobs:            jobs,
		Adapters:        adapters,
		Composer:        composer,
		Logger:          logger,
		DefaultProvider: defaultProvider(adapters),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	poller, err := generation.NewPoller(generation.PollerOptions{
		Jobs:      jobs,
		Adapters:  adapters,
		Ledger:    creditLedger,
		Persister: persister,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build poller")
	}

	var rateCounter middleware.Counter
	if rdb, err := infra.NewRedisClient(ctx, cfg); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-process rate limiter")
	} else if rdb != nil {
		rateCounter = middleware.NewRedisCounter(rdb)
		defer rdb.Close()
	}

	app := handlers.NewApp(orchestrator, poller, creditLedger, jobs, logger)
	router := httpapi.NewRouter(httpapi.Options{
		App:         app,
		Logger:      logger,
		JWTSecret:   cfg.JWTSecret,
		RateLimit:   cfg.RateLimitPerMin,
		RateCounter: rateCounter,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newObjectStore(cfg *infra.Config, logger infra.Logger) storage.ObjectStore {
	if cfg.StorageBackend == "supabase" {
		store, err := storage.NewSupabaseStore(storage.SupabaseOptions{
			BaseURL:    cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.StorageBucket,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure supabase storage")
		}
		return store
	}
	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure filesystem storage")
	}
	return store
}

func buildAdapters(cfg *infra.Config, logger *infra.Logger) map[domain.Provider]providers.Adapter {
	adapters := map[domain.Provider]providers.Adapter{}
	if cfg.ReplicateAPIToken != "" {
		client, err := replicateprovider.NewClient(replicateprovider.Options{
			APIToken: cfg.ReplicateAPIToken,
			BaseURL:  cfg.ReplicateBaseURL,
			Model:    cfg.VideoModel,
			Logger:   logger,
		})
		if err == nil {
			adapters[domain.ProviderReplicate] = client
		}
	}
	if cfg.FalAPIKey != "" {
		client, err := falprovider.NewClient(falprovider.Options{
			APIKey:  cfg.FalAPIKey,
			BaseURL: cfg.FalBaseURL,
			Logger:  logger,
		})
		if err == nil {
			adapters[domain.ProviderFal] = client
		}
	}
	if cfg.LumaAPIKey != "" {
		client, err := lumaprovider.NewClient(lumaprovider.Options{
			APIKey:  cfg.LumaAPIKey,
			BaseURL: cfg.LumaBaseURL,
			Logger:  logger,
		})
		if err == nil {
			adapters[domain.ProviderLuma] = client
		}
	}
	return adapters
}

func buildComposer(cfg *infra.Config, store storage.ObjectStore, logger infra.Logger) generation.Composer {
	if cfg.SegmentationAPIKey == "" || cfg.FalAPIKey == "" {
		return nil
	}
	segmenter, err := compose.NewSegmenter(compose.SegmenterOptions{
		Endpoint: cfg.SegmentationURL,
		APIKey:   cfg.SegmentationAPIKey,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("segmenter unavailable")
		return nil
	}
	refiner, err := falprovider.NewClient(falprovider.Options{
		APIKey:  cfg.FalAPIKey,
		BaseURL: cfg.FalBaseURL,
		Model:   cfg.RefinementModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("refinement client unavailable")
		return nil
	}
	pipeline, err := compose.New(compose.Options{
		Segmenter: segmenter,
		Refiner:   refiner,
		Store:     store,
		Logger:    logger,
		Strength:  cfg.RefinementStrength,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("composition pipeline unavailable")
		return nil
	}
	return pipeline
}

func defaultProvider(adapters map[domain.Provider]providers.Adapter) domain.Provider {
	for _, p := range []domain.Provider{domain.ProviderReplicate, domain.ProviderFal, domain.ProviderLuma} {
		if _, ok := adapters[p]; ok {
			return p
		}
	}
	return domain.ProviderReplicate
}
