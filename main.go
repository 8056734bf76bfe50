package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/dealscout/config"
	"sjsage522/dealscout/internal/aggregator"
	"sjsage522/dealscout/internal/crawler"
	"sjsage522/dealscout/internal/extractor"
	"sjsage522/dealscout/internal/pipeline"
	"sjsage522/dealscout/internal/server"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/services/cache"
	"sjsage522/dealscout/services/imaging"
	"sjsage522/dealscout/services/llm"
	"sjsage522/dealscout/services/publisher"
	"sjsage522/dealscout/services/storage"
	"sjsage522/dealscout/services/visualsearch"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("port", cfg.Port).
		Str("renderer", cfg.Renderer).
		Msg("Starting application")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	srv := server.New(&cfg, server.Deps{
		Scraper:          services.Pipeline,
		Images:           services.Images,
		Uploader:         services.uploader(),
		VisualSearch:     services.VisualSearch,
		Metrics:          services.Metrics,
		Checks:           services.checks(),
		OpenAIConfigured: services.LLM.Configured(),
		GoogleConfigured: services.Search.Configured(),
	})

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server exited with error")
	}

	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache        cache.CacheService
	Publisher    publisher.Publisher
	LLM          *llm.Client
	Search       *crawler.GoogleSearchClient
	Pipeline     *pipeline.Pipeline
	Metrics      *pipeline.Metrics
	Images       *imaging.Service
	Storage      *storage.S3Uploader
	VisualSearch *visualsearch.Client

	closeRenderer func()
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.closeRenderer != nil {
		s.closeRenderer()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// uploader keeps a nil *S3Uploader from becoming a non-nil interface.
func (s *Services) uploader() server.Uploader {
	if s.Storage == nil {
		return nil
	}
	return s.Storage
}

// checks collects the backing services that can be pinged.
func (s *Services) checks() map[string]server.Pinger {
	checks := make(map[string]server.Pinger)
	if p, ok := s.Cache.(server.Pinger); ok {
		checks["memcache"] = p
	}
	if p, ok := s.Publisher.(server.Pinger); ok {
		checks["redis"] = p
	}
	return checks
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}
	log := logger.Default

	services.Cache = cache.NewFromConfig(cfg)
	services.Publisher = publisher.NewFromConfig(cfg)

	renderer, closeRenderer := crawler.NewRenderer(ctx, cfg)
	services.closeRenderer = closeRenderer

	services.Search = crawler.NewSearchClientFromConfig(cfg, services.Cache)
	if !services.Search.Configured() {
		log.Warn().Msg("Google search is not configured; scrape requests will fail at discovery")
	}
	discoverer := crawler.NewDiscoverer(services.Search, cfg.MaxSearchPages)
	fetcher := crawler.NewFetcherFromConfig(cfg, renderer, services.Cache)

	services.LLM = llm.New(cfg)
	if !services.LLM.Configured() {
		log.Warn().Msg("OPENAI_API_KEY is not set; extraction and image tools are disabled")
	}
	ext := extractor.New(services.LLM, extractor.Config{
		MaxHTMLChars: cfg.MaxHTMLChars,
		Timeout:      cfg.LLMTimeout,
		Workers:      cfg.ExtractWorkers,
		Target:       cfg.TargetProducts,
	})

	services.Metrics = pipeline.NewMetrics()
	services.Pipeline = pipeline.New(pipeline.Config{
		MaxSearchResults: cfg.MaxSearchResults,
		Aggregate: aggregator.Options{
			OutOfStockRatio:      cfg.OutOfStockRatio,
			MinInStockForCapping: cfg.MinInStockForCapping,
		},
	}, discoverer, fetcher, ext, services.Publisher, services.Metrics)

	services.Images = imaging.NewService(services.LLM, services.LLM, cfg.StaticDir, cfg.PublicBaseURL)
	if err := services.Images.EnsureStaticDir(); err != nil {
		return nil, err
	}

	uploader, err := storage.NewS3Uploader(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Object storage unavailable; /similar-products is disabled")
	} else {
		services.Storage = uploader
	}

	services.VisualSearch = visualsearch.NewFromConfig(cfg)
	if !services.VisualSearch.Configured() {
		log.Warn().Msg("Visual search is not configured")
	}

	log.Info().
		Bool("memcache", cfg.MemcacheAddr != "").
		Bool("redis", cfg.RedisAddr != "").
		Bool("object_storage", services.Storage != nil).
		Msg("Services initialized")

	return services, nil
}
