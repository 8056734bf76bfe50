package crawler

import (
	"context"
	"net/http"

	"sjsage522/dealscout/config"
	"sjsage522/dealscout/helpers"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/services/cache"
)

// NewRenderer builds the headless renderer selected by cfg.Renderer. The
// returned closer releases browser resources and is never nil. A nil
// Renderer means every page uses the plain fallback.
func NewRenderer(ctx context.Context, cfg *config.Config) (Renderer, func()) {
	bcfg := browserConfig(cfg)

	switch cfg.Renderer {
	case config.RendererChromedp:
		logger.Info("Using local headless Chrome for page rendering")
		r := NewChromedpRenderer(ctx, bcfg)
		return r, r.Close
	case config.RendererBrowserless:
		r := NewBrowserlessRenderer(cfg.ChromeDBAddr, bcfg, &http.Client{})
		if err := r.CheckHealth(ctx); err != nil {
			logger.Warn("Browser service health check failed: %v", err)
		} else {
			logger.Info("Using browser service at %s for page rendering", cfg.ChromeDBAddr)
		}
		return r, func() {}
	default:
		logger.Info("Headless rendering disabled, using plain fetch only")
		return nil, func() {}
	}
}

func browserConfig(cfg *config.Config) BrowserConfig {
	return BrowserConfig{
		NavigateTimeout: cfg.RenderTimeout,
		SettleDelay:     cfg.SettleDelay,
		ScrollCycles:    cfg.ScrollCycles,
		ScrollDelay:     cfg.ScrollDelay,
		UserAgent:       helpers.RandomUserAgent(),
	}
}

// NewFetcherFromConfig wires the renderer and the plain fallback into a Fetcher.
func NewFetcherFromConfig(cfg *config.Config, renderer Renderer, cacheSvc cache.CacheService) *Fetcher {
	plain := NewPlainFetcher(nil, cacheSvc, cfg.BlockTime)
	return NewFetcher(FetcherConfig{
		Concurrency:   cfg.FetchConcurrency,
		MaxPages:      cfg.MaxPages,
		RenderTimeout: browserConfig(cfg).RenderBudget(),
		PlainTimeout:  cfg.PlainTimeout,
	}, renderer, plain)
}

// NewSearchClientFromConfig builds the search API client.
func NewSearchClientFromConfig(cfg *config.Config, cacheSvc cache.CacheService) *GoogleSearchClient {
	return NewGoogleSearchClient(SearchConfig{
		Endpoint:  cfg.SearchEndpoint,
		APIKey:    cfg.GoogleAPIKey,
		CX:        cfg.GoogleCX,
		Timeout:   cfg.SearchTimeout,
		Interval:  cfg.SearchInterval,
		BlockTime: cfg.BlockTime,
	}, &http.Client{}, cacheSvc)
}
