package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sjsage522/dealscout/helpers"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
	"sjsage522/dealscout/services/cache"
)

// PlainFetcher performs a single GET with browser-like headers. Hosts that
// answer 429 are blocked through the cache for BlockTime.
type PlainFetcher struct {
	client    *http.Client
	cacheSvc  cache.CacheService
	blockTime time.Duration
	log       *logger.Logger
}

// NewPlainFetcher creates the fallback fetcher. cacheSvc may be nil.
func NewPlainFetcher(client *http.Client, cacheSvc cache.CacheService, blockTime time.Duration) *PlainFetcher {
	if client == nil {
		client = &http.Client{Transport: &http.Transport{Proxy: http.ProxyFromEnvironment}}
	}
	return &PlainFetcher{
		client:    client,
		cacheSvc:  cacheSvc,
		blockTime: blockTime,
		log:       logger.ForComponent("plain_fetch"),
	}
}

// Name implements Renderer
func (p *PlainFetcher) Name() string { return "plain" }

// Render implements Renderer
func (p *PlainFetcher) Render(ctx context.Context, rawURL string) (string, error) {
	key := blockKey(rawURL)
	if p.cacheSvc != nil && key != "" {
		if _, err := p.cacheSvc.Get(key); err == nil {
			return "", errors.NewRateLimit(errors.StageFetch, p.blockTime)
		}
	}

	html, err := helpers.FetchHTML(ctx, p.client, rawURL)
	if err != nil {
		var rl *helpers.RateLimitedError
		if stderrors.As(err, &rl) {
			p.block(key)
			return "", errors.NewRateLimit(errors.StageFetch, p.blockTime)
		}
		return "", errors.NewUpstream(errors.StageFetch, "plain fetch failed", err)
	}
	return html, nil
}

func (p *PlainFetcher) block(key string) {
	if p.cacheSvc == nil || key == "" || p.blockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(p.blockTime / time.Second)))
	if err := p.cacheSvc.Set(key, value, p.blockTime); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("Failed to store block marker")
		return
	}
	p.log.Warn().Str("key", key).Dur("block_time", p.blockTime).Msg("Host rate limited")
}

// blockKey derives the cache key for the host of rawURL.
func blockKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s_rate_limited", u.Hostname())
}
