package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
	"sjsage522/dealscout/services/cache"
)

const (
	searchPageSize      = 10
	searchBlockCacheKey = "google_search_rate_limited"
)

// StatusError reports a non-200 answer from the search API.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search API returned status %d", e.StatusCode)
}

// SearchConfig configures the Google Custom Search client.
type SearchConfig struct {
	Endpoint  string
	APIKey    string
	CX        string
	Timeout   time.Duration
	Interval  time.Duration
	BlockTime time.Duration
}

// GoogleSearchClient queries the Custom Search JSON API.
type GoogleSearchClient struct {
	cfg      SearchConfig
	client   *http.Client
	limiter  *rate.Limiter
	cacheSvc cache.CacheService
	log      *logger.Logger
}

// NewGoogleSearchClient creates a search client. cacheSvc may be nil.
func NewGoogleSearchClient(cfg SearchConfig, client *http.Client, cacheSvc cache.CacheService) *GoogleSearchClient {
	if client == nil {
		client = &http.Client{}
	}
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	return &GoogleSearchClient{
		cfg:      cfg,
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		cacheSvc: cacheSvc,
		log:      logger.ForComponent("search"),
	}
}

// Configured reports whether credentials are present.
func (c *GoogleSearchClient) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.CX != ""
}

type searchResponse struct {
	Items []SearchItem `json:"items"`
}

// Search fetches one result page. Pages are paced by the client's limiter.
func (c *GoogleSearchClient) Search(ctx context.Context, query string, start int) ([]SearchItem, error) {
	if !c.Configured() {
		return nil, errors.NewConfiguration("search API key or engine id not configured", nil)
	}
	if c.isBlocked() {
		return nil, errors.NewRateLimit(errors.StageDiscover, c.cfg.BlockTime)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewUpstream(errors.StageDiscover, "search pacing interrupted", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("cx", c.cfg.CX)
	params.Set("q", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("num", strconv.Itoa(searchPageSize))
	params.Set("gl", "in")
	params.Set("hl", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.NewUpstream(errors.StageDiscover, "failed to create search request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewUpstream(errors.StageDiscover, "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.block()
		return nil, errors.NewRateLimit(errors.StageDiscover, c.cfg.BlockTime)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.NewMalformed(errors.StageDiscover, "failed to decode search response", err)
	}
	return body.Items, nil
}

func (c *GoogleSearchClient) isBlocked() bool {
	if c.cacheSvc == nil {
		return false
	}
	_, err := c.cacheSvc.Get(searchBlockCacheKey)
	return err == nil
}

func (c *GoogleSearchClient) block() {
	if c.cacheSvc == nil || c.cfg.BlockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(c.cfg.BlockTime / time.Second)))
	if err := c.cacheSvc.Set(searchBlockCacheKey, value, c.cfg.BlockTime); err != nil {
		c.log.Warn().Err(err).Msg("Failed to store search block marker")
		return
	}
	c.log.Warn().Dur("block_time", c.cfg.BlockTime).Msg("Search API rate limited, blocking further queries")
}
