package pipeline

import (
	"context"
	"time"

	"sjsage522/dealscout/internal/aggregator"
	"sjsage522/dealscout/internal/crawler"
	"sjsage522/dealscout/internal/extractor"
	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
	"sjsage522/dealscout/services/publisher"
)

// Discovery finds candidate product URLs on a site.
type Discovery interface {
	Discover(ctx context.Context, query string, site crawler.Site, maxResults int) ([]product.CandidateURL, error)
}

// PageFetcher retrieves the HTML of candidates.
type PageFetcher interface {
	FetchAll(ctx context.Context, candidates []product.CandidateURL) ([]product.ScrapedPage, crawler.FetchStats)
}

// RecordExtractor turns pages into raw records.
type RecordExtractor interface {
	ExtractAll(ctx context.Context, pages []product.ScrapedPage, f product.Filter) ([]product.RawRecord, extractor.Stats)
}

// Config bounds a pipeline run.
type Config struct {
	MaxSearchResults int
	Aggregate        aggregator.Options
	// PublishTimeout bounds the result event publish; 2s when zero.
	PublishTimeout time.Duration
}

// Result is the outcome of a successful run.
type Result struct {
	Website      string
	Filters      product.Filter
	Products     []product.Record
	Candidates   int
	Pages        int
	FetchStats   crawler.FetchStats
	ExtractStats extractor.Stats
	Duration     time.Duration
}

// Pipeline runs discover, fetch, extract and aggregate for one request.
type Pipeline struct {
	cfg        Config
	discoverer Discovery
	fetcher    PageFetcher
	extractor  RecordExtractor
	publisher  publisher.Publisher
	metrics    *Metrics
}

// New creates a pipeline. pub and metrics may be nil.
func New(cfg Config, d Discovery, f PageFetcher, e RecordExtractor, pub publisher.Publisher, metrics *Metrics) *Pipeline {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &Pipeline{
		cfg:        cfg,
		discoverer: d,
		fetcher:    f,
		extractor:  e,
		publisher:  pub,
		metrics:    metrics,
	}
}

// Run executes the pipeline for siteID. The filter is normalized and
// validated before any network call. A stage that yields nothing ends the
// run with an empty_stage error naming it.
func (p *Pipeline) Run(ctx context.Context, siteID string, filter product.Filter) (*Result, error) {
	started := time.Now()

	res, err := p.run(ctx, siteID, filter)
	if err != nil {
		p.metrics.IncRun(siteID, "error")
		p.metrics.IncError(errors.TypeOf(err))
		return nil, err
	}

	res.Duration = time.Since(started)
	p.metrics.IncRun(siteID, "success")
	p.publish(ctx, res)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, siteID string, filter product.Filter) (*Result, error) {
	site, ok := crawler.LookupSite(siteID)
	if !ok {
		return nil, errors.NewValidation("request", "unsupported website: "+siteID)
	}
	filter = filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	log := logger.ForSite(site.ID)
	query := crawler.BuildQuery(filter)
	log.Info().Str("query", query).Msg("Starting scrape")

	stageStart := time.Now()
	candidates, err := p.discoverer.Discover(ctx, query, site, p.cfg.MaxSearchResults)
	p.metrics.ObserveStage(errors.StageDiscover, time.Since(stageStart))
	p.metrics.AddItems(errors.StageDiscover, len(candidates))
	if len(candidates) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, errors.NewEmptyStage(errors.StageDiscover, "no product URLs found")
	}
	log.Info().Int("candidates", len(candidates)).Msg("Discovery finished")

	stageStart = time.Now()
	pages, fetchStats := p.fetcher.FetchAll(ctx, candidates)
	p.metrics.ObserveStage(errors.StageFetch, time.Since(stageStart))
	p.metrics.AddItems(errors.StageFetch, len(pages))
	p.metrics.AddFetchResult("rendered", fetchStats.Rendered)
	p.metrics.AddFetchResult("fallback", fetchStats.Fallback)
	p.metrics.AddFetchResult("dropped", fetchStats.Dropped)
	if len(pages) == 0 {
		if ctx.Err() != nil {
			return nil, errors.NewUpstream(errors.StageFetch, "request cancelled", ctx.Err())
		}
		return nil, errors.NewEmptyStage(errors.StageFetch, "no pages could be fetched")
	}

	stageStart = time.Now()
	raws, extractStats := p.extractor.ExtractAll(ctx, pages, filter)
	p.metrics.ObserveStage(errors.StageExtract, time.Since(stageStart))
	p.metrics.AddItems(errors.StageExtract, len(raws))
	p.metrics.AddExtractResult("accepted", extractStats.Accepted)
	p.metrics.AddExtractResult("no_product", extractStats.NoProduct)
	p.metrics.AddExtractResult("rejected", extractStats.Rejected)
	p.metrics.AddExtractResult("failed", extractStats.Failed)
	if len(raws) == 0 {
		// Every page failed: report why instead of claiming nothing matched.
		if extractStats.Err != nil && extractStats.Accepted+extractStats.NoProduct+extractStats.Rejected == 0 {
			return nil, extractStats.Err
		}
		return nil, errors.NewEmptyStage(errors.StageExtract, "no products matched the filters")
	}

	products := aggregator.Aggregate(raws, site.ID, p.cfg.Aggregate)
	p.metrics.AddItems("aggregate", len(products))

	log.Info().
		Int("pages", len(pages)).
		Int("accepted", extractStats.Accepted).
		Int("products", len(products)).
		Msg("Scrape finished")

	return &Result{
		Website:      site.ID,
		Filters:      filter,
		Products:     products,
		Candidates:   len(candidates),
		Pages:        len(pages),
		FetchStats:   fetchStats,
		ExtractStats: extractStats,
	}, nil
}

// publish emits the result event. Failures are logged only.
func (p *Pipeline) publish(ctx context.Context, res *Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.PublishTimeout)
	defer cancel()

	ev := publisher.ScrapeEvent{
		Website:   res.Website,
		Filters:   res.Filters,
		Products:  res.Products,
		Timestamp: time.Now(),
	}
	if err := publisher.PublishScrape(ctx, p.publisher, ev); err != nil {
		logger.LogError("publisher", err, "publish scrape result for %s", res.Website)
		return
	}
	if err := p.publisher.TrimStreams(ctx); err != nil {
		logger.LogError("publisher", err, "trim streams")
	}
}
