package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

// FetcherConfig bounds the page fetch stage.
type FetcherConfig struct {
	Concurrency   int
	MaxPages      int
	RenderTimeout time.Duration
	PlainTimeout  time.Duration
}

// FetchStats summarises one FetchAll run.
type FetchStats struct {
	Rendered int
	Fallback int
	Dropped  int
}

// Fetcher retrieves HTML for candidates, rendering first and falling back
// to a plain GET once.
type Fetcher struct {
	cfg      FetcherConfig
	primary  Renderer
	fallback Renderer
	log      *logger.Logger
}

// NewFetcher creates a fetcher. primary may be nil, in which case every
// page goes straight to the fallback.
func NewFetcher(cfg FetcherConfig, primary, fallback Renderer) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Fetcher{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		log:      logger.ForStage(errors.StageFetch),
	}
}

// FetchAll fetches candidates concurrently and returns pages in completion
// order. It stops admitting work and cancels in-flight fetches once
// MaxPages pages have been collected.
func (f *Fetcher) FetchAll(ctx context.Context, candidates []product.CandidateURL) ([]product.ScrapedPage, FetchStats) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)

	var (
		mu    sync.Mutex
		pages []product.ScrapedPage
		stats FetchStats
	)

	for _, candidate := range candidates {
		if gctx.Err() != nil {
			break
		}

		candidate := candidate
		g.Go(func() error {
			page, ok := f.fetchOne(gctx, candidate)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				// Fetches cut off by the page cap were abandoned, not dropped.
				if gctx.Err() == nil {
					stats.Dropped++
				}
				return nil
			}
			if f.cfg.MaxPages > 0 && len(pages) >= f.cfg.MaxPages {
				return nil
			}
			pages = append(pages, page)
			if page.Rendered {
				stats.Rendered++
			} else {
				stats.Fallback++
			}
			if f.cfg.MaxPages > 0 && len(pages) >= f.cfg.MaxPages {
				f.log.Info().Int("pages", len(pages)).Msg("Page cap reached, cancelling remaining fetches")
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	return pages, stats
}

func (f *Fetcher) fetchOne(ctx context.Context, candidate product.CandidateURL) (product.ScrapedPage, bool) {
	page := product.ScrapedPage{URL: candidate.URL, Title: candidate.Title}

	if f.primary != nil {
		html, err := f.attempt(ctx, f.primary, candidate.URL, f.cfg.RenderTimeout)
		if err == nil {
			page.RawHTML = html
			page.Rendered = true
			return page, true
		}
		f.log.Debug().Err(err).Str("url", candidate.URL).Str("renderer", f.primary.Name()).Msg("Render failed, falling back")
	}

	// The stage was cancelled; falling back would only waste a request.
	if ctx.Err() != nil || f.fallback == nil {
		return page, false
	}

	html, err := f.attempt(ctx, f.fallback, candidate.URL, f.cfg.PlainTimeout)
	if err != nil {
		f.log.Debug().Err(err).Str("url", candidate.URL).Msg("Fallback fetch failed, dropping page")
		return page, false
	}
	page.RawHTML = html
	return page, true
}

func (f *Fetcher) attempt(ctx context.Context, r Renderer, url string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	html, err := r.Render(ctx, url)
	if err != nil {
		return "", err
	}
	if !looksLikeHTML(html) {
		return "", errors.NewMalformed(errors.StageFetch, "response does not look like HTML", nil)
	}
	return html, nil
}

// looksLikeHTML is a cheap sniff for a document.
func looksLikeHTML(s string) bool {
	if len(s) < 50 {
		return false
	}
	head := strings.ToLower(s)
	if len(head) > 4096 {
		head = head[:4096]
	}
	return strings.Contains(head, "<html") ||
		strings.Contains(head, "<!doctype") ||
		strings.Contains(head, "<body")
}
