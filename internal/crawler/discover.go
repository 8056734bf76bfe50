package crawler

import (
	"context"
	stderrors "errors"
	"fmt"

	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

// Discoverer pages through search results and keeps product-page links.
type Discoverer struct {
	searcher Searcher
	maxPages int
}

// NewDiscoverer creates a discoverer that never requests more than
// maxPages result pages (and never more than 10).
func NewDiscoverer(searcher Searcher, maxPages int) *Discoverer {
	if maxPages <= 0 || maxPages > 10 {
		maxPages = 10
	}
	return &Discoverer{searcher: searcher, maxPages: maxPages}
}

// PageCount is the number of result pages requested for maxResults.
func (d *Discoverer) PageCount(maxResults int) int {
	pages := (maxResults + searchPageSize - 1) / searchPageSize
	if pages > d.maxPages {
		pages = d.maxPages
	}
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Discover returns product-page candidates for query on site, deduplicated
// by URL in first-seen order. Pagination ends at the first non-200 answer
// or empty page; a failed request only costs its own page. The returned
// error is non-nil only when the search API is rate limited or not
// configured and nothing was collected.
func (d *Discoverer) Discover(ctx context.Context, query string, site Site, maxResults int) ([]product.CandidateURL, error) {
	log := logger.ForSite(site.ID).WithField("stage", errors.StageDiscover)
	q := fmt.Sprintf("%s site:%s", query, site.Domain)

	seen := make(map[string]struct{})
	var out []product.CandidateURL
	var unavailable error

	for page := 0; page < d.PageCount(maxResults); page++ {
		if ctx.Err() != nil {
			break
		}

		start := 1 + page*searchPageSize
		items, err := d.searcher.Search(ctx, q, start)
		if err != nil {
			var statusErr *StatusError
			if stderrors.As(err, &statusErr) {
				log.Debug().Int("status", statusErr.StatusCode).Int("start", start).Msg("Search returned non-200, stopping")
				break
			}
			if errors.IsType(err, errors.ErrorTypeRateLimit) || errors.IsType(err, errors.ErrorTypeConfiguration) {
				log.Warn().Err(err).Msg("Search unavailable, stopping")
				unavailable = err
				break
			}
			log.Warn().Err(err).Int("start", start).Msg("Search page failed")
			continue
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if !site.IsProductPage(item.Link) {
				continue
			}
			if _, dup := seen[item.Link]; dup {
				continue
			}
			seen[item.Link] = struct{}{}
			out = append(out, product.CandidateURL{URL: item.Link, Title: item.Title})
		}
		log.Debug().Int("start", start).Int("found", len(out)).Msg("Search page processed")
	}

	if len(out) == 0 && unavailable != nil {
		return nil, unavailable
	}

	log.Info().Int("urls", len(out)).Str("query", q).Msg("Discovery finished")
	return out, nil
}
