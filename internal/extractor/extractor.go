package extractor

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sjsage522/dealscout/helpers"
	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

// Completer is the chat completion call the extractor depends on.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config bounds the extraction stage.
type Config struct {
	MaxHTMLChars int
	Timeout      time.Duration
	Workers      int
	Target       int
}

// Stats summarises one ExtractAll run.
type Stats struct {
	Accepted  int
	NoProduct int
	Rejected  int
	Failed    int
	// Err is the first extraction failure, nil when none failed.
	Err error
}

// Extractor turns scraped pages into raw product records.
type Extractor struct {
	llm Completer
	cfg Config
	log *logger.Logger
}

// New creates an extractor.
func New(llm Completer, cfg Config) *Extractor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Extractor{llm: llm, cfg: cfg, log: logger.ForStage(errors.StageExtract)}
}

// Outcome classifies a single extraction.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeNoProduct
	OutcomeRejected
	OutcomeFailed
)

// Extract runs one page through the LLM and the post-checks. It returns a
// record only for OutcomeAccepted; the error is set for OutcomeFailed.
func (e *Extractor) Extract(ctx context.Context, page product.ScrapedPage, f product.Filter) (product.RawRecord, Outcome, error) {
	log := e.log.WithField("url", page.URL)

	cleaned, err := CleanHTML(page.RawHTML, e.cfg.MaxHTMLChars)
	if err != nil {
		return nil, OutcomeFailed, errors.NewMalformed(errors.StageExtract, "cannot clean page", err)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	reply, err := e.llm.Complete(ctx, systemPrompt, BuildPrompt(page, cleaned, f))
	if err != nil {
		return nil, OutcomeFailed, completionError(err)
	}

	rec, err := ParseRecord(reply)
	if err != nil {
		log.Debug().Err(err).Str("reply", helpers.Truncate(reply, 120)).Msg("Unparseable reply, treating as no product")
		return nil, OutcomeNoProduct, nil
	}
	if rec == nil {
		return nil, OutcomeNoProduct, nil
	}

	if !matchesBrand(rec, f.Brand) {
		log.Debug().Str("brand", rec.String("brand")).Str("name", rec.String("name")).Msg("Brand mismatch, rejecting")
		return nil, OutcomeRejected, nil
	}
	logSoftMismatches(log, rec, f)

	normalizePrices(rec)
	if f.PriceRange != nil {
		if price, ok := rec.Float("price"); ok && price > 0 && !f.PriceRange.Contains(price) {
			log.Debug().Float64("price", price).Msg("Price outside range, rejecting")
			return nil, OutcomeRejected, nil
		}
	}

	if !rec.Has("product_url") || rec.String("product_url") == "" {
		rec["product_url"] = page.URL
	}

	return rec, OutcomeAccepted, nil
}

// ExtractAll runs Extract over pages on a bounded worker pool and stops
// once Target records have been accepted. Records come back in completion
// order.
func (e *Extractor) ExtractAll(ctx context.Context, pages []product.ScrapedPage, f product.Filter) ([]product.RawRecord, Stats) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	var (
		mu      sync.Mutex
		records []product.RawRecord
		stats   Stats
	)

	for _, page := range pages {
		if gctx.Err() != nil {
			break
		}

		page := page
		g.Go(func() error {
			rec, outcome, err := e.Extract(gctx, page, f)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeAccepted:
				if e.cfg.Target > 0 && len(records) >= e.cfg.Target {
					return nil
				}
				records = append(records, rec)
				stats.Accepted++
				if e.cfg.Target > 0 && len(records) >= e.cfg.Target {
					e.log.Info().Int("records", len(records)).Msg("Target reached, cancelling remaining extractions")
					cancel()
				}
			case OutcomeNoProduct:
				stats.NoProduct++
			case OutcomeRejected:
				stats.Rejected++
			case OutcomeFailed:
				stats.Failed++
				if gctx.Err() != nil {
					return nil
				}
				e.log.Warn().Err(err).Str("url", page.URL).Msg("Extraction failed")
				if stats.Err == nil {
					stats.Err = err
				}
				if typed, ok := errors.As(err); ok && !typed.IsRecoverable() {
					e.log.Error().Err(err).Msg("LLM unusable, cancelling remaining extractions")
					cancel()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return records, stats
}

// completionError keeps the type of a typed LLM failure and marks
// everything else upstream, both attributed to the extract stage.
func completionError(err error) error {
	if typed, ok := errors.As(err); ok {
		return errors.New(typed.Type, errors.StageExtract, typed.Message, err)
	}
	return errors.NewUpstream(errors.StageExtract, "completion failed", err)
}

// matchesBrand accepts the record when any wanted brand appears in its
// brand or name, ignoring case.
func matchesBrand(rec product.RawRecord, brands []string) bool {
	if len(brands) == 0 {
		return true
	}
	brand := rec.String("brand")
	name := rec.String("name")
	for _, b := range brands {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if helpers.ContainsFold(brand, b) || helpers.ContainsFold(name, b) {
			return true
		}
	}
	return false
}

func logSoftMismatches(log *logger.Logger, rec product.RawRecord, f product.Filter) {
	if len(f.Size) > 0 && !anyContained(rec.String("size"), f.Size) {
		log.Debug().Str("size", rec.String("size")).Strs("wanted", f.Size).Msg("Size mismatch kept")
	}
	if len(f.Color) > 0 && !anyContained(rec.String("colour"), f.Color) {
		log.Debug().Str("colour", rec.String("colour")).Strs("wanted", f.Color).Msg("Colour mismatch kept")
	}
}

func anyContained(value string, wanted []string) bool {
	for _, w := range wanted {
		if helpers.ContainsFold(value, w) {
			return true
		}
	}
	return false
}

// normalizePrices rewrites textual price fields as numbers and drops the
// ones that carry no number at all.
func normalizePrices(rec product.RawRecord) {
	for _, key := range []string{"price", "original_price"} {
		if !rec.Has(key) {
			continue
		}
		if v, ok := rec.Float(key); ok {
			rec[key] = v
		} else {
			delete(rec, key)
		}
	}
}
