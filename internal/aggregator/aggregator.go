package aggregator

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/logger"
)

// Options tune the aggregation.
type Options struct {
	// OutOfStockRatio caps out-of-stock entries relative to in-stock ones.
	OutOfStockRatio float64
	// MinInStockForCapping is the in-stock count from which the cap applies.
	MinInStockForCapping int
	// Now stamps ScrapedAt; time.Now when nil.
	Now func() time.Time
}

// DefaultOptions returns the standard cap of 20% from five in-stock entries.
func DefaultOptions() Options {
	return Options{OutOfStockRatio: 0.2, MinInStockForCapping: 5}
}

// Aggregate normalises, deduplicates, sorts and caps raw records and
// assigns display IDs.
func Aggregate(raws []product.RawRecord, site string, opts Options) []product.Record {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	scrapedAt := now()

	records := make([]product.Record, 0, len(raws))
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		records = append(records, Normalize(raw, site, scrapedAt))
	}

	normalized := len(records)
	records = Dedupe(records)
	unique := len(records)
	Sort(records)
	records = CapOutOfStock(records, opts.OutOfStockRatio, opts.MinInStockForCapping)
	AssignIDs(records)

	logger.ForStage("aggregate").Info().
		Int("raw", len(raws)).
		Int("duplicates", normalized-unique).
		Int("capped", unique-len(records)).
		Int("products", len(records)).
		Msg("Aggregation finished")

	return records
}

// Compare orders records by stock, tier, then descending rating, reviews
// and discount, with name and URL as final tie-breakers.
func Compare(a, b product.Record) int {
	if c := cmp.Compare(boolRank(!a.InStock), boolRank(!b.InStock)); c != 0 {
		return c
	}
	if c := cmp.Compare(boolRank(a.Classification != product.Trending), boolRank(b.Classification != product.Trending)); c != 0 {
		return c
	}
	if c := cmp.Compare(boolRank(a.Classification != product.TopSelling), boolRank(b.Classification != product.TopSelling)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Reviews, a.Reviews); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Discount, a.Discount); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ProductURL, b.ProductURL)
}

// Sort orders records in place with Compare. The sort is stable.
func Sort(records []product.Record) {
	slices.SortStableFunc(records, Compare)
}

// CapOutOfStock keeps at most floor(ratio * inStock) out-of-stock records
// when at least minInStock in-stock records exist. Records must already
// be sorted; the best ranked out-of-stock entries survive.
func CapOutOfStock(records []product.Record, ratio float64, minInStock int) []product.Record {
	inStock := 0
	for _, r := range records {
		if r.InStock {
			inStock++
		}
	}
	if inStock < minInStock || inStock == 0 {
		return records
	}

	allowed := int(math.Floor(ratio * float64(inStock)))
	out := make([]product.Record, 0, len(records))
	kept := 0
	for _, r := range records {
		if !r.InStock {
			if kept >= allowed {
				continue
			}
			kept++
		}
		out = append(out, r)
	}
	return out
}

// AssignIDs numbers records prod_0001, prod_0002, ... in their current order.
func AssignIDs(records []product.Record) {
	for i := range records {
		records[i].ID = fmt.Sprintf("prod_%04d", i+1)
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
