package aggregator

import (
	"math"
	"strings"
	"time"

	"sjsage522/dealscout/internal/product"
)

// Defaults applied to missing fields.
const (
	PlaceholderImage  = "https://via.placeholder.com/600x600?text=No+Image"
	MissingProductURL = "#"
	UnknownBrand      = "Unknown"
	UnknownName       = "Unknown Product"
	UnknownGender     = "Unknown"
)

// Normalize coerces an untrusted record into a product.Record, filling
// defaults and derived fields. The ID is left empty.
func Normalize(raw product.RawRecord, site string, scrapedAt time.Time) product.Record {
	r := product.Record{
		Name:          orDefault(raw.String("name"), UnknownName),
		Brand:         orDefault(raw.String("brand"), UnknownBrand),
		Gender:        orDefault(raw.String("gender"), UnknownGender),
		Size:          raw.String("size"),
		Colour:        firstNonEmpty(raw.String("colour"), raw.String("color")),
		Category:      raw.String("category"),
		ImageURL:      imageURL(raw.String("image_url")),
		ProductURL:    orDefault(raw.String("product_url"), MissingProductURL),
		Currency:      product.Currency,
		SourceWebsite: site,
		ScrapedAt:     product.FormatScrapedAt(scrapedAt),
	}

	r.Price = nonNegative(floatOr(raw, "price", 0))
	r.OriginalPrice = nonNegative(floatOr(raw, "original_price", r.Price))
	if r.OriginalPrice == 0 {
		r.OriginalPrice = r.Price
	}

	if d, ok := raw.Int("discount"); ok {
		r.Discount = clampInt(d, 0, 100)
	} else if r.OriginalPrice > r.Price && r.Price > 0 {
		r.Discount = clampInt(int(math.Round((r.OriginalPrice-r.Price)/r.OriginalPrice*100)), 0, 100)
	}

	r.Rating = clampFloat(floatOr(raw, "rating", 0), 0, 5)
	if n, ok := raw.Int("reviews"); ok && n > 0 {
		r.Reviews = n
	}

	r.InStock, r.AvailabilityStatus = availability(raw)
	r.Savings = math.Round(math.Max(0, r.OriginalPrice-r.Price)*100) / 100
	r.Classification = Classify(r.Discount, r.Rating, r.Reviews)
	r.IsTrending = r.Classification == product.Trending

	return r
}

// Classify is a pure function of discount, rating and reviews.
func Classify(discount int, rating float64, reviews int) product.Classification {
	switch {
	case discount >= 30 && rating >= 4.0:
		return product.Trending
	case reviews >= 500 && rating >= 4.2:
		return product.TopSelling
	default:
		return product.Normal
	}
}

// availability reconciles in_stock and availability_status. Records that
// say nothing are in stock.
func availability(raw product.RawRecord) (bool, product.Availability) {
	status := product.Availability(strings.ToLower(strings.ReplaceAll(raw.String("availability_status"), " ", "_")))
	inStock, known := raw.Bool("in_stock")

	switch status {
	case product.OutOfStock:
		return false, product.OutOfStock
	case product.LimitedStock:
		return true, product.LimitedStock
	case product.InStock:
		if known && !inStock {
			return false, product.OutOfStock
		}
		return true, product.InStock
	}

	if known && !inStock {
		return false, product.OutOfStock
	}
	return true, product.InStock
}

func imageURL(s string) string {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	return PlaceholderImage
}

func floatOr(raw product.RawRecord, key string, def float64) float64 {
	if v, ok := raw.Float(key); ok {
		return v
	}
	return def
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
