package product

import (
	"strings"

	"sjsage522/dealscout/helpers"
	"sjsage522/dealscout/pkg/errors"
)

// PriceRange bounds the accepted price. A zero Max means no upper bound.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether price lies inside the range.
func (r *PriceRange) Contains(price float64) bool {
	if r == nil {
		return true
	}
	if price < r.Min {
		return false
	}
	if r.Max > 0 && price > r.Max {
		return false
	}
	return true
}

// Filter is the structured search request.
type Filter struct {
	Brand      []string    `json:"brand"`
	Size       []string    `json:"size,omitempty"`
	Color      []string    `json:"color,omitempty"`
	Gender     []string    `json:"gender,omitempty"`
	Category   string      `json:"category,omitempty"`
	PriceRange *PriceRange `json:"price_range,omitempty"`
}

// Normalize trims every list entry, drops empty ones and trims the category.
func (f Filter) Normalize() Filter {
	out := Filter{
		Brand:    helpers.CleanList(f.Brand),
		Size:     helpers.CleanList(f.Size),
		Color:    helpers.CleanList(f.Color),
		Gender:   helpers.CleanList(f.Gender),
		Category: strings.TrimSpace(f.Category),
	}
	if f.PriceRange != nil {
		pr := *f.PriceRange
		out.PriceRange = &pr
	}
	return out
}

// Validate checks the filter invariants. Call it on a normalized filter.
func (f Filter) Validate() error {
	if len(f.Brand) == 0 {
		return errors.NewValidation("filters", "at least one brand is required")
	}
	if pr := f.PriceRange; pr != nil {
		if pr.Min < 0 || pr.Max < 0 {
			return errors.NewValidation("filters", "price range bounds cannot be negative")
		}
		if pr.Max > 0 && pr.Min > pr.Max {
			return errors.NewValidation("filters", "price range min cannot exceed max")
		}
	}
	return nil
}
