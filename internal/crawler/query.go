package crawler

import (
	"strings"

	"sjsage522/dealscout/internal/product"
)

// maxQueryColors is the colour count above which colours are left out.
const maxQueryColors = 3

// BuildQuery turns a filter into a plain-text search string: brands,
// category, lower-cased genders and, when there are at most three of them,
// lower-cased colours.
func BuildQuery(f product.Filter) string {
	parts := make([]string, 0, len(f.Brand)+len(f.Gender)+len(f.Color)+1)

	for _, b := range f.Brand {
		if b = strings.TrimSpace(b); b != "" {
			parts = append(parts, b)
		}
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		parts = append(parts, c)
	}
	for _, g := range f.Gender {
		if g = strings.TrimSpace(g); g != "" {
			parts = append(parts, strings.ToLower(g))
		}
	}
	if len(f.Color) <= maxQueryColors {
		for _, c := range f.Color {
			if c = strings.TrimSpace(c); c != "" {
				parts = append(parts, strings.ToLower(c))
			}
		}
	}

	return strings.Join(parts, " ")
}
