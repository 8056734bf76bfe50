package crawler

import (
	"regexp"
	"sort"
	"strings"
)

// Site describes a supported marketplace.
type Site struct {
	ID      string
	Domain  string
	BaseURL string
	// ProductPatterns are substrings that mark a product detail page.
	ProductPatterns []string
	// ProductRegex is consulted when ProductPatterns is empty.
	ProductRegex *regexp.Regexp
	// CacheKey marks the site as blocked after a 429.
	CacheKey string
}

// nonProductPatterns reject listing, search and informational pages.
var nonProductPatterns = []string{
	"/search?", "/s?k=", "/brand/", "/pr?sid=", "/collection/",
	"/shop/", "/store/", "/help/", "/about", "/contact",
}

// minGenericProductURLLength is the heuristic for sites without a pattern.
const minGenericProductURLLength = 50

var sites = map[string]Site{
	"flipkart": {
		ID:              "flipkart",
		Domain:          "flipkart.com",
		BaseURL:         "https://www.flipkart.com/search?q=",
		ProductPatterns: []string{"/p/", "/itm/"},
		CacheKey:        "flipkart_rate_limited",
	},
	"amazon": {
		ID:              "amazon",
		Domain:          "amazon.in",
		BaseURL:         "https://www.amazon.in/s?k=",
		ProductPatterns: []string{"/dp/", "/gp/product/"},
		CacheKey:        "amazon_rate_limited",
	},
	"myntra": {
		ID:           "myntra",
		Domain:       "myntra.com",
		BaseURL:      "https://www.myntra.com/",
		ProductRegex: regexp.MustCompile(`/\d+/buy`),
		CacheKey:     "myntra_rate_limited",
	},
	"reliancedigital": {
		ID:       "reliancedigital",
		Domain:   "reliancedigital.in",
		BaseURL:  "https://www.reliancedigital.in/search?q=",
		CacheKey: "reliancedigital_rate_limited",
	},
}

// DefaultSite is used when a request names no website.
const DefaultSite = "flipkart"

// LookupSite resolves a website id case-insensitively.
func LookupSite(id string) (Site, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		id = DefaultSite
	}
	s, ok := sites[id]
	return s, ok
}

// SupportedSites returns the website ids in a stable order.
func SupportedSites() []string {
	ids := make([]string, 0, len(sites))
	for id := range sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsProductPage applies the two-stage URL filter for site.
func (s Site) IsProductPage(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range nonProductPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}

	switch {
	case len(s.ProductPatterns) > 0:
		for _, p := range s.ProductPatterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	case s.ProductRegex != nil:
		return s.ProductRegex.MatchString(lower)
	default:
		return len(rawURL) > minGenericProductURLLength
	}
}
