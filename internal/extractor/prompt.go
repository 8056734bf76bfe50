package extractor

import (
	"fmt"
	"strings"

	"sjsage522/dealscout/internal/product"
)

// NullSentinel is the reply that means "no product on this page".
const NullSentinel = "null"

const systemPrompt = "You extract product data from e-commerce pages. " +
	"Be flexible with sizes and colours. Reply with JSON only, or the word null."

// hints renders the filter as soft preferences.
func hints(f product.Filter) string {
	var lines []string
	if len(f.Brand) > 0 {
		lines = append(lines, "Preferred brands: "+strings.Join(f.Brand, ", "))
	}
	if len(f.Size) > 0 {
		lines = append(lines, "Looking for sizes: "+strings.Join(f.Size, ", "))
	}
	if len(f.Color) > 0 {
		lines = append(lines, "Preferred colors: "+strings.Join(f.Color, ", "))
	}
	if len(f.Gender) > 0 {
		lines = append(lines, "Gender: "+strings.Join(f.Gender, ", "))
	}
	if f.Category != "" {
		lines = append(lines, "Category: "+f.Category)
	}
	if pr := f.PriceRange; pr != nil {
		if pr.Max > 0 {
			lines = append(lines, fmt.Sprintf("Price range: %.0f to %.0f INR", pr.Min, pr.Max))
		} else {
			lines = append(lines, fmt.Sprintf("Minimum price: %.0f INR", pr.Min))
		}
	}
	if len(lines) == 0 {
		return "No specific filters"
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt assembles the user message for one page.
func BuildPrompt(page product.ScrapedPage, cleanedHTML string, f product.Filter) string {
	var b strings.Builder

	b.WriteString("Extract ALL product data from this e-commerce page. Get whatever information exists.\n\n")
	fmt.Fprintf(&b, "URL: %s\n", page.URL)
	if page.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", page.Title)
	}
	b.WriteString("\nUSER PREFERENCES (not strict requirements):\n")
	b.WriteString(hints(f))
	b.WriteString("\n\nHTML:\n")
	b.WriteString(cleanedHTML)
	b.WriteString(`

INSTRUCTIONS:
1. Extract ALL available product details.
2. If size, colour or brand is shown, include it.
3. If size shows "9", "9 UK" or "Size 9", set size to "9".
4. If several sizes are offered, list them comma separated or set "All sizes available".
5. Stock status: "Add to Cart" or "Buy Now" present means in_stock true.
   "Out of Stock", "Currently Unavailable", "Sold Out" or "Notify Me" means in_stock false.
   "Only N left" or "Few left" means availability_status "limited_stock".
   If unclear, assume in stock.
6. Prices are plain numbers in INR without symbols or commas.

Return JSON with ALL available data:
{
    "name": "full product name from page",
    "brand": "brand name from page",
    "price": 1299.0,
    "original_price": 1999.0,
    "discount": 35,
    "image_url": "https://...",
    "product_url": "`)
	b.WriteString(page.URL)
	b.WriteString(`",
    "rating": 4.3,
    "reviews": 567,
    "gender": "Men/Women/Unisex/Unknown",
    "size": "9 or All sizes or 8,9,10",
    "colour": "colour shown on the page",
    "in_stock": true,
    "availability_status": "in_stock/out_of_stock/limited_stock",
    "category": "slippers/shoes/sandals"
}

Return `)
	b.WriteString(NullSentinel)
	b.WriteString(" ONLY if the page is broken or shows no product.")

	return b.String()
}
