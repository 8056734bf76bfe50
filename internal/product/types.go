package product

import "time"

// Currency is fixed for the supported marketplaces.
const Currency = "INR"

// ScrapedAtLayout formats ProductRecord.ScrapedAt.
const ScrapedAtLayout = "2006-01-02 15:04:05"

// Availability is the stock state of a record.
type Availability string

const (
	InStock      Availability = "in_stock"
	OutOfStock   Availability = "out_of_stock"
	LimitedStock Availability = "limited_stock"
)

// Classification is the display tier of a record.
type Classification string

const (
	Trending   Classification = "trending"
	TopSelling Classification = "top_selling"
	Normal     Classification = "normal"
)

// CandidateURL is a search hit that looks like a product page.
type CandidateURL struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ScrapedPage holds the HTML of one fetched candidate.
type ScrapedPage struct {
	URL     string
	Title   string
	RawHTML string
	// Rendered is false when the page came from the plain HTTP fallback.
	Rendered bool
}

// Record is the finalized product handed to clients.
type Record struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Brand              string         `json:"brand"`
	Price              float64        `json:"price"`
	OriginalPrice      float64        `json:"original_price"`
	Discount           int            `json:"discount"`
	Rating             float64        `json:"rating"`
	Reviews            int            `json:"reviews"`
	Gender             string         `json:"gender"`
	Size               string         `json:"size"`
	Colour             string         `json:"colour"`
	Category           string         `json:"category"`
	InStock            bool           `json:"in_stock"`
	AvailabilityStatus Availability   `json:"availability_status"`
	Classification     Classification `json:"classification"`
	IsTrending         bool           `json:"is_trending"`
	Savings            float64        `json:"savings"`
	Currency           string         `json:"currency"`
	ImageURL           string         `json:"image_url"`
	ProductURL         string         `json:"product_url"`
	SourceWebsite      string         `json:"source_website"`
	ScrapedAt          string         `json:"scraped_at"`
}

// FormatScrapedAt renders t in the record timestamp layout.
func FormatScrapedAt(t time.Time) string {
	return t.Format(ScrapedAtLayout)
}
