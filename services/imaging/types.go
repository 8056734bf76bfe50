package imaging

import (
	"encoding/json"

	"sjsage522/dealscout/internal/product"
)

// Quantity accepts numbers and numeric strings such as "2 pairs".
type Quantity float64

func (q *Quantity) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*q = Quantity(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, ok := product.ParseNumber(s); ok {
			*q = Quantity(v)
		}
	}
	return nil
}

// BOMComponent is one line of a bill of materials.
type BOMComponent struct {
	Name     string   `json:"name"`
	Material string   `json:"material"`
	Finish   string   `json:"finish"`
	Quantity Quantity `json:"quantity"`
}

// BOM is a bill of materials derived from a product image.
type BOM struct {
	ProductName string         `json:"product_name"`
	Components  []BOMComponent `json:"components"`
}

// FallbackBOM is returned when generation fails on the replace flow.
func FallbackBOM() BOM {
	return BOM{ProductName: "Unknown Product", Components: []BOMComponent{}}
}

// Description is the search-oriented summary of a footwear image.
type Description struct {
	FootwearType           string `json:"footwear_type"`
	Material               string `json:"material"`
	SoleType               string `json:"sole_type"`
	Style                  string `json:"style"`
	Gender                 string `json:"gender"`
	ShortSearchDescription string `json:"short_search_description"`
}

// Views holds the orthographic renderings as PNG bytes.
type Views struct {
	Top  []byte
	Side []byte
}

// ReplaceResult is the outcome of a size-aware edit.
type ReplaceResult struct {
	Status       string            `json:"status"`
	Size         int               `json:"size"`
	SoleLengthMM int               `json:"sole_length_mm"`
	BOM          BOM               `json:"bom"`
	Views        map[string]string `json:"views"`
}
