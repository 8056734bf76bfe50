package crawler

import (
	"context"
)

// Renderer returns the fully rendered HTML of a page.
type Renderer interface {
	// Render navigates to url and captures the final document
	Render(ctx context.Context, url string) (string, error)

	// Name identifies the renderer in logs
	Name() string
}

// SearchItem is one hit returned by the search API.
type SearchItem struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// Searcher runs one page of a site-restricted web search.
type Searcher interface {
	// Search returns up to pageSize hits starting at the 1-based offset start.
	// An empty slice ends pagination.
	Search(ctx context.Context, query string, start int) ([]SearchItem, error)
}
