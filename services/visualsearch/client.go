// Package visualsearch finds visually similar products for an image URL
// through the SearchAPI google_lens engine.
package visualsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sjsage522/dealscout/config"
	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

const (
	defaultTimeout = 30 * time.Second
	unknownTitle   = "Unknown Product"
)

// Match is one visually similar product. Price, rating and reviews are
// passed through in whatever shape the engine returns them.
type Match struct {
	Title   string          `json:"title"`
	Image   string          `json:"image"`
	Price   json.RawMessage `json:"price"`
	Rating  json.RawMessage `json:"rating"`
	Reviews json.RawMessage `json:"reviews"`
	Store   string          `json:"store"`
	URL     string          `json:"url"`
}

// Client queries the visual search API.
type Client struct {
	endpoint string
	apiKey   string
	country  string
	client   *http.Client
	log      *logger.Logger
}

// NewClient creates a client. A nil http client gets a 30s timeout.
func NewClient(endpoint, apiKey, country string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		country:  country,
		client:   client,
		log:      logger.ForComponent("visual_search"),
	}
}

// NewFromConfig creates a client from the visual search settings.
func NewFromConfig(cfg *config.Config) *Client {
	return NewClient(cfg.VisualSearchURL, cfg.VisualSearchKey, cfg.VisualSearchCountry, nil)
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type lensResponse struct {
	VisualMatches []lensMatch `json:"visual_matches"`
}

type lensMatch struct {
	Title     string          `json:"title"`
	Link      string          `json:"link"`
	Source    string          `json:"source"`
	Thumbnail string          `json:"thumbnail"`
	Image     json.RawMessage `json:"image"`
	Price     json.RawMessage `json:"price"`
	Rating    json.RawMessage `json:"rating"`
	Reviews   json.RawMessage `json:"reviews"`
}

// Search returns visual matches for a publicly reachable image URL. A
// response without visual_matches yields an empty slice.
func (c *Client) Search(ctx context.Context, imageURL string) ([]Match, error) {
	if !c.Configured() {
		return nil, errors.NewConfiguration("SEARCH_API_KEY is not set", nil)
	}

	params := url.Values{}
	params.Set("engine", "google_lens")
	params.Set("url", imageURL)
	params.Set("api_key", c.apiKey)
	params.Set("search_type", "visual_matches")
	params.Set("country", c.country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.NewUpstream(errors.StageSearch, "failed to create request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewUpstream(errors.StageSearch, "visual search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.New(errors.ErrorTypeRateLimit, errors.StageSearch, "visual search rate limited", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUpstream(errors.StageSearch, fmt.Sprintf("visual search returned status %d", resp.StatusCode), nil)
	}

	var body lensResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.NewMalformed(errors.StageSearch, "failed to decode visual search response", err)
	}
	if body.VisualMatches == nil {
		c.log.Warn().Str("image_url", imageURL).Msg("Response has no visual_matches")
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(body.VisualMatches))
	for _, m := range body.VisualMatches {
		matches = append(matches, toMatch(m))
	}
	c.log.Info().Int("count", len(matches)).Msg("Visual search finished")
	return matches, nil
}

func toMatch(m lensMatch) Match {
	title := m.Title
	if title == "" {
		title = unknownTitle
	}
	image := imageLink(m.Image)
	if image == "" {
		image = m.Thumbnail
	}
	return Match{
		Title:   title,
		Image:   image,
		Price:   nullIfEmpty(m.Price),
		Rating:  nullIfEmpty(m.Rating),
		Reviews: nullIfEmpty(m.Reviews),
		Store:   m.Source,
		URL:     m.Link,
	}
}

// imageLink reads image.link when image is an object.
func imageLink(raw json.RawMessage) string {
	var obj struct {
		Link string `json:"link"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	return obj.Link
}

func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
