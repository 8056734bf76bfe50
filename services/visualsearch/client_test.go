package visualsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealscout/pkg/errors"
)

const testEndpoint = "https://lens.test/api/v1/search"

func newTestClient(transport http.RoundTripper) *Client {
	return NewClient(testEndpoint, "key", "in", &http.Client{Transport: transport})
}

func TestSearch(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "=~^"+testEndpoint, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		assert.Equal(t, "google_lens", q.Get("engine"))
		assert.Equal(t, "visual_matches", q.Get("search_type"))
		assert.Equal(t, "in", q.Get("country"))
		assert.Equal(t, "key", q.Get("api_key"))
		assert.Equal(t, "https://bucket.s3.amazonaws.com/uploads/a.jpg", q.Get("url"))
		return httpmock.NewStringResponse(200, `{"visual_matches":[
			{"title":"Bata Comfit","link":"https://shop.test/1","source":"Bata","image":{"link":"https://img.test/1.jpg"},"price":{"value":"₹799","extracted_value":799},"rating":4.2,"reviews":120},
			{"link":"https://shop.test/2","source":"Myntra","thumbnail":"https://img.test/thumb2.jpg","image":"not-an-object"}
		]}`), nil
	})

	matches, err := newTestClient(transport).Search(context.Background(), "https://bucket.s3.amazonaws.com/uploads/a.jpg")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "Bata Comfit", matches[0].Title)
	assert.Equal(t, "https://img.test/1.jpg", matches[0].Image)
	assert.Equal(t, "Bata", matches[0].Store)
	assert.JSONEq(t, `{"value":"₹799","extracted_value":799}`, string(matches[0].Price))

	assert.Equal(t, "Unknown Product", matches[1].Title)
	assert.Equal(t, "https://img.test/thumb2.jpg", matches[1].Image)

	out, err := json.Marshal(matches[1])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"price":null`)
}

func TestSearchWithoutMatches(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "=~^"+testEndpoint, httpmock.NewStringResponder(200, `{"search_metadata":{}}`))

	matches, err := newTestClient(transport).Search(context.Background(), "https://x.test/a.jpg")
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestSearchFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errors.ErrorType
	}{
		{"server error", 500, `{}`, errors.ErrorTypeUpstream},
		{"rate limited", 429, `{}`, errors.ErrorTypeRateLimit},
		{"bad body", 200, `<html>`, errors.ErrorTypeMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", "=~^"+testEndpoint, httpmock.NewStringResponder(tt.status, tt.body))
			_, err := newTestClient(transport).Search(context.Background(), "https://x.test/a.jpg")
			assert.True(t, errors.IsType(err, tt.want), err)
		})
	}

	_, err := NewClient(testEndpoint, "", "in", nil).Search(context.Background(), "u")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}
