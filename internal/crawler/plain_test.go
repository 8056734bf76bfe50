package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealscout/pkg/errors"
)

func TestPlainFetcherRender(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(renderedPage))
	}))
	defer server.Close()

	p := NewPlainFetcher(server.Client(), NewMockCacheService(), time.Minute)
	html, err := p.Render(context.Background(), server.URL+"/p/1")
	require.NoError(t, err)
	assert.Equal(t, renderedPage, html)
	assert.Equal(t, "plain", p.Name())
}

func TestPlainFetcherBlocksRateLimitedHost(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	mockCache := NewMockCacheService()
	p := NewPlainFetcher(server.Client(), mockCache, time.Minute)

	_, err := p.Render(context.Background(), server.URL+"/p/1")
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))

	u, _ := url.Parse(server.URL)
	val, cacheErr := mockCache.Get(u.Hostname() + "_rate_limited")
	require.NoError(t, cacheErr)
	assert.Equal(t, "60", string(val))

	_, err = p.Render(context.Background(), server.URL+"/p/2")
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.Equal(t, 1, calls)
}

func TestPlainFetcherUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := NewPlainFetcher(server.Client(), nil, time.Minute)
	_, err := p.Render(context.Background(), server.URL)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUpstream))
}

func TestBlockKey(t *testing.T) {
	assert.Equal(t, "www.amazon.in_rate_limited", blockKey("https://www.amazon.in/x/dp/B01"))
	assert.Equal(t, "", blockKey("not a url"))
}
