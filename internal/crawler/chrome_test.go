package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealscout/config"
)

const renderedPage = "<html><body><div class='product'>Nike Revolution 6</div></body></html>"

func TestBrowserlessRender(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/function", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload struct {
			Code    string         `json:"code"`
			Context map[string]any `json:"context"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Contains(t, payload.Code, "page.goto")
		assert.Equal(t, "https://shop.test/p/1", payload.Context["url"])
		assert.Equal(t, float64(2), payload.Context["scrolls"])
		assert.Equal(t, float64(300), payload.Context["scrollDelay"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": renderedPage, "type": "text/html"})
	}))
	defer server.Close()

	r := NewBrowserlessRenderer(server.URL+"/", DefaultBrowserConfig(), server.Client())
	html, err := r.Render(context.Background(), "https://shop.test/p/1")
	require.NoError(t, err)
	assert.Equal(t, renderedPage, html)
	assert.Equal(t, "browserless", r.Name())
}

func TestBrowserlessRenderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("too many sessions"))
	}))
	defer server.Close()

	r := NewBrowserlessRenderer(server.URL, DefaultBrowserConfig(), server.Client())
	_, err := r.Render(context.Background(), "https://shop.test/p/1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestBrowserlessRenderHonoursDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := NewBrowserlessRenderer(server.URL, DefaultBrowserConfig(), server.Client())
	_, err := r.Render(ctx, "https://shop.test/p/1")
	assert.Error(t, err)
}

func TestBrowserlessCheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := NewBrowserlessRenderer(server.URL, DefaultBrowserConfig(), server.Client())
	assert.NoError(t, r.CheckHealth(context.Background()))

	down := NewBrowserlessRenderer("http://127.0.0.1:1", DefaultBrowserConfig(), nil)
	assert.Error(t, down.CheckHealth(context.Background()))
}

func TestExtractRenderedHTML(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"raw html", renderedPage, renderedPage},
		{"data string", `{"data":"<html>a</html>"}`, "<html>a</html>"},
		{"data object", `{"data":{"content":"<html>b</html>"}}`, "<html>b</html>"},
		{"content field", `{"content":"<html>c</html>"}`, "<html>c</html>"},
		{"result field", `{"result":"<html>d</html>"}`, "<html>d</html>"},
		{"html field", `{"html":"<html>e</html>"}`, "<html>e</html>"},
		{"unknown envelope", `{"status":"ok"}`, `{"status":"ok"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractRenderedHTML([]byte(tt.body)))
		})
	}
}

func TestRenderBudgetCoversSettleAndScroll(t *testing.T) {
	cfg := DefaultBrowserConfig()
	assert.Equal(t, 10*time.Second+time.Second+600*time.Millisecond+captureMargin, cfg.RenderBudget())

	cfg.NavigateTimeout = 0
	assert.Zero(t, cfg.RenderBudget())

	f := NewFetcherFromConfig(&config.Config{
		RenderTimeout:    10 * time.Second,
		SettleDelay:      time.Second,
		ScrollCycles:     2,
		ScrollDelay:      300 * time.Millisecond,
		PlainTimeout:     5 * time.Second,
		FetchConcurrency: 8,
		MaxPages:         25,
	}, nil, nil)
	assert.Equal(t, DefaultBrowserConfig().RenderBudget(), f.cfg.RenderTimeout)
	assert.Equal(t, 5*time.Second, f.cfg.PlainTimeout)
}
