package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealscout/config"
	"sjsage522/dealscout/internal/pipeline"
	"sjsage522/dealscout/internal/product"
	"sjsage522/dealscout/pkg/errors"
	"sjsage522/dealscout/services/cache"
	"sjsage522/dealscout/services/imaging"
	"sjsage522/dealscout/services/publisher"
	"sjsage522/dealscout/services/visualsearch"
)

var (
	_ Scraper        = (*fakeScraper)(nil)
	_ Uploader       = (*fakeUploader)(nil)
	_ VisualSearcher = (*fakeVisual)(nil)
	_ ImageTools     = (*fakeImages)(nil)
	_ Scraper        = (*pipeline.Pipeline)(nil)
	_ ImageTools     = (*imaging.Service)(nil)
	_ VisualSearcher = (*visualsearch.Client)(nil)
	_ Pinger         = (*cache.MemcacheService)(nil)
	_ Pinger         = (*publisher.RedisPublisher)(nil)
	_ Pinger         = pingFunc(nil)
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fakeScraper struct {
	res   *pipeline.Result
	err   error
	site  string
	calls int
}

func (f *fakeScraper) Run(_ context.Context, site string, _ product.Filter) (*pipeline.Result, error) {
	f.calls++
	f.site = site
	return f.res, f.err
}

type fakeUploader struct {
	data []byte
	mime string
}

func (f *fakeUploader) Upload(_ context.Context, data []byte, filename, contentType string) (string, error) {
	f.data, f.mime = data, contentType
	return "https://bucket.s3.amazonaws.com/uploads/x-" + filename, nil
}

type fakeVisual struct {
	imageURL string
}

func (f *fakeVisual) Search(_ context.Context, imageURL string) ([]visualsearch.Match, error) {
	f.imageURL = imageURL
	return []visualsearch.Match{{Title: "Bata Comfit", Store: "Bata", URL: "https://shop.test/1"}}, nil
}

type fakeImages struct {
	dir        string
	replaceErr error
}

func (f *fakeImages) Describe(context.Context, []byte, string) (imaging.Description, error) {
	return imaging.Description{FootwearType: "slide", ShortSearchDescription: "black EVA slide"}, nil
}

func (f *fakeImages) BOMWithViews(context.Context, []byte, string) (imaging.Views, imaging.BOM, error) {
	return imaging.Views{Top: []byte("top"), Side: []byte("side")}, imaging.BOM{ProductName: "Slide"}, nil
}

func (f *fakeImages) Replace(_ context.Context, _, _ string, size int) (*imaging.ReplaceResult, error) {
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	return &imaging.ReplaceResult{Status: "success", Size: size, SoleLengthMM: 260, BOM: imaging.FallbackBOM(),
		Views: map[string]string{"edited": "/image/static/abc_edited.png"}}, nil
}

func (f *fakeImages) StaticDir() string     { return f.dir }
func (f *fakeImages) StaticDirExists() bool { return true }

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Images == nil {
		deps.Images = &fakeImages{dir: t.TempDir()}
	}
	cfg := &config.Config{Port: "0", CORSOrigin: "*", MaxUploadBytes: 1024}
	return New(cfg, deps)
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="shoe.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, Deps{OpenAIConfigured: true})

	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"API is running"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	body := decode(t, do(s, httptest.NewRequest(http.MethodGet, "/api/health", nil)))
	assert.Equal(t, true, body["openai_configured"])
	assert.Equal(t, false, body["google_configured"])
	assert.Len(t, body["websites"], 4)

	body = decode(t, do(s, httptest.NewRequest(http.MethodGet, "/api/websites", nil)))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 4.0, body["total"])

	rec = do(s, httptest.NewRequest(http.MethodOptions, "/api/scrape", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestScrape(t *testing.T) {
	fs := &fakeScraper{res: &pipeline.Result{
		Website:  "flipkart",
		Filters:  product.Filter{Brand: []string{"Nike"}},
		Products: []product.Record{{ID: "prod_0001", Name: "Nike Revolution 6"}},
		Duration: 1234 * time.Millisecond,
	}}
	s := newTestServer(t, Deps{Scraper: fs})

	req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"filters":{"brand":["Nike"]}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "flipkart", fs.site)
	assert.Equal(t, 1.0, body["total_products"])
	assert.Equal(t, 1.23, body["processing_time_seconds"])
	assert.Equal(t, []any{"Nike"}, body["filters_applied"].(map[string]any)["brand"])
}

func TestScrapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", errors.NewValidation("filters", "at least one brand is required"), http.StatusBadRequest},
		{"no urls", errors.NewEmptyStage(errors.StageDiscover, "no product URLs found"), http.StatusBadGateway},
		{"no products", errors.NewEmptyStage(errors.StageExtract, "no products matched the filters"), http.StatusNotFound},
		{"rate limited", errors.NewRateLimit(errors.StageDiscover, time.Minute), http.StatusTooManyRequests},
		{"untyped", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Deps{Scraper: &fakeScraper{err: tt.err}})
			req := httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`{"website":"Amazon","filters":{"brand":["x"]}}`))
			rec := do(s, req)
			assert.Equal(t, tt.status, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["timestamp"])
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}

	fs := &fakeScraper{}
	s := newTestServer(t, Deps{Scraper: fs})
	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/scrape", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fs.calls)
}

func TestSimilarProducts(t *testing.T) {
	up := &fakeUploader{}
	vs := &fakeVisual{}
	s := newTestServer(t, Deps{Uploader: up, VisualSearch: vs})

	rec := do(s, uploadRequest(t, "/similar-products", "image/png", pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1.0, body["count"])
	assert.Equal(t, "image/png", up.mime)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/uploads/x-shoe.png", vs.imageURL)

	s = newTestServer(t, Deps{})
	rec = do(s, uploadRequest(t, "/similar-products", "image/png", pngBytes(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t, Deps{Uploader: &fakeUploader{}, VisualSearch: &fakeVisual{}})

	rec := do(s, uploadRequest(t, "/describe-product", "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, uploadRequest(t, "/describe-product", "image/png", []byte("definitely not an image")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, uploadRequest(t, "/bom-orthographic-view", "image/png", bytes.Repeat([]byte{0x89}, 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/similar-products", strings.NewReader(""))
	rec = do(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDescribeAndBOM(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := do(s, uploadRequest(t, "/describe-product", "image/png", pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "black EVA slide", decode(t, rec)["short_search_description"])

	rec = do(s, uploadRequest(t, "/bom-orthographic-view", "image/png", pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "dG9w", body["top_view"])
	assert.Equal(t, "c2lkZQ==", body["side_view"])
	assert.Equal(t, "Slide", body["bom_details"].(map[string]any)["product_name"])
}

func TestReplaceImage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc_edited.png"), []byte("png"), 0o644))
	s := newTestServer(t, Deps{Images: &fakeImages{dir: dir}})

	form := url.Values{"image_url": {"https://cdn.test/a.png"}, "prompt": {"blue strap"}, "size": {"8"}}
	req := httptest.NewRequest(http.MethodPost, "/image/replace", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, 260.0, body["sole_length_mm"])
	assert.Equal(t, "Unknown Product", body["bom"].(map[string]any)["product_name"])

	rec = do(s, httptest.NewRequest(http.MethodGet, "/image/static/abc_edited.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	form.Set("size", "eight")
	req = httptest.NewRequest(http.MethodPost, "/image/replace", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)

	body = decode(t, do(s, httptest.NewRequest(http.MethodGet, "/image/health", nil)))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, dir, body["static_dir"])
}

func TestMetricsEndpoint(t *testing.T) {
	m := pipeline.NewMetrics()
	m.IncRun("flipkart", "success")
	s := newTestServer(t, Deps{Metrics: m})

	rec := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dealscout_scrape_runs_total")
}

func TestUploadBodyIsCapped(t *testing.T) {
	up := &fakeUploader{}
	s := newTestServer(t, Deps{Uploader: up, VisualSearch: &fakeVisual{}})
	huge := bytes.Repeat([]byte{0x89}, 256<<10)

	rec := do(s, uploadRequest(t, "/similar-products", "image/png", huge))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Image size must be under 0MB", decode(t, rec)["error"])

	req := uploadRequest(t, "/similar-products", "image/png", huge)
	req.ContentLength = -1
	rec = do(s, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, up.data)
}

func TestHealthChecks(t *testing.T) {
	s := newTestServer(t, Deps{Checks: map[string]Pinger{
		"memcache": pingFunc(func(context.Context) error { return nil }),
	}})
	body := decode(t, do(s, httptest.NewRequest(http.MethodGet, "/api/health", nil)))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"memcache": "ok"}, body["checks"])

	s = newTestServer(t, Deps{Checks: map[string]Pinger{
		"memcache": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return fmt.Errorf("dial tcp: refused") }),
	}})
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"memcache": "ok", "redis": "unavailable"}, body["checks"])
	assert.NotContains(t, rec.Body.String(), "refused")
}
