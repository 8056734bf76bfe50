package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

// renderFunction runs inside the remote browser: navigate, settle, scroll
// a few times to trigger lazy loading, then hand back the document.
const renderFunction = `module.exports = async ({ page, context }) => {
	await page.setViewport({ width: 1366, height: 900 });
	await page.setUserAgent(context.userAgent);
	await page.goto(context.url, { waitUntil: 'domcontentloaded', timeout: context.timeout });
	await new Promise(r => setTimeout(r, context.settle));
	for (let i = 0; i < context.scrolls; i++) {
		await page.mouse.wheel({ deltaY: 800 });
		await new Promise(r => setTimeout(r, context.scrollDelay));
	}
	return { data: await page.content(), type: 'text/html' };
}`

// BrowserConfig holds the knobs shared by the headless renderers.
type BrowserConfig struct {
	NavigateTimeout time.Duration
	SettleDelay     time.Duration
	ScrollCycles    int
	ScrollDelay     time.Duration
	UserAgent       string
}

// captureMargin covers the final HTML capture after the last scroll.
const captureMargin = 2 * time.Second

// RenderBudget is the total time one render may take: the navigation
// budget plus settle, scroll cycles and capture.
func (c BrowserConfig) RenderBudget() time.Duration {
	if c.NavigateTimeout <= 0 {
		return 0
	}
	return c.NavigateTimeout + c.SettleDelay + time.Duration(c.ScrollCycles)*c.ScrollDelay + captureMargin
}

// BrowserlessRenderer renders pages on a remote browserless (ChromeDB) service.
type BrowserlessRenderer struct {
	addr   string
	cfg    BrowserConfig
	client *http.Client
	log    *logger.Logger
}

// NewBrowserlessRenderer creates a renderer for the service at addr.
func NewBrowserlessRenderer(addr string, cfg BrowserConfig, client *http.Client) *BrowserlessRenderer {
	if client == nil {
		client = &http.Client{}
	}
	return &BrowserlessRenderer{
		addr:   strings.TrimRight(addr, "/"),
		cfg:    cfg,
		client: client,
		log:    logger.ForComponent("browserless"),
	}
}

// Name implements Renderer
func (b *BrowserlessRenderer) Name() string { return "browserless" }

// CheckHealth checks if the browser service is reachable
func (b *BrowserlessRenderer) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.addr+"/", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("browser service not reachable at %s: %w", b.addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("browser service error (status %d)", resp.StatusCode)
	}
	return nil
}

// Render implements Renderer
func (b *BrowserlessRenderer) Render(ctx context.Context, url string) (string, error) {
	payload := map[string]interface{}{
		"code": renderFunction,
		"context": map[string]interface{}{
			"url":         url,
			"userAgent":   b.cfg.UserAgent,
			"timeout":     b.cfg.NavigateTimeout.Milliseconds(),
			"settle":      b.cfg.SettleDelay.Milliseconds(),
			"scrolls":     b.cfg.ScrollCycles,
			"scrollDelay": b.cfg.ScrollDelay.Milliseconds(),
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal function payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.addr+"/function", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create function request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", errors.NewUpstream(errors.StageFetch, "browser function request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		b.log.Debug().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Browser function failed")
		return "", errors.NewUpstream(errors.StageFetch, fmt.Sprintf("browser function returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read browser function response: %w", err)
	}
	if len(body) == 0 {
		return "", errors.NewMalformed(errors.StageFetch, "empty response from browser function", nil)
	}

	return extractRenderedHTML(body), nil
}

// extractRenderedHTML unwraps the JSON envelopes browserless may return.
// Anything that is not a recognised envelope is treated as raw HTML.
func extractRenderedHTML(body []byte) string {
	content := string(body)
	if !strings.HasPrefix(strings.TrimSpace(content), "{") {
		return content
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return content
	}

	if data, ok := result["data"].(map[string]interface{}); ok {
		if html, ok := data["content"].(string); ok && html != "" {
			return html
		}
	}
	for _, key := range []string{"data", "content", "result", "html"} {
		if html, ok := result[key].(string); ok && html != "" {
			return html
		}
	}
	return content
}
