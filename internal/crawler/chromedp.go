package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"sjsage522/dealscout/logger"
	"sjsage522/dealscout/pkg/errors"
)

// ChromedpRenderer drives a local headless Chrome, one tab per page.
type ChromedpRenderer struct {
	cfg BrowserConfig

	allocCtx     context.Context
	cancelAlloc  context.CancelFunc
	browserCtx   context.Context
	cancelBrowse context.CancelFunc

	startOnce sync.Once
	startErr  error
	log       *logger.Logger
}

// NewChromedpRenderer prepares the browser allocator. Chrome itself is
// launched on the first Render.
func NewChromedpRenderer(parent context.Context, cfg BrowserConfig) *ChromedpRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
	)

	r := &ChromedpRenderer{cfg: cfg, log: logger.ForComponent("chromedp")}
	r.allocCtx, r.cancelAlloc = chromedp.NewExecAllocator(parent, opts...)
	r.browserCtx, r.cancelBrowse = chromedp.NewContext(r.allocCtx)
	return r
}

// Name implements Renderer
func (r *ChromedpRenderer) Name() string { return "chromedp" }

func (r *ChromedpRenderer) start() error {
	r.startOnce.Do(func() {
		r.startErr = chromedp.Run(r.browserCtx)
		if r.startErr != nil {
			r.log.Error().Err(r.startErr).Msg("Failed to launch headless browser")
		}
	})
	return r.startErr
}

// Render implements Renderer
func (r *ChromedpRenderer) Render(ctx context.Context, url string) (string, error) {
	if err := r.start(); err != nil {
		return "", errors.NewUpstream(errors.StageFetch, "headless browser unavailable", err)
	}

	tab, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	navCtx := tab
	if r.cfg.NavigateTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(tab, r.cfg.NavigateTimeout)
		defer cancel()
	}

	// Only navigation and DOM readiness count against NavigateTimeout.
	if err := chromedp.Run(navCtx,
		navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", errors.NewUpstream(errors.StageFetch, "navigation failed", err)
	}

	actions := []chromedp.Action{chromedp.Sleep(r.cfg.SettleDelay)}
	for i := 0; i < r.cfg.ScrollCycles; i++ {
		var scrolled bool
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, 800); true`, &scrolled),
			chromedp.Sleep(r.cfg.ScrollDelay),
		)
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tab, actions...); err != nil {
		return "", errors.NewUpstream(errors.StageFetch, "capturing rendered page failed", err)
	}
	return html, nil
}

// navigate issues Page.navigate without waiting for the load event, which
// chromedp.Navigate does. Readiness is left to a following WaitReady.
func navigate(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		return nil
	})
}

// Close shuts the browser down.
func (r *ChromedpRenderer) Close() {
	r.cancelBrowse()
	r.cancelAlloc()
}

// DefaultBrowserConfig mirrors the pipeline defaults.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		NavigateTimeout: 10 * time.Second,
		SettleDelay:     time.Second,
		ScrollCycles:    2,
		ScrollDelay:     300 * time.Millisecond,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
}
