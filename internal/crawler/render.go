package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rag-backend/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

func (l *Loader) renderPage(ctx context.Context, rawURL string) (*models.Page, error) {
	renderTimeout := l.cfg.RenderTimeout
	if renderTimeout <= 0 {
		renderTimeout = 45 * time.Second
	}
	networkIdle := l.cfg.NetworkIdleAfter
	if networkIdle <= 0 {
		networkIdle = 1200 * time.Millisecond
	}

	html, err := renderPageHTML(ctx, rawURL, renderTimeout, l.cfg.UserAgent, l.cfg.WaitSelector, networkIdle)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered HTML: %w", err)
	}

	return &models.Page{
		URL:         rawURL,
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Content:     extractMainContentFromSelection(doc.Selection),
		ContentType: "text/html",
		StatusCode:  200,
		FetchedAt:   time.Now(),
	}, nil
}

// renderPageHTML launches a headless browser, waits for readiness and network idle, then returns HTML
func renderPageHTML(parent context.Context, urlStr string, timeout time.Duration, userAgent, waitSelector string, networkIdleAfter time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", err
	}

	// Readiness, selector and idle waits are all soft-fail
	readyCtx, cancelReady := context.WithTimeout(browserCtx, 10*time.Second)
	_ = chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	cancelReady()

	if waitSelector != "" {
		selCtx, cancelSel := context.WithTimeout(browserCtx, 15*time.Second)
		_ = chromedp.Run(selCtx, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
		cancelSel()
	}

	if networkIdleAfter > 0 {
		idleCap := networkIdleAfter
		if idleCap > 5*time.Second {
			idleCap = 5 * time.Second
		}
		idleCtx, cancelIdle := context.WithTimeout(browserCtx, idleCap+time.Second)
		_ = chromedp.Run(idleCtx, waitForNetworkIdle(idleCap))
		cancelIdle()
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// waitForNetworkIdle waits until no network requests are in flight for the given duration
func waitForNetworkIdle(d time.Duration) chromedp.ActionFunc {
	js := `(function(waitMs){
      return new Promise((resolve)=>{
        if (!('PerformanceObserver' in window)) {
          setTimeout(resolve, waitMs);
          return;
        }
        let last = Date.now();
        const obs = new PerformanceObserver(()=>{ last = Date.now(); });
        try { obs.observe({entryTypes:['resource','navigation']}); } catch(e) {}
        const tick = () => {
          if (Date.now()-last >= waitMs) { try { obs.disconnect(); } catch(e){} resolve(); return; }
          setTimeout(tick, 100);
        };
        tick();
      });
    })(%d);`
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(js, int(d.Milliseconds())), nil))
	}
}
