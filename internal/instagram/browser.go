package instagram

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer renders pages in headless Chrome so that script-injected
// meta tags are present.
type ChromeRenderer struct {
	Timeout time.Duration
	// Settle is how long to wait after the body is ready.
	Settle time.Duration
}

// NewChromeRenderer returns a renderer with conservative waits.
func NewChromeRenderer() *ChromeRenderer {
	return &ChromeRenderer{Timeout: 45 * time.Second, Settle: 2 * time.Second}
}

// Render loads url in headless Chrome and returns the page HTML once the
// body is ready and Settle has passed.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if r.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		browserCtx, cancelTimeout = context.WithTimeout(browserCtx, r.Timeout)
		defer cancelTimeout()
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(r.Settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}
