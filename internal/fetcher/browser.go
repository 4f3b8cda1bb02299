package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Browser drives a single Chrome tab through chromedp. Pages are loaded one
// after another in the same tab.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	log         *log.Logger
	dialogs     atomic.Int64
}

// NewBrowser starts Chrome and opens the tab used by every Fetch.
func NewBrowser(opts Options) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		log:         opts.logger(),
	}
	chromedp.ListenTarget(ctx, b.onEvent)

	// The first Run launches the browser.
	err := chromedp.Run(ctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept-Language": "en-US,en;q=0.9",
		})),
	)
	if err != nil {
		cancel()
		allocCancel()
		return nil, &SessionError{Err: err}
	}
	return b, nil
}

func (b *Browser) onEvent(ev interface{}) {
	e, ok := ev.(*page.EventJavascriptDialogOpening)
	if !ok {
		return
	}
	b.dialogs.Add(1)
	b.log.Warn("Accepting JavaScript dialog", "type", e.Type, "message", e.Message, "url", e.URL)
	// Handling must not block the event loop that delivered the event.
	go func() {
		if err := chromedp.Run(b.ctx, page.HandleJavaScriptDialog(true)); err != nil {
			b.log.Debug("Dialog already closed", "err", err)
		}
	}()
}

// Fetch navigates to url and waits for the selector chain. A navigation
// that does not finish loading within the budget still proceeds to the
// selector waits.
func (b *Browser) Fetch(ctx context.Context, url string, selectors ...string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	before := b.dialogs.Load()

	navCtx, done := b.bounded(ctx)
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	done()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("navigate %s: %w", url, err)
		}
		b.log.Debug("Page load still running, waiting for selectors", "url", url)
	}

	matched, err := b.waitAny(ctx, selectors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}

	var html, location string
	readCtx, done := b.bounded(ctx)
	defer done()
	if err := chromedp.Run(readCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return nil, fmt.Errorf("read document %s: %w", url, err)
	}

	return &Page{
		URL:     location,
		HTML:    html,
		Matched: matched,
		Dialogs: int(b.dialogs.Load() - before),
	}, nil
}

func (b *Browser) waitAny(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		waitCtx, done := b.bounded(ctx)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(sel, chromedp.ByQuery))
		done()
		if err == nil {
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("wait for %q: %w", sel, err)
		}
		b.log.Debug("Selector did not appear", "selector", sel, "timeout", b.opts.timeout())
	}
	if len(selectors) == 0 {
		return "", nil
	}
	return "", ErrWaitTimeout
}

// bounded derives a context from the tab with the wait budget that is also
// cancelled together with the caller's context.
func (b *Browser) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	waitCtx, cancel := context.WithTimeout(b.ctx, b.opts.timeout())
	stop := context.AfterFunc(ctx, cancel)
	return waitCtx, func() {
		stop()
		cancel()
	}
}

// Close shuts the tab and the browser process.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
