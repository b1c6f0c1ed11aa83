package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"activity-sync/config"
	"activity-sync/utils"

	"github.com/chromedp/chromedp"
)

// ErrNoMatch is returned when no element matches a selector and label
var ErrNoMatch = errors.New("no matching element")

const (
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	pollInterval = 250 * time.Millisecond
)

// Browser is the stateful browsing session the navigator drives. Widget menus
// are not addressable by URL, so every category is reached by clicking.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// ClickText clicks the first element matching selector whose text equals label
	ClickText(ctx context.Context, selector, label string) error
	// ClickAll clicks every visible, not yet clicked match and returns how many it clicked
	ClickAll(ctx context.Context, selector string) (int, error)
	Count(ctx context.Context, selector string) (int, error)
	WaitFor(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	Close()
}

// ChromeBrowser drives a headless Chrome through chromedp
type ChromeBrowser struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *utils.Logger
}

// NewChromeBrowser starts a browser with the first tab open
func NewChromeBrowser(cfg *config.Config, logger *utils.Logger) (*ChromeBrowser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("log-level", "3"), // suppress Chrome logs
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	b := &ChromeBrowser{
		ctx: ctx,
		cancel: func() {
			cancelCtx()
			cancelAlloc()
		},
		timeout: cfg.PerPageTimeout(),
		logger:  logger,
	}

	// an empty Run starts the browser so launch failures surface here
	if err := chromedp.Run(ctx); err != nil {
		b.cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return b, nil
}

// runIn executes actions on the tab behind base, bounded by timeout and by the caller's ctx
func runIn(ctx, base context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(base, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// waitReady polls until the document finished loading. Evaluation errors while
// a navigation is in flight just mean "not yet".
func waitReady(timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return utils.PollUntil(ctx, pollInterval, timeout, func(ctx context.Context) (bool, error) {
			var state string
			if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
				return false, nil
			}
			return state == "complete", nil
		})
	})
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	return runIn(ctx, b.ctx, b.timeout, chromedp.Navigate(url), waitReady(b.timeout))
}

const clickTextJS = `(function(sel, label) {
	var want = label.replace(/\s+/g, ' ').trim().toLowerCase();
	var els = document.querySelectorAll(sel);
	for (var i = 0; i < els.length; i++) {
		var t = (els[i].innerText || els[i].textContent || '').replace(/\s+/g, ' ').trim().toLowerCase();
		if (t === want) {
			els[i].click();
			return true;
		}
	}
	return false;
})(%s, %s)`

func (b *ChromeBrowser) ClickText(ctx context.Context, selector, label string) error {
	var clicked bool
	err := runIn(ctx, b.ctx, b.timeout,
		chromedp.Evaluate(fmt.Sprintf(clickTextJS, jsString(selector), jsString(label)), &clicked),
	)
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s %q", ErrNoMatch, selector, label)
	}
	return runIn(ctx, b.ctx, b.timeout, waitReady(b.timeout))
}

// Expanded affordances are tagged so the next pass only clicks new ones
const clickAllJS = `(function(sel) {
	var n = 0;
	document.querySelectorAll(sel).forEach(function(el) {
		if (el.getAttribute('data-sync-expanded')) return;
		if (el.offsetParent === null) return;
		el.setAttribute('data-sync-expanded', '1');
		el.click();
		n++;
	});
	return n;
})(%s)`

func (b *ChromeBrowser) ClickAll(ctx context.Context, selector string) (int, error) {
	var n int
	err := runIn(ctx, b.ctx, b.timeout,
		chromedp.Evaluate(fmt.Sprintf(clickAllJS, jsString(selector)), &n),
	)
	return n, err
}

func (b *ChromeBrowser) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := runIn(ctx, b.ctx, b.timeout,
		chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector)), &n),
	)
	return n, err
}

func (b *ChromeBrowser) WaitFor(ctx context.Context, selector string) error {
	return utils.PollUntil(ctx, pollInterval, b.timeout, func(ctx context.Context) (bool, error) {
		n, err := b.Count(ctx, selector)
		return n > 0, err
	})
}

func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	err := runIn(ctx, b.ctx, b.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (b *ChromeBrowser) Location(ctx context.Context) (string, error) {
	var url string
	err := runIn(ctx, b.ctx, b.timeout, chromedp.Location(&url))
	return url, err
}

// NewTabLoader opens another tab in the same browser for a detail worker
func (b *ChromeBrowser) NewTabLoader() (PageLoader, error) {
	ctx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &ChromeTabLoader{ctx: ctx, cancel: cancel, timeout: b.timeout}, nil
}

func (b *ChromeBrowser) Close() {
	b.cancel()
}
