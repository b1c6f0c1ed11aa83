package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"activity-sync/config"
	"activity-sync/models"
	"activity-sync/utils"

	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

// PageLoader fetches the HTML of one page. A loader is owned by a single worker.
type PageLoader interface {
	Load(ctx context.Context, url string) (string, error)
	Close() error
}

// LoaderFactory creates the loader for one detail worker
type LoaderFactory func() (PageLoader, error)

// ChromeTabLoader loads pages in its own browser tab
type ChromeTabLoader struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func (l *ChromeTabLoader) Load(ctx context.Context, url string) (string, error) {
	var html string
	err := runIn(ctx, l.ctx, l.timeout,
		chromedp.Navigate(url),
		waitReady(l.timeout),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func (l *ChromeTabLoader) Close() error {
	l.cancel()
	return nil
}

// HTTPLoader fetches detail pages without a browser. Works for widgets that
// render detail pages server-side.
type HTTPLoader struct {
	client *resty.Client
}

// NewHTTPLoader creates a loader with a shared client; it is safe for concurrent use
func NewHTTPLoader(timeout time.Duration, retries int) *HTTPLoader {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(retries)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "text/html")
	return &HTTPLoader{client: client}
}

func (l *HTTPLoader) Load(ctx context.Context, url string) (string, error) {
	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status())
	}
	return resp.String(), nil
}

func (l *HTTPLoader) Close() error { return nil }

// DetailFetcher enriches listings from their detail pages with a fixed pool of workers
type DetailFetcher struct {
	newLoader LoaderFactory
	parser    *DetailParser
	workers   int
	timeout   time.Duration
	logger    *utils.Logger
}

// NewDetailFetcher creates a fetcher running cfg.DetailConcurrency workers
func NewDetailFetcher(newLoader LoaderFactory, parser *DetailParser, cfg *config.Config, logger *utils.Logger) *DetailFetcher {
	workers := cfg.DetailConcurrency
	if workers < 1 {
		workers = 1
	}
	return &DetailFetcher{
		newLoader: newLoader,
		parser:    parser,
		workers:   workers,
		timeout:   cfg.DetailTimeout(),
		logger:    logger,
	}
}

// Enrich returns a slice of the same length and order as listings. Listings
// whose detail page fails to load or parse come back unchanged.
func (f *DetailFetcher) Enrich(ctx context.Context, rc *models.RunContext, listings []*models.Listing) []*models.Listing {
	out := make([]*models.Listing, len(listings))
	copy(out, listings)

	var jobs []int
	for i, l := range listings {
		if l.DetailURL != "" {
			jobs = append(jobs, i)
		}
	}
	if len(jobs) == 0 {
		return out
	}

	workers := min(f.workers, len(jobs))
	var loaders []PageLoader
	for w := 0; w < workers; w++ {
		loader, err := f.newLoader()
		if err != nil {
			f.logger.Error("Failed to create detail loader %d: %v", w+1, err)
			continue
		}
		loaders = append(loaders, loader)
	}
	if len(loaders) == 0 {
		f.logger.Error("No detail loaders available, %d listings stay unenriched", len(jobs))
		return out
	}

	f.logger.Info("Fetching %d detail pages with %d workers", len(jobs), len(loaders))
	start := time.Now()

	queue := make(chan int)
	var g errgroup.Group
	for _, loader := range loaders {
		loader := loader
		g.Go(func() error {
			defer loader.Close()
			for i := range queue {
				if enriched := f.enrichOne(ctx, rc, loader, listings[i]); enriched != nil {
					out[i] = enriched
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(queue)
		for _, i := range jobs {
			select {
			case queue <- i:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	_ = g.Wait()

	f.logger.Info("Detail fetching finished in %v", time.Since(start).Round(time.Millisecond))
	return out
}

// enrichOne returns an enriched copy of l, or nil when the page couldn't be used
func (f *DetailFetcher) enrichOne(ctx context.Context, rc *models.RunContext, loader PageLoader, l *models.Listing) *models.Listing {
	if ctx.Err() != nil {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	html, err := loader.Load(lctx, l.DetailURL)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// the run stopped; not this listing's fault
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(lctx.Err(), context.DeadlineExceeded):
			rc.DetailTimeout()
			f.logger.Warn("Detail page timed out for '%s' (%s)", l.Name, l.ExternalID)
		default:
			rc.DetailError()
			f.logger.Warn("Detail page failed for '%s' (%s): %v", l.Name, l.ExternalID, err)
		}
		return nil
	}

	detail, err := f.parser.ParseDetailPage(html, l.DetailURL)
	if err != nil {
		rc.DetailError()
		f.logger.Debug("Detail parse failed for '%s': %v", l.Name, err)
		return nil
	}

	enriched := l.Clone()
	detail.ApplyTo(enriched)
	return enriched
}
