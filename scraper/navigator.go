package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activity-sync/config"
	"activity-sync/models"
	"activity-sync/utils"
)

var (
	// ErrEntryUnreachable means the entry page never loaded; nothing was extracted
	ErrEntryUnreachable = errors.New("entry point unreachable")
	// ErrCategoryNotFound means a category label had no matching link
	ErrCategoryNotFound = errors.New("category link not found")
	// ErrNavigation covers any other failure inside one category
	ErrNavigation = errors.New("navigation failed")
)

// NavState is a step of the navigator's per-category loop
type NavState string

const (
	StateIdle               NavState = "idle"
	StateAtEntry            NavState = "at_entry"
	StateInCategory         NavState = "in_category"
	StateExpanding          NavState = "expanding"
	StateExtractingCategory NavState = "extracting_category"
	StateDone               NavState = "done"
)

const (
	// maxExpandPasses caps fixed-point expansion on pages that keep producing affordances
	maxExpandPasses = 50
	// a category gets this many page timeouts: entry, click-through, expansion and capture
	categoryTimeoutPages = 4
	defaultRevealTimeout = 3 * time.Second
)

// Navigator walks one browsing session through the configured categories.
// It is single-threaded: the widget's menu state belongs to the session.
type Navigator struct {
	browser   Browser
	provider  Provider
	extractor *Extractor
	limiter   *utils.RateLimiter
	logger    *utils.Logger

	maxRetries    int
	pageTimeout   time.Duration
	revealTimeout time.Duration

	states []NavState
}

// NewNavigator creates a navigator for the provider's widget
func NewNavigator(browser Browser, provider Provider, cfg *config.Config, logger *utils.Logger) *Navigator {
	return &Navigator{
		browser:       browser,
		provider:      provider,
		extractor:     NewExtractor(provider, logger),
		limiter:       utils.NewRateLimiter(cfg.RateLimitDelayMs),
		logger:        logger,
		maxRetries:    cfg.MaxRetries,
		pageTimeout:   cfg.PerPageTimeout(),
		revealTimeout: defaultRevealTimeout,
	}
}

// States returns the transitions recorded by the last Run
func (n *Navigator) States() []NavState {
	return append([]NavState(nil), n.states...)
}

func (n *Navigator) setState(s NavState) {
	n.states = append(n.states, s)
	n.logger.Debug("navigator -> %s", s)
}

// Run visits each category in order and returns the listings found, in
// category order. Only an unreachable entry page is an error; a failing
// category is logged, counted on rc, and skipped. When ctx ends, intake stops
// and whatever was collected so far is returned.
func (n *Navigator) Run(ctx context.Context, rc *models.RunContext, categories []string) ([]*models.Listing, error) {
	n.states = nil
	n.setState(StateIdle)

	n.logger.Info("Loading %s entry page...", n.provider.Name())
	if err := n.gotoEntry(ctx); err != nil {
		n.setState(StateDone)
		return nil, fmt.Errorf("%w: %v", ErrEntryUnreachable, err)
	}

	var all []*models.Listing
	lostEntry := false
	for i, label := range categories {
		if ctx.Err() != nil {
			n.logger.Warn("Run timeout reached, stopping intake after %d/%d categories", i, len(categories))
			break
		}
		if i > 0 {
			if err := n.gotoEntry(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				rc.NavigationError()
				if lostEntry {
					n.logger.Error("Entry page unreachable twice in a row, stopping intake: %v", err)
					break
				}
				lostEntry = true
				n.logger.Error("Could not return to entry page, skipping category '%s': %v", label, err)
				continue
			}
			lostEntry = false
		}

		listings, err := n.visitCategory(ctx, rc, label)
		if err != nil {
			if ctx.Err() == nil {
				rc.NavigationError()
			}
			n.logger.Error("Category '%s' failed: %v", label, err)
			continue
		}
		all = append(all, listings...)
		n.logger.Info("Category '%s': collected %d listings (total so far: %d)", label, len(listings), len(all))
	}

	n.setState(StateDone)
	n.logger.Info("Intake complete. Total raw listings: %d", len(all))
	return all, nil
}

// gotoEntry loads the entry page, retrying with backoff
func (n *Navigator) gotoEntry(ctx context.Context) error {
	entry := n.provider.EntryURL()
	err := utils.RetryWithBackoff(ctx, n.maxRetries, time.Second, func(ctx context.Context) error {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := n.browser.Navigate(ctx, entry); err != nil {
			return fmt.Errorf("navigate %s: %w", entry, err)
		}
		if sel := n.provider.Selectors().Ready; sel != "" {
			return n.browser.WaitFor(ctx, sel)
		}
		return nil
	}, n.logger)
	if err != nil {
		return err
	}
	n.setState(StateAtEntry)
	return nil
}

func (n *Navigator) visitCategory(ctx context.Context, rc *models.RunContext, label string) ([]*models.Listing, error) {
	path := SplitCategoryPath(label)
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty category label", ErrCategoryNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, categoryTimeoutPages*n.pageTimeout)
	defer cancel()

	sel := n.provider.Selectors()
	for _, segment := range path {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if err := n.browser.ClickText(ctx, sel.CategoryLink, segment); err != nil {
			if errors.Is(err, ErrNoMatch) {
				return nil, fmt.Errorf("%w: %q", ErrCategoryNotFound, segment)
			}
			return nil, fmt.Errorf("%w: opening %q: %v", ErrNavigation, segment, err)
		}
		if sel.Ready != "" {
			if err := n.browser.WaitFor(ctx, sel.Ready); err != nil {
				return nil, fmt.Errorf("%w: waiting for %q: %v", ErrNavigation, segment, err)
			}
		}
	}
	n.setState(StateInCategory)

	n.setState(StateExpanding)
	passes, err := n.expandAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: expanding: %v", ErrNavigation, err)
	}
	n.logger.Debug("Category '%s' expanded in %d passes", label, passes)

	n.setState(StateExtractingCategory)
	html, err := n.browser.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: capturing page: %v", ErrNavigation, err)
	}
	base, err := n.browser.Location(ctx)
	if err != nil || base == "" {
		base = n.provider.EntryURL()
	}
	return n.extractor.Extract(rc, html, base, path)
}

// expandAll clicks expand affordances until a pass reveals no new groups
func (n *Navigator) expandAll(ctx context.Context) (int, error) {
	sel := n.provider.Selectors()
	if sel.Expand == "" {
		return 0, nil
	}

	for pass := 1; pass <= maxExpandPasses; pass++ {
		before, err := n.browser.Count(ctx, sel.Group)
		if err != nil {
			return pass - 1, err
		}
		clicked, err := n.browser.ClickAll(ctx, sel.Expand)
		if err != nil {
			return pass - 1, err
		}
		if clicked == 0 {
			return pass - 1, nil
		}

		after := before
		err = utils.PollUntil(ctx, pollInterval, n.revealTimeout, func(ctx context.Context) (bool, error) {
			c, err := n.browser.Count(ctx, sel.Group)
			if err != nil {
				return false, err
			}
			after = c
			return after > before, nil
		})
		if err != nil && !errors.Is(err, utils.ErrPollTimeout) {
			return pass, err
		}
		if after <= before {
			return pass, nil
		}
		n.logger.Debug("Expansion pass %d: clicked %d, groups %d -> %d", pass, clicked, before, after)
	}

	n.logger.Warn("Expansion still revealing groups after %d passes, extracting what is open", maxExpandPasses)
	return maxExpandPasses, nil
}

// SplitCategoryPath splits "Aquatics > Swimming Lessons" into its segments
func SplitCategoryPath(label string) []string {
	var path []string
	for _, seg := range strings.Split(label, ">") {
		if seg = strings.TrimSpace(seg); seg != "" {
			path = append(path, seg)
		}
	}
	return path
}
