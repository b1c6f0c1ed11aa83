package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-sync/config"
	"activity-sync/utils"
)

const artsPage = `<html><body>
<div class="group">
  <span class="group-title">Pottery Wheel</span>
  <div class="item-row"><span class="course-id">Course ID 00412345</span><span class="date">Feb 3 - Mar 24</span><button>Register</button></div>
</div>
</body></html>`

// fakeBrowser serves canned category pages. Each expand pass reveals two groups
// until expandPasses is used up; stuck pages never settle.
type fakeBrowser struct {
	pages        map[string]string
	entryErr     error
	failNavs     map[int]bool
	expandPasses int
	stuck        bool
	onHTML       func()

	path         []string
	left         int
	groups       int
	navigations  int
	expandClicks int
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.navigations++
	if f.entryErr != nil {
		return f.entryErr
	}
	if f.failNavs[f.navigations] {
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	f.path, f.left, f.groups = nil, f.expandPasses, 1
	return nil
}

func (f *fakeBrowser) ClickText(ctx context.Context, selector, label string) error {
	next := append(append([]string(nil), f.path...), label)
	prefix := strings.Join(next, " > ")
	for k := range f.pages {
		if k == prefix || strings.HasPrefix(k, prefix+" > ") {
			f.path = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoMatch, label)
}

func (f *fakeBrowser) ClickAll(ctx context.Context, selector string) (int, error) {
	if f.stuck || f.left > 0 {
		f.left--
		f.groups += 2
		f.expandClicks++
		return 2, nil
	}
	return 0, nil
}

func (f *fakeBrowser) Count(ctx context.Context, selector string) (int, error) {
	return f.groups, nil
}

func (f *fakeBrowser) WaitFor(ctx context.Context, selector string) error { return nil }

func (f *fakeBrowser) HTML(ctx context.Context) (string, error) {
	if f.onHTML != nil {
		f.onHTML()
	}
	return f.pages[strings.Join(f.path, " > ")], nil
}

func (f *fakeBrowser) Location(ctx context.Context) (string, error) { return testEntryURL, nil }

func (f *fakeBrowser) Close() {}

func newTestNavigator(b Browser) *Navigator {
	cfg := config.Default()
	cfg.RateLimitDelayMs = 0
	cfg.MaxRetries = 1
	n := NewNavigator(b, testProvider{}, cfg, utils.NewNopLogger())
	n.revealTimeout = 20 * time.Millisecond
	return n
}

func TestNavigatorVisitsCategories(t *testing.T) {
	b := &fakeBrowser{
		pages: map[string]string{
			"Aquatics > Swimming": swimmingPage,
			"Arts":                artsPage,
		},
		expandPasses: 2,
	}
	n := newTestNavigator(b)
	rc := newTestRunContext()

	listings, err := n.Run(context.Background(), rc, []string{"Aquatics > Swimming", "Dance", "Arts"})
	require.NoError(t, err)
	require.Len(t, listings, 5)

	// category order is preserved
	assert.Equal(t, []string{"Aquatics", "Swimming"}, listings[0].CategoryPath)
	assert.Equal(t, "00412345", listings[4].ExternalID)
	assert.Equal(t, "Pottery Wheel", listings[4].Name)

	assert.Equal(t, 1, rc.Run.NavigationErrors)
	assert.Equal(t, 3, b.navigations)
	assert.Equal(t, 4, b.expandClicks)

	assert.Equal(t, []NavState{
		StateIdle,
		StateAtEntry, StateInCategory, StateExpanding, StateExtractingCategory,
		StateAtEntry, // Dance is missing, straight back to the entry
		StateAtEntry, StateInCategory, StateExpanding, StateExtractingCategory,
		StateDone,
	}, n.States())
}

func TestNavigatorRecoversFromFailedReturn(t *testing.T) {
	b := &fakeBrowser{
		pages: map[string]string{
			"Aquatics > Swimming": swimmingPage,
			"Arts":                artsPage,
			"Dance":               artsPage,
		},
		failNavs: map[int]bool{2: true},
	}
	n := newTestNavigator(b)
	rc := newTestRunContext()

	listings, err := n.Run(context.Background(), rc, []string{"Aquatics > Swimming", "Dance", "Arts"})
	require.NoError(t, err)
	require.Len(t, listings, 5)
	assert.Equal(t, []string{"Arts"}, listings[4].CategoryPath, "the category after the failed return is still visited")
	assert.Equal(t, 1, rc.Run.NavigationErrors)
	assert.Equal(t, 3, b.navigations)
}

func TestNavigatorStopsWhenEntryLostTwice(t *testing.T) {
	b := &fakeBrowser{
		pages:    map[string]string{"Arts": artsPage},
		failNavs: map[int]bool{2: true, 3: true},
	}
	n := newTestNavigator(b)
	rc := newTestRunContext()

	listings, err := n.Run(context.Background(), rc, []string{"Arts", "Arts", "Arts", "Arts"})
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Equal(t, 2, rc.Run.NavigationErrors)
	assert.Equal(t, 3, b.navigations)
}

func TestNavigatorEntryUnreachable(t *testing.T) {
	b := &fakeBrowser{entryErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	n := newTestNavigator(b)

	listings, err := n.Run(context.Background(), newTestRunContext(), []string{"Arts"})
	require.ErrorIs(t, err, ErrEntryUnreachable)
	assert.Nil(t, listings)
	assert.Equal(t, []NavState{StateIdle, StateDone}, n.States())
}

func TestNavigatorExpansionCap(t *testing.T) {
	b := &fakeBrowser{pages: map[string]string{"Arts": artsPage}, stuck: true}
	n := newTestNavigator(b)

	listings, err := n.Run(context.Background(), newTestRunContext(), []string{"Arts"})
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Equal(t, maxExpandPasses, b.expandClicks)
}

func TestNavigatorStopsWhenRunEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := &fakeBrowser{
		pages: map[string]string{
			"Aquatics > Swimming": swimmingPage,
			"Arts":                artsPage,
		},
		onHTML: cancel,
	}
	n := newTestNavigator(b)
	rc := newTestRunContext()

	listings, err := n.Run(ctx, rc, []string{"Aquatics > Swimming", "Arts"})
	require.NoError(t, err)
	assert.Len(t, listings, 4)
	assert.Equal(t, 1, b.navigations)
	assert.Equal(t, 0, rc.Run.NavigationErrors)
	assert.Equal(t, StateDone, n.States()[len(n.States())-1])
}

func TestSplitCategoryPath(t *testing.T) {
	assert.Equal(t, []string{"Aquatics", "Swimming Lessons"}, SplitCategoryPath(" Aquatics >  Swimming Lessons "))
	assert.Equal(t, []string{"Arts"}, SplitCategoryPath("Arts"))
	assert.Empty(t, SplitCategoryPath(" > "))
}
