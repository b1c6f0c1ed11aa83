package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-sync/models"
	"activity-sync/patterns"
	"activity-sync/utils"
)

const testEntryURL = "https://rec.example.com/23734/Clients/BookMe4?widgetId=w1"

type testProvider struct{}

func (testProvider) Name() string         { return "test" }
func (testProvider) EntryURL() string     { return testEntryURL }
func (testProvider) Selectors() Selectors { return testSelectors }
func (testProvider) IDParam() string      { return "courseId" }
func (testProvider) Vocabulary() []string { return patterns.RegistrationVocabulary() }

var testSelectors = Selectors{
	Ready:        ".ready",
	CategoryLink: "a.category",
	Expand:       ".expander",
	Group:        ".item-row",
	Heading:      ".group-title",
	Row:          ".item-row",
	Name:         ".item-name",
	CourseCode:   ".course-id",
	Schedule:     ".date, .time",
	Cost:         ".price",
	Age:          ".age",
	Location:     ".location",
	DetailLink:   "a.more-info",

	Description:       ".description",
	WhatToBring:       ".bring",
	Instructor:        ".instructor",
	Prerequisite:      ".prereqs li",
	SessionRow:        ".sessions tbody tr",
	SessionDate:       ".s-date",
	SessionTime:       ".s-time",
	SessionLocation:   ".s-loc",
	SessionInstructor: ".s-inst",
}

const swimmingPage = `<html><head><title>Aquatics</title></head><body>
<table><tbody>
  <tr class="item-row"><td class="date">Apr 1 - Apr 29</td><td class="location">Karen Magnussen</td><td><a class="book">Register</a></td></tr>
</tbody></table>
<div class="group">
  <div class="group-heading"><span class="group-title">Swim Kids 3</span></div>
  <table><tbody>
    <tr class="item-row">
      <td><span class="course-id">#00369211</span></td>
      <td class="date">Jan 6 - Mar 10</td><td class="time">Mon 3:30 PM - 4:15 PM</td>
      <td class="location">Harry Jerome</td><td class="age">5 - 8 yrs</td><td class="price">$84.50</td>
      <td><a class="more-info" href="/23734/Clients/BookMe4LandingPages/CoursesLandingPage?courseId=00369211">More Info</a></td>
      <td><a class="book">Register</a></td>
    </tr>
    <tr class="item-row">
      <td><span class="course-id">#00369211</span></td>
      <td class="date">Jan 6 - Mar 10</td>
      <td><a class="book">Waitlist</a></td>
    </tr>
    <tr class="item-row">
      <td class="date">Jan 8 - Mar 12</td><td class="time">Wed 4:30 PM - 5:15 PM</td>
      <td><a class="more-info" href="CoursesLandingPage?courseId=00369215">More Info</a></td>
      <td><input type="button" value="Waitlist"></td>
    </tr>
    <tr class="item-row"><td class="date">Drop-in info</td><td>Call for details</td></tr>
  </tbody></table>
</div>
<div class="group">
  <div class="group-heading"><span class="group-title">Family Swim</span></div>
  <table><tbody>
    <tr class="item-row"><td class="item-name">Parent &amp; Tot Swim</td><td class="date">Jan 7</td><td class="location">Ron Andrews</td><td><button>Closed</button></td></tr>
  </tbody></table>
</div>
</body></html>`

func newTestRunContext() *models.RunContext {
	return models.NewRunContext(models.NewSyncRun("nvrc", time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)))
}

func TestExtract(t *testing.T) {
	rc := newTestRunContext()
	e := NewExtractor(testProvider{}, utils.NewNopLogger())

	listings, err := e.Extract(rc, swimmingPage, testEntryURL, []string{"Aquatics", "Swimming"})
	require.NoError(t, err)
	require.Len(t, listings, 4)

	orphan := listings[0]
	assert.True(t, orphan.Unparented)
	assert.Equal(t, models.FallbackName, orphan.Name)
	assert.Regexp(t, `^h-[0-9a-f]{16}$`, orphan.ExternalID)
	assert.Equal(t, 1, rc.Run.ExtractionMisses)

	swim := listings[1]
	assert.Equal(t, "00369211", swim.ExternalID)
	assert.Equal(t, "Swim Kids 3", swim.Name)
	assert.Equal(t, "nvrc", swim.SourceID)
	assert.Equal(t, []string{"Aquatics", "Swimming"}, swim.CategoryPath)
	assert.Equal(t, "Jan 6 - Mar 10 Mon 3:30 PM - 4:15 PM", swim.ScheduleText)
	assert.Equal(t, "$84.50", swim.CostText)
	assert.Equal(t, "5 - 8 yrs", swim.AgeText)
	assert.Equal(t, "Harry Jerome", swim.LocationText)
	assert.Equal(t, "Register", swim.RegistrationText)
	assert.Equal(t, "https://rec.example.com/23734/Clients/BookMe4LandingPages/CoursesLandingPage?courseId=00369211", swim.DetailURL)
	assert.False(t, swim.Unparented)

	// the id comes from the detail link and the heading is several steps back
	linked := listings[2]
	assert.Equal(t, "00369215", linked.ExternalID)
	assert.Equal(t, "Swim Kids 3", linked.Name)
	assert.Equal(t, "Waitlist", linked.RegistrationText)
	assert.Equal(t, "https://rec.example.com/23734/Clients/CoursesLandingPage?courseId=00369215", linked.DetailURL)

	family := listings[3]
	assert.Equal(t, "Parent & Tot Swim", family.Name)
	assert.Equal(t, "Closed", family.RegistrationText)
	assert.Equal(t, "Ron Andrews", family.LocationText)
}

func TestExtractStableHashIDs(t *testing.T) {
	e := NewExtractor(testProvider{}, utils.NewNopLogger())
	path := []string{"Aquatics", "Swimming"}

	first, err := e.Extract(newTestRunContext(), swimmingPage, testEntryURL, path)
	require.NoError(t, err)
	second, err := e.Extract(newTestRunContext(), swimmingPage, testEntryURL, path)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ExternalID, second[i].ExternalID)
	}

	// the same row under another category is another activity
	other, err := e.Extract(newTestRunContext(), swimmingPage, testEntryURL, []string{"Arts"})
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ExternalID, other[0].ExternalID)
}

func TestExtractNoListings(t *testing.T) {
	e := NewExtractor(testProvider{}, utils.NewNopLogger())
	listings, err := e.Extract(newTestRunContext(), `<html><body><p>No classes</p></body></html>`, testEntryURL, []string{"Arts"})
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestLinkID(t *testing.T) {
	assert.Equal(t, "00369211", linkID("https://x.test/p?CourseId=00369211&a=1", "courseId"))
	assert.Equal(t, "", linkID("https://x.test/p?a=1", "courseId"))
	assert.Equal(t, "", linkID("", "courseId"))
}

func TestSelectorsOverride(t *testing.T) {
	sel, err := testSelectors.Override(map[string]string{"row": ".card", "session_date": ".when"})
	require.NoError(t, err)
	assert.Equal(t, ".card", sel.Row)
	assert.Equal(t, ".when", sel.SessionDate)
	assert.Equal(t, ".item-row", testSelectors.Row)

	_, err = testSelectors.Override(map[string]string{"rows": ".card"})
	assert.Error(t, err)
}
