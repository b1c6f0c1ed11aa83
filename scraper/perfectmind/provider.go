// Package perfectmind adapts the navigator to PerfectMind "BookMe4" booking widgets,
// used by many municipal recreation departments.
package perfectmind

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"activity-sync/config"
	"activity-sync/patterns"
	"activity-sync/scraper"
)

// Name is the provider key used in source configuration
const Name = "perfectmind"

// DefaultSelectors match the stock BookMe4 markup
var DefaultSelectors = scraper.Selectors{
	Ready:        ".bm-category-calendar-link, .bm-group-title, .bm-class-row",
	CategoryLink: "a.bm-category-calendar-link, .bm-category-calendar-link span, a.bm-category-link",
	Expand:       ".bm-group-expander:not(.expanded), a.show-more-link, button.show-more",
	Group:        ".bm-group-item-row, .bm-class-row",
	Heading:      ".bm-group-title, .bm-course-name, h2, h3",
	Row:          ".bm-group-item-row, .bm-class-row",
	Name:         ".bm-group-item-name",
	CourseCode:   ".bm-group-item-course-id, .bm-event-code",
	Schedule:     ".bm-group-item-date, .bm-group-item-time, .bm-class-date, .bm-class-time",
	Cost:         ".bm-group-item-price, .bm-price",
	Age:          ".bm-group-item-age, .bm-age-restrictions",
	Location:     ".bm-group-item-location, .bm-location",
	DetailLink:   "a.bm-group-item-link, a[href*='courseId'], a[href*='CoursesLandingPage']",

	Description:       ".bm-course-description, #course-description",
	WhatToBring:       ".bm-what-to-bring",
	Instructor:        ".bm-instructor-name, .bm-instructor",
	Prerequisite:      ".bm-prerequisites li",
	SessionRow:        ".bm-course-sessions tbody tr",
	SessionDate:       ".bm-session-date",
	SessionTime:       ".bm-session-time",
	SessionLocation:   ".bm-session-location",
	SessionInstructor: ".bm-session-instructor",
}

// Provider is one configured PerfectMind widget
type Provider struct {
	entryURL  string
	selectors scraper.Selectors
	// landing page of a course, without the courseId parameter
	courseURL *url.URL
}

// New builds the adapter from a source. The entry URL is either configured
// directly or assembled from host, org id and widget id.
func New(src config.SourceConfig) (*Provider, error) {
	entry := src.EntryURL
	if entry == "" {
		if src.Host == "" || src.WidgetID == "" {
			return nil, errors.New("perfectmind source needs entry_url or host and widget_id")
		}
		entry = EntryURL(src.Host, src.OrgID, src.WidgetID)
	}
	u, err := url.Parse(entry)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid entry URL %q", entry)
	}

	sel, err := DefaultSelectors.Override(src.Selectors)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	return &Provider{entryURL: u.String(), selectors: sel, courseURL: courseLanding(u)}, nil
}

// courseLanding derives the course landing page from the widget entry URL:
// ".../Clients/BookMe4?widgetId=w" becomes ".../Clients/BookMe4LandingPages/CoursesLandingPage?widgetId=w"
func courseLanding(entry *url.URL) *url.URL {
	c := *entry
	path := strings.TrimSuffix(c.Path, "/")
	if i := strings.LastIndex(path, "/BookMe4"); i >= 0 {
		path = path[:i]
	}
	c.Path = path + "/BookMe4LandingPages/CoursesLandingPage"
	q := url.Values{}
	if w := entry.Query().Get("widgetId"); w != "" {
		q.Set("widgetId", w)
	}
	c.RawQuery = q.Encode()
	return &c
}

// EntryURL assembles the BookMe4 widget address
func EntryURL(host, orgID, widgetID string) string {
	u := url.URL{Scheme: "https", Host: host, Path: "/Clients/BookMe4"}
	if orgID != "" {
		u.Path = "/" + orgID + u.Path
	}
	u.RawQuery = url.Values{"widgetId": {widgetID}}.Encode()
	return u.String()
}

func (p *Provider) Name() string                 { return Name }
func (p *Provider) EntryURL() string             { return p.entryURL }
func (p *Provider) Selectors() scraper.Selectors { return p.selectors }
func (p *Provider) IDParam() string              { return "courseId" }

// DetailURL addresses the landing page of a course by its id
func (p *Provider) DetailURL(courseID string) string {
	u := *p.courseURL
	q := u.Query()
	q.Set("courseId", courseID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Provider) Vocabulary() []string {
	return append(patterns.RegistrationVocabulary(), "full - waitlist")
}
