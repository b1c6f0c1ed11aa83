package scraper

import (
	"fmt"
	"sort"
)

// Provider adapts the navigator to one booking widget family. Everything that
// differs between sites lives here; the navigation loop itself does not change.
type Provider interface {
	Name() string
	EntryURL() string
	Selectors() Selectors
	// IDParam is the query parameter of a detail link that carries the listing id
	IDParam() string
	// Vocabulary lists the registration-state labels that mark a listing row
	Vocabulary() []string
}

// DetailLinker is implemented by providers that can address a detail page by
// listing id alone. The extractor uses it for rows without a detail link.
type DetailLinker interface {
	DetailURL(externalID string) string
}

// Selectors are the CSS selectors a provider uses for its pages
type Selectors struct {
	// category pages
	Ready        string // present once a page finished rendering
	CategoryLink string // elements whose text is a category label
	Expand       string // collapsed "show more" affordances
	Group        string // revealed group containers, counted to detect progress
	Heading      string // group headings carrying the activity name
	Row          string // one listing row or card
	Name         string // a name printed inside the row itself
	CourseCode   string
	Schedule     string // every match is joined, e.g. date and time cells
	Cost         string
	Age          string
	Location     string
	DetailLink   string

	// detail pages
	Description       string
	WhatToBring       string
	Instructor        string
	Prerequisite      string // one element per prerequisite
	SessionRow        string
	SessionDate       string
	SessionTime       string
	SessionLocation   string
	SessionInstructor string
}

func (s *Selectors) fields() map[string]*string {
	return map[string]*string{
		"ready":              &s.Ready,
		"category_link":      &s.CategoryLink,
		"expand":             &s.Expand,
		"group":              &s.Group,
		"heading":            &s.Heading,
		"row":                &s.Row,
		"name":               &s.Name,
		"course_code":        &s.CourseCode,
		"schedule":           &s.Schedule,
		"cost":               &s.Cost,
		"age":                &s.Age,
		"location":           &s.Location,
		"detail_link":        &s.DetailLink,
		"description":        &s.Description,
		"what_to_bring":      &s.WhatToBring,
		"instructor":         &s.Instructor,
		"prerequisite":       &s.Prerequisite,
		"session_row":        &s.SessionRow,
		"session_date":       &s.SessionDate,
		"session_time":       &s.SessionTime,
		"session_location":   &s.SessionLocation,
		"session_instructor": &s.SessionInstructor,
	}
}

// Override returns a copy with the configured selectors replaced.
// Keys are the snake_case field names; an unknown key is an error.
func (s Selectors) Override(overrides map[string]string) (Selectors, error) {
	fields := s.fields()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p, ok := fields[k]
		if !ok {
			return s, fmt.Errorf("unknown selector %q", k)
		}
		*p = overrides[k]
	}
	return s, nil
}
