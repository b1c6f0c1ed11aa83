package models

import "strings"

// FallbackName labels listings whose group heading could not be located
const FallbackName = "Unnamed activity"

// CategorySeparator joins category path segments for display and storage
const CategorySeparator = " > "

// RawSession is one row of a detail page's session table, still free text
type RawSession struct {
	DateText       string
	TimeText       string
	LocationText   string
	InstructorText string
}

// RawPrerequisite is a prerequisite as printed on a detail page
type RawPrerequisite struct {
	Name     string
	Required bool
	URL      string
	CourseID string
}

// Listing represents unprocessed data scraped directly from a category page.
// It only lives for the duration of one run.
type Listing struct {
	SourceID     string
	CategoryPath []string
	ExternalID   string
	Name         string
	Unparented   bool
	RawText      string // whitespace-collapsed text of the whole row/card

	ScheduleText     string // e.g. "Jan 6 - Mar 10  Mon, Wed 3:30 PM - 4:15 PM"
	CostText         string // e.g. "$120.00 (+tax)"
	AgeText          string // e.g. "6 - 12 yrs"
	LocationText     string
	RegistrationText string // e.g. "Waitlist"
	DetailURL        string

	// filled by the detail fetcher
	Enriched       bool
	Description    string
	WhatToBring    string
	Instructor     string
	Prerequisites  []RawPrerequisite
	DetailSessions []RawSession
}

// Category returns the display form of the category path
func (l *Listing) Category() string {
	return strings.Join(l.CategoryPath, CategorySeparator)
}

// Clone returns a copy that can be enriched without touching the original
func (l *Listing) Clone() *Listing {
	c := *l
	c.CategoryPath = append([]string(nil), l.CategoryPath...)
	c.Prerequisites = append([]RawPrerequisite(nil), l.Prerequisites...)
	c.DetailSessions = append([]RawSession(nil), l.DetailSessions...)
	return &c
}
