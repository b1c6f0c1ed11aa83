package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// RegistrationStatus is the consolidated availability state of an activity
type RegistrationStatus string

const (
	StatusOpen       RegistrationStatus = "open"
	StatusWaitlisted RegistrationStatus = "waitlisted"
	StatusClosed     RegistrationStatus = "closed"
	StatusUnknown    RegistrationStatus = "unknown"
)

// Valid reports whether s is one of the four known states
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusWaitlisted, StatusClosed, StatusUnknown:
		return true
	}
	return false
}

// Session is one scheduled occurrence of an activity
type Session struct {
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	DayOfWeek  string     `json:"dayOfWeek,omitempty"` // "Mon".."Sun"
	StartTime  string     `json:"startTime,omitempty"` // "15:30"
	EndTime    string     `json:"endTime,omitempty"`
	Location   string     `json:"location,omitempty"`
	Instructor string     `json:"instructor,omitempty"`
}

// Key identifies a session within an activity for de-duplication
func (s Session) Key() string {
	var b strings.Builder
	if s.StartDate != nil {
		b.WriteString(s.StartDate.Format("2006-01-02"))
	}
	b.WriteByte('|')
	if s.EndDate != nil {
		b.WriteString(s.EndDate.Format("2006-01-02"))
	}
	b.WriteString("|" + s.DayOfWeek + "|" + s.StartTime + "|" + s.EndTime + "|" + s.Location)
	return b.String()
}

// Prerequisite of an activity
type Prerequisite struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	URL      string `json:"url,omitempty"`
	CourseID string `json:"courseId,omitempty"`
}

// Cost of an activity
type Cost struct {
	Amount      float64 `json:"amount"`
	TaxIncluded bool    `json:"taxIncluded"`
}

// Classification assigned by the classifier. Type is never empty once classified.
type Classification struct {
	Type           string  `json:"type"`
	Subtype        *string `json:"subtype,omitempty"`
	TypeID         string  `json:"typeId"`
	SubtypeID      *string `json:"subtypeId,omitempty"`
	Method         string  `json:"method"` // rule id or "default"
	AgeCategory    string  `json:"ageCategory"`
	RequiresParent bool    `json:"requiresParent"`
}

// Activity represents a normalized, classified record ready for the store
type Activity struct {
	SourceID           string
	ExternalID         string
	Name               string
	CategoryPath       []string
	Sessions           []Session
	StartDate          *time.Time
	EndDate            *time.Time
	AgeMin             *int
	AgeMax             *int
	Cost               *Cost
	RegistrationStatus RegistrationStatus
	SpotsAvailable     *int
	Location           string
	DetailURL          string
	Description        string
	WhatToBring        string
	Prerequisites      []Prerequisite
	Classification     Classification

	IsActive    bool
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// Category returns the display form of the category path
func (a *Activity) Category() string {
	return strings.Join(a.CategoryPath, CategorySeparator)
}

// fingerprintFields lists everything that counts as content; bookkeeping
// (IsActive, FirstSeenAt, LastSeenAt) is excluded so an unchanged listing
// hashes the same on every run.
type fingerprintFields struct {
	Name               string
	CategoryPath       []string
	Sessions           []Session
	AgeMin             *int
	AgeMax             *int
	Cost               *Cost
	RegistrationStatus RegistrationStatus
	SpotsAvailable     *int
	Location           string
	DetailURL          string
	Description        string
	WhatToBring        string
	Prerequisites      []Prerequisite
	Classification     Classification
}

// Fingerprint returns a stable content hash used to detect unchanged records
func (a *Activity) Fingerprint() string {
	data, _ := json.Marshal(fingerprintFields{
		Name:               a.Name,
		CategoryPath:       a.CategoryPath,
		Sessions:           a.Sessions,
		AgeMin:             a.AgeMin,
		AgeMax:             a.AgeMax,
		Cost:               a.Cost,
		RegistrationStatus: a.RegistrationStatus,
		SpotsAvailable:     a.SpotsAvailable,
		Location:           a.Location,
		DetailURL:          a.DetailURL,
		Description:        a.Description,
		WhatToBring:        a.WhatToBring,
		Prerequisites:      a.Prerequisites,
		Classification:     a.Classification,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IntPtr is a small helper for optional integer fields
func IntPtr(v int) *int { return &v }

// StringPtr is a small helper for optional string fields
func StringPtr(v string) *string { return &v }
