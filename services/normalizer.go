package services

import (
	"regexp"
	"strings"
	"time"

	"activity-sync/models"
	"activity-sync/patterns"
	"activity-sync/utils"
)

// Field classes reported as normalization misses
const (
	FieldDate         = "date"
	FieldTime         = "time"
	FieldCost         = "cost"
	FieldAge          = "age"
	FieldRegistration = "registration"
)

var locationPrefixRe = regexp.MustCompile(`(?i)^(?:location|facility|where)\s*:\s*`)

// Normalizer converts raw listings into typed activities
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize maps every listing to one activity. A field no rule can parse is
// left empty and counted on rc; it never drops the record and never falls back
// to a made-up value.
func (n *Normalizer) Normalize(rc *models.RunContext, listings []*models.Listing) []*models.Activity {
	activities := make([]*models.Activity, 0, len(listings))
	for _, l := range listings {
		activities = append(activities, n.normalizeOne(rc, l))
	}
	n.logger.Info("Normalized %d listings (%d field misses)", len(activities), rc.Diagnostics().NormalizationMisses)
	return activities
}

func (n *Normalizer) normalizeOne(rc *models.RunContext, l *models.Listing) *models.Activity {
	a := &models.Activity{
		SourceID:     l.SourceID,
		ExternalID:   l.ExternalID,
		Name:         patterns.Clean(l.Name),
		CategoryPath: append([]string(nil), l.CategoryPath...),
		Location:     cleanLocation(l.LocationText),
		DetailURL:    l.DetailURL,
		Description:  strings.TrimSpace(l.Description),
		WhatToBring:  patterns.Clean(l.WhatToBring),
	}
	if a.Name == "" {
		a.Name = models.FallbackName
	}

	a.Sessions = n.sessions(rc, l, a.Location)
	for _, s := range a.Sessions {
		if s.StartDate != nil && (a.StartDate == nil || s.StartDate.Before(*a.StartDate)) {
			a.StartDate = s.StartDate
		}
		if s.EndDate != nil && (a.EndDate == nil || s.EndDate.After(*a.EndDate)) {
			a.EndDate = s.EndDate
		}
	}
	if a.Location == "" {
		for _, s := range a.Sessions {
			if s.Location != "" {
				a.Location = s.Location
				break
			}
		}
	}

	if c, ok := patterns.ParseCost(fallback(l.CostText, l.RawText)); ok {
		a.Cost = &models.Cost{Amount: c.Amount, TaxIncluded: c.TaxIncluded}
	} else {
		rc.NormalizationMiss(FieldCost)
	}

	if r, ok := patterns.ParseAgeRange(fallback(l.AgeText, l.RawText)); ok {
		a.AgeMin, a.AgeMax = r.Min, r.Max
	} else {
		rc.NormalizationMiss(FieldAge)
	}

	reg := patterns.ParseRegistration(l.RegistrationText)
	if reg.Status == models.StatusUnknown {
		rc.NormalizationMiss(FieldRegistration)
		n.logger.Debug("Unrecognized registration state %q for %s", l.RegistrationText, l.ExternalID)
	}
	if reg.Spots == nil {
		reg.Spots = patterns.ParseRegistration(l.RawText).Spots
	}
	a.RegistrationStatus = reg.Status
	a.SpotsAvailable = reg.Spots

	for _, p := range l.Prerequisites {
		a.Prerequisites = append(a.Prerequisites, models.Prerequisite{
			Name:     p.Name,
			Required: p.Required,
			URL:      p.URL,
			CourseID: p.CourseID,
		})
	}
	return a
}

// sessions prefers the detail page's session table. Otherwise every date chunk
// of the schedule text is combined with every weekday it names. An activity
// always has at least one session, even if it only carries a location.
func (n *Normalizer) sessions(rc *models.RunContext, l *models.Listing, location string) []models.Session {
	if out := n.detailSessions(rc, l, location); len(out) > 0 {
		return out
	}

	text := fallback(l.ScheduleText, l.RawText)
	ranges := patterns.ParseDateRanges(text, rc.Now)
	if len(ranges) == 0 {
		rc.NormalizationMiss(FieldDate)
	}
	base := models.Session{Location: location, Instructor: patterns.Clean(l.Instructor)}
	if tr, ok := patterns.ParseTimeRange(text); ok {
		base.StartTime, base.EndTime = tr.Start, tr.End
	} else {
		rc.NormalizationMiss(FieldTime)
	}
	days := patterns.ParseWeekdays(text)

	var out []models.Session
	add := func(r *patterns.DateRange) {
		s := base
		if r != nil {
			s.StartDate, s.EndDate = datePtr(r.Start), datePtr(r.End)
		}
		if len(days) == 0 {
			if r != nil && r.Start.Equal(r.End) {
				s.DayOfWeek = patterns.ShortDay(r.Start.Weekday())
			}
			out = append(out, s)
			return
		}
		for _, d := range days {
			s.DayOfWeek = patterns.ShortDay(d)
			out = append(out, s)
		}
	}
	if len(ranges) == 0 {
		add(nil)
	}
	for i := range ranges {
		add(&ranges[i])
	}
	return dedupeSessions(out)
}

func (n *Normalizer) detailSessions(rc *models.RunContext, l *models.Listing, location string) []models.Session {
	if len(l.DetailSessions) == 0 {
		return nil
	}
	var out []models.Session
	dated, timed := false, false
	for _, raw := range l.DetailSessions {
		s := models.Session{
			Location:   fallback(cleanLocation(raw.LocationText), location),
			Instructor: fallback(patterns.Clean(raw.InstructorText), patterns.Clean(l.Instructor)),
		}
		if tr, ok := patterns.ParseTimeRange(raw.TimeText); ok {
			s.StartTime, s.EndTime = tr.Start, tr.End
			timed = true
		}
		days := patterns.ParseWeekdays(raw.DateText)
		r, ok := patterns.ParseDateRange(raw.DateText, rc.Now)
		if ok {
			s.StartDate, s.EndDate = datePtr(r.Start), datePtr(r.End)
			dated = true
			if len(days) == 0 && r.Start.Equal(r.End) {
				days = []time.Weekday{r.Start.Weekday()}
			}
		}
		if len(days) == 0 {
			out = append(out, s)
			continue
		}
		for _, d := range days {
			s.DayOfWeek = patterns.ShortDay(d)
			out = append(out, s)
		}
	}
	if !dated {
		rc.NormalizationMiss(FieldDate)
	}
	if !timed {
		rc.NormalizationMiss(FieldTime)
	}
	return dedupeSessions(out)
}

func dedupeSessions(in []models.Session) []models.Session {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if k := s.Key(); !seen[k] {
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}

// cleanLocation normalizes location strings
func cleanLocation(loc string) string {
	return patterns.Clean(locationPrefixRe.ReplaceAllString(patterns.Clean(loc), ""))
}

func fallback(s, alt string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return alt
}

func datePtr(t time.Time) *time.Time {
	return &t
}
