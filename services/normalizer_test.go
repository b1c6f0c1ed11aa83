package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-sync/models"
	"activity-sync/utils"
)

func newRunContextAt(t time.Time) *models.RunContext {
	return models.NewRunContext(models.NewSyncRun("nvrc", t))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeListing(t *testing.T) {
	rc := newRunContextAt(day(2025, time.January, 1))
	n := NewNormalizer(utils.NewNopLogger())

	out := n.Normalize(rc, []*models.Listing{{
		SourceID:         "nvrc",
		CategoryPath:     []string{"Aquatics", "Swimming Lessons"},
		ExternalID:       "00369211",
		Name:             "  Swim   Kids 3 ",
		ScheduleText:     "Jan 6 - Mar 10 Mon, Wed 3:30 pm - 4:15 pm",
		CostText:         "$84.50",
		AgeText:          "5 - 8 yrs",
		LocationText:     "Location: Harry Jerome",
		RegistrationText: "Register",
	}})
	require.Len(t, out, 1)
	a := out[0]

	assert.Equal(t, "Swim Kids 3", a.Name)
	assert.Equal(t, "Harry Jerome", a.Location)
	require.NotNil(t, a.Cost)
	assert.Equal(t, 84.5, a.Cost.Amount)
	require.NotNil(t, a.AgeMin)
	require.NotNil(t, a.AgeMax)
	assert.Equal(t, 5, *a.AgeMin)
	assert.Equal(t, 8, *a.AgeMax)
	assert.Equal(t, models.StatusOpen, a.RegistrationStatus)

	require.Len(t, a.Sessions, 2)
	assert.Equal(t, "Mon", a.Sessions[0].DayOfWeek)
	assert.Equal(t, "Wed", a.Sessions[1].DayOfWeek)
	for _, s := range a.Sessions {
		assert.Equal(t, "15:30", s.StartTime)
		assert.Equal(t, "16:15", s.EndTime)
		assert.Equal(t, "Harry Jerome", s.Location)
	}
	require.NotNil(t, a.StartDate)
	require.NotNil(t, a.EndDate)
	assert.True(t, a.StartDate.Equal(day(2025, time.January, 6)))
	assert.True(t, a.EndDate.Equal(day(2025, time.March, 10)))

	assert.Zero(t, rc.Diagnostics().NormalizationMisses)
}

func TestNormalizeCrossYear(t *testing.T) {
	rc := newRunContextAt(day(2024, time.December, 1))
	n := NewNormalizer(utils.NewNopLogger())

	out := n.Normalize(rc, []*models.Listing{{
		ExternalID:   "camp",
		Name:         "Winter Break Camp",
		ScheduleText: "Dec 28 - Jan 3 Daily 9:00 am - 12:00 pm",
	}})
	a := out[0]

	require.NotNil(t, a.StartDate)
	assert.True(t, a.StartDate.Equal(day(2024, time.December, 28)))
	assert.True(t, a.EndDate.Equal(day(2025, time.January, 3)))
	assert.Len(t, a.Sessions, 7)
	assert.Equal(t, "09:00", a.Sessions[0].StartTime)
	assert.Equal(t, "12:00", a.Sessions[0].EndTime)
}

func TestNormalizeRecordsMisses(t *testing.T) {
	rc := newRunContextAt(day(2025, time.January, 1))
	n := NewNormalizer(utils.NewNopLogger())

	out := n.Normalize(rc, []*models.Listing{{ExternalID: "x", RawText: "Swim Kids 3"}})
	require.Len(t, out, 1, "a record with nothing parseable is kept")
	a := out[0]

	assert.Equal(t, models.FallbackName, a.Name)
	assert.Nil(t, a.StartDate)
	assert.Nil(t, a.Cost)
	assert.Nil(t, a.AgeMin)
	assert.Equal(t, models.StatusUnknown, a.RegistrationStatus)
	assert.Len(t, a.Sessions, 1)

	assert.Equal(t, 5, rc.Diagnostics().NormalizationMisses)
	assert.Equal(t, map[string]int{
		FieldDate: 1, FieldTime: 1, FieldCost: 1, FieldAge: 1, FieldRegistration: 1,
	}, rc.MissesByField())
}

func TestNormalizePrefersDetailSessions(t *testing.T) {
	rc := newRunContextAt(day(2025, time.January, 1))
	n := NewNormalizer(utils.NewNopLogger())

	out := n.Normalize(rc, []*models.Listing{{
		ExternalID:   "00369211",
		Name:         "Swim Kids 3",
		ScheduleText: "Jan 6 - Mar 10 Mon 3:30 pm - 4:15 pm",
		Enriched:     true,
		Instructor:   "Jane Doe",
		DetailSessions: []models.RawSession{
			{DateText: "Mon, Jan 6, 2025", TimeText: "3:30 PM - 4:15 PM", LocationText: "Harry Jerome"},
			{DateText: "Mon, Jan 13, 2025", TimeText: "3:30 PM - 4:15 PM", LocationText: "Harry Jerome"},
		},
		Prerequisites: []models.RawPrerequisite{{Name: "Swim Kids 2", Required: true, CourseID: "00369100"}},
	}})
	a := out[0]

	require.Len(t, a.Sessions, 2)
	assert.Equal(t, "Mon", a.Sessions[0].DayOfWeek)
	assert.Equal(t, "Jane Doe", a.Sessions[0].Instructor)
	assert.True(t, a.StartDate.Equal(day(2025, time.January, 6)))
	assert.True(t, a.EndDate.Equal(day(2025, time.January, 13)))
	assert.Equal(t, "Harry Jerome", a.Location)
	assert.Equal(t, []models.Prerequisite{{Name: "Swim Kids 2", Required: true, CourseID: "00369100"}}, a.Prerequisites)
}

func TestNormalizeAgeFallbackIgnoresDatesAndPrices(t *testing.T) {
	rc := newRunContextAt(day(2025, time.January, 1))
	n := NewNormalizer(utils.NewNopLogger())

	out := n.Normalize(rc, []*models.Listing{{
		ExternalID:       "00412000",
		Name:             "Aquafit",
		RawText:          "Aquafit Jan 6 - 27 Mon 3:30 pm - 4:15 pm $84.50 + tax Register",
		RegistrationText: "Register",
	}})
	a := out[0]

	assert.Nil(t, a.AgeMin)
	assert.Nil(t, a.AgeMax)
	require.NotNil(t, a.Cost)
	assert.Equal(t, 84.5, a.Cost.Amount)
	assert.False(t, a.Cost.TaxIncluded)

	misses := rc.MissesByField()
	assert.Equal(t, 1, misses[FieldAge])
	assert.Zero(t, misses[FieldCost])
}
