package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-sync/models"
)

var ref = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDateRanges(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []DateRange
	}{
		{"cross year", "Dec 20 - Jan 5", []DateRange{{day(2024, 12, 20), day(2025, 1, 5), "cross-month"}}},
		{"cross month with year", "Jan 6 - Mar 10, 2025", []DateRange{{day(2025, 1, 6), day(2025, 3, 10), "cross-month"}}},
		{"same month", "Jan 6-27", []DateRange{{day(2024, 1, 6), day(2024, 1, 27), "same-month"}}},
		{"single", "Sat, Feb 8, 2025", []DateRange{{day(2025, 2, 8), day(2025, 2, 8), "single-date"}}},
		{"numeric", "1/6/25 - 3/10/25", []DateRange{{day(2025, 1, 6), day(2025, 3, 10), "numeric-range"}}},
		{"long names", "September 3 through December 10", []DateRange{{day(2024, 9, 3), day(2024, 12, 10), "cross-month"}}},
		{
			"two chunks in text order",
			"Jan 6 - Feb 10 Mon 9:00 AM; Apr 2 - May 5 Wed",
			[]DateRange{
				{day(2024, 1, 6), day(2024, 2, 10), "cross-month"},
				{day(2024, 4, 2), day(2024, 5, 5), "cross-month"},
			},
		},
		{"time is not a day", "Jan 6 - 10:30 AM", []DateRange{{day(2024, 1, 6), day(2024, 1, 6), "single-date"}}},
		{"nothing", "Mondays 3:30 PM", nil},
		{"rolled over date rejected", "Feb 30", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, ParseDateRanges(c.text, ref))
		})
	}
}

func TestDateCrossYear(t *testing.T) {
	r, ok := ParseDateRange("Dec 20 - Jan 5", ref)
	require.True(t, ok)
	require.Equal(t, r.Start.Year()+1, r.End.Year())
}

func TestParseMonth(t *testing.T) {
	for _, s := range []string{"Sep", "Sept", "Sept.", "september"} {
		m, ok := ParseMonth(s)
		require.True(t, ok, s)
		require.Equal(t, time.September, m)
	}
	_, ok := ParseMonth("Ju")
	require.False(t, ok)
}

func TestParseWeekdays(t *testing.T) {
	cases := []struct {
		text string
		want []time.Weekday
	}{
		{"Mon, Wed", []time.Weekday{time.Monday, time.Wednesday}},
		{"Tues & Thurs", []time.Weekday{time.Tuesday, time.Thursday}},
		{"Mon-Fri", []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}},
		{"Fri - Mon", []time.Weekday{time.Friday, time.Saturday, time.Sunday, time.Monday}},
		{"Weekends", []time.Weekday{time.Saturday, time.Sunday}},
		{"Saturday Sat Saturday", []time.Weekday{time.Saturday}},
		{"Jan 6 - Mar 10", nil},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ParseWeekdays(c.text), c.text)
	}
	require.Equal(t, "Tue", ShortDay(time.Tuesday))
}

func TestParseTimeRange(t *testing.T) {
	cases := []struct {
		text string
		want TimeRange
		ok   bool
	}{
		{"3:30 PM - 4:15 PM", TimeRange{"15:30", "16:15"}, true},
		{"9-10:30am", TimeRange{"09:00", "10:30"}, true},
		{"11:30 - 1:00 pm", TimeRange{"11:30", "13:00"}, true},
		{"6:00pm - 7:30", TimeRange{"18:00", "19:30"}, true},
		{"18:00-19:30", TimeRange{"18:00", "19:30"}, true},
		{"Noon - 1:30 p.m.", TimeRange{"12:00", "13:30"}, true},
		{"6 - 12 yrs", TimeRange{}, false},
		{"no time here", TimeRange{}, false},
	}
	for _, c := range cases {
		got, ok := ParseTimeRange(c.text)
		require.Equal(t, c.ok, ok, c.text)
		require.Equal(t, c.want, got, c.text)
	}
}

func TestParseCost(t *testing.T) {
	cases := []struct {
		text   string
		amount float64
		tax    bool
		ok     bool
	}{
		{"$120.00 (+tax)", 120, false, true},
		{"$1,234.50", 1234.5, false, true},
		{"$45 incl. tax", 45, true, true},
		{"84.50 tax included", 84.5, true, true},
		{"Free", 0, false, true},
		{"Fee: TBD", 0, false, false},
	}
	for _, c := range cases {
		got, ok := ParseCost(c.text)
		require.Equal(t, c.ok, ok, c.text)
		if ok {
			assert.InDelta(t, c.amount, got.Amount, 0.001, c.text)
			assert.Equal(t, c.tax, got.TaxIncluded, c.text)
		}
	}
}

func TestParseAgeRange(t *testing.T) {
	i := models.IntPtr
	cases := []struct {
		text     string
		min, max *int
		rule     string
	}{
		{"6 - 12 yrs", i(6), i(12), "unit-range"},
		{"Ages 6-12", i(6), i(12), "ages-range"},
		{"6yrs - 12yrs", i(6), i(12), "unit-range"},
		{"at least 6 yrs but less than 13 yrs", i(6), i(12), "at-least-less-than"},
		{"at least 4 mos but less than 19 mos", i(0), i(1), "at-least-less-than"},
		{"6 mos - 2 yrs", i(0), i(2), "unit-range"},
		{"18+", i(18), nil, "min-only"},
		{"3 yrs +", i(3), nil, "min-only"},
		{"Under 5", nil, i(4), "max-only"},
		{"up to 5 yrs", nil, i(5), "max-only"},
		{"12 - 6 yrs", i(6), i(12), "unit-range"},
		{"9 - 14", i(9), i(14), "bare-range"},
		{"Ages 6+", i(6), nil, "min-only"},
		{"3 and up", i(3), nil, "min-only"},
		{"at least 6 but less than 13 yrs", i(6), i(12), "at-least-less-than"},
		{"5 - 8 yrs", i(5), i(8), "unit-range"},
		{"6 to 12 years", i(6), i(12), "unit-range"},
	}
	for _, c := range cases {
		got, ok := ParseAgeRange(c.text)
		require.True(t, ok, c.text)
		assert.Equal(t, c.min, got.Min, c.text)
		assert.Equal(t, c.max, got.Max, c.text)
		assert.Equal(t, c.rule, got.RuleID, c.text)
	}
	for _, text := range []string{
		"All ages welcome",
		"Jan 6 - 27 Mon 3:30 pm - 4:15 pm $84.50 + tax",
		"Mon 9 - 10 am",
	} {
		_, ok := ParseAgeRange(text)
		assert.False(t, ok, text)
	}
}

func TestParseRegistration(t *testing.T) {
	cases := []struct {
		text string
		want models.RegistrationStatus
	}{
		{"Waitlist", models.StatusWaitlisted},
		{"Join Wait List", models.StatusWaitlisted},
		{"Closed", models.StatusClosed},
		{"FULL", models.StatusClosed},
		{"Registration not yet open", models.StatusClosed},
		{"Register", models.StatusOpen},
		{"Book Now", models.StatusOpen},
		{"Ask at front desk", models.StatusUnknown},
		{"", models.StatusUnknown},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ParseRegistration(c.text).Status, c.text)
	}

	reg := ParseRegistration("3 spots left")
	require.Equal(t, models.StatusOpen, reg.Status)
	require.Equal(t, 3, *reg.Spots)

	reg = ParseRegistration("Register - 0 spaces available")
	require.Equal(t, models.StatusClosed, reg.Status)
}

func TestClassifyPriority(t *testing.T) {
	rule, tokens, ok := Classify("Swim Squash")
	require.True(t, ok)
	require.Equal(t, "racquet-sports", rule.ID)
	require.Equal(t, "squash", *rule.Subtype(tokens))

	rule, tokens, ok = Classify("Swim Kids 3")
	require.True(t, ok)
	require.Equal(t, "swimming", rule.Type)
	require.Equal(t, "lessons", *rule.Subtype(tokens))

	rule, tokens, ok = Classify("Table Tennis Drop-in")
	require.True(t, ok)
	require.Equal(t, "table-tennis", *rule.Subtype(tokens))

	rule, _, ok = Classify("Pâtisserie & Café Baking")
	require.True(t, ok)
	require.Equal(t, "cooking", rule.Type)

	_, _, ok = Classify("Community Meeting")
	require.False(t, ok)
}

func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		rule, _, _ := Classify("Swimmers Squash Clinic")
		require.Equal(t, "racquet-sports", rule.ID)
	}
}

func TestAgeParentRule(t *testing.T) {
	require.True(t, RequiresParent("Parent Participation Swim"))
	require.True(t, RequiresParent("Parent & Tot Gym"))
	require.False(t, RequiresParent("Parenting Workshop"))

	cat := AgeCategory(models.IntPtr(0), models.IntPtr(1), RequiresParent("Parent Participation Swim"))
	require.Equal(t, "baby-parent", cat)
}

func TestAgeCategory(t *testing.T) {
	i := models.IntPtr
	cases := []struct {
		min, max *int
		want     string
	}{
		{nil, nil, "all-ages"},
		{i(19), nil, "adult"},
		{i(13), i(17), "teen"},
		{i(3), i(5), "preschool"},
		{i(6), i(12), "school-age"},
		{i(8), nil, "school-age"},
		{i(2), i(60), "all-ages"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, AgeCategory(c.min, c.max, false))
	}
}

func TestFold(t *testing.T) {
	require.Equal(t, "patisserie and cafe", Fold("  Pâtisserie &  Café "))
	require.Equal(t, []string{"swim", "kids", "3"}, Tokens("Swim-Kids 3"))
}
