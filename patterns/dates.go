package patterns

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	monthExpr = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`
	dayExpr   = `(\d{1,2})(?:st|nd|rd|th)?`
	yearExpr  = `(?:,?\s*(\d{4}))?`
	dashExpr  = `\s*(?:-|–|—|to|through|thru)\s*`
	// a day must not run into a clock time ("Jan 6 - 10:30")
	dayEnd = `(?:[^\d:]|$)`
)

// DateRange is a parsed inclusive date span. Single dates have Start == End.
type DateRange struct {
	Start  time.Time
	End    time.Time
	RuleID string
}

// DateRule turns one regexp match into a date range
type DateRule struct {
	ID    string
	Re    *regexp.Regexp
	Build func(m []string, ref time.Time) (DateRange, bool)
}

// DateRules are tried most-specific first
var DateRules = []DateRule{
	{
		ID: "numeric-range",
		Re: regexp.MustCompile(`(?i)\b(\d{1,2})/(\d{1,2})/(\d{2,4})` + dashExpr + `(\d{1,2})/(\d{1,2})/(\d{2,4})\b`),
		Build: func(m []string, ref time.Time) (DateRange, bool) {
			start, ok1 := numericDate(m[1], m[2], m[3])
			end, ok2 := numericDate(m[4], m[5], m[6])
			if !ok1 || !ok2 {
				return DateRange{}, false
			}
			return orderRange(start, end, true), true
		},
	},
	{
		ID: "cross-month",
		Re: regexp.MustCompile(`(?i)\b` + monthExpr + `\s+` + dayExpr + yearExpr + dashExpr + monthExpr + `\s+` + dayExpr + yearExpr + dayEnd),
		Build: func(m []string, ref time.Time) (DateRange, bool) {
			sy, ey, sYear, eYear := ref.Year(), ref.Year(), m[3] != "", m[6] != ""
			if sYear {
				sy, _ = strconv.Atoi(m[3])
			}
			if eYear {
				ey, _ = strconv.Atoi(m[6])
			}
			switch {
			case sYear && !eYear:
				ey = sy
			case eYear && !sYear:
				sy = ey
			}
			start, ok1 := monthDate(m[1], m[2], sy)
			end, ok2 := monthDate(m[4], m[5], ey)
			if !ok1 || !ok2 {
				return DateRange{}, false
			}
			if eYear && !sYear && end.Before(start) {
				return DateRange{Start: start.AddDate(-1, 0, 0), End: end}, true
			}
			return orderRange(start, end, !eYear), true
		},
	},
	{
		ID: "same-month",
		Re: regexp.MustCompile(`(?i)\b` + monthExpr + `\s+` + dayExpr + dashExpr + dayExpr + yearExpr + dayEnd),
		Build: func(m []string, ref time.Time) (DateRange, bool) {
			year := ref.Year()
			if m[4] != "" {
				year, _ = strconv.Atoi(m[4])
			}
			start, ok1 := monthDate(m[1], m[2], year)
			end, ok2 := monthDate(m[1], m[3], year)
			if !ok1 || !ok2 || end.Before(start) {
				return DateRange{}, false
			}
			return DateRange{Start: start, End: end}, true
		},
	},
	{
		ID: "single-date",
		Re: regexp.MustCompile(`(?i)\b` + monthExpr + `\s+` + dayExpr + yearExpr + dayEnd),
		Build: func(m []string, ref time.Time) (DateRange, bool) {
			year := ref.Year()
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
			}
			d, ok := monthDate(m[1], m[2], year)
			if !ok {
				return DateRange{}, false
			}
			return DateRange{Start: d, End: d}, true
		},
	},
	{
		ID: "numeric-single",
		Re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`),
		Build: func(m []string, ref time.Time) (DateRange, bool) {
			d, ok := numericDate(m[1], m[2], m[3])
			if !ok {
				return DateRange{}, false
			}
			return DateRange{Start: d, End: d}, true
		},
	},
}

type positioned struct {
	pos int
	r   DateRange
}

// ParseDateRanges finds every date chunk in text, in text order. Years missing
// from the text are taken from ref. A range whose end falls before its start
// spans a year boundary and gets its end pushed into the following year.
func ParseDateRanges(text string, ref time.Time) []DateRange {
	var found []positioned
	work := text
	for _, rule := range DateRules {
		next := work
		for _, loc := range rule.Re.FindAllStringSubmatchIndex(work, -1) {
			r, ok := rule.Build(submatches(work, loc), ref)
			if !ok {
				continue
			}
			r.RuleID = rule.ID
			found = append(found, positioned{pos: loc[0], r: r})
			next = mask(next, loc)
		}
		work = next
	}
	if len(found) == 0 {
		return nil
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]DateRange, len(found))
	for i, f := range found {
		out[i] = f.r
	}
	return out
}

// ParseDateRange returns the first chunk only
func ParseDateRange(text string, ref time.Time) (DateRange, bool) {
	ranges := ParseDateRanges(text, ref)
	if len(ranges) == 0 {
		return DateRange{}, false
	}
	return ranges[0], true
}

func submatches(s string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

func orderRange(start, end time.Time, inferYear bool) DateRange {
	if inferYear && end.Before(start) {
		end = end.AddDate(1, 0, 0)
	}
	return DateRange{Start: start, End: end}
}

// ParseMonth resolves an English month name or abbreviation
func ParseMonth(s string) (time.Month, bool) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
	if len(s) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), s) {
			return m, true
		}
	}
	if s == "sept" {
		return time.September, true
	}
	return 0, false
}

func monthDate(monthText, dayText string, year int) (time.Time, bool) {
	month, ok := ParseMonth(monthText)
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil {
		return time.Time{}, false
	}
	return validDate(year, month, day)
}

func numericDate(monthText, dayText, yearText string) (time.Time, bool) {
	month, err1 := strconv.Atoi(monthText)
	day, err2 := strconv.Atoi(dayText)
	year, err3 := strconv.Atoi(yearText)
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	return validDate(year, time.Month(month), day)
}

func validDate(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Month() != month {
		// Feb 30 and friends roll over; reject rather than guess
		return time.Time{}, false
	}
	return d, true
}
