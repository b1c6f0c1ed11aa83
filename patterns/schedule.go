package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const dayNameExpr = `(mon(?:day)?|tue(?:s(?:day)?)?|tu|wed(?:nesday)?|thu(?:r(?:s(?:day)?)?)?|th|fri(?:day)?|sat(?:urday)?|sun(?:day)?|sa|su)`

var (
	dayRangeRe  = regexp.MustCompile(`(?i)\b` + dayNameExpr + `\.?\s*(?:-|–|to)\s*` + dayNameExpr + `\b`)
	dayNameRe   = regexp.MustCompile(`(?i)\b` + dayNameExpr + `\b`)
	weekdaysRe  = regexp.MustCompile(`(?i)\bweekdays?\b`)
	weekendsRe  = regexp.MustCompile(`(?i)\bweekends?\b`)
	dailyRe     = regexp.MustCompile(`(?i)\b(?:daily|every ?day)\b`)
	timeTokExpr = `(?:(noon|midnight)|(\d{1,2})(?::(\d{2}))?\s*(?:([ap])\.?\s?m\b\.?)?)`
	timeRangeRe = regexp.MustCompile(`(?i)\b` + timeTokExpr + `\s*(?:-|–|—|to)\s*` + timeTokExpr)
)

var dayPrefixes = []struct {
	prefix string
	day    time.Weekday
}{
	{"mo", time.Monday}, {"tu", time.Tuesday}, {"we", time.Wednesday}, {"th", time.Thursday},
	{"fr", time.Friday}, {"sa", time.Saturday}, {"su", time.Sunday},
}

func parseDayName(s string) (time.Weekday, bool) {
	s = strings.ToLower(s)
	for _, p := range dayPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			return p.day, true
		}
	}
	return 0, false
}

// ShortDay renders a weekday the way sessions store it ("Mon")
func ShortDay(d time.Weekday) string {
	return d.String()[:3]
}

// ParseWeekdays returns the distinct weekdays named in text, in first-seen order.
// Ranges such as "Mon-Fri" expand (and may wrap, "Fri-Mon").
func ParseWeekdays(text string) []time.Weekday {
	type hit struct {
		pos  int
		days []time.Weekday
	}
	var hits []hit
	work := text

	expand := func(from, to time.Weekday) []time.Weekday {
		var out []time.Weekday
		for d := from; ; d = (d + 1) % 7 {
			out = append(out, d)
			if d == to {
				return out
			}
		}
	}

	for _, loc := range dayRangeRe.FindAllStringSubmatchIndex(work, -1) {
		from, ok1 := parseDayName(work[loc[2]:loc[3]])
		to, ok2 := parseDayName(work[loc[4]:loc[5]])
		if ok1 && ok2 {
			hits = append(hits, hit{loc[0], expand(from, to)})
		}
	}
	for _, loc := range dayRangeRe.FindAllStringIndex(work, -1) {
		work = mask(work, loc)
	}
	for _, loc := range weekdaysRe.FindAllStringIndex(work, -1) {
		hits = append(hits, hit{loc[0], expand(time.Monday, time.Friday)})
	}
	for _, loc := range weekendsRe.FindAllStringIndex(work, -1) {
		hits = append(hits, hit{loc[0], []time.Weekday{time.Saturday, time.Sunday}})
	}
	for _, loc := range dailyRe.FindAllStringIndex(work, -1) {
		hits = append(hits, hit{loc[0], expand(time.Monday, time.Sunday)})
	}
	for _, loc := range dayNameRe.FindAllStringIndex(work, -1) {
		if d, ok := parseDayName(work[loc[0]:loc[1]]); ok {
			hits = append(hits, hit{loc[0], []time.Weekday{d}})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	seen := map[time.Weekday]bool{}
	var out []time.Weekday
	for _, h := range hits {
		for _, d := range h.days {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// TimeRange is a start/end pair in 24h "HH:MM" form
type TimeRange struct {
	Start string
	End   string
}

type clock struct {
	hour, minute int
	meridiem     byte // 'a', 'p' or 0
	named        bool
	colon        bool
}

func (c clock) minutes() int {
	h := c.hour
	switch c.meridiem {
	case 'a':
		if h == 12 {
			h = 0
		}
	case 'p':
		if h < 12 {
			h += 12
		}
	}
	return h*60 + c.minute
}

func parseClock(m []string) (clock, bool) {
	switch strings.ToLower(m[0]) {
	case "noon":
		return clock{hour: 12, meridiem: 'p', named: true}, true
	case "midnight":
		return clock{hour: 12, meridiem: 'a', named: true}, true
	}
	if m[1] == "" {
		return clock{}, false
	}
	h, _ := strconv.Atoi(m[1])
	c := clock{hour: h}
	if m[2] != "" {
		c.minute, _ = strconv.Atoi(m[2])
		c.colon = true
	}
	if m[3] != "" {
		c.meridiem = strings.ToLower(m[3])[0]
	}
	if c.minute > 59 || c.hour > 23 || (c.meridiem != 0 && (c.hour < 1 || c.hour > 12)) {
		return clock{}, false
	}
	return c, true
}

// ParseTimeRange finds the first clock range in text. A side without am/pm
// borrows it from the other side ("9 - 10:30am"). Bare numbers without a
// colon or meridiem on either side are not times ("6 - 12" is an age range).
func ParseTimeRange(text string) (TimeRange, bool) {
	for _, m := range timeRangeRe.FindAllStringSubmatch(text, -1) {
		a, ok1 := parseClock([]string{m[1], m[2], m[3], m[4]})
		b, ok2 := parseClock([]string{m[5], m[6], m[7], m[8]})
		if !ok1 || !ok2 {
			continue
		}
		if a.meridiem == 0 && b.meridiem == 0 && !(a.colon || b.colon || a.named || b.named) {
			continue
		}
		switch {
		case a.meridiem == 0 && b.meridiem != 0:
			a.meridiem = b.meridiem
			if a.minutes() > b.minutes() {
				a.meridiem = 'a'
			}
		case b.meridiem == 0 && a.meridiem != 0:
			b.meridiem = a.meridiem
			if b.minutes() < a.minutes() {
				b.meridiem = 'p'
			}
		}
		start, end := a.minutes(), b.minutes()
		if end < start && a.meridiem == 0 {
			end += 12 * 60
		}
		if end < start || end >= 24*60 {
			continue
		}
		return TimeRange{Start: hhmm(start), End: hhmm(end)}, true
	}
	return TimeRange{}, false
}

func hhmm(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
