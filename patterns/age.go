package patterns

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	ageUnitExpr    = `(months?|mos?|years?|yrs?)\b\.?`
	optAgeUnitExpr = `(?:` + ageUnitExpr + `)?`

	// a number not glued to a price, decimal, time or date ("$84.50", "3:30", "1/6")
	ageNumExpr = `(?:^|[^\w.$,:/])(\d{1,3})`
)

// AgeRange in whole years. Either bound may be nil.
type AgeRange struct {
	Min    *int
	Max    *int
	RuleID string
}

// AgeRule turns one match into an age range
type AgeRule struct {
	ID    string
	Re    *regexp.Regexp
	Build func(m []string) AgeRange
}

// AgeRules in priority order
var AgeRules = []AgeRule{
	{
		// "at least 6 yrs but less than 13 yrs": the upper bound is exclusive
		ID: "at-least-less-than",
		Re: regexp.MustCompile(`(?i)\bat least\s+(\d{1,3})\s*` + optAgeUnitExpr + `(?:\s*old)?\s*,?\s*but\s+(?:less|younger)\s+than\s+(\d{1,3})\s*` + optAgeUnitExpr),
		Build: func(m []string) AgeRange {
			minUnit, maxUnit := m[2], m[4]
			if minUnit == "" {
				minUnit = maxUnit
			}
			lo := toYears(atoi(m[1]), minUnit)
			hi := atoi(m[3]) - 1
			if isMonths(maxUnit) {
				hi = toYears(hi, maxUnit)
			}
			return AgeRange{Min: &lo, Max: &hi}
		},
	},
	{
		ID: "unit-range",
		Re: regexp.MustCompile(`(?i)` + ageNumExpr + `\s*` + optAgeUnitExpr + `\s*(?:-|–|to)\s*(\d{1,3})\s*` + ageUnitExpr),
		Build: func(m []string) AgeRange {
			minUnit := m[2]
			if minUnit == "" {
				minUnit = m[4]
			}
			lo, hi := toYears(atoi(m[1]), minUnit), toYears(atoi(m[3]), m[4])
			return AgeRange{Min: &lo, Max: &hi}
		},
	},
	{
		ID: "ages-range",
		Re: regexp.MustCompile(`(?i)\bages?\s*:?\s*(\d{1,3})\s*(?:-|–|to)\s*(\d{1,3})\b`),
		Build: func(m []string) AgeRange {
			lo, hi := atoi(m[1]), atoi(m[2])
			return AgeRange{Min: &lo, Max: &hi}
		},
	},
	{
		ID: "min-only",
		Re: regexp.MustCompile(`(?i)` + ageNumExpr + `\s*` + optAgeUnitExpr + `\s*(?:\+|and (?:up|over|older)|& (?:up|over|older))`),
		Build: func(m []string) AgeRange {
			lo := toYears(atoi(m[1]), m[2])
			return AgeRange{Min: &lo}
		},
	},
	{
		ID: "max-only",
		Re: regexp.MustCompile(`(?i)\b(under|younger than|up to)\s+(\d{1,3})\s*` + optAgeUnitExpr),
		Build: func(m []string) AgeRange {
			n := atoi(m[2])
			if !strings.EqualFold(m[1], "up to") {
				n--
			}
			hi := toYears(n, m[3])
			return AgeRange{Max: &hi}
		},
	},
	{
		ID: "single-age",
		Re: regexp.MustCompile(`(?i)(?:\bages?\s*:?\s*(\d{1,3})\b|\b(\d{1,3})\s*(years?|yrs?)\b)`),
		Build: func(m []string) AgeRange {
			n := m[1]
			if n == "" {
				n = m[2]
			}
			v := atoi(n)
			return AgeRange{Min: &v, Max: &v}
		},
	},
	{
		// a dedicated age cell sometimes holds nothing but "6 - 12"
		ID: "bare-range",
		Re: regexp.MustCompile(`^\s*(\d{1,2})\s*(?:-|–|to)\s*(\d{1,2})\s*$`),
		Build: func(m []string) AgeRange {
			lo, hi := atoi(m[1]), atoi(m[2])
			return AgeRange{Min: &lo, Max: &hi}
		},
	},
}

// ParseAgeRange returns the first age range found in text, with Min <= Max
func ParseAgeRange(text string) (AgeRange, bool) {
	for _, rule := range AgeRules {
		m := rule.Re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		r := rule.Build(m)
		if r.Min != nil && *r.Min < 0 {
			zero := 0
			r.Min = &zero
		}
		if r.Max != nil && *r.Max < 0 {
			continue
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			r.Min, r.Max = r.Max, r.Min
		}
		r.RuleID = rule.ID
		return r, true
	}
	return AgeRange{}, false
}

func isMonths(unit string) bool {
	return strings.HasPrefix(strings.ToLower(unit), "mo")
}

func toYears(n int, unit string) int {
	if isMonths(unit) {
		return n / 12
	}
	return n
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
