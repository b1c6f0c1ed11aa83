package patterns

import (
	"regexp"
	"strconv"
	"strings"
)

// Cost is a parsed price
type Cost struct {
	Amount      float64
	TaxIncluded bool
	RuleID      string
}

// CostRule turns one match into an amount
type CostRule struct {
	ID    string
	Re    *regexp.Regexp
	Build func(m []string) (float64, bool)
}

var (
	taxIncludedRe = regexp.MustCompile(`(?i)\b(?:incl(?:\.|uding|udes)?\s+(?:all\s+)?tax(?:es)?|tax(?:es)?\s+incl(?:\.|uded)?)`)
	taxExtraRe    = regexp.MustCompile(`(?i)(?:\+\s*|\bplus\s+)(?:gst|hst|pst|tax(?:es)?)\b`)
)

// CostRules in priority order
var CostRules = []CostRule{
	{
		ID:    "currency",
		Re:    regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?`),
		Build: buildAmount,
	},
	{
		ID: "free",
		Re: regexp.MustCompile(`(?i)\b(?:free|no charge|no cost)\b`),
		Build: func([]string) (float64, bool) {
			return 0, true
		},
	},
	{
		ID:    "decimal",
		Re:    regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+|\d+)\.(\d{2})\b`),
		Build: buildAmount,
	},
}

func buildAmount(m []string) (float64, bool) {
	whole := strings.ReplaceAll(m[1], ",", "")
	if m[2] != "" {
		whole += "." + m[2]
	}
	v, err := strconv.ParseFloat(whole, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseCost returns the first amount found in text. "$1,234.50 + tax" is
// 1234.5 with TaxIncluded false; "Free" is 0.
func ParseCost(text string) (Cost, bool) {
	for _, rule := range CostRules {
		m := rule.Re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, ok := rule.Build(m)
		if !ok {
			continue
		}
		c := Cost{Amount: amount, RuleID: rule.ID}
		if taxIncludedRe.MatchString(text) && !taxExtraRe.MatchString(text) {
			c.TaxIncluded = true
		}
		return c, true
	}
	return Cost{}, false
}
