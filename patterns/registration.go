package patterns

import (
	"regexp"
	"strconv"
	"strings"

	"activity-sync/models"
)

// RegistrationRule maps state text to a status. Exact rules compare the whole
// folded text, the others look for the phrase anywhere in it.
type RegistrationRule struct {
	ID      string
	Exact   bool
	Phrases []string
	Status  models.RegistrationStatus
}

// RegistrationRules are evaluated exact rules first, then substring rules, each in slice order
var RegistrationRules = []RegistrationRule{
	{ID: "exact-waitlist", Exact: true, Phrases: []string{"waitlist", "wait list", "waitlisted", "join waitlist", "join wait list"}, Status: models.StatusWaitlisted},
	{ID: "exact-closed", Exact: true, Phrases: []string{"closed", "full", "cancelled", "canceled", "not available", "registration closed", "sold out"}, Status: models.StatusClosed},
	{ID: "exact-open", Exact: true, Phrases: []string{"register", "register now", "book now", "enroll", "enrol", "add to cart", "open", "sign up"}, Status: models.StatusOpen},

	{ID: "waitlist", Phrases: []string{"waitlist", "wait list", "waiting list"}, Status: models.StatusWaitlisted},
	{ID: "closed", Phrases: []string{"not yet open", "coming soon", "registration closed", "closed", "full", "cancelled", "canceled", "not available", "unavailable", "sold out", "no spots"}, Status: models.StatusClosed},
	{ID: "open", Phrases: []string{"book now", "register", "enroll", "enrol", "add to cart", "spots available", "spaces available", "sign up", "open"}, Status: models.StatusOpen},
}

// RegistrationVocabulary lists the labels that mark a listing on a category page
func RegistrationVocabulary() []string {
	var out []string
	for _, r := range RegistrationRules {
		if r.Exact {
			out = append(out, r.Phrases...)
		}
	}
	return out
}

var spotsRe = regexp.MustCompile(`(?i)\b(\d+)\s+(?:spots?|spaces?|openings?|places?)\s+(?:left|remaining|available)\b`)

// Registration is a parsed registration state
type Registration struct {
	Status models.RegistrationStatus
	Spots  *int
	RuleID string
}

// ParseRegistration maps state text to the four-value status. It never fails:
// unrecognized text is StatusUnknown. "3 spots left" also sets Spots.
func ParseRegistration(text string) Registration {
	folded := Fold(text)
	reg := Registration{Status: models.StatusUnknown}
	if m := spotsRe.FindStringSubmatch(folded); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			reg.Spots = &n
		}
	}
	if folded == "" {
		return reg
	}

	for _, exact := range []bool{true, false} {
		for _, rule := range RegistrationRules {
			if rule.Exact != exact {
				continue
			}
			for _, p := range rule.Phrases {
				if (exact && folded == p) || (!exact && containsPhrase(folded, p)) {
					reg.Status, reg.RuleID = rule.Status, rule.ID
					if reg.Status == models.StatusOpen && reg.Spots != nil && *reg.Spots == 0 {
						reg.Status = models.StatusClosed
					}
					return reg
				}
			}
		}
	}

	if reg.Spots != nil {
		reg.RuleID = "spots"
		if *reg.Spots > 0 {
			reg.Status = models.StatusOpen
		} else {
			reg.Status = models.StatusClosed
		}
	}
	return reg
}

// containsPhrase matches p on word boundaries of folded text
func containsPhrase(folded, p string) bool {
	idx := 0
	for {
		i := strings.Index(folded[idx:], p)
		if i < 0 {
			return false
		}
		start, end := idx+i, idx+i+len(p)
		if (start == 0 || !isWordByte(folded[start-1])) && (end == len(folded) || !isWordByte(folded[end])) {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
