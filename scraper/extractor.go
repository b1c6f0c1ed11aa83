package scraper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"activity-sync/models"
	"activity-sync/patterns"
	"activity-sync/utils"

	"github.com/PuerkitoBio/goquery"
)

// MaxHeadingDistance bounds the walk from a listing back to its group heading.
// Each previous sibling or parent visited counts as one step.
const MaxHeadingDistance = 8

var (
	courseCodeRe = regexp.MustCompile(`(?i)(?:#\s*|\bcourse\s*(?:id|code|no\.?|number)?\s*[:#]?\s*)(\d{4,})\b`)
	bareCodeRe   = regexp.MustCompile(`^\s*(\d{4,})\s*$`)
)

// hashIDPrefix marks identities derived from content rather than printed by the site
const hashIDPrefix = "h-"

// markerCandidates are the elements that can carry a registration-state label
const markerCandidates = "a, button, input, span, td, div"

// Extractor turns an expanded category page into listings
type Extractor struct {
	sel     Selectors
	idParam string
	vocab   map[string]bool
	linker  DetailLinker
	logger  *utils.Logger
}

// NewExtractor creates an extractor for the provider's markup
func NewExtractor(p Provider, logger *utils.Logger) *Extractor {
	vocab := make(map[string]bool)
	for _, v := range p.Vocabulary() {
		vocab[patterns.Fold(v)] = true
	}
	linker, _ := p.(DetailLinker)
	return &Extractor{
		sel:     p.Selectors(),
		idParam: p.IDParam(),
		vocab:   vocab,
		linker:  linker,
		logger:  logger,
	}
}

// Extract returns one listing per row that carries a registration-state marker.
// Rows whose heading can't be found are kept with a fallback name. Repeated
// identities on the same page collapse to the first occurrence.
func (e *Extractor) Extract(rc *models.RunContext, pageHTML, baseURL string, path []string) ([]*models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse category page: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	seen := utils.NewIDTracker()
	var listings []*models.Listing
	rows := 0

	doc.Find(e.sel.Row).Each(func(_ int, row *goquery.Selection) {
		marker := e.marker(row)
		if marker == "" {
			return
		}
		rows++

		l := &models.Listing{
			SourceID:         rc.Run.SourceID,
			CategoryPath:     append([]string(nil), path...),
			RawText:          patterns.Clean(row.Text()),
			ScheduleText:     e.allText(row, e.sel.Schedule),
			CostText:         e.text(row, e.sel.Cost),
			AgeText:          e.text(row, e.sel.Age),
			LocationText:     e.text(row, e.sel.Location),
			RegistrationText: marker,
			DetailURL:        e.detailURL(row, base),
		}

		l.Name = e.text(row, e.sel.Name)
		if l.Name == "" {
			l.Name = e.heading(row)
		}
		if l.Name == "" {
			l.Name = models.FallbackName
			l.Unparented = true
			rc.ExtractionMiss()
			e.logger.Debug("No heading within %d steps of listing '%s'", MaxHeadingDistance, truncate(l.RawText, 60))
		}

		l.ExternalID = e.externalID(row, l)
		if !seen.Add(l.ExternalID) {
			e.logger.Debug("Duplicate listing %s on %s", l.ExternalID, l.Category())
			return
		}
		if l.DetailURL == "" && e.linker != nil && !strings.HasPrefix(l.ExternalID, hashIDPrefix) {
			l.DetailURL = e.linker.DetailURL(l.ExternalID)
		}
		listings = append(listings, l)
	})

	e.logger.Debug("Category '%s': %d marked rows, %d listings",
		strings.Join(path, models.CategorySeparator), rows, len(listings))
	return listings, nil
}

// marker returns the registration-state label found in the row, if any
func (e *Extractor) marker(row *goquery.Selection) string {
	var found string
	check := func(text string) bool {
		text = patterns.Clean(text)
		if text != "" && e.vocab[patterns.Fold(text)] {
			found = text
			return true
		}
		return false
	}

	row.Find(markerCandidates).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if goquery.NodeName(el) == "input" {
			v, _ := el.Attr("value")
			return !check(v)
		}
		return !check(el.Text())
	})
	return found
}

// heading walks back through previous siblings and up through parents looking
// for the nearest group heading
func (e *Extractor) heading(row *goquery.Selection) string {
	if e.sel.Heading == "" {
		return ""
	}
	cur := row
	for step := 0; step < MaxHeadingDistance; step++ {
		prev := cur.Prev()
		if prev.Length() == 0 {
			cur = cur.Parent()
			if cur.Length() == 0 || goquery.NodeName(cur) == "html" {
				return ""
			}
			continue
		}
		if prev.Is(e.sel.Heading) {
			return patterns.Clean(prev.Text())
		}
		if h := prev.Find(e.sel.Heading).Last(); h.Length() > 0 {
			return patterns.Clean(h.Text())
		}
		cur = prev
	}
	return ""
}

func (e *Extractor) text(row *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return patterns.Clean(row.Find(selector).First().Text())
}

func (e *Extractor) allText(row *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	var parts []string
	row.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := patterns.Clean(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func (e *Extractor) detailURL(row *goquery.Selection, base *url.URL) string {
	if e.sel.DetailLink == "" {
		return ""
	}
	href, ok := row.Find(e.sel.DetailLink).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// externalID prefers the printed course code, then the id carried by the detail
// link, then a hash of the listing's visible content
func (e *Extractor) externalID(row *goquery.Selection, l *models.Listing) string {
	if code := e.text(row, e.sel.CourseCode); code != "" {
		if m := bareCodeRe.FindStringSubmatch(code); m != nil {
			return m[1]
		}
		if m := courseCodeRe.FindStringSubmatch(code); m != nil {
			return m[1]
		}
	}
	if m := courseCodeRe.FindStringSubmatch(l.RawText); m != nil {
		return m[1]
	}
	if id := linkID(l.DetailURL, e.idParam); id != "" {
		return id
	}

	sum := sha256.Sum256([]byte(strings.Join([]string{
		l.Category(), l.Name, l.ScheduleText, l.LocationText,
	}, "|")))
	return hashIDPrefix + hex.EncodeToString(sum[:8])
}

// linkID reads the listing id parameter from a detail link
func linkID(link, param string) string {
	if link == "" || param == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	for k, v := range u.Query() {
		if strings.EqualFold(k, param) && len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
