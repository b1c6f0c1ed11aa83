package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"activity-sync/models"
	"activity-sync/patterns"

	"github.com/PuerkitoBio/goquery"
)

var requiredMarkRe = regexp.MustCompile(`(?i)\s*[\(\[]?\s*\b(required|mandatory|recommended|optional)\b\s*[\)\]]?\s*:?`)

// Detail holds the extended fields read from a detail page
type Detail struct {
	Description   string
	WhatToBring   string
	Instructor    string
	Prerequisites []models.RawPrerequisite
	Sessions      []models.RawSession
}

// Empty reports whether the page yielded nothing usable
func (d *Detail) Empty() bool {
	return d.Description == "" && d.WhatToBring == "" && d.Instructor == "" &&
		len(d.Prerequisites) == 0 && len(d.Sessions) == 0
}

// ApplyTo copies the detail fields onto a listing
func (d *Detail) ApplyTo(l *models.Listing) {
	l.Enriched = true
	l.Description = d.Description
	l.WhatToBring = d.WhatToBring
	l.Instructor = d.Instructor
	l.Prerequisites = d.Prerequisites
	l.DetailSessions = d.Sessions
}

// DetailParser extracts extended fields from activity detail pages
type DetailParser struct {
	sel     Selectors
	idParam string
}

// NewDetailParser creates a parser for the provider's detail markup
func NewDetailParser(p Provider) *DetailParser {
	return &DetailParser{sel: p.Selectors(), idParam: p.IDParam()}
}

// ParseDetailPage parses the HTML of a detail page loaded from pageURL
func (p *DetailParser) ParseDetailPage(pageHTML, pageURL string) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid detail URL %q: %w", pageURL, err)
	}

	d := &Detail{
		Description:   p.extractDescription(doc),
		WhatToBring:   p.first(doc.Selection, p.sel.WhatToBring),
		Instructor:    p.first(doc.Selection, p.sel.Instructor),
		Prerequisites: p.extractPrerequisites(doc, base),
		Sessions:      p.extractSessions(doc),
	}
	if d.Empty() {
		return nil, fmt.Errorf("no detail fields found on %s", pageURL)
	}
	return d, nil
}

func (p *DetailParser) first(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	var out string
	s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		out = patterns.Clean(el.Text())
		return out == ""
	})
	return out
}

// extractDescription keeps paragraph breaks, which Clean would flatten
func (p *DetailParser) extractDescription(doc *goquery.Document) string {
	if p.sel.Description == "" {
		return ""
	}
	var paras []string
	doc.Find(p.sel.Description).First().Find("p, li").Each(func(_ int, el *goquery.Selection) {
		if t := patterns.Clean(el.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) == 0 {
		return p.first(doc.Selection, p.sel.Description)
	}
	return strings.Join(paras, "\n")
}

func (p *DetailParser) extractPrerequisites(doc *goquery.Document, base *url.URL) []models.RawPrerequisite {
	if p.sel.Prerequisite == "" {
		return nil
	}
	var out []models.RawPrerequisite
	doc.Find(p.sel.Prerequisite).Each(func(_ int, el *goquery.Selection) {
		text := patterns.Clean(el.Text())
		if text == "" {
			return
		}
		folded := patterns.Fold(text)
		pr := models.RawPrerequisite{
			Name:     patterns.Clean(requiredMarkRe.ReplaceAllString(text, " ")),
			Required: !strings.Contains(folded, "recommended") && !strings.Contains(folded, "optional"),
		}
		if href, ok := el.Find("a[href]").First().Attr("href"); ok {
			if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
				pr.URL = base.ResolveReference(ref).String()
				pr.CourseID = linkID(pr.URL, p.idParam)
			}
		}
		if pr.Name != "" {
			out = append(out, pr)
		}
	})
	return out
}

func (p *DetailParser) extractSessions(doc *goquery.Document) []models.RawSession {
	if p.sel.SessionRow == "" {
		return nil
	}
	var out []models.RawSession
	doc.Find(p.sel.SessionRow).Each(func(_ int, row *goquery.Selection) {
		s := models.RawSession{
			DateText:       p.first(row, p.sel.SessionDate),
			TimeText:       p.first(row, p.sel.SessionTime),
			LocationText:   p.first(row, p.sel.SessionLocation),
			InstructorText: p.first(row, p.sel.SessionInstructor),
		}
		if s.DateText == "" && s.TimeText == "" {
			return
		}
		out = append(out, s)
	})
	return out
}
