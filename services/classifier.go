package services

import (
	"fmt"
	"os"

	"activity-sync/models"
	"activity-sync/patterns"
	"activity-sync/utils"

	"gopkg.in/yaml.v3"
)

// TaxonomyType is one activity type with the ids of its subtypes, keyed by slug
type TaxonomyType struct {
	ID       string            `yaml:"id"`
	Name     string            `yaml:"name"`
	Subtypes map[string]string `yaml:"subtypes"`
}

// Taxonomy maps classification slugs to the ids owned by the reference-data service
type Taxonomy struct {
	Types map[string]TaxonomyType `yaml:"types"`
}

// DefaultTaxonomy derives a taxonomy from the classification rules, using slugs as ids
func DefaultTaxonomy() *Taxonomy {
	t := &Taxonomy{Types: map[string]TaxonomyType{
		patterns.DefaultType: {ID: patterns.DefaultType, Name: "Other"},
	}}
	for _, rule := range patterns.ClassRules {
		tt, ok := t.Types[rule.Type]
		if !ok {
			tt = TaxonomyType{ID: rule.Type, Name: rule.Type, Subtypes: make(map[string]string)}
		}
		for _, st := range rule.Subtypes {
			tt.Subtypes[st.Slug] = rule.Type + "-" + st.Slug
		}
		t.Types[rule.Type] = tt
	}
	return t
}

// LoadTaxonomy reads a taxonomy file. It must define the default type.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy %s: %w", path, err)
	}
	if _, ok := t.Types[patterns.DefaultType]; !ok {
		return nil, fmt.Errorf("taxonomy %s has no %q type", path, patterns.DefaultType)
	}
	for slug, tt := range t.Types {
		if tt.ID == "" {
			tt.ID = slug
			t.Types[slug] = tt
		}
	}
	return &t, nil
}

// Resolve returns the ids for a type and optional subtype. An unknown subtype
// resolves to no subtype; an unknown type does not resolve.
func (t *Taxonomy) Resolve(typeSlug string, subtype *string) (string, *string, bool) {
	tt, ok := t.Types[typeSlug]
	if !ok {
		return "", nil, false
	}
	if subtype == nil {
		return tt.ID, nil, true
	}
	if id, ok := tt.Subtypes[*subtype]; ok {
		return tt.ID, &id, true
	}
	return tt.ID, nil, true
}

// Classifier assigns every activity exactly one type
type Classifier struct {
	taxonomy *Taxonomy
	logger   *utils.Logger
}

// NewClassifier creates a classifier resolving ids through taxonomy
func NewClassifier(taxonomy *Taxonomy, logger *utils.Logger) *Classifier {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	return &Classifier{taxonomy: taxonomy, logger: logger}
}

// Classify sets the classification of each activity in place
func (c *Classifier) Classify(rc *models.RunContext, activities []*models.Activity) {
	byType := make(map[string]int)
	for _, a := range activities {
		cls, matched := c.ClassifyOne(a)
		if !matched {
			rc.ClassificationMiss()
		}
		a.Classification = cls
		byType[cls.Type]++
	}
	c.logger.Info("Classified %d activities into %d types (%d defaulted)",
		len(activities), len(byType), rc.Diagnostics().ClassificationMisses)
}

// ClassifyOne tries the rules on the name, then on the category path. The
// second result is false when the default type was assigned.
func (c *Classifier) ClassifyOne(a *models.Activity) (models.Classification, bool) {
	rule, _, ok := patterns.Classify(a.Name)
	if !ok {
		rule, _, ok = patterns.Classify(a.Category())
	}

	cls := models.Classification{Type: patterns.DefaultType, Method: patterns.DefaultMethod}
	if ok {
		cls.Type = rule.Type
		cls.Method = rule.ID
		cls.Subtype = rule.Subtype(patterns.Tokens(a.Name + " " + a.Category()))
	}

	typeID, subtypeID, found := c.taxonomy.Resolve(cls.Type, cls.Subtype)
	if !found {
		c.logger.Warn("Type %q is not in the taxonomy, '%s' falls back to %s", cls.Type, a.Name, patterns.DefaultType)
		cls = models.Classification{Type: patterns.DefaultType, Method: patterns.DefaultMethod}
		typeID, subtypeID, _ = c.taxonomy.Resolve(cls.Type, nil)
		ok = false
	}
	cls.TypeID = typeID
	cls.SubtypeID = subtypeID
	if subtypeID == nil {
		cls.Subtype = nil
	}

	cls.RequiresParent = patterns.RequiresParent(a.Name)
	cls.AgeCategory = patterns.AgeCategory(a.AgeMin, a.AgeMax, cls.RequiresParent)
	return cls, ok
}
