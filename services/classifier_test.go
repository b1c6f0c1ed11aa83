package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-sync/models"
	"activity-sync/utils"
)

func TestClassifyOne(t *testing.T) {
	c := NewClassifier(nil, utils.NewNopLogger())

	cases := []struct {
		name     string
		activity models.Activity
		wantType string
		wantSub  *string
		wantOK   bool
	}{
		{
			name:     "racquet sports win over swimming",
			activity: models.Activity{Name: "Swim Squash"},
			wantType: "racquet-sports",
			wantSub:  models.StringPtr("squash"),
			wantOK:   true,
		},
		{
			name:     "category path used when the name says nothing",
			activity: models.Activity{Name: "Level 1", CategoryPath: []string{"Aquatics", "Swimming Lessons"}},
			wantType: "swimming",
			wantSub:  models.StringPtr("lessons"),
			wantOK:   true,
		},
		{
			name:     "unmatched falls back to other",
			activity: models.Activity{Name: "Mystery Program", CategoryPath: []string{"Misc"}},
			wantType: "other",
			wantOK:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cls, ok := c.ClassifyOne(&tc.activity)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantType, cls.Type)
			assert.Equal(t, tc.wantType, cls.TypeID)
			assert.Equal(t, tc.wantSub, cls.Subtype)
			if tc.wantSub != nil {
				require.NotNil(t, cls.SubtypeID)
				assert.Equal(t, tc.wantType+"-"+*tc.wantSub, *cls.SubtypeID)
			}
		})
	}
}

func TestClassifyParentParticipation(t *testing.T) {
	c := NewClassifier(nil, utils.NewNopLogger())
	cls, ok := c.ClassifyOne(&models.Activity{
		Name:   "Parent Participation Swim",
		AgeMin: models.IntPtr(0),
		AgeMax: models.IntPtr(1),
	})
	require.True(t, ok)
	assert.Equal(t, "swimming", cls.Type)
	assert.Equal(t, "swimming", cls.Method)
	assert.True(t, cls.RequiresParent)
	assert.Equal(t, "baby-parent", cls.AgeCategory)
}

func TestClassifyCountsMisses(t *testing.T) {
	c := NewClassifier(nil, utils.NewNopLogger())
	rc := models.NewRunContext(models.NewSyncRun("nvrc", time.Now()))
	activities := []*models.Activity{{Name: "Karate"}, {Name: "Drop-in Gym Time"}, {Name: "Board Meeting"}}

	c.Classify(rc, activities)
	assert.Equal(t, "martial-arts", activities[0].Classification.Type)
	for _, a := range activities {
		assert.NotEmpty(t, a.Classification.Type)
	}
	assert.Equal(t, 2, rc.Diagnostics().ClassificationMisses)
}

func TestLoadTaxonomy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
types:
  other:
    id: "100"
  swimming:
    id: "7"
    subtypes:
      lessons: "71"
`), 0o644))

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)
	c := NewClassifier(tax, utils.NewNopLogger())

	cls, ok := c.ClassifyOne(&models.Activity{Name: "Swim Kids 3"})
	require.True(t, ok)
	assert.Equal(t, "7", cls.TypeID)
	require.NotNil(t, cls.SubtypeID)
	assert.Equal(t, "71", *cls.SubtypeID)

	// a type the taxonomy doesn't know cannot be stored under its own id
	cls, ok = c.ClassifyOne(&models.Activity{Name: "Karate"})
	assert.False(t, ok)
	assert.Equal(t, "other", cls.Type)
	assert.Equal(t, "100", cls.TypeID)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("types:\n  swimming:\n    id: \"7\"\n"), 0o644))
	_, err = LoadTaxonomy(bad)
	assert.Error(t, err)
}
