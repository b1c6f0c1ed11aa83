package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-sync/models"
	"activity-sync/utils"
)

func TestInsightsGenerate(t *testing.T) {
	free := testActivity("free")
	free.Cost = &models.Cost{Amount: 0}
	free.Classification.AgeCategory = "preschool"
	pricey := testActivity("pricey")
	pricey.Cost = &models.Cost{Amount: 210}
	pricey.RegistrationStatus = models.StatusWaitlisted
	unpriced := testActivity("unpriced")
	unpriced.Cost = nil
	unpriced.CategoryPath = []string{"Arts"}
	unpriced.Classification.Type = "arts-crafts"

	report := NewInsightService(utils.NewNopLogger()).Generate([]*models.Activity{testActivity("a"), free, pricey, unpriced})

	assert.Equal(t, 4, report.TotalActivities)
	assert.Equal(t, 1, report.FreeActivities)
	assert.InDelta(t, (84.5+0+210)/3, report.AverageCost, 0.001)
	assert.Equal(t, 0.0, report.MinCost)
	assert.Equal(t, 210.0, report.MaxCost)
	require.NotNil(t, report.MostExpensive)
	assert.Equal(t, "pricey", report.MostExpensive.ExternalID)
	assert.Equal(t, map[string]int{"swimming": 3, "arts-crafts": 1}, report.ByType)
	assert.Equal(t, 1, report.ByStatus[models.StatusWaitlisted])
	assert.Equal(t, map[string]int{"Aquatics": 3, "Arts": 1}, report.ByCategory)
	assert.Equal(t, 1, report.ByAgeCategory["preschool"])
}

func TestInsightsEmpty(t *testing.T) {
	report := NewInsightService(utils.NewNopLogger()).Generate(nil)
	assert.Zero(t, report.TotalActivities)
	assert.Nil(t, report.MostExpensive)

	var buf bytes.Buffer
	PrintInsightReport(&buf, report)
	assert.Contains(t, buf.String(), "Total Activities        : 0")
}

func TestWriteRunsMarkdown(t *testing.T) {
	started := time.Date(2025, 1, 2, 6, 0, 0, 0, time.UTC)
	finished := started.Add(12 * time.Minute)
	runs := []*models.SyncRun{
		{ID: "r2", SourceID: "nvrc", StartedAt: started, FinishedAt: &finished, Outcome: models.OutcomeAbortedByGuard,
			RunDiagnostics: models.RunDiagnostics{RecordsSeen: 3}},
		{ID: "r1", SourceID: "nvrc", StartedAt: started.Add(-24 * time.Hour), FinishedAt: &finished, Outcome: models.OutcomeSucceeded,
			RunCounts: models.RunCounts{Created: 412}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRunsMarkdown(&buf, "nvrc", runs))
	out := buf.String()
	assert.Contains(t, out, "# Sync runs: nvrc")
	assert.Contains(t, out, "aborted by guard (3 records seen)")
	assert.Contains(t, out, "412")

	buf.Reset()
	PrintRunsTable(&buf, runs)
	assert.Contains(t, buf.String(), "aborted_by_guard")
	buf.Reset()
	PrintRunReport(&buf, runs[1])
	assert.Contains(t, buf.String(), "412 created")
}
