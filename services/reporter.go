package services

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"activity-sync/models"
)

// PrintInsightReport formats the insight report for a terminal
func PrintInsightReport(w io.Writer, report *models.InsightReport) {
	border := strings.Repeat("═", 55)
	thin := strings.Repeat("─", 55)

	fmt.Fprintf(w, "\n╔%s╗\n", border)
	fmt.Fprintf(w, "║%s║\n", center("RECREATION ACTIVITY INSIGHTS", 55))
	fmt.Fprintf(w, "╚%s╝\n", border)

	fmt.Fprintf(w, "\n OVERVIEW\n%s\n", thin)
	fmt.Fprintf(w, "  Total Activities        : %d\n", report.TotalActivities)
	fmt.Fprintf(w, "  Free Activities         : %d\n", report.FreeActivities)
	fmt.Fprintf(w, "  Average Cost            : $%.2f\n", report.AverageCost)
	fmt.Fprintf(w, "  Minimum Cost            : $%.2f\n", report.MinCost)
	fmt.Fprintf(w, "  Maximum Cost            : $%.2f\n", report.MaxCost)

	if a := report.MostExpensive; a != nil {
		fmt.Fprintf(w, "\n MOST EXPENSIVE ACTIVITY\n%s\n", thin)
		fmt.Fprintf(w, "  Name     : %s\n", a.Name)
		fmt.Fprintf(w, "  Cost     : $%.2f\n", a.Cost.Amount)
		fmt.Fprintf(w, "  Category : %s\n", a.Category())
		fmt.Fprintf(w, "  URL      : %s\n", a.DetailURL)
	}

	printCounts(w, "ACTIVITIES PER TYPE", thin, report.ByType)
	byStatus := make(map[string]int, len(report.ByStatus))
	for s, n := range report.ByStatus {
		byStatus[string(s)] = n
	}
	printCounts(w, "REGISTRATION STATUS", thin, byStatus)
	printCounts(w, "AGE CATEGORIES", thin, report.ByAgeCategory)
	printCounts(w, "ACTIVITIES PER CATEGORY", thin, report.ByCategory)

	fmt.Fprintf(w, "\n%s\n\n", border)
}

func printCounts(w io.Writer, title, thin string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n %s\n%s\n", title, thin)
	// Sort by count descending
	type keyCount struct {
		key   string
		count int
	}
	var rows []keyCount
	for k, n := range counts {
		rows = append(rows, keyCount{k, n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, r := range rows {
		bar := strings.Repeat("▓", min(r.count, 30))
		fmt.Fprintf(w, "  %-25s %4d  %s\n", truncate(r.key, 24)+":", r.count, bar)
	}
}

// PrintRunReport prints the outcome of a finished run
func PrintRunReport(w io.Writer, run *models.SyncRun) {
	thin := strings.Repeat("─", 55)
	fmt.Fprintf(w, "\n SYNC RUN %s\n%s\n", run.SourceID, thin)
	fmt.Fprintf(w, "  Run ID     : %s\n", run.ID)
	fmt.Fprintf(w, "  Started    : %s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "  Duration   : %v\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(w, "  Outcome    : %s\n", run.Summary())
	fmt.Fprintf(w, "  Records    : %d seen | %d created | %d updated | %d unchanged | %d retired\n",
		run.RecordsSeen, run.Created, run.Updated, run.Unchanged, run.Retired)
	fmt.Fprintf(w, "  Misses     : %d navigation | %d extraction | %d normalization | %d classification\n",
		run.NavigationErrors, run.ExtractionMisses, run.NormalizationMisses, run.ClassificationMisses)
	fmt.Fprintf(w, "  Details    : %d timeouts | %d errors\n", run.DetailTimeouts, run.DetailErrors)
}

// PrintRunsTable prints one line per run, newest first as given
func PrintRunsTable(w io.Writer, runs []*models.SyncRun) {
	fmt.Fprintf(w, "%-20s  %-17s  %7s  %7s  %7s  %7s  %6s  %s\n",
		"STARTED", "OUTCOME", "SEEN", "CREATED", "UPDATED", "RETIRED", "ERRORS", "RUN ID")
	for _, r := range runs {
		fmt.Fprintf(w, "%-20s  %-17s  %7d  %7d  %7d  %7d  %6d  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome,
			r.RecordsSeen, r.Created, r.Updated, r.Retired, r.Errors, r.ID)
	}
}

// WriteRunsMarkdown renders the run history of a source as a Markdown document
func WriteRunsMarkdown(w io.Writer, sourceID string, runs []*models.SyncRun) error {
	md := markdown.NewMarkdown(w)
	md.H1("Sync runs: " + sourceID)
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			r.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
			outcomeText(r),
			strconv.Itoa(r.RecordsSeen),
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Updated),
			strconv.Itoa(r.Unchanged),
			strconv.Itoa(r.Retired),
			strconv.Itoa(r.Errors),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Started", "Finished", "Outcome", "Seen", "Created", "Updated", "Unchanged", "Retired", "Errors"},
		Rows:   rows,
	})
	md.PlainText("")

	if last := runs[0]; last.Outcome != models.OutcomeSucceeded {
		md.Warning("Latest run " + last.Summary())
	}
	return md.Build()
}

func outcomeText(r *models.SyncRun) string {
	switch r.Outcome {
	case models.OutcomeSucceeded:
		return "✅ " + r.Summary()
	case models.OutcomeAbortedByGuard:
		return "⚠️ " + r.Summary()
	case models.OutcomeFailed:
		return "❌ " + r.Summary()
	default:
		return r.Summary()
	}
}

func center(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	pad := (width - len(runes)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-len(runes)-pad)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
