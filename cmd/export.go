package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/jobdash/internal/models"
)

var (
	exportFormat string
	exportType   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export applied jobs, saved jobs, or local session history in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "applied", "Data type: applied, saved, sessions")
	rootCmd.AddCommand(exportCmd)
}

// exportTable is the tabular form of an export; data is what JSON encodes.
type exportTable struct {
	title   string
	headers []string
	rows    [][]string
	data    any
}

func exportRun(ctx context.Context) error {
	switch exportFormat {
	case "json", "csv", "markdown":
	default:
		return fmt.Errorf("unknown format: %s", exportFormat)
	}

	var (
		t   *exportTable
		err error
	)
	switch exportType {
	case "applied":
		t, err = exportApplied(ctx)
	case "saved":
		t, err = exportSaved(ctx)
	case "sessions":
		t, err = exportSessions(ctx)
	default:
		return fmt.Errorf("unknown export type: %s (use: applied, saved, sessions)", exportType)
	}
	if err != nil {
		return err
	}
	return writeExport(t, exportFormat)
}

func exportApplied(ctx context.Context) (*exportTable, error) {
	a, err := requireApp(ctx)
	if err != nil {
		return nil, err
	}
	records, err := a.Client().ListAppliedJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applied jobs: %w", err)
	}
	return appliedTable(records), nil
}

func appliedTable(records []models.ApplicationRecord) *exportTable {
	t := &exportTable{
		title:   "Applied Jobs",
		headers: []string{"ID", "Title", "Company", "Location", "Status", "Applied", "URL"},
		data:    records,
	}
	for _, r := range records {
		t.rows = append(t.rows, []string{
			string(r.ID), r.Title, r.Company, r.Location,
			string(r.EffectiveStatus()), r.DateApplied, r.URL,
		})
	}
	return t
}

func exportSaved(ctx context.Context) (*exportTable, error) {
	a, err := requireApp(ctx)
	if err != nil {
		return nil, err
	}
	records, err := a.Client().ListSavedJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list saved jobs: %w", err)
	}
	return savedTable(records), nil
}

func savedTable(records []models.SavedJobRecord) *exportTable {
	t := &exportTable{
		title:   "Saved Jobs",
		headers: []string{"ID", "Title", "Company", "Location", "Saved", "URL"},
		data:    records,
	}
	for _, r := range records {
		t.rows = append(t.rows, []string{
			string(r.ID), r.Title, r.Company, r.Location, r.DateSaved, r.URL,
		})
	}
	return t
}

// exportSessions reads local history only, so it works without a backend.
func exportSessions(ctx context.Context) (*exportTable, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	history, err := s.ListSessionHistory(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list session history: %w", err)
	}
	return sessionsTable(history), nil
}

func sessionsTable(history []*models.SessionRecord) *exportTable {
	t := &exportTable{
		title:   "Sessions",
		headers: []string{"ID", "Mode", "Viewed", "Applied", "Saved", "Errors", "Started", "Ended"},
		data:    history,
	}
	for _, r := range history {
		ended := ""
		if r.EndedAt != nil {
			ended = r.EndedAt.UTC().Format(time.RFC3339)
		}
		t.rows = append(t.rows, []string{
			r.ID, string(r.AutomationMode),
			strconv.Itoa(r.Stats.JobsViewed), strconv.Itoa(r.Stats.JobsApplied),
			strconv.Itoa(r.Stats.JobsSaved), strconv.Itoa(r.Stats.Errors),
			r.StartedAt.UTC().Format(time.RFC3339), ended,
		})
	}
	return t
}

func writeExport(t *exportTable, format string) error {
	switch format {
	case "json":
		return printJSON(t.data)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write(t.headers)
		for _, row := range t.rows {
			_ = w.Write(row)
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# %s\n\n", t.title)
		fmt.Fprintf(ui.Out, "| %s |\n", strings.Join(t.headers, " | "))
		seps := make([]string, len(t.headers))
		for i, h := range t.headers {
			seps[i] = strings.Repeat("-", max(len(h), 3))
		}
		fmt.Fprintf(ui.Out, "|%s|\n", "-"+strings.Join(seps, "-|-")+"-")
		for _, row := range t.rows {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = strings.ReplaceAll(c, "|", `\|`)
			}
			fmt.Fprintf(ui.Out, "| %s |\n", strings.Join(cells, " | "))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
