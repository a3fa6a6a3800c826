package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/output"
)

var applicationsStatus string

var applicationsCmd = &cobra.Command{
	Use:     "applications",
	Aliases: []string{"apps", "applied"},
	Short:   "List applied jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return applicationsRun(cmd.Context())
	},
}

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List saved jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return savedRun(cmd.Context())
	},
}

func init() {
	applicationsCmd.Flags().StringVarP(&applicationsStatus, "status", "s", "", "Filter by status (applied, under_review, interview, offer, rejected, withdrawn)")
	rootCmd.AddCommand(applicationsCmd)
	rootCmd.AddCommand(savedCmd)
}

// filterByStatus keeps records whose effective status matches status.
// An empty status keeps everything.
func filterByStatus(records []models.ApplicationRecord, status string) ([]models.ApplicationRecord, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return records, nil
	}
	known := false
	for _, s := range models.ApplicationStatuses {
		if string(s) == status {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown status: %s", status)
	}
	out := make([]models.ApplicationRecord, 0, len(records))
	for _, r := range records {
		if string(r.EffectiveStatus()) == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func applicationsRun(ctx context.Context) error {
	a, err := requireApp(ctx)
	if err != nil {
		return err
	}
	records, err := a.Client().ListAppliedJobs(ctx)
	if err != nil {
		return fmt.Errorf("list applied jobs: %w", err)
	}
	records, err = filterByStatus(records, applicationsStatus)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(records)
	}
	if len(records) == 0 {
		ui.Info("No applications found")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Company", "Location", "Status", "Applied"})
	for _, r := range records {
		status := string(r.EffectiveStatus())
		_ = table.Append([]string{
			string(r.ID),
			truncate(r.Title, 40),
			truncate(r.Company, 24),
			truncate(r.Location, 20),
			output.ApplicationStatusColor(status),
			formatDate(r.DateApplied),
		})
	}
	_ = table.Render()
	return nil
}

func savedRun(ctx context.Context) error {
	a, err := requireApp(ctx)
	if err != nil {
		return err
	}
	records, err := a.Client().ListSavedJobs(ctx)
	if err != nil {
		return fmt.Errorf("list saved jobs: %w", err)
	}
	if asJSON {
		return printJSON(records)
	}
	if len(records) == 0 {
		ui.Info("No saved jobs")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Company", "Location", "Saved"})
	for _, r := range records {
		_ = table.Append([]string{
			string(r.ID),
			truncate(r.Title, 40),
			truncate(r.Company, 24),
			truncate(r.Location, 20),
			formatDate(r.DateSaved),
		})
	}
	_ = table.Render()
	return nil
}

// formatDate renders a backend timestamp as a date, or the raw text when
// it cannot be parsed.
func formatDate(raw string) string {
	t, ok := models.ParseTime(raw)
	if !ok {
		return raw
	}
	return t.Local().Format("2006-01-02")
}
