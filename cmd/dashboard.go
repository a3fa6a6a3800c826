package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/jobdash/internal/analytics"
	"github.com/joescharf/jobdash/internal/checklist"
	"github.com/joescharf/jobdash/internal/dashboard"
	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/output"
)

var windowArg string

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Show the job-hunting dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboardRun(cmd.Context())
	},
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show application analytics for a time window",
	Long: `Show application analytics computed from the backend's applied jobs.

The window is a number of days (7, 30, 90, 365) or "all".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyticsRun(cmd.Context())
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent applied and saved jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return activityRun(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&windowArg, "window", "w", "", "Analytics window in days or \"all\" (default from config)")
	dashboardCmd.Flags().StringVarP(&windowArg, "window", "w", "", "Analytics window in days or \"all\" (default from config)")
	analyticsCmd.Flags().StringVarP(&windowArg, "window", "w", "", "Analytics window in days or \"all\" (default from config)")

	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(activityCmd)
}

// resolveWindow returns the --window flag, falling back to dashboard.window.
func resolveWindow() (analytics.Window, error) {
	raw := windowArg
	if raw == "" {
		raw = viper.GetString("dashboard.window")
	}
	return analytics.ParseWindow(raw)
}

func printJSON(v any) error {
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dashboardRun(ctx context.Context) error {
	w, err := resolveWindow()
	if err != nil {
		return err
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	view := a.Dashboard(ctx, w)
	if asJSON {
		return printJSON(view)
	}

	renderConnection(view)
	renderChecklistSummary(a.Checklist(ctx))
	renderWidgetErrors(view)
	renderSnapshot(view.Analytics)
	renderActivity(view.Activity)
	return nil
}

func renderConnection(view *dashboard.View) {
	ui.Heading("Backend")
	if view.Connected {
		ui.Field("Status", output.Green("connected"))
		ui.Field("URL", view.BaseURL)
	} else {
		ui.Field("Status", output.Red("disconnected"))
	}
	ui.Field("Applied", len(view.Applied))
	ui.Field("Saved", len(view.Saved))
}

func renderChecklistSummary(cl *checklist.Checklist) {
	done, total := cl.Progress()
	ui.Field("Setup", fmt.Sprintf("%d/%d complete", done, total))
	for _, item := range cl.Blockers() {
		ui.Warning("Automation blocked: %s (%s)", item.Title, item.Action)
	}
}

func renderWidgetErrors(view *dashboard.View) {
	for _, key := range []string{dashboard.WidgetApplied, dashboard.WidgetSaved, dashboard.WidgetAnalytics} {
		if msg, ok := view.Errors[key]; ok {
			ui.Warning("%s: %s", key, msg)
		}
	}
}

func renderSnapshot(snap *analytics.Snapshot) {
	if snap == nil {
		return
	}
	title := "Analytics (all time)"
	if snap.Window != "all" {
		title = fmt.Sprintf("Analytics (last %s days)", snap.Window)
	}
	ui.Heading(title)
	ui.Field("Applications", snap.Total)
	ui.Field("Success rate", output.RateColor(snap.SuccessRate))
	ui.Field("Response rate", output.RateColor(snap.ResponseRate))
	ui.Field("Per day", fmt.Sprintf("%.1f", snap.AverageApplicationsPerDay))
	if snap.Total == 0 {
		return
	}

	ui.Heading("By status")
	renderCounts(snap.StatusBreakdown(), true)

	ui.Heading("Top companies")
	renderCounts(snap.TopCompanies(5), false)

	ui.Heading("Monthly")
	renderCounts(snap.MonthlyTrend(), false)
}

func renderCounts(counts []analytics.Count, colorStatus bool) {
	maxN := 0
	for _, c := range counts {
		maxN = max(maxN, c.Count)
	}
	table := ui.Table([]string{"", "Count", ""})
	for _, c := range counts {
		label := c.Label
		if colorStatus {
			label = output.ApplicationStatusColor(label)
		}
		_ = table.Append([]string{label, strconv.Itoa(c.Count), output.Bar(c.Count, maxN, 30)})
	}
	_ = table.Render()
}

func renderActivity(entries []models.ActivityEntry) {
	ui.Heading("Recent activity")
	if len(entries) == 0 {
		fmt.Fprintln(ui.Out, output.Faint("  No recent activity"))
		return
	}
	table := ui.Table([]string{"When", "Title", "Company", "Status"})
	for _, e := range entries {
		_ = table.Append([]string{
			formatWhen(e.Time),
			e.Title,
			e.Company,
			output.ApplicationStatusColor(e.Status),
		})
	}
	_ = table.Render()
}

// formatWhen renders a timestamp relative to now; zero times show "?".
func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "?"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}

func analyticsRun(ctx context.Context) error {
	w, err := resolveWindow()
	if err != nil {
		return err
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	snap, err := a.Analytics(ctx, w)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(snap)
	}
	renderSnapshot(snap)

	if snap.Total > 0 {
		ui.Heading("Top locations")
		renderCounts(snap.TopLocations(5), false)
	}
	return nil
}

func activityRun(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	view := a.Dashboard(ctx, analytics.AllTime)
	if asJSON {
		return printJSON(view.Activity)
	}
	renderWidgetErrors(view)
	renderActivity(view.Activity)
	return nil
}

// truncate shortens s to n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
