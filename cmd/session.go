package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/output"
)

var (
	bumpViewed  int
	bumpApplied int
	bumpSaved   int
	bumpErrors  int

	historyLimit int
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the browsing session",
	Long: `Manage the browsing session shared with the backend.

The session id is kept in local storage so the next run resumes it.
Running bare 'jobdash session' is the same as 'jobdash session show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionShowRun(cmd.Context())
	},
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new session or resume the stored one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionStartRun(cmd.Context())
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored session and its counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionShowRun(cmd.Context())
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionEndRun(cmd.Context())
	},
}

var sessionBumpCmd = &cobra.Command{
	Use:   "bump",
	Short: "Add to the session counters",
	Example: `  jobdash session bump --viewed 3
  jobdash session bump --applied 1 --saved 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionBumpRun(cmd.Context())
	},
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sessions recorded locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionHistoryRun(cmd.Context())
	},
}

func init() {
	sessionBumpCmd.Flags().IntVar(&bumpViewed, "viewed", 0, "Jobs viewed")
	sessionBumpCmd.Flags().IntVar(&bumpApplied, "applied", 0, "Jobs applied")
	sessionBumpCmd.Flags().IntVar(&bumpSaved, "saved", 0, "Jobs saved")
	sessionBumpCmd.Flags().IntVar(&bumpErrors, "errors", 0, "Errors")
	sessionHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum sessions to show (0 for all)")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionBumpCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)
	rootCmd.AddCommand(sessionCmd)
}

func renderSession(sess models.Session) {
	ui.Field("Session", output.Cyan(sess.ID))
	ui.Field("Mode", sess.AutomationMode)
	if !sess.StartedAt.IsZero() {
		ui.Field("Started", sess.StartedAt.Local().Format(time.DateTime))
	}
	ui.Field("Viewed", sess.Stats.JobsViewed)
	ui.Field("Applied", sess.Stats.JobsApplied)
	ui.Field("Saved", sess.Stats.JobsSaved)
	ui.Field("Errors", sess.Stats.Errors)
}

func sessionStartRun(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	if dryRun {
		if id, ok := a.Sessions().PersistedID(ctx); ok {
			ui.DryRunMsg("Would resume session %s", id)
		} else {
			ui.DryRunMsg("Would start a new session")
		}
		return nil
	}

	sess, err := a.Sessions().StartOrResume(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(sess)
	}
	if sess.Resumed {
		ui.Success("Resumed session %s", sess.ID)
	} else {
		ui.Success("Started session %s", sess.ID)
	}
	renderSession(sess)
	return nil
}

func sessionShowRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	// Reading needs no backend, so skip discovery.
	a := newOfflineApp(s)
	sess, ok := a.Sessions().Peek(ctx)
	if asJSON {
		if !ok {
			return printJSON(nil)
		}
		return printJSON(sess)
	}
	if !ok {
		ui.Info("No active session")
		return nil
	}
	renderSession(sess)
	return nil
}

func sessionEndRun(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	id, ok := a.Sessions().PersistedID(ctx)
	if !ok {
		ui.Info("No active session")
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would end session %s", id)
		return nil
	}

	// Activate the stored session so End has something to close.
	if _, err := a.Sessions().StartOrResume(ctx); err != nil {
		return err
	}
	if err := a.Shutdown(ctx); err != nil {
		ui.Warning("Backend did not acknowledge: %v", err)
	}
	ui.Success("Ended session %s", id)
	return nil
}

func sessionBumpRun(ctx context.Context) error {
	if bumpViewed == 0 && bumpApplied == 0 && bumpSaved == 0 && bumpErrors == 0 {
		return fmt.Errorf("nothing to bump: pass at least one of --viewed, --applied, --saved, --errors")
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	var sess models.Session
	if dryRun {
		sess, _ = a.Sessions().Peek(ctx)
	} else if sess, err = a.Sessions().StartOrResume(ctx); err != nil {
		return err
	}

	cur := sess.Stats
	update := models.SessionStatsUpdate{}
	if bumpViewed != 0 {
		update.JobsViewed = intPtr(cur.JobsViewed + bumpViewed)
	}
	if bumpApplied != 0 {
		update.JobsApplied = intPtr(cur.JobsApplied + bumpApplied)
	}
	if bumpSaved != 0 {
		update.JobsSaved = intPtr(cur.JobsSaved + bumpSaved)
	}
	if bumpErrors != 0 {
		update.Errors = intPtr(cur.Errors + bumpErrors)
	}

	if dryRun {
		ui.DryRunMsg("Would update session %q to %+v", sess.ID, cur.Merge(update))
		return nil
	}

	stats, err := a.Sessions().UpdateStats(ctx, update)
	if err != nil {
		return err
	}
	// The push runs in the background; wait so it is not lost on exit.
	a.Sessions().Flush()

	if asJSON {
		return printJSON(stats)
	}
	sess.Stats = stats
	ui.Success("Updated session %s", sess.ID)
	renderSession(sess)
	return nil
}

func sessionHistoryRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	history, err := s.ListSessionHistory(ctx, historyLimit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(history)
	}
	if len(history) == 0 {
		ui.Info("No sessions recorded")
		return nil
	}

	table := ui.Table([]string{"ID", "Started", "Duration", "Viewed", "Applied", "Saved", "Errors"})
	for _, r := range history {
		duration := output.Green("active")
		if r.EndedAt != nil {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_ = table.Append([]string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			duration,
			strconv.Itoa(r.Stats.JobsViewed),
			strconv.Itoa(r.Stats.JobsApplied),
			strconv.Itoa(r.Stats.JobsSaved),
			strconv.Itoa(r.Stats.Errors),
		})
	}
	_ = table.Render()
	return nil
}

func intPtr(n int) *int { return &n }
