package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/jobdash/internal/app"
	"github.com/joescharf/jobdash/internal/automation"
	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/output"
)

var automationCmd = &cobra.Command{
	Use:     "automation",
	Aliases: []string{"auto"},
	Short:   "Show or control the automation engine",
	Long: `Show or control the backend automation engine.

Start is refused while a critical setup item is incomplete; see
'jobdash checklist'. Running bare 'jobdash automation' is the same as
'jobdash automation status'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return automationStatusRun(cmd.Context())
	},
}

var automationStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status and counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return automationStatusRun(cmd.Context())
	},
}

var automationWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll engine status until interrupted",
	Long: `Poll the engine status every automation.poll_interval and print changes.

A session is started for the duration of the watch and ended on Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return automationWatchRun(cmd.Context())
	},
}

func newAutomationActionCmd(action models.AutomationAction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return automationActionRun(cmd.Context(), action)
		},
	}
}

func init() {
	automationCmd.AddCommand(automationStatusCmd)
	automationCmd.AddCommand(newAutomationActionCmd(models.AutomationActionStart, "Start or resume the engine"))
	automationCmd.AddCommand(newAutomationActionCmd(models.AutomationActionPause, "Pause the running engine"))
	automationCmd.AddCommand(newAutomationActionCmd(models.AutomationActionStop, "Stop the engine"))
	automationCmd.AddCommand(newAutomationActionCmd(models.AutomationActionReset, "Stop the engine and zero its counters"))
	automationCmd.AddCommand(automationWatchCmd)
	rootCmd.AddCommand(automationCmd)
}

func renderAutomation(st models.AutomationState) {
	ui.Field("Status", output.AutomationStatusColor(string(st.Status)))
	if st.LastError != "" {
		ui.Field("Last error", output.Red(st.LastError))
	}
	if st.PollError != "" {
		ui.Field("Poll error", output.Yellow(st.PollError))
	}
	ui.Field("Jobs found", st.Stats.JobsFound)
	ui.Field("Jobs applied", st.Stats.JobsApplied)
	ui.Field("Jobs saved", st.Stats.JobsSaved)
	ui.Field("Connections", st.Stats.ConnectionsMade)
	ui.Field("Messages", st.Stats.MessagesSent)
	ui.Field("Interviews", st.Stats.InterviewsScheduled)
	lastRun := "never"
	if st.Stats.LastRun != nil {
		lastRun = st.Stats.LastRun.Local().Format(time.DateTime)
	}
	ui.Field("Last run", lastRun)
}

func automationStatusRun(ctx context.Context) error {
	a, err := requireApp(ctx)
	if err != nil {
		return err
	}
	st, err := a.Automation().Refresh(ctx)
	if err != nil {
		ui.Warning("Status unavailable: %v", err)
	}
	if asJSON {
		return printJSON(st)
	}
	renderAutomation(st)
	return nil
}

func automationActionRun(ctx context.Context, action models.AutomationAction) error {
	a, err := requireApp(ctx)
	if err != nil {
		return err
	}

	// Each process starts idle locally; load the engine's real status first
	// so the transition check sees it.
	ctl := a.Automation()
	st, err := ctl.Refresh(ctx)
	if err != nil {
		ui.VerboseLog("status refresh failed: %v", err)
	}
	if !automation.Allowed(st.Status, action) {
		return fmt.Errorf("%w: cannot %s while %s", automation.ErrInvalidTransition, action, st.Status)
	}

	if dryRun {
		ui.DryRunMsg("Would send %s to the automation engine (currently %s)", action, st.Status)
		return nil
	}

	st, err = ctl.Do(ctx, action)
	if err != nil {
		if errors.Is(err, automation.ErrBlocked) {
			ui.Error("Automation is blocked by the setup checklist")
			renderBlockers(a)
		}
		return err
	}
	if asJSON {
		return printJSON(st)
	}
	ui.Success("Automation %s", output.AutomationStatusColor(string(st.Status)))
	return nil
}

func renderBlockers(a *app.App) {
	cl := a.Checklist(context.Background())
	for _, item := range cl.Blockers() {
		fmt.Fprintf(ui.ErrOut, "  %s %s: %s\n", output.Check(false), item.Title, item.Action)
	}
}

func automationWatchRun(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	a, err := requireApp(ctx)
	if err != nil {
		return err
	}
	if sess, err := a.Sessions().StartOrResume(ctx); err != nil {
		ui.Warning("Session not started: %v", err)
	} else {
		ui.VerboseLog("Session %s", sess.ID)
	}

	var last models.AutomationStatus
	poller := a.Poller()
	poller.OnUpdate = func(st models.AutomationState, err error) {
		if asJSON {
			_ = printJSON(st)
			return
		}
		if err != nil {
			ui.Warning("Poll failed: %v", err)
			return
		}
		if st.Status == last {
			ui.VerboseLog("%s  applied=%d found=%d", st.Status, st.Stats.JobsApplied, st.Stats.JobsFound)
			return
		}
		last = st.Status
		ui.Info("%s  %s  applied=%d found=%d",
			time.Now().Format(time.TimeOnly),
			output.AutomationStatusColor(string(st.Status)),
			st.Stats.JobsApplied, st.Stats.JobsFound)
	}

	ui.Info("Watching automation every %s (Ctrl-C to stop)", poller.Interval)
	h := poller.Start(ctx)
	<-ctx.Done()
	h.Stop()

	endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(endCtx); err != nil {
		ui.Warning("Session end not acknowledged: %v", err)
	}
	return nil
}
