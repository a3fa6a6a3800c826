package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/jobdash/internal/checklist"
	"github.com/joescharf/jobdash/internal/output"
	"github.com/joescharf/jobdash/internal/store"
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Show the setup checklist that gates automation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checklistRun(cmd.Context())
	},
}

var checklistDoneCmd = &cobra.Command{
	Use:       "done <item>",
	Short:     "Mark a manual checklist item complete (resume, preferences)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{checklist.IDResume, checklist.IDPreferences},
	RunE: func(cmd *cobra.Command, args []string) error {
		return checklistSetRun(cmd.Context(), args[0], true)
	},
}

var checklistUndoCmd = &cobra.Command{
	Use:       "undo <item>",
	Short:     "Mark a manual checklist item incomplete",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{checklist.IDResume, checklist.IDPreferences},
	RunE: func(cmd *cobra.Command, args []string) error {
		return checklistSetRun(cmd.Context(), args[0], false)
	},
}

var onboardingCmd = &cobra.Command{
	Use:   "onboarding",
	Short: "Manage the onboarding flag",
}

var onboardingCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Record that onboarding is finished",
	RunE: func(cmd *cobra.Command, args []string) error {
		return onboardingSetRun(cmd.Context(), true)
	},
}

var onboardingResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the onboarding flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		return onboardingSetRun(cmd.Context(), false)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the stored backend API token",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Store the API token sent as a bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tokenSetRun(cmd.Context(), args[0])
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tokenSetRun(cmd.Context(), "")
	},
}

func init() {
	checklistCmd.AddCommand(checklistDoneCmd)
	checklistCmd.AddCommand(checklistUndoCmd)
	rootCmd.AddCommand(checklistCmd)

	onboardingCmd.AddCommand(onboardingCompleteCmd)
	onboardingCmd.AddCommand(onboardingResetCmd)
	rootCmd.AddCommand(onboardingCmd)

	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	rootCmd.AddCommand(tokenCmd)
}

func checklistRun(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	cl := a.Checklist(ctx)
	if asJSON {
		return printJSON(cl)
	}

	table := ui.Table([]string{"", "Item", "Priority", "Required", "Next step"})
	for _, item := range cl.Items {
		required := ""
		if item.Required {
			required = "yes"
		}
		next := ""
		if !item.Completed {
			next = item.Action
			if item.Link != "" {
				next += output.Faint(" (" + item.Link + ")")
			}
		}
		_ = table.Append([]string{
			output.Check(item.Completed),
			item.Title,
			output.PriorityColor(string(item.Priority)),
			required,
			next,
		})
	}
	_ = table.Render()

	for id, msg := range cl.Errors {
		ui.Warning("%s check failed: %s", id, msg)
	}
	done, total := cl.Progress()
	fmt.Fprintln(ui.Out)
	if cl.Blocked() {
		ui.Warning("%d/%d complete; automation is blocked", done, total)
	} else {
		ui.Success("%d/%d complete; automation can start", done, total)
	}
	return nil
}

func checklistSetRun(ctx context.Context, id string, done bool) error {
	id = strings.ToLower(strings.TrimSpace(id))
	if !checklist.Manual(id) {
		return fmt.Errorf("checklist item %q cannot be set manually (use: %s, %s)", id, checklist.IDResume, checklist.IDPreferences)
	}
	if dryRun {
		ui.DryRunMsg("Would mark %s as %s", id, doneWord(done))
		return nil
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	if err := checklist.SetManual(ctx, s, id, done); err != nil {
		return err
	}
	ui.Success("Marked %s as %s", id, doneWord(done))
	return nil
}

func onboardingSetRun(ctx context.Context, done bool) error {
	if dryRun {
		ui.DryRunMsg("Would mark onboarding as %s", doneWord(done))
		return nil
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	if err := store.SetBool(ctx, s, store.KeyOnboardingCompleted, done); err != nil {
		return fmt.Errorf("save onboarding flag: %w", err)
	}
	ui.Success("Marked onboarding as %s", doneWord(done))
	return nil
}

func tokenSetRun(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if dryRun {
		if token == "" {
			ui.DryRunMsg("Would remove the stored API token")
		} else {
			ui.DryRunMsg("Would store API token %s", maskSecret(token))
		}
		return nil
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	if token == "" {
		if err := s.Delete(ctx, store.KeyAPIToken); err != nil {
			return fmt.Errorf("remove token: %w", err)
		}
		ui.Success("API token removed")
		return nil
	}
	if err := s.Set(ctx, store.KeyAPIToken, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	ui.Success("API token stored (%s)", maskSecret(token))
	return nil
}

func doneWord(done bool) string {
	if done {
		return "complete"
	}
	return "incomplete"
}
