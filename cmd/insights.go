package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/jobdash/internal/dashboard"
	"github.com/joescharf/jobdash/internal/llm"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Ask Claude for coaching notes on your application analytics",
	Long: `Send the analytics snapshot and recent activity to Claude and print a
short summary with suggestions.

Requires anthropic.api_key in config or ANTHROPIC_API_KEY in the environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return insightsRun(cmd.Context())
	},
}

func init() {
	insightsCmd.Flags().StringVarP(&windowArg, "window", "w", "", "Analytics window in days or \"all\" (default from config)")
	rootCmd.AddCommand(insightsCmd)
}

// newLLMClient creates an LLM client if an API key is available.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

func insightsRun(ctx context.Context) error {
	client := newLLMClient()
	if client == nil {
		return fmt.Errorf("no Anthropic API key: set anthropic.api_key or ANTHROPIC_API_KEY")
	}
	w, err := resolveWindow()
	if err != nil {
		return err
	}
	a, err := requireApp(ctx)
	if err != nil {
		return err
	}

	view := a.Dashboard(ctx, w)
	if msg, ok := view.Errors[dashboard.WidgetApplied]; ok {
		return fmt.Errorf("load applications: %s", msg)
	}
	if dryRun {
		ui.DryRunMsg("Would send %d applications (window %s) to %s", view.Analytics.Total, w, viper.GetString("anthropic.model"))
		return nil
	}

	ui.VerboseLog("Asking %s about %d applications", viper.GetString("anthropic.model"), view.Analytics.Total)
	out, err := client.Insights(ctx, view.Analytics, view.Activity)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out)
	}

	ui.Heading("Summary")
	fmt.Fprintf(ui.Out, "  %s\n", out.Summary)
	if len(out.Suggestions) > 0 {
		ui.Heading("Suggestions")
		for _, s := range out.Suggestions {
			fmt.Fprintf(ui.Out, "  • %s\n", s)
		}
	}
	return nil
}
