package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/jobdash/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client read the dashboard and control automation.
Configure it with:

  {
    "mcpServers": {
      "jobdash": { "command": "jobdash", "args": ["mcp"] }
    }
  }

Available tools: jobdash_dashboard, jobdash_analytics, jobdash_activity,
jobdash_applications, jobdash_checklist, jobdash_automation_status,
jobdash_automation_control`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		// stdout carries the protocol.
		ui.Out = os.Stderr
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		return mcp.NewServer(a, buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
