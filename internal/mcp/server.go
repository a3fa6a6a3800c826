package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/jobdash/internal/analytics"
	"github.com/joescharf/jobdash/internal/app"
	"github.com/joescharf/jobdash/internal/automation"
	"github.com/joescharf/jobdash/internal/backend"
	"github.com/joescharf/jobdash/internal/models"
)

// Server wraps the app and exposes it as MCP tools.
type Server struct {
	app     *app.App
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(a *app.App, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{app: a, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("jobdash", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.dashboardTool())
	srv.AddTool(s.analyticsTool())
	srv.AddTool(s.activityTool())
	srv.AddTool(s.applicationsTool())
	srv.AddTool(s.checklistTool())
	srv.AddTool(s.automationStatusTool())
	srv.AddTool(s.automationControlTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func windowArg(request mcp.CallToolRequest) (analytics.Window, error) {
	return analytics.ParseWindow(request.GetString("window", "30"))
}

var windowDescription = mcp.Description(`Time window in days ("7", "30", "90", "365") or "all". Default "30".`)

// ---------------------------------------------------------------------------
// Dashboard, analytics, activity
// ---------------------------------------------------------------------------

// jobdash_dashboard
func (s *Server) dashboardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jobdash_dashboard",
		mcp.WithDescription("Full dashboard: connection state, applied and saved jobs, recent activity, analytics and per-widget errors."),
		mcp.WithString("window", windowDescription),
	)
	return tool, s.handleDashboard
}

func (s *Server) handleDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	win, err := windowArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.app.Dashboard(ctx, win))
}

// jobdash_analytics
func (s *Server) analyticsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jobdash_analytics",
		mcp.WithDescription("Application analytics for a time window: totals, status/company/location counts, monthly trend, success and response rates, average per day."),
		mcp.WithString("window", windowDescription),
	)
	return tool, s.handleAnalytics
}

func (s *Server) handleAnalytics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	win, err := windowArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.app.Analytics(ctx, win)
	if err != nil {
		return mcp.NewToolResultError(backend.UserMessage(err)), nil
	}
	return jsonResult(map[string]any{
		"snapshot":      snap,
		"monthly":       snap.MonthlyTrend(),
		"top_companies": snap.TopCompanies(5),
		"top_locations": snap.TopLocations(5),
	})
}

// jobdash_activity
func (s *Server) activityTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jobdash_activity",
		mcp.WithDescription("Recent activity feed merging applied and saved jobs, newest first."),
	)
	return tool, s.handleActivity
}

func (s *Server) handleActivity(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := s.app.Dashboard(ctx, analytics.AllTime)
	return jsonResult(map[string]any{
		"connected": view.Connected,
		"activity":  view.Activity,
		"errors":    view.Errors,
	})
}

// jobdash_applications
func (s *Server) applicationsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jobdash_applications",
		mcp.WithDescription("List job applications, optionally filtered by status."),
		mcp.WithString("status",
			mcp.Description("Filter by status"),
			mcp.Enum("applied", "under_review", "interview", "offer", "rejected", "withdrawn"),
		),
	)
	return tool, s.handleApplications
}

func (s *Server) handleApplications(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := s.app.RequireClient()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := c.ListAppliedJobs(ctx)
	if err != nil {
		return mcp.NewToolResultError(backend.UserMessage(err)), nil
	}

	status := models.ApplicationStatus(strings.ToLower(request.GetString("status", "")))
	out := make([]models.ApplicationRecord, 0, len(records))
	for _, r := range records {
		if status == "" || r.EffectiveStatus() == status {
			out = append(out, r)
		}
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Checklist and automation
// ---------------------------------------------------------------------------

// jobdash_checklist
func (s *Server) checklistTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jobdash_checklist",
		mcp.WithDescription("Setup checklist with completion state. Automation cannot start while a required critical item is incomplete."),
	)
	return tool, s.handleChecklist
}

func (s *Server) handleChecklist(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cl := s.app.Checklist(ctx)
	return jsonResult(map[string]any{
		"items":    cl.Items,
		"errors":   cl.Errors,
		"blocked":  cl.Blocked(),
		"blockers": cl.Blockers(),
	})
}

// jobdash_automation_status
func (s *Server) automationStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jobdash_automation_status",
		mcp.WithDescription("Current automation engine status (idle, running, paused, error) and counters, fetched from the backend."),
	)
	return tool, s.handleAutomationStatus
}

func (s *Server) handleAutomationStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.app.Automation().Refresh(ctx)
	if err != nil && errors.Is(err, automation.ErrDisconnected) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// A failed poll still returns the last known state with poll_error set.
	return jsonResult(st)
}

// jobdash_automation_control
func (s *Server) automationControlTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jobdash_automation_control",
		mcp.WithDescription("Start, pause, stop or reset the automation engine. Start is refused while the setup checklist has blockers."),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Action to perform"),
			mcp.Enum("start", "pause", "stop", "reset"),
		),
	)
	return tool, s.handleAutomationControl
}

func (s *Server) handleAutomationControl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: action"), nil
	}
	action, err := automation.ParseAction(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := s.app.Automation().Do(ctx, action)
	if err != nil {
		msg := err.Error()
		if !errors.Is(err, automation.ErrBlocked) && !errors.Is(err, automation.ErrInvalidTransition) &&
			!errors.Is(err, automation.ErrDisconnected) {
			msg = fmt.Sprintf("automation %s failed: %s", action, backend.UserMessage(err))
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(st)
}
