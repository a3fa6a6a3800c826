package cmd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/jobdash/internal/automation"
	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/store"
)

// fakeBackend is a minimal stand-in for the job-hunting backend.
type fakeBackend struct {
	mu       sync.Mutex
	status   string
	actions  []string
	sessions []string
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/get_credentials", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"configured": true})
	})
	mux.HandleFunc("GET /api/list_applied_jobs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"applied_jobs":[
			{"id":1,"title":"SRE","company":"Acme","location":"Remote","status":"interview","date_applied":"2025-06-08T10:00:00"},
			{"id":2,"title":"Go Dev","company":"Globex","date_applied":"2025-06-01"}]}`))
	})
	mux.HandleFunc("GET /api/list_saved_jobs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"saved_jobs":[{"id":"s1","title":"Platform","company":"Initech","date_saved":"2025-06-09"}]}`))
	})
	mux.HandleFunc("GET /api/application_analytics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":2}`))
	})
	mux.HandleFunc("GET /api/automation/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"status": f.status, "stats": map[string]int{"jobsApplied": 4}})
	})
	mux.HandleFunc("POST /api/automation/{action}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.actions = append(f.actions, r.PathValue("action"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/session/{op}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sessions = append(f.sessions, r.PathValue("op"))
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (f *fakeBackend) calls() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...), append([]string(nil), f.sessions...)
}

// withBackend starts a fake backend and points the config at it.
func withBackend(t *testing.T, status string) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{status: status}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)
	viper.Set("api.base_url", srv.URL)
	return fb
}

// withoutBackend points discovery at a port range with nothing listening.
func withoutBackend(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	port := srv.Listener.Addr().(*net.TCPAddr).Port
	srv.Close()
	viper.Set("api.host", "127.0.0.1")
	viper.Set("api.port_start", port)
	viper.Set("api.port_end", port)
	viper.Set("api.probe_timeout", 200*time.Millisecond)
}

func TestDashboardRun_JSON(t *testing.T) {
	testEnv(t)
	withBackend(t, "idle")
	asJSON = true
	windowArg = "all"
	t.Cleanup(func() { windowArg = "" })

	require.NoError(t, dashboardRun(context.Background()))

	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(outString(t)), &view))
	assert.Equal(t, true, view["connected"])
	assert.Len(t, view["applied"], 2)
	assert.Len(t, view["saved"], 1)
	analytics := view["analytics"].(map[string]any)
	assert.EqualValues(t, 2, analytics["total"])
}

func TestDashboardRun_Disconnected(t *testing.T) {
	testEnv(t)
	withoutBackend(t)

	require.NoError(t, dashboardRun(context.Background()))
	out := outString(t)
	assert.Contains(t, out, "disconnected")
	assert.Contains(t, out, "No recent activity")
}

func TestResolveWindow(t *testing.T) {
	testEnv(t)
	t.Cleanup(func() { windowArg = "" })

	w, err := resolveWindow()
	require.NoError(t, err)
	assert.Equal(t, "30", w.String())

	windowArg = "all"
	w, err = resolveWindow()
	require.NoError(t, err)
	assert.True(t, w.IsAll())

	windowArg = "-3"
	_, err = resolveWindow()
	assert.Error(t, err)
}

func TestFilterByStatus(t *testing.T) {
	records := []models.ApplicationRecord{
		{ID: "1", Status: models.ApplicationStatusInterview},
		{ID: "2"},
		{ID: "3", Status: models.ApplicationStatusApplied},
	}

	got, err := filterByStatus(records, "applied")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.RecordID("2"), got[0].ID)

	got, err = filterByStatus(records, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = filterByStatus(records, "ghosted")
	assert.Error(t, err)
}

func TestApplicationsRun_RequiresBackend(t *testing.T) {
	testEnv(t)
	withoutBackend(t)

	err := applicationsRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestWriteExport_CSV(t *testing.T) {
	testEnv(t)
	table := appliedTable([]models.ApplicationRecord{
		{ID: "7", Title: "SRE, Platform", Company: "Acme", DateApplied: "2025-06-01"},
	})

	require.NoError(t, writeExport(table, "csv"))
	lines := strings.Split(strings.TrimSpace(outString(t)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Title,Company,Location,Status,Applied,URL", lines[0])
	assert.Equal(t, `7,"SRE, Platform",Acme,,applied,2025-06-01,`, lines[1])
}

func TestWriteExport_Markdown(t *testing.T) {
	testEnv(t)
	table := savedTable([]models.SavedJobRecord{{ID: "s1", Title: "A|B", Company: "Initech"}})

	require.NoError(t, writeExport(table, "markdown"))
	out := outString(t)
	assert.Contains(t, out, "# Saved Jobs")
	assert.Contains(t, out, "| ID | Title | Company | Location | Saved | URL |")
	assert.Contains(t, out, `A\|B`)
}

func TestExportRun_UnknownType(t *testing.T) {
	testEnv(t)
	exportType, exportFormat = "projects", "json"
	t.Cleanup(func() { exportType, exportFormat = "applied", "json" })

	err := exportRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export type")
}

func TestExportRun_SessionsOffline(t *testing.T) {
	testEnv(t)
	exportType, exportFormat = "sessions", "json"
	t.Cleanup(func() { exportType, exportFormat = "applied", "json" })

	s, err := getStore()
	require.NoError(t, err)
	require.NoError(t, s.RecordSessionStart(context.Background(), &models.SessionRecord{
		ID:             "01TEST",
		AutomationMode: models.AutomationModeManual,
		StartedAt:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, exportRun(context.Background()))
	assert.Contains(t, outString(t), `"session_id": "01TEST"`)
}

func TestSessionLifecycle(t *testing.T) {
	testEnv(t)
	fb := withBackend(t, "idle")
	ctx := context.Background()

	require.NoError(t, sessionStartRun(ctx))
	s, err := getStore()
	require.NoError(t, err)
	id, err := s.Get(ctx, store.KeySessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	bumpApplied = 2
	t.Cleanup(func() { bumpApplied = 0 })
	require.NoError(t, sessionBumpRun(ctx))

	require.NoError(t, sessionShowRun(ctx))
	assert.Contains(t, outString(t), id)

	require.NoError(t, sessionEndRun(ctx))
	_, err = s.Get(ctx, store.KeySessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, ops := fb.calls()
	assert.Contains(t, ops, "start")
	assert.Contains(t, ops, "update")
	assert.Equal(t, "end", ops[len(ops)-1])
}

func TestSessionBump_RequiresCounter(t *testing.T) {
	testEnv(t)
	err := sessionBumpRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to bump")
}

func TestAutomationAction_StartWithCriticalItemsDone(t *testing.T) {
	testEnv(t)
	fb := withBackend(t, "idle")

	// Credentials are configured but onboarding is not; only critical
	// items block, so start goes through.
	require.NoError(t, automationActionRun(context.Background(), models.AutomationActionStart))
	actions, _ := fb.calls()
	assert.Equal(t, []string{"start"}, actions)
}

func TestAutomationAction_UsesBackendStatus(t *testing.T) {
	testEnv(t)
	fb := withBackend(t, "running")

	require.NoError(t, automationActionRun(context.Background(), models.AutomationActionPause))
	actions, _ := fb.calls()
	assert.Equal(t, []string{"pause"}, actions)
}

func TestAutomationAction_InvalidTransition(t *testing.T) {
	testEnv(t)
	fb := withBackend(t, "idle")

	err := automationActionRun(context.Background(), models.AutomationActionPause)
	assert.ErrorIs(t, err, automation.ErrInvalidTransition)
	actions, _ := fb.calls()
	assert.Empty(t, actions)
}

func TestAutomationAction_DryRun(t *testing.T) {
	testEnv(t)
	fb := withBackend(t, "idle")
	dryRun, ui.DryRun = true, true
	t.Cleanup(func() { dryRun = false })

	require.NoError(t, automationActionRun(context.Background(), models.AutomationActionStart))
	actions, _ := fb.calls()
	assert.Empty(t, actions)
}

func TestChecklistSetRun(t *testing.T) {
	testEnv(t)
	ctx := context.Background()

	require.NoError(t, checklistSetRun(ctx, "Resume", true))
	s, err := getStore()
	require.NoError(t, err)
	done, err := store.GetBool(ctx, s, store.ChecklistKey("resume"))
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, checklistSetRun(ctx, "resume", false))
	done, err = store.GetBool(ctx, s, store.ChecklistKey("resume"))
	require.NoError(t, err)
	assert.False(t, done)

	assert.Error(t, checklistSetRun(ctx, "backend", true))
}

func TestChecklistRun_Disconnected(t *testing.T) {
	testEnv(t)
	withoutBackend(t)

	require.NoError(t, checklistRun(context.Background()))
	assert.Contains(t, outString(t), "critical")
}

func TestOnboardingAndToken(t *testing.T) {
	testEnv(t)
	ctx := context.Background()

	require.NoError(t, onboardingSetRun(ctx, true))
	require.NoError(t, tokenSetRun(ctx, " secret-token "))

	s, err := getStore()
	require.NoError(t, err)
	done, err := store.GetBool(ctx, s, store.KeyOnboardingCompleted)
	require.NoError(t, err)
	assert.True(t, done)
	tok, err := s.Get(ctx, store.KeyAPIToken)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", tok)
	assert.NotContains(t, outString(t), "secret-token")

	require.NoError(t, tokenSetRun(ctx, ""))
	_, err = s.Get(ctx, store.KeyAPIToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInsightsRun_NoKey(t *testing.T) {
	testEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	err := insightsRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Anthropic API key")
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "not a date", formatDate("not a date"))
	assert.Len(t, formatDate("2025-06-01T12:00:00Z"), len("2025-06-01"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
