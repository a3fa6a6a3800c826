package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/jobdash/internal/activity"
	"github.com/joescharf/jobdash/internal/analytics"
	"github.com/joescharf/jobdash/internal/automation"
	"github.com/joescharf/jobdash/internal/backend"
	"github.com/joescharf/jobdash/internal/checklist"
	"github.com/joescharf/jobdash/internal/dashboard"
	"github.com/joescharf/jobdash/internal/discovery"
	"github.com/joescharf/jobdash/internal/session"
	"github.com/joescharf/jobdash/internal/store"
)

// Config holds everything the app needs; nothing is read from globals.
type Config struct {
	Host         string
	PortStart    int
	PortEnd      int
	ProbeTimeout time.Duration
	// BaseURL skips discovery when set.
	BaseURL      string
	Token        string
	PollInterval time.Duration
	Activity     activity.Options
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	d := discovery.DefaultOptions()
	return Config{
		Host:         d.Host,
		PortStart:    d.PortStart,
		PortEnd:      d.PortEnd,
		ProbeTimeout: d.ProbeTimeout,
		PollInterval: automation.DefaultInterval,
		Activity:     activity.DefaultOptions(),
	}
}

// App is the client-side state for one storage context.
type App struct {
	cfg    Config
	store  store.Store
	logger *slog.Logger
	engine *analytics.Engine

	mu         sync.RWMutex
	client     *backend.Client
	connErr    error
	sessions   *session.Manager
	automation *automation.Controller
}

// New creates a disconnected App. Call Connect to locate the backend.
func New(cfg Config, s store.Store) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	a := &App{
		cfg:     cfg,
		store:   s,
		logger:  cfg.Logger,
		engine:  analytics.NewEngineAt(cfg.Now),
		connErr: discovery.ErrNoBackend,
	}
	a.rebuild(nil)
	return a
}

// Connect locates the backend. A failure leaves the app usable in
// disconnected mode and is returned for display only.
func (a *App) Connect(ctx context.Context) error {
	baseURL := strings.TrimSpace(a.cfg.BaseURL)
	if baseURL == "" {
		res, err := discovery.Discover(ctx, discovery.Options{
			Host:         a.cfg.Host,
			PortStart:    a.cfg.PortStart,
			PortEnd:      a.cfg.PortEnd,
			ProbeTimeout: a.cfg.ProbeTimeout,
			HTTPClient:   a.cfg.HTTPClient,
			Logger:       a.logger,
		})
		if err != nil {
			a.mu.Lock()
			a.connErr = err
			a.mu.Unlock()
			return err
		}
		baseURL = res.BaseURL
	}

	opts := []backend.Option{backend.WithToken(a.token(ctx))}
	if a.cfg.HTTPClient != nil {
		opts = append(opts, backend.WithHTTPClient(a.cfg.HTTPClient))
	}
	a.rebuild(backend.New(baseURL, opts...))
	a.logger.Info("connected to backend", "url", baseURL)
	return nil
}

// token prefers the configured token over the stored one.
func (a *App) token(ctx context.Context) string {
	if t := strings.TrimSpace(a.cfg.Token); t != "" {
		return t
	}
	t, err := a.store.Get(ctx, store.KeyAPIToken)
	if err != nil {
		return ""
	}
	return t
}

func (a *App) rebuild(c *backend.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.client = c
	// Typed nils must not leak into the interfaces below.
	var sb session.Backend
	var ab automation.Backend
	if c != nil {
		sb, ab = c, c
		a.connErr = nil
	}
	a.sessions = session.NewManager(a.store, sb, session.WithLogger(a.logger), session.WithClock(a.cfg.Now))
	a.automation = automation.NewController(ab,
		automation.WithGate(a.Checklist),
		automation.WithClock(a.cfg.Now),
		automation.WithLogger(a.logger),
	)
}

// Connected reports whether a backend was found.
func (a *App) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client != nil
}

// ConnectError returns why the app is disconnected, or nil.
func (a *App) ConnectError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connErr
}

// Client returns the backend client, or nil while disconnected.
func (a *App) Client() *backend.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// BaseURL returns the backend URL, or "" while disconnected.
func (a *App) BaseURL() string {
	if c := a.Client(); c != nil {
		return c.BaseURL()
	}
	return ""
}

// Store returns the client storage.
func (a *App) Store() store.Store { return a.store }

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessions
}

// Automation returns the automation controller.
func (a *App) Automation() *automation.Controller {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.automation
}

// Poller returns a status poller for the automation controller.
func (a *App) Poller() *automation.Poller {
	return &automation.Poller{
		Controller: a.Automation(),
		Interval:   a.cfg.PollInterval,
		Logger:     a.logger,
	}
}

// Engine returns the analytics engine.
func (a *App) Engine() *analytics.Engine { return a.engine }

// Checklist evaluates the setup checklist.
func (a *App) Checklist(ctx context.Context) *checklist.Checklist {
	checks := checklist.LocalChecks(a.store)
	if c := a.Client(); c != nil {
		checks[checklist.IDBackend] = checklist.Reachable(c.Health)
		checks[checklist.IDCredentials] = c.CredentialsConfigured
	}
	return checklist.Evaluate(ctx, checks)
}

// Dashboard loads the dashboard view for window.
func (a *App) Dashboard(ctx context.Context, w analytics.Window) *dashboard.View {
	opts := dashboard.Options{Window: w, Activity: a.cfg.Activity, Engine: a.engine}
	c := a.Client()
	if c == nil {
		return dashboard.Disconnected(opts)
	}
	return dashboard.Load(ctx, c, c.BaseURL(), opts)
}

// Analytics computes the analytics snapshot for window from the backend's
// applied jobs.
func (a *App) Analytics(ctx context.Context, w analytics.Window) (*analytics.Snapshot, error) {
	c := a.Client()
	if c == nil {
		return a.engine.Compute(nil, w), nil
	}
	records, err := c.ListAppliedJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applied jobs: %w", err)
	}
	return a.engine.Compute(records, w), nil
}

// ErrDisconnected is returned by operations that need a backend.
var ErrDisconnected = errors.New("not connected to a backend")

// RequireClient returns the backend client or ErrDisconnected.
func (a *App) RequireClient() (*backend.Client, error) {
	c := a.Client()
	if c == nil {
		return nil, ErrDisconnected
	}
	return c, nil
}

// Shutdown ends the active session, mirroring a page unload.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Sessions().End(ctx)
}
