package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/jobdash/internal/backend"
	"github.com/joescharf/jobdash/internal/checklist"
	"github.com/joescharf/jobdash/internal/models"
)

var (
	// ErrBlocked is returned by Start while a critical setup item is incomplete.
	ErrBlocked = errors.New("automation blocked by setup checklist")
	// ErrInvalidTransition is returned when an action is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid automation transition")
	// ErrDisconnected is returned when no backend is available.
	ErrDisconnected = errors.New("backend not connected")
)

// Backend is the subset of the backend client used for automation.
type Backend interface {
	AutomationStatus(ctx context.Context) (models.AutomationStatus, models.AutomationStats, error)
	AutomationAction(ctx context.Context, action models.AutomationAction) error
}

// Gate evaluates the setup checklist before a start.
type Gate func(ctx context.Context) *checklist.Checklist

// Controller holds the local automation state and applies the lifecycle:
//
//	idle    --start--> running
//	paused  --start--> running
//	error   --start--> running
//	running --pause--> paused
//	running|paused --stop--> idle
//	any     --reset--> idle (stats zeroed)
//
// A rejected backend call moves the state to error.
type Controller struct {
	backend Backend
	gate    Gate
	now     func() time.Time
	logger  *slog.Logger

	// opMu serialises actions; mu guards state and gen.
	opMu  sync.Mutex
	mu    sync.Mutex
	state models.AutomationState
	// gen counts local state changes made by actions. A poll started
	// before the latest change is stale.
	gen uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithGate installs the checklist gate consulted by Start.
func WithGate(g Gate) Option {
	return func(c *Controller) { c.gate = g }
}

// WithClock overrides the clock used for lastRun and update stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a Controller in the idle state. A nil backend
// means disconnected: every action and refresh fails with ErrDisconnected.
func NewController(b Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: b,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state = models.AutomationState{Status: models.AutomationStatusIdle, UpdatedAt: c.now()}
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() models.AutomationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Allowed reports whether action is permitted from status. Start is also
// subject to the checklist gate.
func Allowed(status models.AutomationStatus, action models.AutomationAction) bool {
	switch action {
	case models.AutomationActionStart:
		return status == models.AutomationStatusIdle ||
			status == models.AutomationStatusPaused ||
			status == models.AutomationStatusError
	case models.AutomationActionPause:
		return status == models.AutomationStatusRunning
	case models.AutomationActionStop:
		return status == models.AutomationStatusRunning || status == models.AutomationStatusPaused
	case models.AutomationActionReset:
		return true
	}
	return false
}

// ParseAction validates an action name.
func ParseAction(s string) (models.AutomationAction, error) {
	a := models.AutomationAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case models.AutomationActionStart, models.AutomationActionPause,
		models.AutomationActionStop, models.AutomationActionReset:
		return a, nil
	}
	return "", fmt.Errorf("unknown automation action %q", s)
}

// Do dispatches action to the matching method.
func (c *Controller) Do(ctx context.Context, action models.AutomationAction) (models.AutomationState, error) {
	switch action {
	case models.AutomationActionStart:
		return c.Start(ctx)
	case models.AutomationActionPause:
		return c.Pause(ctx)
	case models.AutomationActionStop:
		return c.Stop(ctx)
	case models.AutomationActionReset:
		return c.Reset(ctx)
	}
	return c.State(), fmt.Errorf("unknown automation action %q", action)
}

// Start begins automation. The checklist gate is checked first; while it
// reports blockers the backend is never called and the state is unchanged.
// On success the state is running with lastRun set to the call time.
func (c *Controller) Start(ctx context.Context) (models.AutomationState, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.precheck(models.AutomationActionStart); err != nil {
		return c.State(), err
	}
	if c.gate != nil {
		if cl := c.gate(ctx); cl != nil && cl.Blocked() {
			titles := make([]string, 0, 2)
			for _, it := range cl.Blockers() {
				titles = append(titles, it.Title)
			}
			return c.State(), fmt.Errorf("%w: %s", ErrBlocked, strings.Join(titles, ", "))
		}
	}

	now := c.now()
	c.mu.Lock()
	c.gen++
	c.state.Status = models.AutomationStatusRunning
	c.state.Stats.LastRun = &now
	c.state.LastError = ""
	c.state.UpdatedAt = now
	c.mu.Unlock()

	if err := c.backend.AutomationAction(ctx, models.AutomationActionStart); err != nil {
		return c.fail(models.AutomationActionStart, err)
	}
	c.logger.Info("automation started")
	return c.State(), nil
}

// Pause pauses a running engine.
func (c *Controller) Pause(ctx context.Context) (models.AutomationState, error) {
	return c.act(ctx, models.AutomationActionPause, func(s *models.AutomationState) {
		s.Status = models.AutomationStatusPaused
	})
}

// Stop returns a running or paused engine to idle.
func (c *Controller) Stop(ctx context.Context) (models.AutomationState, error) {
	return c.act(ctx, models.AutomationActionStop, func(s *models.AutomationState) {
		s.Status = models.AutomationStatusIdle
	})
}

// Reset zeros the stats and returns to idle from any state.
func (c *Controller) Reset(ctx context.Context) (models.AutomationState, error) {
	return c.act(ctx, models.AutomationActionReset, func(s *models.AutomationState) {
		s.Status = models.AutomationStatusIdle
		s.Stats = models.AutomationStats{}
		s.LastError = ""
	})
}

func (c *Controller) act(ctx context.Context, action models.AutomationAction, apply func(*models.AutomationState)) (models.AutomationState, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.precheck(action); err != nil {
		return c.State(), err
	}
	if err := c.backend.AutomationAction(ctx, action); err != nil {
		return c.fail(action, err)
	}

	c.mu.Lock()
	c.gen++
	apply(&c.state)
	c.state.UpdatedAt = c.now()
	st := c.state
	c.mu.Unlock()

	c.logger.Info("automation action applied", "action", action, "status", st.Status)
	return st, nil
}

func (c *Controller) precheck(action models.AutomationAction) error {
	if c.backend == nil {
		return ErrDisconnected
	}
	status := c.State().Status
	if !Allowed(status, action) {
		return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, status)
	}
	return nil
}

func (c *Controller) fail(action models.AutomationAction, err error) (models.AutomationState, error) {
	c.mu.Lock()
	c.gen++
	c.state.Status = models.AutomationStatusError
	c.state.LastError = backend.UserMessage(err)
	c.state.UpdatedAt = c.now()
	st := c.state
	c.mu.Unlock()

	c.logger.Warn("automation action failed", "action", action, "error", err)
	return st, fmt.Errorf("automation %s: %w", action, err)
}

// Refresh fetches the engine status once. On failure the last known state
// is kept and the failure is recorded in PollError. A local error status
// is only cleared when the engine reports it is running or paused. A
// response requested before an action changed the state is discarded.
func (c *Controller) Refresh(ctx context.Context) (models.AutomationState, error) {
	if c.backend == nil {
		c.mu.Lock()
		c.state.PollError = ErrDisconnected.Error()
		st := c.state
		c.mu.Unlock()
		return st, ErrDisconnected
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	status, stats, err := c.backend.AutomationStatus(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return c.state, nil
	}
	if err != nil {
		c.state.PollError = backend.UserMessage(err)
		return c.state, fmt.Errorf("poll automation status: %w", err)
	}

	keepError := c.state.Status == models.AutomationStatusError &&
		status != models.AutomationStatusRunning && status != models.AutomationStatusPaused
	if !keepError {
		c.state.Status = status
		if status != models.AutomationStatusError {
			c.state.LastError = ""
		}
	}
	// The engine may not report lastRun; keep the newer local one.
	if local := c.state.Stats.LastRun; local != nil && (stats.LastRun == nil || stats.LastRun.Before(*local)) {
		stats.LastRun = local
	}
	c.state.Stats = stats
	c.state.PollError = ""
	c.state.UpdatedAt = c.now()
	return c.state, nil
}
