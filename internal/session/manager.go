package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/store"
)

// ErrNoSession is returned when no session is active.
var ErrNoSession = errors.New("no active session")

// Backend is the subset of the backend client needed for session lifecycle.
type Backend interface {
	StartSession(ctx context.Context, sessionID string, mode models.AutomationMode) error
	UpdateSession(ctx context.Context, sessionID string, stats models.SessionStats) error
	EndSession(ctx context.Context, sessionID string) error
}

// Manager owns the single active session for a storage context.
type Manager struct {
	store       store.Store
	backend     Backend
	logger      *slog.Logger
	newID       func() string
	now         func() time.Time
	pushTimeout time.Duration

	mu      sync.Mutex
	active  bool
	current models.Session

	pushMu  sync.Mutex
	pushing bool
	next    *pushRequest
	pending sync.WaitGroup
}

type pushRequest struct {
	id    string
	stats models.SessionStats
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for background push failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithIDGenerator replaces the ULID session id generator.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) { m.newID = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager. backend may be nil when the backend
// is unreachable; the session then lives locally only.
func NewManager(s store.Store, backend Backend, opts ...Option) *Manager {
	m := &Manager{
		store:       s,
		backend:     backend,
		logger:      slog.Default(),
		newID:       func() string { return ulid.Make().String() },
		now:         time.Now,
		pushTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartOrResume activates the persisted session, creating one if none is
// stored, and announces it to the backend. Calling it again while active
// returns the same session without contacting the backend.
func (m *Manager) StartOrResume(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return m.current, nil
	}

	sess := models.Session{
		AutomationMode: models.AutomationModeManual,
		StartedAt:      m.now().UTC(),
	}

	id, err := m.store.Get(ctx, store.KeySessionID)
	switch {
	case err == nil && id != "":
		sess.ID = id
		sess.Resumed = true
		sess.Stats = m.loadStats(ctx)
	case err == nil || errors.Is(err, store.ErrNotFound):
		sess.ID = m.newID()
		if err := m.store.Set(ctx, store.KeySessionID, sess.ID); err != nil {
			return models.Session{}, fmt.Errorf("persist session id: %w", err)
		}
	default:
		return models.Session{}, fmt.Errorf("read session id: %w", err)
	}

	if err := m.store.RecordSessionStart(ctx, &models.SessionRecord{
		ID:             sess.ID,
		AutomationMode: sess.AutomationMode,
		Stats:          sess.Stats,
		StartedAt:      sess.StartedAt,
	}); err != nil {
		m.logger.Warn("record session start", "session_id", sess.ID, "error", err)
	}

	if m.backend != nil {
		if err := m.backend.StartSession(ctx, sess.ID, sess.AutomationMode); err != nil {
			m.logger.Warn("backend session start failed", "session_id", sess.ID, "error", err)
		}
	}

	m.current = sess
	m.active = true
	return sess, nil
}

// Current returns the active session.
func (m *Manager) Current() (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return models.Session{}, ErrNoSession
	}
	return m.current, nil
}

// PersistedID returns the stored session id without activating it.
func (m *Manager) PersistedID(ctx context.Context) (string, bool) {
	id, err := m.store.Get(ctx, store.KeySessionID)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Peek returns the active session, or the persisted one without activating
// it or contacting the backend.
func (m *Manager) Peek(ctx context.Context) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return m.current, true
	}
	id, err := m.store.Get(ctx, store.KeySessionID)
	if err != nil || id == "" {
		return models.Session{}, false
	}
	return models.Session{
		ID:             id,
		AutomationMode: models.AutomationModeManual,
		Stats:          m.loadStats(ctx),
		Resumed:        true,
	}, true
}

// UpdateStats merges u into the session counters and pushes the full bag to
// the backend in the background. It is a no-op without an active session.
func (m *Manager) UpdateStats(ctx context.Context, u models.SessionStatsUpdate) (models.SessionStats, error) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return models.SessionStats{}, nil
	}
	m.current.Stats = m.current.Stats.Merge(u)
	id, stats := m.current.ID, m.current.Stats
	// Scheduled under mu so End cannot start waiting before the push is counted.
	m.schedulePush(id, stats)
	m.mu.Unlock()

	if err := m.saveStats(ctx, stats); err != nil {
		m.logger.Warn("persist session stats", "session_id", id, "error", err)
	}
	return stats, nil
}

// Flush blocks until background stat pushes have finished.
func (m *Manager) Flush() {
	m.pending.Wait()
}

// End closes the session on the backend and clears the persisted id. Only
// the first call after StartOrResume does anything.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil
	}
	m.active = false
	id, stats := m.current.ID, m.current.Stats
	m.current = models.Session{}
	m.mu.Unlock()

	m.Flush()

	var endErr error
	if m.backend != nil {
		if err := m.backend.EndSession(ctx, id); err != nil {
			endErr = fmt.Errorf("end session %s: %w", id, err)
		}
	}

	if err := m.store.RecordSessionEnd(ctx, id, stats, m.now()); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("record session end", "session_id", id, "error", err)
	}
	if err := m.store.Delete(ctx, store.KeySessionStats); err != nil {
		m.logger.Warn("clear session stats", "error", err)
	}
	if err := m.store.Delete(ctx, store.KeySessionID); err != nil {
		return errors.Join(endErr, fmt.Errorf("clear session id: %w", err))
	}
	return endErr
}

func (m *Manager) loadStats(ctx context.Context) models.SessionStats {
	var stats models.SessionStats
	raw, err := m.store.Get(ctx, store.KeySessionStats)
	if err != nil {
		return stats
	}
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		m.logger.Warn("discarding unreadable session stats", "error", err)
		return models.SessionStats{}
	}
	return stats
}

func (m *Manager) saveStats(ctx context.Context, stats models.SessionStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, store.KeySessionStats, string(data))
}

// schedulePush queues the latest stats bag. Pushes are coalesced by a single
// goroutine so the backend always ends up with the newest bag.
func (m *Manager) schedulePush(id string, stats models.SessionStats) {
	if m.backend == nil {
		return
	}

	m.pushMu.Lock()
	m.next = &pushRequest{id: id, stats: stats}
	if m.pushing {
		m.pushMu.Unlock()
		return
	}
	m.pushing = true
	m.pending.Add(1)
	m.pushMu.Unlock()

	go m.pushLoop()
}

func (m *Manager) pushLoop() {
	defer m.pending.Done()
	for {
		m.pushMu.Lock()
		req := m.next
		m.next = nil
		if req == nil {
			m.pushing = false
			m.pushMu.Unlock()
			return
		}
		m.pushMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.pushTimeout)
		err := m.backend.UpdateSession(ctx, req.id, req.stats)
		cancel()
		if err != nil {
			m.logger.Warn("backend session update failed", "session_id", req.id, "error", err)
		}
	}
}
