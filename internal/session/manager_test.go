package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/store"
)

// fakeBackend records every session call.
type fakeBackend struct {
	mu      sync.Mutex
	starts  []string
	updates []models.SessionStats
	ends    []string

	startErr error
	endErr   error
}

func (f *fakeBackend) StartSession(_ context.Context, id string, mode models.AutomationMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, id+":"+string(mode))
	return f.startErr
}

func (f *fakeBackend) UpdateSession(_ context.Context, _ string, stats models.SessionStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, stats)
	return nil
}

func (f *fakeBackend) EndSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, id)
	return f.endErr
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("SESSION-%d", n)
	}
}

func newTestManager(t *testing.T, s store.Store, b Backend) *Manager {
	t.Helper()
	return NewManager(s, b, WithIDGenerator(sequentialIDs()))
}

func intp(n int) *int { return &n }

func TestStartOrResume_CreatesAndPersists(t *testing.T) {
	s := store.NewMemoryStore()
	b := &fakeBackend{}
	m := newTestManager(t, s, b)
	ctx := context.Background()

	sess, err := m.StartOrResume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SESSION-1", sess.ID)
	assert.False(t, sess.Resumed)
	assert.Equal(t, models.AutomationModeManual, sess.AutomationMode)

	stored, err := s.Get(ctx, store.KeySessionID)
	require.NoError(t, err)
	assert.Equal(t, "SESSION-1", stored)
	assert.Equal(t, []string{"SESSION-1:manual"}, b.starts)
}

func TestStartOrResume_Idempotent(t *testing.T) {
	b := &fakeBackend{}
	m := newTestManager(t, store.NewMemoryStore(), b)
	ctx := context.Background()

	first, err := m.StartOrResume(ctx)
	require.NoError(t, err)
	second, err := m.StartOrResume(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, b.starts, 1, "second call resumes without a new backend start")
}

func TestStartOrResume_ResumesAcrossReload(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	first := newTestManager(t, s, &fakeBackend{})
	sess1, err := first.StartOrResume(ctx)
	require.NoError(t, err)
	_, err = first.UpdateStats(ctx, models.SessionStatsUpdate{JobsViewed: intp(5)})
	require.NoError(t, err)
	first.Flush()

	// A new manager over the same storage is a page reload.
	b := &fakeBackend{}
	reloaded := NewManager(s, b, WithIDGenerator(func() string { return "SHOULD-NOT-BE-USED" }))
	sess2, err := reloaded.StartOrResume(ctx)
	require.NoError(t, err)

	assert.Equal(t, sess1.ID, sess2.ID)
	assert.True(t, sess2.Resumed)
	assert.Equal(t, 5, sess2.Stats.JobsViewed, "counters survive reload")
	assert.Equal(t, []string{sess1.ID + ":manual"}, b.starts)
}

func TestStartOrResume_BackendFailureIsNotFatal(t *testing.T) {
	b := &fakeBackend{startErr: errors.New("connection refused")}
	m := newTestManager(t, store.NewMemoryStore(), b)

	sess, err := m.StartOrResume(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)

	_, err = m.Current()
	assert.NoError(t, err)
}

func TestStartOrResume_Disconnected(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), nil)
	ctx := context.Background()

	sess, err := m.StartOrResume(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID, "ULID generated")

	_, err = m.UpdateStats(ctx, models.SessionStatsUpdate{Errors: intp(1)})
	require.NoError(t, err)
	require.NoError(t, m.End(ctx))
}

func TestUpdateStats_MergesAndPushesFullBag(t *testing.T) {
	b := &fakeBackend{}
	m := newTestManager(t, store.NewMemoryStore(), b)
	ctx := context.Background()

	_, err := m.StartOrResume(ctx)
	require.NoError(t, err)

	_, err = m.UpdateStats(ctx, models.SessionStatsUpdate{JobsViewed: intp(3)})
	require.NoError(t, err)
	stats, err := m.UpdateStats(ctx, models.SessionStatsUpdate{JobsApplied: intp(1), JobsViewed: intp(4)})
	require.NoError(t, err)
	m.Flush()

	assert.Equal(t, models.SessionStats{JobsViewed: 4, JobsApplied: 1}, stats)
	require.NotEmpty(t, b.updates)
	assert.Equal(t, stats, b.updates[len(b.updates)-1], "last push carries the merged bag")
}

func TestUpdateStats_NoSessionIsNoop(t *testing.T) {
	b := &fakeBackend{}
	m := newTestManager(t, store.NewMemoryStore(), b)

	stats, err := m.UpdateStats(context.Background(), models.SessionStatsUpdate{JobsSaved: intp(2)})
	require.NoError(t, err)
	m.Flush()

	assert.Equal(t, models.SessionStats{}, stats)
	assert.Empty(t, b.updates)
}

func TestEnd_Idempotent(t *testing.T) {
	s := store.NewMemoryStore()
	b := &fakeBackend{}
	m := newTestManager(t, s, b)
	ctx := context.Background()

	sess, err := m.StartOrResume(ctx)
	require.NoError(t, err)

	require.NoError(t, m.End(ctx))
	require.NoError(t, m.End(ctx))

	assert.Equal(t, []string{sess.ID}, b.ends, "exactly one backend end call")
	_, err = s.Get(ctx, store.KeySessionID)
	assert.ErrorIs(t, err, store.ErrNotFound, "persisted id cleared")

	_, err = m.Current()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestEnd_ConcurrentCallsSendOnce(t *testing.T) {
	b := &fakeBackend{}
	m := newTestManager(t, store.NewMemoryStore(), b)
	ctx := context.Background()
	_, err := m.StartOrResume(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.End(ctx)
		}()
	}
	wg.Wait()

	assert.Len(t, b.ends, 1)
}

func TestEnd_BackendErrorStillClearsID(t *testing.T) {
	s := store.NewMemoryStore()
	b := &fakeBackend{endErr: errors.New("boom")}
	m := newTestManager(t, s, b)
	ctx := context.Background()

	_, err := m.StartOrResume(ctx)
	require.NoError(t, err)

	err = m.End(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end session")

	_, ok := m.PersistedID(ctx)
	assert.False(t, ok)
}

func TestEnd_ThenStartCreatesNewSession(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore(), &fakeBackend{})
	ctx := context.Background()

	first, err := m.StartOrResume(ctx)
	require.NoError(t, err)
	require.NoError(t, m.End(ctx))

	second, err := m.StartOrResume(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.Resumed)
	assert.Equal(t, models.SessionStats{}, second.Stats)
}

func TestEnd_RecordsHistory(t *testing.T) {
	s := store.NewMemoryStore()
	fixed := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	m := NewManager(s, &fakeBackend{}, WithIDGenerator(sequentialIDs()), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	_, err := m.StartOrResume(ctx)
	require.NoError(t, err)
	_, err = m.UpdateStats(ctx, models.SessionStatsUpdate{JobsApplied: intp(2)})
	require.NoError(t, err)
	require.NoError(t, m.End(ctx))

	history, err := s.ListSessionHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, fixed, history[0].StartedAt)
	require.NotNil(t, history[0].EndedAt)
	assert.Equal(t, 2, history[0].Stats.JobsApplied)
}

func TestPeek(t *testing.T) {
	s := store.NewMemoryStore()
	b := &fakeBackend{}
	ctx := context.Background()

	m := newTestManager(t, s, b)
	_, ok := m.Peek(ctx)
	assert.False(t, ok)

	_, err := m.StartOrResume(ctx)
	require.NoError(t, err)
	_, err = m.UpdateStats(ctx, models.SessionStatsUpdate{JobsSaved: intp(2)})
	require.NoError(t, err)
	m.Flush()

	reloaded := newTestManager(t, s, b)
	sess, ok := reloaded.Peek(ctx)
	require.True(t, ok)
	assert.Equal(t, "SESSION-1", sess.ID)
	assert.Equal(t, 2, sess.Stats.JobsSaved)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Len(t, b.starts, 1, "peek never announces the session")
}
