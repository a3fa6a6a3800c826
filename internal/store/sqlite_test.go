package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/jobdash/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	// Running migrate again should be a no-op
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestKeyValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, KeySessionID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeySessionID, "01ABC"))
	v, err := s.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.Equal(t, "01ABC", v)

	// Overwrite
	require.NoError(t, s.Set(ctx, KeySessionID, "01DEF"))
	v, err = s.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.Equal(t, "01DEF", v)

	require.NoError(t, s.Delete(ctx, KeySessionID))
	_, err = s.Get(ctx, KeySessionID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, "missing"))
}

func TestKeyValue_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.Migrate(ctx))
	require.NoError(t, s1.Set(ctx, KeyOnboardingCompleted, "true"))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.Migrate(ctx))

	done, err := GetBool(ctx, s2, KeyOnboardingCompleted)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestBoolHelpers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := GetBool(ctx, s, ChecklistKey("resume"))
	require.NoError(t, err)
	assert.False(t, v, "missing flag reads false")

	require.NoError(t, SetBool(ctx, s, ChecklistKey("resume"), true))
	v, err = GetBool(ctx, s, ChecklistKey("resume"))
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, SetBool(ctx, s, ChecklistKey("resume"), false))
	_, err = s.Get(ctx, ChecklistKey("resume"))
	assert.ErrorIs(t, err, ErrNotFound, "clearing a flag removes the key")
}

func TestSessionHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := &models.SessionRecord{
		ID:             "01OLDER",
		AutomationMode: models.AutomationModeManual,
		StartedAt:      time.Now().Add(-2 * time.Hour).UTC(),
	}
	newer := &models.SessionRecord{
		ID:             "01NEWER",
		AutomationMode: models.AutomationModeManual,
		StartedAt:      time.Now().Add(-1 * time.Hour).UTC(),
	}
	require.NoError(t, s.RecordSessionStart(ctx, older))
	require.NoError(t, s.RecordSessionStart(ctx, newer))

	// Duplicate start is ignored
	require.NoError(t, s.RecordSessionStart(ctx, newer))

	stats := models.SessionStats{JobsViewed: 12, JobsApplied: 3}
	require.NoError(t, s.RecordSessionEnd(ctx, older.ID, stats, time.Now()))

	history, err := s.ListSessionHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "01NEWER", history[0].ID, "newest first")
	assert.Nil(t, history[0].EndedAt)
	assert.Equal(t, "01OLDER", history[1].ID)
	require.NotNil(t, history[1].EndedAt)
	assert.Equal(t, 12, history[1].Stats.JobsViewed)
	assert.Equal(t, 3, history[1].Stats.JobsApplied)

	limited, err := s.ListSessionHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordSessionEnd_Unknown(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordSessionEnd(context.Background(), "nope", models.SessionStats{}, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SatisfiesStore(t *testing.T) {
	var s Store = NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyAPIToken, "tok"))
	v, err := s.Get(ctx, KeyAPIToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	rec := &models.SessionRecord{ID: "a"}
	require.NoError(t, s.RecordSessionStart(ctx, rec))
	assert.False(t, rec.StartedAt.IsZero())
	require.NoError(t, s.RecordSessionEnd(ctx, "a", models.SessionStats{Errors: 1}, time.Now()))

	history, err := s.ListSessionHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Stats.Errors)
}
