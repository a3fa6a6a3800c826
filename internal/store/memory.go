package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joescharf/jobdash/internal/models"
)

// MemoryStore is a process-local Store. It backs ephemeral runs (no db_path)
// and tests.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	sessions map[string]*models.SessionRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]string),
		sessions: make(map[string]*models.SessionRecord),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) RecordSessionStart(_ context.Context, rec *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if _, exists := m.sessions[rec.ID]; exists {
		return nil
	}
	cp := *rec
	m.sessions[rec.ID] = &cp
	return nil
}

func (m *MemoryStore) RecordSessionEnd(_ context.Context, id string, stats models.SessionStats, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	t := endedAt.UTC()
	rec.Stats = stats
	rec.EndedAt = &t
	return nil
}

func (m *MemoryStore) ListSessionHistory(_ context.Context, limit int) ([]*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
