package store

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/jobdash/internal/models"
)

// Storage keys shared with the web client so both read the same state.
const (
	KeySessionID           = "linkedin_session_id"
	KeySessionStats        = "linkedin_session_stats"
	KeyOnboardingCompleted = "onboarding_completed"
	KeyAPIToken            = "api_token"
	keyChecklistPrefix     = "checklist_"
)

// ChecklistKey returns the storage key for a manually completed checklist item.
func ChecklistKey(itemID string) string {
	return keyChecklistPrefix + itemID
}

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines durable client-side storage for jobdash.
type Store interface {
	// Key/value state
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// Session history
	RecordSessionStart(ctx context.Context, rec *models.SessionRecord) error
	RecordSessionEnd(ctx context.Context, id string, stats models.SessionStats, endedAt time.Time) error
	ListSessionHistory(ctx context.Context, limit int) ([]*models.SessionRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GetBool reads a boolean flag; missing keys read as false.
func GetBool(ctx context.Context, s Store, key string) (bool, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true" || v == "1", nil
}

// SetBool writes a boolean flag as "true", or removes it when false.
func SetBool(ctx context.Context, s Store, key string, v bool) error {
	if !v {
		return s.Delete(ctx, key)
	}
	return s.Set(ctx, key, "true")
}
