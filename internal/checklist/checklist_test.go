package checklist

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/store"
)

func done(v bool) Check {
	return func(context.Context) (bool, error) { return v, nil }
}

func TestCatalog(t *testing.T) {
	items := Catalog()
	require.Len(t, items, 5)

	var critical []string
	for _, it := range items {
		assert.False(t, it.Completed)
		if it.Required && it.Priority == models.ChecklistPriorityCritical {
			critical = append(critical, it.ID)
		}
	}
	assert.Equal(t, []string{IDBackend, IDCredentials}, critical)

	items[0].Completed = true
	assert.False(t, Catalog()[0].Completed, "catalog copies are independent")
}

func TestEvaluate_AllComplete(t *testing.T) {
	cl := Evaluate(context.Background(), Checks{
		IDBackend:     done(true),
		IDCredentials: done(true),
		IDOnboarding:  done(true),
		IDResume:      done(true),
		IDPreferences: done(true),
	})

	assert.False(t, cl.Blocked())
	assert.Empty(t, cl.Blockers())
	d, total := cl.Progress()
	assert.Equal(t, 5, d)
	assert.Equal(t, 5, total)
}

func TestEvaluate_OneCriticalIncomplete(t *testing.T) {
	cl := Evaluate(context.Background(), Checks{
		IDBackend:     done(true),
		IDCredentials: done(false),
	})

	assert.True(t, cl.Blocked())
	blockers := cl.Blockers()
	require.Len(t, blockers, 1)
	assert.Equal(t, IDCredentials, blockers[0].ID)
}

func TestEvaluate_NonCriticalDoesNotBlock(t *testing.T) {
	cl := Evaluate(context.Background(), Checks{
		IDBackend:     done(true),
		IDCredentials: done(true),
	})
	assert.False(t, cl.Blocked(), "onboarding is required but high priority")

	item, ok := cl.Item(IDOnboarding)
	require.True(t, ok)
	assert.False(t, item.Completed)
}

func TestEvaluate_ErrorOverBlocks(t *testing.T) {
	cl := Evaluate(context.Background(), Checks{
		IDBackend: done(true),
		IDCredentials: func(context.Context) (bool, error) {
			return true, errors.New("timeout")
		},
	})

	assert.True(t, cl.Blocked())
	assert.Equal(t, "timeout", cl.Errors[IDCredentials])
	item, _ := cl.Item(IDCredentials)
	assert.False(t, item.Completed)
}

func TestEvaluate_RunsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := func(context.Context) (bool, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return true, nil
	}

	cl := Evaluate(context.Background(), Checks{
		IDBackend:     slow,
		IDCredentials: slow,
		IDOnboarding:  slow,
	})

	assert.False(t, cl.Blocked())
	assert.Greater(t, peak.Load(), int32(1))
}

func TestEvaluate_SiblingErrorDoesNotCancel(t *testing.T) {
	cl := Evaluate(context.Background(), Checks{
		IDBackend: func(context.Context) (bool, error) { return false, errors.New("boom") },
		IDCredentials: func(ctx context.Context) (bool, error) {
			time.Sleep(10 * time.Millisecond)
			return ctx.Err() == nil, nil
		},
	})
	item, _ := cl.Item(IDCredentials)
	assert.True(t, item.Completed)
}

func TestReachable(t *testing.T) {
	ok, err := Reachable(func(context.Context) error { return nil })(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Reachable(func(context.Context) error { return errors.New("down") })(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalChecks(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, SetManual(ctx, s, IDResume, true))
	require.NoError(t, store.SetBool(ctx, s, store.KeyOnboardingCompleted, true))

	cl := Evaluate(ctx, LocalChecks(s))
	resume, _ := cl.Item(IDResume)
	prefs, _ := cl.Item(IDPreferences)
	onboarding, _ := cl.Item(IDOnboarding)
	assert.True(t, resume.Completed)
	assert.False(t, prefs.Completed)
	assert.True(t, onboarding.Completed)

	require.NoError(t, SetManual(ctx, s, IDResume, false))
	cl = Evaluate(ctx, LocalChecks(s))
	resume, _ = cl.Item(IDResume)
	assert.False(t, resume.Completed)
}

func TestSetManual_RejectsProbedItems(t *testing.T) {
	err := SetManual(context.Background(), store.NewMemoryStore(), IDBackend, true)
	assert.Error(t, err)
}
