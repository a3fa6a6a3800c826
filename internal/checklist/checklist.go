package checklist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/jobdash/internal/models"
	"github.com/joescharf/jobdash/internal/store"
)

// Item IDs in the catalog.
const (
	IDBackend     = "backend"
	IDCredentials = "credentials"
	IDOnboarding  = "onboarding"
	IDResume      = "resume"
	IDPreferences = "preferences"
)

var catalog = []models.ChecklistItem{
	{
		ID:       IDBackend,
		Title:    "Connect to the jobdash backend",
		Required: true,
		Priority: models.ChecklistPriorityCritical,
		Action:   "Start the backend",
		Link:     "jobdash config show",
	},
	{
		ID:       IDCredentials,
		Title:    "Configure LinkedIn credentials",
		Required: true,
		Priority: models.ChecklistPriorityCritical,
		Action:   "Add credentials",
		Link:     "/settings",
	},
	{
		ID:       IDOnboarding,
		Title:    "Finish onboarding",
		Required: true,
		Priority: models.ChecklistPriorityHigh,
		Action:   "Complete onboarding",
		Link:     "jobdash onboarding complete",
	},
	{
		ID:       IDResume,
		Title:    "Upload a resume",
		Priority: models.ChecklistPriorityMedium,
		Action:   "Mark done",
		Link:     "jobdash checklist done resume",
	},
	{
		ID:       IDPreferences,
		Title:    "Set job search preferences",
		Priority: models.ChecklistPriorityLow,
		Action:   "Mark done",
		Link:     "jobdash checklist done preferences",
	},
}

// Catalog returns a fresh copy of the checklist with every item incomplete.
func Catalog() []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(catalog))
	copy(out, catalog)
	return out
}

// Check reports whether one item is complete.
type Check func(ctx context.Context) (bool, error)

// Checks maps item IDs to the check that decides them. Items without a
// check stay incomplete.
type Checks map[string]Check

// Checklist is the result of one evaluation.
type Checklist struct {
	Items       []models.ChecklistItem `json:"items"`
	Errors      map[string]string      `json:"errors,omitempty"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
}

// Evaluate runs every check concurrently and applies the results together
// once all of them have returned. A check that fails leaves its item
// incomplete, so a partial or failed evaluation can only over-block.
func Evaluate(ctx context.Context, checks Checks) *Checklist {
	type result struct {
		done bool
		err  error
	}
	results := make(map[string]result, len(checks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for id, check := range checks {
		if check == nil {
			continue
		}
		g.Go(func() error {
			done, err := check(gctx)
			mu.Lock()
			results[id] = result{done: done, err: err}
			mu.Unlock()
			// Never cancel siblings; each item owns its outcome.
			return nil
		})
	}
	_ = g.Wait()

	cl := &Checklist{Items: Catalog(), EvaluatedAt: time.Now()}
	for i := range cl.Items {
		r, ok := results[cl.Items[i].ID]
		if !ok {
			continue
		}
		if r.err != nil {
			if cl.Errors == nil {
				cl.Errors = make(map[string]string)
			}
			cl.Errors[cl.Items[i].ID] = r.err.Error()
			continue
		}
		cl.Items[i].Completed = r.done
	}
	return cl
}

// Blocked reports whether any required critical item is incomplete.
func (c *Checklist) Blocked() bool {
	for _, it := range c.Items {
		if it.Blocking() {
			return true
		}
	}
	return false
}

// Blockers lists the items currently preventing automation start.
func (c *Checklist) Blockers() []models.ChecklistItem {
	var out []models.ChecklistItem
	for _, it := range c.Items {
		if it.Blocking() {
			out = append(out, it)
		}
	}
	return out
}

// Item looks up an item by ID.
func (c *Checklist) Item(id string) (models.ChecklistItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return models.ChecklistItem{}, false
}

// Progress returns the number of completed items and the total.
func (c *Checklist) Progress() (done, total int) {
	for _, it := range c.Items {
		if it.Completed {
			done++
		}
	}
	return done, len(c.Items)
}

// StoreFlag is a Check backed by a boolean store key.
func StoreFlag(s store.Store, key string) Check {
	return func(ctx context.Context) (bool, error) {
		return store.GetBool(ctx, s, key)
	}
}

// Reachable turns a health probe into a Check. Any error means incomplete
// rather than failed, since an unreachable backend is an expected state.
func Reachable(health func(context.Context) error) Check {
	return func(ctx context.Context) (bool, error) {
		return health(ctx) == nil, nil
	}
}

// Manual reports whether an item is completed by the user rather than probed.
func Manual(id string) bool {
	return id == IDResume || id == IDPreferences
}

// SetManual records the completion flag for a manual item.
func SetManual(ctx context.Context, s store.Store, id string, done bool) error {
	if !Manual(id) {
		return fmt.Errorf("checklist item %q cannot be set manually", id)
	}
	return store.SetBool(ctx, s, store.ChecklistKey(id), done)
}

// LocalChecks returns the checks answered from client storage alone.
func LocalChecks(s store.Store) Checks {
	return Checks{
		IDOnboarding:  StoreFlag(s, store.KeyOnboardingCompleted),
		IDResume:      StoreFlag(s, store.ChecklistKey(IDResume)),
		IDPreferences: StoreFlag(s, store.ChecklistKey(IDPreferences)),
	}
}
