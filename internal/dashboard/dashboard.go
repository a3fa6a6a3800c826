package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/jobdash/internal/activity"
	"github.com/joescharf/jobdash/internal/analytics"
	"github.com/joescharf/jobdash/internal/backend"
	"github.com/joescharf/jobdash/internal/models"
)

// Widget keys used in View.Errors.
const (
	WidgetApplied   = "applied"
	WidgetSaved     = "saved"
	WidgetAnalytics = "analytics"
)

// Source is the backend data the dashboard reads.
type Source interface {
	ListAppliedJobs(ctx context.Context) ([]models.ApplicationRecord, error)
	ListSavedJobs(ctx context.Context) ([]models.SavedJobRecord, error)
	ApplicationAnalytics(ctx context.Context) (map[string]any, error)
}

// View is everything the dashboard renders. Each widget owns its error:
// a failed fetch leaves that widget empty and records a message under its
// key in Errors without affecting the others.
type View struct {
	Connected   bool                       `json:"connected"`
	BaseURL     string                     `json:"base_url,omitempty"`
	Applied     []models.ApplicationRecord `json:"applied"`
	Saved       []models.SavedJobRecord    `json:"saved"`
	Activity    []models.ActivityEntry     `json:"activity"`
	Analytics   *analytics.Snapshot        `json:"analytics"`
	Remote      map[string]any             `json:"remote,omitempty"`
	Errors      map[string]string          `json:"errors"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// Options controls view derivation.
type Options struct {
	Window   analytics.Window
	Activity activity.Options
	Engine   *analytics.Engine
}

func (o Options) engine() *analytics.Engine {
	if o.Engine == nil {
		return analytics.NewEngine()
	}
	return o.Engine
}

// Disconnected is the view shown when no backend was found: every list is
// empty and nothing is reported as an error.
func Disconnected(opts Options) *View {
	v := empty()
	v.Analytics = opts.engine().Compute(nil, opts.Window)
	return v
}

// Load fetches applied jobs, saved jobs and backend analytics in parallel
// and derives the activity feed and analytics snapshot from them.
func Load(ctx context.Context, src Source, baseURL string, opts Options) *View {
	v := empty()
	v.Connected = true
	v.BaseURL = baseURL

	var (
		applied    []models.ApplicationRecord
		saved      []models.SavedJobRecord
		remote     map[string]any
		errApplied error
		errSaved   error
		errRemote  error
	)

	var g errgroup.Group
	g.Go(func() error {
		applied, errApplied = src.ListAppliedJobs(ctx)
		return nil
	})
	g.Go(func() error {
		saved, errSaved = src.ListSavedJobs(ctx)
		return nil
	})
	g.Go(func() error {
		remote, errRemote = src.ApplicationAnalytics(ctx)
		return nil
	})
	_ = g.Wait()

	if errApplied != nil {
		v.Errors[WidgetApplied] = backend.UserMessage(errApplied)
	} else if applied != nil {
		v.Applied = applied
	}
	if errSaved != nil {
		v.Errors[WidgetSaved] = backend.UserMessage(errSaved)
	} else if saved != nil {
		v.Saved = saved
	}
	if errRemote != nil {
		v.Errors[WidgetAnalytics] = backend.UserMessage(errRemote)
	} else {
		v.Remote = remote
	}

	v.Activity = activity.Aggregate(v.Applied, v.Saved, opts.Activity)
	v.Analytics = opts.engine().Compute(v.Applied, opts.Window)
	return v
}

func empty() *View {
	return &View{
		Applied:     []models.ApplicationRecord{},
		Saved:       []models.SavedJobRecord{},
		Activity:    []models.ActivityEntry{},
		Errors:      map[string]string{},
		GeneratedAt: time.Now().UTC(),
	}
}
