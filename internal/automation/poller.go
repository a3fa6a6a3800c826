package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joescharf/jobdash/internal/models"
)

// DefaultInterval is the status poll period.
const DefaultInterval = 5 * time.Second

// Poller refreshes a Controller immediately and then on every tick.
type Poller struct {
	Controller *Controller
	// Interval between polls. Zero means DefaultInterval.
	Interval time.Duration
	// OnUpdate, if set, receives the state after every poll.
	OnUpdate func(models.AutomationState, error)
	Logger   *slog.Logger

	// NewTicker creates a ticker channel and its stop function. Nil uses
	// time.NewTicker.
	NewTicker func(d time.Duration) (tick <-chan time.Time, stop func())
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	newTicker := p.NewTicker
	if newTicker == nil {
		newTicker = defaultNewTicker
	}

	ch, stop := newTicker(interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	st, err := p.Controller.Refresh(ctx)
	if err != nil && ctx.Err() == nil && p.Logger != nil {
		p.Logger.Debug("automation poll failed", "error", err)
	}
	if p.OnUpdate != nil && ctx.Err() == nil {
		p.OnUpdate(st, err)
	}
}

// Handle controls a running poll loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start runs the poll loop in a goroutine.
func (p *Poller) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		p.Run(ctx)
	}()
	return h
}

// Stop cancels the loop and waits for it to exit. Safe to call more than once.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func defaultNewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
