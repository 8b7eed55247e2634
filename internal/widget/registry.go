// Package widget hosts generator widget instances. Each widget owns one unlock
// gate, one comparison slider and the generation request in flight.
package widget

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/gate"
	"unlockstudio/internal/generator"
	"unlockstudio/internal/infra"
	"unlockstudio/internal/paypal"
	"unlockstudio/internal/preview"
)

// Generator produces artifacts for a request.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) ([]domain.Artifact, error)
}

// Payments creates provider orders.
type Payments interface {
	CreateOrder(ctx context.Context, req paypal.OrderRequest) (paypal.Order, error)
}

// Options configures every widget created by a Registry.
type Options struct {
	Generator     Generator
	Payments      Payments
	Fetcher       gate.Fetcher
	Ledger        domain.UnlockLedger
	Price         domain.Price
	PublicBaseURL string
	Preview       preview.Options
	Logger        *infra.Logger
	Now           func() time.Time
	NewID         func() string
}

// Registry is the set of live widgets.
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]*Widget
	opts    Options
	logger  infra.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Price.Cents <= 0 {
		opts.Price = domain.DefaultPrice()
	}
	return &Registry{widgets: make(map[string]*Widget), opts: opts, logger: infra.OrNop(opts.Logger)}
}

// Create registers a new widget for mode.
func (r *Registry) Create(mode domain.Mode) *Widget {
	w := newWidget(r.opts.NewID(), mode, r.opts, r.logger)
	r.mu.Lock()
	r.widgets[w.ID] = w
	r.mu.Unlock()
	r.logger.Debug().Str("widget_id", w.ID).Str("mode", string(mode)).Msg("widget: created")
	return w
}

// Get returns the widget with id and marks it as active.
func (r *Registry) Get(id string) (*Widget, error) {
	r.mu.RLock()
	w, ok := r.widgets[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	w.touch()
	return w, nil
}

// Delete unmounts and removes a widget. It reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	w, ok := r.widgets[id]
	delete(r.widgets, id)
	r.mu.Unlock()
	if ok {
		w.close()
	}
	return ok
}

// Len returns the number of live widgets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}

// Sweep removes widgets idle for longer than maxIdle and returns how many
// were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.opts.Now().Add(-maxIdle)
	var stale []*Widget
	r.mu.Lock()
	for id, w := range r.widgets {
		if w.lastSeen().Before(cutoff) {
			stale = append(stale, w)
			delete(r.widgets, id)
		}
	}
	r.mu.Unlock()
	for _, w := range stale {
		w.close()
	}
	if len(stale) > 0 {
		r.logger.Info().Int("removed", len(stale)).Msg("widget: swept idle widgets")
	}
	return len(stale)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}
