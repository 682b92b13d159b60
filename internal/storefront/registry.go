package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/florist-storefront/internal/session"
	"github.com/angelmondragon/florist-storefront/pkg/logger"
)

// Factory builds a controller around a shopper's session store.
type Factory func(store session.Store) (*Controller, error)

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Registry keeps one controller per shopper id.
type Registry struct {
	backend session.Backend
	factory Factory
	idle    time.Duration
	logg    *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	building map[string]chan struct{}
}

// NewRegistry returns a registry whose controllers are dropped after idle
// without events. A zero idle keeps them forever.
func NewRegistry(backend session.Backend, factory Factory, idle time.Duration, logg *logger.Logger) (*Registry, error) {
	if backend == nil {
		return nil, fmt.Errorf("session backend required")
	}
	if factory == nil {
		return nil, fmt.Errorf("controller factory required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{
		backend:  backend,
		factory:  factory,
		idle:     idle,
		logg:     logg,
		now:      time.Now,
		entries:  make(map[string]*entry),
		building: make(map[string]chan struct{}),
	}, nil
}

// Get returns the shopper's controller, building and initializing it on
// first use.
func (r *Registry) Get(ctx context.Context, shopperID string) (*Controller, error) {
	shopperID = strings.TrimSpace(shopperID)
	if shopperID == "" {
		return nil, fmt.Errorf("shopper id required")
	}

	for {
		r.mu.Lock()
		if e, ok := r.entries[shopperID]; ok {
			e.lastSeen = r.now()
			r.mu.Unlock()
			return e.ctrl, nil
		}
		pending, busy := r.building[shopperID]
		if !busy {
			r.building[shopperID] = make(chan struct{})
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()

		select {
		case <-pending:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctrl, err := r.build(ctx, shopperID)

	r.mu.Lock()
	defer r.mu.Unlock()
	close(r.building[shopperID])
	delete(r.building, shopperID)
	if err != nil {
		return nil, err
	}
	r.entries[shopperID] = &entry{ctrl: ctrl, lastSeen: r.now()}
	r.logg.Debug(r.logg.WithField(ctx, "shopper_id", shopperID), "storefront controller created")
	return ctrl, nil
}

// build runs without the registry lock held; Init talks to the upstream.
func (r *Registry) build(ctx context.Context, shopperID string) (*Controller, error) {
	ctrl, err := r.factory(r.backend.For(shopperID))
	if err != nil {
		return nil, err
	}
	if err := ctrl.Init(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	return ctrl, nil
}

// Sweep drops controllers idle for longer than the registry's idle period
// and reports how many were dropped. Their cart sessions stay persisted.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			e.ctrl.Close()
			delete(r.entries, id)
			dropped++
		}
	}
	return dropped
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logg.Debug(r.logg.WithField(ctx, "dropped", n), "idle storefront controllers swept")
			}
		}
	}
}

// Len is the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
