package ordertotal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/florist-storefront/pkg/metrics"
)

type computer interface {
	Ready(in Input) bool
	Compute(ctx context.Context, in Input) (Result, error)
}

// Recomputer keeps the latest total for a checkout. Every request takes a
// sequence number and only the result of the newest request is kept; older
// results that arrive late are dropped.
type Recomputer struct {
	calc    computer
	quiet   time.Duration
	metrics *metrics.CheckoutMetrics

	seq atomic.Uint64

	mu     sync.Mutex
	timer  *time.Timer
	latest Result
}

// NewRecomputer debounces Trigger calls by quiet.
func NewRecomputer(calc computer, quiet time.Duration, m *metrics.CheckoutMetrics) *Recomputer {
	return &Recomputer{calc: calc, quiet: quiet, metrics: m}
}

// Trigger schedules a computation after the quiet period. A later Trigger or
// Now replaces a pending one. Used for postal-code typing.
func (r *Recomputer) Trigger(ctx context.Context, in Input) uint64 {
	seq := r.seq.Add(1)
	ctx = context.WithoutCancel(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.timer = time.AfterFunc(r.quiet, func() {
		r.run(ctx, seq, in)
	})
	return seq
}

// Now computes immediately, cancelling any pending Trigger. Used for date
// selection, postal-code blur and entering the review step.
func (r *Recomputer) Now(ctx context.Context, in Input) Result {
	seq := r.seq.Add(1)
	r.mu.Lock()
	r.stopLocked()
	r.mu.Unlock()
	return r.run(ctx, seq, in)
}

// Reset forgets the current total and drops anything pending or in flight.
func (r *Recomputer) Reset() {
	seq := r.seq.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.latest = Result{State: StateUndetermined, Seq: seq}
}

// Stop cancels a pending Trigger.
func (r *Recomputer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// Latest returns the result of the newest request that has finished.
func (r *Recomputer) Latest() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

func (r *Recomputer) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Recomputer) run(ctx context.Context, seq uint64, in Input) Result {
	if !r.calc.Ready(in) {
		res := Result{State: StateUndetermined, Seq: seq}
		r.store(res)
		return res
	}
	r.store(Result{State: StateCalculating, Seq: seq})

	res, _ := r.calc.Compute(ctx, in)
	res.Seq = seq
	applied := r.store(res)
	r.metrics.IncRecompute(!applied)
	return res
}

// store keeps res only if it answers the newest request.
func (r *Recomputer) store(res Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Seq != r.seq.Load() {
		return false
	}
	r.latest = res
	return true
}
