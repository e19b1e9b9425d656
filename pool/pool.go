package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"oss.nandlabs.io/objpool/collections"
	"oss.nandlabs.io/objpool/errutils"
	"oss.nandlabs.io/objpool/l3"
)

var logger = l3.Get()

// Pool lends reusable, expensive-to-construct instances of T to concurrent
// borrowers, enforcing capacity limits, evicting stale idle instances, and
// reclaiming instances a caller borrowed and never returned.
//
// The all-objects index is keyed by the pooled value itself, so T's dynamic
// type must be comparable (pointer and interface types backed by pointers,
// which covers the pool's intended domain of database connections, network
// sessions, and similar handles, are fine; a T backed by a slice, map, or
// func will panic on Borrow/Return).
//
// A *Pool[T] is safe for concurrent use by multiple goroutines.
type Pool[T any] struct {
	factory Factory[T]
	config  *Config

	idle *collections.BlockingDeque[*PooledObject[T]]
	all  sync.Map // any(T) -> *PooledObject[T]

	createCount atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once

	evictMu      sync.Mutex
	evictIter    collections.Iterator[*PooledObject[T]]
	schedulerJob string
	evictorArmed bool
	policyMu     sync.RWMutex
	policy       EvictionPolicy[T]

	stats counters
}

// NewPool creates a Pool backed by factory and configured by cfg. A nil cfg
// uses NewConfig()'s defaults. If cfg enables background eviction
// (TimeBetweenEvictionRuns > 0), the evictor is scheduled on the process's
// shared chrono.Scheduler immediately.
func NewPool[T any](factory Factory[T], cfg *Config) (*Pool[T], error) {
	if factory == nil {
		return nil, fmt.Errorf("pool: factory must not be nil")
	}
	if cfg == nil {
		cfg = NewConfig()
	}

	p := &Pool[T]{
		factory:      factory,
		config:       cfg,
		idle:         collections.NewBlockingDeque[*PooledObject[T]](),
		schedulerJob: fmt.Sprintf("objpool-evict-%p", new(int)),
		policy:       NewDefaultEvictionPolicy[T](),
	}

	if cfg.TimeBetweenEvictionRuns > 0 {
		p.armEvictor()
	}

	return p, nil
}

// idlePollNonBlocking removes and returns an idle candidate without
// blocking, popping from the end the borrow policy prefers.
func (p *Pool[T]) idlePollNonBlocking() *collections.Node[*PooledObject[T]] {
	if p.config.LIFO {
		return p.idle.PollFront()
	}
	return p.idle.PollBack()
}

// idleTakeBlocking blocks up to wait (or indefinitely if negative) for an
// idle candidate, honoring ctx cancellation.
func (p *Pool[T]) idleTakeBlocking(ctx context.Context, wait time.Duration) (*collections.Node[*PooledObject[T]], bool) {
	if p.config.LIFO {
		return p.idle.TakeFirstCtx(ctx, wait)
	}
	return p.idle.TakeLastCtx(ctx, wait)
}

// idlePush inserts w into the idle deque at the end the borrow policy will
// drain first, recording its handle on the wrapper.
func (p *Pool[T]) idlePush(w *PooledObject[T]) {
	var n *collections.Node[*PooledObject[T]]
	if p.config.LIFO {
		n = p.idle.PushFront(w)
	} else {
		n = p.idle.PushBack(w)
	}
	w.setNode(n)
}

// create reserves a capacity slot and calls factory.Make outside any lock.
// It returns (nil, nil) when MaxTotal has been reached rather than an error,
// since that is an ordinary, expected outcome for callers deciding whether
// to wait.
func (p *Pool[T]) create() (*PooledObject[T], error) {
	if p.config.MaxTotal >= 0 {
		n := p.createCount.Add(1)
		if n > int64(p.config.MaxTotal) {
			p.createCount.Add(-1)
			return nil, nil
		}
	} else {
		p.createCount.Add(1)
	}

	v, err := p.factory.Make()
	if err != nil {
		p.createCount.Add(-1)
		return nil, fmt.Errorf("pool: factory make failed: %w", err)
	}

	w := newPooledObject(v)
	p.all.Store(any(v), w)
	p.stats.created.Add(1)
	return w, nil
}

// destroy transitions w to INVALID, removes it from the idle deque and the
// all-objects index, and calls factory.Destroy outside any lock. Destroy
// errors are swallowed per the package's error-handling contract.
func (p *Pool[T]) destroy(w *PooledObject[T]) {
	p.destroyInto(w, nil)
}

// destroyInto is destroy, but collects a factory.Destroy failure into errs
// instead of reporting it immediately, so a batch operation (Clear) can
// surface every failure from a sweep as one aggregated error.
func (p *Pool[T]) destroyInto(w *PooledObject[T], errs *errutils.MultiError) {
	node := w.MarkInvalid()
	if node != nil {
		p.idle.Remove(node)
	}
	p.all.Delete(any(w.Value()))
	p.createCount.Add(-1)

	if err := p.factory.Destroy(w.Value()); err != nil {
		wrapped := fmt.Errorf("pool: destroy failed: %w", err)
		if errs != nil {
			errs.Add(wrapped)
		} else {
			p.swallow(wrapped)
		}
	}
	p.stats.destroyed.Add(1)
}

func (p *Pool[T]) swallow(err error) {
	if p.config.OnSwallowedError != nil {
		p.config.OnSwallowedError(err)
		return
	}
	logger.WarnF("%v", err)
}

// ensureIdle creates and pushes fresh instances until the idle deque holds
// at least target or capacity is exhausted. If always is false, it does
// nothing unless a borrower is currently waiting, so an ordinary Return
// does not pay for maintenance nobody needs yet.
func (p *Pool[T]) ensureIdle(target int, always bool) {
	if !always && p.idle.WaitersLen() == 0 {
		return
	}
	for p.idle.Len() < target {
		w, err := p.create()
		if err != nil {
			logger.WarnF("pool: ensureIdle: %v", err)
			return
		}
		if w == nil {
			return
		}
		if err := p.factory.Passivate(w.Value()); err != nil {
			p.swallow(fmt.Errorf("pool: passivate during ensureIdle failed: %w", err))
			p.destroy(w)
			continue
		}
		p.idlePush(w)
	}
}

// Borrow lends an instance, waiting up to the pool's configured MaxWait (or
// indefinitely if negative) when the pool is exhausted and
// BlockWhenExhausted is true. It fails with ErrPoolClosed, ErrExhausted,
// ErrTimeout, a wrapped factory/activation/validation error, or ctx's error
// if ctx is canceled while waiting.
func (p *Pool[T]) Borrow(ctx context.Context) (T, error) {
	return p.borrow(ctx, p.config.MaxWait)
}

// BorrowTimeout is Borrow with an explicit wait overriding the pool's
// configured MaxWait for this call only.
func (p *Pool[T]) BorrowTimeout(ctx context.Context, wait time.Duration) (T, error) {
	return p.borrow(ctx, wait)
}

func (p *Pool[T]) borrow(ctx context.Context, wait time.Duration) (zero T, err error) {
	if p.closed.Load() {
		return zero, ErrPoolClosed
	}

	if ac := p.config.Abandoned; ac != nil && ac.RemoveAbandonedOnBorrow {
		idle := p.NumIdle()
		active := p.NumActive()
		if idle < 2 && (p.config.MaxTotal < 0 || active > p.config.MaxTotal-3) {
			p.reclaimAbandoned(ac.RemoveAbandonedTimeout)
		}
	}

	for {
		var candidate *PooledObject[T]
		created := false

		if n := p.idlePollNonBlocking(); n != nil {
			candidate = n.Value()
		} else {
			w, cerr := p.create()
			if cerr != nil {
				return zero, cerr
			}
			if w != nil {
				candidate = w
				created = true
			}
		}

		if candidate == nil {
			if !p.config.BlockWhenExhausted {
				return zero, ErrExhausted
			}
			n, ok := p.idleTakeBlocking(ctx, wait)
			if !ok {
				if ctx != nil && ctx.Err() != nil {
					return zero, ctx.Err()
				}
				if p.closed.Load() {
					return zero, ErrPoolClosed
				}
				return zero, ErrTimeout
			}
			candidate = n.Value()
		}

		if !candidate.Allocate() {
			// Lost a race with the evictor (EVICTION/VALIDATION in
			// progress); that candidate backs off to EVICTION_RETURN_TO_HEAD
			// and the evictor will restore it. Try again.
			continue
		}

		if err := p.factory.Activate(candidate.Value()); err != nil {
			p.destroy(candidate)
			if created {
				return zero, fmt.Errorf("%w: %v", ErrUnableToActivate, err)
			}
			continue
		}

		if p.config.TestOnBorrow || (created && p.config.TestOnCreate) {
			if !p.factory.Validate(candidate.Value()) {
				p.destroy(candidate)
				p.stats.destroyedByBorrowValidation.Add(1)
				if created {
					return zero, ErrUnableToValidate
				}
				continue
			}
		}

		p.stats.borrowed.Add(1)
		return candidate.Value(), nil
	}
}

// Return gives value back to the pool. It fails with ErrNotOwned if value
// was never produced by this pool (or has already been destroyed) and
// abandonment detection is disabled; with abandonment enabled, the same
// situation is treated as the detector having already reclaimed the
// instance and is a silent no-op. It fails with ErrMisuse if value is not
// currently ALLOCATED.
func (p *Pool[T]) Return(value T) error {
	w, ok := p.all.Load(any(value))
	if !ok {
		if p.config.Abandoned != nil {
			return nil
		}
		return ErrNotOwned
	}
	wrapper := w.(*PooledObject[T])

	if err := wrapper.MarkReturning(); err != nil {
		return err
	}

	if p.config.TestOnReturn && !p.factory.Validate(value) {
		p.stats.destroyedByReturnValidation.Add(1)
		p.destroy(wrapper)
		p.ensureIdle(1, false)
		return nil
	}

	if err := p.factory.Passivate(value); err != nil {
		p.swallow(fmt.Errorf("pool: passivate failed: %w", err))
		p.destroy(wrapper)
		p.ensureIdle(1, false)
		return nil
	}

	wrapper.Deallocate()

	if p.closed.Load() || (p.config.MaxIdle >= 0 && p.idle.Len() >= p.config.MaxIdle) {
		p.destroy(wrapper)
	} else {
		p.idlePush(wrapper)
	}

	p.stats.returned.Add(1)
	return nil
}

// Invalidate removes value from the pool and destroys it regardless of its
// current state, then tops the idle deque back up by one if a borrower is
// waiting. It fails with ErrNotOwned if value is not tracked by this pool.
func (p *Pool[T]) Invalidate(value T) error {
	w, ok := p.all.Load(any(value))
	if !ok {
		return ErrNotOwned
	}
	wrapper := w.(*PooledObject[T])
	if !wrapper.IsInvalid() {
		p.destroy(wrapper)
	}
	p.ensureIdle(1, false)
	return nil
}

// AddObject creates a fresh instance, passivates it, and places it directly
// into the idle deque without ever being borrowed. It fails with
// ErrPoolClosed once the pool has been closed.
func (p *Pool[T]) AddObject() error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	w, err := p.create()
	if err != nil {
		return err
	}
	if w == nil {
		return ErrExhausted
	}
	if err := p.factory.Passivate(w.Value()); err != nil {
		p.destroy(w)
		return fmt.Errorf("pool: passivate failed: %w", err)
	}
	p.idlePush(w)
	return nil
}

// Clear drains the idle deque, destroying every instance in it. Instances
// currently on loan are unaffected.
func (p *Pool[T]) Clear() {
	errs := errutils.NewMultiErr(nil)
	for {
		n := p.idle.PollFront()
		if n == nil {
			break
		}
		p.destroyInto(n.Value(), errs)
	}
	if errs.HasErrors() {
		p.swallow(errs)
	}
}

// Close shuts the pool down: it stops the evictor, marks the pool closed,
// drains and destroys every idle instance, and wakes every goroutine
// currently blocked in Borrow, which then fails with ErrPoolClosed. It is
// idempotent; calling Close on an already-closed pool is a no-op.
func (p *Pool[T]) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.disarmEvictor()
		p.Clear()
		p.idle.Close()
	})
	return nil
}

// NumIdle returns the current number of instances available for borrowing.
func (p *Pool[T]) NumIdle() int {
	return p.idle.Len()
}

// NumActive returns the current number of instances on loan.
func (p *Pool[T]) NumActive() int {
	return int(p.createCount.Load()) - p.NumIdle()
}

// NumWaiters returns the number of goroutines currently blocked in Borrow
// waiting for an instance.
func (p *Pool[T]) NumWaiters() int {
	return p.idle.WaitersLen()
}

// Stats returns a snapshot of the pool's activity counters.
func (p *Pool[T]) Stats() Stats {
	return p.stats.snapshot()
}

// SetEvictionPolicy swaps the predicate the evictor uses to decide whether
// an idle instance should be destroyed. The default is
// NewDefaultEvictionPolicy; a deployment with different eviction semantics
// (e.g. size-based for a buffer pool) can supply its own.
func (p *Pool[T]) SetEvictionPolicy(policy EvictionPolicy[T]) {
	p.policyMu.Lock()
	defer p.policyMu.Unlock()
	p.policy = policy
}

func (p *Pool[T]) evictionPolicy() EvictionPolicy[T] {
	p.policyMu.RLock()
	defer p.policyMu.RUnlock()
	return p.policy
}
