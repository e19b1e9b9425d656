package pool

import (
	"sync"
	"time"

	"oss.nandlabs.io/objpool/collections"
)

// State is one of the per-instance lifecycle states a PooledObject may be
// in. Every transition is guarded by the wrapper's own mutex; the
// transition methods on PooledObject define which moves are allowed.
type State int

const (
	StateIdle State = iota
	StateAllocated
	StateEviction
	StateEvictionReturnToHead
	StateValidation
	StateValidationPreallocated
	StateValidationReturnToHead
	StateInvalid
	StateAbandoned
	StateReturning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAllocated:
		return "ALLOCATED"
	case StateEviction:
		return "EVICTION"
	case StateEvictionReturnToHead:
		return "EVICTION_RETURN_TO_HEAD"
	case StateValidation:
		return "VALIDATION"
	case StateValidationPreallocated:
		return "VALIDATION_PREALLOCATED"
	case StateValidationReturnToHead:
		return "VALIDATION_RETURN_TO_HEAD"
	case StateInvalid:
		return "INVALID"
	case StateAbandoned:
		return "ABANDONED"
	case StateReturning:
		return "RETURNING"
	default:
		return "UNKNOWN"
	}
}

// PooledObject wraps a single instance managed by a Pool, carrying its
// state machine, timestamps, and the mutex that serializes every
// transition. A wrapper never holds a reference back to its owning Pool;
// lookup always goes through the pool's all-objects index by value
// identity, so the two never form a reference cycle.
type PooledObject[T any] struct {
	mu sync.Mutex

	value T
	state State

	createTime     time.Time
	lastBorrowTime time.Time
	lastReturnTime time.Time
	lastUseTime    time.Time

	// node is the handle into the idle deque while the wrapper is idle,
	// under eviction test, or under idle validation. nil otherwise.
	node *collections.Node[*PooledObject[T]]
}

func newPooledObject[T any](value T) *PooledObject[T] {
	now := time.Now()
	return &PooledObject[T]{
		value:          value,
		state:          StateIdle,
		createTime:     now,
		lastReturnTime: now,
	}
}

// Value returns the wrapped instance.
func (p *PooledObject[T]) Value() T {
	return p.value
}

// State returns the current lifecycle state.
func (p *PooledObject[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IdleDuration returns how long the instance has been sitting idle,
// measured from its last return (or creation, if never borrowed).
func (p *PooledObject[T]) IdleDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastReturnTime)
}

// ActiveDuration returns how long the instance has been checked out.
func (p *PooledObject[T]) ActiveDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastBorrowTime)
}

// IdleSince (used by the abandonment detector) returns how long it has been
// since the instance was last used by a borrower: its last allocation, since
// this package does not track mid-loan activity beyond borrow time.
func (p *PooledObject[T]) IdleSince() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastUseTime)
}

// CreateTime returns when the wrapper was first created.
func (p *PooledObject[T]) CreateTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createTime
}

func (p *PooledObject[T]) setNode(n *collections.Node[*PooledObject[T]]) {
	p.mu.Lock()
	p.node = n
	p.mu.Unlock()
}

// Allocate attempts to hand the instance to a borrower. It succeeds from
// IDLE. From EVICTION it instead moves to EVICTION_RETURN_TO_HEAD and
// reports failure: the evictor currently testing this instance must finish
// and restore it to the head of the idle deque before it can be borrowed.
func (p *PooledObject[T]) Allocate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateIdle:
		now := time.Now()
		p.state = StateAllocated
		p.lastBorrowTime = now
		p.lastUseTime = now
		p.node = nil
		return true
	case StateEviction:
		p.state = StateEvictionReturnToHead
		return false
	case StateValidation:
		p.state = StateValidationReturnToHead
		return false
	default:
		return false
	}
}

// MarkReturning transitions ALLOCATED to RETURNING, the first step of the
// return protocol. It fails if the caller does not currently hold the
// instance (already returned, invalidated, or never borrowed from here).
func (p *PooledObject[T]) MarkReturning() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateAllocated {
		return ErrMisuse
	}
	p.state = StateReturning
	return nil
}

// Deallocate completes the return protocol, transitioning RETURNING to
// IDLE. It reports whether the transition happened.
func (p *PooledObject[T]) Deallocate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateReturning {
		return false
	}
	p.state = StateIdle
	p.lastReturnTime = time.Now()
	return true
}

// StartEvictionTest attempts to claim the instance for an eviction sweep.
// It succeeds only from IDLE.
func (p *PooledObject[T]) StartEvictionTest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return false
	}
	p.state = StateEviction
	return true
}

// EndEvictionTest releases the instance from an eviction sweep. If a
// concurrent borrow raced with the test (EVICTION_RETURN_TO_HEAD), the
// instance is pushed back onto the head of deque so it is not lost.
func (p *PooledObject[T]) EndEvictionTest(deque *collections.BlockingDeque[*PooledObject[T]]) {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	switch state {
	case StateEviction:
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
	case StateEvictionReturnToHead:
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
		p.setNode(deque.PushFront(p))
	}
}

// BeginIdleValidation moves an instance already under an eviction test into
// idle-validation (testWhileIdle), preserving whether a concurrent borrow
// already asked for it back. It succeeds only from EVICTION or
// EVICTION_RETURN_TO_HEAD.
func (p *PooledObject[T]) BeginIdleValidation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateEviction:
		p.state = StateValidation
		return true
	case StateEvictionReturnToHead:
		p.state = StateValidationReturnToHead
		return true
	default:
		return false
	}
}

// EndIdleValidation is the idle-validation counterpart of EndEvictionTest:
// it releases the instance, restoring it to the head of the deque if a
// borrow raced with the validation.
func (p *PooledObject[T]) EndIdleValidation(deque *collections.BlockingDeque[*PooledObject[T]]) {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	switch state {
	case StateValidation:
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
	case StateValidationReturnToHead:
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
		p.setNode(deque.PushFront(p))
	}
}

// MarkAbandoned transitions ALLOCATED to ABANDONED. It reports whether the
// transition happened; a caller whose borrow already completed its return
// (state no longer ALLOCATED) leaves the wrapper untouched.
func (p *PooledObject[T]) MarkAbandoned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateAllocated {
		return false
	}
	p.state = StateAbandoned
	return true
}

// MarkInvalid transitions the wrapper to INVALID unconditionally and
// returns its current deque handle (nil if it was not idle), so the caller
// can remove it from the idle deque as part of destruction.
func (p *PooledObject[T]) MarkInvalid() *collections.Node[*PooledObject[T]] {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.node
	p.node = nil
	p.state = StateInvalid
	return n
}

// IsInvalid reports whether the wrapper has already been destroyed.
func (p *PooledObject[T]) IsInvalid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateInvalid
}
