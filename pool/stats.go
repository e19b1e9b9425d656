package pool

import "sync/atomic"

// counters holds the pool's lock-free bookkeeping. All fields are updated
// with atomic operations from borrow/return/evictor/detector paths and read
// out via Pool.Stats without ever taking a lock.
type counters struct {
	created                     atomic.Int64
	destroyed                   atomic.Int64
	borrowed                    atomic.Int64
	returned                    atomic.Int64
	destroyedByEvictor          atomic.Int64
	destroyedByBorrowValidation atomic.Int64
	destroyedByReturnValidation atomic.Int64
	abandoned                   atomic.Int64
}

// Stats is a point-in-time snapshot of a Pool's activity counters. It has no
// dependency on the pool once returned and is safe to retain, log, or ship
// to an external metrics system.
type Stats struct {
	// Created is the number of instances successfully produced by the
	// factory's Make over the pool's lifetime.
	Created int64
	// Destroyed is the number of instances that have gone through Destroy,
	// for any reason (eviction, validation failure, Invalidate, Clear).
	Destroyed int64
	// Borrowed is the number of successful Borrow calls.
	Borrowed int64
	// Returned is the number of successful Return calls.
	Returned int64
	// DestroyedByEvictor counts instances destroyed by the background
	// evictor, either for exceeding an idle-time threshold or failing
	// TestWhileIdle validation.
	DestroyedByEvictor int64
	// DestroyedByBorrowValidation counts instances destroyed because
	// TestOnBorrow/TestOnCreate validation failed.
	DestroyedByBorrowValidation int64
	// DestroyedByReturnValidation counts instances destroyed because
	// TestOnReturn validation failed.
	DestroyedByReturnValidation int64
	// Abandoned counts instances reclaimed by the abandonment detector.
	Abandoned int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Created:                     c.created.Load(),
		Destroyed:                   c.destroyed.Load(),
		Borrowed:                    c.borrowed.Load(),
		Returned:                    c.returned.Load(),
		DestroyedByEvictor:          c.destroyedByEvictor.Load(),
		DestroyedByBorrowValidation: c.destroyedByBorrowValidation.Load(),
		DestroyedByReturnValidation: c.destroyedByReturnValidation.Load(),
		Abandoned:                   c.abandoned.Load(),
	}
}
