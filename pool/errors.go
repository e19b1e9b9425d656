package pool

import "errors"

// ErrPoolClosed is returned by borrow/addObject once the pool has been closed.
var ErrPoolClosed = errors.New("pool: closed")

// ErrExhausted is returned by a non-blocking borrow when no instance is
// available and capacity is already at maxTotal.
var ErrExhausted = errors.New("pool: exhausted")

// ErrTimeout is returned by a blocking borrow whose wait exceeded maxWait.
var ErrTimeout = errors.New("pool: timeout waiting for an idle object")

// ErrUnableToActivate is returned when borrow created a fresh instance but
// the factory's Activate call on it failed.
var ErrUnableToActivate = errors.New("pool: unable to activate newly created object")

// ErrUnableToValidate is returned when borrow created a fresh instance but
// the factory's Validate call on it failed.
var ErrUnableToValidate = errors.New("pool: unable to validate newly created object")

// ErrNotOwned is returned by Return/Invalidate when the value was never
// produced by this pool or has already been destroyed (invalidated, evicted,
// or cleared).
var ErrNotOwned = errors.New("pool: object not currently part of this pool")

// ErrMisuse is returned by Return when the object is not in the ALLOCATED
// state (double return, or return of an object still under validation).
var ErrMisuse = errors.New("pool: object has already been returned or is not owned for return")
