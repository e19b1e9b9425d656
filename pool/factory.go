package pool

// Factory is the user-supplied collaborator that creates and disposes the
// instances a Pool manages. Implementations must be safe for concurrent
// use: the pool guarantees at most one Factory method runs against a given
// wrapper at a time, but different wrappers are serviced concurrently.
type Factory[T any] interface {
	// Make creates a brand-new instance.
	Make() (T, error)
	// Destroy disposes of an instance the pool no longer wants. Errors are
	// swallowed by the pool and reported via a SwallowedErrorListener.
	Destroy(value T) error
	// Validate reports whether value is still usable. It must not panic;
	// returning false marks the instance for destruction.
	Validate(value T) bool
	// Activate re-initializes value before it is lent out. An error causes
	// the pool to destroy the instance.
	Activate(value T) error
	// Passivate resets value when it is returned to the idle set. An error
	// causes the pool to destroy the instance.
	Passivate(value T) error
}

// SwallowedErrorListener receives errors that the pool cannot propagate to
// any caller (factory Destroy/Passivate failures encountered during
// background maintenance or on the return path after the caller has moved
// on).
type SwallowedErrorListener func(err error)
