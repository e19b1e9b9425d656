// Package pool provides a generic, concurrent object pool for expensive or
// limited resources.
//
// It supports configurable capacity (max total, min/max idle), blocking
// or failing borrow semantics, LIFO/FIFO reuse order, validation on create,
// borrow, return, and idle (testOnCreate/testOnBorrow/testOnReturn/
// testWhileIdle), background eviction of stale idle instances, and
// detection of instances a caller borrowed and never returned.
//
// Every instance a Pool manages is wrapped in a PooledObject carrying a
// small per-instance state machine; see object.go for the full set of
// states and the invariants each transition preserves. Background
// maintenance (eviction and abandonment detection) runs as a recurring job
// on the process's shared oss.nandlabs.io/objpool/chrono scheduler, so many
// pools in the same process do not each need a dedicated goroutine.
// EvictorStatus reports that job's run history, and PauseEvictor/
// ResumeEvictor suspend it without tearing down the scheduler registration.
package pool
