// Package chrono provides a small in-process task scheduler used to drive
// periodic background work (fixed-interval ticks, delayed one-shot checks)
// without dedicating an OS thread to every caller.
//
// A single Scheduler is meant to be shared by many independent callers; see
// Acquire and Release for a reference-counted default instance.
package chrono
