// Package objpool provides a generic, concurrent object pool for expensive
// or limited resources (database connections, network sessions, buffers)
// together with the supporting infrastructure it is built on.
//
// The pool itself lives in the pool sub-package; everything else here is
// ambient machinery it depends on:
//
//	import "oss.nandlabs.io/objpool/pool"        // the object pool
//	import "oss.nandlabs.io/objpool/collections" // blocking deque, iterators
//	import "oss.nandlabs.io/objpool/chrono"      // shared background scheduler
//	import "oss.nandlabs.io/objpool/lifecycle"   // component start/stop contract
//	import "oss.nandlabs.io/objpool/errutils"    // multi-error aggregation
//	import "oss.nandlabs.io/objpool/l3"          // structured logging
//
// For a complete list of packages and documentation, see:
// https://pkg.go.dev/oss.nandlabs.io/objpool
package objpool
