// Package collections provides generic data structures for Go applications.
//
// The centerpiece is BlockingDeque, a double-ended queue supporting blocking
// and timed takes from either end, used to hold idle pooled objects in LIFO
// or FIFO order. Iterator and Iterable describe weakly consistent traversal
// over a BlockingDeque's current contents, used by the pool's background
// evictor to walk idle candidates without holding a lock for the whole
// sweep.
package collections
