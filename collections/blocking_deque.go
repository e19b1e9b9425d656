package collections

import (
	"context"
	"sync"
	"time"
)

// Node is a handle to a value stored in a BlockingDeque. Holding on to a
// Node after it was produced by a push lets a caller remove that exact
// element later in O(1), without needing T to be comparable.
type Node[T any] struct {
	value   T
	prev    *Node[T]
	next    *Node[T]
	deque   *BlockingDeque[T]
	removed bool
}

// Value returns the element wrapped by this node.
func (n *Node[T]) Value() T {
	return n.value
}

type waiter[T any] struct {
	ch chan *Node[T]
}

// BlockingDeque is a concurrent, unbounded, doubly-linked double-ended
// queue. Waiters blocked in TakeFirstWithTimeout/TakeLastWithTimeout form a
// FIFO queue: the longest-waiting taker is handed the next pushed element
// before any later waiter, though a concurrent non-blocking Poll may still
// win the race for that element since it never joins the wait queue.
//
// Iterator and DescendingIterator give a weakly consistent view: concurrent
// pushes may or may not be observed, and nodes removed mid-iteration are
// skipped rather than causing a failure.
type BlockingDeque[T any] struct {
	mu      sync.Mutex
	head    *Node[T]
	tail    *Node[T]
	size    int
	waiters []*waiter[T]
	closed  bool
}

// NewBlockingDeque creates an empty BlockingDeque.
func NewBlockingDeque[T any]() *BlockingDeque[T] {
	return &BlockingDeque[T]{}
}

// Len returns the current number of elements.
func (d *BlockingDeque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// HasTakeWaiters reports whether any goroutine is currently blocked waiting
// for an element.
func (d *BlockingDeque[T]) HasTakeWaiters() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters) > 0
}

// WaitersLen returns the number of goroutines currently blocked waiting for
// an element.
func (d *BlockingDeque[T]) WaitersLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}

func (d *BlockingDeque[T]) linkFront(n *Node[T]) {
	n.deque = d
	n.removed = false
	n.prev = nil
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	} else {
		d.tail = n
	}
	d.head = n
	d.size++
}

func (d *BlockingDeque[T]) linkBack(n *Node[T]) {
	n.deque = d
	n.removed = false
	n.next = nil
	n.prev = d.tail
	if d.tail != nil {
		d.tail.next = n
	} else {
		d.head = n
	}
	d.tail = n
	d.size++
}

// unlink splices n out of the list. It deliberately leaves n.prev/n.next
// pointing at their last-known neighbors (rather than nilling them) so that
// an iterator currently sitting on n can still walk past it; see Iterator.
func (d *BlockingDeque[T]) unlink(n *Node[T]) {
	if n.deque != d || n.removed {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else if d.head == n {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if d.tail == n {
		d.tail = n.prev
	}
	n.removed = true
	d.size--
}

// wakeOneWaiter hands off the just-inserted node to the longest-waiting
// taker, if any, removing it from the deque in the same step. Must be
// called with d.mu held; returns true if a waiter consumed the node.
func (d *BlockingDeque[T]) wakeOneWaiter(n *Node[T]) bool {
	if len(d.waiters) == 0 {
		return false
	}
	w := d.waiters[0]
	d.waiters = d.waiters[1:]
	d.unlink(n)
	w.ch <- n
	return true
}

// PushFront inserts v at the head of the deque.
func (d *BlockingDeque[T]) PushFront(v T) *Node[T] {
	d.mu.Lock()
	n := &Node[T]{value: v}
	d.linkFront(n)
	d.wakeOneWaiter(n)
	d.mu.Unlock()
	return n
}

// PushBack inserts v at the tail of the deque.
func (d *BlockingDeque[T]) PushBack(v T) *Node[T] {
	d.mu.Lock()
	n := &Node[T]{value: v}
	d.linkBack(n)
	d.wakeOneWaiter(n)
	d.mu.Unlock()
	return n
}

// PollFront removes and returns the head node, or nil if the deque is empty.
func (d *BlockingDeque[T]) PollFront() *Node[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.head
	if n == nil {
		return nil
	}
	d.unlink(n)
	return n
}

// PollBack removes and returns the tail node, or nil if the deque is empty.
func (d *BlockingDeque[T]) PollBack() *Node[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.tail
	if n == nil {
		return nil
	}
	d.unlink(n)
	return n
}

// Remove removes a specific node from the deque. It is a no-op if the node
// is nil or no longer belongs to this deque (already popped or removed).
func (d *BlockingDeque[T]) Remove(n *Node[T]) {
	if n == nil || n.removed {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unlink(n)
}

// TakeFirstWithTimeout removes and returns the head node, blocking until one
// is available, the deque is closed, or the timeout elapses. A negative
// timeout waits indefinitely. ok is false on timeout or close.
func (d *BlockingDeque[T]) TakeFirstWithTimeout(timeout time.Duration) (n *Node[T], ok bool) {
	d.mu.Lock()
	if n := d.head; n != nil {
		d.unlink(n)
		d.mu.Unlock()
		return n, true
	}
	if d.closed {
		d.mu.Unlock()
		return nil, false
	}

	w := &waiter[T]{ch: make(chan *Node[T], 1)}
	d.waiters = append(d.waiters, w)
	d.mu.Unlock()

	if timeout < 0 {
		n, ok := <-w.ch
		return n, ok && n != nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case n, ok := <-w.ch:
		return n, ok && n != nil
	case <-timer.C:
		d.removeWaiter(w)
		return nil, false
	}
}

// TakeLastWithTimeout removes and returns the tail node, blocking until one
// is available, the deque is closed, or the timeout elapses. A negative
// timeout waits indefinitely. ok is false on timeout or close. It shares the
// same FIFO waiter queue as TakeFirstWithTimeout: whichever end produces the
// next element, the longest-waiting taker (of either kind) receives it.
func (d *BlockingDeque[T]) TakeLastWithTimeout(timeout time.Duration) (n *Node[T], ok bool) {
	d.mu.Lock()
	if n := d.tail; n != nil {
		d.unlink(n)
		d.mu.Unlock()
		return n, true
	}
	if d.closed {
		d.mu.Unlock()
		return nil, false
	}

	w := &waiter[T]{ch: make(chan *Node[T], 1)}
	d.waiters = append(d.waiters, w)
	d.mu.Unlock()

	if timeout < 0 {
		n, ok := <-w.ch
		return n, ok && n != nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case n, ok := <-w.ch:
		return n, ok && n != nil
	case <-timer.C:
		d.removeWaiter(w)
		return nil, false
	}
}

// TakeFirstCtx is TakeFirstWithTimeout additionally cancellable via ctx. If
// ctx is done before an element or the timeout arrives, the pending wait is
// retracted cleanly (no element is lost to a waiter nobody is watching
// anymore) and ok is false.
func (d *BlockingDeque[T]) TakeFirstCtx(ctx context.Context, timeout time.Duration) (n *Node[T], ok bool) {
	return d.takeCtx(ctx, timeout, false)
}

// TakeLastCtx is TakeLastWithTimeout additionally cancellable via ctx.
func (d *BlockingDeque[T]) TakeLastCtx(ctx context.Context, timeout time.Duration) (n *Node[T], ok bool) {
	return d.takeCtx(ctx, timeout, true)
}

func (d *BlockingDeque[T]) takeCtx(ctx context.Context, timeout time.Duration, fromTail bool) (n *Node[T], ok bool) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}
	}

	d.mu.Lock()
	var head *Node[T]
	if fromTail {
		head = d.tail
	} else {
		head = d.head
	}
	if head != nil {
		d.unlink(head)
		d.mu.Unlock()
		return head, true
	}
	if d.closed {
		d.mu.Unlock()
		return nil, false
	}

	w := &waiter[T]{ch: make(chan *Node[T], 1)}
	d.waiters = append(d.waiters, w)
	d.mu.Unlock()

	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}

	if timeout < 0 {
		select {
		case n, ok := <-w.ch:
			return n, ok && n != nil
		case <-ctxDone:
			d.removeWaiter(w)
			return nil, false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case n, ok := <-w.ch:
		return n, ok && n != nil
	case <-timer.C:
		d.removeWaiter(w)
		return nil, false
	case <-ctxDone:
		d.removeWaiter(w)
		return nil, false
	}
}

func (d *BlockingDeque[T]) removeWaiter(w *waiter[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.waiters {
		if cur == w {
			d.waiters = append(d.waiters[:i], d.waiters[i+1:]...)
			return
		}
	}
	// Already handed an element between the timer firing and this lock;
	// drain it so the node isn't lost.
	select {
	case n := <-w.ch:
		if n != nil {
			d.linkFront(n)
		}
	default:
	}
}

// InterruptTakers wakes every currently blocked taker with a failed result.
// It does not prevent new takers from blocking afterwards; callers that
// want to permanently stop taking should use Close.
func (d *BlockingDeque[T]) InterruptTakers() {
	d.mu.Lock()
	waiters := d.waiters
	d.waiters = nil
	d.mu.Unlock()

	for _, w := range waiters {
		w.ch <- nil
	}
}

// Close marks the deque closed: all current and future blocked takers
// immediately receive a failed result instead of waiting.
func (d *BlockingDeque[T]) Close() {
	d.mu.Lock()
	d.closed = true
	waiters := d.waiters
	d.waiters = nil
	d.mu.Unlock()

	for _, w := range waiters {
		w.ch <- nil
	}
}

// dequeIterator walks the stale prev/next chain left behind by unlink, so a
// node removed after the iterator passed it (or even the node currently
// under the cursor) never breaks traversal: removed nodes are simply
// skipped over using the pointers they had at the moment of removal.
type dequeIterator[T any] struct {
	d          *BlockingDeque[T]
	peek       *Node[T]
	last       *Node[T]
	descending bool
	started    bool
}

// Iterator returns a weakly consistent iterator from head to tail.
func (d *BlockingDeque[T]) Iterator() Iterator[T] {
	return &dequeIterator[T]{d: d}
}

// DescendingIterator returns a weakly consistent iterator from tail to head.
func (d *BlockingDeque[T]) DescendingIterator() Iterator[T] {
	return &dequeIterator[T]{d: d, descending: true}
}

func (it *dequeIterator[T]) step(n *Node[T]) *Node[T] {
	if it.descending {
		return n.prev
	}
	return n.next
}

func (it *dequeIterator[T]) HasNext() bool {
	it.d.mu.Lock()
	defer it.d.mu.Unlock()

	if !it.started {
		it.started = true
		if it.descending {
			it.peek = it.d.tail
		} else {
			it.peek = it.d.head
		}
	}
	for it.peek != nil && it.peek.removed {
		it.peek = it.step(it.peek)
	}
	return it.peek != nil
}

func (it *dequeIterator[T]) Next() T {
	it.d.mu.Lock()
	defer it.d.mu.Unlock()

	v := it.peek.value
	it.last = it.peek
	it.peek = it.step(it.peek)
	return v
}

// Remove removes the element most recently returned by Next from the deque.
func (it *dequeIterator[T]) Remove() {
	if it.last == nil {
		return
	}
	it.d.Remove(it.last)
	it.last = nil
}
