// Package live provides a replayable value signal: one source of truth with
// any number of subscribers. Consecutive duplicate values are suppressed at
// Set, and each subscriber sees the current value first, then changes.
//
// Delivery is latest-wins: a slow subscriber may skip intermediate values
// but always converges on the current one.
package live

import (
	"context"
	"sync"
)

// Value holds a comparable value and broadcasts its changes.
type Value[T comparable] struct {
	mu   sync.Mutex
	cur  T
	subs map[*subscriber[T]]struct{}
}

type subscriber[T comparable] struct {
	ch chan T
}

// New returns a Value seeded with initial.
func New[T comparable](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[*subscriber[T]]struct{}),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set stores x and notifies subscribers. It returns false, and notifies
// nobody, when x equals the current value.
func (v *Value[T]) Set(x T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if x == v.cur {
		return false
	}
	v.cur = x
	for s := range v.subs {
		s.offer(x)
	}
	return true
}

// Subscribe returns a channel that receives the current value immediately
// and every later change. The channel is closed once ctx is done.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	s := &subscriber[T]{ch: make(chan T, 1)}

	v.mu.Lock()
	s.ch <- v.cur
	v.subs[s] = struct{}{}
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, s)
		close(s.ch)
		v.mu.Unlock()
	}()
	return s.ch
}

// Subscribers reports how many subscriptions are live.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// offer replaces any undelivered value with x. Callers hold the Value lock,
// so offer is the only sender and the second send never blocks.
func (s *subscriber[T]) offer(x T) {
	select {
	case s.ch <- x:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- x
}
