package events

import (
	"sync"
	"sync/atomic"
)

// Broadcaster fans values out to every live subscription without replay.
// Publish never blocks: a subscriber whose buffer is full loses its oldest
// queued value so the newest one can be admitted.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	size   int
	closed bool
}

// NewBroadcaster creates a Broadcaster whose subscriptions buffer up to size values.
func NewBroadcaster[T any](size int) *Broadcaster[T] {
	if size < 1 {
		size = 1
	}
	return &Broadcaster[T]{
		subs: make(map[*Subscription[T]]struct{}),
		size: size,
	}
}

// Subscription is a single subscriber's view of a Broadcaster.
type Subscription[T any] struct {
	ch      chan T
	owner   *Broadcaster[T]
	dropped atomic.Uint64
	once    sync.Once
}

// C returns the channel values are delivered on. It is closed when the
// subscription or its broadcaster is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Dropped returns how many values were discarded because the buffer was full.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.owner.remove(s)
}

// Subscribe registers a new subscriber. Values published before this call are
// never delivered to it. Subscribing to a closed broadcaster yields an
// already-closed subscription.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		ch:    make(chan T, b.size),
		owner: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers v to every current subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		sub.offer(v)
	}
}

// Len returns the number of live subscriptions.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription and turns Publish into a no-op.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subs, sub)
	}
}

func (b *Broadcaster[T]) remove(s *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}

// offer is only called with the broadcaster lock held, so the receiver is the
// sole competitor for the buffer.
func (s *Subscription[T]) offer(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}
