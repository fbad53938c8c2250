package events

import (
	"sync"
	"time"
)

// Notifier tells observers that the shopping list changed and should be
// refetched. It carries no description of the change, only a strictly
// increasing Unix millisecond stamp.
type Notifier struct {
	b   *Broadcaster[int64]
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewNotifier creates a Notifier. A nil clock defaults to time.Now.
func NewNotifier(now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{
		b:   NewBroadcaster[int64](1),
		now: now,
	}
}

// Notify broadcasts a new stamp and returns it.
func (n *Notifier) Notify() int64 {
	n.mu.Lock()
	stamp := n.now().UnixMilli()
	if stamp <= n.last {
		stamp = n.last + 1
	}
	n.last = stamp
	n.b.Publish(stamp)
	n.mu.Unlock()

	return stamp
}

// Last returns the most recent stamp, or 0 if Notify was never called.
func (n *Notifier) Last() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Subscribe registers an observer.
func (n *Notifier) Subscribe() *Subscription[int64] {
	return n.b.Subscribe()
}

// Close closes every observer subscription.
func (n *Notifier) Close() {
	n.b.Close()
}
