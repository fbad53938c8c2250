package events

import (
	"strings"
	"time"
)

// Action identifies the kind of plan mutation that happened.
type Action string

const (
	ActionRecipeAdded   Action = "RECIPE_ADDED"
	ActionRecipeRemoved Action = "RECIPE_REMOVED"
	ActionRecipeEdited  Action = "RECIPE_EDITED"
	ActionPlanCleared   Action = "PLAN_CLEARED"
)

// ParseAction normalizes user input such as "recipe_added" or "recipe-added".
// Unrecognized values are returned as-is so the consumer can decide what to do.
func ParseAction(s string) Action {
	return Action(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
}

// Known reports whether the action is one of the declared plan mutations.
func (a Action) Known() bool {
	switch a {
	case ActionRecipeAdded, ActionRecipeRemoved, ActionRecipeEdited, ActionPlanCleared:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }

// PlanChangeEvent is published after a plan mutation succeeded remotely.
type PlanChangeEvent struct {
	Action       Action
	ModifiedDate *time.Time // day of the plan that changed, when known
	PublishedAt  time.Time
}

// DefaultBufferSize is the per-subscriber queue length of the plan bus.
const DefaultBufferSize = 10

// Bus carries plan mutation events to any number of subscribers.
type Bus struct {
	b   *Broadcaster[PlanChangeEvent]
	now func() time.Time
}

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	size int
	now  func() time.Time
}

// WithBufferSize overrides the per-subscriber buffer length.
func WithBufferSize(n int) BusOption {
	return func(c *busConfig) { c.size = n }
}

// WithClock overrides the clock used to stamp events.
func WithClock(now func() time.Time) BusOption {
	return func(c *busConfig) { c.now = now }
}

// NewBus creates a plan change bus.
func NewBus(opts ...BusOption) *Bus {
	cfg := busConfig{size: DefaultBufferSize, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bus{
		b:   NewBroadcaster[PlanChangeEvent](cfg.size),
		now: cfg.now,
	}
}

// Subscribe registers a new subscriber. Past events are not replayed.
func (b *Bus) Subscribe() *Subscription[PlanChangeEvent] {
	return b.b.Subscribe()
}

// Publish broadcasts evt without waiting for subscribers.
func (b *Bus) Publish(evt PlanChangeEvent) {
	if evt.PublishedAt.IsZero() {
		evt.PublishedAt = b.now()
	}
	b.b.Publish(evt)
}

// NotifyPlanChanged is the entry point for plan mutation sources.
func (b *Bus) NotifyPlanChanged(action Action, modified *time.Time) {
	b.Publish(PlanChangeEvent{Action: action, ModifiedDate: modified})
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	return b.b.Len()
}

// Close closes every subscription.
func (b *Bus) Close() {
	b.b.Close()
}
