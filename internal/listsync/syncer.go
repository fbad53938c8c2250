// Package listsync keeps the remote shopping list in line with the meal plan.
//
// A Syncer consumes plan change events one at a time. When a recipe is added
// the list is regenerated for the week and the items the user typed in by hand
// are put back; for every other known mutation the list is only refetched.
// Either way observers are told to refetch through the update notifier.
package listsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"meal-planner-sync/internal/events"
	"meal-planner-sync/internal/planner"
	"meal-planner-sync/internal/shopping"
)

// ErrAlreadyStarted is returned by Start on a running Syncer.
var ErrAlreadyStarted = errors.New("syncer already started")

// EventSource is where plan change events come from.
type EventSource interface {
	Subscribe() *events.Subscription[events.PlanChangeEvent]
}

// UpdateNotifier tells observers to refetch the shopping list.
type UpdateNotifier interface {
	Notify() int64
}

// Recorder persists outcomes.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Observer is called synchronously after every run.
type Observer interface {
	Observe(o Outcome)
}

// WeekAnchor selects which week a RECIPE_ADDED regeneration targets.
type WeekAnchor int

const (
	// AnchorToday regenerates the week containing the current day.
	AnchorToday WeekAnchor = iota
	// AnchorEventDate regenerates the week of the changed plan day, falling
	// back to today when the event carries no date.
	AnchorEventDate
)

// Syncer reconciles the shopping list after plan changes.
type Syncer struct {
	store      shopping.Store
	source     EventSource
	notifier   UpdateNotifier
	classifier *shopping.Classifier
	recorder   Recorder
	observers  []Observer
	anchor     WeekAnchor
	now        func() time.Time
	logger     zerolog.Logger

	outcomes chan Outcome

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	sub     *events.Subscription[events.PlanChangeEvent]
	last    *Outcome

	stage     atomic.Value // Stage
	processed atomic.Uint64
	failures  atomic.Uint64
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClassifier overrides the manual item classifier.
func WithClassifier(c *shopping.Classifier) Option {
	return func(s *Syncer) { s.classifier = c }
}

// WithWeekAnchor selects the regeneration week.
func WithWeekAnchor(a WeekAnchor) Option {
	return func(s *Syncer) { s.anchor = a }
}

// WithClock overrides the clock used for week ranges and timings.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithLogger overrides the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithRecorder persists every outcome.
func WithRecorder(r Recorder) Option {
	return func(s *Syncer) { s.recorder = r }
}

// WithObserver registers a hook run after every outcome.
func WithObserver(o Observer) Option {
	return func(s *Syncer) { s.observers = append(s.observers, o) }
}

// WithOutcomeBuffer sets the length of the Outcomes channel buffer.
func WithOutcomeBuffer(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.outcomes = make(chan Outcome, n)
		}
	}
}

// New creates a Syncer. It does nothing until Start is called.
func New(store shopping.Store, source EventSource, notifier UpdateNotifier, opts ...Option) *Syncer {
	s := &Syncer{
		store:      store,
		source:     source,
		notifier:   notifier,
		classifier: shopping.NewClassifier(nil),
		anchor:     AnchorToday,
		now:        time.Now,
		logger:     log.With().Str("component", "listsync").Logger(),
		outcomes:   make(chan Outcome, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stage.Store(StageIdle)
	return s
}

// Start subscribes to the event source and processes events until ctx is
// cancelled, Stop is called or the source is closed.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.sub = s.source.Subscribe()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, s.sub, s.done)

	s.logger.Info().Msg("shopping list sync started")
	return nil
}

// Stop cancels the loop and waits for the in-flight run to return.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info().Msg("shopping list sync stopped")
}

// Done is closed when the current loop exits. It is nil before the first Start.
func (s *Syncer) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Outcomes delivers every outcome. Outcomes are dropped when nobody reads
// fast enough; LastOutcome and Health always reflect the latest run.
func (s *Syncer) Outcomes() <-chan Outcome {
	return s.outcomes
}

// LastOutcome returns the most recent outcome, if any.
func (s *Syncer) LastOutcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

// Health reports the syncer state.
func (s *Syncer) Health() Health {
	s.mu.Lock()
	h := Health{
		Running: s.running,
	}
	if s.sub != nil {
		h.Dropped = s.sub.Dropped()
	}
	if s.last != nil {
		last := *s.last
		h.Last = &last
	}
	s.mu.Unlock()

	h.Stage = s.stage.Load().(Stage)
	h.Processed = s.processed.Load()
	h.Failures = s.failures.Load()
	return h
}

func (s *Syncer) run(ctx context.Context, sub *events.Subscription[events.PlanChangeEvent], done chan struct{}) {
	defer func() {
		sub.Close()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C():
			if !ok {
				s.logger.Warn().Msg("plan event source closed")
				return
			}
			s.Handle(ctx, evt)
		}
	}
}

// Handle runs one reconciliation for evt and returns its outcome. Errors are
// logged and reported in the outcome, never returned to the publisher.
func (s *Syncer) Handle(ctx context.Context, evt events.PlanChangeEvent) Outcome {
	out := Outcome{
		RunID:     uuid.NewString(),
		Action:    evt.Action,
		Stage:     StageIdle,
		StartedAt: s.now(),
	}
	logger := s.logger.With().Str("run_id", out.RunID).Str("action", evt.Action.String()).Logger()

	switch evt.Action {
	case events.ActionRecipeAdded:
		s.reconcile(ctx, evt, &out, logger)
	case events.ActionRecipeRemoved, events.ActionRecipeEdited, events.ActionPlanCleared:
		s.refetch(ctx, &out, logger)
	default:
		out.Status = StatusSkipped
		logger.Info().Msg("ignoring unrecognized plan action")
	}

	out.Duration = s.now().Sub(out.StartedAt)
	s.setStage(StageIdle)
	s.finish(ctx, out, logger)
	return out
}

// reconcile regenerates the week and puts manual items back.
func (s *Syncer) reconcile(ctx context.Context, evt events.PlanChangeEvent, out *Outcome, logger zerolog.Logger) {
	s.enter(out, StageFetchingCurrent)
	current, err := s.store.Current(ctx)
	if err != nil {
		s.fail(out, err)
		logger.Error().Err(err).Msg("failed to fetch current shopping list, skipping regeneration")
		return
	}

	s.enter(out, StageClassifying)
	manual := s.classifier.ManualItems(current)
	out.ManualFound = len(manual)

	s.enter(out, StageRegenerating)
	start, end := planner.WeekRange(s.anchorDay(evt))
	out.WeekStart = start.Format(planner.DateLayout)
	if _, err := s.store.GenerateForWeek(ctx, start, end); err != nil {
		s.fail(out, err)
		logger.Error().Err(err).Str("week_start", out.WeekStart).Msg("failed to regenerate shopping list")
		return
	}

	s.enter(out, StageReinsertingManual)
	for _, m := range manual {
		item := m.ToNewItem()
		if err := s.store.AddItem(ctx, item); err != nil {
			out.ReinsertFailed++
			if out.Error == "" {
				out.Error = err.Error()
			}
			logger.Warn().Err(err).Str("item", m.Name).Str("unit", item.Unit).Msg("failed to re-add manual item")
			continue
		}
		out.Reinserted++
	}

	s.enter(out, StageNotifying)
	s.notifier.Notify()
	out.Notified = true

	out.Status = StatusSucceeded
	if out.ReinsertFailed > 0 {
		out.Status = StatusPartial
	}
	logger.Info().
		Str("week_start", out.WeekStart).
		Int("manual", out.ManualFound).
		Int("reinserted", out.Reinserted).
		Int("reinsert_failed", out.ReinsertFailed).
		Msg("shopping list regenerated")
}

// refetch confirms the list is reachable and tells observers to reload it.
func (s *Syncer) refetch(ctx context.Context, out *Outcome, logger zerolog.Logger) {
	s.enter(out, StageRefetching)
	if _, err := s.store.Current(ctx); err != nil {
		s.fail(out, err)
		logger.Error().Err(err).Msg("failed to refetch shopping list")
		return
	}

	s.enter(out, StageNotifying)
	s.notifier.Notify()
	out.Notified = true
	out.Status = StatusSucceeded
	logger.Debug().Msg("shopping list refetched")
}

func (s *Syncer) anchorDay(evt events.PlanChangeEvent) time.Time {
	if s.anchor == AnchorEventDate && evt.ModifiedDate != nil {
		return *evt.ModifiedDate
	}
	return s.now()
}

func (s *Syncer) enter(out *Outcome, st Stage) {
	out.Stage = st
	s.setStage(st)
}

func (s *Syncer) setStage(st Stage) {
	s.stage.Store(st)
}

func (s *Syncer) fail(out *Outcome, err error) {
	out.Status = StatusFailed
	out.Error = err.Error()
}

func (s *Syncer) finish(ctx context.Context, out Outcome, logger zerolog.Logger) {
	s.processed.Add(1)
	if out.Failed() {
		s.failures.Add(1)
	}

	s.mu.Lock()
	s.last = &out
	s.mu.Unlock()

	for _, o := range s.observers {
		o.Observe(out)
	}

	if s.recorder != nil {
		// Recorded even when the run context was cancelled.
		if err := s.recorder.Record(context.WithoutCancel(ctx), out); err != nil {
			logger.Warn().Err(err).Msg("failed to record sync outcome")
		}
	}

	select {
	case s.outcomes <- out:
	default:
	}
}
