package listsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-planner-sync/internal/events"
	"meal-planner-sync/internal/shopping"
)

func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }

// fakeStore is an in-memory shopping.Store. Generating replaces the list with
// the recipe-derived items; AddItem appends to the manual category.
type fakeStore struct {
	mu sync.Mutex

	list     shopping.List
	derived  []shopping.Item
	failGet  bool
	failGen  bool
	failAdds map[string]bool

	getCalls  int
	genCalls  int
	genRanges [][2]time.Time
	added     []shopping.NewItem
}

func newFakeStore(list shopping.List, derived []shopping.Item) *fakeStore {
	return &fakeStore{list: list, derived: derived, failAdds: map[string]bool{}}
}

func (f *fakeStore) Current(context.Context) (shopping.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGet {
		return shopping.List{}, errors.New("network unreachable")
	}
	return f.list, nil
}

func (f *fakeStore) GenerateForWeek(_ context.Context, start, end time.Time) (shopping.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	f.genRanges = append(f.genRanges, [2]time.Time{start, end})
	if f.failGen {
		return shopping.List{}, errors.New("status 500")
	}
	byCat := map[string][]shopping.Item{}
	for _, item := range f.derived {
		byCat[item.CategoryText()] = append(byCat[item.CategoryText()], item)
	}
	f.list = shopping.List{ItemsByCategory: byCat}
	return f.list, nil
}

func (f *fakeStore) AddItem(_ context.Context, item shopping.NewItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdds[item.CustomName] {
		return errors.New("status 409")
	}
	f.added = append(f.added, item)
	unit := item.Unit
	cat := item.Category
	if f.list.ItemsByCategory == nil {
		f.list.ItemsByCategory = map[string][]shopping.Item{}
	}
	f.list.ItemsByCategory[cat] = append(f.list.ItemsByCategory[cat], shopping.Item{
		Name: item.CustomName, Amount: item.Amount, Unit: &unit, Category: &cat,
	})
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Notify() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	return int64(n.count)
}

func (n *countingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

type memRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *memRecorder) Record(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func initialList() shopping.List {
	return shopping.List{ItemsByCategory: map[string][]shopping.Item{
		"Lácteos": {
			{ID: "1", Name: "Leche", Amount: floatPtr(2), Unit: strPtr("2 cartón"), Category: strPtr("Lácteos")},
		},
		"Verduras": {
			{ID: "2", Name: "Tomate", Amount: floatPtr(3), Unit: strPtr("unidades"), Category: strPtr("Verduras")},
		},
		"Otros": {
			{ID: "3", Name: "Huevos", Amount: floatPtr(1), Unit: strPtr("1 docena"), Category: strPtr("Otros")},
			{ID: "4", Name: "Arroz", Amount: floatPtr(1), Unit: strPtr("1 kg"), Category: strPtr("Otros")},
		},
	}}
}

func derivedItems() []shopping.Item {
	return []shopping.Item{
		{ID: "10", Name: "Tomate", Amount: floatPtr(5), Unit: strPtr("unidades"), Category: strPtr("Verduras")},
		{ID: "11", Name: "Pasta", Amount: floatPtr(500), Unit: strPtr("g"), Category: strPtr("Despensa")},
	}
}

// Wednesday 8 May 2024; its week runs 6..12 May.
var wednesday = time.Date(2024, 5, 8, 18, 30, 0, 0, time.UTC)

func newTestSyncer(store shopping.Store, n UpdateNotifier, opts ...Option) *Syncer {
	base := []Option{
		WithClock(func() time.Time { return wednesday }),
		WithLogger(zerolog.Nop()),
	}
	return New(store, events.NewBus(), n, append(base, opts...)...)
}

func TestRecipeAddedPreservesManualItems(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	notifier := &countingNotifier{}
	s := newTestSyncer(store, notifier)

	before, _ := shopping.NewClassifier(nil).Partition(store.list)

	out := s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded})

	assert.Equal(t, StatusSucceeded, out.Status)
	assert.Equal(t, 3, out.ManualFound)
	assert.Equal(t, 3, out.Reinserted)
	assert.True(t, out.Notified)
	assert.Equal(t, "2024-05-06", out.WeekStart)
	assert.Equal(t, 1, notifier.Count())

	for _, item := range before {
		_, ok := store.list.Find(item.Name)
		assert.True(t, ok, "manual item %s lost during reconciliation", item.Name)
	}

	// Recipe-derived items come from the regenerated list.
	_, ok := store.list.Find("Pasta")
	assert.True(t, ok)
}

func TestRepeatedRecipeAddedKeepsManualItems(t *testing.T) {
	list := initialList()
	list.ItemsByCategory["Otros"] = append(list.ItemsByCategory["Otros"],
		shopping.Item{ID: "5", Name: "Pan", Unit: strPtr("Comprar"), Category: strPtr("Otros")})

	store := newFakeStore(list, derivedItems())
	notifier := &countingNotifier{}
	s := newTestSyncer(store, notifier)

	manual := []string{"Leche", "Huevos", "Arroz", "Pan"}
	for cycle := 1; cycle <= 3; cycle++ {
		out := s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded})
		require.Equal(t, StatusSucceeded, out.Status, "cycle %d", cycle)
		assert.Equal(t, len(manual), out.ManualFound, "cycle %d", cycle)
		assert.Equal(t, len(manual), out.Reinserted, "cycle %d", cycle)

		for _, name := range manual {
			n := 0
			for _, item := range store.list.Items() {
				if item.Name == name {
					n++
				}
			}
			assert.Equal(t, 1, n, "cycle %d: %s should be on the list exactly once", cycle, name)
		}
	}

	pan, ok := store.list.Find("Pan")
	require.True(t, ok)
	assert.Equal(t, "Comprar", pan.UnitText())
	leche, _ := store.list.Find("Leche")
	assert.Equal(t, "cartón", leche.UnitText())
	assert.Equal(t, 3, notifier.Count())
	assert.Equal(t, 3, store.genCalls)
}

func TestLecheExample(t *testing.T) {
	store := newFakeStore(shopping.List{ItemsByCategory: map[string][]shopping.Item{
		"Lácteos": {{Name: "Leche", Unit: strPtr("2 cartón"), Category: strPtr("Lácteos")}},
	}}, derivedItems())
	s := newTestSyncer(store, &countingNotifier{})

	s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded})

	leche, ok := store.list.Find("Leche")
	require.True(t, ok)
	assert.Equal(t, shopping.ManualCategory, leche.CategoryText())
	assert.Equal(t, "cartón", leche.UnitText())
}

func TestRegeneratesTodaysWeek(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	s := newTestSyncer(store, &countingNotifier{})

	nextWeek := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded, ModifiedDate: &nextWeek})

	require.Len(t, store.genRanges, 1)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), store.genRanges[0][0])
	assert.Equal(t, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), store.genRanges[0][1])
}

func TestRegeneratesEventWeekWhenAnchored(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	s := newTestSyncer(store, &countingNotifier{}, WithWeekAnchor(AnchorEventDate))

	nextWeek := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	out := s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded, ModifiedDate: &nextWeek})
	assert.Equal(t, "2024-05-13", out.WeekStart)

	out = s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded})
	assert.Equal(t, "2024-05-06", out.WeekStart, "events without a date fall back to today")
}

func TestRefetchActionsNeverRegenerate(t *testing.T) {
	for _, action := range []events.Action{events.ActionRecipeRemoved, events.ActionRecipeEdited, events.ActionPlanCleared} {
		t.Run(action.String(), func(t *testing.T) {
			store := newFakeStore(initialList(), derivedItems())
			notifier := &countingNotifier{}
			s := newTestSyncer(store, notifier)

			out := s.Handle(context.Background(), events.PlanChangeEvent{Action: action})

			assert.Equal(t, StatusSucceeded, out.Status)
			assert.Equal(t, 0, store.genCalls)
			assert.Equal(t, 1, store.getCalls)
			assert.Empty(t, store.added)
			assert.Equal(t, 1, notifier.Count())
		})
	}
}

func TestRefetchFailureDoesNotNotify(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	store.failGet = true
	notifier := &countingNotifier{}
	s := newTestSyncer(store, notifier)

	out := s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeRemoved})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageRefetching, out.Stage)
	assert.Zero(t, notifier.Count())
}

func TestFetchFailureAbortsReconciliation(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	store.failGet = true
	notifier := &countingNotifier{}
	s := newTestSyncer(store, notifier)

	out := s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageFetchingCurrent, out.Stage)
	assert.Contains(t, out.Error, "network unreachable")
	assert.Zero(t, store.genCalls)
	assert.Zero(t, notifier.Count())
}

func TestRegenerationFailureAbortsReconciliation(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	store.failGen = true
	notifier := &countingNotifier{}
	s := newTestSyncer(store, notifier)

	out := s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageRegenerating, out.Stage)
	assert.Empty(t, store.added)
	assert.Zero(t, notifier.Count())
}

func TestReinsertFailureIsIsolated(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	store.failAdds["Huevos"] = true
	notifier := &countingNotifier{}
	s := newTestSyncer(store, notifier)

	out := s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeAdded})

	assert.Equal(t, StatusPartial, out.Status)
	assert.Equal(t, 3, out.ManualFound)
	assert.Equal(t, 2, out.Reinserted)
	assert.Equal(t, 1, out.ReinsertFailed)
	assert.Equal(t, 1, notifier.Count())

	_, ok := store.list.Find("Arroz")
	assert.True(t, ok, "items after the failed one are still re-added")
}

func TestUnknownActionIsSkipped(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	notifier := &countingNotifier{}
	s := newTestSyncer(store, notifier)

	out := s.Handle(context.Background(), events.PlanChangeEvent{Action: "FAVORITE_ADDED"})

	assert.Equal(t, StatusSkipped, out.Status)
	assert.Zero(t, store.getCalls)
	assert.Zero(t, notifier.Count())
}

func TestOutcomesAreRecordedAndObservable(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	rec := &memRecorder{}
	s := newTestSyncer(store, &countingNotifier{}, WithRecorder(rec), WithOutcomeBuffer(4))

	out := s.Handle(context.Background(), events.PlanChangeEvent{Action: events.ActionRecipeEdited})

	select {
	case got := <-s.Outcomes():
		assert.Equal(t, out.RunID, got.RunID)
	default:
		t.Fatal("expected an outcome on the channel")
	}

	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, out.RunID, rec.outcomes[0].RunID)

	last, ok := s.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, out.RunID, last.RunID)

	h := s.Health()
	assert.Equal(t, uint64(1), h.Processed)
	assert.Equal(t, StageIdle, h.Stage)
	assert.False(t, h.Running)
}

func TestStartProcessesEventsInOrder(t *testing.T) {
	store := newFakeStore(initialList(), derivedItems())
	notifier := &countingNotifier{}
	bus := events.NewBus()
	s := New(store, bus, notifier,
		WithClock(func() time.Time { return wednesday }),
		WithLogger(zerolog.Nop()),
	)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	assert.True(t, s.Health().Running)

	bus.NotifyPlanChanged(events.ActionRecipeAdded, nil)
	bus.NotifyPlanChanged(events.ActionRecipeRemoved, nil)

	var got []events.Action
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case o := <-s.Outcomes():
			got = append(got, o.Action)
		case <-timeout:
			t.Fatalf("timed out waiting for outcomes, got %v", got)
		}
	}

	assert.Equal(t, []events.Action{events.ActionRecipeAdded, events.ActionRecipeRemoved}, got)
	assert.Equal(t, 2, notifier.Count())

	s.Stop()
	s.Stop()
	assert.False(t, s.Health().Running)
	assert.Zero(t, bus.Subscribers())
}

func TestStopsWhenSourceCloses(t *testing.T) {
	bus := events.NewBus()
	s := New(newFakeStore(initialList(), nil), bus, &countingNotifier{}, WithLogger(zerolog.Nop()))

	require.NoError(t, s.Start(context.Background()))
	bus.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop after the bus closed")
	}
	assert.False(t, s.Health().Running)
}

func TestStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(newFakeStore(initialList(), nil), events.NewBus(), &countingNotifier{}, WithLogger(zerolog.Nop()))

	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop after context cancellation")
	}

	require.NoError(t, s.Start(context.Background()), "a stopped syncer can be started again")
	s.Stop()
}

func TestHealthy(t *testing.T) {
	assert.False(t, Health{}.Healthy())
	assert.True(t, Health{Running: true}.Healthy())
	assert.False(t, Health{Running: true, Last: &Outcome{Status: StatusFailed}}.Healthy())
	assert.True(t, Health{Running: true, Last: &Outcome{Status: StatusPartial}}.Healthy())
}
