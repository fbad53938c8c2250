package acceptance_tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// --- Fake meal planning backend ---

type item struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Amount    *float64 `json:"amount,omitempty"`
	Unit      *string  `json:"unit,omitempty"`
	Category  *string  `json:"category,omitempty"`
	IsChecked bool     `json:"is_checked"`
}

type entry struct {
	ID       string `json:"id,omitempty"`
	RecipeID string `json:"recipe_id"`
	Date     string `json:"date"`
	MealType string `json:"meal_type"`
	Servings int    `json:"servings,omitempty"`
}

type fakeBackend struct {
	t *testing.T

	mu          sync.Mutex
	token       string
	list        map[string][]item
	derived     []item // what /generate produces
	entries     map[string]entry
	nextID      int
	generated   [][2]string
	added       []map[string]any
	rejectItems map[string]bool
	failCurrent bool
}

func newFakeBackend(t *testing.T, token string) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{
		t:           t,
		token:       token,
		list:        map[string][]item{},
		entries:     map[string]entry{},
		rejectItems: map[string]bool{},
	}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, srv
}

func strp(s string) *string { return &s }
func fltp(f float64) *float64 { return &f }

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+b.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/shopping-list/current":
		if b.failCurrent {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		b.writeList(w)

	case r.Method == http.MethodPost && r.URL.Path == "/shopping-list/generate":
		var req struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		b.generated = append(b.generated, [2]string{req.StartDate, req.EndDate})
		b.list = map[string][]item{}
		for _, it := range b.derived {
			b.list[*it.Category] = append(b.list[*it.Category], it)
		}
		b.writeList(w)

	case r.Method == http.MethodPost && r.URL.Path == "/shopping-list/items":
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		name, _ := req["custom_name"].(string)
		if b.rejectItems[name] {
			http.Error(w, "duplicate", http.StatusConflict)
			return
		}
		b.added = append(b.added, req)
		unit, _ := req["unit"].(string)
		cat, _ := req["category"].(string)
		it := item{ID: "m-" + name, Name: name, Unit: strp(unit), Category: strp(cat)}
		if amount, ok := req["amount"].(float64); ok {
			it.Amount = fltp(amount)
		}
		b.list[cat] = append(b.list[cat], it)
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPost && r.URL.Path == "/meal-plan/entries":
		var e entry
		json.NewDecoder(r.Body).Decode(&e)
		b.nextID++
		e.ID = "entry-" + strconv.Itoa(b.nextID)
		b.entries[e.ID] = e
		json.NewEncoder(w).Encode(e)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/meal-plan/entries/"):
		id := strings.TrimPrefix(r.URL.Path, "/meal-plan/entries/")
		if _, ok := b.entries[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(b.entries, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		b.t.Errorf("Unexpected backend call %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBackend) writeList(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"items_by_category": b.list})
}

func (b *fakeBackend) find(name string) (item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, items := range b.list {
		for _, it := range items {
			if it.Name == name {
				return it, true
			}
		}
	}
	return item{}, false
}

func (b *fakeBackend) generateCalls() [][2]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][2]string(nil), b.generated...)
}
