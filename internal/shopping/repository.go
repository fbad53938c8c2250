package shopping

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"meal-planner-sync/internal/remote"
)

const dateLayout = "2006-01-02"

// Store is the remote shopping list the sync service reconciles.
type Store interface {
	Current(ctx context.Context) (List, error)
	GenerateForWeek(ctx context.Context, start, end time.Time) (List, error)
	AddItem(ctx context.Context, item NewItem) error
}

// RESTStore is a Store backed by the meal planning REST API.
type RESTStore struct {
	client *remote.Client
}

// NewRESTStore creates a new REST-backed shopping list store.
func NewRESTStore(client *remote.Client) *RESTStore {
	return &RESTStore{client: client}
}

type generateRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Current fetches the list as it is now.
func (s *RESTStore) Current(ctx context.Context) (List, error) {
	var list List
	if err := s.client.Do(ctx, http.MethodGet, "/shopping-list/current", nil, &list); err != nil {
		return List{}, fmt.Errorf("failed to get current shopping list: %w", err)
	}
	return list, nil
}

// GenerateForWeek regenerates the computed list for the given date range and returns it.
func (s *RESTStore) GenerateForWeek(ctx context.Context, start, end time.Time) (List, error) {
	req := generateRequest{
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
	}

	var list List
	if err := s.client.Do(ctx, http.MethodPost, "/shopping-list/generate", req, &list); err != nil {
		return List{}, fmt.Errorf("failed to generate shopping list for %s..%s: %w", req.StartDate, req.EndDate, err)
	}
	return list, nil
}

// AddItem appends a manually entered item.
func (s *RESTStore) AddItem(ctx context.Context, item NewItem) error {
	if err := s.client.Do(ctx, http.MethodPost, "/shopping-list/items", item, nil); err != nil {
		return fmt.Errorf("failed to add shopping list item '%s': %w", item.CustomName, err)
	}
	return nil
}
