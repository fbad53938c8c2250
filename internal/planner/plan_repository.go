package planner

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"meal-planner-sync/internal/remote"
)

// PlanStore persists the weekly plan.
type PlanStore interface {
	AddEntry(ctx context.Context, e Entry) (Entry, error)
	UpdateEntry(ctx context.Context, id string, e Entry) (Entry, error)
	RemoveEntry(ctx context.Context, id string) error
	Week(ctx context.Context, start time.Time) (WeekPlan, error)
}

// PlanRepository is a PlanStore backed by the meal planning REST API.
type PlanRepository struct {
	client *remote.Client
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(client *remote.Client) *PlanRepository {
	return &PlanRepository{client: client}
}

// AddEntry schedules a recipe.
func (r *PlanRepository) AddEntry(ctx context.Context, e Entry) (Entry, error) {
	var created Entry
	if err := r.client.Do(ctx, http.MethodPost, "/meal-plan/entries", e, &created); err != nil {
		return Entry{}, fmt.Errorf("failed to add recipe %s to plan: %w", e.RecipeID, err)
	}
	return created, nil
}

// UpdateEntry replaces a scheduled recipe.
func (r *PlanRepository) UpdateEntry(ctx context.Context, id string, e Entry) (Entry, error) {
	var updated Entry
	if err := r.client.Do(ctx, http.MethodPut, "/meal-plan/entries/"+url.PathEscape(id), e, &updated); err != nil {
		return Entry{}, fmt.Errorf("failed to update plan entry %s: %w", id, err)
	}
	return updated, nil
}

// RemoveEntry deletes a scheduled recipe.
func (r *PlanRepository) RemoveEntry(ctx context.Context, id string) error {
	if err := r.client.Do(ctx, http.MethodDelete, "/meal-plan/entries/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to remove plan entry %s: %w", id, err)
	}
	return nil
}

// Week lists the entries of the week starting at start.
func (r *PlanRepository) Week(ctx context.Context, start time.Time) (WeekPlan, error) {
	q := url.Values{"start": {start.Format(DateLayout)}}

	var plan WeekPlan
	if err := r.client.Do(ctx, http.MethodGet, "/meal-plan/week?"+q.Encode(), nil, &plan); err != nil {
		return WeekPlan{}, fmt.Errorf("failed to get plan for week %s: %w", start.Format(DateLayout), err)
	}
	return plan, nil
}
