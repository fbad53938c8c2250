package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"meal-planner-sync/internal/events"
)

// ChangePublisher receives plan mutations once they succeeded remotely.
type ChangePublisher interface {
	NotifyPlanChanged(action events.Action, modified *time.Time)
}

// Service applies plan mutations and announces them on the plan bus.
type Service struct {
	store  PlanStore
	bus    ChangePublisher
	logger zerolog.Logger
}

// NewService creates a new plan Service.
func NewService(store PlanStore, bus ChangePublisher) *Service {
	return &Service{
		store:  store,
		bus:    bus,
		logger: log.With().Str("component", "planner").Logger(),
	}
}

// AddRecipe schedules a recipe and publishes RECIPE_ADDED.
func (s *Service) AddRecipe(ctx context.Context, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	created, err := s.store.AddEntry(ctx, e)
	if err != nil {
		return Entry{}, err
	}

	s.publish(events.ActionRecipeAdded, e.Date)
	return created, nil
}

// EditRecipe replaces a scheduled recipe and publishes RECIPE_EDITED.
func (s *Service) EditRecipe(ctx context.Context, id string, e Entry) (Entry, error) {
	if id == "" {
		return Entry{}, fmt.Errorf("%w: entry id is required", ErrInvalidEntry)
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	updated, err := s.store.UpdateEntry(ctx, id, e)
	if err != nil {
		return Entry{}, err
	}

	s.publish(events.ActionRecipeEdited, e.Date)
	return updated, nil
}

// RemoveRecipe deletes a scheduled recipe and publishes RECIPE_REMOVED.
// date is the plan day the entry belonged to, if the caller knows it.
func (s *Service) RemoveRecipe(ctx context.Context, id, date string) error {
	if id == "" {
		return fmt.Errorf("%w: entry id is required", ErrInvalidEntry)
	}

	if err := s.store.RemoveEntry(ctx, id); err != nil {
		return err
	}

	s.publish(events.ActionRecipeRemoved, date)
	return nil
}

// ClearWeek removes every entry of the week containing day and publishes a
// single PLAN_CLEARED once at least one removal succeeded.
func (s *Service) ClearWeek(ctx context.Context, day time.Time) (int, error) {
	start, _ := WeekRange(day)

	plan, err := s.store.Week(ctx, start)
	if err != nil {
		return 0, err
	}

	removed := 0
	var firstErr error
	for _, e := range plan.Entries {
		if err := s.store.RemoveEntry(ctx, e.ID); err != nil {
			s.logger.Warn().Err(err).Str("entry", e.ID).Msg("failed to remove plan entry while clearing week")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}

	if removed > 0 {
		s.publish(events.ActionPlanCleared, start.Format(DateLayout))
	}
	if firstErr != nil {
		return removed, fmt.Errorf("failed to clear %d of %d plan entries: %w", len(plan.Entries)-removed, len(plan.Entries), firstErr)
	}
	return removed, nil
}

// Week returns the plan for the week containing day.
func (s *Service) Week(ctx context.Context, day time.Time) (WeekPlan, error) {
	start, _ := WeekRange(day)
	return s.store.Week(ctx, start)
}

func (s *Service) publish(action events.Action, date string) {
	var modified *time.Time
	if date != "" {
		if d, err := time.Parse(DateLayout, date); err == nil {
			modified = &d
		}
	}

	s.logger.Debug().Str("action", action.String()).Str("date", date).Msg("plan changed")
	s.bus.NotifyPlanChanged(action, modified)
}
