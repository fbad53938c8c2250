package planner

import (
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ErrInvalidEntry wraps every validation failure of a plan entry.
var ErrInvalidEntry = errors.New("invalid plan entry")

// MealType is the slot of the day a recipe is planned for.
type MealType string

const (
	MealBreakfast MealType = "BREAKFAST"
	MealLunch     MealType = "LUNCH"
	MealDinner    MealType = "DINNER"
	MealSnack     MealType = "SNACK"
)

// Entry is a recipe scheduled on a given day of the weekly plan.
type Entry struct {
	ID          string   `json:"id,omitempty"`
	RecipeID    string   `json:"recipe_id"`
	RecipeTitle string   `json:"recipe_title,omitempty"`
	Date        string   `json:"date"` // YYYY-MM-DD
	MealType    MealType `json:"meal_type"`
	Servings    int      `json:"servings,omitempty"`
}

// Day parses the entry date.
func (e Entry) Day() (time.Time, error) {
	d, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid plan date '%s'", ErrInvalidEntry, e.Date)
	}
	return d, nil
}

// Validate checks the fields the backend requires.
func (e Entry) Validate() error {
	if e.RecipeID == "" {
		return fmt.Errorf("%w: recipe_id is required", ErrInvalidEntry)
	}
	if _, err := e.Day(); err != nil {
		return err
	}
	switch e.MealType {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
	default:
		return fmt.Errorf("%w: unknown meal_type '%s'", ErrInvalidEntry, e.MealType)
	}
	if e.Servings < 0 {
		return fmt.Errorf("%w: servings must not be negative", ErrInvalidEntry)
	}
	return nil
}

// WeekPlan is the plan for a Monday..Sunday range.
type WeekPlan struct {
	Start   string  `json:"start"`
	Entries []Entry `json:"entries"`
}
