// Package httpapi exposes the sync service over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"meal-planner-sync/internal/events"
	"meal-planner-sync/internal/listsync"
	"meal-planner-sync/internal/metrics"
	"meal-planner-sync/internal/planner"
	"meal-planner-sync/internal/shopping"
)

// PlanService applies plan mutations and publishes them.
type PlanService interface {
	AddRecipe(ctx context.Context, e planner.Entry) (planner.Entry, error)
	EditRecipe(ctx context.Context, id string, e planner.Entry) (planner.Entry, error)
	RemoveRecipe(ctx context.Context, id, date string) error
	ClearWeek(ctx context.Context, day time.Time) (int, error)
	Week(ctx context.Context, day time.Time) (planner.WeekPlan, error)
}

// HistoryStore reads persisted sync outcomes.
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]listsync.Outcome, error)
	GetDailySummary(ctx context.Context, days int) ([]metrics.DailySummary, error)
}

// HealthReporter reports the syncer state.
type HealthReporter interface {
	Health() listsync.Health
}

// UpdateFeed is the shopping list update notifier.
type UpdateFeed interface {
	Subscribe() *events.Subscription[int64]
	Last() int64
}

// Deps groups what the router needs.
type Deps struct {
	Plans     PlanService
	Lists     shopping.Store
	History   HistoryStore
	Syncer    HealthReporter
	Updates   UpdateFeed
	Metrics   http.Handler
	DataDir   string
	Now       func() time.Time
	KeepAlive time.Duration // SSE comment interval
}

// Router creates and configures the HTTP router.
type Router struct {
	deps   Deps
	logger zerolog.Logger
}

// NewRouter creates a new router instance.
func NewRouter(deps Deps) *Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.KeepAlive <= 0 {
		deps.KeepAlive = 15 * time.Second
	}
	return &Router{
		deps:   deps,
		logger: log.With().Str("component", "http").Logger(),
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))

	router.Get("/health", rt.healthCheck)
	if rt.deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.deps.Metrics)
	}

	router.Route("/plan", func(r chi.Router) {
		r.Get("/week", rt.getWeek)
		r.Post("/clear", rt.clearWeek)
		r.Post("/entries", rt.createEntry)
		r.Put("/entries/{entryID}", rt.updateEntry)
		r.Delete("/entries/{entryID}", rt.deleteEntry)
	})

	router.Get("/shopping-list", rt.currentList)
	router.Get("/shopping-list/updates", rt.streamUpdates)

	router.Get("/sync/history", rt.history)
	router.Get("/sync/history/daily", rt.dailyHistory)

	return router
}
