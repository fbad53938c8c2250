package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"meal-planner-sync/internal/listsync"
	"meal-planner-sync/internal/metrics"
	"meal-planner-sync/internal/planner"
	"meal-planner-sync/internal/remote"
)

const (
	maxHistoryLimit = 500
	maxSummaryDays  = 90
)

type healthResponse struct {
	Status     string            `json:"status"`
	Sync       listsync.Health   `json:"sync"`
	System     metrics.SysHealth `json:"system"`
	LastUpdate int64             `json:"last_update,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status: "healthy",
		System: metrics.GetSysHealth(rt.deps.DataDir),
	}
	if rt.deps.Updates != nil {
		resp.LastUpdate = rt.deps.Updates.Last()
	}

	status := http.StatusOK
	if rt.deps.Syncer != nil {
		resp.Sync = rt.deps.Syncer.Health()
		switch {
		case !resp.Sync.Running:
			resp.Status = "stopped"
			status = http.StatusServiceUnavailable
		case !resp.Sync.Healthy():
			// The last run failed; the next plan change retries.
			resp.Status = "degraded"
		}
	}

	respondJSON(w, status, resp)
}

func (rt *Router) createEntry(w http.ResponseWriter, r *http.Request) {
	var e planner.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := rt.deps.Plans.AddRecipe(r.Context(), e)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (rt *Router) updateEntry(w http.ResponseWriter, r *http.Request) {
	var e planner.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := rt.deps.Plans.EditRecipe(r.Context(), chi.URLParam(r, "entryID"), e)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (rt *Router) deleteEntry(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse(planner.DateLayout, date); err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	if err := rt.deps.Plans.RemoveRecipe(r.Context(), chi.URLParam(r, "entryID"), date); err != nil {
		rt.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getWeek(w http.ResponseWriter, r *http.Request) {
	day, ok := rt.dayParam(w, r)
	if !ok {
		return
	}

	plan, err := rt.deps.Plans.Week(r.Context(), day)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (rt *Router) clearWeek(w http.ResponseWriter, r *http.Request) {
	day, ok := rt.dayParam(w, r)
	if !ok {
		return
	}

	removed, err := rt.deps.Plans.ClearWeek(r.Context(), day)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (rt *Router) currentList(w http.ResponseWriter, r *http.Request) {
	list, err := rt.deps.Lists.Current(r.Context())
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (rt *Router) history(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	outcomes, err := rt.deps.History.Recent(r.Context(), limit)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	if outcomes == nil {
		outcomes = []listsync.Outcome{}
	}
	respondJSON(w, http.StatusOK, outcomes)
}

func (rt *Router) dailyHistory(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = min(n, maxSummaryDays)
	}

	summary, err := rt.deps.History.GetDailySummary(r.Context(), days)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	if summary == nil {
		summary = []metrics.DailySummary{}
	}
	respondJSON(w, http.StatusOK, summary)
}

// dayParam reads ?date=, defaulting to today.
func (rt *Router) dayParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return rt.deps.Now(), true
	}
	day, err := time.Parse(planner.DateLayout, v)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

// fail maps domain and backend errors to a response.
func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	var se *remote.StatusError
	switch {
	case errors.Is(err, planner.ErrInvalidEntry):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		respondError(w, http.StatusNotFound, "not found")
	case errors.As(err, &se):
		rt.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("backend rejected request")
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		rt.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
