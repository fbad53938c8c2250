package listsync

import (
	"time"

	"meal-planner-sync/internal/events"
)

// Stage is a step of a reconciliation run.
type Stage string

const (
	StageIdle              Stage = "IDLE"
	StageFetchingCurrent   Stage = "FETCHING_CURRENT"
	StageClassifying       Stage = "CLASSIFYING"
	StageRegenerating      Stage = "REGENERATING"
	StageReinsertingManual Stage = "REINSERTING_MANUAL"
	StageRefetching        Stage = "REFETCHING"
	StageNotifying         Stage = "NOTIFYING"
)

// Status is the result of a reconciliation run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial" // notified, but some manual items were not re-added
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome describes one processed plan change.
type Outcome struct {
	RunID          string        `json:"run_id"`
	Action         events.Action `json:"action"`
	Status         Status        `json:"status"`
	Stage          Stage         `json:"stage"` // last stage reached
	WeekStart      string        `json:"week_start,omitempty"`
	ManualFound    int           `json:"manual_found"`
	Reinserted     int           `json:"reinserted"`
	ReinsertFailed int           `json:"reinsert_failed"`
	Notified       bool          `json:"notified"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// Failed reports whether the run aborted before notifying.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// Health is a point-in-time view of the syncer for health checks.
type Health struct {
	Running   bool     `json:"running"`
	Stage     Stage    `json:"stage"`
	Processed uint64   `json:"processed"`
	Failures  uint64   `json:"failures"`
	Dropped   uint64   `json:"dropped_events"`
	Last      *Outcome `json:"last_outcome,omitempty"`
}

// Healthy reports whether the syncer is running and its last run did not fail.
func (h Health) Healthy() bool {
	return h.Running && (h.Last == nil || !h.Last.Failed())
}
