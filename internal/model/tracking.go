package model

import "time"

type TimerStatus string

const (
	StatusIdle           TimerStatus = "idle"
	StatusRunning        TimerStatus = "running"
	StatusPaused         TimerStatus = "paused"
	StatusAwaitingRating TimerStatus = "awaiting_rating"
)

const (
	MinFeelingRating = 1
	MaxFeelingRating = 5
	MaxNoteLength    = 500
)

// Project groups activities under a name and the spheres it touches.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Spheres   []Sphere  `json:"spheres"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

type Activity struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	// ProjectID is empty for activities outside any project.
	ProjectID string    `json:"projectId,omitempty"`
	Name      string    `json:"name"`
	Sphere    Sphere    `json:"sphere"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActiveTimer is the in-progress session. It is mirrored to the local store
// on every transition so a restart can pick it up again.
type ActiveTimer struct {
	ActivityID     string        `json:"activityId"`
	Status         TimerStatus   `json:"status"`
	StartTime      time.Time     `json:"startTime"`
	PausedDuration time.Duration `json:"pausedDuration"`
	LastPauseTime  *time.Time    `json:"lastPauseTime,omitempty"`
	LastResumeTime *time.Time    `json:"lastResumeTime,omitempty"`
	StoppedAt      *time.Time    `json:"stoppedAt,omitempty"`
	// StoppedFrom is the status KeepWorking returns to.
	StoppedFrom TimerStatus `json:"stoppedFrom,omitempty"`
	// EntryID is reserved at stop time so a retried rating records the same
	// entry.
	EntryID string `json:"entryId,omitempty"`
	// Elapsed is the last reported elapsed value. It only grows.
	Elapsed time.Duration `json:"elapsed"`
}

// TimeEntry is a completed, rated session. Entries are never modified once
// committed.
type TimeEntry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ActivityID      string    `json:"activityId"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMs      int64     `json:"durationMs"`
	DurationMinutes int       `json:"durationMinutes"`
	PausedMs        int64     `json:"pausedMs"`
	FeelingRating   int       `json:"feelingRating"`
	Note            string    `json:"note"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (e TimeEntry) Duration() time.Duration {
	return time.Duration(e.DurationMs) * time.Millisecond
}

// SyncPayload is the whole-collection snapshot mirrored to the remote store.
type SyncPayload struct {
	Activities  []Activity  `json:"activities"`
	TimeEntries []TimeEntry `json:"timeEntries"`
}

func (p SyncPayload) Empty() bool {
	return len(p.Activities) == 0 && len(p.TimeEntries) == 0
}

type SyncQueueItem struct {
	UserID    string      `json:"userId"`
	Payload   SyncPayload `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}
