package session

import (
	"encoding/json"
	"time"

	"workingonit/backend/internal/model"
)

// Snapshot is a read-only view of the timer at one instant.
type Snapshot struct {
	Status         model.TimerStatus
	ActivityID     string
	StartTime      time.Time
	PausedDuration time.Duration
	Elapsed        time.Duration
	LastPauseTime  *time.Time
	StoppedAt      *time.Time
}

type snapshotJSON struct {
	Status           model.TimerStatus `json:"status"`
	ActivityID       string            `json:"activityId,omitempty"`
	StartTime        *time.Time        `json:"startTime,omitempty"`
	PausedDurationMs int64             `json:"pausedDurationMs"`
	ElapsedMs        int64             `json:"elapsedMs"`
	ElapsedSeconds   int64             `json:"elapsedSeconds"`
	LastPauseTime    *time.Time        `json:"lastPauseTime,omitempty"`
	StoppedAt        *time.Time        `json:"stoppedAt,omitempty"`
}

// MarshalJSON renders durations as integer milliseconds.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Status:           s.Status,
		ActivityID:       s.ActivityID,
		PausedDurationMs: s.PausedDuration.Milliseconds(),
		ElapsedMs:        s.Elapsed.Milliseconds(),
		ElapsedSeconds:   int64(s.Elapsed / time.Second),
		LastPauseTime:    s.LastPauseTime,
		StoppedAt:        s.StoppedAt,
	}
	if !s.StartTime.IsZero() {
		start := s.StartTime
		out.StartTime = &start
	}
	return json.Marshal(out)
}
