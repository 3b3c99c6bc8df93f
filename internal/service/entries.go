package service

import (
	"context"
	"time"

	"workingonit/backend/internal/analytics"
	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/model"
)

type EntryView struct {
	model.TimeEntry
	ActivityName string       `json:"activityName"`
	Sphere       model.Sphere `json:"sphere"`
	Color        string       `json:"color"`
}

type ExportData struct {
	ExportedAt  time.Time             `json:"exportedAt"`
	Projects    []model.Project       `json:"projects"`
	Activities  []model.Activity      `json:"activities"`
	TimeEntries []model.TimeEntry     `json:"timeEntries"`
	ActiveTimer *model.ActiveTimer    `json:"activeTimer,omitempty"`
	SyncQueue   []model.SyncQueueItem `json:"syncQueue"`
}

// TodayEntries lists today's sessions in loc, newest first.
func (s *TrackerService) TodayEntries(ctx context.Context, userID string, loc *time.Location) ([]EntryView, *apperrors.APIError) {
	activities, entries, apiErr := s.collections(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	return joinActivities(analytics.TodayEntries(entries, activities, s.clock.Now(), loc), activities), nil
}

// ListEntries lists every attributed session, newest first.
func (s *TrackerService) ListEntries(ctx context.Context, userID string) ([]EntryView, *apperrors.APIError) {
	activities, entries, apiErr := s.collections(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	kept := analytics.Attributed(entries, activities)
	analytics.NewestFirst(kept)
	return joinActivities(kept, activities), nil
}

func (s *TrackerService) Analytics(ctx context.Context, userID string, loc *time.Location) (*analytics.Report, *apperrors.APIError) {
	activities, entries, apiErr := s.collections(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	report := analytics.Build(entries, activities, s.clock.Now(), loc)
	return &report, nil
}

func (s *TrackerService) Export(ctx context.Context, userID string) (*ExportData, *apperrors.APIError) {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := &ExportData{ExportedAt: s.clock.Now()}
	var err error
	if out.Projects, err = t.store.LoadProjects(ctx); err != nil {
		return nil, s.fail(err, userID, "export", "failed to export data")
	}
	if out.Activities, err = t.store.LoadActivities(ctx); err != nil {
		return nil, s.fail(err, userID, "export", "failed to export data")
	}
	if out.TimeEntries, err = t.store.LoadTimeEntries(ctx); err != nil {
		return nil, s.fail(err, userID, "export", "failed to export data")
	}
	if out.ActiveTimer, err = t.store.LoadActiveTimer(ctx); err != nil {
		return nil, s.fail(err, userID, "export", "failed to export data")
	}
	if out.SyncQueue, err = t.store.LoadSyncQueue(ctx); err != nil {
		return nil, s.fail(err, userID, "export", "failed to export data")
	}
	return out, nil
}

// ClearData drops the active timer and every local collection. Remote rows
// are left alone.
func (s *TrackerService) ClearData(ctx context.Context, userID string) *apperrors.APIError {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return apiErr
	}
	if _, err := t.machine.Discard(ctx); err != nil {
		return s.fail(err, userID, "clear data", "failed to clear data")
	}

	t.mu.Lock()
	err := t.store.Clear(ctx)
	t.mu.Unlock()
	if err != nil {
		return s.fail(err, userID, "clear data", "failed to clear data")
	}

	s.forget(userID)
	s.log.Info("local data cleared", "user_id", userID)
	return nil
}

func (s *TrackerService) collections(ctx context.Context, userID string) ([]model.Activity, []model.TimeEntry, *apperrors.APIError) {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	activities, err := t.store.LoadActivities(ctx)
	if err != nil {
		return nil, nil, s.fail(err, userID, "load activities", "failed to load activities")
	}
	entries, err := t.store.LoadTimeEntries(ctx)
	if err != nil {
		return nil, nil, s.fail(err, userID, "load time entries", "failed to load time entries")
	}
	return activities, entries, nil
}

func joinActivities(entries []model.TimeEntry, activities []model.Activity) []EntryView {
	byID := make(map[string]model.Activity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
	}
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		a := byID[e.ActivityID]
		out = append(out, EntryView{
			TimeEntry:    e,
			ActivityName: a.Name,
			Sphere:       a.Sphere,
			Color:        a.Color,
		})
	}
	return out
}
