package service

import (
	"context"
	"time"

	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/model"
	"workingonit/backend/internal/session"
)

type TimerView struct {
	Timer      session.Snapshot `json:"timer"`
	Activity   *model.Activity  `json:"activity,omitempty"`
	ServerTime time.Time        `json:"serverTime"`
}

type RatingResult struct {
	Entry model.TimeEntry `json:"entry"`
	TimerView
}

func (s *TrackerService) GetTimer(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	return s.timerView(ctx, t, t.machine.Snapshot()), nil
}

func (s *TrackerService) StartTimer(ctx context.Context, userID, activityID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, "start timer", func(m *session.Machine) (session.Snapshot, error) {
		return m.Start(ctx, activityID)
	})
}

func (s *TrackerService) PauseTimer(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, "pause timer", func(m *session.Machine) (session.Snapshot, error) {
		return m.Pause(ctx)
	})
}

func (s *TrackerService) ResumeTimer(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, "resume timer", func(m *session.Machine) (session.Snapshot, error) {
		return m.Resume(ctx)
	})
}

func (s *TrackerService) StopTimer(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, "stop timer", func(m *session.Machine) (session.Snapshot, error) {
		return m.Stop(ctx)
	})
}

func (s *TrackerService) KeepWorking(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, "keep working", func(m *session.Machine) (session.Snapshot, error) {
		return m.KeepWorking(ctx)
	})
}

func (s *TrackerService) DiscardTimer(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, "discard timer", func(m *session.Machine) (session.Snapshot, error) {
		return m.Discard(ctx)
	})
}

func (s *TrackerService) RateSession(ctx context.Context, userID string, feeling int, note string) (*RatingResult, *apperrors.APIError) {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	entry, err := t.machine.SubmitRating(ctx, feeling, note)
	if err != nil {
		return nil, s.fail(err, userID, "rate session", "failed to save session")
	}
	return &RatingResult{
		Entry:     *entry,
		TimerView: *s.timerView(ctx, t, t.machine.Snapshot()),
	}, nil
}

// SubscribeTimer streams timer snapshots until cancel is called.
func (s *TrackerService) SubscribeTimer(ctx context.Context, userID string) (<-chan session.Snapshot, func(), *apperrors.APIError) {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	updates, cancel := t.machine.Subscribe(8)
	return updates, cancel, nil
}

func (s *TrackerService) transition(
	ctx context.Context,
	userID string,
	op string,
	fn func(m *session.Machine) (session.Snapshot, error),
) (*TimerView, *apperrors.APIError) {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	snap, err := fn(t.machine)
	if err != nil {
		return nil, s.fail(err, userID, op, "failed to update timer")
	}
	return s.timerView(ctx, t, snap), nil
}

func (s *TrackerService) timerView(ctx context.Context, t *Tracker, snap session.Snapshot) *TimerView {
	view := &TimerView{Timer: snap, ServerTime: s.clock.Now()}
	if snap.ActivityID == "" {
		return view
	}
	t.mu.Lock()
	activity, found, err := t.findActivityLocked(ctx, snap.ActivityID)
	t.mu.Unlock()
	if err == nil && found {
		view.Activity = &activity
	}
	return view
}

func (s *TrackerService) fail(err error, userID, op, internalMessage string) *apperrors.APIError {
	apiErr := toAPIError(err, internalMessage)
	if apiErr.Status >= 500 {
		s.log.Error(op, "user_id", userID, "error", err)
	}
	return apiErr
}
