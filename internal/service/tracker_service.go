package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"workingonit/backend/internal/classifier"
	"workingonit/backend/internal/clock"
	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/model"
	"workingonit/backend/internal/repository"
	"workingonit/backend/internal/session"
	"workingonit/backend/internal/syncqueue"
)

type TrackerConfig struct {
	KV           repository.KV
	Classifier   *classifier.Classifier
	Syncer       *syncqueue.Syncer
	Clock        clock.Clock
	TickInterval time.Duration
	NewID        func() string
	Log          *slog.Logger
}

// TrackerService owns one Tracker per user. All of a user's commands go
// through that Tracker.
type TrackerService struct {
	kv           repository.KV
	classifier   *classifier.Classifier
	syncer       *syncqueue.Syncer
	clock        clock.Clock
	tickInterval time.Duration
	newID        func() string
	log          *slog.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewTrackerService(cfg TrackerConfig) *TrackerService {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &TrackerService{
		kv:           cfg.KV,
		classifier:   cfg.Classifier,
		syncer:       cfg.Syncer,
		clock:        cfg.Clock,
		tickInterval: cfg.TickInterval,
		newID:        cfg.NewID,
		log:          cfg.Log.With("service", "tracker"),
		trackers:     make(map[string]*Tracker),
	}
}

// Tracker is the single writer for one user's local data.
type Tracker struct {
	userID  string
	store   *repository.LocalStore
	machine *session.Machine
	syncer  *syncqueue.Syncer

	// mu guards read-modify-write of the activity and entry collections.
	mu sync.Mutex
}

func (t *Tracker) ActivityExists(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, found, err := t.findActivityLocked(ctx, id)
	return found, err
}

// Record appends a committed entry and mirrors the collections remotely.
// Recording an entry id that is already stored does nothing.
func (t *Tracker) Record(ctx context.Context, entry model.TimeEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.store.LoadTimeEntries(ctx)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(entries, func(e model.TimeEntry) bool { return e.ID == entry.ID }) {
		return nil
	}
	entries = append(entries, entry)
	if err := t.store.SaveTimeEntries(ctx, entries); err != nil {
		return err
	}
	t.syncLocked(ctx)
	return nil
}

func (t *Tracker) findActivityLocked(ctx context.Context, id string) (model.Activity, bool, error) {
	activities, err := t.store.LoadActivities(ctx)
	if err != nil {
		return model.Activity{}, false, err
	}
	for _, a := range activities {
		if a.ID == id {
			return a, true, nil
		}
	}
	return model.Activity{}, false, nil
}

// syncLocked hands the full collections to the sync worker.
func (t *Tracker) syncLocked(ctx context.Context) {
	if t.syncer == nil {
		return
	}
	activities, err := t.store.LoadActivities(ctx)
	if err != nil {
		return
	}
	entries, err := t.store.LoadTimeEntries(ctx)
	if err != nil {
		return
	}
	t.syncer.Submit(ctx, t.userID, model.SyncPayload{Activities: activities, TimeEntries: entries})
}

// tracker returns the user's Tracker, restoring any persisted timer on first
// use.
func (s *TrackerService) tracker(ctx context.Context, userID string) (*Tracker, *apperrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.trackers[userID]; ok {
		return t, nil
	}

	t := &Tracker{
		userID: userID,
		store:  repository.NewLocalStore(s.kv, userID),
		syncer: s.syncer,
	}
	t.machine = session.New(session.Config{
		UserID:       userID,
		Clock:        s.clock,
		Store:        t.store,
		Activities:   t,
		Recorder:     t,
		NewID:        s.newID,
		TickInterval: s.tickInterval,
		Log:          s.log,
	})
	if _, err := t.machine.Restore(ctx); err != nil {
		s.log.Error("restore timer", "user_id", userID, "error", err)
		t.machine.Close()
		return nil, apperrors.Internal("failed to load timer state")
	}

	s.trackers[userID] = t
	return t, nil
}

func (s *TrackerService) forget(userID string) {
	s.mu.Lock()
	t, ok := s.trackers[userID]
	delete(s.trackers, userID)
	s.mu.Unlock()
	if ok {
		t.machine.Close()
	}
}

// Close stops every running ticker.
func (s *TrackerService) Close() {
	s.mu.Lock()
	trackers := s.trackers
	s.trackers = make(map[string]*Tracker)
	s.mu.Unlock()
	for _, t := range trackers {
		t.machine.Close()
	}
}

// UserRegistered prepares the tracker of a new account.
func (s *TrackerService) UserRegistered(ctx context.Context, userID string) error {
	if _, apiErr := s.tracker(ctx, userID); apiErr != nil {
		return apiErr
	}
	return nil
}

// UserLoggedIn refreshes local data from the remote store. Failures keep the
// local copy and are only logged.
func (s *TrackerService) UserLoggedIn(ctx context.Context, userID string) {
	if s.syncer == nil || !s.syncer.RemoteEnabled() {
		return
	}
	if _, apiErr := s.Pull(ctx, userID); apiErr != nil {
		s.log.Warn("load from remote on login", "user_id", userID, "error", apiErr.Message)
	}
}
