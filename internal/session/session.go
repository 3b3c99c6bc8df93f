// Package session implements the single-timer state machine:
// idle -> running <-> paused -> awaiting_rating -> idle.
//
// Every transition that changes the active timer is written through to the
// TimerStore before it becomes visible, so a restart resumes where the last
// successful command left off.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"workingonit/backend/internal/clock"
	"workingonit/backend/internal/model"
)

var ErrInvalidTransition = errors.New("invalid timer transition")

// TimerStore persists the active timer.
type TimerStore interface {
	LoadActiveTimer(ctx context.Context) (*model.ActiveTimer, error)
	SaveActiveTimer(ctx context.Context, timer *model.ActiveTimer) error
	ClearActiveTimer(ctx context.Context) error
}

// Activities reports whether an activity id is known.
type Activities interface {
	ActivityExists(ctx context.Context, id string) (bool, error)
}

// Recorder commits a finished, rated session.
type Recorder interface {
	Record(ctx context.Context, entry model.TimeEntry) error
}

type Config struct {
	UserID       string
	Clock        clock.Clock
	Store        TimerStore
	Activities   Activities
	Recorder     Recorder
	NewID        func() string
	TickInterval time.Duration
	Log          *slog.Logger
}

type Machine struct {
	userID     string
	clock      clock.Clock
	store      TimerStore
	activities Activities
	recorder   Recorder
	newID      func() string
	log        *slog.Logger
	ticker     *clock.Ticker

	// ops serializes commands so ticker start/stop matches the state.
	ops sync.Mutex

	mu     sync.Mutex
	timer  *model.ActiveTimer
	watch  *clock.Stopwatch
	subs   map[int]chan Snapshot
	closed bool
	nextID int
}

func New(cfg Config) *Machine {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	m := &Machine{
		userID:     cfg.UserID,
		clock:      cfg.Clock,
		store:      cfg.Store,
		activities: cfg.Activities,
		recorder:   cfg.Recorder,
		newID:      cfg.NewID,
		log:        cfg.Log.With("service", "session", "user_id", cfg.UserID),
		watch:      clock.NewStopwatch(0),
		subs:       make(map[int]chan Snapshot),
	}
	m.ticker = clock.NewTicker(cfg.TickInterval, m.tick)
	return m
}

// Restore loads a persisted timer. A timer whose activity no longer exists
// is discarded.
func (m *Machine) Restore(ctx context.Context) (Snapshot, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	timer, err := m.store.LoadActiveTimer(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("restore timer: %w", err)
	}
	if timer == nil || timer.Status == model.StatusIdle || timer.ActivityID == "" {
		return m.Snapshot(), nil
	}

	exists, err := m.activities.ActivityExists(ctx, timer.ActivityID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("restore timer: %w", err)
	}
	if !exists {
		m.log.Info("discarding restored timer for missing activity", "activity_id", timer.ActivityID)
		if err := m.store.ClearActiveTimer(ctx); err != nil {
			return Snapshot{}, fmt.Errorf("restore timer: %w", err)
		}
		return m.Snapshot(), nil
	}

	m.mu.Lock()
	m.timer = timer
	m.watch = clock.NewStopwatch(timer.Elapsed)
	snap := m.snapshotLocked(m.clock.Now())
	m.mu.Unlock()

	if timer.Status == model.StatusRunning {
		m.ticker.Start(context.Background())
	}
	m.publish(snap)
	return snap, nil
}

// Start begins timing activityID. An empty id is ignored.
func (m *Machine) Start(ctx context.Context, activityID string) (Snapshot, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return m.Snapshot(), nil
	}
	if m.current() != nil {
		return Snapshot{}, fmt.Errorf("%w: a timer is already active", ErrInvalidTransition)
	}

	exists, err := m.activities.ActivityExists(ctx, activityID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("start timer: %w", err)
	}
	if !exists {
		return Snapshot{}, model.NewValidationError("activityId", "unknown activity")
	}

	now := m.clock.Now()
	next := &model.ActiveTimer{
		ActivityID: activityID,
		Status:     model.StatusRunning,
		StartTime:  now,
	}
	snap, err := m.commit(ctx, next, clock.NewStopwatch(0))
	if err != nil {
		return Snapshot{}, err
	}
	m.ticker.Start(context.Background())
	return snap, nil
}

func (m *Machine) Pause(ctx context.Context) (Snapshot, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	cur := m.current()
	if cur == nil || cur.Status != model.StatusRunning {
		return Snapshot{}, fmt.Errorf("%w: pause requires a running timer", ErrInvalidTransition)
	}

	now := m.clock.Now()
	next := *cur
	next.Status = model.StatusPaused
	next.LastPauseTime = &now
	next.Elapsed = m.observe(&next, now)

	snap, err := m.commit(ctx, &next, nil)
	if err != nil {
		return Snapshot{}, err
	}
	m.ticker.Stop()
	return snap, nil
}

func (m *Machine) Resume(ctx context.Context) (Snapshot, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	cur := m.current()
	if cur == nil || cur.Status != model.StatusPaused {
		return Snapshot{}, fmt.Errorf("%w: resume requires a paused timer", ErrInvalidTransition)
	}

	now := m.clock.Now()
	next := *cur
	next.Status = model.StatusRunning
	next.PausedDuration += pauseSpan(cur.LastPauseTime, now)
	next.LastPauseTime = nil
	next.LastResumeTime = &now

	snap, err := m.commit(ctx, &next, nil)
	if err != nil {
		return Snapshot{}, err
	}
	m.ticker.Start(context.Background())
	return snap, nil
}

// Stop freezes the timer and waits for a rating. Without a timer it does
// nothing.
func (m *Machine) Stop(ctx context.Context) (Snapshot, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	cur := m.current()
	if cur == nil {
		return m.Snapshot(), nil
	}
	if cur.Status != model.StatusRunning && cur.Status != model.StatusPaused {
		return Snapshot{}, fmt.Errorf("%w: stop requires a running or paused timer", ErrInvalidTransition)
	}

	now := m.clock.Now()
	next := *cur
	next.Elapsed = m.observe(&next, now)
	next.StoppedFrom = cur.Status
	next.StoppedAt = &now
	next.Status = model.StatusAwaitingRating
	next.EntryID = m.newID()

	snap, err := m.commit(ctx, &next, nil)
	if err != nil {
		return Snapshot{}, err
	}
	m.ticker.Stop()
	return snap, nil
}

// SubmitRating turns the stopped timer into a TimeEntry. A rejected rating
// leaves the timer untouched.
func (m *Machine) SubmitRating(ctx context.Context, feeling int, note string) (*model.TimeEntry, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	cur := m.current()
	if cur == nil || cur.Status != model.StatusAwaitingRating {
		return nil, fmt.Errorf("%w: rating requires a stopped timer", ErrInvalidTransition)
	}

	note = strings.TrimSpace(note)
	var fieldErrs []model.FieldError
	if feeling < model.MinFeelingRating || feeling > model.MaxFeelingRating {
		fieldErrs = append(fieldErrs, model.FieldError{Field: "feelingRating", Message: "must be between 1 and 5"})
	}
	if len([]rune(note)) > model.MaxNoteLength {
		fieldErrs = append(fieldErrs, model.FieldError{Field: "note", Message: fmt.Sprintf("must be at most %d characters", model.MaxNoteLength)})
	}
	if len(fieldErrs) > 0 {
		return nil, model.NewValidationErrors(fieldErrs...)
	}

	entryID := cur.EntryID
	if entryID == "" {
		entryID = m.newID()
	}
	entry := buildEntry(cur, m.userID, entryID, feeling, note, m.clock.Now())
	if err := m.recorder.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("record entry: %w", err)
	}
	if _, err := m.commit(ctx, nil, nil); err != nil {
		return nil, err
	}
	m.log.Info("session committed",
		"entry_id", entry.ID,
		"activity_id", entry.ActivityID,
		"duration_ms", entry.DurationMs,
		"feeling", entry.FeelingRating,
	)
	return &entry, nil
}

// KeepWorking leaves the rating dialog and continues the same session. The
// time spent in the dialog is tracked.
func (m *Machine) KeepWorking(ctx context.Context) (Snapshot, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	cur := m.current()
	if cur == nil || cur.Status != model.StatusAwaitingRating {
		return Snapshot{}, fmt.Errorf("%w: keep working requires a stopped timer", ErrInvalidTransition)
	}

	next := *cur
	next.Status = cur.StoppedFrom
	if next.Status != model.StatusPaused {
		next.Status = model.StatusRunning
	}
	next.StoppedAt = nil
	next.StoppedFrom = ""
	next.EntryID = ""

	snap, err := m.commit(ctx, &next, nil)
	if err != nil {
		return Snapshot{}, err
	}
	if next.Status == model.StatusRunning {
		m.ticker.Start(context.Background())
	}
	return snap, nil
}

// Discard drops the active timer without recording anything.
func (m *Machine) Discard(ctx context.Context) (Snapshot, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	if m.current() == nil {
		return m.Snapshot(), nil
	}
	snap, err := m.commit(ctx, nil, nil)
	if err != nil {
		return Snapshot{}, err
	}
	m.ticker.Stop()
	return snap, nil
}

// ActiveActivityID returns the activity being timed, or "".
func (m *Machine) ActiveActivityID() string {
	if cur := m.current(); cur != nil {
		return cur.ActivityID
	}
	return ""
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(m.clock.Now())
}

// Subscribe returns a channel receiving a Snapshot on every tick and
// transition. Slow subscribers miss updates rather than block the timer.
func (m *Machine) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

// Close stops the ticker goroutine and closes every subscriber channel,
// ending open streams. Subscribing after Close yields a closed channel.
func (m *Machine) Close() {
	m.ticker.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

func (m *Machine) tick(time.Time) {
	m.mu.Lock()
	if m.timer == nil || m.timer.Status != model.StatusRunning {
		m.mu.Unlock()
		return
	}
	snap := m.snapshotLocked(m.clock.Now())
	m.mu.Unlock()
	m.publish(snap)
}

func (m *Machine) current() *model.ActiveTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer
}

// commit persists next (nil clears) and only then swaps it in.
func (m *Machine) commit(ctx context.Context, next *model.ActiveTimer, watch *clock.Stopwatch) (Snapshot, error) {
	var err error
	if next == nil {
		err = m.store.ClearActiveTimer(ctx)
	} else {
		err = m.store.SaveActiveTimer(ctx, next)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("persist timer: %w", err)
	}

	m.mu.Lock()
	m.timer = next
	if watch != nil {
		m.watch = watch
	}
	if next == nil {
		m.watch = clock.NewStopwatch(0)
	}
	snap := m.snapshotLocked(m.clock.Now())
	m.mu.Unlock()

	m.publish(snap)
	return snap, nil
}

// observe returns the clamped elapsed time of t at now.
func (m *Machine) observe(t *model.ActiveTimer, now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked(t, now)
}

func (m *Machine) elapsedLocked(t *model.ActiveTimer, now time.Time) time.Duration {
	switch t.Status {
	case model.StatusRunning:
		return m.watch.Observe(t.StartTime, t.PausedDuration, now)
	case model.StatusPaused:
		at := now
		if t.LastPauseTime != nil {
			at = *t.LastPauseTime
		}
		return m.watch.Observe(t.StartTime, t.PausedDuration, at)
	default:
		return t.Elapsed
	}
}

func (m *Machine) snapshotLocked(now time.Time) Snapshot {
	if m.timer == nil {
		return Snapshot{Status: model.StatusIdle}
	}
	t := m.timer
	return Snapshot{
		Status:         t.Status,
		ActivityID:     t.ActivityID,
		StartTime:      t.StartTime,
		PausedDuration: t.PausedDuration,
		Elapsed:        m.elapsedLocked(t, now),
		LastPauseTime:  copyTime(t.LastPauseTime),
		StoppedAt:      copyTime(t.StoppedAt),
	}
}

func (m *Machine) publish(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func pauseSpan(since *time.Time, now time.Time) time.Duration {
	if since == nil {
		return 0
	}
	span := now.Sub(*since)
	if span < 0 {
		return 0
	}
	return span
}

func buildEntry(t *model.ActiveTimer, userID, id string, feeling int, note string, now time.Time) model.TimeEntry {
	end := now
	if t.StoppedAt != nil {
		end = *t.StoppedAt
	}
	if end.Before(t.StartTime) {
		end = t.StartTime
	}

	paused := t.PausedDuration
	if t.StoppedFrom == model.StatusPaused {
		paused += pauseSpan(t.LastPauseTime, end)
	}

	durationMs := t.Elapsed.Milliseconds()
	return model.TimeEntry{
		ID:              id,
		UserID:          userID,
		ActivityID:      t.ActivityID,
		StartTime:       t.StartTime,
		EndTime:         end,
		DurationMs:      durationMs,
		DurationMinutes: int(durationMs / 60000),
		PausedMs:        paused.Milliseconds(),
		FeelingRating:   feeling,
		Note:            note,
		CreatedAt:       now,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
