package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workingonit/backend/internal/clock"
	"workingonit/backend/internal/model"
	"workingonit/backend/internal/repository"
)

type knownActivities map[string]bool

func (k knownActivities) ActivityExists(_ context.Context, id string) (bool, error) {
	return k[id], nil
}

type recorder struct {
	mu      sync.Mutex
	entries []model.TimeEntry
	err     error
}

func (r *recorder) Record(_ context.Context, entry model.TimeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

type failingStore struct {
	*repository.LocalStore
	fail bool
}

func (s *failingStore) SaveActiveTimer(ctx context.Context, t *model.ActiveTimer) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.LocalStore.SaveActiveTimer(ctx, t)
}

var t0 = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

type fixture struct {
	m     *Machine
	clk   *clock.Fake
	store *repository.LocalStore
	kv    *repository.MemoryKV
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := repository.NewMemoryKV()
	f := &fixture{
		clk:   clock.NewFake(t0),
		kv:    kv,
		store: repository.NewLocalStore(kv, "u1"),
		rec:   &recorder{},
	}
	f.m = f.machine(f.store)
	t.Cleanup(f.m.Close)
	return f
}

func (f *fixture) machine(store TimerStore) *Machine {
	n := 0
	return New(Config{
		UserID:     "u1",
		Clock:      f.clk,
		Store:      store,
		Activities: knownActivities{"a1": true, "a2": true},
		Recorder:   f.rec,
		NewID: func() string {
			n++
			return fmt.Sprintf("e%d", n)
		},
		TickInterval: time.Hour,
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestPauseResumeStopRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	snap, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, snap.Status)

	f.clk.Advance(60 * time.Second)
	snap, err = f.m.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, snap.Elapsed)

	f.clk.Advance(60 * time.Second)
	assert.Equal(t, 60*time.Second, f.m.Snapshot().Elapsed, "elapsed is frozen while paused")

	snap, err = f.m.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, snap.PausedDuration)

	f.clk.Advance(30 * time.Second)
	snap, err = f.m.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingRating, snap.Status)
	assert.Equal(t, 90*time.Second, snap.Elapsed)
	assert.Empty(t, f.rec.entries, "stop alone records nothing")

	f.clk.Advance(10 * time.Second)
	entry, err := f.m.SubmitRating(ctx, 4, "  good focus  ")
	require.NoError(t, err)

	assert.Equal(t, int64(90000), entry.DurationMs)
	assert.Equal(t, 1, entry.DurationMinutes)
	assert.Equal(t, int64(60000), entry.PausedMs)
	assert.Equal(t, "good focus", entry.Note)
	assert.Equal(t, 4, entry.FeelingRating)
	assert.True(t, entry.StartTime.Equal(t0))
	assert.True(t, entry.EndTime.Equal(t0.Add(150*time.Second)))
	assert.Equal(t, entry.EndTime.Sub(entry.StartTime)-time.Duration(entry.PausedMs)*time.Millisecond, entry.Duration())
	require.Len(t, f.rec.entries, 1)

	assert.Equal(t, model.StatusIdle, f.m.Snapshot().Status)
	persisted, err := f.store.LoadActiveTimer(ctx)
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestUnpausedEntryDurationMatchesSpan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	f.clk.Advance(25 * time.Minute)
	_, err = f.m.Stop(ctx)
	require.NoError(t, err)

	entry, err := f.m.SubmitRating(ctx, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 25, entry.DurationMinutes)
	assert.Equal(t, time.Duration(entry.DurationMinutes)*time.Minute, entry.EndTime.Sub(entry.StartTime))
}

func TestStopWhilePausedExcludesOpenPause(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	f.clk.Advance(2 * time.Minute)
	_, err = f.m.Pause(ctx)
	require.NoError(t, err)
	f.clk.Advance(5 * time.Minute)
	_, err = f.m.Stop(ctx)
	require.NoError(t, err)

	entry, err := f.m.SubmitRating(ctx, 3, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2*60000), entry.DurationMs)
	assert.Equal(t, int64(5*60000), entry.PausedMs)
}

func TestRatingValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	f.clk.Advance(time.Minute)
	_, err = f.m.Stop(ctx)
	require.NoError(t, err)

	for _, feeling := range []int{0, -1, 6} {
		_, err := f.m.SubmitRating(ctx, feeling, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrValidation, "feeling %d", feeling)
		assert.Equal(t, model.StatusAwaitingRating, f.m.Snapshot().Status)
	}

	_, err = f.m.SubmitRating(ctx, 3, strings.Repeat("x", model.MaxNoteLength+1))
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, f.rec.entries)

	_, err = f.m.SubmitRating(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, f.rec.entries, 1)
}

func TestRecorderFailureKeepsTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	_, err = f.m.Stop(ctx)
	require.NoError(t, err)

	f.rec.err = errors.New("write failed")
	_, err = f.m.SubmitRating(ctx, 4, "")
	require.Error(t, err)
	assert.Equal(t, model.StatusAwaitingRating, f.m.Snapshot().Status)

	f.rec.err = nil
	_, err = f.m.SubmitRating(ctx, 4, "")
	require.NoError(t, err)
}

func TestRetriedRatingReusesEntryID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &failingStore{LocalStore: f.store}
	m := f.machine(store)
	t.Cleanup(m.Close)

	_, err := m.Start(ctx, "a1")
	require.NoError(t, err)
	_, err = m.Stop(ctx)
	require.NoError(t, err)

	// The entry is recorded but clearing the timer fails.
	store.fail = true
	_, err = m.SubmitRating(ctx, 3, "")
	require.Error(t, err)
	assert.Equal(t, model.StatusAwaitingRating, m.Snapshot().Status)

	store.fail = false
	entry, err := m.SubmitRating(ctx, 3, "")
	require.NoError(t, err)

	require.Len(t, f.rec.entries, 2)
	assert.Equal(t, f.rec.entries[0].ID, f.rec.entries[1].ID)
	assert.Equal(t, f.rec.entries[0].ID, entry.ID)
	assert.Equal(t, model.StatusIdle, m.Snapshot().Status)
}

func TestStartRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	snap, err := f.m.Start(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusIdle, snap.Status)

	_, err = f.m.Start(ctx, "ghost")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, model.StatusIdle, f.m.Snapshot().Status)

	_, err = f.m.Start(ctx, "a1")
	require.NoError(t, err)
	_, err = f.m.Start(ctx, "a2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "a1", f.m.ActiveActivityID())
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Pause(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.m.Resume(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.m.KeepWorking(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.m.SubmitRating(ctx, 3, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	snap, err := f.m.Stop(ctx)
	require.NoError(t, err, "stop without a timer is a no-op")
	assert.Equal(t, model.StatusIdle, snap.Status)

	_, err = f.m.Start(ctx, "a1")
	require.NoError(t, err)
	_, err = f.m.Resume(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.m.Stop(ctx)
	require.NoError(t, err)
	_, err = f.m.Stop(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.m.Pause(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestKeepWorkingCountsDialogTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	f.clk.Advance(10 * time.Minute)
	_, err = f.m.Stop(ctx)
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	snap, err := f.m.KeepWorking(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, snap.Status)
	assert.Equal(t, 11*time.Minute, snap.Elapsed)
	assert.Nil(t, snap.StoppedAt)
}

func TestKeepWorkingReturnsToPaused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	f.clk.Advance(time.Minute)
	_, err = f.m.Pause(ctx)
	require.NoError(t, err)
	_, err = f.m.Stop(ctx)
	require.NoError(t, err)

	snap, err := f.m.KeepWorking(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, snap.Status)
	assert.Equal(t, time.Minute, snap.Elapsed)

	f.clk.Advance(time.Minute)
	snap, err = f.m.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, snap.PausedDuration)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	snap, err := f.m.Discard(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIdle, snap.Status)

	_, err = f.m.Start(ctx, "a1")
	require.NoError(t, err)
	_, err = f.m.Stop(ctx)
	require.NoError(t, err)
	_, err = f.m.Discard(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.StatusIdle, f.m.Snapshot().Status)
	assert.Empty(t, f.rec.entries)
	persisted, err := f.store.LoadActiveTimer(ctx)
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &failingStore{LocalStore: f.store}
	m := f.machine(store)
	t.Cleanup(m.Close)

	_, err := m.Start(ctx, "a1")
	require.NoError(t, err)

	store.fail = true
	_, err = m.Pause(ctx)
	require.Error(t, err)
	assert.Equal(t, model.StatusRunning, m.Snapshot().Status)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	f.clk.Advance(3 * time.Minute)
	_, err = f.m.Pause(ctx)
	require.NoError(t, err)

	restarted := f.machine(repository.NewLocalStore(f.kv, "u1"))
	t.Cleanup(restarted.Close)
	f.clk.Advance(time.Hour)

	snap, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, snap.Status)
	assert.Equal(t, "a1", snap.ActivityID)
	assert.Equal(t, 3*time.Minute, snap.Elapsed)

	_, err = restarted.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, restarted.Snapshot().PausedDuration)
}

func TestRestoreDropsTimerForDeletedActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.SaveActiveTimer(ctx, &model.ActiveTimer{
		ActivityID: "deleted",
		Status:     model.StatusRunning,
		StartTime:  t0,
	}))

	snap, err := f.m.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIdle, snap.Status)

	persisted, err := f.store.LoadActiveTimer(ctx)
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestElapsedNeverDecreases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Start(ctx, "a1")
	require.NoError(t, err)
	f.clk.Advance(5 * time.Minute)
	assert.Equal(t, 5*time.Minute, f.m.Snapshot().Elapsed)

	f.clk.Advance(-2 * time.Minute)
	assert.Equal(t, 5*time.Minute, f.m.Snapshot().Elapsed)

	f.clk.Advance(3 * time.Minute)
	assert.Equal(t, 6*time.Minute, f.m.Snapshot().Elapsed)
}

func TestSubscribeReceivesTransitionsAndTicks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := New(Config{
		UserID:       "u1",
		Clock:        f.clk,
		Store:        f.store,
		Activities:   knownActivities{"a1": true},
		Recorder:     f.rec,
		NewID:        func() string { return "e1" },
		TickInterval: 5 * time.Millisecond,
	})
	t.Cleanup(m.Close)

	updates, cancel := m.Subscribe(16)
	defer cancel()

	_, err := m.Start(ctx, "a1")
	require.NoError(t, err)

	first := <-updates
	assert.Equal(t, model.StatusRunning, first.Status)

	select {
	case tick := <-updates:
		assert.Equal(t, model.StatusRunning, tick.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}

	_, err = m.Pause(ctx)
	require.NoError(t, err)
	assert.False(t, m.ticker.Running())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	m := newFixture(t).m

	updates, cancel := m.Subscribe(4)
	m.Close()

	select {
	case _, open := <-updates:
		assert.False(t, open, "subscriber channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("subscriber channel left open after Close")
	}
	assert.NotPanics(t, cancel)
	assert.NotPanics(t, cancel)

	late, lateCancel := m.Subscribe(1)
	_, open := <-late
	assert.False(t, open)
	assert.NotPanics(t, lateCancel)
}

func TestSnapshotJSON(t *testing.T) {
	snap := Snapshot{
		Status:         model.StatusRunning,
		ActivityID:     "a1",
		StartTime:      t0,
		PausedDuration: 1500 * time.Millisecond,
		Elapsed:        90 * time.Second,
	}
	raw, err := snap.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "running",
		"activityId": "a1",
		"startTime": "2024-05-06T09:00:00Z",
		"pausedDurationMs": 1500,
		"elapsedMs": 90000,
		"elapsedSeconds": 90
	}`, string(raw))

	idle, err := Snapshot{Status: model.StatusIdle}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"idle","pausedDurationMs":0,"elapsedMs":0,"elapsedSeconds":0}`, string(idle))
}
