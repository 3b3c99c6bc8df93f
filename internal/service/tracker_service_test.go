package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workingonit/backend/internal/classifier"
	"workingonit/backend/internal/clock"
	"workingonit/backend/internal/model"
	"workingonit/backend/internal/repository"
	"workingonit/backend/internal/syncqueue"
)

type memoryRemote struct {
	mu         sync.Mutex
	activities map[string]model.Activity
	entries    map[string]model.TimeEntry
	fail       bool
	// gate, when set, holds every activity upsert until it is closed.
	gate chan struct{}
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{activities: map[string]model.Activity{}, entries: map[string]model.TimeEntry{}}
}

func (r *memoryRemote) UpsertActivities(ctx context.Context, userID string, items []model.Activity) error {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("unreachable")
	}
	for _, a := range items {
		a.UserID = userID
		r.activities[a.ID] = a
	}
	return nil
}

func (r *memoryRemote) UpsertTimeEntries(_ context.Context, userID string, items []model.TimeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("unreachable")
	}
	for _, e := range items {
		e.UserID = userID
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memoryRemote) ListActivities(_ context.Context, userID string) ([]model.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("unreachable")
	}
	out := []model.Activity{}
	for _, a := range r.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRemote) ListTimeEntries(_ context.Context, userID string) ([]model.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("unreachable")
	}
	out := []model.TimeEntry{}
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRemote) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type harness struct {
	svc    *TrackerService
	clk    *clock.Fake
	kv     *repository.MemoryKV
	remote *memoryRemote
	syncer *syncqueue.Syncer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()
	h := &harness{
		clk:    clock.NewFake(time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)),
		kv:     repository.NewMemoryKV(),
		remote: newMemoryRemote(),
	}
	h.syncer = syncqueue.New(syncqueue.Config{
		Remote:        h.remote,
		KV:            h.kv,
		Connectivity:  syncqueue.NewConnectivity(online),
		Clock:         h.clk,
		RemoteTimeout: time.Second,
		Log:           discardLogger(),
	})
	h.svc = h.newService()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.syncer.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		h.svc.Close()
	})
	return h
}

func (h *harness) newService() *TrackerService {
	n := 0
	var mu sync.Mutex
	return NewTrackerService(TrackerConfig{
		KV:           h.kv,
		Classifier:   classifier.New(discardLogger(), nil),
		Syncer:       h.syncer,
		Clock:        h.clk,
		TickInterval: time.Hour,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
		Log: discardLogger(),
	})
}

func (h *harness) activity(t *testing.T, userID, name, sphere string) model.Activity {
	t.Helper()
	out, apiErr := h.svc.CreateActivity(context.Background(), userID, CreateActivityInput{Name: name, Sphere: sphere})
	require.Nil(t, apiErr)
	return out.Activity
}

func TestCreateActivity(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	t.Run("classified by keyword", func(t *testing.T) {
		out, apiErr := h.svc.CreateActivity(ctx, "u1", CreateActivityInput{Name: "Morning Yoga"})
		require.Nil(t, apiErr)
		assert.Equal(t, model.SpherePhysical, out.Activity.Sphere)
		require.NotNil(t, out.Classification)
		assert.Equal(t, classifier.MethodKeyword, out.Classification.Method)
		assert.Equal(t, model.SpherePhysical.Info().Colors[0], out.Activity.Color)
	})

	t.Run("falls back to default sphere", func(t *testing.T) {
		out, apiErr := h.svc.CreateActivity(ctx, "u1", CreateActivityInput{Name: "zzzz"})
		require.Nil(t, apiErr)
		assert.Equal(t, model.DefaultSphere, out.Activity.Sphere)
		assert.Equal(t, classifier.MethodDefault, out.Classification.Method)
	})

	t.Run("explicit sphere and colour", func(t *testing.T) {
		out, apiErr := h.svc.CreateActivity(ctx, "u1", CreateActivityInput{Name: "Journal", Sphere: " Emotional ", Color: "#ABCDEF"})
		require.Nil(t, apiErr)
		assert.Equal(t, model.SphereEmotional, out.Activity.Sphere)
		assert.Equal(t, "#abcdef", out.Activity.Color)
		assert.Nil(t, out.Classification)
	})

	tests := []struct {
		name  string
		input CreateActivityInput
	}{
		{"empty name", CreateActivityInput{Name: "  "}},
		{"unknown sphere", CreateActivityInput{Name: "x", Sphere: "cosmic"}},
		{"bad colour", CreateActivityInput{Name: "x", Sphere: "social", Color: "red"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, apiErr := h.svc.CreateActivity(ctx, "u1", tt.input)
			require.NotNil(t, apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, "validation_error", apiErr.Code)
		})
	}

	list, apiErr := h.svc.ListActivities(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Len(t, list, 3)

	other, apiErr := h.svc.ListActivities(ctx, "u2")
	require.Nil(t, apiErr)
	assert.Empty(t, other)
}

func TestTimerFlowRecordsAndSyncs(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	yoga := h.activity(t, "u1", "Yoga", "physical")

	view, apiErr := h.svc.StartTimer(ctx, "u1", yoga.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, model.StatusRunning, view.Timer.Status)
	require.NotNil(t, view.Activity)
	assert.Equal(t, "Yoga", view.Activity.Name)

	h.clk.Advance(60 * time.Second)
	_, apiErr = h.svc.PauseTimer(ctx, "u1")
	require.Nil(t, apiErr)
	h.clk.Advance(60 * time.Second)
	_, apiErr = h.svc.ResumeTimer(ctx, "u1")
	require.Nil(t, apiErr)
	h.clk.Advance(30 * time.Second)
	view, apiErr = h.svc.StopTimer(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Equal(t, 90*time.Second, view.Timer.Elapsed)

	_, apiErr = h.svc.RateSession(ctx, "u1", 0, "")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	res, apiErr := h.svc.RateSession(ctx, "u1", 5, "flow")
	require.Nil(t, apiErr)
	assert.Equal(t, int64(90000), res.Entry.DurationMs)
	assert.Equal(t, model.StatusIdle, res.Timer.Status)

	today, apiErr := h.svc.TodayEntries(ctx, "u1", time.UTC)
	require.Nil(t, apiErr)
	require.Len(t, today, 1)
	assert.Equal(t, "Yoga", today[0].ActivityName)

	require.Eventually(t, func() bool { return h.remote.entryCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	h := newHarness(t, true)
	_, apiErr := h.svc.PauseTimer(context.Background(), "u1")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "invalid_transition", apiErr.Code)
}

func TestStartUnknownActivity(t *testing.T) {
	h := newHarness(t, true)
	_, apiErr := h.svc.StartTimer(context.Background(), "u1", "ghost")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestTimerSurvivesServiceRestart(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	read := h.activity(t, "u1", "Read a book", "")

	_, apiErr := h.svc.StartTimer(ctx, "u1", read.ID)
	require.Nil(t, apiErr)
	h.clk.Advance(10 * time.Minute)
	h.svc.Close()

	restarted := h.newService()
	t.Cleanup(restarted.Close)
	h.clk.Advance(5 * time.Minute)

	view, apiErr := restarted.GetTimer(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Equal(t, model.StatusRunning, view.Timer.Status)
	assert.Equal(t, 15*time.Minute, view.Timer.Elapsed)
}

func TestDeleteActivity(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	walk := h.activity(t, "u1", "Walk", "physical")
	paint := h.activity(t, "u1", "Paint", "creative")

	for _, a := range []model.Activity{walk, paint} {
		_, apiErr := h.svc.StartTimer(ctx, "u1", a.ID)
		require.Nil(t, apiErr)
		h.clk.Advance(20 * time.Minute)
		_, apiErr = h.svc.StopTimer(ctx, "u1")
		require.Nil(t, apiErr)
		_, apiErr = h.svc.RateSession(ctx, "u1", 4, "")
		require.Nil(t, apiErr)
	}

	_, apiErr := h.svc.StartTimer(ctx, "u1", walk.ID)
	require.Nil(t, apiErr)
	apiErr = h.svc.DeleteActivity(ctx, "u1", walk.ID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	_, apiErr = h.svc.DiscardTimer(ctx, "u1")
	require.Nil(t, apiErr)
	require.Nil(t, h.svc.DeleteActivity(ctx, "u1", walk.ID))

	apiErr = h.svc.DeleteActivity(ctx, "u1", walk.ID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	report, apiErr := h.svc.Analytics(ctx, "u1", time.UTC)
	require.Nil(t, apiErr)
	require.Len(t, report.Spheres, 1)
	assert.Equal(t, model.SphereCreative, report.Spheres[0].Sphere)
	assert.Equal(t, 1, report.AllTime.Sessions)

	entries, apiErr := h.svc.ListEntries(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Len(t, entries, 1)

	export, apiErr := h.svc.Export(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Len(t, export.TimeEntries, 2, "export keeps orphaned entries")
}

func TestRecordIgnoresDuplicateEntry(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	walk := h.activity(t, "u1", "Walk", "physical")

	tr, apiErr := h.svc.tracker(ctx, "u1")
	require.Nil(t, apiErr)

	entry := model.TimeEntry{
		ID:              "entry-1",
		UserID:          "u1",
		ActivityID:      walk.ID,
		StartTime:       h.clk.Now().Add(-30 * time.Minute),
		EndTime:         h.clk.Now(),
		DurationMs:      (30 * time.Minute).Milliseconds(),
		DurationMinutes: 30,
		FeelingRating:   3,
		CreatedAt:       h.clk.Now(),
	}
	require.NoError(t, tr.Record(ctx, entry))
	require.NoError(t, tr.Record(ctx, entry))

	entries, apiErr := h.svc.ListEntries(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Len(t, entries, 1)
}

func TestProjects(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		_, apiErr := h.svc.CreateProject(ctx, "u1", CreateProjectInput{Spheres: []string{"creative"}})
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)

		_, apiErr = h.svc.CreateProject(ctx, "u1", CreateProjectInput{Name: "Band", Spheres: []string{"music"}})
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)

		_, apiErr = h.svc.CreateProject(ctx, "u1", CreateProjectInput{Name: "Band", Spheres: []string{"creative"}, Color: "blue"})
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	})

	project, apiErr := h.svc.CreateProject(ctx, "u1", CreateProjectInput{
		Name:    " Band ",
		Spheres: []string{"Creative", "social", "creative"},
		Color:   "#ABCDEF",
	})
	require.Nil(t, apiErr)
	assert.Equal(t, "Band", project.Name)
	assert.Equal(t, []model.Sphere{model.SphereCreative, model.SphereSocial}, project.Spheres)
	assert.Equal(t, "#abcdef", project.Color)

	t.Run("classification stays inside the project", func(t *testing.T) {
		out, apiErr := h.svc.CreateActivity(ctx, "u1", CreateActivityInput{Name: "Morning Yoga", ProjectID: project.ID})
		require.Nil(t, apiErr)
		assert.Equal(t, model.SphereCreative, out.Activity.Sphere)
		assert.Equal(t, classifier.MethodDefault, out.Classification.Method)
		assert.Equal(t, project.ID, out.Activity.ProjectID)
	})

	t.Run("explicit sphere outside the project", func(t *testing.T) {
		_, apiErr := h.svc.CreateActivity(ctx, "u1", CreateActivityInput{Name: "Gym", Sphere: "physical", ProjectID: project.ID})
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	})

	rehearsal, apiErr := h.svc.CreateActivity(ctx, "u1", CreateActivityInput{Name: "Rehearsal", Sphere: "social", ProjectID: project.ID})
	require.Nil(t, apiErr)
	h.activity(t, "u1", "Walk", "physical")

	export, apiErr := h.svc.Export(ctx, "u1")
	require.Nil(t, apiErr)
	require.Len(t, export.Projects, 1)
	assert.Len(t, export.Activities, 3)

	_, apiErr = h.svc.StartTimer(ctx, "u1", rehearsal.Activity.ID)
	require.Nil(t, apiErr)
	apiErr = h.svc.DeleteProject(ctx, "u1", project.ID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	_, apiErr = h.svc.DiscardTimer(ctx, "u1")
	require.Nil(t, apiErr)

	require.Nil(t, h.svc.DeleteProject(ctx, "u1", project.ID))
	apiErr = h.svc.DeleteProject(ctx, "u1", project.ID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	projects, apiErr := h.svc.ListProjects(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Empty(t, projects)
	activities, apiErr := h.svc.ListActivities(ctx, "u1")
	require.Nil(t, apiErr)
	require.Len(t, activities, 1)
	assert.Equal(t, "Walk", activities[0].Name)

	_, apiErr = h.svc.CreateActivity(ctx, "u1", CreateActivityInput{Name: "Encore", ProjectID: project.ID})
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestSuggestSphere(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	assert.False(t, h.svc.SuggestSphere(ctx, "yo").Found)
	assert.False(t, h.svc.SuggestSphere(ctx, "qwerty").Found)

	s := h.svc.SuggestSphere(ctx, "Evening prayer")
	assert.True(t, s.Found)
	assert.Equal(t, model.SphereSpiritual, s.Sphere)
	assert.Equal(t, classifier.MethodKeyword, s.Method)
	require.NotNil(t, s.Info)
	assert.Equal(t, "Spiritual", s.Info.Name)
}

func TestClearData(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	a := h.activity(t, "u1", "Chess", "")
	_, apiErr := h.svc.CreateProject(ctx, "u1", CreateProjectInput{Name: "Tournament", Spheres: []string{"intellectual"}})
	require.Nil(t, apiErr)
	_, apiErr = h.svc.StartTimer(ctx, "u1", a.ID)
	require.Nil(t, apiErr)

	require.Nil(t, h.svc.ClearData(ctx, "u1"))

	view, apiErr := h.svc.GetTimer(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Equal(t, model.StatusIdle, view.Timer.Status)
	list, apiErr := h.svc.ListActivities(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Empty(t, list)
	projects, apiErr := h.svc.ListProjects(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Empty(t, projects)
}

func TestConnectivityAndPull(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.activity(t, "u1", "Guitar", "creative")

	require.Eventually(t, func() bool {
		st, apiErr := h.svc.SyncStatus(ctx, "u1")
		return apiErr == nil && st.Pending == 1 && st.InFlight == 0
	}, 2*time.Second, 10*time.Millisecond)

	pull, apiErr := h.svc.Pull(ctx, "u1")
	require.Nil(t, apiErr)
	assert.False(t, pull.Loaded)

	res, apiErr := h.svc.SetConnectivity(ctx, "u1", true)
	require.Nil(t, apiErr)
	assert.True(t, res.Restored)
	assert.True(t, res.Online)
	assert.Zero(t, res.Pending)

	pull, apiErr = h.svc.Pull(ctx, "u1")
	require.Nil(t, apiErr)
	assert.True(t, pull.Loaded)
	assert.Equal(t, 1, pull.Activities)

	h.remote.mu.Lock()
	h.remote.fail = true
	h.remote.mu.Unlock()
	pull, apiErr = h.svc.Pull(ctx, "u1")
	require.Nil(t, apiErr)
	assert.False(t, pull.Loaded)
	assert.NotEmpty(t, pull.Reason)

	list, apiErr := h.svc.ListActivities(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Len(t, list, 1, "local data survives a failed pull")

	res, apiErr = h.svc.SetConnectivity(ctx, "u1", false)
	require.Nil(t, apiErr)
	assert.False(t, res.Online)
}

func TestPullRefusedWhileUploadInFlight(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	gate := make(chan struct{})
	h.remote.mu.Lock()
	h.remote.gate = gate
	h.remote.mu.Unlock()

	h.activity(t, "u1", "Guitar", "creative")

	pull, apiErr := h.svc.Pull(ctx, "u1")
	require.Nil(t, apiErr)
	assert.False(t, pull.Loaded, "pull must wait for the upload")
	assert.NotEmpty(t, pull.Reason)

	list, apiErr := h.svc.ListActivities(ctx, "u1")
	require.Nil(t, apiErr)
	assert.Len(t, list, 1)

	close(gate)
	require.Eventually(t, func() bool {
		st, apiErr := h.svc.SyncStatus(ctx, "u1")
		return apiErr == nil && st.InFlight == 0 && st.Pending == 0
	}, 2*time.Second, 10*time.Millisecond)

	pull, apiErr = h.svc.Pull(ctx, "u1")
	require.Nil(t, apiErr)
	assert.True(t, pull.Loaded)
	assert.Equal(t, 1, pull.Activities)
}
