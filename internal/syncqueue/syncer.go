// Package syncqueue mirrors local changes to the remote store. Changes made
// while offline, or whose upload fails, are appended to a durable per-user
// queue and replayed when connectivity returns.
package syncqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"workingonit/backend/internal/clock"
	"workingonit/backend/internal/model"
	"workingonit/backend/internal/repository"
)

// Remote is the shared store. Upserts overwrite rows with the same id; lists
// return the user's rows newest first.
type Remote interface {
	UpsertActivities(ctx context.Context, userID string, items []model.Activity) error
	UpsertTimeEntries(ctx context.Context, userID string, items []model.TimeEntry) error
	ListActivities(ctx context.Context, userID string) ([]model.Activity, error)
	ListTimeEntries(ctx context.Context, userID string) ([]model.TimeEntry, error)
}

type Outcome string

const (
	OutcomeSynced Outcome = "synced"
	OutcomeQueued Outcome = "queued"
)

type FlushResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Remaining int `json:"remaining"`
}

type Config struct {
	// Remote may be nil, in which case every change is queued.
	Remote        Remote
	KV            repository.KV
	Connectivity  *Connectivity
	Clock         clock.Clock
	RemoteTimeout time.Duration
	WorkerBuffer  int
	Log           *slog.Logger
}

type Syncer struct {
	remote  Remote
	kv      repository.KV
	conn    *Connectivity
	clock   clock.Clock
	timeout time.Duration
	log     *slog.Logger

	jobs     chan job
	restored <-chan struct{}

	// queueMu serializes every read-modify-write of the durable queues,
	// including whole flushes.
	queueMu sync.Mutex

	// inflight counts submitted payloads per user that are neither uploaded
	// nor queued yet.
	inflightMu sync.Mutex
	inflight   map[string]int
}

func New(cfg Config) *Syncer {
	if cfg.Connectivity == nil {
		cfg.Connectivity = NewConnectivity(true)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 10 * time.Second
	}
	if cfg.WorkerBuffer < 1 {
		cfg.WorkerBuffer = 64
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Syncer{
		remote:   cfg.Remote,
		kv:       cfg.KV,
		conn:     cfg.Connectivity,
		clock:    cfg.Clock,
		timeout:  cfg.RemoteTimeout,
		log:      cfg.Log.With("service", "sync"),
		jobs:     make(chan job, cfg.WorkerBuffer),
		restored: cfg.Connectivity.Restored(),
		inflight: make(map[string]int),
	}
}

func (s *Syncer) Connectivity() *Connectivity {
	return s.conn
}

func (s *Syncer) RemoteEnabled() bool {
	return s.remote != nil
}

// SmartSync uploads payload when online and queues it otherwise. A failed
// upload is queued too; only a failure to write the queue is returned.
func (s *Syncer) SmartSync(ctx context.Context, userID string, payload model.SyncPayload) (Outcome, error) {
	if payload.Empty() {
		return OutcomeSynced, nil
	}

	if s.remote != nil && s.conn.Online() {
		err := s.push(ctx, userID, payload)
		if err == nil {
			return OutcomeSynced, nil
		}
		s.log.Warn("remote sync failed, queueing", "user_id", userID, "error", err)
	}

	if err := s.enqueue(ctx, userID, payload); err != nil {
		return "", err
	}
	return OutcomeQueued, nil
}

// Flush replays the user's queue in order. Every item is attempted once and
// the queue is rewritten with the failures, preserving their order.
func (s *Syncer) Flush(ctx context.Context, userID string) (FlushResult, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.flushLocked(ctx, userID)
}

// FlushAll flushes every user with a pending queue.
func (s *Syncer) FlushAll(ctx context.Context) error {
	users, err := s.kv.Namespaces(ctx, repository.KeySyncQueue)
	if err != nil {
		return fmt.Errorf("list pending queues: %w", err)
	}

	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for _, userID := range users {
		res, err := s.flushLocked(ctx, userID)
		if err != nil {
			return err
		}
		s.log.Info("sync queue flushed",
			"user_id", userID,
			"attempted", res.Attempted,
			"succeeded", res.Succeeded,
			"remaining", res.Remaining,
		)
	}
	return nil
}

// Pending returns the number of queued payloads for the user.
func (s *Syncer) Pending(ctx context.Context, userID string) (int, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	queue, err := repository.NewLocalStore(s.kv, userID).LoadSyncQueue(ctx)
	if err != nil {
		return 0, err
	}
	return len(queue), nil
}

// InFlight returns how many submitted payloads of the user the worker has not
// settled yet.
func (s *Syncer) InFlight(userID string) int {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	return s.inflight[userID]
}

func (s *Syncer) track(userID string, delta int) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	s.inflight[userID] += delta
	if s.inflight[userID] <= 0 {
		delete(s.inflight, userID)
	}
}

// LoadFromRemote replaces the user's local activities and entries with the
// remote copy. On any error the local store is left untouched.
func (s *Syncer) LoadFromRemote(ctx context.Context, userID string) (*model.SyncPayload, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("remote sync is not configured")
	}
	if !s.conn.Online() {
		return nil, fmt.Errorf("offline")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	activities, err := s.remote.ListActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	entries, err := s.remote.ListTimeEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load time entries: %w", err)
	}

	store := repository.NewLocalStore(s.kv, userID)
	if err := store.SaveActivities(ctx, activities); err != nil {
		return nil, err
	}
	if err := store.SaveTimeEntries(ctx, entries); err != nil {
		return nil, err
	}

	s.log.Info("loaded from remote", "user_id", userID, "activities", len(activities), "time_entries", len(entries))
	return &model.SyncPayload{Activities: activities, TimeEntries: entries}, nil
}

func (s *Syncer) flushLocked(ctx context.Context, userID string) (FlushResult, error) {
	store := repository.NewLocalStore(s.kv, userID)
	queue, err := store.LoadSyncQueue(ctx)
	if err != nil {
		return FlushResult{}, err
	}
	if len(queue) == 0 || s.remote == nil || !s.conn.Online() {
		return FlushResult{Remaining: len(queue)}, nil
	}

	failed := make([]model.SyncQueueItem, 0)
	for _, item := range queue {
		if err := s.push(ctx, item.UserID, item.Payload); err != nil {
			s.log.Warn("queued sync failed", "user_id", userID, "queued_at", item.Timestamp, "error", err)
			failed = append(failed, item)
		}
	}

	if err := store.SaveSyncQueue(ctx, failed); err != nil {
		return FlushResult{}, err
	}
	return FlushResult{
		Attempted: len(queue),
		Succeeded: len(queue) - len(failed),
		Remaining: len(failed),
	}, nil
}

func (s *Syncer) push(ctx context.Context, userID string, payload model.SyncPayload) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if len(payload.Activities) > 0 {
		if err := s.remote.UpsertActivities(ctx, userID, payload.Activities); err != nil {
			return fmt.Errorf("upsert activities: %w", err)
		}
	}
	if len(payload.TimeEntries) > 0 {
		if err := s.remote.UpsertTimeEntries(ctx, userID, payload.TimeEntries); err != nil {
			return fmt.Errorf("upsert time entries: %w", err)
		}
	}
	return nil
}

func (s *Syncer) enqueue(ctx context.Context, userID string, payload model.SyncPayload) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	store := repository.NewLocalStore(s.kv, userID)
	queue, err := store.LoadSyncQueue(ctx)
	if err != nil {
		return err
	}
	queue = append(queue, model.SyncQueueItem{
		UserID:    userID,
		Payload:   payload,
		Timestamp: s.clock.Now(),
	})
	if err := store.SaveSyncQueue(ctx, queue); err != nil {
		return err
	}
	s.log.Debug("sync payload queued", "user_id", userID, "queue_len", len(queue))
	return nil
}
