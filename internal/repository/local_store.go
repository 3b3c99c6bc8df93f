package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"workingonit/backend/internal/model"
)

// Collection keys inside a user's namespace.
const (
	KeyProjects    = "projects"
	KeyActivities  = "activities"
	KeyTimeEntries = "timeEntries"
	KeyActiveTimer = "activeTimer"
	KeySyncQueue   = "syncQueue"
)

// LocalStore reads and writes one user's collections. Every save serializes
// the entire collection; there is no incremental diff and no schema version.
type LocalStore struct {
	kv        KV
	namespace string
}

func NewLocalStore(kv KV, userID string) *LocalStore {
	return &LocalStore{kv: kv, namespace: userID}
}

func (s *LocalStore) LoadProjects(ctx context.Context) ([]model.Project, error) {
	items := []model.Project{}
	if err := s.load(ctx, KeyProjects, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *LocalStore) SaveProjects(ctx context.Context, items []model.Project) error {
	return s.save(ctx, KeyProjects, items)
}

func (s *LocalStore) LoadActivities(ctx context.Context) ([]model.Activity, error) {
	items := []model.Activity{}
	if err := s.load(ctx, KeyActivities, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *LocalStore) SaveActivities(ctx context.Context, items []model.Activity) error {
	return s.save(ctx, KeyActivities, items)
}

func (s *LocalStore) LoadTimeEntries(ctx context.Context) ([]model.TimeEntry, error) {
	items := []model.TimeEntry{}
	if err := s.load(ctx, KeyTimeEntries, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *LocalStore) SaveTimeEntries(ctx context.Context, items []model.TimeEntry) error {
	return s.save(ctx, KeyTimeEntries, items)
}

// LoadActiveTimer returns nil when no session is in progress.
func (s *LocalStore) LoadActiveTimer(ctx context.Context) (*model.ActiveTimer, error) {
	var timer *model.ActiveTimer
	if err := s.load(ctx, KeyActiveTimer, &timer); err != nil {
		return nil, err
	}
	return timer, nil
}

func (s *LocalStore) SaveActiveTimer(ctx context.Context, timer *model.ActiveTimer) error {
	if timer == nil {
		return s.ClearActiveTimer(ctx)
	}
	return s.save(ctx, KeyActiveTimer, timer)
}

func (s *LocalStore) ClearActiveTimer(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.namespace, KeyActiveTimer); err != nil {
		return fmt.Errorf("clear active timer: %w", err)
	}
	return nil
}

func (s *LocalStore) LoadSyncQueue(ctx context.Context) ([]model.SyncQueueItem, error) {
	items := []model.SyncQueueItem{}
	if err := s.load(ctx, KeySyncQueue, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveSyncQueue rewrites the queue; an empty queue removes the key.
func (s *LocalStore) SaveSyncQueue(ctx context.Context, items []model.SyncQueueItem) error {
	if len(items) == 0 {
		if err := s.kv.Delete(ctx, s.namespace, KeySyncQueue); err != nil {
			return fmt.Errorf("clear sync queue: %w", err)
		}
		return nil
	}
	return s.save(ctx, KeySyncQueue, items)
}

// Clear removes every collection for the user.
func (s *LocalStore) Clear(ctx context.Context) error {
	for _, key := range []string{KeyProjects, KeyActivities, KeyTimeEntries, KeyActiveTimer, KeySyncQueue} {
		if err := s.kv.Delete(ctx, s.namespace, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}

func (s *LocalStore) load(ctx context.Context, key string, dest any) error {
	raw, ok, err := s.kv.Get(ctx, s.namespace, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, s.namespace, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
