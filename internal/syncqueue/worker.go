package syncqueue

import (
	"context"

	"workingonit/backend/internal/model"
)

type job struct {
	userID  string
	payload model.SyncPayload
}

// Submit hands payload to the background worker and returns immediately.
// When the worker is saturated the payload goes straight to the durable
// queue.
func (s *Syncer) Submit(ctx context.Context, userID string, payload model.SyncPayload) {
	if payload.Empty() {
		return
	}
	s.track(userID, 1)
	select {
	case s.jobs <- job{userID: userID, payload: payload}:
	default:
		if err := s.enqueue(ctx, userID, payload); err != nil {
			s.log.Error("queue sync payload", "user_id", userID, "error", err)
		}
		s.track(userID, -1)
	}
}

// Run processes submitted payloads and flushes every queue when connectivity
// is restored. On cancellation, payloads still waiting are moved to the
// durable queue before Run returns.
func (s *Syncer) Run(ctx context.Context) error {
	s.log.Info("sync worker started", "remote_enabled", s.remote != nil)
	for {
		if ctx.Err() != nil {
			s.drain()
			s.log.Info("sync worker stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			continue
		case j := <-s.jobs:
			if _, err := s.SmartSync(ctx, j.userID, j.payload); err != nil {
				s.log.Error("sync payload", "user_id", j.userID, "error", err)
			}
			s.track(j.userID, -1)
		case <-s.restored:
			s.log.Info("connectivity restored, flushing sync queues")
			if err := s.FlushAll(ctx); err != nil {
				s.log.Error("flush sync queues", "error", err)
			}
		}
	}
}

func (s *Syncer) drain() {
	ctx := context.Background()
	for {
		select {
		case j := <-s.jobs:
			if err := s.enqueue(ctx, j.userID, j.payload); err != nil {
				s.log.Error("queue sync payload on shutdown", "user_id", j.userID, "error", err)
			}
			s.track(j.userID, -1)
		default:
			return
		}
	}
}
