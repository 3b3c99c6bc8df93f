package service

import (
	"context"

	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/syncqueue"
)

type SyncStatus struct {
	Online        bool `json:"online"`
	RemoteEnabled bool `json:"remoteEnabled"`
	Pending       int  `json:"pending"`
	// InFlight counts changes handed to the sync worker but not yet settled.
	InFlight int `json:"inFlight"`
}

type ConnectivityResult struct {
	SyncStatus
	// Restored is true when this report flipped the link from down to up.
	Restored bool                   `json:"restored"`
	Flush    *syncqueue.FlushResult `json:"flush,omitempty"`
}

type PullResult struct {
	Loaded      bool   `json:"loaded"`
	Activities  int    `json:"activities"`
	TimeEntries int    `json:"timeEntries"`
	Reason      string `json:"reason,omitempty"`
}

// SetConnectivity records a client connectivity report. Going online drains
// the caller's queue right away; other users' queues are drained by the
// background worker.
func (s *TrackerService) SetConnectivity(ctx context.Context, userID string, online bool) (*ConnectivityResult, *apperrors.APIError) {
	if s.syncer == nil {
		return &ConnectivityResult{}, nil
	}
	conn := s.syncer.Connectivity()

	out := &ConnectivityResult{}
	if online {
		out.Restored = conn.SetOnline()
		res, err := s.syncer.Flush(ctx, userID)
		if err != nil {
			return nil, s.fail(err, userID, "flush sync queue", "failed to flush sync queue")
		}
		out.Flush = &res
	} else {
		conn.SetOffline()
	}

	status, apiErr := s.SyncStatus(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	out.SyncStatus = *status
	return out, nil
}

func (s *TrackerService) SyncStatus(ctx context.Context, userID string) (*SyncStatus, *apperrors.APIError) {
	if s.syncer == nil {
		return &SyncStatus{}, nil
	}
	pending, err := s.syncer.Pending(ctx, userID)
	if err != nil {
		return nil, s.fail(err, userID, "sync status", "failed to read sync queue")
	}
	return &SyncStatus{
		Online:        s.syncer.Connectivity().Online(),
		RemoteEnabled: s.syncer.RemoteEnabled(),
		Pending:       pending,
		InFlight:      s.syncer.InFlight(userID),
	}, nil
}

// Pull mirrors the remote copy into the local store. It refuses while
// changes are queued or still with the sync worker, since the remote copy
// would be missing them.
// Remote failures leave local data in place and are reported in the result.
func (s *TrackerService) Pull(ctx context.Context, userID string) (*PullResult, *apperrors.APIError) {
	if s.syncer == nil || !s.syncer.RemoteEnabled() {
		return &PullResult{Reason: "remote sync is not configured"}, nil
	}

	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	pending, err := s.syncer.Pending(ctx, userID)
	if err != nil {
		return nil, s.fail(err, userID, "pull", "failed to read sync queue")
	}
	if pending > 0 || s.syncer.InFlight(userID) > 0 {
		return &PullResult{Reason: "local changes are waiting to sync"}, nil
	}

	payload, err := s.syncer.LoadFromRemote(ctx, userID)
	if err != nil {
		s.log.Warn("load from remote failed, keeping local data", "user_id", userID, "error", err)
		return &PullResult{Reason: err.Error()}, nil
	}
	return &PullResult{
		Loaded:      true,
		Activities:  len(payload.Activities),
		TimeEntries: len(payload.TimeEntries),
	}, nil
}
