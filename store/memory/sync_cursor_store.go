package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/healthsync/go-connectors/core"
)

type SyncCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]core.SyncCursor
	nowFn   func() time.Time
}

func NewSyncCursorStore() *SyncCursorStore {
	return &SyncCursorStore{
		cursors: make(map[string]core.SyncCursor),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *SyncCursorStore) GetCursor(_ context.Context, vendor core.Vendor, userID string) (core.SyncCursor, error) {
	if s == nil {
		return core.SyncCursor{}, fmt.Errorf("memory: sync cursor store is nil")
	}
	key := core.StorageKey(core.NormalizeVendor(string(vendor)), userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor, ok := s.cursors[key]
	if !ok {
		return core.SyncCursor{}, core.ErrCursorNotFound
	}
	return cursor, nil
}

// AdvanceCursor accumulates the synced-record delta into the stored total
// and moves the sync timestamp forward. CreatedAt survives updates.
func (s *SyncCursorStore) AdvanceCursor(_ context.Context, in core.AdvanceCursorInput) (core.SyncCursor, error) {
	if s == nil {
		return core.SyncCursor{}, fmt.Errorf("memory: sync cursor store is nil")
	}
	vendor := core.NormalizeVendor(string(in.Vendor))
	userID := strings.TrimSpace(in.UserID)
	if err := vendor.Validate(); err != nil {
		return core.SyncCursor{}, err
	}
	if userID == "" {
		return core.SyncCursor{}, fmt.Errorf("memory: user id is required")
	}
	if in.RecordsSynced < 0 {
		return core.SyncCursor{}, fmt.Errorf("memory: records synced delta must not be negative")
	}

	now := s.nowFn()
	key := core.StorageKey(vendor, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	cursor, ok := s.cursors[key]
	if !ok {
		cursor = core.SyncCursor{
			Vendor:    vendor,
			UserID:    userID,
			CreatedAt: now,
		}
	}
	cursor.LastSyncTS = in.LastSyncTS.UTC()
	cursor.RecordsSynced += in.RecordsSynced
	if strings.TrimSpace(in.LastResourceID) != "" {
		cursor.LastResourceID = strings.TrimSpace(in.LastResourceID)
	}
	cursor.UpdatedAt = now
	s.cursors[key] = cursor
	return cursor, nil
}

func (s *SyncCursorStore) ResetCursor(_ context.Context, vendor core.Vendor, userID string) error {
	if s == nil {
		return fmt.Errorf("memory: sync cursor store is nil")
	}
	key := core.StorageKey(core.NormalizeVendor(string(vendor)), userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cursors[key]; !ok {
		return core.ErrCursorNotFound
	}
	delete(s.cursors, key)
	return nil
}

var _ core.SyncCursorStore = (*SyncCursorStore)(nil)
