// Package memory provides process-local store implementations, used in
// tests and single-node deployments.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/healthsync/go-connectors/core"
)

type TokenStore struct {
	mu      sync.RWMutex
	records map[string]core.TokenRecord
	nowFn   func() time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		records: make(map[string]core.TokenRecord),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *TokenStore) GetTokens(_ context.Context, vendor core.Vendor, userID string) (core.TokenRecord, error) {
	if s == nil {
		return core.TokenRecord{}, fmt.Errorf("memory: token store is nil")
	}
	key := core.StorageKey(core.NormalizeVendor(string(vendor)), userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return core.TokenRecord{}, core.ErrTokensNotFound
	}
	return cloneRecord(record), nil
}

func (s *TokenStore) SaveTokens(_ context.Context, record core.TokenRecord) (core.TokenRecord, error) {
	if s == nil {
		return core.TokenRecord{}, fmt.Errorf("memory: token store is nil")
	}
	record.Vendor = core.NormalizeVendor(string(record.Vendor))
	record.UserID = strings.TrimSpace(record.UserID)
	if err := record.Vendor.Validate(); err != nil {
		return core.TokenRecord{}, err
	}
	if record.UserID == "" {
		return core.TokenRecord{}, fmt.Errorf("memory: user id is required")
	}

	now := s.nowFn()
	key := record.StorageKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[key]; ok {
		record.CreatedAt = existing.CreatedAt
		if record.LastWebhookAt == nil {
			record.LastWebhookAt = existing.LastWebhookAt
		}
		if record.LastPullAt == nil {
			record.LastPullAt = existing.LastPullAt
		}
	} else if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.records[key] = cloneRecord(record)
	return cloneRecord(record), nil
}

func (s *TokenStore) Revoke(_ context.Context, vendor core.Vendor, userID string) error {
	if s == nil {
		return fmt.Errorf("memory: token store is nil")
	}
	key := core.StorageKey(core.NormalizeVendor(string(vendor)), userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return core.ErrTokensNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *TokenStore) TouchLastPull(_ context.Context, vendor core.Vendor, userID string, at time.Time) error {
	return s.touch(vendor, userID, at, false)
}

func (s *TokenStore) TouchLastWebhook(_ context.Context, vendor core.Vendor, userID string, at time.Time) error {
	return s.touch(vendor, userID, at, true)
}

func (s *TokenStore) touch(vendor core.Vendor, userID string, at time.Time, webhook bool) error {
	if s == nil {
		return fmt.Errorf("memory: token store is nil")
	}
	key := core.StorageKey(core.NormalizeVendor(string(vendor)), userID)
	at = at.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return core.ErrTokensNotFound
	}
	if webhook {
		record.LastWebhookAt = &at
	} else {
		record.LastPullAt = &at
	}
	record.UpdatedAt = s.nowFn()
	s.records[key] = record
	return nil
}

func cloneRecord(record core.TokenRecord) core.TokenRecord {
	out := record
	out.Tokens.Scopes = append([]string(nil), record.Tokens.Scopes...)
	if record.LastWebhookAt != nil {
		at := *record.LastWebhookAt
		out.LastWebhookAt = &at
	}
	if record.LastPullAt != nil {
		at := *record.LastPullAt
		out.LastPullAt = &at
	}
	return out
}

var _ core.TokenStore = (*TokenStore)(nil)
