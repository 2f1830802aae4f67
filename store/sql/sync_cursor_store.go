package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/healthsync/go-connectors/core"
	"github.com/uptrace/bun"
)

type SyncCursorStore struct {
	db   *bun.DB
	repo repository.Repository[*syncCursorRecord]
	now  func() time.Time
}

func NewSyncCursorStore(db *bun.DB) (*SyncCursorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncCursorRecord](db, syncCursorHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync cursor repository wiring: %w", err)
		}
	}
	return &SyncCursorStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SyncCursorStore) GetCursor(ctx context.Context, vendor core.Vendor, userID string) (core.SyncCursor, error) {
	if s == nil || s.db == nil {
		return core.SyncCursor{}, fmt.Errorf("sqlstore: sync cursor store is not configured")
	}
	vendor = core.NormalizeVendor(string(vendor))
	userID = strings.TrimSpace(userID)
	if err := validateCursorKey(vendor, userID); err != nil {
		return core.SyncCursor{}, err
	}

	record := &syncCursorRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.vendor = ?", string(vendor)).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.SyncCursor{}, core.ErrCursorNotFound
		}
		return core.SyncCursor{}, err
	}
	return record.toDomain(), nil
}

// AdvanceCursor accumulates the records-synced delta inside a transaction so
// concurrent pull workers for the same user never lose counts.
func (s *SyncCursorStore) AdvanceCursor(ctx context.Context, in core.AdvanceCursorInput) (core.SyncCursor, error) {
	if s == nil || s.db == nil {
		return core.SyncCursor{}, fmt.Errorf("sqlstore: sync cursor store is not configured")
	}
	in.Vendor = core.NormalizeVendor(string(in.Vendor))
	in.UserID = strings.TrimSpace(in.UserID)
	if err := validateCursorKey(in.Vendor, in.UserID); err != nil {
		return core.SyncCursor{}, err
	}
	if in.RecordsSynced < 0 {
		return core.SyncCursor{}, fmt.Errorf("sqlstore: records synced delta must not be negative")
	}
	if in.LastSyncTS.IsZero() {
		return core.SyncCursor{}, fmt.Errorf("sqlstore: last sync timestamp is required")
	}

	now := s.clock()
	var advanced core.SyncCursor
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findSyncCursorTx(ctx, tx, in.Vendor, in.UserID)
		if err != nil {
			return err
		}
		created := false
		if record == nil {
			created = true
			record = &syncCursorRecord{
				ID:        uuid.NewString(),
				Vendor:    string(in.Vendor),
				UserID:    in.UserID,
				CreatedAt: now,
			}
		}
		record.LastSyncTS = in.LastSyncTS.UTC()
		record.RecordsSynced += in.RecordsSynced
		if trimmed := strings.TrimSpace(in.LastResourceID); trimmed != "" {
			record.LastResourceID = trimmed
		}
		record.UpdatedAt = now

		if created {
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					existing, findErr := findSyncCursorTx(ctx, tx, in.Vendor, in.UserID)
					if findErr != nil {
						return findErr
					}
					if existing == nil {
						return insertErr
					}
					existing.LastSyncTS = in.LastSyncTS.UTC()
					existing.RecordsSynced += in.RecordsSynced
					if trimmed := strings.TrimSpace(in.LastResourceID); trimmed != "" {
						existing.LastResourceID = trimmed
					}
					existing.UpdatedAt = now
					if _, updateErr := tx.NewUpdate().
						Model(existing).
						Where("id = ?", existing.ID).
						Exec(ctx); updateErr != nil {
						return updateErr
					}
					advanced = existing.toDomain()
					return nil
				}
				return insertErr
			}
			advanced = record.toDomain()
			return nil
		}
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		advanced = record.toDomain()
		return nil
	})
	if err != nil {
		return core.SyncCursor{}, err
	}
	return advanced, nil
}

func (s *SyncCursorStore) ResetCursor(ctx context.Context, vendor core.Vendor, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: sync cursor store is not configured")
	}
	vendor = core.NormalizeVendor(string(vendor))
	userID = strings.TrimSpace(userID)
	if err := validateCursorKey(vendor, userID); err != nil {
		return err
	}

	result, err := s.db.NewDelete().
		Model((*syncCursorRecord)(nil)).
		Where("vendor = ?", string(vendor)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrCursorNotFound
	}
	return nil
}

func (s *SyncCursorStore) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (r *syncCursorRecord) toDomain() core.SyncCursor {
	if r == nil {
		return core.SyncCursor{}
	}
	return core.SyncCursor{
		Vendor:         core.Vendor(r.Vendor),
		UserID:         r.UserID,
		LastSyncTS:     r.LastSyncTS,
		RecordsSynced:  r.RecordsSynced,
		LastResourceID: r.LastResourceID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func findSyncCursorTx(ctx context.Context, tx bun.Tx, vendor core.Vendor, userID string) (*syncCursorRecord, error) {
	record := &syncCursorRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.vendor = ?", string(vendor)).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func validateCursorKey(vendor core.Vendor, userID string) error {
	if err := vendor.Validate(); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("sqlstore: user id is required")
	}
	return nil
}
