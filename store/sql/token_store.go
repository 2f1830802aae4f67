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

type TokenStore struct {
	db   *bun.DB
	repo repository.Repository[*tokenRecord]
	now  func() time.Time
}

func NewTokenStore(db *bun.DB) (*TokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*tokenRecord](db, tokenHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid token repository wiring: %w", err)
		}
	}
	return &TokenStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *TokenStore) GetTokens(ctx context.Context, vendor core.Vendor, userID string) (core.TokenRecord, error) {
	if s == nil || s.db == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	vendor = core.NormalizeVendor(string(vendor))
	userID = strings.TrimSpace(userID)
	if err := validateTokenKey(vendor, userID); err != nil {
		return core.TokenRecord{}, err
	}

	record := &tokenRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.vendor = ?", string(vendor)).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.TokenRecord{}, core.ErrTokensNotFound
		}
		return core.TokenRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *TokenStore) SaveTokens(ctx context.Context, input core.TokenRecord) (core.TokenRecord, error) {
	if s == nil || s.db == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	input.Vendor = core.NormalizeVendor(string(input.Vendor))
	input.UserID = strings.TrimSpace(input.UserID)
	if err := validateTokenKey(input.Vendor, input.UserID); err != nil {
		return core.TokenRecord{}, err
	}
	if strings.TrimSpace(input.Tokens.AccessToken) == "" {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: access token is required")
	}

	now := s.clock()
	var saved core.TokenRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findTokenTx(ctx, tx, input.Vendor, input.UserID)
		if err != nil {
			return err
		}
		created := false
		if record == nil {
			created = true
			record = &tokenRecord{
				ID:        uuid.NewString(),
				Vendor:    string(input.Vendor),
				UserID:    input.UserID,
				CreatedAt: now,
			}
		}
		record.AccessToken = strings.TrimSpace(input.Tokens.AccessToken)
		record.RefreshToken = strings.TrimSpace(input.Tokens.RefreshToken)
		record.TokenType = strings.TrimSpace(input.Tokens.TokenType)
		record.ExpiresAt = nil
		if !input.Tokens.ExpiresAt.IsZero() {
			expiresAt := input.Tokens.ExpiresAt.UTC()
			record.ExpiresAt = &expiresAt
		}
		record.Scopes = append([]string(nil), input.Tokens.Scopes...)
		if record.Scopes == nil {
			record.Scopes = []string{}
		}
		if input.LastWebhookAt != nil {
			record.LastWebhookAt = copyTimePointer(input.LastWebhookAt)
		}
		if input.LastPullAt != nil {
			record.LastPullAt = copyTimePointer(input.LastPullAt)
		}
		record.UpdatedAt = now

		if created {
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					existing, findErr := findTokenTx(ctx, tx, input.Vendor, input.UserID)
					if findErr != nil {
						return findErr
					}
					if existing == nil {
						return insertErr
					}
					record.ID = existing.ID
					record.CreatedAt = existing.CreatedAt
					if _, updateErr := tx.NewUpdate().
						Model(record).
						Where("id = ?", record.ID).
						Exec(ctx); updateErr != nil {
						return updateErr
					}
					saved = record.toDomain()
					return nil
				}
				return insertErr
			}
			saved = record.toDomain()
			return nil
		}
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		saved = record.toDomain()
		return nil
	})
	if err != nil {
		return core.TokenRecord{}, err
	}
	return saved, nil
}

func (s *TokenStore) Revoke(ctx context.Context, vendor core.Vendor, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	vendor = core.NormalizeVendor(string(vendor))
	userID = strings.TrimSpace(userID)
	if err := validateTokenKey(vendor, userID); err != nil {
		return err
	}

	result, err := s.db.NewDelete().
		Model((*tokenRecord)(nil)).
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
		return core.ErrTokensNotFound
	}
	return nil
}

func (s *TokenStore) TouchLastPull(ctx context.Context, vendor core.Vendor, userID string, at time.Time) error {
	return s.touch(ctx, vendor, userID, at, "last_pull_at = ?")
}

func (s *TokenStore) TouchLastWebhook(ctx context.Context, vendor core.Vendor, userID string, at time.Time) error {
	return s.touch(ctx, vendor, userID, at, "last_webhook_at = ?")
}

func (s *TokenStore) touch(ctx context.Context, vendor core.Vendor, userID string, at time.Time, assignment string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	vendor = core.NormalizeVendor(string(vendor))
	userID = strings.TrimSpace(userID)
	if err := validateTokenKey(vendor, userID); err != nil {
		return err
	}
	if at.IsZero() {
		at = s.clock()
	}

	result, err := s.db.NewUpdate().
		Model((*tokenRecord)(nil)).
		Set(assignment, at.UTC()).
		Set("updated_at = ?", s.clock()).
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
		return core.ErrTokensNotFound
	}
	return nil
}

func (s *TokenStore) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (r *tokenRecord) toDomain() core.TokenRecord {
	if r == nil {
		return core.TokenRecord{}
	}
	record := core.TokenRecord{
		Vendor: core.Vendor(r.Vendor),
		UserID: r.UserID,
		Tokens: core.OAuthTokens{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			TokenType:    r.TokenType,
			Scopes:       append([]string(nil), r.Scopes...),
		},
		LastWebhookAt: copyTimePointer(r.LastWebhookAt),
		LastPullAt:    copyTimePointer(r.LastPullAt),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ExpiresAt != nil {
		record.Tokens.ExpiresAt = r.ExpiresAt.UTC()
	}
	return record
}

func findTokenTx(ctx context.Context, tx bun.Tx, vendor core.Vendor, userID string) (*tokenRecord, error) {
	record := &tokenRecord{}
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

func validateTokenKey(vendor core.Vendor, userID string) error {
	if err := vendor.Validate(); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("sqlstore: user id is required")
	}
	return nil
}
