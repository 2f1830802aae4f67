package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExchangeCodeRequest carries one authorization-code exchange.
type ExchangeCodeRequest struct {
	Vendor      Vendor
	UserID      string
	Code        string
	RedirectURI string
}

// ConnectionStatus is the derived view of a stored connection.
type ConnectionStatus struct {
	Vendor        Vendor
	UserID        string
	Connected     bool
	TokenState    TokenState
	LastWebhookAt *time.Time
	LastPullAt    *time.Time
}

// BuildAuthorizationURL returns the vendor consent URL for a redirect flow.
// Pure string construction; no network calls and no stored state.
func (s *Service) BuildAuthorizationURL(vendor Vendor, redirectURI, state string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: service is nil")
	}
	connector, err := s.connector(vendor)
	if err != nil {
		return "", err
	}
	url, err := connector.BuildAuthorizationURL(redirectURI, state)
	if err != nil {
		return "", s.mapError(err)
	}
	return url, nil
}

// ExchangeCode swaps an authorization code for tokens and persists them
// under "{vendor}:{userID}". A second exchange for the same pair replaces
// the stored tokens.
func (s *Service) ExchangeCode(ctx context.Context, req ExchangeCodeRequest) (TokenRecord, error) {
	if s == nil {
		return TokenRecord{}, fmt.Errorf("core: service is nil")
	}
	if s.tokenStore == nil {
		return TokenRecord{}, fmt.Errorf("core: token store is not configured")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return TokenRecord{}, s.mapError(NewBadInputError("user id is required"))
	}
	if strings.TrimSpace(req.Code) == "" {
		return TokenRecord{}, s.mapError(NewBadInputError("authorization code is required"))
	}

	connector, err := s.connector(req.Vendor)
	if err != nil {
		return TokenRecord{}, err
	}

	startedAt := s.clock()
	fields := map[string]any{
		"vendor":  connector.Vendor().String(),
		"user_id": userID,
	}
	tokens, err := connector.ExchangeCode(ctx, userID, req.Code, req.RedirectURI)
	if err != nil {
		mapped := s.mapError(NewOAuthExchangeError(connector.Vendor(), err))
		s.observeOperation(ctx, startedAt, "exchange_code", mapped, fields)
		return TokenRecord{}, mapped
	}

	now := s.clock()
	record := TokenRecord{
		Vendor:    connector.Vendor(),
		UserID:    userID,
		Tokens:    tokens,
		CreatedAt: now,
		UpdatedAt: now,
	}
	saved, err := s.tokenStore.SaveTokens(ctx, record)
	if err != nil {
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "exchange_code", mapped, fields)
		return TokenRecord{}, mapped
	}
	s.observeOperation(ctx, startedAt, "exchange_code", nil, fields)
	return saved, nil
}

// FreshTokens returns a usable access token for the pair, refreshing first
// when the stored token is expired or inside the refresh margin. Concurrent
// callers for the same pair serialize on the user lock; the loser re-reads
// the record the winner stored instead of refreshing again.
func (s *Service) FreshTokens(ctx context.Context, vendor Vendor, userID string) (OAuthTokens, error) {
	if s == nil {
		return OAuthTokens{}, fmt.Errorf("core: service is nil")
	}
	if s.tokenStore == nil {
		return OAuthTokens{}, fmt.Errorf("core: token store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return OAuthTokens{}, s.mapError(NewBadInputError("user id is required"))
	}

	connector, err := s.connector(vendor)
	if err != nil {
		return OAuthTokens{}, err
	}
	vendor = connector.Vendor()

	record, err := s.tokenStore.GetTokens(ctx, vendor, userID)
	if err != nil {
		if errors.Is(err, ErrTokensNotFound) {
			return OAuthTokens{}, s.mapError(NewNotConnectedError(vendor, userID))
		}
		return OAuthTokens{}, s.mapError(err)
	}

	margin := s.config.Tokens.RefreshMargin()
	state := ResolveTokenState(s.clock(), record.Tokens, margin)
	if !ShouldRefreshTokens(s.clock(), state) {
		if state.IsExpired {
			return OAuthTokens{}, s.mapError(NewNotConnectedError(vendor, userID))
		}
		return record.Tokens, nil
	}

	return s.refreshUnderLock(ctx, connector, record)
}

func (s *Service) refreshUnderLock(ctx context.Context, connector Connector, record TokenRecord) (OAuthTokens, error) {
	if s.tokenExchanger == nil {
		return OAuthTokens{}, fmt.Errorf("core: token exchanger is not configured")
	}

	key := record.StorageKey()
	handle, err := s.userLocker.Acquire(ctx, key, s.config.Tokens.LockTTL())
	if err != nil {
		// Another caller holds the refresh. Their write lands before the
		// lock is released, so a fresh read is enough.
		current, readErr := s.tokenStore.GetTokens(ctx, record.Vendor, record.UserID)
		if readErr != nil {
			return OAuthTokens{}, s.mapError(readErr)
		}
		state := ResolveTokenState(s.clock(), current.Tokens, s.config.Tokens.RefreshMargin())
		if ShouldRefreshTokens(s.clock(), state) {
			return OAuthTokens{}, s.mapError(fmt.Errorf("core: token refresh in progress for %q: %w", key, err))
		}
		return current.Tokens, nil
	}
	defer func() { _ = handle.Unlock(ctx) }()

	// Re-read under the lock; the previous holder may have refreshed while
	// we waited.
	current, err := s.tokenStore.GetTokens(ctx, record.Vendor, record.UserID)
	if err != nil {
		return OAuthTokens{}, s.mapError(err)
	}
	state := ResolveTokenState(s.clock(), current.Tokens, s.config.Tokens.RefreshMargin())
	if !ShouldRefreshTokens(s.clock(), state) {
		return current.Tokens, nil
	}

	startedAt := s.clock()
	fields := map[string]any{
		"vendor":  record.Vendor.String(),
		"user_id": record.UserID,
	}
	refreshed, err := s.tokenExchanger.RefreshTokens(ctx, connector.Config(), current.Tokens.RefreshToken)
	if err != nil {
		mapped := s.mapError(NewOAuthExchangeError(record.Vendor, err))
		s.observeOperation(ctx, startedAt, "refresh_tokens", mapped, fields)
		return OAuthTokens{}, mapped
	}
	if strings.TrimSpace(refreshed.RefreshToken) == "" {
		// Some vendors omit the refresh token on rotation; keep the old one.
		refreshed.RefreshToken = current.Tokens.RefreshToken
	}

	current.Tokens = refreshed
	current.UpdatedAt = s.clock()
	saved, err := s.tokenStore.SaveTokens(ctx, current)
	if err != nil {
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "refresh_tokens", mapped, fields)
		return OAuthTokens{}, mapped
	}
	fields["expires_at"] = saved.Tokens.ExpiresAt.UTC().Format(time.RFC3339)
	s.observeOperation(ctx, startedAt, "refresh_tokens", nil, fields)
	return saved.Tokens, nil
}

// Disconnect removes the stored tokens for the pair. Cursor state is kept
// so a later reconnect resumes instead of replaying history.
func (s *Service) Disconnect(ctx context.Context, vendor Vendor, userID string) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if s.tokenStore == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return s.mapError(NewBadInputError("user id is required"))
	}
	connector, err := s.connector(vendor)
	if err != nil {
		return err
	}
	startedAt := s.clock()
	fields := map[string]any{
		"vendor":  connector.Vendor().String(),
		"user_id": userID,
	}
	if err := s.tokenStore.Revoke(ctx, connector.Vendor(), userID); err != nil {
		if errors.Is(err, ErrTokensNotFound) {
			err = NewNotFoundError(connector.Vendor(), "connection for user "+userID)
		}
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "disconnect", mapped, fields)
		return mapped
	}
	s.observeOperation(ctx, startedAt, "disconnect", nil, fields)
	return nil
}

// Status reports whether the pair is connected and how fresh its tokens
// are. A missing record yields Connected=false rather than an error.
func (s *Service) Status(ctx context.Context, vendor Vendor, userID string) (ConnectionStatus, error) {
	if s == nil {
		return ConnectionStatus{}, fmt.Errorf("core: service is nil")
	}
	if s.tokenStore == nil {
		return ConnectionStatus{}, fmt.Errorf("core: token store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ConnectionStatus{}, s.mapError(NewBadInputError("user id is required"))
	}
	connector, err := s.connector(vendor)
	if err != nil {
		return ConnectionStatus{}, err
	}
	vendor = connector.Vendor()

	status := ConnectionStatus{Vendor: vendor, UserID: userID}
	record, err := s.tokenStore.GetTokens(ctx, vendor, userID)
	if err != nil {
		if errors.Is(err, ErrTokensNotFound) {
			return status, nil
		}
		return ConnectionStatus{}, s.mapError(err)
	}
	status.Connected = true
	status.TokenState = ResolveTokenState(s.clock(), record.Tokens, s.config.Tokens.RefreshMargin())
	status.LastWebhookAt = record.LastWebhookAt
	status.LastPullAt = record.LastPullAt
	return status, nil
}
