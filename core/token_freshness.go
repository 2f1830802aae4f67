package core

import (
	"strings"
	"time"
)

const DefaultTokenRefreshMargin = 60 * time.Second

// TokenState captures the access/refresh lifecycle flags derived from a
// stored token set at a given instant.
type TokenState struct {
	ExpiresAt       time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	IsExpired       bool
	IsExpiringSoon  bool
}

// ResolveTokenState evaluates expiry flags for a token set. A token whose
// expiry falls inside the margin counts as expiring soon even though it is
// still technically valid.
func ResolveTokenState(now time.Time, tokens OAuthTokens, margin time.Duration) TokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if margin <= 0 {
		margin = DefaultTokenRefreshMargin
	}

	state := TokenState{
		ExpiresAt:       tokens.ExpiresAt.UTC(),
		HasAccessToken:  strings.TrimSpace(tokens.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(tokens.RefreshToken) != "",
	}
	if tokens.ExpiresAt.IsZero() {
		return state
	}
	if !state.ExpiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = !state.ExpiresAt.After(now.Add(margin))
	return state
}

// ShouldRefreshTokens reports whether a refresh must run before the access
// token is used for an outbound call.
func ShouldRefreshTokens(now time.Time, state TokenState) bool {
	if !state.HasRefreshToken {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	return state.IsExpired || state.IsExpiringSoon
}
