package core

import (
	"testing"
	"time"
)

func TestResolveTokenState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	margin := time.Minute

	cases := []struct {
		name   string
		tokens OAuthTokens
		want   TokenState
	}{
		{
			name:   "fresh token outside margin",
			tokens: OAuthTokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Add(time.Hour)},
			want:   TokenState{HasAccessToken: true, HasRefreshToken: true},
		},
		{
			name:   "expiring inside margin",
			tokens: OAuthTokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Add(30 * time.Second)},
			want:   TokenState{HasAccessToken: true, HasRefreshToken: true, IsExpiringSoon: true},
		},
		{
			name:   "already expired",
			tokens: OAuthTokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Add(-time.Second)},
			want:   TokenState{HasAccessToken: true, HasRefreshToken: true, IsExpired: true},
		},
		{
			name:   "no expiry recorded",
			tokens: OAuthTokens{AccessToken: "a"},
			want:   TokenState{HasAccessToken: true},
		},
		{
			name:   "blank access token",
			tokens: OAuthTokens{AccessToken: "  ", RefreshToken: "r", ExpiresAt: now.Add(time.Hour)},
			want:   TokenState{HasRefreshToken: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveTokenState(now, tc.tokens, margin)
			if got.HasAccessToken != tc.want.HasAccessToken {
				t.Fatalf("HasAccessToken: expected %v, got %v", tc.want.HasAccessToken, got.HasAccessToken)
			}
			if got.HasRefreshToken != tc.want.HasRefreshToken {
				t.Fatalf("HasRefreshToken: expected %v, got %v", tc.want.HasRefreshToken, got.HasRefreshToken)
			}
			if got.IsExpired != tc.want.IsExpired {
				t.Fatalf("IsExpired: expected %v, got %v", tc.want.IsExpired, got.IsExpired)
			}
			if got.IsExpiringSoon != tc.want.IsExpiringSoon {
				t.Fatalf("IsExpiringSoon: expected %v, got %v", tc.want.IsExpiringSoon, got.IsExpiringSoon)
			}
		})
	}
}

func TestResolveTokenState_DefaultsMarginAndClock(t *testing.T) {
	tokens := OAuthTokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().UTC().Add(30 * time.Second)}
	state := ResolveTokenState(time.Time{}, tokens, 0)
	if !state.IsExpiringSoon {
		t.Fatalf("expected default margin of %v to flag imminent expiry", DefaultTokenRefreshMargin)
	}
}

func TestShouldRefreshTokens(t *testing.T) {
	cases := []struct {
		name  string
		state TokenState
		want  bool
	}{
		{"fresh", TokenState{HasAccessToken: true, HasRefreshToken: true}, false},
		{"expiring soon", TokenState{HasAccessToken: true, HasRefreshToken: true, IsExpiringSoon: true}, true},
		{"expired", TokenState{HasAccessToken: true, HasRefreshToken: true, IsExpired: true}, true},
		{"missing access token", TokenState{HasRefreshToken: true}, true},
		{"no refresh token cannot refresh", TokenState{HasAccessToken: true, IsExpired: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldRefreshTokens(time.Now(), tc.state); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
