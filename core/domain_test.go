package core

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeVendor_TrimsAndLowercases(t *testing.T) {
	cases := []struct {
		in   string
		want Vendor
	}{
		{"GARMIN", VendorGarmin},
		{"  Whoop  ", VendorWhoop},
		{"garmin", VendorGarmin},
		{"  ", Vendor("")},
	}
	for _, tc := range cases {
		if got := NormalizeVendor(tc.in); got != tc.want {
			t.Fatalf("normalize %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestVendorValidate_RejectsEmpty(t *testing.T) {
	if err := Vendor("").Validate(); !errors.Is(err, ErrInvalidVendor) {
		t.Fatalf("expected invalid vendor error, got %v", err)
	}
	if err := VendorGarmin.Validate(); err != nil {
		t.Fatalf("expected garmin to validate, got %v", err)
	}
}

func TestStorageKey_Format(t *testing.T) {
	if got := StorageKey(VendorWhoop, "user-1"); got != "whoop:user-1" {
		t.Fatalf("expected whoop:user-1, got %q", got)
	}
	if got := StorageKey(VendorGarmin, "  u2  "); got != "garmin:u2" {
		t.Fatalf("expected trimmed key, got %q", got)
	}
	record := TokenRecord{Vendor: VendorGarmin, UserID: "u3"}
	if record.StorageKey() != "garmin:u3" {
		t.Fatalf("expected garmin:u3, got %q", record.StorageKey())
	}
}

func TestOAuthTokensExpiresWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		expiresAt time.Time
		margin    time.Duration
		want      bool
	}{
		{"zero expiry never expires", time.Time{}, time.Minute, false},
		{"well in the future", now.Add(time.Hour), time.Minute, false},
		{"inside margin", now.Add(30 * time.Second), time.Minute, true},
		{"already expired", now.Add(-time.Second), time.Minute, true},
		{"exactly at margin boundary", now.Add(time.Minute), time.Minute, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := OAuthTokens{ExpiresAt: tc.expiresAt}
			if got := tokens.ExpiresWithin(now, tc.margin); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestPullTypeValidate(t *testing.T) {
	for _, valid := range []PullType{PullTypeInitial, PullTypeIncremental, PullTypeManual} {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected %q to validate, got %v", valid, err)
		}
	}
	if err := PullType("snapshot").Validate(); !errors.Is(err, ErrInvalidPullType) {
		t.Fatalf("expected invalid pull type error, got %v", err)
	}
}

func TestVendorConfigValidate(t *testing.T) {
	base := VendorConfig{
		Vendor:   VendorGarmin,
		ClientID: "client",
		BaseURL:  "https://api.example.com",
		AuthURL:  "https://auth.example.com/authorize",
		TokenURL: "https://auth.example.com/token",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*VendorConfig)
	}{
		{"missing vendor", func(c *VendorConfig) { c.Vendor = "" }},
		{"missing client id", func(c *VendorConfig) { c.ClientID = " " }},
		{"missing base url", func(c *VendorConfig) { c.BaseURL = "" }},
		{"missing auth url", func(c *VendorConfig) { c.AuthURL = "" }},
		{"missing token url", func(c *VendorConfig) { c.TokenURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestRateLimitConfigValidate(t *testing.T) {
	valid := RateLimitConfig{Vendor: VendorWhoop, MaxRequests: 100, TimeWindow: time.Minute, MaxBurst: 120}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := (RateLimitConfig{Vendor: VendorWhoop, TimeWindow: time.Minute}).Validate(); err == nil {
		t.Fatalf("expected max requests error")
	}
	if err := (RateLimitConfig{Vendor: VendorWhoop, MaxRequests: 1}).Validate(); err == nil {
		t.Fatalf("expected time window error")
	}
}
