package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidVendor     = errors.New("core: invalid vendor")
	ErrInvalidPullType   = errors.New("core: invalid pull type")
	ErrTokensNotFound    = errors.New("core: tokens not found")
	ErrCursorNotFound    = errors.New("core: sync cursor not found")
	ErrCursorConflict    = errors.New("core: sync cursor advance conflict")
	ErrConnectorNotFound = errors.New("core: connector not registered")
)

// Vendor identifies a wearable data provider.
type Vendor string

const (
	VendorGarmin Vendor = "garmin"
	VendorWhoop  Vendor = "whoop"
)

func (v Vendor) String() string { return string(v) }

func (v Vendor) Validate() error {
	if strings.TrimSpace(string(v)) == "" {
		return fmt.Errorf("%w: empty vendor", ErrInvalidVendor)
	}
	return nil
}

// NormalizeVendor lower-cases and trims a vendor identifier.
func NormalizeVendor(value string) Vendor {
	return Vendor(strings.TrimSpace(strings.ToLower(value)))
}

// VendorConfig carries immutable per-vendor settings, created at process
// start and never mutated afterwards.
type VendorConfig struct {
	Vendor        Vendor
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	BaseURL       string
	AuthURL       string
	TokenURL      string
	Scopes        []string
}

func (c VendorConfig) Validate() error {
	if err := c.Vendor.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("core: client id is required for vendor %q", c.Vendor)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("core: base url is required for vendor %q", c.Vendor)
	}
	if strings.TrimSpace(c.AuthURL) == "" {
		return fmt.Errorf("core: auth url is required for vendor %q", c.Vendor)
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		return fmt.Errorf("core: token url is required for vendor %q", c.Vendor)
	}
	return nil
}

// OAuthTokens is the live token material for a (vendor, user) pair. A
// refresh produces a replacement value; the struct itself is never mutated
// in place.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	Scopes       []string
}

// ExpiresWithin reports whether the access token expires inside the given
// margin of now.
func (t OAuthTokens) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !t.ExpiresAt.UTC().After(now.UTC().Add(margin))
}

// TokenRecord is the persisted form of OAuthTokens keyed by
// "{vendor}:{userID}", with bookkeeping timestamps alongside the token
// material.
type TokenRecord struct {
	Vendor        Vendor
	UserID        string
	Tokens        OAuthTokens
	LastWebhookAt *time.Time
	LastPullAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r TokenRecord) StorageKey() string {
	return StorageKey(r.Vendor, r.UserID)
}

// StorageKey builds the canonical "{vendor}:{userID}" persistence key shared
// by the token and cursor stores.
func StorageKey(vendor Vendor, userID string) string {
	return fmt.Sprintf("%s:%s", strings.TrimSpace(string(vendor)), strings.TrimSpace(userID))
}

// RateLimitConfig holds per-vendor admission control parameters. Steady
// state admits MaxRequests per TimeWindow; short bursts may reach MaxBurst
// before throttling.
type RateLimitConfig struct {
	Vendor      Vendor
	MaxRequests int
	TimeWindow  time.Duration
	MaxBurst    int
}

func (c RateLimitConfig) Validate() error {
	if err := c.Vendor.Validate(); err != nil {
		return err
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("core: max requests must be positive for vendor %q", c.Vendor)
	}
	if c.TimeWindow <= 0 {
		return fmt.Errorf("core: time window must be positive for vendor %q", c.Vendor)
	}
	return nil
}

// SyncCursor tracks incremental sync progress for a (vendor, user) pair.
// RecordsSynced is cumulative and strictly non-decreasing; only the cursor
// engine advances it.
type SyncCursor struct {
	Vendor         Vendor
	UserID         string
	LastSyncTS     time.Time
	RecordsSynced  int
	LastResourceID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c SyncCursor) StorageKey() string {
	return StorageKey(c.Vendor, c.UserID)
}

// NormalizedEvent is the canonical event produced from a raw vendor webhook
// payload. TraceID is deterministic for a given payload and serves as the
// downstream idempotency key.
type NormalizedEvent struct {
	Vendor     Vendor
	UserID     string
	EventType  string
	ResourceID string
	TraceID    string
	RawPayload map[string]any
	ReceivedAt time.Time
}

// PullType labels how the starting point of a backfill was resolved.
type PullType string

const (
	PullTypeInitial     PullType = "initial"
	PullTypeIncremental PullType = "incremental"
	PullTypeManual      PullType = "manual"
)

func (p PullType) Validate() error {
	switch p {
	case PullTypeInitial, PullTypeIncremental, PullTypeManual:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPullType, p)
}

// ResourceResult captures the per-resource outcome of one pull. A failed
// resource carries Err and zero records, and never aborts sibling
// resources.
type ResourceResult struct {
	ResourceType string
	Records      []map[string]any
	Err          error
}

// PullResult summarizes a backfill run for one user.
type PullResult struct {
	Vendor       Vendor
	UserID       string
	PullType     PullType
	Since        time.Time
	PulledAt     time.Time
	TotalRecords int
	Results      []ResourceResult
	Cursor       SyncCursor
}

// FetchRequest addresses one vendor API read. AccessToken is filled by the
// service after the freshness check; callers leave it empty.
type FetchRequest struct {
	UserID       string
	ResourceType string
	ResourceID   string
	Start        *time.Time
	End          *time.Time
	Limit        int
	AccessToken  string
}

// FetchResponse carries the decoded vendor payload plus the response
// metadata the rate-limit policy feeds on.
type FetchResponse struct {
	Records    []map[string]any
	Raw        map[string]any
	StatusCode int
	Headers    map[string]string
}
