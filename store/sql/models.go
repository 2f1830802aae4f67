package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type tokenRecord struct {
	bun.BaseModel `bun:"table:connector_tokens,alias:ctk"`

	ID            string     `bun:"id,pk"`
	Vendor        string     `bun:"vendor,notnull"`
	UserID        string     `bun:"user_id,notnull"`
	AccessToken   string     `bun:"access_token,notnull"`
	RefreshToken  string     `bun:"refresh_token"`
	TokenType     string     `bun:"token_type,notnull"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero"`
	Scopes        []string   `bun:"scopes,type:jsonb,notnull"`
	LastWebhookAt *time.Time `bun:"last_webhook_at"`
	LastPullAt    *time.Time `bun:"last_pull_at"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type syncCursorRecord struct {
	bun.BaseModel `bun:"table:connector_sync_cursors,alias:csc"`

	ID             string    `bun:"id,pk"`
	Vendor         string    `bun:"vendor,notnull"`
	UserID         string    `bun:"user_id,notnull"`
	LastSyncTS     time.Time `bun:"last_sync_ts,notnull"`
	RecordsSynced  int       `bun:"records_synced,notnull"`
	LastResourceID string    `bun:"last_resource_id"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type eventRecord struct {
	bun.BaseModel `bun:"table:connector_events,alias:cev"`

	ID           string         `bun:"id,pk"`
	Vendor       string         `bun:"vendor,notnull"`
	UserID       string         `bun:"user_id,notnull"`
	EventType    string         `bun:"event_type,notnull"`
	ResourceID   string         `bun:"resource_id"`
	TraceID      string         `bun:"trace_id"`
	RawPayload   map[string]any `bun:"raw_payload,type:jsonb,notnull"`
	Status       string         `bun:"status,notnull"`
	ReceivedAt   time.Time      `bun:"received_at,nullzero,notnull"`
	DispatchedAt *time.Time     `bun:"dispatched_at"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:connector_rate_limit_states,alias:crl"`

	ID         string         `bun:"id,pk"`
	Vendor     string         `bun:"vendor,notnull"`
	LimitTotal int            `bun:"limit_total,notnull"`
	Remaining  int            `bun:"remaining,notnull"`
	ResetAt    *time.Time     `bun:"reset_at,nullzero"`
	RetryAfter *int           `bun:"retry_after_s"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
