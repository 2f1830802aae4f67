package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenStore persists OAuth token records keyed by "{vendor}:{userID}".
// Save replaces the whole record; concurrent writers for the same key are
// serialized by the caller via UserLocker.
type TokenStore interface {
	GetTokens(ctx context.Context, vendor Vendor, userID string) (TokenRecord, error)
	SaveTokens(ctx context.Context, record TokenRecord) (TokenRecord, error)
	Revoke(ctx context.Context, vendor Vendor, userID string) error
	TouchLastPull(ctx context.Context, vendor Vendor, userID string, at time.Time) error
	TouchLastWebhook(ctx context.Context, vendor Vendor, userID string, at time.Time) error
}

// AdvanceCursorInput carries one cursor advance. RecordsSynced is a delta;
// the store accumulates it atomically per key.
type AdvanceCursorInput struct {
	Vendor         Vendor
	UserID         string
	LastSyncTS     time.Time
	RecordsSynced  int
	LastResourceID string
}

type SyncCursorStore interface {
	GetCursor(ctx context.Context, vendor Vendor, userID string) (SyncCursor, error)
	AdvanceCursor(ctx context.Context, in AdvanceCursorInput) (SyncCursor, error)
	ResetCursor(ctx context.Context, vendor Vendor, userID string) error
}

// EventQueue is the durable fan-out target for normalized events. Broker
// internals are a collaborator concern; the connector only enqueues.
type EventQueue interface {
	Enqueue(ctx context.Context, event NormalizedEvent) (messageID string, err error)
}

// RateLimitAdmitter performs local admission control before an outbound
// vendor call.
type RateLimitAdmitter interface {
	Configure(cfg RateLimitConfig) error
	CheckAndAdmit(ctx context.Context, vendor Vendor, userID string) error
}

// RateLimitPolicy reacts to vendor response metadata (429, Retry-After,
// X-RateLimit-* headers) after a call.
type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, vendor Vendor) error
	AfterCall(ctx context.Context, vendor Vendor, meta VendorResponseMeta) error
}

// VendorResponseMeta is the slice of an HTTP response the rate-limit policy
// inspects.
type VendorResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	RetryAfter *time.Duration
}

// LockHandle releases a held user lock.
type LockHandle interface {
	Unlock(ctx context.Context) error
}

// UserLocker serializes mutations of shared per-(vendor,user) records, so a
// concurrent pair of refreshes cannot both replace the stored tokens.
type UserLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

// InboundRequest is a raw webhook or callback delivery as received at the
// boundary.
type InboundRequest struct {
	Vendor  Vendor
	Headers map[string]string
	Body    []byte
}

// InboundResult reports how the boundary should answer. Callback results
// carry token metadata only; the token material itself never crosses the
// boundary.
type InboundResult struct {
	Accepted       bool
	StatusCode     int
	MessageID      string
	Event          *NormalizedEvent
	UserID         string
	TokenExpiresAt time.Time
	Scopes         []string
}

// Connector is the polymorphic per-vendor contract. Every vendor variant is
// selected statically at startup through the registry; nothing probes
// capabilities at runtime.
type Connector interface {
	Vendor() Vendor
	Config() VendorConfig

	VerifyWebhook(ctx context.Context, req InboundRequest) error
	ParseEvent(ctx context.Context, rawBody []byte) (NormalizedEvent, error)

	BuildAuthorizationURL(redirectURI string, state string) (string, error)
	ExchangeCode(ctx context.Context, userID string, code string, redirectURI string) (OAuthTokens, error)

	FetchData(ctx context.Context, req FetchRequest) (FetchResponse, error)
	ResourceTypes() []string
}

// ConnectorRegistry resolves vendor variants registered at startup.
type Registry interface {
	Register(connector Connector) error
	Get(vendor Vendor) (Connector, bool)
	List() []Connector
}

// TokenExchanger is the OAuth2 wire client the token lifecycle delegates
// to; vendors share one implementation parameterized by VendorConfig.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, cfg VendorConfig, code string, redirectURI string) (OAuthTokens, error)
	RefreshTokens(ctx context.Context, cfg VendorConfig, refreshToken string) (OAuthTokens, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
