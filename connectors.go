// Package connectors is the facade over the wearable vendor connector
// framework: token lifecycle, webhook intake, rate-limited vendor fetches,
// and cursor-based incremental sync for Garmin and WHOOP.
package connectors

import "github.com/healthsync/go-connectors/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Vendor = core.Vendor

type VendorConfig = core.VendorConfig

type Connector = core.Connector

type Registry = core.Registry

type TokenStore = core.TokenStore
type SyncCursorStore = core.SyncCursorStore
type EventQueue = core.EventQueue
type UserLocker = core.UserLocker
type RateLimitAdmitter = core.RateLimitAdmitter
type RateLimitPolicy = core.RateLimitPolicy

type OAuthTokens = core.OAuthTokens
type TokenRecord = core.TokenRecord
type SyncCursor = core.SyncCursor
type NormalizedEvent = core.NormalizedEvent
type PullResult = core.PullResult
type FetchRequest = core.FetchRequest
type FetchResponse = core.FetchResponse
type InboundRequest = core.InboundRequest
type InboundResult = core.InboundResult
type ExchangeCodeRequest = core.ExchangeCodeRequest
type ConnectionStatus = core.ConnectionStatus

const (
	VendorGarmin = core.VendorGarmin
	VendorWhoop  = core.VendorWhoop
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithRegistry          = core.WithRegistry
	WithTokenStore        = core.WithTokenStore
	WithSyncCursorStore   = core.WithSyncCursorStore
	WithEventQueue        = core.WithEventQueue
	WithRateLimitAdmitter = core.WithRateLimitAdmitter
	WithRateLimitPolicy   = core.WithRateLimitPolicy
	WithUserLocker        = core.WithUserLocker
	WithHTTPClient        = core.WithHTTPClient
	WithTokenExchanger    = core.WithTokenExchanger
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
