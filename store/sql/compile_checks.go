package sqlstore

import (
	"github.com/healthsync/go-connectors/core"
	"github.com/healthsync/go-connectors/ratelimit"
)

var (
	_ core.TokenStore      = (*TokenStore)(nil)
	_ core.SyncCursorStore = (*SyncCursorStore)(nil)
	_ core.EventQueue      = (*EventStore)(nil)
	_ ratelimit.StateStore = (*RateLimitStateStore)(nil)
	_ ratelimit.StateStore = (*CachedRateLimitStateStore)(nil)
)
