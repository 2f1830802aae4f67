package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/healthsync/go-connectors/core"
)

var (
	_ gocmd.Querier[ConnectionStatusMessage, core.ConnectionStatus] = (*ConnectionStatusQuery)(nil)
	_ gocmd.Querier[LoadSyncCursorMessage, core.SyncCursor]         = (*LoadSyncCursorQuery)(nil)
	_ gocmd.Querier[ListVendorsMessage, []core.Vendor]              = (*ListVendorsQuery)(nil)
)
