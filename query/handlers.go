package query

import (
	"context"

	"github.com/healthsync/go-connectors/core"
)

type ConnectionStatusReader interface {
	Status(ctx context.Context, vendor core.Vendor, userID string) (core.ConnectionStatus, error)
}

type SyncCursorReader interface {
	GetCursor(ctx context.Context, vendor core.Vendor, userID string) (core.SyncCursor, error)
}

type ConnectionStatusQuery struct {
	reader ConnectionStatusReader
}

func NewConnectionStatusQuery(reader ConnectionStatusReader) *ConnectionStatusQuery {
	return &ConnectionStatusQuery{reader: reader}
}

func (q *ConnectionStatusQuery) Query(ctx context.Context, msg ConnectionStatusMessage) (core.ConnectionStatus, error) {
	if q == nil || q.reader == nil {
		return core.ConnectionStatus{}, queryDependencyError("query: connection status reader is required")
	}
	return q.reader.Status(ctx, msg.Vendor, msg.UserID)
}

type LoadSyncCursorQuery struct {
	reader SyncCursorReader
}

func NewLoadSyncCursorQuery(reader SyncCursorReader) *LoadSyncCursorQuery {
	return &LoadSyncCursorQuery{reader: reader}
}

func (q *LoadSyncCursorQuery) Query(ctx context.Context, msg LoadSyncCursorMessage) (core.SyncCursor, error) {
	if q == nil || q.reader == nil {
		return core.SyncCursor{}, queryDependencyError("query: sync cursor reader is required")
	}
	return q.reader.GetCursor(ctx, msg.Vendor, msg.UserID)
}

type ListVendorsQuery struct {
	registry core.Registry
}

func NewListVendorsQuery(registry core.Registry) *ListVendorsQuery {
	return &ListVendorsQuery{registry: registry}
}

func (q *ListVendorsQuery) Query(ctx context.Context, _ ListVendorsMessage) ([]core.Vendor, error) {
	if q == nil || q.registry == nil {
		return nil, queryDependencyError("query: connector registry is required")
	}
	connectors := q.registry.List()
	vendors := make([]core.Vendor, 0, len(connectors))
	for _, connector := range connectors {
		vendors = append(vendors, connector.Vendor())
	}
	return vendors, nil
}
