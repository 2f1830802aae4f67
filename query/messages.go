package query

import (
	"fmt"
	"strings"

	"github.com/healthsync/go-connectors/core"
)

const (
	TypeConnectionStatus = "connectors.query.connection.status"
	TypeLoadSyncCursor   = "connectors.query.sync_cursor.load"
	TypeListVendors      = "connectors.query.vendors.list"
)

type ConnectionStatusMessage struct {
	Vendor core.Vendor
	UserID string
}

func (ConnectionStatusMessage) Type() string { return TypeConnectionStatus }

func (m ConnectionStatusMessage) Validate() error {
	if err := core.NormalizeVendor(string(m.Vendor)).Validate(); err != nil {
		return queryInvalidInputError(fmt.Sprintf("query: %v", err))
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	return nil
}

type LoadSyncCursorMessage struct {
	Vendor core.Vendor
	UserID string
}

func (LoadSyncCursorMessage) Type() string { return TypeLoadSyncCursor }

func (m LoadSyncCursorMessage) Validate() error {
	if err := core.NormalizeVendor(string(m.Vendor)).Validate(); err != nil {
		return queryInvalidInputError(fmt.Sprintf("query: %v", err))
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	return nil
}

type ListVendorsMessage struct{}

func (ListVendorsMessage) Type() string { return TypeListVendors }

func (ListVendorsMessage) Validate() error { return nil }
