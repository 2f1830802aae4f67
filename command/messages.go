package command

import (
	"fmt"
	"strings"

	"github.com/healthsync/go-connectors/core"
	connsync "github.com/healthsync/go-connectors/sync"
)

const (
	TypeExchangeCode  = "connectors.command.oauth.exchange"
	TypeRefreshTokens = "connectors.command.tokens.refresh"
	TypeDisconnect    = "connectors.command.disconnect"
	TypePull          = "connectors.command.sync.pull"
	TypeAdvanceCursor = "connectors.command.sync_cursor.advance"
	TypeResetCursor   = "connectors.command.sync_cursor.reset"
)

type ExchangeCodeMessage struct {
	Request core.ExchangeCodeRequest
}

func (ExchangeCodeMessage) Type() string { return TypeExchangeCode }

func (m ExchangeCodeMessage) Validate() error {
	if err := validateVendor(m.Request.Vendor); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return fmt.Errorf("command: authorization code is required")
	}
	return nil
}

type RefreshTokensMessage struct {
	Vendor core.Vendor
	UserID string
}

func (RefreshTokensMessage) Type() string { return TypeRefreshTokens }

func (m RefreshTokensMessage) Validate() error {
	if err := validateVendor(m.Vendor); err != nil {
		return err
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}

type DisconnectMessage struct {
	Vendor core.Vendor
	UserID string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if err := validateVendor(m.Vendor); err != nil {
		return err
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}

type PullMessage struct {
	Request connsync.PullRequest
}

func (PullMessage) Type() string { return TypePull }

func (m PullMessage) Validate() error {
	if err := validateVendor(m.Request.Vendor); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}

type AdvanceCursorMessage struct {
	Input core.AdvanceCursorInput
}

func (AdvanceCursorMessage) Type() string { return TypeAdvanceCursor }

func (m AdvanceCursorMessage) Validate() error {
	if err := validateVendor(m.Input.Vendor); err != nil {
		return err
	}
	if strings.TrimSpace(m.Input.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if m.Input.LastSyncTS.IsZero() {
		return fmt.Errorf("command: last sync timestamp is required")
	}
	if m.Input.RecordsSynced < 0 {
		return fmt.Errorf("command: records synced delta must not be negative")
	}
	return nil
}

type ResetCursorMessage struct {
	Vendor core.Vendor
	UserID string
}

func (ResetCursorMessage) Type() string { return TypeResetCursor }

func (m ResetCursorMessage) Validate() error {
	if err := validateVendor(m.Vendor); err != nil {
		return err
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}

func validateVendor(vendor core.Vendor) error {
	if err := core.NormalizeVendor(string(vendor)).Validate(); err != nil {
		return commandInvalidInputError(fmt.Sprintf("command: %v", err))
	}
	return nil
}
