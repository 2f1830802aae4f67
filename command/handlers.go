package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/healthsync/go-connectors/core"
	connsync "github.com/healthsync/go-connectors/sync"
)

// TokenService is the token-lifecycle slice of the connector service the
// mutation handlers need.
type TokenService interface {
	ExchangeCode(ctx context.Context, req core.ExchangeCodeRequest) (core.TokenRecord, error)
	FreshTokens(ctx context.Context, vendor core.Vendor, userID string) (core.OAuthTokens, error)
	Disconnect(ctx context.Context, vendor core.Vendor, userID string) error
}

type PullService interface {
	Pull(ctx context.Context, req connsync.PullRequest) (core.PullResult, error)
}

type ExchangeCodeCommand struct {
	service TokenService
}

func NewExchangeCodeCommand(service TokenService) *ExchangeCodeCommand {
	return &ExchangeCodeCommand{service: service}
}

func (c *ExchangeCodeCommand) Execute(ctx context.Context, msg ExchangeCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.ExchangeCode(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshTokensCommand struct {
	service TokenService
}

func NewRefreshTokensCommand(service TokenService) *RefreshTokensCommand {
	return &RefreshTokensCommand{service: service}
}

func (c *RefreshTokensCommand) Execute(ctx context.Context, msg RefreshTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.FreshTokens(ctx, msg.Vendor, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service TokenService
}

func NewDisconnectCommand(service TokenService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.Vendor, msg.UserID)
}

type PullCommand struct {
	service PullService
}

func NewPullCommand(service PullService) *PullCommand {
	return &PullCommand{service: service}
}

func (c *PullCommand) Execute(ctx context.Context, msg PullMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: pull service is required")
	}
	out, err := c.service.Pull(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AdvanceCursorCommand struct {
	cursors core.SyncCursorStore
}

func NewAdvanceCursorCommand(cursors core.SyncCursorStore) *AdvanceCursorCommand {
	return &AdvanceCursorCommand{cursors: cursors}
}

func (c *AdvanceCursorCommand) Execute(ctx context.Context, msg AdvanceCursorMessage) error {
	if c == nil || c.cursors == nil {
		return commandDependencyError("command: cursor store is required")
	}
	out, err := c.cursors.AdvanceCursor(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ResetCursorCommand struct {
	cursors core.SyncCursorStore
}

func NewResetCursorCommand(cursors core.SyncCursorStore) *ResetCursorCommand {
	return &ResetCursorCommand{cursors: cursors}
}

func (c *ResetCursorCommand) Execute(ctx context.Context, msg ResetCursorMessage) error {
	if c == nil || c.cursors == nil {
		return commandDependencyError("command: cursor store is required")
	}
	return c.cursors.ResetCursor(ctx, msg.Vendor, msg.UserID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
