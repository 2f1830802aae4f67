package connectors

import (
	"fmt"

	conncommand "github.com/healthsync/go-connectors/command"
	"github.com/healthsync/go-connectors/core"
	connquery "github.com/healthsync/go-connectors/query"
	connsync "github.com/healthsync/go-connectors/sync"
)

// CommandQueryService is the surface the facade wraps: the core service for
// mutations and reads, plus a pull orchestrator.
type CommandQueryService interface {
	conncommand.TokenService
	connquery.ConnectionStatusReader
	Registry() core.Registry
	Dependencies() core.ServiceDependencies
}

type Commands struct {
	ExchangeCode  *conncommand.ExchangeCodeCommand
	RefreshTokens *conncommand.RefreshTokensCommand
	Disconnect    *conncommand.DisconnectCommand
	Pull          *conncommand.PullCommand
	AdvanceCursor *conncommand.AdvanceCursorCommand
	ResetCursor   *conncommand.ResetCursorCommand
}

type Queries struct {
	ConnectionStatus *connquery.ConnectionStatusQuery
	LoadSyncCursor   *connquery.LoadSyncCursorQuery
	ListVendors      *connquery.ListVendorsQuery
}

type Facade struct {
	service  CommandQueryService
	puller   *connsync.Puller
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	puller *connsync.Puller
}

// WithPuller overrides the pull orchestrator the facade builds from the
// service dependencies.
func WithPuller(puller *connsync.Puller) FacadeOption {
	return func(options *facadeOptions) {
		options.puller = puller
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("connectors: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	deps := service.Dependencies()
	if deps.SyncCursorStore == nil {
		return nil, fmt.Errorf("connectors: sync cursor store is required")
	}

	puller := cfg.puller
	if puller == nil {
		fetcher, ok := service.(connsync.Fetcher)
		if !ok {
			return nil, fmt.Errorf("connectors: service does not expose vendor fetches")
		}
		puller = connsync.NewPuller(fetcher, service.Registry(), deps.SyncCursorStore)
		if provider, ok := service.(interface{ Config() core.Config }); ok {
			if lookback := provider.Config().Sync.InitialLookback(); lookback > 0 {
				puller.InitialLookback = lookback
			}
		}
	}

	facade := &Facade{service: service, puller: puller}
	facade.commands = Commands{
		ExchangeCode:  conncommand.NewExchangeCodeCommand(service),
		RefreshTokens: conncommand.NewRefreshTokensCommand(service),
		Disconnect:    conncommand.NewDisconnectCommand(service),
		Pull:          conncommand.NewPullCommand(puller),
		AdvanceCursor: conncommand.NewAdvanceCursorCommand(deps.SyncCursorStore),
		ResetCursor:   conncommand.NewResetCursorCommand(deps.SyncCursorStore),
	}
	facade.queries = Queries{
		ConnectionStatus: connquery.NewConnectionStatusQuery(service),
		LoadSyncCursor:   connquery.NewLoadSyncCursorQuery(deps.SyncCursorStore),
		ListVendors:      connquery.NewListVendorsQuery(service.Registry()),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) Puller() *connsync.Puller {
	if f == nil {
		return nil
	}
	return f.puller
}
