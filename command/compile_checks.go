package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ExchangeCodeMessage]  = (*ExchangeCodeCommand)(nil)
	_ gocmd.Commander[RefreshTokensMessage] = (*RefreshTokensCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]    = (*DisconnectCommand)(nil)
	_ gocmd.Commander[PullMessage]          = (*PullCommand)(nil)
	_ gocmd.Commander[AdvanceCursorMessage] = (*AdvanceCursorCommand)(nil)
	_ gocmd.Commander[ResetCursorMessage]   = (*ResetCursorCommand)(nil)
)
