package inbound

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/healthsync/go-connectors/core"
)

// WebhookIntake is the slice of the connector service the webhook surface
// needs.
type WebhookIntake interface {
	HandleWebhook(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

// CodeExchanger is the slice of the connector service the OAuth callback
// surface needs.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, req core.ExchangeCodeRequest) (core.TokenRecord, error)
}

type WebhookHandler struct {
	Intake WebhookIntake
}

func NewWebhookHandler(intake WebhookIntake) *WebhookHandler {
	return &WebhookHandler{Intake: intake}
}

func (h *WebhookHandler) Surface() string {
	return SurfaceWebhook
}

func (h *WebhookHandler) Handle(ctx context.Context, req Request) (core.InboundResult, error) {
	if h == nil || h.Intake == nil {
		return core.InboundResult{}, inboundInternal("inbound: webhook intake is not configured", nil)
	}
	if len(req.Body) == 0 {
		return core.InboundResult{}, inboundBadInput("inbound: webhook body is required", map[string]any{
			"vendor": string(req.Vendor),
		})
	}
	return h.Intake.HandleWebhook(ctx, core.InboundRequest{
		Vendor:  req.Vendor,
		Headers: req.Headers,
		Body:    req.Body,
	})
}

type CallbackHandler struct {
	Exchanger CodeExchanger
}

func NewCallbackHandler(exchanger CodeExchanger) *CallbackHandler {
	return &CallbackHandler{Exchanger: exchanger}
}

func (h *CallbackHandler) Surface() string {
	return SurfaceOAuthCallback
}

func (h *CallbackHandler) Handle(ctx context.Context, req Request) (core.InboundResult, error) {
	if h == nil || h.Exchanger == nil {
		return core.InboundResult{}, inboundInternal("inbound: code exchanger is not configured", nil)
	}
	if reason := strings.TrimSpace(req.Query["error"]); reason != "" {
		return core.InboundResult{}, inboundError(
			"inbound: authorization denied: "+reason,
			goerrors.CategoryAuth,
			http.StatusUnauthorized,
			core.ConnectorErrorOAuthExchangeFault,
			map[string]any{"vendor": string(req.Vendor)},
		)
	}
	code := strings.TrimSpace(req.Query["code"])
	// The authorize URL carries the user id as the state parameter, so the
	// vendor redirect binds the exchange back to the user. user_id is an
	// alias for callers that invoke the surface directly.
	userID := strings.TrimSpace(req.Query["state"])
	if userID == "" {
		userID = strings.TrimSpace(req.Query["user_id"])
	}
	if code == "" || userID == "" {
		return core.InboundResult{}, inboundBadInput(
			"inbound: callback requires code and state",
			map[string]any{"vendor": string(req.Vendor)},
		)
	}

	record, err := h.Exchanger.ExchangeCode(ctx, core.ExchangeCodeRequest{
		Vendor:      req.Vendor,
		UserID:      userID,
		Code:        code,
		RedirectURI: strings.TrimSpace(req.Query["redirect_uri"]),
	})
	if err != nil {
		return core.InboundResult{}, err
	}
	return core.InboundResult{
		Accepted:       true,
		StatusCode:     http.StatusOK,
		MessageID:      record.StorageKey(),
		UserID:         record.UserID,
		TokenExpiresAt: record.Tokens.ExpiresAt,
		Scopes:         append([]string(nil), record.Tokens.Scopes...),
	}, nil
}

var (
	_ Handler = (*WebhookHandler)(nil)
	_ Handler = (*CallbackHandler)(nil)
)
