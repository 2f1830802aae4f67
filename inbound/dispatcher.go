package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/healthsync/go-connectors/core"
)

const (
	SurfaceWebhook       = "webhook"
	SurfaceOAuthCallback = "oauth_callback"
)

// Request is one inbound delivery addressed to a surface. Query carries the
// OAuth callback parameters; webhook deliveries use Headers and Body.
type Request struct {
	Surface string
	Vendor  core.Vendor
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

type Handler interface {
	Surface() string
	Handle(ctx context.Context, req Request) (core.InboundResult, error)
}

// Dispatcher routes inbound deliveries to the handler registered for their
// surface. Vendor resolution happens inside the handlers; the dispatcher
// only validates addressing.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[string]Handler{}}
}

func (d *Dispatcher) Register(handler Handler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	surface := normalizeSurface(handler.Surface())
	if !isSupportedSurface(surface) {
		return inboundBadInput(
			fmt.Sprintf("inbound: unsupported surface %q", surface),
			map[string]any{"surface": surface},
		)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[surface]; exists {
		return inboundError(
			fmt.Sprintf("inbound: handler already registered for surface %q", surface),
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.ConnectorErrorInternal,
			map[string]any{"surface": surface},
		)
	}
	d.handlers[surface] = handler
	return nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (core.InboundResult, error) {
	if d == nil {
		return core.InboundResult{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	req.Surface = normalizeSurface(req.Surface)
	req.Vendor = core.NormalizeVendor(string(req.Vendor))
	if !isSupportedSurface(req.Surface) {
		return core.InboundResult{}, inboundBadInput(
			fmt.Sprintf("inbound: unsupported surface %q", req.Surface),
			map[string]any{"surface": req.Surface},
		)
	}
	if err := req.Vendor.Validate(); err != nil {
		return core.InboundResult{}, inboundWrapError(
			err,
			goerrors.CategoryBadInput,
			"inbound: unknown vendor",
			http.StatusNotFound,
			core.ConnectorErrorNotFound,
			map[string]any{"surface": req.Surface},
		)
	}

	handler := d.handlerFor(req.Surface)
	if handler == nil {
		return core.InboundResult{}, inboundError(
			fmt.Sprintf("inbound: no handler registered for surface %q", req.Surface),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.ConnectorErrorNotFound,
			map[string]any{"surface": req.Surface},
		)
	}
	return handler.Handle(ctx, req)
}

func (d *Dispatcher) handlerFor(surface string) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[surface]
}

func normalizeSurface(surface string) string {
	return strings.ToLower(strings.TrimSpace(surface))
}

func isSupportedSurface(surface string) bool {
	switch surface {
	case SurfaceWebhook, SurfaceOAuthCallback:
		return true
	default:
		return false
	}
}
