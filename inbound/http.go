package inbound

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/healthsync/go-connectors/core"
)

const maxWebhookBodyBytes = 1 << 20

// HTTPAdapter exposes the dispatcher over net/http:
//
//	POST /webhooks/{vendor}
//	GET  /oauth/{vendor}/callback
type HTTPAdapter struct {
	Dispatcher *Dispatcher
	Logger     core.Logger
}

func NewHTTPAdapter(dispatcher *Dispatcher, logger core.Logger) *HTTPAdapter {
	return &HTTPAdapter{Dispatcher: dispatcher, Logger: logger}
}

func (a *HTTPAdapter) Mount(mux *http.ServeMux) {
	if a == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /webhooks/{vendor}", a.handleWebhook)
	mux.HandleFunc("GET /oauth/{vendor}/callback", a.handleCallback)
}

func (a *HTTPAdapter) handleWebhook(w http.ResponseWriter, r *http.Request) {
	vendor := core.NormalizeVendor(r.PathValue("vendor"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		a.writeError(w, vendor, inboundBadInput("inbound: read webhook body", map[string]any{
			"vendor": string(vendor),
		}))
		return
	}

	result, err := a.dispatch(r, Request{
		Surface: SurfaceWebhook,
		Vendor:  vendor,
		Headers: flattenHeader(r.Header),
		Body:    body,
	})
	if err != nil {
		a.writeError(w, vendor, err)
		return
	}
	writeJSON(w, result.StatusCode, map[string]any{
		"accepted":   result.Accepted,
		"message_id": result.MessageID,
	})
}

func (a *HTTPAdapter) handleCallback(w http.ResponseWriter, r *http.Request) {
	vendor := core.NormalizeVendor(r.PathValue("vendor"))

	query := map[string]string{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	result, err := a.dispatch(r, Request{
		Surface: SurfaceOAuthCallback,
		Vendor:  vendor,
		Query:   query,
	})
	if err != nil {
		a.writeError(w, vendor, err)
		return
	}
	payload := map[string]any{
		"connected": result.Accepted,
		"vendor":    string(vendor),
		"user_id":   result.UserID,
	}
	if !result.TokenExpiresAt.IsZero() {
		payload["expires_at"] = result.TokenExpiresAt.UTC().Format(time.RFC3339)
	}
	if len(result.Scopes) > 0 {
		payload["scopes"] = result.Scopes
	}
	writeJSON(w, result.StatusCode, payload)
}

func (a *HTTPAdapter) dispatch(r *http.Request, req Request) (core.InboundResult, error) {
	if a == nil || a.Dispatcher == nil {
		return core.InboundResult{}, inboundInternal("inbound: http adapter is not configured", nil)
	}
	return a.Dispatcher.Dispatch(r.Context(), req)
}

func (a *HTTPAdapter) writeError(w http.ResponseWriter, vendor core.Vendor, err error) {
	status := core.HTTPStatusFor(err)
	if retryAfter := core.RetryAfterFor(err); retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter/time.Second), 10))
	}
	if a != nil && a.Logger != nil && status >= http.StatusInternalServerError {
		a.Logger.Error("inbound request failed", "vendor", string(vendor), "error", err)
	}
	writeJSON(w, status, core.EnvelopeFor(err, vendor))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status <= 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func flattenHeader(header http.Header) map[string]string {
	flattened := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			flattened[strings.TrimSpace(key)] = values[0]
		}
	}
	return flattened
}
