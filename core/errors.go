package core

import (
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ConnectorErrorBadInput           = "CONNECTOR_BAD_INPUT"
	ConnectorErrorMissingSignature   = "CONNECTOR_MISSING_SIGNATURE"
	ConnectorErrorSignatureMismatch  = "CONNECTOR_SIGNATURE_MISMATCH"
	ConnectorErrorReplayRejected     = "CONNECTOR_REPLAY_REJECTED"
	ConnectorErrorMalformedPayload   = "CONNECTOR_MALFORMED_PAYLOAD"
	ConnectorErrorOAuthExchangeFault = "CONNECTOR_OAUTH_EXCHANGE_FAILED"
	ConnectorErrorNotConnected       = "CONNECTOR_NOT_CONNECTED"
	ConnectorErrorRateLimited        = "CONNECTOR_RATE_LIMITED"
	ConnectorErrorVendorAPI          = "CONNECTOR_VENDOR_API_ERROR"
	ConnectorErrorNotFound           = "CONNECTOR_NOT_FOUND"
	ConnectorErrorTimeout            = "CONNECTOR_TIMEOUT"
	ConnectorErrorInternal           = "CONNECTOR_INTERNAL_ERROR"
)

const (
	metadataVendorKey     = "vendor"
	metadataRetryAfterKey = "retry_after_s"
	metadataStatusKey     = "vendor_status"
)

// ErrorEnvelope is the wire shape every boundary error renders to, so
// multi-vendor clients can branch on Code without parsing prose.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Vendor  string `json:"vendor"`
}

// EnvelopeFor flattens any error into the structured boundary payload.
func EnvelopeFor(err error, vendor Vendor) ErrorEnvelope {
	mapped := connectorErrorMapper(err)
	if mapped == nil {
		return ErrorEnvelope{}
	}
	envelope := ErrorEnvelope{
		Code:    mapped.TextCode,
		Message: mapped.Message,
		Vendor:  strings.TrimSpace(string(vendor)),
	}
	if envelope.Vendor == "" {
		if value, ok := mapped.Metadata[metadataVendorKey].(string); ok {
			envelope.Vendor = value
		}
	}
	return envelope
}

// HTTPStatusFor resolves the response status for a mapped error.
func HTTPStatusFor(err error) int {
	mapped := connectorErrorMapper(err)
	if mapped == nil {
		return http.StatusOK
	}
	if mapped.Code != 0 {
		return mapped.Code
	}
	return connectorHTTPStatus(mapped.Category)
}

// RetryAfterFor extracts the retry hint from a rate-limited error, zero when
// absent.
func RetryAfterFor(err error) time.Duration {
	mapped := connectorErrorMapper(err)
	if mapped == nil {
		return 0
	}
	seconds, ok := mapped.Metadata[metadataRetryAfterKey].(int64)
	if !ok {
		if asInt, intOK := mapped.Metadata[metadataRetryAfterKey].(int); intOK {
			seconds = int64(asInt)
			ok = true
		}
	}
	if !ok || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func NewMissingSignatureError(vendor Vendor, header string) *goerrors.Error {
	return newConnectorError(
		"missing webhook signature header",
		goerrors.CategoryAuth,
		ConnectorErrorMissingSignature,
	).WithMetadata(map[string]any{
		metadataVendorKey: string(vendor),
		"header":          strings.TrimSpace(header),
	})
}

func NewSignatureMismatchError(vendor Vendor) *goerrors.Error {
	return newConnectorError(
		"webhook signature verification failed",
		goerrors.CategoryAuth,
		ConnectorErrorSignatureMismatch,
	).WithMetadata(map[string]any{metadataVendorKey: string(vendor)})
}

func NewReplayRejectedError(vendor Vendor, age time.Duration) *goerrors.Error {
	return newConnectorError(
		"webhook timestamp outside replay window",
		goerrors.CategoryAuth,
		ConnectorErrorReplayRejected,
	).WithMetadata(map[string]any{
		metadataVendorKey: string(vendor),
		"age_s":           int64(age / time.Second),
	})
}

func NewMalformedPayloadError(vendor Vendor, reason string) *goerrors.Error {
	message := "malformed webhook payload"
	if strings.TrimSpace(reason) != "" {
		message = message + ": " + strings.TrimSpace(reason)
	}
	return newConnectorError(message, goerrors.CategoryBadInput, ConnectorErrorMalformedPayload).
		WithMetadata(map[string]any{metadataVendorKey: string(vendor)})
}

func NewOAuthExchangeError(vendor Vendor, cause error) *goerrors.Error {
	err := goerrors.Wrap(cause, goerrors.CategoryAuth, "oauth token exchange failed").
		WithCode(http.StatusUnauthorized).
		WithTextCode(ConnectorErrorOAuthExchangeFault)
	return err.WithMetadata(map[string]any{metadataVendorKey: string(vendor)})
}

func NewNotConnectedError(vendor Vendor, userID string) *goerrors.Error {
	return newConnectorError(
		"no tokens stored for user",
		goerrors.CategoryAuth,
		ConnectorErrorNotConnected,
	).WithMetadata(map[string]any{
		metadataVendorKey: string(vendor),
		"user_id":         strings.TrimSpace(userID),
	})
}

func NewRateLimitedError(vendor Vendor, retryAfter time.Duration) *goerrors.Error {
	err := newConnectorError(
		"rate limit exceeded",
		goerrors.CategoryRateLimit,
		ConnectorErrorRateLimited,
	)
	metadata := map[string]any{metadataVendorKey: string(vendor)}
	if retryAfter > 0 {
		metadata[metadataRetryAfterKey] = int64(retryAfter / time.Second)
	}
	return err.WithMetadata(metadata)
}

func NewVendorAPIError(vendor Vendor, statusCode int, detail string) *goerrors.Error {
	message := "vendor api error"
	if strings.TrimSpace(detail) != "" {
		message = message + ": " + strings.TrimSpace(detail)
	}
	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	if statusCode >= 400 && statusCode < 500 {
		category = goerrors.CategoryOperation
		code = statusCode
	}
	return goerrors.New(message, category).
		WithCode(code).
		WithTextCode(ConnectorErrorVendorAPI).
		WithMetadata(map[string]any{
			metadataVendorKey: string(vendor),
			metadataStatusKey: statusCode,
		})
}

func NewNotFoundError(vendor Vendor, what string) *goerrors.Error {
	message := "not found"
	if strings.TrimSpace(what) != "" {
		message = strings.TrimSpace(what) + " not found"
	}
	return newConnectorError(message, goerrors.CategoryNotFound, ConnectorErrorNotFound).
		WithMetadata(map[string]any{metadataVendorKey: string(vendor)})
}

func NewBadInputError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "invalid input"
	}
	return newConnectorError(message, goerrors.CategoryBadInput, ConnectorErrorBadInput)
}

// IsTransient reports whether callers may retry with backoff: local or
// vendor throttling plus network timeouts qualify, verification and parse
// failures never do.
func IsTransient(err error) bool {
	mapped := connectorErrorMapper(err)
	if mapped == nil {
		return false
	}
	switch mapped.TextCode {
	case ConnectorErrorRateLimited, ConnectorErrorTimeout:
		return true
	}
	return mapped.Category == goerrors.CategoryExternal
}

func connectorErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureConnectorErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrTokensNotFound):
		return newConnectorError(err.Error(), goerrors.CategoryAuth, ConnectorErrorNotConnected)
	case errors.Is(err, ErrCursorNotFound):
		return newConnectorError(err.Error(), goerrors.CategoryNotFound, ConnectorErrorNotFound)
	case errors.Is(err, ErrConnectorNotFound):
		return newConnectorError(err.Error(), goerrors.CategoryNotFound, ConnectorErrorNotFound)
	case errors.Is(err, ErrCursorConflict):
		return newConnectorError(err.Error(), goerrors.CategoryConflict, ConnectorErrorInternal)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "timeout"):
		return newConnectorError(err.Error(), goerrors.CategoryExternal, ConnectorErrorTimeout)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newConnectorError(err.Error(), goerrors.CategoryRateLimit, ConnectorErrorRateLimited)
	case strings.Contains(msg, "signature"):
		return newConnectorError(err.Error(), goerrors.CategoryAuth, ConnectorErrorSignatureMismatch)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newConnectorError(err.Error(), goerrors.CategoryBadInput, ConnectorErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureConnectorErrorEnvelope(mapped)
}

func newConnectorError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureConnectorErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureConnectorErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = connectorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultConnectorTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultConnectorTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ConnectorErrorBadInput
	case goerrors.CategoryNotFound:
		return ConnectorErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ConnectorErrorNotConnected
	case goerrors.CategoryRateLimit:
		return ConnectorErrorRateLimited
	case goerrors.CategoryExternal:
		return ConnectorErrorVendorAPI
	default:
		return ConnectorErrorInternal
	}
}

func connectorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
