package webhooks

import (
	"strconv"
	"strings"
	"time"

	"github.com/healthsync/go-connectors/core"
)

// VendorWebhookTemplate bundles a vendor's verification scheme with its
// trace extraction, so connectors share one wiring shape.
type VendorWebhookTemplate struct {
	Vendor    core.Vendor
	Verifier  Verifier
	Extractor TraceIDExtractor
}

// TraceIDExtractor pulls the idempotency handle out of a parsed payload.
type TraceIDExtractor func(payload map[string]any) string

// NewGarminWebhookTemplate signs the raw body directly. The legacy
// X-Gfit-Signature header is honored after the current one so older push
// configurations keep working.
func NewGarminWebhookTemplate(secret string) VendorWebhookTemplate {
	return VendorWebhookTemplate{
		Vendor: core.VendorGarmin,
		Verifier: HeaderHMACVerifier{
			Vendor:   core.VendorGarmin,
			Headers:  []string{"Garmin-Signature", "X-Gfit-Signature"},
			Secret:   strings.TrimSpace(secret),
			Encoding: "hex",
		},
		Extractor: FieldTraceIDExtractor("trace_id", "summaryId", "user_id"),
	}
}

// NewWhoopWebhookTemplate signs "{timestamp}.{body}" and enforces the
// freshness window on X-WHOOP-Signature-Timestamp.
func NewWhoopWebhookTemplate(secret string, replayWindow time.Duration, now func() time.Time) VendorWebhookTemplate {
	return VendorWebhookTemplate{
		Vendor: core.VendorWhoop,
		Verifier: TimestampedHMACVerifier{
			Vendor:          core.VendorWhoop,
			SignatureHeader: "X-WHOOP-Signature",
			TimestampHeader: "X-WHOOP-Signature-Timestamp",
			Secret:          strings.TrimSpace(secret),
			Encoding:        "hex",
			ReplayWindow:    replayWindow,
			Now:             now,
		},
		Extractor: FieldTraceIDExtractor("trace_id", "id", "user_id"),
	}
}

// FieldTraceIDExtractor returns the first non-empty field among keys,
// stringified.
func FieldTraceIDExtractor(keys ...string) TraceIDExtractor {
	fields := append([]string(nil), keys...)
	return func(payload map[string]any) string {
		for _, key := range fields {
			if value := stringField(payload, key); value != "" {
				return value
			}
		}
		return ""
	}
}

func stringField(payload map[string]any, key string) string {
	if len(payload) == 0 {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		// JSON numbers decode as float64; IDs are whole numbers.
		if typed == float64(int64(typed)) {
			return strconv.FormatInt(int64(typed), 10)
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}
