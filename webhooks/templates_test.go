package webhooks

import (
	"testing"
	"time"

	"github.com/healthsync/go-connectors/core"
)

func TestNewGarminWebhookTemplate_Shape(t *testing.T) {
	template := NewGarminWebhookTemplate("  secret  ")
	if template.Vendor != core.VendorGarmin {
		t.Fatalf("expected garmin vendor, got %q", template.Vendor)
	}
	verifier, ok := template.Verifier.(HeaderHMACVerifier)
	if !ok {
		t.Fatalf("expected header verifier, got %T", template.Verifier)
	}
	if verifier.Secret != "secret" {
		t.Fatalf("expected trimmed secret, got %q", verifier.Secret)
	}
	if len(verifier.Headers) != 2 || verifier.Headers[0] != "Garmin-Signature" || verifier.Headers[1] != "X-Gfit-Signature" {
		t.Fatalf("expected legacy header alias order, got %v", verifier.Headers)
	}
}

func TestNewWhoopWebhookTemplate_Shape(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	template := NewWhoopWebhookTemplate("secret", 2*time.Minute, now)
	verifier, ok := template.Verifier.(TimestampedHMACVerifier)
	if !ok {
		t.Fatalf("expected timestamped verifier, got %T", template.Verifier)
	}
	if verifier.SignatureHeader != "X-WHOOP-Signature" || verifier.TimestampHeader != "X-WHOOP-Signature-Timestamp" {
		t.Fatalf("unexpected header names: %q %q", verifier.SignatureHeader, verifier.TimestampHeader)
	}
	if verifier.ReplayWindow != 2*time.Minute {
		t.Fatalf("expected custom replay window, got %v", verifier.ReplayWindow)
	}
}

func TestFieldTraceIDExtractor_PriorityAndTypes(t *testing.T) {
	extractor := FieldTraceIDExtractor("trace_id", "summaryId", "user_id")

	cases := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"first key wins", map[string]any{"trace_id": "t1", "summaryId": "s1"}, "t1"},
		{"falls through to second", map[string]any{"summaryId": "s1", "user_id": "u1"}, "s1"},
		{"numeric id stringified", map[string]any{"summaryId": float64(123456)}, "123456"},
		{"int id stringified", map[string]any{"user_id": 42}, "42"},
		{"whitespace treated as empty", map[string]any{"trace_id": "  ", "user_id": "u9"}, "u9"},
		{"nothing matches", map[string]any{"other": "x"}, ""},
		{"nil payload", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractor(tc.payload); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
