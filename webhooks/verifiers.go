package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/healthsync/go-connectors/core"
)

// Verifier authenticates one raw inbound delivery before it is parsed.
type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// HeaderHMACVerifier checks an HMAC-SHA256 signature of the raw body
// carried in one of the configured headers. Headers are tried in order so
// vendors with legacy header names keep verifying during migrations.
type HeaderHMACVerifier struct {
	Vendor   core.Vendor
	Headers  []string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}

	var header string
	for _, key := range v.Headers {
		if value := headerValue(req.Headers, key); value != "" {
			header = value
			break
		}
	}
	if header == "" {
		return core.NewMissingSignatureError(v.Vendor, strings.Join(v.Headers, ", "))
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return core.NewMissingSignatureError(v.Vendor, strings.Join(v.Headers, ", "))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	decoded, err := decodeSignature(signature, v.Encoding)
	if err != nil {
		return core.NewSignatureMismatchError(v.Vendor)
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return core.NewSignatureMismatchError(v.Vendor)
	}
	return nil
}

// TimestampedHMACVerifier checks an HMAC-SHA256 signature over
// "{timestamp}.{body}" plus a freshness window on the timestamp header.
// Deliveries outside the window are rejected even when the signature is
// valid, which bounds replay of captured payloads.
type TimestampedHMACVerifier struct {
	Vendor          core.Vendor
	SignatureHeader string
	TimestampHeader string
	Secret          string
	Encoding        string // hex | base64
	ReplayWindow    time.Duration
	Now             func() time.Time
}

const DefaultReplayWindow = 300 * time.Second

func (v TimestampedHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}

	signature := headerValue(req.Headers, v.SignatureHeader)
	if signature == "" {
		return core.NewMissingSignatureError(v.Vendor, v.SignatureHeader)
	}
	timestamp := headerValue(req.Headers, v.TimestampHeader)
	if timestamp == "" {
		return core.NewMissingSignatureError(v.Vendor, v.TimestampHeader)
	}

	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return core.NewMalformedPayloadError(v.Vendor, "signature timestamp is not a unix epoch")
	}

	window := v.ReplayWindow
	if window <= 0 {
		window = DefaultReplayWindow
	}
	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	age := now.Sub(time.Unix(seconds, 0).UTC())
	if age < 0 {
		age = -age
	}
	if age > window {
		return core.NewReplayRejectedError(v.Vendor, age)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	decoded, err := decodeSignature(signature, v.Encoding)
	if err != nil {
		return core.NewSignatureMismatchError(v.Vendor)
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return core.NewSignatureMismatchError(v.Vendor)
	}
	return nil
}

func decodeSignature(signature, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.StdEncoding.DecodeString(signature)
	default:
		return hex.DecodeString(signature)
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var (
	_ Verifier = HeaderHMACVerifier{}
	_ Verifier = TimestampedHMACVerifier{}
)
