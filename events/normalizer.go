// Package events turns raw vendor webhook payloads into the canonical
// event shape the rest of the pipeline consumes.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/healthsync/go-connectors/core"
)

// Normalizer maps one vendor's raw payload to a NormalizedEvent.
type Normalizer interface {
	Normalize(rawBody []byte) (core.NormalizedEvent, error)
}

// EventTypeUnknown labels payloads that verified correctly but carry no
// recognizable resource section.
const EventTypeUnknown = "unknown"

// GarminNormalizer handles Garmin push payloads. The first entry of the
// highest-priority populated section decides the event type; summaries win
// over activities, activities over sleeps.
type GarminNormalizer struct {
	// Strict rejects payloads that normalize to the unknown event type
	// instead of passing them through.
	Strict bool
}

func (n GarminNormalizer) Normalize(rawBody []byte) (core.NormalizedEvent, error) {
	payload, err := decodePayload(core.VendorGarmin, rawBody)
	if err != nil {
		return core.NormalizedEvent{}, err
	}

	userID := stringValue(payload["userId"])
	if userID == "" {
		return core.NormalizedEvent{}, core.NewMalformedPayloadError(core.VendorGarmin, "missing required field: userId")
	}

	eventType := EventTypeUnknown
	resourceID := ""

	if summary, ok := firstEntry(payload, "summaries"); ok {
		dataType := stringValue(summary["dataType"])
		if dataType == "" {
			dataType = "daily"
		}
		eventType = strings.ToLower(dataType) + ".updated"
		resourceID = stringValue(summary["summaryId"])
	} else if activity, ok := firstEntry(payload, "activities"); ok {
		eventType = "activity.updated"
		resourceID = stringValue(activity["activityId"])
	} else if sleep, ok := firstEntry(payload, "sleeps"); ok {
		eventType = "sleep.updated"
		resourceID = stringValue(sleep["sleepId"])
	}

	if eventType == EventTypeUnknown && n.Strict {
		return core.NormalizedEvent{}, core.NewMalformedPayloadError(core.VendorGarmin, "no recognized resource section")
	}

	traceID := resourceID
	if traceID == "" {
		traceID = userID
	}
	return core.NormalizedEvent{
		Vendor:     core.VendorGarmin,
		UserID:     userID,
		EventType:  eventType,
		ResourceID: resourceID,
		TraceID:    traceID,
		RawPayload: payload,
	}, nil
}

// WhoopNormalizer handles WHOOP webhook payloads, which already carry the
// normalized fields.
type WhoopNormalizer struct {
	Strict bool
}

func (n WhoopNormalizer) Normalize(rawBody []byte) (core.NormalizedEvent, error) {
	payload, err := decodePayload(core.VendorWhoop, rawBody)
	if err != nil {
		return core.NormalizedEvent{}, err
	}

	userID := stringValue(payload["user_id"])
	if userID == "" {
		return core.NormalizedEvent{}, core.NewMalformedPayloadError(core.VendorWhoop, "missing required field: user_id")
	}

	eventType := stringValue(payload["type"])
	if eventType == "" {
		eventType = EventTypeUnknown
	}
	if eventType == EventTypeUnknown && n.Strict {
		return core.NormalizedEvent{}, core.NewMalformedPayloadError(core.VendorWhoop, "missing event type")
	}

	resourceID := stringValue(payload["id"])
	traceID := stringValue(payload["trace_id"])
	if traceID == "" {
		traceID = resourceID
	}
	if traceID == "" {
		traceID = userID
	}
	return core.NormalizedEvent{
		Vendor:     core.VendorWhoop,
		UserID:     userID,
		EventType:  eventType,
		ResourceID: resourceID,
		TraceID:    traceID,
		RawPayload: payload,
	}, nil
}

// ForVendor returns the normalizer registered for a vendor.
func ForVendor(vendor core.Vendor, strict bool) (Normalizer, error) {
	switch core.NormalizeVendor(string(vendor)) {
	case core.VendorGarmin:
		return GarminNormalizer{Strict: strict}, nil
	case core.VendorWhoop:
		return WhoopNormalizer{Strict: strict}, nil
	}
	return nil, fmt.Errorf("events: no normalizer for vendor %q", vendor)
}

func decodePayload(vendor core.Vendor, rawBody []byte) (map[string]any, error) {
	if len(rawBody) == 0 {
		return nil, core.NewMalformedPayloadError(vendor, "empty body")
	}
	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, core.NewMalformedPayloadError(vendor, "body is not a JSON object")
	}
	return payload, nil
}

func firstEntry(payload map[string]any, key string) (map[string]any, bool) {
	list, ok := payload[key].([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	entry, ok := list[0].(map[string]any)
	if !ok {
		return nil, false
	}
	return entry, true
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
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

var (
	_ Normalizer = GarminNormalizer{}
	_ Normalizer = WhoopNormalizer{}
)
