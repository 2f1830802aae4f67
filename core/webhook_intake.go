package core

import (
	"context"
	"fmt"
	"net/http"
)

// HandleWebhook runs the inbound pipeline for one raw delivery: verify the
// signature, normalize the payload, stamp the delivery time, and enqueue
// the event. A payload that fails verification is dropped before parsing
// and never reaches the queue.
func (s *Service) HandleWebhook(ctx context.Context, req InboundRequest) (InboundResult, error) {
	if s == nil {
		return InboundResult{}, fmt.Errorf("core: service is nil")
	}
	if s.eventQueue == nil {
		return InboundResult{}, fmt.Errorf("core: event queue is not configured")
	}

	connector, err := s.connector(req.Vendor)
	if err != nil {
		return InboundResult{StatusCode: HTTPStatusFor(err)}, err
	}
	vendor := connector.Vendor()
	startedAt := s.clock()
	fields := map[string]any{"vendor": vendor.String()}

	if err := connector.VerifyWebhook(ctx, req); err != nil {
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "webhook_verify", mapped, fields)
		return InboundResult{StatusCode: HTTPStatusFor(mapped)}, mapped
	}

	event, err := connector.ParseEvent(ctx, req.Body)
	if err != nil {
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "webhook_parse", mapped, fields)
		return InboundResult{StatusCode: HTTPStatusFor(mapped)}, mapped
	}
	event.Vendor = vendor
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = s.clock()
	}
	fields["user_id"] = event.UserID
	fields["event_type"] = event.EventType

	if s.tokenStore != nil && event.UserID != "" {
		if touchErr := s.tokenStore.TouchLastWebhook(ctx, vendor, event.UserID, event.ReceivedAt); touchErr != nil {
			// Bookkeeping only; the delivery still counts.
			s.logError(ctx, "last webhook timestamp update failed", map[string]any{
				"vendor":  vendor.String(),
				"user_id": event.UserID,
				"error":   touchErr.Error(),
			})
		}
	}

	messageID, err := s.eventQueue.Enqueue(ctx, event)
	if err != nil {
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "webhook_enqueue", mapped, fields)
		return InboundResult{StatusCode: HTTPStatusFor(mapped)}, mapped
	}

	s.observeOperation(ctx, startedAt, "webhook_intake", nil, fields)
	return InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		MessageID:  messageID,
		Event:      &event,
	}, nil
}
