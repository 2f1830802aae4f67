package core

import (
	"context"
	"fmt"
	"strings"
)

// FetchVendorData performs one authenticated vendor API read. Admission
// control runs before the token freshness check so a throttled vendor does
// not trigger needless refreshes; the rate-limit policy observes every
// response afterwards.
func (s *Service) FetchVendorData(ctx context.Context, vendor Vendor, req FetchRequest) (FetchResponse, error) {
	if s == nil {
		return FetchResponse{}, fmt.Errorf("core: service is nil")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return FetchResponse{}, s.mapError(NewBadInputError("user id is required"))
	}
	if strings.TrimSpace(req.ResourceType) == "" {
		return FetchResponse{}, s.mapError(NewBadInputError("resource type is required"))
	}
	req.UserID = userID

	connector, err := s.connector(vendor)
	if err != nil {
		return FetchResponse{}, err
	}
	vendor = connector.Vendor()
	startedAt := s.clock()
	fields := map[string]any{
		"vendor":        vendor.String(),
		"user_id":       userID,
		"resource_type": req.ResourceType,
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.CheckAndAdmit(ctx, vendor, userID); err != nil {
			mapped := s.mapError(err)
			s.observeOperation(ctx, startedAt, "fetch_admission", mapped, fields)
			return FetchResponse{}, mapped
		}
	}
	if s.ratePolicy != nil {
		if err := s.ratePolicy.BeforeCall(ctx, vendor); err != nil {
			mapped := s.mapError(err)
			s.observeOperation(ctx, startedAt, "fetch_admission", mapped, fields)
			return FetchResponse{}, mapped
		}
	}

	tokens, err := s.FreshTokens(ctx, vendor, userID)
	if err != nil {
		s.observeOperation(ctx, startedAt, "fetch", err, fields)
		return FetchResponse{}, err
	}
	req.AccessToken = tokens.AccessToken

	resp, err := connector.FetchData(ctx, req)
	if s.ratePolicy != nil && resp.StatusCode != 0 {
		meta := VendorResponseMeta{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
		}
		if retryAfter := RetryAfterFor(err); retryAfter > 0 {
			meta.RetryAfter = &retryAfter
		}
		if policyErr := s.ratePolicy.AfterCall(ctx, vendor, meta); policyErr != nil {
			s.logError(ctx, "rate limit policy update failed", map[string]any{
				"vendor": vendor.String(),
				"error":  policyErr.Error(),
			})
		}
	}
	if err != nil {
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "fetch", mapped, fields)
		return FetchResponse{}, mapped
	}

	if s.tokenStore != nil {
		if touchErr := s.tokenStore.TouchLastPull(ctx, vendor, userID, s.clock()); touchErr != nil {
			s.logError(ctx, "last pull timestamp update failed", map[string]any{
				"vendor":  vendor.String(),
				"user_id": userID,
				"error":   touchErr.Error(),
			})
		}
	}

	fields["records"] = len(resp.Records)
	s.observeOperation(ctx, startedAt, "fetch", nil, fields)
	return resp, nil
}
