package core

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func newFetchTestService(t *testing.T, connector *fakeConnector, admitter *stubAdmitter, policy *recordingPolicy) (*Service, *stubTokenStore) {
	t.Helper()
	store := newStubTokenStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opts := []Option{
		WithTokenStore(store),
		WithClock(func() time.Time { return now }),
		WithTokenExchanger(&stubExchanger{}),
	}
	if admitter != nil {
		opts = append(opts, WithRateLimitAdmitter(admitter))
	}
	if policy != nil {
		opts = append(opts, WithRateLimitPolicy(policy))
	}
	svc, err := NewService(Config{}, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Registry().Register(connector); err != nil {
		t.Fatalf("register connector: %v", err)
	}
	store.records[StorageKey(connector.vendor, "u1")] = TokenRecord{
		Vendor: connector.vendor,
		UserID: "u1",
		Tokens: OAuthTokens{AccessToken: "live", RefreshToken: "r", ExpiresAt: now.Add(time.Hour)},
	}
	return svc, store
}

func TestFetchVendorData_HappyPathTouchesLastPull(t *testing.T) {
	connector := &fakeConnector{
		vendor: VendorGarmin,
		fetchResp: FetchResponse{
			Records:    []map[string]any{{"id": "1"}, {"id": "2"}},
			StatusCode: http.StatusOK,
		},
	}
	policy := &recordingPolicy{}
	svc, store := newFetchTestService(t, connector, &stubAdmitter{}, policy)

	resp, err := svc.FetchVendorData(context.Background(), VendorGarmin, FetchRequest{UserID: "u1", ResourceType: "dailies"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(resp.Records))
	}
	if store.pullTouch != 1 {
		t.Fatalf("expected last-pull touch, got %d", store.pullTouch)
	}
	if len(policy.meta) != 1 || policy.meta[0].StatusCode != http.StatusOK {
		t.Fatalf("expected policy to observe the response, got %+v", policy.meta)
	}
}

func TestFetchVendorData_AdmissionRunsBeforeTokenRead(t *testing.T) {
	connector := &fakeConnector{vendor: VendorWhoop}
	admitter := &stubAdmitter{err: NewRateLimitedError(VendorWhoop, 30*time.Second)}
	svc, _ := newFetchTestService(t, connector, admitter, nil)

	_, err := svc.FetchVendorData(context.Background(), VendorWhoop, FetchRequest{UserID: "u1", ResourceType: "recovery"})
	if err == nil {
		t.Fatalf("expected rate limited error")
	}
	if got := textCodeOf(t, err); got != ConnectorErrorRateLimited {
		t.Fatalf("expected rate limited code, got %q", got)
	}
	if connector.fetchCalls != 0 {
		t.Fatalf("expected no vendor call after throttle, got %d", connector.fetchCalls)
	}
	if admitter.calls != 1 {
		t.Fatalf("expected one admission check, got %d", admitter.calls)
	}
}

func TestFetchVendorData_PolicyBeforeCallBlocks(t *testing.T) {
	connector := &fakeConnector{vendor: VendorWhoop}
	policy := &recordingPolicy{beforeErr: NewRateLimitedError(VendorWhoop, time.Minute)}
	svc, _ := newFetchTestService(t, connector, nil, policy)

	_, err := svc.FetchVendorData(context.Background(), VendorWhoop, FetchRequest{UserID: "u1", ResourceType: "cycle"})
	if got := textCodeOf(t, err); got != ConnectorErrorRateLimited {
		t.Fatalf("expected rate limited code, got %q", got)
	}
	if connector.fetchCalls != 0 {
		t.Fatalf("expected no vendor call, got %d", connector.fetchCalls)
	}
}

func TestFetchVendorData_Vendor429ReachesPolicy(t *testing.T) {
	connector := &fakeConnector{
		vendor:    VendorWhoop,
		fetchResp: FetchResponse{StatusCode: http.StatusTooManyRequests},
		fetchErr:  NewRateLimitedError(VendorWhoop, 42*time.Second),
	}
	policy := &recordingPolicy{}
	svc, _ := newFetchTestService(t, connector, nil, policy)

	_, err := svc.FetchVendorData(context.Background(), VendorWhoop, FetchRequest{UserID: "u1", ResourceType: "sleep"})
	if got := textCodeOf(t, err); got != ConnectorErrorRateLimited {
		t.Fatalf("expected rate limited code, got %q", got)
	}
	if len(policy.meta) != 1 {
		t.Fatalf("expected policy to observe the 429, got %d observations", len(policy.meta))
	}
	if policy.meta[0].RetryAfter == nil || *policy.meta[0].RetryAfter != 42*time.Second {
		t.Fatalf("expected retry-after forwarded to policy, got %+v", policy.meta[0].RetryAfter)
	}
}

func TestFetchVendorData_ValidatesInput(t *testing.T) {
	connector := &fakeConnector{vendor: VendorGarmin}
	svc, _ := newFetchTestService(t, connector, nil, nil)
	ctx := context.Background()

	_, err := svc.FetchVendorData(ctx, VendorGarmin, FetchRequest{ResourceType: "dailies"})
	if got := textCodeOf(t, err); got != ConnectorErrorBadInput {
		t.Fatalf("expected bad input for missing user, got %q", got)
	}
	_, err = svc.FetchVendorData(ctx, VendorGarmin, FetchRequest{UserID: "u1"})
	if got := textCodeOf(t, err); got != ConnectorErrorBadInput {
		t.Fatalf("expected bad input for missing resource type, got %q", got)
	}
}

func TestFetchVendorData_NotConnectedSurfacesBeforeVendorCall(t *testing.T) {
	connector := &fakeConnector{vendor: VendorGarmin}
	svc, store := newFetchTestService(t, connector, nil, nil)
	delete(store.records, "garmin:u1")

	_, err := svc.FetchVendorData(context.Background(), VendorGarmin, FetchRequest{UserID: "u1", ResourceType: "dailies"})
	if got := textCodeOf(t, err); got != ConnectorErrorNotConnected {
		t.Fatalf("expected not connected code, got %q", got)
	}
	if connector.fetchCalls != 0 {
		t.Fatalf("expected no vendor call without tokens")
	}
}
