package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Shared in-package fakes for exercising the service pipelines.

type fakeConnector struct {
	vendor         Vendor
	cfg            VendorConfig
	verifyErr      error
	parsedEvent    NormalizedEvent
	parseErr       error
	authURL        string
	exchangeTokens OAuthTokens
	exchangeErr    error
	fetchResp      FetchResponse
	fetchErr       error

	exchangeCalls int
	fetchCalls    int
}

func (c *fakeConnector) Vendor() Vendor       { return c.vendor }
func (c *fakeConnector) Config() VendorConfig { return c.cfg }

func (c *fakeConnector) VerifyWebhook(context.Context, InboundRequest) error {
	return c.verifyErr
}

func (c *fakeConnector) ParseEvent(context.Context, []byte) (NormalizedEvent, error) {
	if c.parseErr != nil {
		return NormalizedEvent{}, c.parseErr
	}
	return c.parsedEvent, nil
}

func (c *fakeConnector) BuildAuthorizationURL(redirectURI, state string) (string, error) {
	return c.authURL + "?redirect_uri=" + redirectURI + "&state=" + state, nil
}

func (c *fakeConnector) ExchangeCode(context.Context, string, string, string) (OAuthTokens, error) {
	c.exchangeCalls++
	if c.exchangeErr != nil {
		return OAuthTokens{}, c.exchangeErr
	}
	return c.exchangeTokens, nil
}

func (c *fakeConnector) FetchData(context.Context, FetchRequest) (FetchResponse, error) {
	c.fetchCalls++
	return c.fetchResp, c.fetchErr
}

func (c *fakeConnector) ResourceTypes() []string { return []string{"dailies"} }

type stubTokenStore struct {
	mu      sync.Mutex
	records map[string]TokenRecord

	saveCalls    int
	webhookTouch int
	pullTouch    int
	getErr       error
	saveErr      error
}

func newStubTokenStore() *stubTokenStore {
	return &stubTokenStore{records: make(map[string]TokenRecord)}
}

func (s *stubTokenStore) GetTokens(_ context.Context, vendor Vendor, userID string) (TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return TokenRecord{}, s.getErr
	}
	record, ok := s.records[StorageKey(vendor, userID)]
	if !ok {
		return TokenRecord{}, ErrTokensNotFound
	}
	return record, nil
}

func (s *stubTokenStore) SaveTokens(_ context.Context, record TokenRecord) (TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return TokenRecord{}, s.saveErr
	}
	s.records[record.StorageKey()] = record
	return record, nil
}

func (s *stubTokenStore) Revoke(_ context.Context, vendor Vendor, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := StorageKey(vendor, userID)
	if _, ok := s.records[key]; !ok {
		return ErrTokensNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *stubTokenStore) TouchLastPull(_ context.Context, vendor Vendor, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pullTouch++
	if record, ok := s.records[StorageKey(vendor, userID)]; ok {
		record.LastPullAt = &at
		s.records[StorageKey(vendor, userID)] = record
	}
	return nil
}

func (s *stubTokenStore) TouchLastWebhook(_ context.Context, vendor Vendor, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhookTouch++
	if record, ok := s.records[StorageKey(vendor, userID)]; ok {
		record.LastWebhookAt = &at
		s.records[StorageKey(vendor, userID)] = record
	}
	return nil
}

type stubEventQueue struct {
	mu     sync.Mutex
	events []NormalizedEvent
	err    error
}

func (q *stubEventQueue) Enqueue(_ context.Context, event NormalizedEvent) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.events = append(q.events, event)
	return fmt.Sprintf("msg-%d", len(q.events)), nil
}

type stubExchanger struct {
	refreshed    OAuthTokens
	refreshErr   error
	refreshCalls int
}

func (e *stubExchanger) ExchangeCode(context.Context, VendorConfig, string, string) (OAuthTokens, error) {
	return OAuthTokens{}, fmt.Errorf("not used")
}

func (e *stubExchanger) RefreshTokens(context.Context, VendorConfig, string) (OAuthTokens, error) {
	e.refreshCalls++
	if e.refreshErr != nil {
		return OAuthTokens{}, e.refreshErr
	}
	return e.refreshed, nil
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, time.Duration) (LockHandle, error) {
	return nil, fmt.Errorf("core: lock already held for key")
}

type stubAdmitter struct {
	err   error
	calls int
}

func (a *stubAdmitter) Configure(RateLimitConfig) error { return nil }

func (a *stubAdmitter) CheckAndAdmit(context.Context, Vendor, string) error {
	a.calls++
	return a.err
}

type recordingPolicy struct {
	beforeErr error
	meta      []VendorResponseMeta
}

func (p *recordingPolicy) BeforeCall(context.Context, Vendor) error { return p.beforeErr }

func (p *recordingPolicy) AfterCall(_ context.Context, _ Vendor, meta VendorResponseMeta) error {
	p.meta = append(p.meta, meta)
	return nil
}
