// Package garmin implements the Garmin Health API connector: legacy-header
// HMAC webhooks and epoch-ranged wellness endpoints.
package garmin

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/healthsync/go-connectors/core"
	"github.com/healthsync/go-connectors/events"
	"github.com/healthsync/go-connectors/vendors"
	"github.com/healthsync/go-connectors/webhooks"
)

// Wellness endpoints keyed by the resource types exposed to pulls.
var resourceTypes = []string{"dailies", "sleeps", "activities", "stress", "heartRates"}

type Options struct {
	HTTPClient   core.HTTPDoer
	Timeout      time.Duration
	StrictEvents bool
	Now          func() time.Time
}

type Connector struct {
	cfg        core.VendorConfig
	template   webhooks.VendorWebhookTemplate
	normalizer events.Normalizer
	oauth      *vendors.OAuth2Client
	api        *vendors.APIClient
	now        func() time.Time
}

func New(cfg core.VendorConfig, opts Options) (*Connector, error) {
	cfg.Vendor = core.VendorGarmin
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Connector{
		cfg:        cfg,
		template:   webhooks.NewGarminWebhookTemplate(cfg.WebhookSecret),
		normalizer: events.GarminNormalizer{Strict: opts.StrictEvents},
		oauth:      vendors.NewOAuth2Client(opts.HTTPClient, opts.Timeout),
		api:        vendors.NewAPIClient(opts.HTTPClient, opts.Timeout),
		now:        now,
	}, nil
}

func (c *Connector) Vendor() core.Vendor { return core.VendorGarmin }

func (c *Connector) Config() core.VendorConfig { return c.cfg }

func (c *Connector) ResourceTypes() []string {
	return append([]string(nil), resourceTypes...)
}

func (c *Connector) VerifyWebhook(ctx context.Context, req core.InboundRequest) error {
	if c == nil {
		return fmt.Errorf("garmin: connector is nil")
	}
	return c.template.Verifier.Verify(ctx, req)
}

func (c *Connector) ParseEvent(_ context.Context, rawBody []byte) (core.NormalizedEvent, error) {
	if c == nil {
		return core.NormalizedEvent{}, fmt.Errorf("garmin: connector is nil")
	}
	event, err := c.normalizer.Normalize(rawBody)
	if err != nil {
		return core.NormalizedEvent{}, err
	}
	// An explicit trace id in the payload wins over the derived one.
	if traceID := c.template.Extractor(event.RawPayload); traceID != "" {
		event.TraceID = traceID
	}
	event.ReceivedAt = c.now()
	return event, nil
}

func (c *Connector) BuildAuthorizationURL(redirectURI, state string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("garmin: connector is nil")
	}
	return vendors.AuthorizationURL(c.cfg, redirectURI, state)
}

func (c *Connector) ExchangeCode(ctx context.Context, _ string, code, redirectURI string) (core.OAuthTokens, error) {
	if c == nil {
		return core.OAuthTokens{}, fmt.Errorf("garmin: connector is nil")
	}
	return c.oauth.ExchangeCode(ctx, c.cfg, code, redirectURI)
}

// FetchData reads one wellness endpoint. Time windows travel in the path
// as epoch seconds; activities accept an open range.
func (c *Connector) FetchData(ctx context.Context, req core.FetchRequest) (core.FetchResponse, error) {
	if c == nil {
		return core.FetchResponse{}, fmt.Errorf("garmin: connector is nil")
	}
	resourceType := strings.TrimSpace(req.ResourceType)
	if !isKnownResource(resourceType) {
		return core.FetchResponse{}, core.NewBadInputError(fmt.Sprintf("unknown garmin resource type %q", resourceType))
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/wellness/" + resourceType
	switch {
	case strings.TrimSpace(req.ResourceID) != "":
		endpoint += "/" + url.PathEscape(strings.TrimSpace(req.ResourceID))
	case req.Start != nil && req.End != nil:
		endpoint += fmt.Sprintf("/%d/%d", req.Start.UTC().Unix(), req.End.UTC().Unix())
	case resourceType != "activities":
		return core.FetchResponse{}, core.NewBadInputError("start and end are required for ranged garmin resources")
	}

	return c.api.Get(ctx, core.VendorGarmin, endpoint, nil, req.AccessToken)
}

func isKnownResource(resourceType string) bool {
	for _, known := range resourceTypes {
		if known == resourceType {
			return true
		}
	}
	return false
}

var _ core.Connector = (*Connector)(nil)
