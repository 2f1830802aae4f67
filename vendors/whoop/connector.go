// Package whoop implements the WHOOP developer API connector: timestamped
// HMAC webhooks and paginated collection endpoints.
package whoop

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/healthsync/go-connectors/core"
	"github.com/healthsync/go-connectors/events"
	"github.com/healthsync/go-connectors/vendors"
	"github.com/healthsync/go-connectors/webhooks"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Collection endpoints keyed by resource type.
var collectionPaths = map[string]string{
	"recovery": "/developer/v1/recovery",
	"sleep":    "/developer/v1/activity/sleep",
	"workout":  "/developer/v1/activity/workout",
	"cycle":    "/developer/v1/cycle",
}

var resourceTypes = []string{"recovery", "sleep", "workout", "cycle"}

type Options struct {
	HTTPClient   core.HTTPDoer
	Timeout      time.Duration
	StrictEvents bool
	ReplayWindow time.Duration
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
	cfg.Vendor = core.VendorWhoop
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Connector{
		cfg:        cfg,
		template:   webhooks.NewWhoopWebhookTemplate(cfg.WebhookSecret, opts.ReplayWindow, now),
		normalizer: events.WhoopNormalizer{Strict: opts.StrictEvents},
		oauth:      vendors.NewOAuth2Client(opts.HTTPClient, opts.Timeout),
		api:        vendors.NewAPIClient(opts.HTTPClient, opts.Timeout),
		now:        now,
	}, nil
}

func (c *Connector) Vendor() core.Vendor { return core.VendorWhoop }

func (c *Connector) Config() core.VendorConfig { return c.cfg }

func (c *Connector) ResourceTypes() []string {
	return append([]string(nil), resourceTypes...)
}

func (c *Connector) VerifyWebhook(ctx context.Context, req core.InboundRequest) error {
	if c == nil {
		return fmt.Errorf("whoop: connector is nil")
	}
	return c.template.Verifier.Verify(ctx, req)
}

func (c *Connector) ParseEvent(_ context.Context, rawBody []byte) (core.NormalizedEvent, error) {
	if c == nil {
		return core.NormalizedEvent{}, fmt.Errorf("whoop: connector is nil")
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
		return "", fmt.Errorf("whoop: connector is nil")
	}
	return vendors.AuthorizationURL(c.cfg, redirectURI, state)
}

func (c *Connector) ExchangeCode(ctx context.Context, _ string, code, redirectURI string) (core.OAuthTokens, error) {
	if c == nil {
		return core.OAuthTokens{}, fmt.Errorf("whoop: connector is nil")
	}
	return c.oauth.ExchangeCode(ctx, c.cfg, code, redirectURI)
}

// FetchData reads one collection endpoint, or a single record when
// ResourceID is set. Time windows travel as ISO 8601 query parameters and
// the limit is clamped to the API's 1..100 range.
func (c *Connector) FetchData(ctx context.Context, req core.FetchRequest) (core.FetchResponse, error) {
	if c == nil {
		return core.FetchResponse{}, fmt.Errorf("whoop: connector is nil")
	}
	resourceType := strings.TrimSpace(req.ResourceType)
	path, ok := collectionPaths[resourceType]
	if !ok {
		return core.FetchResponse{}, core.NewBadInputError(fmt.Sprintf("unknown whoop resource type %q", resourceType))
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if resourceID := strings.TrimSpace(req.ResourceID); resourceID != "" {
		endpoint += "/" + url.PathEscape(resourceID)
		return c.api.Get(ctx, core.VendorWhoop, endpoint, nil, req.AccessToken)
	}

	query := url.Values{}
	if req.Start != nil {
		query.Set("start", req.Start.UTC().Format(time.RFC3339))
	}
	if req.End != nil {
		query.Set("end", req.End.UTC().Format(time.RFC3339))
	}
	query.Set("limit", strconv.Itoa(clampLimit(req.Limit)))

	return c.api.Get(ctx, core.VendorWhoop, endpoint, query, req.AccessToken)
}

// FetchUserProfile reads the basic profile of the authenticated user.
func (c *Connector) FetchUserProfile(ctx context.Context, accessToken string) (core.FetchResponse, error) {
	if c == nil {
		return core.FetchResponse{}, fmt.Errorf("whoop: connector is nil")
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/developer/v1/user/profile/basic"
	return c.api.Get(ctx, core.VendorWhoop, endpoint, nil, accessToken)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

var _ core.Connector = (*Connector)(nil)
