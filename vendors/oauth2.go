// Package vendors contains the shared outbound wire plumbing for vendor
// connectors: the OAuth2 token client and authorization URL construction.
package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/healthsync/go-connectors/core"
)

const maxTokenResponseBodyBytes = int64(1 << 20)

// OAuth2Client talks to vendor token endpoints. One instance serves every
// vendor; credentials come from the VendorConfig passed per call.
type OAuth2Client struct {
	HTTPClient         core.HTTPDoer
	RequestTimeout     time.Duration
	ClientSecretInBody bool
	Now                func() time.Time
}

func NewOAuth2Client(client core.HTTPDoer, timeout time.Duration) *OAuth2Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuth2Client{
		HTTPClient:     client,
		RequestTimeout: timeout,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

// AuthorizationURL builds the vendor consent URL. Pure string work; no
// network traffic.
func AuthorizationURL(cfg core.VendorConfig, redirectURI, state string) (string, error) {
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return "", fmt.Errorf("vendors: auth url is required for vendor %q", cfg.Vendor)
	}
	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", cfg.ClientID)
	if strings.TrimSpace(redirectURI) != "" {
		values.Set("redirect_uri", strings.TrimSpace(redirectURI))
	}
	if len(cfg.Scopes) > 0 {
		values.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	if strings.TrimSpace(state) != "" {
		values.Set("state", strings.TrimSpace(state))
	}

	authURL := cfg.AuthURL
	if strings.Contains(authURL, "?") {
		return authURL + "&" + values.Encode(), nil
	}
	return authURL + "?" + values.Encode(), nil
}

func (c *OAuth2Client) ExchangeCode(ctx context.Context, cfg core.VendorConfig, code, redirectURI string) (core.OAuthTokens, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return core.OAuthTokens{}, fmt.Errorf("vendors: authorization code is required")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI = strings.TrimSpace(redirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	return c.fetchToken(ctx, cfg, form)
}

func (c *OAuth2Client) RefreshTokens(ctx context.Context, cfg core.VendorConfig, refreshToken string) (core.OAuthTokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.OAuthTokens{}, fmt.Errorf("vendors: refresh token is required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.fetchToken(ctx, cfg, form)
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func (c *OAuth2Client) fetchToken(ctx context.Context, cfg core.VendorConfig, form url.Values) (core.OAuthTokens, error) {
	if c == nil || c.HTTPClient == nil {
		return core.OAuthTokens{}, fmt.Errorf("vendors: oauth2 http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return core.OAuthTokens{}, fmt.Errorf("vendors: token url is required for vendor %q", cfg.Vendor)
	}

	values := url.Values{}
	for key, items := range form {
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", cfg.ClientID)
	if c.ClientSecretInBody && cfg.ClientSecret != "" {
		values.Set("client_secret", cfg.ClientSecret)
	}

	requestCtx := ctx
	cancel := func() {}
	if c.RequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		cfg.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return core.OAuthTokens{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !c.ClientSecretInBody && cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
	}

	response, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return core.OAuthTokens{}, fmt.Errorf("vendors: token request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return core.OAuthTokens{}, fmt.Errorf("vendors: read token response: %w", readErr)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return core.OAuthTokens{}, fmt.Errorf("vendors: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return core.OAuthTokens{}, fmt.Errorf("vendors: decode token response: %w", parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.OAuthTokens{}, fmt.Errorf(
			"vendors: token endpoint error (%d): %s",
			response.StatusCode,
			describeTokenError(payload),
		)
	}
	if payload.ErrorCode != "" {
		return core.OAuthTokens{}, fmt.Errorf("vendors: token endpoint error: %s", describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.OAuthTokens{}, fmt.Errorf("vendors: token endpoint response missing access token")
	}

	now := time.Now().UTC()
	if c.Now != nil {
		now = c.Now().UTC()
	}
	tokens := core.OAuthTokens{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		TokenType:    normalizeTokenType(payload.TokenType),
		Scopes:       parseScopeList(payload.Scope),
	}
	if payload.ExpiresIn > 0 {
		tokens.ExpiresAt = now.Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return tokens, nil
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func parseScopeList(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return []string{}
	}
	return strings.Fields(strings.ReplaceAll(trimmed, ",", " "))
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.TokenExchanger = (*OAuth2Client)(nil)
