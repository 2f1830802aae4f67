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

const maxAPIResponseBodyBytes = int64(8 << 20)

// APIClient performs authenticated GETs against vendor data APIs and maps
// the vendor's throttle and error responses to the shared taxonomy.
type APIClient struct {
	HTTPClient     core.HTTPDoer
	RequestTimeout time.Duration
}

func NewAPIClient(client core.HTTPDoer, timeout time.Duration) *APIClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIClient{HTTPClient: client, RequestTimeout: timeout}
}

// Get fetches one endpoint with a bearer token. A 429 maps to a
// rate-limited error with the vendor's Retry-After hint, a 204 to an empty
// response, and any other non-200 to a vendor API error.
func (c *APIClient) Get(ctx context.Context, vendor core.Vendor, endpoint string, query url.Values, accessToken string) (core.FetchResponse, error) {
	if c == nil || c.HTTPClient == nil {
		return core.FetchResponse{}, fmt.Errorf("vendors: api http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(endpoint) == "" {
		return core.FetchResponse{}, fmt.Errorf("vendors: endpoint is required")
	}
	if len(query) > 0 {
		if strings.Contains(endpoint, "?") {
			endpoint += "&" + query.Encode()
		} else {
			endpoint += "?" + query.Encode()
		}
	}

	requestCtx := ctx
	cancel := func() {}
	if c.RequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.FetchResponse{}, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if strings.TrimSpace(accessToken) != "" {
		httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))
	}

	response, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return core.FetchResponse{}, fmt.Errorf("vendors: api request failed: %w", err)
	}
	defer response.Body.Close()

	headers := flattenHeaders(response.Header)
	result := core.FetchResponse{
		StatusCode: response.StatusCode,
		Headers:    headers,
	}

	switch {
	case response.StatusCode == http.StatusTooManyRequests:
		return result, core.NewRateLimitedError(vendor, retryAfterHint(response.Header))
	case response.StatusCode == http.StatusNoContent:
		return result, nil
	case response.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(response.Body, 2048))
		return result, core.NewVendorAPIError(vendor, response.StatusCode, strings.TrimSpace(string(body)))
	}

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxAPIResponseBodyBytes+1))
	if readErr != nil {
		return result, fmt.Errorf("vendors: read api response: %w", readErr)
	}
	if int64(len(body)) > maxAPIResponseBodyBytes {
		return result, fmt.Errorf("vendors: api response exceeds %d bytes", maxAPIResponseBodyBytes)
	}

	records, raw, decodeErr := decodeAPIBody(body)
	if decodeErr != nil {
		return result, core.NewVendorAPIError(vendor, response.StatusCode, "undecodable response body")
	}
	result.Records = records
	result.Raw = raw
	return result, nil
}

// decodeAPIBody accepts either a bare JSON array of records or an object
// with a "records" list.
func decodeAPIBody(body []byte) ([]map[string]any, map[string]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []map[string]any
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, nil, err
		}
		return list, nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, err
	}
	var records []map[string]any
	if list, ok := raw["records"].([]any); ok {
		for _, entry := range list {
			if record, ok := entry.(map[string]any); ok {
				records = append(records, record)
			}
		}
	}
	return records, raw, nil
}

func retryAfterHint(header http.Header) time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return 60 * time.Second
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 60 * time.Second
}

func flattenHeaders(header http.Header) map[string]string {
	if len(header) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		out[key] = values[0]
	}
	return out
}
