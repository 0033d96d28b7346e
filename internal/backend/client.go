// Package backend is the HTTP client for the vantage server: device-code
// login, identity and entitlement lookups, and user-scoped remote series.
//
// Errors honor the fetch taxonomy: HTTP 401 wraps fetch.ErrUnauthorized so
// the query runner never auto-retries it, and 5xx/connection failures wrap
// fetch.ErrUnavailable so they get the single transient retry. All requests
// carry the caller's context, so a superseded fetch generation actually
// aborts the socket.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marlowe/vantage/internal/fetch"
	"github.com/marlowe/vantage/internal/models"
)

// ErrNotFound marks a missing resource; not part of the retry taxonomy.
var ErrNotFound = errors.New("not found")

// Client is an HTTP client for the vantage server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a client. The HTTP client timeout is a backstop; per-fetch
// timeouts come from the query runner's options.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Auth types ---

// LoginStartResponse is the response from POST /v1/auth/login/start.
type LoginStartResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// LoginPollResponse is the response from POST /v1/auth/login/poll.
type LoginPollResponse struct {
	Status    string  `json:"status"`
	APIKey    *string `json:"api_key,omitempty"`
	UserID    *string `json:"user_id,omitempty"`
	Email     *string `json:"email,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

// UserResponse is the response from GET /v1/me.
type UserResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// EntitlementResponse is the response from GET /v1/me/entitlement.
type EntitlementResponse struct {
	Tier      string `json:"tier"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// RemoteSeriesRequest selects a user-scoped series from the server.
type RemoteSeriesRequest struct {
	Dataset string
	Metric  string
	Since   time.Time
	Buckets int
}

// remoteSeriesResponse is the wire shape of a remote series.
type remoteSeriesResponse struct {
	Points []struct {
		Bucket string  `json:"bucket"`
		Value  float64 `json:"value"`
	} `json:"points"`
}

// --- Auth methods ---

// LoginStart initiates the device auth flow. No API key required.
func (c *Client) LoginStart(ctx context.Context, email string) (*LoginStartResponse, error) {
	body := map[string]string{"email": email}
	var resp LoginStartResponse
	if err := c.doNoAuth(ctx, "POST", "/v1/auth/login/start", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoginPoll checks the status of a device auth request. No API key required.
func (c *Client) LoginPoll(ctx context.Context, deviceCode string) (*LoginPollResponse, error) {
	body := map[string]string{"device_code": deviceCode}
	var resp LoginPollResponse
	if err := c.doNoAuth(ctx, "POST", "/v1/auth/login/poll", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the authenticated user, confirming the stored key is valid.
func (c *Client) Me(ctx context.Context) (*UserResponse, error) {
	var resp UserResponse
	if err := c.do(ctx, "GET", "/v1/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Entitlement returns the user's tier.
func (c *Client) Entitlement(ctx context.Context) (*EntitlementResponse, error) {
	var resp EntitlementResponse
	if err := c.do(ctx, "GET", "/v1/me/entitlement", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoteSeries fetches a user-scoped aggregated series from the server.
func (c *Client) RemoteSeries(ctx context.Context, req RemoteSeriesRequest) ([]models.SeriesPoint, error) {
	params := url.Values{}
	params.Set("dataset", req.Dataset)
	params.Set("metric", req.Metric)
	params.Set("since", req.Since.UTC().Format(time.RFC3339))
	params.Set("buckets", strconv.Itoa(req.Buckets))

	var resp remoteSeriesResponse
	if err := c.do(ctx, "GET", "/v1/series?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	points := make([]models.SeriesPoint, 0, len(resp.Points))
	for _, p := range resp.Points {
		ts, err := time.Parse(time.RFC3339, p.Bucket)
		if err != nil {
			return nil, fmt.Errorf("parse bucket %q: %w", p.Bucket, err)
		}
		points = append(points, models.SeriesPoint{Bucket: ts.UTC(), Value: p.Value})
	}
	return points, nil
}

// --- Boot resolver adapters ---

// ResolveIdentity implements boot.IdentityResolver.
func (c *Client) ResolveIdentity(ctx context.Context) error {
	_, err := c.Me(ctx)
	return err
}

// ResolveEntitlement implements boot.EntitlementResolver.
func (c *Client) ResolveEntitlement(ctx context.Context) (models.Tier, error) {
	resp, err := c.Entitlement(ctx)
	if err != nil {
		return "", err
	}
	if !models.ValidTier(resp.Tier) {
		return "", fmt.Errorf("unknown tier %q", resp.Tier)
	}
	return models.Tier(resp.Tier), nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an authenticated HTTP request.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, false)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// Preserve the context error so supersession stays
		// distinguishable from a connection fault.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", fetch.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(respBody)
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			msg = apiErr.Error()
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", fetch.ErrUnauthorized, msg)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: HTTP %d: %s", fetch.ErrUnavailable, resp.StatusCode, msg)
		default:
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
