// Package remnawave is a client of the VPN panel API that owns subscriber accounts.
package remnawave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned when the panel has no such user.
var ErrNotFound = errors.New("remnawave: user not found")

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx answer of the panel.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s (status: %d)", e.Body, e.StatusCode)
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("User-Agent", "aura-bot")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Status == "" {
		req.Status = StatusActive
	}
	var resp envelope[User]
	if err := c.doRequest(ctx, http.MethodPost, "/api/users", req, &resp); err != nil {
		return nil, fmt.Errorf("create user %s: %w", req.Username, err)
	}
	return &resp.Response, nil
}

func (c *Client) GetUser(ctx context.Context, uuid string) (*User, error) {
	var resp envelope[User]
	if err := c.doRequest(ctx, http.MethodGet, "/api/users/"+url.PathEscape(uuid), nil, &resp); err != nil {
		return nil, fmt.Errorf("get user %s: %w", uuid, err)
	}
	return &resp.Response, nil
}

func (c *Client) UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error) {
	var resp envelope[User]
	if err := c.doRequest(ctx, http.MethodPatch, "/api/users", req, &resp); err != nil {
		return nil, fmt.Errorf("update user %s: %w", req.UUID, err)
	}
	return &resp.Response, nil
}

func (c *Client) DisableUser(ctx context.Context, uuid string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/users/"+url.PathEscape(uuid)+"/actions/disable", nil, nil); err != nil {
		return fmt.Errorf("disable user %s: %w", uuid, err)
	}
	return nil
}
