// Package backend is the console's HTTP client for the admissions API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/unidash/admissions-console/internal/core/domain"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client implements ports.AuthBackend over the admissions API's REST routes.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

type meResponse struct {
	User *domain.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode login: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/login", "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, domain.ErrInvalidCredentials
	default:
		return nil, unexpectedStatus(resp)
	}

	var out loginResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &domain.Session{Token: out.Token, ExpiresAt: out.ExpiresAt, User: out.User}, nil
}

func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.ErrUnauthenticated
	default:
		return nil, unexpectedStatus(resp)
	}

	var out meResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("%w: empty profile", domain.ErrServiceUnavailable)
	}
	return out.User, nil
}

// Logout asks the API to revoke token. A token the API already rejects
// counts as logged out.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusUnauthorized:
		return nil
	default:
		return unexpectedStatus(resp)
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrServiceUnavailable, method, path, err)
	}
	return resp, nil
}

func decode(resp *http.Response, out any) error {
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

func unexpectedStatus(resp *http.Response) error {
	return fmt.Errorf("%w: unexpected status %d", domain.ErrServiceUnavailable, resp.StatusCode)
}
