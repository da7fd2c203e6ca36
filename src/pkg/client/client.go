// Package client is the Go companion client for the database service.
// Every request is signed with the shared secret and throttled through a
// local rate limiter so callers do not trip the server-side window.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hackit-taiwan/database-service/src/internal/domain/entity"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/security"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("database service: %s (status %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the service root, e.g. http://localhost:8001.
	BaseURL string
	// Secret is the shared signing secret.
	Secret string
	// RequestsPerMinute throttles outbound calls; 0 disables the
	// throttle.
	RequestsPerMinute int
	// Timeout bounds each HTTP call; defaults to 10s.
	Timeout time.Duration
}

// Client talks to the database service.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client for the service at cfg.BaseURL.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// envelope mirrors the service's response format.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do signs and executes a request, decoding the envelope's data field
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range security.AuthHeaders(c.secret, method, req.URL.Path) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// userList is the shape of endpoints returning a user collection.
type userList struct {
	Users []*entity.User `json:"users"`
	Count int            `json:"count"`
}

// CreateUser registers a user, returning the stored document.
func (c *Client) CreateUser(ctx context.Context, user *entity.User) (*entity.User, error) {
	var created entity.User
	if err := c.do(ctx, http.MethodPost, "/users/", user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetUserByID fetches a user by document ID.
func (c *Client) GetUserByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail fetches a user by email address.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	if err := c.do(ctx, http.MethodGet, "/users/email/"+url.PathEscape(email), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByDiscordID fetches a user by their Discord identity.
func (c *Client) GetUserByDiscordID(ctx context.Context, userID, guildID int64) (*entity.User, error) {
	var user entity.User
	path := fmt.Sprintf("/users/discord/%d/%d", userID, guildID)
	if err := c.do(ctx, http.MethodGet, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial update and returns the updated document.
func (c *Client) UpdateUser(ctx context.Context, id string, upd *entity.UserUpdate) (*entity.User, error) {
	var user entity.User
	if err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), upd, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// QueryUsers runs a filtered query.
func (c *Client) QueryUsers(ctx context.Context, q entity.UserQuery) ([]*entity.User, error) {
	var list userList
	if err := c.do(ctx, http.MethodPost, "/users/query", q, &list); err != nil {
		return nil, err
	}
	return list.Users, nil
}

// ListUsers pages through all users.
func (c *Client) ListUsers(ctx context.Context, limit, offset int64) ([]*entity.User, error) {
	var list userList
	path := fmt.Sprintf("/users/?limit=%d&offset=%d", limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Users, nil
}

// AddTag attaches a tag to a user.
func (c *Client) AddTag(ctx context.Context, id, tag string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/tags/"+url.PathEscape(tag), nil, nil)
}

// RemoveTag detaches a tag from a user.
func (c *Client) RemoveTag(ctx context.Context, id, tag string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id)+"/tags/"+url.PathEscape(tag), nil, nil)
}

// UsersByTag lists users carrying the given tag.
func (c *Client) UsersByTag(ctx context.Context, tag string) ([]*entity.User, error) {
	var list userList
	if err := c.do(ctx, http.MethodGet, "/users/tags/"+url.PathEscape(tag), nil, &list); err != nil {
		return nil, err
	}
	return list.Users, nil
}

// SearchByName searches users by partial name, case-insensitively.
func (c *Client) SearchByName(ctx context.Context, name string) ([]*entity.User, error) {
	var list userList
	path := "/users/search?name=" + url.QueryEscape(name)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Users, nil
}

// Activate marks a user active.
func (c *Client) Activate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/activate", nil, nil)
}

// Deactivate marks a user inactive.
func (c *Client) Deactivate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/deactivate", nil, nil)
}

// RecordLogin bumps a user's login counter and timestamp.
func (c *Client) RecordLogin(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/login", nil, nil)
}

// Stats fetches the collection overview.
func (c *Client) Stats(ctx context.Context) (*entity.UserStats, error) {
	var stats entity.UserStats
	if err := c.do(ctx, http.MethodGet, "/users/stats/overview", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health checks service liveness without authentication headers being
// required server-side; the client still signs for uniformity.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
