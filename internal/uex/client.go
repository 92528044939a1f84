// Package uex is the HTTP client for the UEX marketplace API.
package uex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.uexcorp.space/2.0"
	DefaultTimeout = 5 * time.Second

	notificationsPath = "/user_notifications"
	replyPath         = "/marketplace_negotiations_messages"
	userPath          = "/user"

	secretKeyHeader = "secret-key"
	maxErrorBody    = 200
)

// Credentials authenticate a single marketplace user.
type Credentials struct {
	BearerToken string
	SecretKey   string
}

// CredentialsOf extracts the credential pair stored in a session.
func CredentialsOf(s *domain.UserSession) Credentials {
	return Credentials{BearerToken: s.BearerToken, SecretKey: s.SecretKey}
}

//go:generate mockgen -destination=mock/mock_api.go -package=mock . API

// API is the subset of the UEX API the relay consumes.
type API interface {
	FetchNotifications(ctx context.Context, creds Credentials) ([]Notification, error)
	PostReply(ctx context.Context, creds Credentials, hash, message string) error
	ResolveUsername(ctx context.Context, creds Credentials) (string, error)
	LookupUsername(ctx context.Context, creds Credentials, username string) (string, error)
}

// RemoteID is a server-assigned notification id. UEX sends it as a number,
// but strings are accepted too.
type RemoteID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *RemoteID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RemoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("notification id: %w", err)
	}
	*id = RemoteID(n.String())
	return nil
}

// Notification is one record of GET /user_notifications.
type Notification struct {
	ID      RemoteID `json:"id"`
	Message string   `json:"message"`
	Redir   string   `json:"redir"`
}

// RemoteError is a non-success response from UEX.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("uex responded %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the error as a remote service failure.
func (e *RemoteError) Unwrap() error {
	return domain.ErrRemoteService
}

// Config configures the client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Production bool
}

// Client talks to the UEX API over resty.
type Client struct {
	http       *resty.Client
	production bool
}

// NewClient creates a UEX client. Every request carries cfg.Timeout.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, production: cfg.Production}
}

func (c *Client) request(ctx context.Context, creds Credentials) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(creds.BearerToken).
		SetHeader(secretKeyHeader, creds.SecretKey)
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
	}
	if !resp.IsSuccess() {
		return &RemoteError{StatusCode: resp.StatusCode(), Body: Truncate(resp.String(), maxErrorBody)}
	}
	return nil
}

// FetchNotifications returns the user's notifications in server order.
func (c *Client) FetchNotifications(ctx context.Context, creds Credentials) ([]Notification, error) {
	resp, err := c.request(ctx, creds).Get(notificationsPath)
	if err := c.check("fetch notifications", resp, err); err != nil {
		return nil, err
	}

	var payload struct {
		Data []Notification `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode notifications: %w", domain.ErrRemoteService, err)
	}
	return payload.Data, nil
}

type replyRequest struct {
	IsProduction int    `json:"is_production"`
	Hash         string `json:"hash"`
	Message      string `json:"message"`
}

// PostReply submits a negotiation message for hash.
func (c *Client) PostReply(ctx context.Context, creds Credentials, hash, message string) error {
	body := replyRequest{Hash: hash, Message: message}
	if c.production {
		body.IsProduction = 1
	}
	resp, err := c.request(ctx, creds).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(replyPath)
	return c.check("post reply", resp, err)
}

// ResolveUsername returns the marketplace username owning creds.
func (c *Client) ResolveUsername(ctx context.Context, creds Credentials) (string, error) {
	resp, err := c.request(ctx, creds).Get(userPath)
	if err := c.check("resolve username", resp, err); err != nil {
		return "", err
	}
	return decodeUsername(resp.Body())
}

// LookupUsername returns the canonical spelling of username as known to UEX.
func (c *Client) LookupUsername(ctx context.Context, creds Credentials, username string) (string, error) {
	resp, err := c.request(ctx, creds).SetQueryParam("username", username).Get(userPath)
	if err := c.check("lookup username", resp, err); err != nil {
		return "", err
	}
	return decodeUsername(resp.Body())
}

func decodeUsername(body []byte) (string, error) {
	var payload struct {
		Username string          `json:"username"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: decode user profile: %w", domain.ErrRemoteService, err)
	}
	if payload.Username != "" {
		return payload.Username, nil
	}
	if len(payload.Data) > 0 {
		var inner struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(payload.Data, &inner); err == nil && inner.Username != "" {
			return inner.Username, nil
		}
	}
	return "", fmt.Errorf("%w: user profile has no username", domain.ErrRemoteService)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
