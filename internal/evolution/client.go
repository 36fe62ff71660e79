package evolution

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
)

// API defines the gateway operations courier consumes.
// This interface is implemented by *Client and can be used for testing.
type API interface {
	ListInstances(ctx context.Context) ([]Instance, error)
	Connect(ctx context.Context, name string) (PairingPayload, error)
	Create(ctx context.Context, name string) (PairingPayload, error)
	QRCode(ctx context.Context, name string) (PairingPayload, error)
	Logout(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to the Evolution API gateway.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
}

const (
	defaultBaseURL   = "http://127.0.0.1:8080"
	defaultUserAgent = "courier/0.1"
	requestTimeout   = 10 * time.Second
	maxBodyBytes     = 4 << 20
	maxErrorExcerpt  = 200
)

// Option customises a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for the gateway at baseURL authenticating with apiKey.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		apiKey:    apiKey,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized gateway URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListInstances retrieves every instance the gateway knows about.
func (c *Client) ListInstances(ctx context.Context) ([]Instance, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	body, err := c.do(ctx, http.MethodGet, nil, "instance", "fetchInstances")
	if err != nil {
		return nil, err
	}
	var records []instanceRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, malformed("decode instance list: %v", err)
	}
	out := make([]Instance, 0, len(records))
	for _, r := range records {
		out = append(out, r.normalize())
	}
	return out, nil
}

// Connect asks the gateway to open (or continue) a session for name. The
// response may already carry pairing material.
func (c *Client) Connect(ctx context.Context, name string) (PairingPayload, error) {
	if err := c.check(name); err != nil {
		return PairingPayload{}, err
	}
	body, err := c.do(ctx, http.MethodGet, nil, "instance", "connect", name)
	if err != nil {
		return PairingPayload{}, err
	}
	return DecodePairing(body)
}

// Create registers a new instance and requests a QR pairing challenge.
func (c *Client) Create(ctx context.Context, name string) (PairingPayload, error) {
	if err := c.check(name); err != nil {
		return PairingPayload{}, err
	}
	req := CreateRequest{InstanceName: name, QRCode: true, Integration: defaultIntegration}
	body, err := c.do(ctx, http.MethodPost, req, "instance", "create")
	if err != nil {
		return PairingPayload{}, err
	}
	return DecodePairing(body)
}

// QRCode fetches the current pairing artifact from the dedicated endpoint.
func (c *Client) QRCode(ctx context.Context, name string) (PairingPayload, error) {
	if err := c.check(name); err != nil {
		return PairingPayload{}, err
	}
	body, err := c.do(ctx, http.MethodGet, nil, "instance", "qrcode", name)
	if err != nil {
		return PairingPayload{}, err
	}
	return DecodePairing(body)
}

// Logout ends the open session for name.
func (c *Client) Logout(ctx context.Context, name string) error {
	if err := c.check(name); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodDelete, nil, "instance", "logout", name)
	return err
}

// Delete removes the instance entirely.
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.check(name); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodDelete, nil, "instance", "delete", name)
	return err
}

func (c *Client) check(name string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("instance name required")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, payload any, segments ...string) ([]byte, error) {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	reqURL := c.baseURL.JoinPath(escaped...)
	path := reqURL.EscapedPath()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransient, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %v", ErrTransient, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RejectionError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   excerpt(data),
		}
	}
	return data, nil
}

func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorExcerpt {
		s = s[:maxErrorExcerpt] + "…"
	}
	return s
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse gateway url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
