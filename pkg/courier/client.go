package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

// Shiprocket tokens are valid for ten days; refresh well before that.
const tokenLifetime = 9 * 24 * time.Hour

var errCredentialsRequired = errors.New("courier email and password are required")

// StatusError is returned for any non-2xx courier response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("courier %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the courier aggregator REST API.
type Client struct {
	baseURL     string
	email       string
	password    string
	trackingURL string
	http        *http.Client
	logg        *logger.Logger
	now         func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient builds a courier client from config.
func NewClient(cfg config.CourierConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Email) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, errCredentialsRequired
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid courier base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:     base,
		email:       cfg.Email,
		password:    cfg.Password,
		trackingURL: cfg.TrackingURL,
		http:        &http.Client{Timeout: timeout},
		logg:        logg,
		now:         time.Now,
	}, nil
}

// TrackingURL returns the public tracking page for an AWB.
func (c *Client) TrackingURL(awb string) string {
	if awb == "" {
		return ""
	}
	return c.trackingURL + awb
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{"email": c.email, "password": c.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("courier login: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Method: http.MethodPost, Path: "/auth/login", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode courier login: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("courier login returned no token")
	}
	c.token = out.Token
	c.tokenExpiry = c.now().Add(tokenLifetime)
	if c.logg != nil {
		c.logg.Info(ctx, "courier token refreshed")
	}
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// do sends an authenticated request, re-authenticating once on 401.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode courier request: %w", err)
		}
		payload = encoded
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.authToken(ctx)
		if err != nil {
			return err
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("courier %s %s: %w", method, path, err)
		}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("read courier response: %w", readErr)
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.invalidateToken()
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		}
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode courier %s response: %w", path, err)
		}
		return nil
	}
	return &StatusError{Method: method, Path: path, StatusCode: http.StatusUnauthorized, Body: "unauthorized after token refresh"}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
