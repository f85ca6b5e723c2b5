// Package grvt implements domain.Exchange against the GRVT perpetuals venue.
package grvt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/gridbot/internal/crypto"
	"github.com/alanyoungcy/gridbot/internal/domain"
)

const (
	sessionCookie   = "gravity"
	accountIDHeader = "X-Grvt-Account-Id"
)

// Endpoints holds the base URLs of the three GRVT API hosts.
type Endpoints struct {
	Edge       string
	Trades     string
	MarketData string
}

// EnvEndpoints returns the hosts and EIP-712 chain id for a named environment.
func EnvEndpoints(env string) (Endpoints, int64, error) {
	switch strings.ToLower(env) {
	case "prod", "production", "":
		return Endpoints{
			Edge:       "https://edge.grvt.io",
			Trades:     "https://trades.grvt.io",
			MarketData: "https://market-data.grvt.io",
		}, crypto.ChainIDProd, nil
	case "testnet":
		return Endpoints{
			Edge:       "https://edge.testnet.grvt.io",
			Trades:     "https://trades.testnet.grvt.io",
			MarketData: "https://market-data.testnet.grvt.io",
		}, crypto.ChainIDTestnet, nil
	}
	return Endpoints{}, 0, fmt.Errorf("grvt: unknown env %q: %w", env, domain.ErrInvalidParameter)
}

// Config configures a Client.
type Config struct {
	Endpoints    Endpoints
	APIKey       string
	SubAccountID uint64
	Timeout      time.Duration
}

// Client is a thin JSON-over-HTTP client for the GRVT REST API. It logs in
// lazily with the API key and re-authenticates once when a session expires.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	cookie    string
	accountID string
}

// NewClient creates a Client. APIKey may be empty for market-data-only use.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "grvt_client")),
	}
}

// Login exchanges the API key for a session cookie.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("grvt: login: no api key: %w", domain.ErrUnauthorized)
	}
	payload, err := json.Marshal(map[string]string{"api_key": c.cfg.APIKey})
	if err != nil {
		return fmt.Errorf("grvt: login: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoints.Edge+"/auth/api_key/login", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("grvt: login: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The edge host rejects requests without this cookie preset.
	req.AddCookie(&http.Cookie{Name: "rm", Value: "true"})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("grvt: login: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return fmt.Errorf("grvt: login: %w", err)
	}

	var cookie string
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			cookie = ck.Value
		}
	}
	if cookie == "" {
		return fmt.Errorf("grvt: login: no session cookie in response: %w", domain.ErrUnauthorized)
	}

	c.mu.Lock()
	c.cookie = cookie
	c.accountID = resp.Header.Get(accountIDHeader)
	c.mu.Unlock()
	c.logger.Info("session established")
	return nil
}

func (c *Client) session() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookie, c.accountID
}

// postPublic sends an unauthenticated market-data request.
func (c *Client) postPublic(ctx context.Context, path string, body, out any) error {
	raw, err := c.do(ctx, c.cfg.Endpoints.MarketData+path, body, false)
	if err != nil {
		return err
	}
	return decode(path, raw, out)
}

// postPrivate sends an authenticated trading request, logging in first when
// needed and retrying once after an authorization failure.
func (c *Client) postPrivate(ctx context.Context, path string, body, out any) error {
	if cookie, _ := c.session(); cookie == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}
	raw, err := c.do(ctx, c.cfg.Endpoints.Trades+path, body, true)
	if err != nil && isUnauthorized(err) {
		c.logger.Warn("session rejected, logging in again", slog.String("path", path))
		if lerr := c.Login(ctx); lerr != nil {
			return lerr
		}
		raw, err = c.do(ctx, c.cfg.Endpoints.Trades+path, body, true)
	}
	if err != nil {
		return err
	}
	return decode(path, raw, out)
}

func (c *Client) do(ctx context.Context, url string, body any, auth bool) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("grvt: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("grvt: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		cookie, accountID := c.session()
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie})
		if accountID != "" {
			req.Header.Set(accountIDHeader, accountID)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grvt: request %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("grvt: read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

func decode(path string, raw []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("grvt: decode %s: %w", path, err)
	}
	return nil
}

// checkHTTPStatus maps HTTP error codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := string(body)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = fmt.Sprintf("code %d: %s", apiErr.Code, apiErr.Message)
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrOrderRejected, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}

func isUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}
