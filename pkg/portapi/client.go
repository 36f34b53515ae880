package portapi

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
	"time"
)

var (
	ErrUnauthorized = errors.New("backend rejected credentials")
	ErrRequest      = errors.New("backend request failed")
)

const (
	cookieAccess  = "access-token"
	cookieRefresh = "refresh-token"
	cookieCSRF    = "csrf-token"
	headerCSRF    = "X-CSRF-Token"

	maxBodyBytes = 4 << 20
)

type Config struct {
	BaseURL   string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
	TokenFile string        `envconfig:"TOKEN_FILE" split_words:"true" default:"runtime_tokens.json"`
}

// Client is the authenticated REST client for the logistics backend. Auth is
// cookie-based; a 401 triggers exactly one token refresh and one retry of
// the original request before the failure surfaces.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
}

func NewClient(cfg Config, tokens TokenStore) (*Client, error) {
	baseURL := normalizeBaseURL(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}, nil
}

func normalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return strings.TrimRight(base, "/")
}

// Login authenticates with the backend and stores the issued session cookies.
func (c *Client) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login: %v", ErrRequest, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: login status=%d", ErrRequest, resp.StatusCode)
	}

	return c.tokens.Save(tokensFromCookies(resp.Cookies()))
}

// Refresh exchanges the refresh-token cookie for a new session.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", nil)
	if err != nil {
		return err
	}
	if err := c.attachAuth(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: refresh: %v", ErrRequest, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: refresh status=%d", ErrUnauthorized, resp.StatusCode)
	}

	return c.tokens.Save(tokensFromCookies(resp.Cookies()))
}

// get issues an authenticated GET, decodes the JSON body into out, and
// transparently performs the single refresh-and-retry on 401.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.doGet(ctx, path, query)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp.Body)
		if err := c.Refresh(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		resp, err = c.doGet(ctx, path, query)
		if err != nil {
			return err
		}
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: GET %s status=%d", ErrRequest, path, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrRequest, path, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrRequest, path, err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if err := c.attachAuth(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrRequest, path, err)
	}
	return resp, nil
}

func (c *Client) attachAuth(req *http.Request) error {
	t, err := c.tokens.Load()
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if t.CSRFToken != "" {
		req.Header.Set(headerCSRF, t.CSRFToken)
		req.AddCookie(&http.Cookie{Name: cookieCSRF, Value: t.CSRFToken})
	}
	if t.AccessToken != "" {
		req.AddCookie(&http.Cookie{Name: cookieAccess, Value: t.AccessToken})
	}
	if t.RefreshToken != "" {
		req.AddCookie(&http.Cookie{Name: cookieRefresh, Value: t.RefreshToken})
	}
	return nil
}

func tokensFromCookies(cookies []*http.Cookie) Tokens {
	var t Tokens
	for _, ck := range cookies {
		switch ck.Name {
		case cookieAccess:
			t.AccessToken = ck.Value
		case cookieRefresh:
			t.RefreshToken = ck.Value
		case cookieCSRF:
			t.CSRFToken = ck.Value
		}
	}
	return t
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodyBytes))
	_ = body.Close()
}
