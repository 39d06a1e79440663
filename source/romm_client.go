package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrAuthRejected marks a scope-fatal credential failure.
var ErrAuthRejected = errors.New("authentication rejected")

// RommClient talks to a RomM server. Tokens are acquired lazily with the
// password grant and refreshed once on a 401.
type RommClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// RommOption configures a RommClient.
type RommOption func(*RommClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) RommOption {
	return func(c *RommClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewRommClient creates a client for the given server.
func NewRommClient(baseURL, username, password string, opts ...RommOption) (*RommClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("romm base url required")
	}
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("romm username required")
	}
	client := &RommClient{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type rommTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RommPlatform is one platform entry from the server.
type RommPlatform struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	RomCount    int64  `json:"rom_count"`
}

// RommRom is one rom entry from the paginated listing.
type RommRom struct {
	ID           int64    `json:"id"`
	PlatformID   int64    `json:"platform_id"`
	PlatformSlug string   `json:"platform_slug"`
	FsName       string   `json:"fs_name"`
	Name         string   `json:"name"`
	FsSizeBytes  *int64   `json:"fs_size_bytes"`
	Regions      []string `json:"regions"`
	HashMD5      string   `json:"md5_hash"`
}

type rommPage struct {
	Items  []RommRom `json:"items"`
	Total  int64     `json:"total"`
	Limit  int64     `json:"limit"`
	Offset int64     `json:"offset"`
}

func (c *RommClient) authenticate(ctx context.Context) (string, error) {
	form := url.Values{
		"username":   {c.username},
		"password":   {c.password},
		"grant_type": {"password"},
		"scope":      {"me.read roms.read platforms.read"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not reach server: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)
	}

	var tokenResp rommTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("could not decode token response: %w", err)
	}
	return tokenResp.AccessToken, nil
}

func (c *RommClient) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

// authGet performs an authenticated GET, re-authenticating once on 401.
func (c *RommClient) authGet(ctx context.Context, path string, out any) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return err
	}

	status, err := c.doGet(ctx, path, token, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		token, err = c.getToken(ctx)
		if err != nil {
			return err
		}
		status, err = c.doGet(ctx, path, token, out)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("request %s failed: status %d", path, status)
	}
	return nil
}

func (c *RommClient) doGet(ctx context.Context, path, token string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("could not reach server: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

// Platforms fetches all platforms from the server.
func (c *RommClient) Platforms(ctx context.Context) ([]RommPlatform, error) {
	var platforms []RommPlatform
	if err := c.authGet(ctx, "/api/platforms", &platforms); err != nil {
		return nil, err
	}
	return platforms, nil
}

// RomsPage fetches one page of the rom listing.
func (c *RommClient) RomsPage(ctx context.Context, limit, offset int64) ([]RommRom, int64, error) {
	var page rommPage
	path := fmt.Sprintf("/api/roms?limit=%d&offset=%d", limit, offset)
	if err := c.authGet(ctx, path, &page); err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}
