package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const hasheousBaseURL = "https://hasheous.org"

// HasheousClient resolves checksums to known titles and cross-provider ids.
// Hasheous is keyless, so this provider is always eligible.
type HasheousClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *limiter
}

// HasheousOption configures a HasheousClient.
type HasheousOption func(*HasheousClient)

// WithHasheousBaseURL overrides the API endpoint.
func WithHasheousBaseURL(baseURL string) HasheousOption {
	return func(c *HasheousClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHasheousHTTPClient overrides the default HTTP client.
func WithHasheousHTTPClient(client *http.Client) HasheousOption {
	return func(c *HasheousClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewHasheousClient(opts ...HasheousOption) *HasheousClient {
	client := &HasheousClient{
		baseURL:    hasheousBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    newLimiter(500 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ Provider = (*HasheousClient)(nil)

func (c *HasheousClient) Name() string { return "hasheous" }

type hasheousResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Publisher struct {
		Name string `json:"name"`
	} `json:"publisher"`
	Metadata []struct {
		Source string `json:"source"`
		ID     string `json:"immutableId"`
	} `json:"metadata"`
}

// Fetch looks the rom up by hash, preferring MD5, then SHA1. The main value
// of a hit is the IGDB id it carries for later providers.
func (c *HasheousClient) Fetch(ctx context.Context, req Request) (*Result, error) {
	type key struct{ kind, value string }
	keys := []key{
		{"md5", req.Rom.HashMD5},
		{"sha1", req.Rom.HashSHA1},
	}

	for _, k := range keys {
		if k.value == "" {
			continue
		}
		result, err := c.lookup(ctx, k.kind, k.value)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, ErrNotFound
}

func (c *HasheousClient) lookup(ctx context.Context, kind, hash string) (*Result, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/Lookup/ByHash/%s/%s", c.baseURL, kind, hash)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("could not reach hasheous: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hasheous lookup failed: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload hasheousResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("could not decode hasheous response: %w", err)
	}
	if payload.Name == "" {
		return nil, ErrNotFound
	}

	result := &Result{
		RemoteID:  strconv.FormatInt(payload.ID, 10),
		Publisher: payload.Publisher.Name,
		Raw:       string(raw),
	}
	for _, m := range payload.Metadata {
		if m.Source == "IGDB" {
			if id, err := strconv.ParseInt(m.ID, 10, 64); err == nil {
				result.IgdbID = &id
			}
		}
	}
	return result, nil
}
