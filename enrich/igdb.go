package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	igdbBaseURL   = "https://api.igdb.com/v4"
	twitchAuthURL = "https://id.twitch.tv/oauth2/token"
)

// IgdbClient queries the IGDB API. Access tokens come from the Twitch
// client-credentials flow and are refreshed before expiry.
type IgdbClient struct {
	baseURL      string
	authURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	limiter      *limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// IgdbOption configures an IgdbClient.
type IgdbOption func(*IgdbClient)

// WithIgdbBaseURL overrides the API endpoint.
func WithIgdbBaseURL(baseURL string) IgdbOption {
	return func(c *IgdbClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithIgdbAuthURL overrides the token endpoint.
func WithIgdbAuthURL(authURL string) IgdbOption {
	return func(c *IgdbClient) {
		if authURL != "" {
			c.authURL = authURL
		}
	}
}

// WithIgdbHTTPClient overrides the default HTTP client.
func WithIgdbHTTPClient(client *http.Client) IgdbOption {
	return func(c *IgdbClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewIgdbClient(clientID, clientSecret string, opts ...IgdbOption) *IgdbClient {
	client := &IgdbClient{
		baseURL:      igdbBaseURL,
		authURL:      twitchAuthURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      newLimiter(300 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ Provider = (*IgdbClient)(nil)

func (c *IgdbClient) Name() string { return "igdb" }

type igdbGame struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Summary          string  `json:"summary"`
	TotalRating      float64 `json:"total_rating"`
	FirstReleaseDate int64   `json:"first_release_date"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Themes []struct {
		Name string `json:"name"`
	} `json:"themes"`
	InvolvedCompanies []struct {
		Developer bool `json:"developer"`
		Publisher bool `json:"publisher"`
		Company   struct {
			Name string `json:"name"`
		} `json:"company"`
	} `json:"involved_companies"`
}

const igdbGameFields = "fields name, summary, total_rating, first_release_date, " +
	"genres.name, themes.name, involved_companies.developer, involved_companies.publisher, " +
	"involved_companies.company.name;"

// Fetch resolves by the IGDB id hint when hasheous provided one, falling
// back to a name search constrained to the first match.
func (c *IgdbClient) Fetch(ctx context.Context, req Request) (*Result, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, ErrNoCredentials
	}

	var query string
	if req.IgdbID != nil {
		query = fmt.Sprintf("%s where id = %d;", igdbGameFields, *req.IgdbID)
	} else {
		name := strings.ReplaceAll(searchName(req.Rom.Name), `"`, "")
		query = fmt.Sprintf(`search "%s"; %s limit 1;`, name, igdbGameFields)
	}

	raw, err := c.post(ctx, "/games", query)
	if err != nil {
		return nil, err
	}

	var games []igdbGame
	if err := json.Unmarshal(raw, &games); err != nil {
		return nil, fmt.Errorf("could not decode igdb response: %w", err)
	}
	if len(games) == 0 {
		return nil, ErrNotFound
	}
	return igdbResult(games[0], raw), nil
}

func igdbResult(game igdbGame, raw []byte) *Result {
	result := &Result{
		RemoteID:    strconv.FormatInt(game.ID, 10),
		IgdbID:      &game.ID,
		Description: game.Summary,
		Raw:         string(raw),
	}
	if game.TotalRating > 0 {
		rating := game.TotalRating / 10 // 0-100 -> 0-10
		result.Rating = &rating
	}
	if game.FirstReleaseDate > 0 {
		result.ReleaseDate = time.Unix(game.FirstReleaseDate, 0).UTC().Format("2006-01-02")
	}
	for _, g := range game.Genres {
		result.Genres = append(result.Genres, g.Name)
	}
	for _, t := range game.Themes {
		result.Themes = append(result.Themes, t.Name)
	}
	for _, ic := range game.InvolvedCompanies {
		if ic.Developer && result.Developer == "" {
			result.Developer = ic.Company.Name
		}
		if ic.Publisher && result.Publisher == "" {
			result.Publisher = ic.Company.Name
		}
	}
	return result
}

func (c *IgdbClient) post(ctx context.Context, path, body string) ([]byte, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach igdb: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("igdb query failed: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *IgdbClient) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not reach twitch auth: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twitch auth failed: status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("could not decode twitch token: %w", err)
	}

	c.token = tokenResp.AccessToken
	// Refresh a minute early.
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return c.token, nil
}
