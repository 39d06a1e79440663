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
	"time"
)

const screenscraperBaseURL = "https://api.screenscraper.fr/api2"

// ScreenscraperClient queries the ScreenScraper API. The service enforces
// strict per-user quotas, so requests are spaced at least a second apart.
type ScreenscraperClient struct {
	baseURL    string
	devID      string
	devPass    string
	user       string
	userPass   string
	httpClient *http.Client
	limiter    *limiter
}

// ScreenscraperOption configures a ScreenscraperClient.
type ScreenscraperOption func(*ScreenscraperClient)

// WithScreenscraperBaseURL overrides the API endpoint.
func WithScreenscraperBaseURL(baseURL string) ScreenscraperOption {
	return func(c *ScreenscraperClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithScreenscraperHTTPClient overrides the default HTTP client.
func WithScreenscraperHTTPClient(client *http.Client) ScreenscraperOption {
	return func(c *ScreenscraperClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewScreenscraperClient(devID, devPass, user, userPass string, opts ...ScreenscraperOption) *ScreenscraperClient {
	client := &ScreenscraperClient{
		baseURL:    screenscraperBaseURL,
		devID:      devID,
		devPass:    devPass,
		user:       user,
		userPass:   userPass,
		httpClient: &http.Client{Timeout: 45 * time.Second},
		limiter:    newLimiter(1 * time.Second),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ Provider = (*ScreenscraperClient)(nil)

func (c *ScreenscraperClient) Name() string { return "screenscraper" }

type ssText struct {
	Region string `json:"region"`
	Langue string `json:"langue"`
	Text   string `json:"text"`
}

type ssResponse struct {
	Response struct {
		Jeu struct {
			ID    string   `json:"id"`
			Noms  []ssText `json:"noms"`
			Synopsis []ssText `json:"synopsis"`
			Editeur struct {
				Text string `json:"text"`
			} `json:"editeur"`
			Developpeur struct {
				Text string `json:"text"`
			} `json:"developpeur"`
			Dates  []ssText `json:"dates"`
			Genres []struct {
				Noms []ssText `json:"noms"`
			} `json:"genres"`
			Note struct {
				Text string `json:"text"`
			} `json:"note"`
		} `json:"jeu"`
	} `json:"response"`
}

// Fetch looks the rom up by checksum via jeuInfos. A platform id mapping is
// required; platforms the service does not know are reported as not found.
func (c *ScreenscraperClient) Fetch(ctx context.Context, req Request) (*Result, error) {
	if c.devID == "" || c.devPass == "" {
		return nil, ErrNoCredentials
	}
	if req.Platform.ScreenscraperID == nil {
		return nil, ErrNotFound
	}
	if req.Rom.HashMD5 == "" && req.Rom.HashSHA1 == "" && req.Rom.HashCRC32 == "" {
		return nil, ErrNotFound
	}

	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"devid":       {c.devID},
		"devpassword": {c.devPass},
		"softname":    {"romkeeper"},
		"output":      {"json"},
		"systemeid":   {strconv.FormatInt(*req.Platform.ScreenscraperID, 10)},
		"romtype":     {"rom"},
		"romnom":      {req.Rom.FileName},
	}
	if c.user != "" {
		params.Set("ssid", c.user)
		params.Set("sspassword", c.userPass)
	}
	if req.Rom.HashMD5 != "" {
		params.Set("md5", req.Rom.HashMD5)
	}
	if req.Rom.HashSHA1 != "" {
		params.Set("sha1", req.Rom.HashSHA1)
	}
	if req.Rom.HashCRC32 != "" {
		params.Set("crc", req.Rom.HashCRC32)
	}
	if req.Rom.FileSize != nil {
		params.Set("romtaille", strconv.FormatInt(*req.Rom.FileSize, 10))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jeuInfos.php?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("could not reach screenscraper: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screenscraper lookup failed: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// The API answers plain-text errors with status 200.
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		return nil, ErrNotFound
	}

	var payload ssResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("could not decode screenscraper response: %w", err)
	}
	jeu := payload.Response.Jeu
	if jeu.ID == "" || jeu.ID == "0" {
		return nil, ErrNotFound
	}

	result := &Result{
		RemoteID:    jeu.ID,
		Description: pickText(jeu.Synopsis, "en"),
		Developer:   jeu.Developpeur.Text,
		Publisher:   jeu.Editeur.Text,
		ReleaseDate: pickText(jeu.Dates, "wor"),
		Raw:         string(raw),
	}
	if jeu.Note.Text != "" {
		if note, err := strconv.ParseFloat(jeu.Note.Text, 64); err == nil && note > 0 {
			rating := note / 2 // 0-20 -> 0-10
			result.Rating = &rating
		}
	}
	for _, g := range jeu.Genres {
		if name := pickText(g.Noms, "en"); name != "" {
			result.Genres = append(result.Genres, name)
		}
	}
	return result, nil
}

// pickText prefers the given region/language, falling back to the first
// entry.
func pickText(texts []ssText, preferred string) string {
	for _, t := range texts {
		if t.Region == preferred || t.Langue == preferred {
			return t.Text
		}
	}
	if len(texts) > 0 {
		return texts[0].Text
	}
	return ""
}
