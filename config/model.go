package config

import "github.com/rs/zerolog"

// Config is the daemon configuration file. CLI-managed sources live in the
// catalog database; entries here are declarative extras reconciled into it
// at daemon start.
type Config struct {
	Sources    []ConfigSource `json:"sources,omitempty"`
	Providers  Providers      `json:"providers,omitempty"`
	Precedence []string       `json:"provider_precedence,omitempty"`

	// MaxHashSize limits inline hashing during scheduled syncs.
	MaxHashSize SizeArgument `json:"max_hash_size,omitempty"`
}

type ConfigSource struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Enable   bool   `json:"enable"`
	Schedule string `json:"cron"`
}

func (s ConfigSource) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", s.Name)
	e.Str("type", s.Type)
	e.Bool("enable", s.Enable)
	e.Str("schedule", s.Schedule)

	if s.Path != "" {
		e.Str("path", s.Path)
	}
	if s.URL != "" {
		e.Str("url", s.URL)
	}
}

// Providers holds external API credentials. Never logged.
type Providers struct {
	Igdb          IgdbCredentials          `json:"igdb,omitempty"`
	Screenscraper ScreenscraperCredentials `json:"screenscraper,omitempty"`
}

type IgdbCredentials struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type ScreenscraperCredentials struct {
	DevID        string `json:"dev_id,omitempty"`
	DevPassword  string `json:"dev_password,omitempty"`
	User         string `json:"user,omitempty"`
	UserPassword string `json:"user_password,omitempty"`
}
