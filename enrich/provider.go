// Package enrich fetches game metadata from external providers and merges
// it into the catalog. Providers are independent; the orchestrator walks
// them in a configurable precedence order and fills each metadata field
// from the first provider that knows it.
package enrich

import (
	"context"
	"errors"

	"github.com/romkeeper/romkeeper/catalog"
)

// ErrNoCredentials marks a provider that is wired but not configured. The
// orchestrator skips such providers for the run instead of failing it.
var ErrNoCredentials = errors.New("provider credentials not configured")

// ErrNotFound means the provider answered but knows nothing about the rom.
var ErrNotFound = errors.New("rom not found at provider")

// Request identifies the rom to enrich.
type Request struct {
	Rom      *catalog.Rom
	Platform *catalog.Platform

	// IgdbID carries a cross-provider hint discovered earlier in the same
	// run (hasheous resolves hashes to IGDB ids).
	IgdbID *int64
}

// Result is one provider's answer, already normalized. Raw holds the
// provider response verbatim for the cache table. Empty fields mean the
// provider does not know, not that the value is empty.
type Result struct {
	RemoteID    string
	IgdbID      *int64
	Description string
	Rating      *float64
	ReleaseDate string
	Developer   string
	Publisher   string
	Genres      []string
	Themes      []string
	Raw         string
}

// Provider is one metadata backend.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Result, error)
}
