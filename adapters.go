package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/catalog"
	"github.com/romkeeper/romkeeper/source"
)

// sourceCredentials is the shape of the opaque Credentials blob on a
// source row.
type sourceCredentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

func encodeCredentials(creds sourceCredentials) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeCredentials(raw string) (sourceCredentials, error) {
	creds := sourceCredentials{}
	if raw == "" {
		return creds, nil
	}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return creds, fmt.Errorf("could not decode source credentials: %w", err)
	}
	return creds, nil
}

// buildAdapter turns a stored source row into a live adapter.
func buildAdapter(src *catalog.Source, logger zerolog.Logger) (source.Adapter, error) {
	switch src.Type {
	case catalog.SourceLocal:
		return source.NewLocalAdapter(src.Path, logger), nil
	case catalog.SourceRomm:
		creds, err := decodeCredentials(src.Credentials)
		if err != nil {
			return nil, err
		}
		client, err := source.NewRommClient(src.URL, creds.Username, creds.Password)
		if err != nil {
			return nil, err
		}
		return source.NewRommAdapter(client, src.Name, logger), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", src.Type)
	}
}
