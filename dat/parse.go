// Package dat parses Logiqx-style DAT files and verifies catalog roms
// against their reference checksums.
package dat

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoEntries marks a DAT that parsed fine but defined no rom entries.
var ErrNoEntries = errors.New("dat file contains no rom entries")

// Header is the descriptive block at the top of a DAT file.
type Header struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Version     string `xml:"version"`
	Author      string `xml:"author"`
	Homepage    string `xml:"homepage"`
}

// RomEntry is one known dump under a game element.
type RomEntry struct {
	Name   string `xml:"name,attr"`
	Size   *int64 `xml:"size,attr"`
	CRC32  string `xml:"crc,attr"`
	MD5    string `xml:"md5,attr"`
	SHA1   string `xml:"sha1,attr"`
	Status string `xml:"status,attr"`
}

// Game groups the rom entries of one title.
type Game struct {
	Name        string     `xml:"name,attr"`
	Description string     `xml:"description"`
	Roms        []RomEntry `xml:"rom"`
}

// File is a fully parsed DAT.
type File struct {
	Header Header
	Games  []Game
}

// EntryCount returns the number of rom entries across all games.
func (f *File) EntryCount() int64 {
	var n int64
	for _, g := range f.Games {
		n += int64(len(g.Roms))
	}
	return n
}

// Parse reads a Logiqx XML DAT. The decoder streams game elements one at a
// time so multi-hundred-megabyte DATs do not need a full DOM. MAME-style
// files using <machine> instead of <game> are accepted as well. Checksums
// are normalized to lowercase hex.
func Parse(r io.Reader) (*File, error) {
	decoder := xml.NewDecoder(r)
	file := &File{}

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not parse dat xml: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "header":
			if err := decoder.DecodeElement(&file.Header, &start); err != nil {
				return nil, fmt.Errorf("could not parse dat header: %w", err)
			}
		case "game", "machine":
			var game Game
			if err := decoder.DecodeElement(&game, &start); err != nil {
				return nil, fmt.Errorf("could not parse dat game: %w", err)
			}
			for i := range game.Roms {
				game.Roms[i].CRC32 = normalizeHash(game.Roms[i].CRC32)
				game.Roms[i].MD5 = normalizeHash(game.Roms[i].MD5)
				game.Roms[i].SHA1 = normalizeHash(game.Roms[i].SHA1)
			}
			file.Games = append(file.Games, game)
		}
	}

	if file.EntryCount() == 0 {
		return nil, ErrNoEntries
	}
	return file, nil
}

func normalizeHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
