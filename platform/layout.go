package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// Layout is a detected ROM folder convention.
type Layout string

const (
	// LayoutEsDe is lowercase slug folders at the root: ES-DE, RetroPie,
	// ArkOS, EmuDeck.
	LayoutEsDe Layout = "es-de"
	// LayoutBatocera keeps slug folders under a roms/ (or EASYROMS/)
	// subdirectory: Batocera, KNULLI.
	LayoutBatocera Layout = "batocera"
	// LayoutMuOs has sibling ROMS/ and MUOS/ directories.
	LayoutMuOs Layout = "muos"
	// LayoutMinUi uses "Name (TAG)" folders.
	LayoutMinUi Layout = "minui"
	// LayoutOnionOs uses ALL_CAPS folder names.
	LayoutOnionOs Layout = "onionos"
	// LayoutUnknown falls back to treating folder names as slugs.
	LayoutUnknown Layout = "unknown"
)

// DetectLayout inspects the immediate children of root and guesses the
// folder convention in use.
func DetectLayout(root string) Layout {
	entries := listDirs(root)
	if len(entries) == 0 {
		return LayoutUnknown
	}

	has := func(name string) bool {
		for _, e := range entries {
			if e == name {
				return true
			}
		}
		return false
	}

	if has("ROMS") && has("MUOS") {
		return LayoutMuOs
	}

	var batoceraSub string
	if has("roms") {
		batoceraSub = filepath.Join(root, "roms")
	} else if has("EASYROMS") {
		batoceraSub = filepath.Join(root, "EASYROMS")
	}
	if batoceraSub != "" {
		known := 0
		for _, sub := range listDirs(batoceraSub) {
			if IsKnownFolder(strings.ToLower(sub)) {
				known++
			}
		}
		if known >= 2 {
			return LayoutBatocera
		}
	}

	minui := 0
	for _, e := range entries {
		if tag, ok := minUiTag(e); ok && tag != "" {
			minui++
		}
	}
	if minui >= 3 {
		return LayoutMinUi
	}

	upper := 0
	for _, e := range entries {
		if e != "" && isAllCaps(e) {
			upper++
		}
	}
	if upper > len(entries)/2 && upper >= 3 {
		return LayoutOnionOs
	}

	known := 0
	for _, e := range entries {
		if IsKnownFolder(e) {
			known++
		}
	}
	if known >= 3 {
		return LayoutEsDe
	}

	return LayoutUnknown
}

// RomsRoot returns the directory that actually contains the per-platform
// folders for the detected layout.
func RomsRoot(root string, layout Layout) string {
	switch layout {
	case LayoutBatocera:
		roms := filepath.Join(root, "roms")
		if _, err := os.Stat(roms); err == nil {
			return roms
		}
		return filepath.Join(root, "EASYROMS")
	case LayoutMuOs:
		return filepath.Join(root, "ROMS")
	default:
		return root
	}
}

// ResolveLayoutFolder maps a platform folder name to a canonical slug under
// the given layout. Unmatched folders return ok=false and are skipped by
// the scanner.
func ResolveLayoutFolder(folder string, layout Layout) (string, bool) {
	if layout == LayoutMinUi {
		tag, ok := minUiTag(folder)
		if !ok {
			return "", false
		}
		return ResolveFolder(strings.ToLower(tag))
	}
	return ResolveFolder(strings.ToLower(folder))
}

// minUiTag extracts "GBA" from "Game Boy Advance (GBA)".
func minUiTag(folder string) (string, bool) {
	open := strings.LastIndex(folder, "(")
	if open <= 0 || !strings.HasSuffix(folder, ")") {
		return "", false
	}
	return folder[open+1 : len(folder)-1], true
}

func isAllCaps(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

func listDirs(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}
