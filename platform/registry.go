// Package platform holds the seeded reference data for supported consoles:
// canonical slugs, display names, recognized file extensions, folder-name
// aliases and external catalog identifiers.
package platform

import "strings"

// Def describes one supported platform. The slug is the durable key; all
// other fields are display or matching data.
type Def struct {
	Slug            string
	Name            string
	Extensions      []string
	FolderAliases   []string
	DatNames        []string
	LaunchboxName   string
	ScreenscraperID int64
}

// Defs is the seed table, ordered for deterministic seeding.
var Defs = []Def{
	{
		Slug: "gb", Name: "Nintendo Game Boy",
		Extensions:      []string{"gb", "zip", "7z"},
		FolderAliases:   []string{"gb", "gameboy"},
		DatNames:        []string{"Nintendo - Game Boy"},
		LaunchboxName:   "Nintendo Game Boy",
		ScreenscraperID: 9,
	},
	{
		Slug: "gbc", Name: "Nintendo Game Boy Color",
		Extensions:      []string{"gbc", "gb", "zip", "7z"},
		FolderAliases:   []string{"gbc", "gameboycolor"},
		DatNames:        []string{"Nintendo - Game Boy Color"},
		LaunchboxName:   "Nintendo Game Boy Color",
		ScreenscraperID: 10,
	},
	{
		Slug: "gba", Name: "Nintendo Game Boy Advance",
		Extensions:      []string{"gba", "zip", "7z"},
		FolderAliases:   []string{"gba", "gameboyadvance"},
		DatNames:        []string{"Nintendo - Game Boy Advance"},
		LaunchboxName:   "Nintendo Game Boy Advance",
		ScreenscraperID: 12,
	},
	{
		Slug: "nes", Name: "Nintendo Entertainment System",
		Extensions:      []string{"nes", "zip", "7z"},
		FolderAliases:   []string{"nes", "famicom", "fc"},
		DatNames:        []string{"Nintendo - Nintendo Entertainment System"},
		LaunchboxName:   "Nintendo Entertainment System",
		ScreenscraperID: 3,
	},
	{
		Slug: "snes", Name: "Super Nintendo Entertainment System",
		Extensions:      []string{"sfc", "smc", "zip", "7z"},
		FolderAliases:   []string{"snes", "sfc", "superfamicom", "supernintendo"},
		DatNames:        []string{"Nintendo - Super Nintendo Entertainment System"},
		LaunchboxName:   "Super Nintendo Entertainment System",
		ScreenscraperID: 4,
	},
	{
		Slug: "n64", Name: "Nintendo 64",
		Extensions:      []string{"n64", "z64", "v64", "zip", "7z"},
		FolderAliases:   []string{"n64", "nintendo64"},
		DatNames:        []string{"Nintendo - Nintendo 64"},
		LaunchboxName:   "Nintendo 64",
		ScreenscraperID: 14,
	},
	{
		Slug: "nds", Name: "Nintendo DS",
		Extensions:      []string{"nds", "zip", "7z"},
		FolderAliases:   []string{"nds", "ds", "nintendods"},
		DatNames:        []string{"Nintendo - Nintendo DS"},
		LaunchboxName:   "Nintendo DS",
		ScreenscraperID: 15,
	},
	{
		Slug: "fds", Name: "Famicom Disk System",
		Extensions:      []string{"fds", "zip", "7z"},
		FolderAliases:   []string{"fds", "famicomdisksystem"},
		DatNames:        []string{"Nintendo - Famicom Disk System"},
		LaunchboxName:   "Nintendo Famicom Disk System",
		ScreenscraperID: 106,
	},
	{
		Slug: "vb", Name: "Nintendo Virtual Boy",
		Extensions:      []string{"vb", "zip", "7z"},
		FolderAliases:   []string{"vb", "virtualboy"},
		DatNames:        []string{"Nintendo - Virtual Boy"},
		LaunchboxName:   "Nintendo Virtual Boy",
		ScreenscraperID: 11,
	},
	{
		Slug: "gamecube", Name: "Nintendo GameCube",
		Extensions:      []string{"iso", "rvz", "gcm"},
		FolderAliases:   []string{"gamecube", "gc", "ngc"},
		DatNames:        []string{"Nintendo - GameCube"},
		LaunchboxName:   "Nintendo GameCube",
		ScreenscraperID: 13,
	},
	{
		Slug: "wii", Name: "Nintendo Wii",
		Extensions:      []string{"iso", "rvz", "wbfs"},
		FolderAliases:   []string{"wii"},
		DatNames:        []string{"Nintendo - Wii"},
		LaunchboxName:   "Nintendo Wii",
		ScreenscraperID: 16,
	},
	{
		Slug: "genesis", Name: "Sega Genesis / Mega Drive",
		Extensions:      []string{"md", "gen", "smd", "bin", "zip", "7z"},
		FolderAliases:   []string{"genesis", "megadrive", "md"},
		DatNames:        []string{"Sega - Mega Drive - Genesis"},
		LaunchboxName:   "Sega Genesis",
		ScreenscraperID: 1,
	},
	{
		Slug: "mastersystem", Name: "Sega Master System",
		Extensions:      []string{"sms", "zip", "7z"},
		FolderAliases:   []string{"mastersystem", "sms"},
		DatNames:        []string{"Sega - Master System - Mark III"},
		LaunchboxName:   "Sega Master System",
		ScreenscraperID: 2,
	},
	{
		Slug: "gamegear", Name: "Sega Game Gear",
		Extensions:      []string{"gg", "zip", "7z"},
		FolderAliases:   []string{"gamegear", "gg"},
		DatNames:        []string{"Sega - Game Gear"},
		LaunchboxName:   "Sega Game Gear",
		ScreenscraperID: 21,
	},
	{
		Slug: "segacd", Name: "Sega CD",
		Extensions:      []string{"cue", "bin", "chd", "iso"},
		FolderAliases:   []string{"segacd", "megacd"},
		DatNames:        []string{"Sega - Mega-CD - Sega CD"},
		LaunchboxName:   "Sega CD",
		ScreenscraperID: 20,
	},
	{
		Slug: "saturn", Name: "Sega Saturn",
		Extensions:      []string{"cue", "bin", "chd", "iso"},
		FolderAliases:   []string{"saturn"},
		DatNames:        []string{"Sega - Saturn"},
		LaunchboxName:   "Sega Saturn",
		ScreenscraperID: 22,
	},
	{
		Slug: "dreamcast", Name: "Sega Dreamcast",
		Extensions:      []string{"cdi", "gdi", "chd"},
		FolderAliases:   []string{"dreamcast", "dc"},
		DatNames:        []string{"Sega - Dreamcast"},
		LaunchboxName:   "Sega Dreamcast",
		ScreenscraperID: 23,
	},
	{
		Slug: "sg1000", Name: "Sega SG-1000",
		Extensions:      []string{"sg", "zip", "7z"},
		FolderAliases:   []string{"sg1000"},
		DatNames:        []string{"Sega - SG-1000"},
		LaunchboxName:   "Sega SG-1000",
		ScreenscraperID: 109,
	},
	{
		Slug: "psx", Name: "Sony PlayStation",
		Extensions:      []string{"cue", "bin", "chd", "pbp", "iso"},
		FolderAliases:   []string{"psx", "ps1", "playstation"},
		DatNames:        []string{"Sony - PlayStation"},
		LaunchboxName:   "Sony Playstation",
		ScreenscraperID: 57,
	},
	{
		Slug: "ps2", Name: "Sony PlayStation 2",
		Extensions:      []string{"iso", "chd", "cso"},
		FolderAliases:   []string{"ps2", "playstation2"},
		DatNames:        []string{"Sony - PlayStation 2"},
		LaunchboxName:   "Sony Playstation 2",
		ScreenscraperID: 58,
	},
	{
		Slug: "psp", Name: "Sony PlayStation Portable",
		Extensions:      []string{"iso", "cso", "pbp"},
		FolderAliases:   []string{"psp"},
		DatNames:        []string{"Sony - PlayStation Portable"},
		LaunchboxName:   "Sony PSP",
		ScreenscraperID: 61,
	},
	{
		Slug: "pce", Name: "NEC PC Engine / TurboGrafx-16",
		Extensions:      []string{"pce", "zip", "7z"},
		FolderAliases:   []string{"pce", "pcengine", "tg16", "turbografx16"},
		DatNames:        []string{"NEC - PC Engine - TurboGrafx-16"},
		LaunchboxName:   "NEC TurboGrafx-16",
		ScreenscraperID: 31,
	},
	{
		Slug: "pcecd", Name: "NEC PC Engine CD",
		Extensions:      []string{"cue", "chd"},
		FolderAliases:   []string{"pcecd", "tgcd"},
		DatNames:        []string{"NEC - PC Engine CD - TurboGrafx-CD"},
		LaunchboxName:   "NEC TurboGrafx-CD",
		ScreenscraperID: 114,
	},
	{
		Slug: "atari2600", Name: "Atari 2600",
		Extensions:      []string{"a26", "bin", "zip", "7z"},
		FolderAliases:   []string{"atari2600", "2600"},
		DatNames:        []string{"Atari - 2600"},
		LaunchboxName:   "Atari 2600",
		ScreenscraperID: 26,
	},
	{
		Slug: "atari5200", Name: "Atari 5200",
		Extensions:      []string{"a52", "bin", "zip", "7z"},
		FolderAliases:   []string{"atari5200", "5200"},
		DatNames:        []string{"Atari - 5200"},
		LaunchboxName:   "Atari 5200",
		ScreenscraperID: 40,
	},
	{
		Slug: "atari7800", Name: "Atari 7800",
		Extensions:      []string{"a78", "bin", "zip", "7z"},
		FolderAliases:   []string{"atari7800", "7800"},
		DatNames:        []string{"Atari - 7800"},
		LaunchboxName:   "Atari 7800",
		ScreenscraperID: 41,
	},
	{
		Slug: "lynx", Name: "Atari Lynx",
		Extensions:      []string{"lnx", "zip", "7z"},
		FolderAliases:   []string{"lynx", "atarilynx"},
		DatNames:        []string{"Atari - Lynx"},
		LaunchboxName:   "Atari Lynx",
		ScreenscraperID: 28,
	},
	{
		Slug: "ngp", Name: "SNK Neo Geo Pocket",
		Extensions:      []string{"ngp", "zip", "7z"},
		FolderAliases:   []string{"ngp"},
		DatNames:        []string{"SNK - Neo Geo Pocket"},
		LaunchboxName:   "SNK Neo Geo Pocket",
		ScreenscraperID: 25,
	},
	{
		Slug: "ngpc", Name: "SNK Neo Geo Pocket Color",
		Extensions:      []string{"ngc", "ngp", "zip", "7z"},
		FolderAliases:   []string{"ngpc"},
		DatNames:        []string{"SNK - Neo Geo Pocket Color"},
		LaunchboxName:   "SNK Neo Geo Pocket Color",
		ScreenscraperID: 82,
	},
	{
		Slug: "neogeo", Name: "SNK Neo Geo",
		Extensions:      []string{"zip", "7z"},
		FolderAliases:   []string{"neogeo"},
		DatNames:        []string{"SNK - Neo Geo"},
		LaunchboxName:   "SNK Neo Geo AES",
		ScreenscraperID: 142,
	},
	{
		Slug: "ws", Name: "Bandai WonderSwan",
		Extensions:      []string{"ws", "zip", "7z"},
		FolderAliases:   []string{"ws", "wonderswan"},
		DatNames:        []string{"Bandai - WonderSwan"},
		LaunchboxName:   "WonderSwan",
		ScreenscraperID: 45,
	},
	{
		Slug: "wsc", Name: "Bandai WonderSwan Color",
		Extensions:      []string{"wsc", "ws", "zip", "7z"},
		FolderAliases:   []string{"wsc", "wonderswancolor"},
		DatNames:        []string{"Bandai - WonderSwan Color"},
		LaunchboxName:   "WonderSwan Color",
		ScreenscraperID: 46,
	},
	{
		Slug: "colecovision", Name: "ColecoVision",
		Extensions:      []string{"col", "zip", "7z"},
		FolderAliases:   []string{"colecovision", "coleco"},
		DatNames:        []string{"Coleco - ColecoVision"},
		LaunchboxName:   "ColecoVision",
		ScreenscraperID: 48,
	},
	{
		Slug: "intellivision", Name: "Mattel Intellivision",
		Extensions:      []string{"int", "bin", "zip", "7z"},
		FolderAliases:   []string{"intellivision"},
		DatNames:        []string{"Mattel - Intellivision"},
		LaunchboxName:   "Mattel Intellivision",
		ScreenscraperID: 115,
	},
	{
		Slug: "vectrex", Name: "GCE Vectrex",
		Extensions:      []string{"vec", "bin", "zip", "7z"},
		FolderAliases:   []string{"vectrex"},
		DatNames:        []string{"GCE - Vectrex"},
		LaunchboxName:   "GCE Vectrex",
		ScreenscraperID: 102,
	},
	{
		Slug: "pokemini", Name: "Nintendo Pokemon Mini",
		Extensions:      []string{"min", "zip", "7z"},
		FolderAliases:   []string{"pokemini"},
		DatNames:        []string{"Nintendo - Pokemon Mini"},
		LaunchboxName:   "Nintendo Pokemon Mini",
		ScreenscraperID: 211,
	},
}

var (
	bySlug     = map[string]*Def{}
	byFolder   = map[string]string{}
	byDatName  = map[string]string{}
	extensions = map[string]map[string]struct{}{}
)

func init() {
	for i := range Defs {
		d := &Defs[i]
		bySlug[d.Slug] = d
		byFolder[d.Slug] = d.Slug
		for _, alias := range d.FolderAliases {
			if _, ok := byFolder[alias]; !ok {
				byFolder[alias] = d.Slug
			}
		}
		for _, name := range d.DatNames {
			byDatName[name] = d.Slug
		}
		exts := make(map[string]struct{}, len(d.Extensions))
		for _, ext := range d.Extensions {
			exts[ext] = struct{}{}
		}
		extensions[d.Slug] = exts
	}
}

// Lookup returns the definition for a canonical slug.
func Lookup(slug string) (Def, bool) {
	d, ok := bySlug[slug]
	if !ok {
		return Def{}, false
	}
	return *d, true
}

// ResolveFolder maps a (lowercased) folder name to a canonical slug.
// First alias match wins.
func ResolveFolder(folder string) (string, bool) {
	slug, ok := byFolder[folder]
	if ok {
		return slug, true
	}
	normalized := strings.NewReplacer("-", "", "_", "", " ", "").Replace(folder)
	slug, ok = byFolder[normalized]
	return slug, ok
}

// IsKnownFolder reports whether folder resolves to any platform.
func IsKnownFolder(folder string) bool {
	_, ok := ResolveFolder(folder)
	return ok
}

// ResolveDatName maps a No-Intro / Redump DAT header name to a slug.
func ResolveDatName(name string) (string, bool) {
	slug, ok := byDatName[name]
	return slug, ok
}

// RecognizesExtension reports whether ext (without dot, lowercase) is a
// recognized ROM extension for the platform.
func RecognizesExtension(slug, ext string) bool {
	exts, ok := extensions[slug]
	if !ok {
		return false
	}
	_, ok = exts[ext]
	return ok
}

// DisplayName returns the display name for a slug, falling back to the slug
// itself for unknown platforms.
func DisplayName(slug string) string {
	if d, ok := bySlug[slug]; ok {
		return d.Name
	}
	return slug
}
