package dat

import (
	"path/filepath"
	"strings"

	"github.com/romkeeper/romkeeper/platform"
)

// Detection is the outcome of platform auto-detection. An empty
// PlatformSlug means the DAT is importable but needs an explicit platform.
type Detection struct {
	PlatformSlug string
	HeaderName   string
	DatType      string
}

// DatType values recognized from header names.
const (
	TypeNoIntro = "no-intro"
	TypeRedump  = "redump"
	TypeOther   = "other"
)

// Detect guesses the platform and DAT family from the header, falling back
// to the file name when the header name is unknown. Detection failure is
// not an error.
func Detect(header Header, fileName string) Detection {
	det := Detection{
		HeaderName: header.Name,
		DatType:    classify(header),
	}

	if slug, ok := platform.ResolveDatName(strings.TrimSpace(header.Name)); ok {
		det.PlatformSlug = slug
		return det
	}

	// "Nintendo - Game Boy (20240101-123456).dat" -> "Nintendo - Game Boy"
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if idx := strings.Index(base, " ("); idx > 0 {
		base = base[:idx]
	}
	if slug, ok := platform.ResolveDatName(strings.TrimSpace(base)); ok {
		det.PlatformSlug = slug
	}
	return det
}

func classify(header Header) string {
	combined := strings.ToLower(header.Homepage + " " + header.Author + " " + header.Description)
	switch {
	case strings.Contains(combined, "no-intro"):
		return TypeNoIntro
	case strings.Contains(combined, "redump"):
		return TypeRedump
	default:
		return TypeOther
	}
}
