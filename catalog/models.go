package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// StringList is a []string stored as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *StringList) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		if v == "" {
			*l = nil
			return nil
		}
		return json.Unmarshal([]byte(v), l)
	case []byte:
		if len(v) == 0 {
			*l = nil
			return nil
		}
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// SourceType discriminates the source adapter kinds.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceRomm  SourceType = "romm"
)

// VerificationStatus values written by the DAT verification engine.
const (
	StatusVerified   = "verified"
	StatusBadDump    = "bad_dump"
	StatusUnverified = "unverified"
)

// Platform is immutable console reference data, seeded at first run.
type Platform struct {
	ID              int64  `gorm:"primaryKey"`
	Slug            string `gorm:"uniqueIndex"`
	Name            string
	Extensions      StringList `gorm:"type:text"`
	FolderAliases   StringList `gorm:"type:text"`
	IgdbID          *int64
	ScreenscraperID *int64
	LaunchboxName   *string
	CreatedAt       time.Time
}

// Source is a configured origin of ROM files.
type Source struct {
	ID           int64 `gorm:"primaryKey"`
	Name         string
	Type         SourceType
	Path         string
	URL          string
	Credentials  string `gorm:"type:text"` // opaque blob, never logged
	Enabled      bool
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s Source) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("id", s.ID)
	e.Str("name", s.Name)
	e.Str("type", string(s.Type))
	e.Bool("enabled", s.Enabled)
	if s.Path != "" {
		e.Str("path", s.Path)
	}
	if s.URL != "" {
		e.Str("url", s.URL)
	}
}

// Rom is the canonical, hash-deduplicated game file identity. Checksum
// fields are authoritative once set and are never reassigned.
type Rom struct {
	ID                 int64 `gorm:"primaryKey"`
	PlatformID         int64 `gorm:"index"`
	Platform           Platform
	Name               string
	FileName           string `gorm:"index:idx_rom_platform_file,composite:platform_id"`
	FileSize           *int64
	HashCRC32          string `gorm:"column:hash_crc32"`
	HashMD5            string `gorm:"column:hash_md5"`
	HashSHA1           string `gorm:"column:hash_sha1"`
	Regions            StringList `gorm:"type:text"`
	Languages          StringList `gorm:"type:text"`
	VerificationStatus string
	DatEntryID         *int64
	DatGameName        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (r Rom) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("id", r.ID)
	e.Str("name", r.Name)
	e.Str("file_name", r.FileName)
	if r.HashSHA1 != "" {
		e.Str("sha1", r.HashSHA1)
	}
}

// HasAnyHash reports whether at least one checksum is known.
func (r *Rom) HasAnyHash() bool {
	return r.HashSHA1 != "" || r.HashMD5 != "" || r.HashCRC32 != ""
}

// SourceRom joins one Source to one Rom, carrying source-local details.
// Unique per (rom, source).
type SourceRom struct {
	ID         int64  `gorm:"primaryKey"`
	RomID      int64  `gorm:"uniqueIndex:idx_source_rom,priority:1;index"`
	SourceID   int64  `gorm:"uniqueIndex:idx_source_rom,priority:2;index"`
	Rom        Rom    `gorm:"constraint:OnDelete:CASCADE"`
	Source     Source `gorm:"constraint:OnDelete:CASCADE"`
	RemoteID   string
	RemoteURL  string
	FileName   string
	Path       string
	HashMD5    string `gorm:"column:hash_md5"`
	SourceMeta string `gorm:"type:text"`
	CreatedAt  time.Time
}

func (sr SourceRom) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("rom_id", sr.RomID)
	e.Int64("source_id", sr.SourceID)
	if sr.Path != "" {
		e.Str("path", sr.Path)
	}
	if sr.RemoteID != "" {
		e.Str("remote_id", sr.RemoteID)
	}
}

// DatFile is one imported reference checksum database.
type DatFile struct {
	ID           int64 `gorm:"primaryKey"`
	Name         string
	Description  string
	Version      string
	DatType      string `gorm:"index:idx_dat_platform_type"`
	PlatformSlug string `gorm:"index:idx_dat_platform_type"`
	EntryCount   int64
	ImportedAt   time.Time
}

// DatEntry is a known-good dump record under a DatFile.
type DatEntry struct {
	ID        int64   `gorm:"primaryKey"`
	DatFileID int64   `gorm:"index"`
	DatFile   DatFile `gorm:"constraint:OnDelete:CASCADE"`
	GameName  string
	RomName   string
	Size      *int64
	CRC32     string `gorm:"column:crc32;index"`
	MD5       string `gorm:"column:md5;index"`
	SHA1      string `gorm:"column:sha1;index"`
	Status    string
}

// Metadata is the normalized one-to-one enrichment record per Rom.
type Metadata struct {
	ID          int64 `gorm:"primaryKey"`
	RomID       int64 `gorm:"uniqueIndex"`
	Rom         Rom   `gorm:"constraint:OnDelete:CASCADE"`
	Description string `gorm:"type:text"`
	Rating      *float64
	ReleaseDate string
	Developer   string
	Publisher   string
	Genres      StringList `gorm:"type:text"`
	Themes      StringList `gorm:"type:text"`
	IgdbID      *int64
	FetchedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProviderCache stores the raw response of one provider for one Rom.
// At most one row per (provider, rom); re-enrichment overwrites.
type ProviderCache struct {
	ID        int64  `gorm:"primaryKey"`
	Provider  string `gorm:"uniqueIndex:idx_provider_rom,priority:1"`
	RomID     int64  `gorm:"uniqueIndex:idx_provider_rom,priority:2;index"`
	Rom       Rom    `gorm:"constraint:OnDelete:CASCADE"`
	RemoteID  string
	IgdbID    *int64
	Raw       string `gorm:"type:text"`
	FetchedAt time.Time
}

// LaunchboxGame is a row of the separately imported offline reference
// dataset, looked up by normalized name + platform.
type LaunchboxGame struct {
	ID            int64  `gorm:"primaryKey"`
	DatabaseID    string `gorm:"index"`
	Platform      string `gorm:"index:idx_lb_platform_name"`
	NameKey       string `gorm:"index:idx_lb_platform_name"`
	Name          string
	Overview      string `gorm:"type:text"`
	Developer     string
	Publisher     string
	Genres        StringList `gorm:"type:text"`
	ReleaseDate   string
	CommunityRating *float64
}

// LaunchboxImage is cover/screenshot artwork from the offline dataset.
type LaunchboxImage struct {
	ID         int64  `gorm:"primaryKey"`
	DatabaseID string `gorm:"index"`
	Type       string
	FileName   string
	Region     string
}
