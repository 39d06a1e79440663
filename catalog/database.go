package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/romkeeper/romkeeper/platform"
)

// Database wraps the gorm handle. The mutex serializes writers so that
// lookup-or-create decisions are atomic per hash even when several syncs
// run concurrently; sqlite WAL keeps readers unblocked meanwhile.
type Database struct {
	Lock   sync.Mutex
	Cli    *gorm.DB
	Logger zerolog.Logger
}

// Migrate creates the schema, the partial hash indexes and the full-text
// index, then seeds the platform reference data.
func (d *Database) Migrate(ctx context.Context) error {
	err := d.Cli.WithContext(ctx).AutoMigrate(
		&Platform{},
		&Source{},
		&Rom{},
		&SourceRom{},
		&DatFile{},
		&DatEntry{},
		&Metadata{},
		&ProviderCache{},
		&LaunchboxGame{},
		&LaunchboxImage{},
	)
	if err != nil {
		return fmt.Errorf("could not migrate schema: %w", err)
	}

	// Partial indexes: hash lookups only ever filter on non-empty values.
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_rom_sha1 ON rom(platform_id, hash_sha1) WHERE hash_sha1 != ''`,
		`CREATE INDEX IF NOT EXISTS idx_rom_md5 ON rom(platform_id, hash_md5) WHERE hash_md5 != ''`,
		`CREATE INDEX IF NOT EXISTS idx_rom_crc32 ON rom(platform_id, hash_crc32) WHERE hash_crc32 != ''`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS rom_fts USING fts5(name, file_name, content=rom, content_rowid=id)`,
		`CREATE TRIGGER IF NOT EXISTS rom_fts_insert AFTER INSERT ON rom BEGIN
			INSERT INTO rom_fts(rowid, name, file_name) VALUES (new.id, new.name, new.file_name);
		END`,
		`CREATE TRIGGER IF NOT EXISTS rom_fts_delete AFTER DELETE ON rom BEGIN
			INSERT INTO rom_fts(rom_fts, rowid, name, file_name) VALUES ('delete', old.id, old.name, old.file_name);
		END`,
		`CREATE TRIGGER IF NOT EXISTS rom_fts_update AFTER UPDATE OF name, file_name ON rom BEGIN
			INSERT INTO rom_fts(rom_fts, rowid, name, file_name) VALUES ('delete', old.id, old.name, old.file_name);
			INSERT INTO rom_fts(rowid, name, file_name) VALUES (new.id, new.name, new.file_name);
		END`,
	}
	for _, stmt := range stmts {
		if err := d.Cli.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("could not create index: %w", err)
		}
	}

	return d.seedPlatforms(ctx)
}

func (d *Database) seedPlatforms(ctx context.Context) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	var count int64
	if err := d.Cli.WithContext(ctx).Model(&Platform{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	d.Logger.Info().Int("platforms", len(platform.Defs)).Msg("seeding platform reference data")
	return d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range platform.Defs {
			row := Platform{
				Slug:          def.Slug,
				Name:          def.Name,
				Extensions:    def.Extensions,
				FolderAliases: def.FolderAliases,
			}
			if def.ScreenscraperID != 0 {
				id := def.ScreenscraperID
				row.ScreenscraperID = &id
			}
			if def.LaunchboxName != "" {
				name := def.LaunchboxName
				row.LaunchboxName = &name
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPlatform returns the platform row for a slug, creating it on first
// sight of a slug the seed table does not know.
func (d *Database) GetPlatform(ctx context.Context, slug string) (*Platform, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	row := &Platform{}
	err := d.Cli.WithContext(ctx).
		Where(Platform{Slug: slug}).
		Attrs(Platform{Name: platform.DisplayName(slug)}).
		FirstOrCreate(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

// PlatformsWithRoms returns every platform that has at least one rom,
// ordered by slug. This is the iteration set for whole-catalog verify and
// enrichment runs.
func (d *Database) PlatformsWithRoms(ctx context.Context) ([]Platform, error) {
	var rows []Platform
	err := d.Cli.WithContext(ctx).
		Where("id IN (SELECT DISTINCT platform_id FROM rom)").
		Order("slug").
		Find(&rows).Error
	return rows, err
}

// PlatformBySlug returns a platform without creating it.
func (d *Database) PlatformBySlug(ctx context.Context, slug string) (*Platform, error) {
	row := &Platform{}
	err := d.Cli.WithContext(ctx).Where(Platform{Slug: slug}).First(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

// GetSource fetches a source by id.
func (d *Database) GetSource(ctx context.Context, id int64) (*Source, error) {
	row := &Source{}
	err := d.Cli.WithContext(ctx).First(row, id).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ListSources returns all configured sources.
func (d *Database) ListSources(ctx context.Context) ([]Source, error) {
	var rows []Source
	err := d.Cli.WithContext(ctx).Order("id").Find(&rows).Error
	return rows, err
}

// AddSource persists a new source configuration.
func (d *Database) AddSource(ctx context.Context, src *Source) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()
	return d.Cli.WithContext(ctx).Create(src).Error
}

// UpdateSource saves changed source fields.
func (d *Database) UpdateSource(ctx context.Context, src *Source) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()
	return d.Cli.WithContext(ctx).Save(src).Error
}

// RemoveSource deletes a source and its SourceRom rows. With purgeOrphans,
// Roms left without any remaining SourceRom are deleted too; otherwise they
// are retained with their metadata for when the source comes back.
func (d *Database) RemoveSource(ctx context.Context, id int64, purgeOrphans bool) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	return d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_id = ?", id).Delete(&SourceRom{}).Error; err != nil {
			return fmt.Errorf("could not delete source roms: %w", err)
		}
		if err := tx.Delete(&Source{}, id).Error; err != nil {
			return fmt.Errorf("could not delete source: %w", err)
		}
		if purgeOrphans {
			return pruneOrphanRoms(tx)
		}
		return nil
	})
}

func pruneOrphanRoms(tx *gorm.DB) error {
	return tx.Exec(
		`DELETE FROM rom WHERE NOT EXISTS (SELECT 1 FROM source_rom WHERE source_rom.rom_id = rom.id)`,
	).Error
}

// TouchSourceSynced records a successful sync time.
func (d *Database) TouchSourceSynced(ctx context.Context, id int64) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()
	now := time.Now().UTC()
	return d.Cli.WithContext(ctx).
		Model(&Source{}).
		Where("id = ?", id).
		Update("last_synced_at", &now).Error
}

// SearchRoms returns roms matching the FTS query (prefix match), optionally
// scoped to a platform. An empty query lists the scope unfiltered.
func (d *Database) SearchRoms(ctx context.Context, platformID *int64, query string) ([]Rom, error) {
	var rows []Rom
	q := d.Cli.WithContext(ctx).Model(&Rom{})
	if platformID != nil {
		q = q.Where("rom.platform_id = ?", *platformID)
	}
	if query != "" {
		q = q.Joins("JOIN rom_fts ON rom_fts.rowid = rom.id").
			Where("rom_fts MATCH ?", ftsQuery(query))
	}
	err := q.Order("rom.name").Find(&rows).Error
	return rows, err
}

// RomsToEnrich returns a platform's roms in id order, optionally narrowed
// by a full-text search and to roms without a metadata row yet.
func (d *Database) RomsToEnrich(ctx context.Context, platformID int64, search string, onlyMissing bool) ([]Rom, error) {
	q := d.Cli.WithContext(ctx).Model(&Rom{}).Where("rom.platform_id = ?", platformID)
	if search != "" {
		q = q.Joins("JOIN rom_fts ON rom_fts.rowid = rom.id").
			Where("rom_fts MATCH ?", ftsQuery(search))
	}
	if onlyMissing {
		q = q.Where("rom.id NOT IN (SELECT rom_id FROM metadata)")
	}
	var rows []Rom
	err := q.Order("rom.id").Find(&rows).Error
	return rows, err
}

func ftsQuery(query string) string {
	sanitized := ""
	for _, c := range query {
		if c != '"' {
			sanitized += string(c)
		}
	}
	return sanitized + "*"
}
