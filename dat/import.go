package dat

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/romkeeper/romkeeper/catalog"
)

const entryBatchSize = 500

// Import replaces the stored DAT for (platform, type) with the parsed file.
// The swap is transactional: a failed import leaves the previous DAT in
// place.
func Import(ctx context.Context, db *catalog.Database, file *File, platformSlug string) (*catalog.DatFile, error) {
	if file.EntryCount() == 0 {
		return nil, ErrNoEntries
	}
	det := Detect(file.Header, "")

	db.Lock.Lock()
	defer db.Lock.Unlock()

	row := &catalog.DatFile{
		Name:         file.Header.Name,
		Description:  file.Header.Description,
		Version:      file.Header.Version,
		DatType:      det.DatType,
		PlatformSlug: platformSlug,
		EntryCount:   file.EntryCount(),
		ImportedAt:   time.Now().UTC(),
	}

	err := db.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []catalog.DatFile
		if err := tx.Where("platform_slug = ? AND dat_type = ?", platformSlug, det.DatType).Find(&stale).Error; err != nil {
			return err
		}
		for _, old := range stale {
			if err := tx.Where("dat_file_id = ?", old.ID).Delete(&catalog.DatEntry{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&catalog.DatFile{}, old.ID).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(row).Error; err != nil {
			return err
		}

		entries := make([]catalog.DatEntry, 0, entryBatchSize)
		for _, game := range file.Games {
			for _, rom := range game.Roms {
				entries = append(entries, catalog.DatEntry{
					DatFileID: row.ID,
					GameName:  game.Name,
					RomName:   rom.Name,
					Size:      rom.Size,
					CRC32:     rom.CRC32,
					MD5:       rom.MD5,
					SHA1:      rom.SHA1,
					Status:    rom.Status,
				})
			}
		}
		return tx.CreateInBatches(entries, entryBatchSize).Error
	})
	if err != nil {
		return nil, fmt.Errorf("could not import dat file: %w", err)
	}

	db.Logger.Info().
		Str("name", row.Name).
		Str("platform", platformSlug).
		Str("type", row.DatType).
		Int64("entries", row.EntryCount).
		Msg("imported dat file")
	return row, nil
}
