package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/romkeeper/romkeeper/romfile"
	"github.com/romkeeper/romkeeper/source"
)

// ErrHashCollision marks an ambiguous merge target: two checksum sets agree
// on one hash but disagree on another. Never resolved by guessing.
var ErrHashCollision = errors.New("hash collision: ambiguous merge target")

// ReconcileObserved merges one observed record into the canonical model.
//
// With a hash available an existing Rom is looked up by SHA1, then MD5,
// then CRC32; a hit only upserts the SourceRom link and never touches the
// Rom's canonical name or checksums. Without a hash the Rom is located or
// created provisionally by (platform, file name) and merged later once
// hashing succeeds (AssignHashes).
//
// The lookup-or-create step runs under the catalog mutex so two sources
// discovering the same hash concurrently cannot produce duplicate Roms.
func (d *Database) ReconcileObserved(
	ctx context.Context,
	platformID int64,
	src *Source,
	obs source.ObservedRom,
	hashes *romfile.Hashes,
) (*Rom, error) {
	eff := effectiveHashes(obs, hashes)

	d.Lock.Lock()
	defer d.Lock.Unlock()

	rom, err := d.resolveRom(ctx, platformID, obs, eff)
	if err != nil {
		return nil, err
	}

	if err := d.upsertSourceRom(ctx, rom.ID, src.ID, obs); err != nil {
		return nil, fmt.Errorf("could not upsert source rom: %w", err)
	}
	return rom, nil
}

func effectiveHashes(obs source.ObservedRom, hashes *romfile.Hashes) romfile.Hashes {
	if hashes != nil {
		return *hashes
	}
	// Remote catalogs may report a checksum even when no local file exists.
	return romfile.Hashes{MD5: obs.HashMD5}
}

func (e *romQuery) empty() bool {
	return e.sha1 == "" && e.md5 == "" && e.crc32 == ""
}

type romQuery struct {
	sha1, md5, crc32 string
}

func (d *Database) resolveRom(ctx context.Context, platformID int64, obs source.ObservedRom, eff romfile.Hashes) (*Rom, error) {
	q := romQuery{sha1: eff.SHA1, md5: eff.MD5, crc32: eff.CRC32}

	if !q.empty() {
		rom, err := d.findRomByHash(ctx, platformID, q)
		if err != nil {
			return nil, err
		}
		if rom != nil {
			if conflictingHashes(rom, eff) {
				return nil, fmt.Errorf("%w: rom %d (%s) vs observed %s", ErrHashCollision, rom.ID, rom.FileName, obs.FileName)
			}
			if err := d.fillMissingHashes(ctx, rom, eff); err != nil {
				return nil, err
			}
			return rom, nil
		}
	}

	// Fall back to provisional identity by (platform, file name).
	rom := &Rom{}
	err := d.Cli.WithContext(ctx).
		Where(Rom{PlatformID: platformID, FileName: obs.FileName}).
		First(rom).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return d.createRom(ctx, platformID, obs, eff)
	case err != nil:
		return nil, err
	}

	if rom.HasAnyHash() && !q.empty() && conflictingHashes(rom, eff) {
		// Same file name, different content: a distinct dump.
		return d.createRom(ctx, platformID, obs, eff)
	}

	if err := d.fillMissingHashes(ctx, rom, eff); err != nil {
		return nil, err
	}
	return rom, nil
}

// findRomByHash looks up by SHA1, falling back to MD5, then CRC32. CRC32
// alone is not trusted for merge decisions on new data but is accepted as a
// last resort for legacy rows that carry nothing else.
func (d *Database) findRomByHash(ctx context.Context, platformID int64, q romQuery) (*Rom, error) {
	type candidate struct {
		column string
		value  string
	}
	candidates := []candidate{
		{"hash_sha1", q.sha1},
		{"hash_md5", q.md5},
		{"hash_crc32", q.crc32},
	}
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		rom := &Rom{}
		err := d.Cli.WithContext(ctx).
			Where("platform_id = ? AND "+c.column+" = ?", platformID, c.value).
			First(rom).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return rom, nil
	}
	return nil, nil
}

// conflictingHashes reports whether rom and the observed checksums disagree
// on any field both sides define. Disagreement is never resolved by
// guessing, even when a stronger hash agrees: identical content cannot
// produce two MD5s, so a mixed answer means one side's record is corrupt
// and the merge target is ambiguous.
func conflictingHashes(rom *Rom, eff romfile.Hashes) bool {
	if rom.HashSHA1 != "" && eff.SHA1 != "" && rom.HashSHA1 != eff.SHA1 {
		return true
	}
	if rom.HashMD5 != "" && eff.MD5 != "" && rom.HashMD5 != eff.MD5 {
		return true
	}
	if rom.HashCRC32 != "" && eff.CRC32 != "" && rom.HashCRC32 != eff.CRC32 {
		return true
	}
	return false
}

// fillMissingHashes sets checksum fields that are still empty. Set fields
// are authoritative identity and never reassigned.
func (d *Database) fillMissingHashes(ctx context.Context, rom *Rom, eff romfile.Hashes) error {
	updates := map[string]any{}
	if rom.HashSHA1 == "" && eff.SHA1 != "" {
		updates["hash_sha1"] = eff.SHA1
		rom.HashSHA1 = eff.SHA1
	}
	if rom.HashMD5 == "" && eff.MD5 != "" {
		updates["hash_md5"] = eff.MD5
		rom.HashMD5 = eff.MD5
	}
	if rom.HashCRC32 == "" && eff.CRC32 != "" {
		updates["hash_crc32"] = eff.CRC32
		rom.HashCRC32 = eff.CRC32
	}
	if len(updates) == 0 {
		return nil
	}
	return d.Cli.WithContext(ctx).Model(&Rom{}).Where("id = ?", rom.ID).Updates(updates).Error
}

func (d *Database) createRom(ctx context.Context, platformID int64, obs source.ObservedRom, eff romfile.Hashes) (*Rom, error) {
	rom := &Rom{
		PlatformID: platformID,
		Name:       obs.Name,
		FileName:   obs.FileName,
		FileSize:   obs.Size,
		HashSHA1:   eff.SHA1,
		HashMD5:    eff.MD5,
		HashCRC32:  eff.CRC32,
		Regions:    StringList(obs.Regions),
	}
	if err := d.Cli.WithContext(ctx).Create(rom).Error; err != nil {
		return nil, fmt.Errorf("could not create rom: %w", err)
	}
	d.Logger.Debug().Object("rom", *rom).Msg("created rom")
	return rom, nil
}

func (d *Database) upsertSourceRom(ctx context.Context, romID, sourceID int64, obs source.ObservedRom) error {
	row := SourceRom{
		RomID:      romID,
		SourceID:   sourceID,
		RemoteID:   obs.RemoteID,
		RemoteURL:  obs.RemoteURL,
		FileName:   obs.FileName,
		Path:       obs.Path,
		HashMD5:    obs.HashMD5,
		SourceMeta: obs.Meta,
	}
	return d.Cli.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "rom_id"}, {Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"remote_id", "remote_url", "file_name", "path", "hash_md5", "source_meta",
			}),
		}).
		Create(&row).Error
}

// AssignHashes records freshly computed checksums for a Rom. If another Rom
// on the same platform already owns the identity, the provisional Rom is
// merged into it (links and enrichment move over, the provisional row is
// deleted) and the surviving Rom is returned.
func (d *Database) AssignHashes(ctx context.Context, romID int64, h romfile.Hashes) (*Rom, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	rom := &Rom{}
	if err := d.Cli.WithContext(ctx).First(rom, romID).Error; err != nil {
		return nil, err
	}

	if conflictingHashes(rom, h) {
		return nil, fmt.Errorf("%w: rom %d (%s)", ErrHashCollision, rom.ID, rom.FileName)
	}

	owner, err := d.findRomByHashExcluding(ctx, rom.PlatformID, romQuery{sha1: h.SHA1, md5: h.MD5, crc32: h.CRC32}, rom.ID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		if err := d.fillMissingHashes(ctx, rom, h); err != nil {
			return nil, err
		}
		return rom, nil
	}

	if conflictingHashes(owner, h) {
		return nil, fmt.Errorf("%w: roms %d and %d", ErrHashCollision, rom.ID, owner.ID)
	}

	if err := d.mergeRom(ctx, rom.ID, owner.ID); err != nil {
		return nil, err
	}
	if err := d.fillMissingHashes(ctx, owner, h); err != nil {
		return nil, err
	}
	d.Logger.Info().Int64("from", rom.ID).Int64("into", owner.ID).Msg("merged provisional rom")
	return owner, nil
}

func (d *Database) findRomByHashExcluding(ctx context.Context, platformID int64, q romQuery, excludeID int64) (*Rom, error) {
	for _, c := range []struct{ column, value string }{
		{"hash_sha1", q.sha1},
		{"hash_md5", q.md5},
		{"hash_crc32", q.crc32},
	} {
		if c.value == "" {
			continue
		}
		rom := &Rom{}
		err := d.Cli.WithContext(ctx).
			Where("platform_id = ? AND "+c.column+" = ? AND id != ?", platformID, c.value, excludeID).
			First(rom).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return rom, nil
	}
	return nil, nil
}

// mergeRom moves everything hanging off fromID to intoID, then deletes the
// duplicate. Links the target already holds win on conflict.
func (d *Database) mergeRom(ctx context.Context, fromID, intoID int64) error {
	return d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`UPDATE OR IGNORE source_rom SET rom_id = ? WHERE rom_id = ?`, intoID, fromID).Error; err != nil {
			return err
		}
		if err := tx.Exec(`UPDATE OR IGNORE metadata SET rom_id = ? WHERE rom_id = ?`, intoID, fromID).Error; err != nil {
			return err
		}
		if err := tx.Exec(`UPDATE OR IGNORE provider_cache SET rom_id = ? WHERE rom_id = ?`, intoID, fromID).Error; err != nil {
			return err
		}
		// Rows that survived the OR IGNORE moves belong to duplicates the
		// target already had.
		if err := tx.Where("rom_id = ?", fromID).Delete(&SourceRom{}).Error; err != nil {
			return err
		}
		if err := tx.Where("rom_id = ?", fromID).Delete(&Metadata{}).Error; err != nil {
			return err
		}
		if err := tx.Where("rom_id = ?", fromID).Delete(&ProviderCache{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Rom{}, fromID).Error
	})
}

const pruneBatchSize = 200

// PruneVanished deletes this source's SourceRom rows that were not part of
// the current listing. Roms left without links are retained (documented
// orphan policy); use RemoveSource with purge to drop them.
func (d *Database) PruneVanished(ctx context.Context, sourceID int64, seenIDs []int64) (int64, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	var existing []int64
	err := d.Cli.WithContext(ctx).
		Model(&SourceRom{}).
		Where("source_id = ?", sourceID).
		Pluck("id", &existing).Error
	if err != nil {
		return 0, err
	}

	seen := make(map[int64]struct{}, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = struct{}{}
	}

	var vanished []int64
	for _, id := range existing {
		if _, ok := seen[id]; !ok {
			vanished = append(vanished, id)
		}
	}
	if len(vanished) == 0 {
		return 0, nil
	}

	var removed int64
	for start := 0; start < len(vanished); start += pruneBatchSize {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		end := min(start+pruneBatchSize, len(vanished))
		res := d.Cli.WithContext(ctx).
			Where("source_id = ? AND id IN ?", sourceID, vanished[start:end]).
			Delete(&SourceRom{})
		if res.Error != nil {
			return removed, res.Error
		}
		removed += res.RowsAffected
	}

	d.Logger.Info().Int64("source", sourceID).Int64("removed", removed).Msg("pruned vanished source roms")
	return removed, nil
}
