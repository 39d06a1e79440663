package dat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/romkeeper/romkeeper/catalog"
	"github.com/romkeeper/romkeeper/job"
	"github.com/romkeeper/romkeeper/romfile"
)

// ErrNoDatImported means verification was requested for a platform without
// any imported reference DAT.
var ErrNoDatImported = errors.New("no dat file imported for platform")

// VerifyParams configures one verification run.
type VerifyParams struct {
	Platform *catalog.Platform
	Sink     job.Sink
	Logger   zerolog.Logger
}

// VerifyStats summarizes a verification run.
type VerifyStats struct {
	Total      int64
	Verified   int64
	BadDump    int64
	Unverified int64
	NotChecked int64
	Hashed     int64
}

func (s *VerifyStats) add(o VerifyStats) {
	s.Total += o.Total
	s.Verified += o.Verified
	s.BadDump += o.BadDump
	s.Unverified += o.Unverified
	s.NotChecked += o.NotChecked
	s.Hashed += o.Hashed
}

func (s VerifyStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("total", s.Total)
	e.Int64("verified", s.Verified)
	e.Int64("bad_dump", s.BadDump)
	e.Int64("unverified", s.Unverified)
	e.Int64("not_checked", s.NotChecked)
	e.Int64("hashed", s.Hashed)
}

// Verify classifies every rom of a platform against the imported DATs.
//
// Roms without checksums are hashed first when a local file is reachable;
// roms that stay hashless are left untouched and counted as not checked.
// Each rom commits independently, so the run is resumable and idempotent.
func Verify(ctx context.Context, db *catalog.Database, params VerifyParams) (VerifyStats, error) {
	logger := params.Logger.With().Str("platform", params.Platform.Slug).Logger()
	sink := params.Sink
	if sink == nil {
		sink = job.NopSink()
	}

	stats := VerifyStats{}

	var datFileIDs []int64
	err := db.Cli.WithContext(ctx).
		Model(&catalog.DatFile{}).
		Where("platform_slug = ?", params.Platform.Slug).
		Pluck("id", &datFileIDs).Error
	if err != nil {
		return stats, err
	}
	if len(datFileIDs) == 0 {
		return stats, fmt.Errorf("%w: %s", ErrNoDatImported, params.Platform.Slug)
	}

	var roms []catalog.Rom
	err = db.Cli.WithContext(ctx).
		Where("platform_id = ?", params.Platform.ID).
		Order("id").
		Find(&roms).Error
	if err != nil {
		return stats, err
	}
	stats.Total = int64(len(roms))

	throttledLogger := logger.Sample(&zerolog.BurstSampler{
		Burst:  1,
		Period: 1 * time.Second,
	})

	for i := range roms {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rom := &roms[i]

		sink.Report(job.Progress{
			Scope:   params.Platform.Slug,
			Total:   stats.Total,
			Current: int64(i + 1),
			Item:    rom.Name,
		})
		throttledLogger.Info().Int64("current", int64(i+1)).Int64("total", stats.Total).Msg("verifying roms")

		if !rom.HasAnyHash() {
			merged, hashed, err := hashFromAnySource(ctx, db, rom, logger)
			if err != nil {
				if errors.Is(err, catalog.ErrHashCollision) {
					return stats, err
				}
				logger.Warn().Err(err).Str("rom", rom.FileName).Msg("could not hash rom for verification")
			}
			if hashed {
				stats.Hashed++
			}
			if merged != nil {
				rom = merged
			}
		}
		if !rom.HasAnyHash() {
			stats.NotChecked++
			continue
		}

		status, entry, err := classifyRom(ctx, db, rom, datFileIDs)
		if err != nil {
			return stats, err
		}

		switch status {
		case catalog.StatusVerified:
			stats.Verified++
		case catalog.StatusBadDump:
			stats.BadDump++
		case catalog.StatusUnverified:
			stats.Unverified++
		}

		if err := recordVerification(ctx, db, rom, status, entry); err != nil {
			return stats, err
		}
	}

	logger.Info().Object("stats", stats).Msg("verification finished")
	return stats, nil
}

// VerifyAll runs Verify over every platform that has roms. Platforms
// without an imported DAT are skipped with a warning instead of failing
// the whole run.
func VerifyAll(ctx context.Context, db *catalog.Database, sink job.Sink, logger zerolog.Logger) (VerifyStats, error) {
	total := VerifyStats{}

	platforms, err := db.PlatformsWithRoms(ctx)
	if err != nil {
		return total, err
	}

	for i := range platforms {
		plat := &platforms[i]
		stats, err := Verify(ctx, db, VerifyParams{Platform: plat, Sink: sink, Logger: logger})
		if errors.Is(err, ErrNoDatImported) {
			logger.Warn().Str("platform", plat.Slug).Msg("no dat imported, skipping platform")
			continue
		}
		if err != nil {
			return total, err
		}
		total.add(stats)
	}
	return total, nil
}

// hashFromAnySource computes checksums from the first source link with a
// readable local path. The returned rom is non-nil when hashing caused a
// provisional merge.
func hashFromAnySource(ctx context.Context, db *catalog.Database, rom *catalog.Rom, logger zerolog.Logger) (*catalog.Rom, bool, error) {
	var links []catalog.SourceRom
	err := db.Cli.WithContext(ctx).
		Where("rom_id = ? AND path != ''", rom.ID).
		Find(&links).Error
	if err != nil {
		return nil, false, err
	}

	for _, link := range links {
		hashes, err := romfile.ComputeFileHashes(link.Path)
		if err != nil {
			logger.Debug().Err(err).Str("path", link.Path).Msg("skipping unreadable source path")
			continue
		}
		merged, err := db.AssignHashes(ctx, rom.ID, hashes)
		if err != nil {
			return nil, false, err
		}
		return merged, true, nil
	}
	return nil, false, nil
}

// classifyRom matches the rom's checksums against the DAT entries. A full
// match on all overlapping hashes is verified; a partial match where one
// hash agrees but another disagrees is a bad dump; no match is unverified.
func classifyRom(ctx context.Context, db *catalog.Database, rom *catalog.Rom, datFileIDs []int64) (string, *catalog.DatEntry, error) {
	for _, c := range []struct{ column, value string }{
		{"sha1", rom.HashSHA1},
		{"md5", rom.HashMD5},
		{"crc32", rom.HashCRC32},
	} {
		if c.value == "" {
			continue
		}
		var entry catalog.DatEntry
		err := db.Cli.WithContext(ctx).
			Where("dat_file_id IN ? AND "+c.column+" = ?", datFileIDs, c.value).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return "", nil, err
		}

		if entry.Status == "baddump" || entryConflicts(rom, &entry) {
			return catalog.StatusBadDump, &entry, nil
		}
		return catalog.StatusVerified, &entry, nil
	}
	return catalog.StatusUnverified, nil, nil
}

// entryConflicts reports disagreement on any hash both sides define. Sizes
// are not compared: an archived rom's on-disk size differs from the payload
// size the DAT records.
func entryConflicts(rom *catalog.Rom, entry *catalog.DatEntry) bool {
	if rom.HashSHA1 != "" && entry.SHA1 != "" && rom.HashSHA1 != entry.SHA1 {
		return true
	}
	if rom.HashMD5 != "" && entry.MD5 != "" && rom.HashMD5 != entry.MD5 {
		return true
	}
	if rom.HashCRC32 != "" && entry.CRC32 != "" && rom.HashCRC32 != entry.CRC32 {
		return true
	}
	return false
}

func recordVerification(ctx context.Context, db *catalog.Database, rom *catalog.Rom, status string, entry *catalog.DatEntry) error {
	db.Lock.Lock()
	defer db.Lock.Unlock()

	updates := map[string]any{
		"verification_status": status,
		"dat_entry_id":        nil,
		"dat_game_name":       "",
	}
	if entry != nil {
		updates["dat_entry_id"] = entry.ID
		updates["dat_game_name"] = entry.GameName
	}
	return db.Cli.WithContext(ctx).
		Model(&catalog.Rom{}).
		Where("id = ?", rom.ID).
		Updates(updates).Error
}
