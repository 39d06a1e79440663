package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/job"
	"github.com/romkeeper/romkeeper/romfile"
	"github.com/romkeeper/romkeeper/source"
)

// SyncParams configures one sync run.
type SyncParams struct {
	Source  *Source
	Adapter source.Adapter
	Sink    job.Sink
	Logger  zerolog.Logger

	// MaxHashSize skips inline hashing for local files above this many
	// bytes; 0 hashes everything. Skipped files keep a provisional
	// identity until verification hashes them.
	MaxHashSize int64

	// OnItemError is called once per skipped item, if set.
	OnItemError func(item string, err error)
}

// SyncStats summarizes what a sync run changed.
type SyncStats struct {
	Seen       int64
	Hashed     int64
	Pruned     int64
	ItemErrors int64
}

func (s SyncStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("seen", s.Seen)
	e.Int64("hashed", s.Hashed)
	e.Int64("pruned", s.Pruned)
	e.Int64("item_errors", s.ItemErrors)
}

// SyncSource reconciles everything the adapter lists into the catalog.
// Each record commits independently, so an interrupted run keeps its
// partial progress. Vanished links are pruned only after the listing
// completed without cancellation or truncation: a listing cut short by an
// adapter failure aborts the run with its error, keeping the committed
// records but never pruning links for files the run did not reach.
// ErrHashCollision aborts the run.
func (d *Database) SyncSource(ctx context.Context, params SyncParams) (SyncStats, error) {
	logger := params.Logger.With().Str("source", params.Adapter.Name()).Logger()
	sink := params.Sink
	if sink == nil {
		sink = job.NopSink()
	}

	stats := SyncStats{}
	start := time.Now()

	listing, err := params.Adapter.List(ctx, sink)
	if err != nil {
		return stats, fmt.Errorf("could not list source: %w", err)
	}

	platformIDs := map[string]int64{}
	var seenLinks []int64

	for obs, listErr := range listing {
		if listErr != nil {
			return stats, fmt.Errorf("source listing failed: %w", listErr)
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Seen++

		platformID, ok := platformIDs[obs.PlatformSlug]
		if !ok {
			row, err := d.GetPlatform(ctx, obs.PlatformSlug)
			if err != nil {
				return stats, fmt.Errorf("could not resolve platform %s: %w", obs.PlatformSlug, err)
			}
			platformID = row.ID
			platformIDs[obs.PlatformSlug] = platformID
		}

		hashes := d.hashObserved(ctx, obs, params, &stats, logger)

		rom, err := d.ReconcileObserved(ctx, platformID, params.Source, obs, hashes)
		if err != nil {
			if errors.Is(err, ErrHashCollision) || ctx.Err() != nil {
				return stats, err
			}
			stats.ItemErrors++
			logger.Error().Err(err).Object("observed", obs).Msg("could not reconcile rom")
			if params.OnItemError != nil {
				params.OnItemError(obs.FileName, err)
			}
			continue
		}

		var link SourceRom
		err = d.Cli.WithContext(ctx).
			Where("rom_id = ? AND source_id = ?", rom.ID, params.Source.ID).
			First(&link).Error
		if err != nil {
			return stats, fmt.Errorf("could not load source rom link: %w", err)
		}
		seenLinks = append(seenLinks, link.ID)
	}

	if err := ctx.Err(); err != nil {
		// Cancelled mid-listing: pruning now would delete links for files
		// that were never reached.
		return stats, err
	}

	pruned, err := d.PruneVanished(ctx, params.Source.ID, seenLinks)
	stats.Pruned = pruned
	if err != nil {
		return stats, fmt.Errorf("could not prune vanished roms: %w", err)
	}

	if err := d.TouchSourceSynced(ctx, params.Source.ID); err != nil {
		return stats, err
	}

	logger.Info().
		Object("stats", stats).
		Dur("elapsed", time.Since(start)).
		Msg("sync finished")
	return stats, nil
}

// hashObserved computes checksums for a local file when within the size
// threshold. Hash failures are item errors, not run failures.
func (d *Database) hashObserved(ctx context.Context, obs source.ObservedRom, params SyncParams, stats *SyncStats, logger zerolog.Logger) *romfile.Hashes {
	if obs.Path == "" {
		return nil
	}
	if params.MaxHashSize > 0 && obs.Size != nil && *obs.Size > params.MaxHashSize {
		logger.Debug().Str("file", obs.FileName).Msg("skipping hash, file above size threshold")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return nil
	}

	hashes, err := romfile.ComputeFileHashes(obs.Path)
	if err != nil {
		stats.ItemErrors++
		logger.Warn().Err(err).Str("path", obs.Path).Msg("could not hash rom file")
		if params.OnItemError != nil {
			params.OnItemError(obs.FileName, err)
		}
		return nil
	}
	stats.Hashed++
	return &hashes
}
