package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/romkeeper/romkeeper/catalog"
	"github.com/romkeeper/romkeeper/job"
)

// DefaultPrecedence is the provider walk order: the offline dataset first,
// then the hash resolver, then the heavier APIs.
var DefaultPrecedence = []string{"launchbox", "hasheous", "igdb", "screenscraper"}

// Orchestrator walks providers in precedence order and merges their answers
// into one Metadata row per rom. Every provider response is also cached
// verbatim.
type Orchestrator struct {
	db         *catalog.Database
	providers  map[string]Provider
	precedence []string
	logger     zerolog.Logger
}

func NewOrchestrator(db *catalog.Database, providers []Provider, precedence []string, logger zerolog.Logger) *Orchestrator {
	if len(precedence) == 0 {
		precedence = DefaultPrecedence
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Orchestrator{
		db:         db,
		providers:  byName,
		precedence: precedence,
		logger:     logger.With().Str("component", "enrich").Logger(),
	}
}

// EnrichStats summarizes an enrichment run.
type EnrichStats struct {
	Total    int64
	Enriched int64
	Misses   int64
	Errors   int64
}

func (s EnrichStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("total", s.Total)
	e.Int64("enriched", s.Enriched)
	e.Int64("misses", s.Misses)
	e.Int64("errors", s.Errors)
}

// EnrichParams selects the roms of one enrichment run. With OnlyMissing,
// roms that already carry a Metadata row are skipped; Search narrows the
// run to roms matching a full-text query.
type EnrichParams struct {
	Platform    *catalog.Platform
	OnlyMissing bool
	Search      string
	Sink        job.Sink
}

// EnrichPlatform enriches a platform's roms. Offline datasets are
// downloaded first when absent, as their own reported phase. Provider
// failures are per-rom errors; a provider with no credentials is skipped
// for the whole run after the first sighting.
func (o *Orchestrator) EnrichPlatform(ctx context.Context, params EnrichParams) (EnrichStats, error) {
	sink := params.Sink
	if sink == nil {
		sink = job.NopSink()
	}
	plat := params.Platform
	logger := o.logger.With().Str("platform", plat.Slug).Logger()
	stats := EnrichStats{}

	skipped := map[string]bool{}
	if err := o.ensureDatasets(ctx, sink, skipped); err != nil {
		return stats, err
	}

	roms, err := o.db.RomsToEnrich(ctx, plat.ID, params.Search, params.OnlyMissing)
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
			Scope:   plat.Slug,
			Total:   stats.Total,
			Current: int64(i + 1),
			Item:    rom.Name,
			Phase:   "enriching",
		})
		throttledLogger.Info().Int64("current", int64(i+1)).Int64("total", stats.Total).Msg("enriching roms")

		hit, err := o.enrichRom(ctx, rom, plat, skipped)
		switch {
		case err != nil && ctx.Err() != nil:
			return stats, err
		case err != nil:
			stats.Errors++
			logger.Error().Err(err).Str("rom", rom.Name).Msg("could not enrich rom")
		case hit:
			stats.Enriched++
		default:
			stats.Misses++
		}
	}

	logger.Info().Object("stats", stats).Msg("enrichment finished")
	return stats, nil
}

// EnrichAll runs EnrichPlatform over every platform that has roms.
func (o *Orchestrator) EnrichAll(ctx context.Context, params EnrichParams) (EnrichStats, error) {
	total := EnrichStats{}

	platforms, err := o.db.PlatformsWithRoms(ctx)
	if err != nil {
		return total, err
	}

	for i := range platforms {
		params.Platform = &platforms[i]
		stats, err := o.EnrichPlatform(ctx, params)
		total.Total += stats.Total
		total.Enriched += stats.Enriched
		total.Misses += stats.Misses
		total.Errors += stats.Errors
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ensureDatasets prepares offline providers before a run: a provider whose
// local dataset is absent downloads and imports it first, reported through
// the sink as its own phase. A failed download disables the provider for
// the run instead of failing enrichment.
func (o *Orchestrator) ensureDatasets(ctx context.Context, sink job.Sink, skipped map[string]bool) error {
	for _, name := range o.precedence {
		lb, ok := o.providers[name].(*LaunchboxProvider)
		if !ok || skipped[name] {
			continue
		}
		ready, err := lb.datasetReady(ctx)
		if err != nil {
			return err
		}
		if ready {
			continue
		}

		o.logger.Info().Str("provider", name).Msg("offline dataset missing, downloading")
		if err := importDatasetFrom(ctx, o.db, lb.datasetURL, sink, o.logger); err != nil {
			if ctx.Err() != nil {
				return err
			}
			skipped[name] = true
			o.logger.Warn().Err(err).Str("provider", name).Msg("could not prepare offline dataset, skipping provider for this run")
		}
	}
	return nil
}

// EnrichOne force-refreshes a single rom: cached provider responses are
// dropped first so every provider is asked again.
func (o *Orchestrator) EnrichOne(ctx context.Context, romID int64) error {
	rom := &catalog.Rom{}
	if err := o.db.Cli.WithContext(ctx).First(rom, romID).Error; err != nil {
		return err
	}
	plat := &catalog.Platform{}
	if err := o.db.Cli.WithContext(ctx).First(plat, rom.PlatformID).Error; err != nil {
		return err
	}

	skipped := map[string]bool{}
	if err := o.ensureDatasets(ctx, job.NopSink(), skipped); err != nil {
		return err
	}

	o.db.Lock.Lock()
	err := o.db.Cli.WithContext(ctx).Where("rom_id = ?", romID).Delete(&catalog.ProviderCache{}).Error
	o.db.Lock.Unlock()
	if err != nil {
		return err
	}

	hit, err := o.enrichRom(ctx, rom, plat, skipped)
	if err != nil {
		return err
	}
	if !hit {
		return ErrNotFound
	}
	return nil
}

// enrichRom asks each provider in precedence order and merges the answers
// field by field, first non-empty wins. Reports whether any provider knew
// the rom.
func (o *Orchestrator) enrichRom(ctx context.Context, rom *catalog.Rom, plat *catalog.Platform, skipped map[string]bool) (bool, error) {
	merged := &Result{}
	var igdbHint *int64

	// A prior run's hasheous answer may already carry the IGDB id.
	var cached catalog.ProviderCache
	err := o.db.Cli.WithContext(ctx).
		Where("rom_id = ? AND igdb_id IS NOT NULL", rom.ID).
		First(&cached).Error
	if err == nil {
		igdbHint = cached.IgdbID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	hit := false
	for _, name := range o.precedence {
		provider, ok := o.providers[name]
		if !ok || skipped[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return hit, err
		}

		result, err := o.fetchWithRetry(ctx, provider, Request{Rom: rom, Platform: plat, IgdbID: igdbHint})
		switch {
		case errors.Is(err, ErrNoCredentials):
			skipped[name] = true
			o.logger.Warn().Str("provider", name).Msg("provider not configured, skipping for this run")
			continue
		case errors.Is(err, ErrNotFound):
			continue
		case err != nil && ctx.Err() != nil:
			return hit, err
		case err != nil:
			o.logger.Warn().Err(err).Str("provider", name).Str("rom", rom.Name).Msg("provider lookup failed")
			continue
		}

		hit = true
		if result.IgdbID != nil {
			igdbHint = result.IgdbID
		}
		if err := o.cacheResult(ctx, name, rom.ID, result); err != nil {
			return hit, err
		}
		mergeResult(merged, result)
	}

	if !hit {
		return false, nil
	}
	return true, o.saveMetadata(ctx, rom.ID, merged)
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, provider Provider, req Request) (*Result, error) {
	result, err := provider.Fetch(ctx, req)
	if err != nil && IsRetriable(err) {
		if sleepErr := SleepWithContext(ctx, 2*time.Second); sleepErr != nil {
			return nil, sleepErr
		}
		result, err = provider.Fetch(ctx, req)
	}
	return result, err
}

func mergeResult(merged, result *Result) {
	if merged.Description == "" {
		merged.Description = result.Description
	}
	if merged.Rating == nil {
		merged.Rating = result.Rating
	}
	if merged.ReleaseDate == "" {
		merged.ReleaseDate = result.ReleaseDate
	}
	if merged.Developer == "" {
		merged.Developer = result.Developer
	}
	if merged.Publisher == "" {
		merged.Publisher = result.Publisher
	}
	if len(merged.Genres) == 0 {
		merged.Genres = result.Genres
	}
	if len(merged.Themes) == 0 {
		merged.Themes = result.Themes
	}
	if merged.IgdbID == nil {
		merged.IgdbID = result.IgdbID
	}
}

func (o *Orchestrator) cacheResult(ctx context.Context, provider string, romID int64, result *Result) error {
	o.db.Lock.Lock()
	defer o.db.Lock.Unlock()

	row := catalog.ProviderCache{
		Provider:  provider,
		RomID:     romID,
		RemoteID:  result.RemoteID,
		IgdbID:    result.IgdbID,
		Raw:       result.Raw,
		FetchedAt: time.Now().UTC(),
	}
	return o.db.Cli.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "rom_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"remote_id", "igdb_id", "raw", "fetched_at"}),
		}).
		Create(&row).Error
}

func (o *Orchestrator) saveMetadata(ctx context.Context, romID int64, merged *Result) error {
	o.db.Lock.Lock()
	defer o.db.Lock.Unlock()

	now := time.Now().UTC()
	row := catalog.Metadata{
		RomID:       romID,
		Description: merged.Description,
		Rating:      merged.Rating,
		ReleaseDate: merged.ReleaseDate,
		Developer:   merged.Developer,
		Publisher:   merged.Publisher,
		Genres:      catalog.StringList(merged.Genres),
		Themes:      catalog.StringList(merged.Themes),
		IgdbID:      merged.IgdbID,
		FetchedAt:   &now,
	}
	return o.db.Cli.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "rom_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"description", "rating", "release_date", "developer", "publisher",
				"genres", "themes", "igdb_id", "fetched_at", "updated_at",
			}),
		}).
		Create(&row).Error
}
