package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/catalog"
	"github.com/romkeeper/romkeeper/config"
	"github.com/romkeeper/romkeeper/enrich"
	"github.com/romkeeper/romkeeper/job"
)

func enrichCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	db, err := openCatalog(ctx, args.Enrich.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	cfg := &config.Config{}
	if args.Enrich.Config != "" {
		cfg, err = config.LoadFromFile(args.Enrich.Config)
		if err != nil {
			return fmt.Errorf("could not load config: %w", err)
		}
	}

	orchestrator := newOrchestrator(db, cfg, logger)
	registry := job.NewRegistry(logger)

	if args.Enrich.Rom != 0 {
		scope := fmt.Sprintf("rom-%d", args.Enrich.Rom)
		err := runJob(ctx, registry, job.KindEnrich, scope, func(ctx context.Context, _ *job.Handle, _ job.Sink) error {
			return orchestrator.EnrichOne(ctx, args.Enrich.Rom)
		})
		if err != nil {
			return fmt.Errorf("could not enrich rom %d: %w", args.Enrich.Rom, err)
		}
		fmt.Printf("refreshed rom %d\n", args.Enrich.Rom)
		return nil
	}

	scope := args.Enrich.Platform
	if scope == "" {
		scope = "all"
	}

	var stats enrich.EnrichStats
	err = runJob(ctx, registry, job.KindEnrich, scope, func(ctx context.Context, _ *job.Handle, sink job.Sink) error {
		params := enrich.EnrichParams{
			OnlyMissing: !args.Enrich.All,
			Search:      args.Enrich.Search,
			Sink:        sink,
		}

		if args.Enrich.Platform == "" {
			var runErr error
			stats, runErr = orchestrator.EnrichAll(ctx, params)
			return runErr
		}

		plat, platErr := db.PlatformBySlug(ctx, args.Enrich.Platform)
		if platErr != nil {
			return fmt.Errorf("unknown platform %q: %w", args.Enrich.Platform, platErr)
		}
		params.Platform = plat
		var runErr error
		stats, runErr = orchestrator.EnrichPlatform(ctx, params)
		return runErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("enriched %d, misses %d, errors %d (of %d roms)\n",
		stats.Enriched, stats.Misses, stats.Errors, stats.Total)
	return nil
}

func launchboxImportCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	db, err := openCatalog(ctx, args.LaunchboxImport.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	registry := job.NewRegistry(logger)
	return runJob(ctx, registry, job.KindImport, "launchbox", func(ctx context.Context, _ *job.Handle, sink job.Sink) error {
		return enrich.ImportDataset(ctx, db, sink, logger)
	})
}

// newOrchestrator wires all providers; the ones without credentials skip
// themselves at fetch time.
func newOrchestrator(db *catalog.Database, cfg *config.Config, logger zerolog.Logger) *enrich.Orchestrator {
	providers := []enrich.Provider{
		enrich.NewLaunchboxProvider(db),
		enrich.NewHasheousClient(),
		enrich.NewIgdbClient(cfg.Providers.Igdb.ClientID, cfg.Providers.Igdb.ClientSecret),
		enrich.NewScreenscraperClient(
			cfg.Providers.Screenscraper.DevID,
			cfg.Providers.Screenscraper.DevPassword,
			cfg.Providers.Screenscraper.User,
			cfg.Providers.Screenscraper.UserPassword,
		),
	}
	return enrich.NewOrchestrator(db, providers, cfg.Precedence, logger)
}
