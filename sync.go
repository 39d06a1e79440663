package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/catalog"
)

func syncCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	db, err := openCatalog(ctx, args.Sync.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	sources, err := db.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("could not list sources: %w", err)
	}

	var matched bool
	for i := range sources {
		src := &sources[i]
		if args.Sync.Source != "" && src.Name != args.Sync.Source {
			continue
		}
		matched = true

		if !src.Enabled {
			logger.Info().Object("source", *src).Msg("skipping disabled source")
			continue
		}

		if err := syncOne(ctx, db, src, args.Sync.MaxHashSize.Size, logger); err != nil {
			return err
		}
	}

	if !matched && args.Sync.Source != "" {
		return fmt.Errorf("no source named %q", args.Sync.Source)
	}
	return nil
}

func syncOne(ctx context.Context, db *catalog.Database, src *catalog.Source, maxHashSize int64, logger zerolog.Logger) error {
	adapter, err := buildAdapter(src, logger)
	if err != nil {
		return fmt.Errorf("could not build adapter for %s: %w", src.Name, err)
	}

	_, err = db.SyncSource(ctx, catalog.SyncParams{
		Source:      src,
		Adapter:     adapter,
		Logger:      logger,
		MaxHashSize: maxHashSize,
	})
	if err != nil {
		return fmt.Errorf("sync failed for %s: %w", src.Name, err)
	}
	return nil
}
