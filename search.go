package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

func searchCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	db, err := openCatalog(ctx, args.Search.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	var platformID *int64
	if args.Search.Platform != "" {
		plat, err := db.PlatformBySlug(ctx, args.Search.Platform)
		if err != nil {
			return fmt.Errorf("unknown platform %q: %w", args.Search.Platform, err)
		}
		platformID = &plat.ID
	}

	roms, err := db.SearchRoms(ctx, platformID, args.Search.Query)
	if err != nil {
		return err
	}

	for _, rom := range roms {
		status := rom.VerificationStatus
		if status == "" {
			status = "not checked"
		}
		fmt.Printf("%d\t%s\t%s\n", rom.ID, rom.Name, status)
	}
	return nil
}
