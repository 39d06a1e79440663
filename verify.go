package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/dat"
	"github.com/romkeeper/romkeeper/job"
)

func verifyCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	db, err := openCatalog(ctx, args.Verify.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	scope := args.Verify.Platform
	if scope == "" {
		scope = "all"
	}

	var stats dat.VerifyStats
	registry := job.NewRegistry(logger)
	err = runJob(ctx, registry, job.KindVerify, scope, func(ctx context.Context, _ *job.Handle, sink job.Sink) error {
		if args.Verify.Platform == "" {
			var runErr error
			stats, runErr = dat.VerifyAll(ctx, db, sink, logger)
			return runErr
		}

		plat, platErr := db.PlatformBySlug(ctx, args.Verify.Platform)
		if platErr != nil {
			return fmt.Errorf("unknown platform %q: %w", args.Verify.Platform, platErr)
		}
		var runErr error
		stats, runErr = dat.Verify(ctx, db, dat.VerifyParams{
			Platform: plat,
			Sink:     sink,
			Logger:   logger,
		})
		return runErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("verified %d, bad dumps %d, unverified %d, not checked %d (of %d roms)\n",
		stats.Verified, stats.BadDump, stats.Unverified, stats.NotChecked, stats.Total)
	return nil
}
