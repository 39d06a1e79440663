package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/dat"
	"github.com/romkeeper/romkeeper/platform"
)

func datImportCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	file, detection, err := parseDatFile(args.Dat.Import.File)
	if err != nil {
		return err
	}

	slug := args.Dat.Import.Platform
	if slug == "" {
		slug = detection.PlatformSlug
	}
	if slug == "" {
		return errors.New("could not detect platform from DAT header, pass --platform")
	}
	if _, ok := platform.Lookup(slug); !ok {
		return fmt.Errorf("unknown platform %q", slug)
	}

	db, err := openCatalog(ctx, args.Dat.Import.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	row, err := dat.Import(ctx, db, file, slug)
	if err != nil {
		return err
	}

	fmt.Printf("imported %q (%s, %s): %d entries\n", row.Name, slug, row.DatType, row.EntryCount)
	return nil
}

func datDetectCommand(_ context.Context, args Command, _ zerolog.Logger) error {
	file, detection, err := parseDatFile(args.Dat.Detect.File)
	if err != nil {
		return err
	}

	fmt.Printf("header:   %s\n", file.Header.Name)
	fmt.Printf("type:     %s\n", detection.DatType)
	fmt.Printf("entries:  %d\n", file.EntryCount())
	if detection.PlatformSlug != "" {
		fmt.Printf("platform: %s (%s)\n", detection.PlatformSlug, platform.DisplayName(detection.PlatformSlug))
	} else {
		fmt.Println("platform: not detected, pass --platform on import")
	}
	return nil
}

func parseDatFile(path string) (*dat.File, dat.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dat.Detection{}, fmt.Errorf("could not open DAT file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	file, err := dat.Parse(f)
	if err != nil {
		return nil, dat.Detection{}, err
	}
	return file, dat.Detect(file.Header, filepath.Base(path)), nil
}
