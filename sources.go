package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/catalog"
)

func sourcesAddCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	add := args.Sources.Add

	src := &catalog.Source{
		Name:    add.Name,
		Type:    catalog.SourceType(add.Type),
		Path:    add.Path,
		URL:     add.URL,
		Enabled: true,
	}

	switch src.Type {
	case catalog.SourceLocal:
		if src.Path == "" {
			return errors.New("local sources need --path")
		}
	case catalog.SourceRomm:
		if src.URL == "" {
			return errors.New("romm sources need --url")
		}
		creds, err := encodeCredentials(sourceCredentials{
			Username: add.Username,
			Password: add.Password,
		})
		if err != nil {
			return err
		}
		src.Credentials = creds
	}

	db, err := openCatalog(ctx, add.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	if err := db.AddSource(ctx, src); err != nil {
		return fmt.Errorf("could not add source: %w", err)
	}

	logger.Info().Object("source", *src).Msg("added source")
	return nil
}

func sourcesListCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	db, err := openCatalog(ctx, args.Sources.List.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	sources, err := db.ListSources(ctx)
	if err != nil {
		return err
	}

	for _, src := range sources {
		location := src.Path
		if location == "" {
			location = src.URL
		}
		state := "enabled"
		if !src.Enabled {
			state = "disabled"
		}
		lastSync := "never"
		if src.LastSyncedAt != nil {
			lastSync = src.LastSyncedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%d\t%s\t%s\t%s\t%s\tlast sync: %s\n", src.ID, src.Name, src.Type, location, state, lastSync)
	}
	return nil
}

func sourcesUpdateCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	upd := args.Sources.Update
	if upd.Enable && upd.Disable {
		return errors.New("--enable and --disable are mutually exclusive")
	}

	db, err := openCatalog(ctx, upd.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	src, err := db.GetSource(ctx, upd.ID)
	if err != nil {
		return fmt.Errorf("could not load source: %w", err)
	}

	if upd.Name != "" {
		src.Name = upd.Name
	}
	if upd.Path != "" {
		if src.Type != catalog.SourceLocal {
			return fmt.Errorf("--path only applies to local sources, %s is %s", src.Name, src.Type)
		}
		src.Path = upd.Path
	}
	if upd.URL != "" {
		if src.Type != catalog.SourceRomm {
			return fmt.Errorf("--url only applies to romm sources, %s is %s", src.Name, src.Type)
		}
		src.URL = upd.URL
	}
	if upd.Enable {
		src.Enabled = true
	}
	if upd.Disable {
		src.Enabled = false
	}

	if err := db.UpdateSource(ctx, src); err != nil {
		return fmt.Errorf("could not update source: %w", err)
	}

	logger.Info().Object("source", *src).Msg("updated source")
	return nil
}

func sourcesCredentialsCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cmd := args.Sources.Credentials

	db, err := openCatalog(ctx, cmd.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	src, err := db.GetSource(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("could not load source: %w", err)
	}

	if cmd.Show {
		creds, err := decodeCredentials(src.Credentials)
		if err != nil {
			return err
		}
		fmt.Printf("username: %s\npassword: %s\n", creds.Username, creds.Password)
		return nil
	}

	if cmd.Username == "" && cmd.Password == "" {
		return errors.New("nothing to change, pass --username or --password (or --show)")
	}

	creds, err := decodeCredentials(src.Credentials)
	if err != nil {
		return err
	}
	if cmd.Username != "" {
		creds.Username = cmd.Username
	}
	if cmd.Password != "" {
		creds.Password = cmd.Password
	}

	encoded, err := encodeCredentials(creds)
	if err != nil {
		return err
	}
	src.Credentials = encoded

	if err := db.UpdateSource(ctx, src); err != nil {
		return fmt.Errorf("could not update source: %w", err)
	}

	// The blob itself never reaches the log.
	logger.Info().Int64("id", src.ID).Str("name", src.Name).Msg("updated source credentials")
	return nil
}

func sourcesRemoveCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	db, err := openCatalog(ctx, args.Sources.Remove.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	if err := db.RemoveSource(ctx, args.Sources.Remove.ID, args.Sources.Remove.Purge); err != nil {
		return fmt.Errorf("could not remove source: %w", err)
	}

	logger.Info().Int64("id", args.Sources.Remove.ID).Bool("purge", args.Sources.Remove.Purge).Msg("removed source")
	return nil
}

func sourcesTestCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	db, err := openCatalog(ctx, args.Sources.Test.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	src, err := db.GetSource(ctx, args.Sources.Test.ID)
	if err != nil {
		return fmt.Errorf("could not load source: %w", err)
	}

	adapter, err := buildAdapter(src, logger)
	if err != nil {
		return err
	}

	result, err := adapter.TestConnection(ctx)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	fmt.Printf("ok: %d platforms, %d roms", result.PlatformCount, result.RomCount)
	if result.Detail != "" {
		fmt.Printf(" (%s)", result.Detail)
	}
	fmt.Println()
	return nil
}
