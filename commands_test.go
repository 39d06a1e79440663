package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romkeeper/romkeeper/catalog"
)

func testDatabasePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "catalog.db")
}

func seedSource(t *testing.T, dbPath string, src *catalog.Source) *catalog.Source {
	t.Helper()
	db, err := openCatalog(context.Background(), dbPath, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.AddSource(context.Background(), src))
	return src
}

func loadSource(t *testing.T, dbPath string, id int64) *catalog.Source {
	t.Helper()
	db, err := openCatalog(context.Background(), dbPath, zerolog.Nop())
	require.NoError(t, err)
	src, err := db.GetSource(context.Background(), id)
	require.NoError(t, err)
	return src
}

func TestSourcesUpdateCommand_AppliesChangedFields(t *testing.T) {
	dbPath := testDatabasePath(t)
	src := seedSource(t, dbPath, &catalog.Source{
		Name: "shelf", Type: catalog.SourceLocal, Path: "/old/roms", Enabled: true,
	})

	args := Command{}
	args.Sources.Update.Database = dbPath
	args.Sources.Update.ID = src.ID
	args.Sources.Update.Name = "main-shelf"
	args.Sources.Update.Path = "/new/roms"
	args.Sources.Update.Disable = true

	require.NoError(t, sourcesUpdateCommand(context.Background(), args, zerolog.Nop()))

	reloaded := loadSource(t, dbPath, src.ID)
	assert.Equal(t, "main-shelf", reloaded.Name)
	assert.Equal(t, "/new/roms", reloaded.Path)
	assert.False(t, reloaded.Enabled)
}

func TestSourcesUpdateCommand_EnableDisableConflict(t *testing.T) {
	args := Command{}
	args.Sources.Update.Database = testDatabasePath(t)
	args.Sources.Update.ID = 1
	args.Sources.Update.Enable = true
	args.Sources.Update.Disable = true

	err := sourcesUpdateCommand(context.Background(), args, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestSourcesCredentialsCommand_RotatesPassword(t *testing.T) {
	dbPath := testDatabasePath(t)
	creds, err := encodeCredentials(sourceCredentials{Username: "alex", Password: "old-secret"})
	require.NoError(t, err)
	src := seedSource(t, dbPath, &catalog.Source{
		Name: "server", Type: catalog.SourceRomm, URL: "http://romm.local", Credentials: creds, Enabled: true,
	})

	args := Command{}
	args.Sources.Credentials.Database = dbPath
	args.Sources.Credentials.ID = src.ID
	args.Sources.Credentials.Password = "new-secret"

	require.NoError(t, sourcesCredentialsCommand(context.Background(), args, zerolog.Nop()))

	reloaded := loadSource(t, dbPath, src.ID)
	decoded, err := decodeCredentials(reloaded.Credentials)
	require.NoError(t, err)
	// The username survives a password-only rotation.
	assert.Equal(t, "alex", decoded.Username)
	assert.Equal(t, "new-secret", decoded.Password)
}

func TestSourcesCredentialsCommand_NothingToChange(t *testing.T) {
	dbPath := testDatabasePath(t)
	src := seedSource(t, dbPath, &catalog.Source{
		Name: "server", Type: catalog.SourceRomm, URL: "http://romm.local", Enabled: true,
	})

	args := Command{}
	args.Sources.Credentials.Database = dbPath
	args.Sources.Credentials.ID = src.ID

	err := sourcesCredentialsCommand(context.Background(), args, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")
}

func TestVerifyCommand_AllPlatformsWhenOmitted(t *testing.T) {
	ctx := context.Background()
	dbPath := testDatabasePath(t)

	db, err := openCatalog(ctx, dbPath, zerolog.Nop())
	require.NoError(t, err)
	plat, err := db.GetPlatform(ctx, "gb")
	require.NoError(t, err)

	rom := &catalog.Rom{
		PlatformID: plat.ID,
		Name:       "Some Game",
		FileName:   "Some Game (USA).gb",
		HashSHA1:   "a9993e364706816aba3e25717850c26c9cd0d89d",
	}
	require.NoError(t, db.Cli.Create(rom).Error)

	datFile := &catalog.DatFile{
		Name: "Nintendo - Game Boy", DatType: "no-intro", PlatformSlug: "gb",
		EntryCount: 1, ImportedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Cli.Create(datFile).Error)
	require.NoError(t, db.Cli.Create(&catalog.DatEntry{
		DatFileID: datFile.ID,
		GameName:  "Some Game (USA)",
		RomName:   "Some Game (USA).gb",
		SHA1:      "a9993e364706816aba3e25717850c26c9cd0d89d",
	}).Error)

	args := Command{}
	args.Verify.Database = dbPath

	require.NoError(t, verifyCommand(ctx, args, zerolog.Nop()))

	var reloaded catalog.Rom
	require.NoError(t, db.Cli.First(&reloaded, rom.ID).Error)
	assert.Equal(t, catalog.StatusVerified, reloaded.VerificationStatus)
}
