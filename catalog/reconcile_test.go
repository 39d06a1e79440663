package catalog_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/romkeeper/romkeeper/catalog"
	"github.com/romkeeper/romkeeper/romfile"
	"github.com/romkeeper/romkeeper/source"
)

func newTestDB(t *testing.T) *catalog.Database {
	t.Helper()
	cli, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)

	db := &catalog.Database{
		Cli:    cli,
		Logger: zerolog.Nop(),
	}
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func addTestSource(t *testing.T, db *catalog.Database, name string) *catalog.Source {
	t.Helper()
	src := &catalog.Source{
		Name:    name,
		Type:    catalog.SourceLocal,
		Path:    "/roms/" + name,
		Enabled: true,
	}
	require.NoError(t, db.AddSource(context.Background(), src))
	return src
}

func testPlatformID(t *testing.T, db *catalog.Database) int64 {
	t.Helper()
	plat, err := db.GetPlatform(context.Background(), "gba")
	require.NoError(t, err)
	return plat.ID
}

var testHashes = romfile.Hashes{
	CRC32: "352441c2",
	MD5:   "900150983cd24fb0d6963f7d28e17f72",
	SHA1:  "a9993e364706816aba3e25717850c26c9cd0d89d",
}

func TestReconcileObserved_DedupAcrossSources(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src1 := addTestSource(t, db, "handheld")
	src2 := addTestSource(t, db, "nas")

	obs1 := source.ObservedRom{PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game (USA).gba", Path: "/roms/handheld/gba/Some Game (USA).gba"}
	obs2 := source.ObservedRom{PlatformSlug: "gba", Name: "Some Game", FileName: "some-game.gba", Path: "/roms/nas/gba/some-game.gba"}

	rom1, err := db.ReconcileObserved(ctx, platformID, src1, obs1, &testHashes)
	require.NoError(t, err)
	rom2, err := db.ReconcileObserved(ctx, platformID, src2, obs2, &testHashes)
	require.NoError(t, err)

	// Same content, different file names: one canonical rom, two links.
	assert.Equal(t, rom1.ID, rom2.ID)
	assert.Equal(t, "Some Game (USA).gba", rom2.FileName, "canonical name must not change on later sightings")

	var romCount, linkCount int64
	require.NoError(t, db.Cli.Model(&catalog.Rom{}).Count(&romCount).Error)
	require.NoError(t, db.Cli.Model(&catalog.SourceRom{}).Count(&linkCount).Error)
	assert.EqualValues(t, 1, romCount)
	assert.EqualValues(t, 2, linkCount)
}

func TestReconcileObserved_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src := addTestSource(t, db, "handheld")

	obs := source.ObservedRom{PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game.gba"}

	for i := 0; i < 3; i++ {
		_, err := db.ReconcileObserved(ctx, platformID, src, obs, &testHashes)
		require.NoError(t, err)
	}

	var romCount, linkCount int64
	require.NoError(t, db.Cli.Model(&catalog.Rom{}).Count(&romCount).Error)
	require.NoError(t, db.Cli.Model(&catalog.SourceRom{}).Count(&linkCount).Error)
	assert.EqualValues(t, 1, romCount)
	assert.EqualValues(t, 1, linkCount)
}

func TestReconcileObserved_FillsMissingHashes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src := addTestSource(t, db, "server")

	// Remote sighting knows only the MD5.
	remote := source.ObservedRom{PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game.gba", HashMD5: testHashes.MD5}
	rom, err := db.ReconcileObserved(ctx, platformID, src, remote, nil)
	require.NoError(t, err)
	assert.Empty(t, rom.HashSHA1)

	// A local sighting with full hashes matches on MD5 and fills the rest.
	local := source.ObservedRom{PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game.gba"}
	rom2, err := db.ReconcileObserved(ctx, platformID, src, local, &testHashes)
	require.NoError(t, err)
	assert.Equal(t, rom.ID, rom2.ID)
	assert.Equal(t, testHashes.SHA1, rom2.HashSHA1)
	assert.Equal(t, testHashes.CRC32, rom2.HashCRC32)
}

func TestReconcileObserved_SameNameDifferentContent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src1 := addTestSource(t, db, "one")
	src2 := addTestSource(t, db, "two")

	obs := source.ObservedRom{PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game.gba"}

	_, err := db.ReconcileObserved(ctx, platformID, src1, obs, &testHashes)
	require.NoError(t, err)

	other := romfile.Hashes{
		CRC32: "deadbeef",
		MD5:   "ffffffffffffffffffffffffffffffff",
		SHA1:  "ffffffffffffffffffffffffffffffffffffffff",
	}
	rom2, err := db.ReconcileObserved(ctx, platformID, src2, obs, &other)
	require.NoError(t, err)

	// Same file name but different dump: checksum identity wins.
	var romCount int64
	require.NoError(t, db.Cli.Model(&catalog.Rom{}).Count(&romCount).Error)
	assert.EqualValues(t, 2, romCount)
	assert.Equal(t, other.SHA1, rom2.HashSHA1)
}

func TestReconcileObserved_HashCollision(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src := addTestSource(t, db, "one")

	obs := source.ObservedRom{PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game.gba"}
	_, err := db.ReconcileObserved(ctx, platformID, src, obs, &testHashes)
	require.NoError(t, err)

	// Same MD5, different SHA1: ambiguous, must not merge.
	colliding := romfile.Hashes{
		MD5:  testHashes.MD5,
		SHA1: "ffffffffffffffffffffffffffffffffffffffff",
	}
	_, err = db.ReconcileObserved(ctx, platformID, src, source.ObservedRom{
		PlatformSlug: "gba", Name: "Other", FileName: "Other.gba",
	}, &colliding)
	assert.ErrorIs(t, err, catalog.ErrHashCollision)
}

func TestReconcileObserved_WeakHashDisagreementIsCollision(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src := addTestSource(t, db, "one")

	obs := source.ObservedRom{PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game.gba"}
	_, err := db.ReconcileObserved(ctx, platformID, src, obs, &testHashes)
	require.NoError(t, err)

	// Same SHA1, different CRC32: one side's record is corrupt, never merge.
	mixed := romfile.Hashes{
		SHA1:  testHashes.SHA1,
		CRC32: "deadbeef",
	}
	_, err = db.ReconcileObserved(ctx, platformID, src, source.ObservedRom{
		PlatformSlug: "gba", Name: "Other", FileName: "Other.gba",
	}, &mixed)
	assert.ErrorIs(t, err, catalog.ErrHashCollision)
}

func TestAssignHashes_MergesProvisionalRom(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src1 := addTestSource(t, db, "one")
	src2 := addTestSource(t, db, "two")

	hashed, err := db.ReconcileObserved(ctx, platformID, src1, source.ObservedRom{
		PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game (USA).gba",
	}, &testHashes)
	require.NoError(t, err)

	provisional, err := db.ReconcileObserved(ctx, platformID, src2, source.ObservedRom{
		PlatformSlug: "gba", Name: "some game", FileName: "some-game.gba",
	}, nil)
	require.NoError(t, err)
	require.NotEqual(t, hashed.ID, provisional.ID)

	// Hashing the provisional file reveals it is the same dump.
	merged, err := db.AssignHashes(ctx, provisional.ID, testHashes)
	require.NoError(t, err)
	assert.Equal(t, hashed.ID, merged.ID)

	var romCount, linkCount int64
	require.NoError(t, db.Cli.Model(&catalog.Rom{}).Count(&romCount).Error)
	require.NoError(t, db.Cli.Model(&catalog.SourceRom{}).Where("rom_id = ?", hashed.ID).Count(&linkCount).Error)
	assert.EqualValues(t, 1, romCount)
	assert.EqualValues(t, 2, linkCount)
}

func TestAssignHashes_NoOwnerKeepsRom(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src := addTestSource(t, db, "one")

	rom, err := db.ReconcileObserved(ctx, platformID, src, source.ObservedRom{
		PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game.gba",
	}, nil)
	require.NoError(t, err)

	updated, err := db.AssignHashes(ctx, rom.ID, testHashes)
	require.NoError(t, err)
	assert.Equal(t, rom.ID, updated.ID)
	assert.Equal(t, testHashes.SHA1, updated.HashSHA1)
}

func TestPruneVanished(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src := addTestSource(t, db, "one")

	rom1, err := db.ReconcileObserved(ctx, platformID, src, source.ObservedRom{
		PlatformSlug: "gba", Name: "Keep", FileName: "Keep.gba",
	}, &testHashes)
	require.NoError(t, err)
	_, err = db.ReconcileObserved(ctx, platformID, src, source.ObservedRom{
		PlatformSlug: "gba", Name: "Gone", FileName: "Gone.gba",
	}, nil)
	require.NoError(t, err)

	var keep catalog.SourceRom
	require.NoError(t, db.Cli.Where("rom_id = ? AND source_id = ?", rom1.ID, src.ID).First(&keep).Error)

	removed, err := db.PruneVanished(ctx, src.ID, []int64{keep.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	var linkCount, romCount int64
	require.NoError(t, db.Cli.Model(&catalog.SourceRom{}).Count(&linkCount).Error)
	require.NoError(t, db.Cli.Model(&catalog.Rom{}).Count(&romCount).Error)
	assert.EqualValues(t, 1, linkCount)
	// The orphaned rom row stays; only the link is gone.
	assert.EqualValues(t, 2, romCount)
}

func TestRemoveSource_PurgeOrphans(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	platformID := testPlatformID(t, db)
	src1 := addTestSource(t, db, "one")
	src2 := addTestSource(t, db, "two")

	shared, err := db.ReconcileObserved(ctx, platformID, src1, source.ObservedRom{
		PlatformSlug: "gba", Name: "Shared", FileName: "Shared.gba",
	}, &testHashes)
	require.NoError(t, err)
	_, err = db.ReconcileObserved(ctx, platformID, src2, source.ObservedRom{
		PlatformSlug: "gba", Name: "Shared", FileName: "Shared.gba",
	}, &testHashes)
	require.NoError(t, err)
	_, err = db.ReconcileObserved(ctx, platformID, src1, source.ObservedRom{
		PlatformSlug: "gba", Name: "Only One", FileName: "Only One.gba",
	}, nil)
	require.NoError(t, err)

	require.NoError(t, db.RemoveSource(ctx, src1.ID, true))

	var roms []catalog.Rom
	require.NoError(t, db.Cli.Find(&roms).Error)
	require.Len(t, roms, 1)
	assert.Equal(t, shared.ID, roms[0].ID)
}
