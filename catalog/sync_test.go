package catalog_test

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romkeeper/romkeeper/catalog"
	"github.com/romkeeper/romkeeper/job"
	"github.com/romkeeper/romkeeper/source"
)

type fakeAdapter struct {
	name  string
	items []source.ObservedRom

	// listErr ends the sequence after the items, like a page fetch that
	// failed mid-listing.
	listErr error
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) List(ctx context.Context, _ job.Sink) (iter.Seq2[source.ObservedRom, error], error) {
	return func(yield func(source.ObservedRom, error) bool) {
		for _, item := range a.items {
			if ctx.Err() != nil {
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if a.listErr != nil {
			yield(source.ObservedRom{}, a.listErr)
		}
	}, nil
}

func (a *fakeAdapter) TestConnection(context.Context) (source.TestResult, error) {
	return source.TestResult{RomCount: int64(len(a.items))}, nil
}

func writeRom(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestSyncSource_HashesLocalFiles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	src := addTestSource(t, db, "one")
	dir := t.TempDir()

	path := writeRom(t, dir, "Some Game.gba", "abc")
	adapter := &fakeAdapter{name: "local:test", items: []source.ObservedRom{
		{PlatformSlug: "gba", Name: "Some Game", FileName: "Some Game.gba", Path: path},
	}}

	stats, err := db.SyncSource(ctx, catalog.SyncParams{
		Source:  src,
		Adapter: adapter,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Seen)
	assert.EqualValues(t, 1, stats.Hashed)

	var rom catalog.Rom
	require.NoError(t, db.Cli.First(&rom).Error)
	assert.Equal(t, testHashes.SHA1, rom.HashSHA1)

	updated, err := db.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastSyncedAt)
}

func TestSyncSource_MaxHashSizeSkipsLargeFiles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	src := addTestSource(t, db, "one")
	dir := t.TempDir()

	path := writeRom(t, dir, "Big Game.gba", "abcdefgh")
	size := int64(8)
	adapter := &fakeAdapter{name: "local:test", items: []source.ObservedRom{
		{PlatformSlug: "gba", Name: "Big Game", FileName: "Big Game.gba", Path: path, Size: &size},
	}}

	stats, err := db.SyncSource(ctx, catalog.SyncParams{
		Source:      src,
		Adapter:     adapter,
		Logger:      zerolog.Nop(),
		MaxHashSize: 4,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Hashed)

	var rom catalog.Rom
	require.NoError(t, db.Cli.First(&rom).Error)
	assert.False(t, rom.HasAnyHash(), "oversized file must stay provisional")
}

func TestSyncSource_UnreadableFileIsItemError(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	src := addTestSource(t, db, "one")

	adapter := &fakeAdapter{name: "local:test", items: []source.ObservedRom{
		{PlatformSlug: "gba", Name: "Gone", FileName: "Gone.gba", Path: "/does/not/exist.gba"},
	}}

	stats, err := db.SyncSource(ctx, catalog.SyncParams{
		Source:  src,
		Adapter: adapter,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err, "a single unreadable file must not fail the run")
	assert.EqualValues(t, 1, stats.ItemErrors)
	assert.EqualValues(t, 1, stats.Seen)
}

func TestSyncSource_PrunesVanished(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	src := addTestSource(t, db, "one")

	adapter := &fakeAdapter{name: "local:test", items: []source.ObservedRom{
		{PlatformSlug: "gba", Name: "Keep", FileName: "Keep.gba"},
		{PlatformSlug: "gba", Name: "Gone", FileName: "Gone.gba"},
	}}
	_, err := db.SyncSource(ctx, catalog.SyncParams{Source: src, Adapter: adapter, Logger: zerolog.Nop()})
	require.NoError(t, err)

	adapter.items = adapter.items[:1]
	stats, err := db.SyncSource(ctx, catalog.SyncParams{Source: src, Adapter: adapter, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Pruned)

	var linkCount, romCount int64
	require.NoError(t, db.Cli.Model(&catalog.SourceRom{}).Count(&linkCount).Error)
	require.NoError(t, db.Cli.Model(&catalog.Rom{}).Count(&romCount).Error)
	assert.EqualValues(t, 1, linkCount)
	assert.EqualValues(t, 2, romCount, "orphaned roms are retained")
}

func TestSyncSource_TruncatedListingSkipsPrune(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	src := addTestSource(t, db, "one")

	adapter := &fakeAdapter{name: "romm:test", items: []source.ObservedRom{
		{PlatformSlug: "gba", Name: "One", FileName: "One.gba"},
		{PlatformSlug: "gba", Name: "Two", FileName: "Two.gba"},
	}}
	_, err := db.SyncSource(ctx, catalog.SyncParams{Source: src, Adapter: adapter, Logger: zerolog.Nop()})
	require.NoError(t, err)

	// The next listing dies after the first item, as if a later page fetch
	// failed. The run must fail and the unreached link must survive.
	adapter.items = adapter.items[:1]
	adapter.listErr = errors.New("status 502")
	_, err = db.SyncSource(ctx, catalog.SyncParams{Source: src, Adapter: adapter, Logger: zerolog.Nop()})
	require.Error(t, err)

	var linkCount int64
	require.NoError(t, db.Cli.Model(&catalog.SourceRom{}).Count(&linkCount).Error)
	assert.EqualValues(t, 2, linkCount)
}

func TestSyncSource_CancelledRunSkipsPrune(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	src := addTestSource(t, db, "one")

	adapter := &fakeAdapter{name: "local:test", items: []source.ObservedRom{
		{PlatformSlug: "gba", Name: "One", FileName: "One.gba"},
		{PlatformSlug: "gba", Name: "Two", FileName: "Two.gba"},
	}}
	_, err := db.SyncSource(ctx, catalog.SyncParams{Source: src, Adapter: adapter, Logger: zerolog.Nop()})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = db.SyncSource(cancelled, catalog.SyncParams{Source: src, Adapter: adapter, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, context.Canceled)

	// An interrupted listing must not delete links for unreached files.
	var linkCount int64
	require.NoError(t, db.Cli.Model(&catalog.SourceRom{}).Count(&linkCount).Error)
	assert.EqualValues(t, 2, linkCount)
}
