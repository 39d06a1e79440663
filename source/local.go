package source

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/job"
	"github.com/romkeeper/romkeeper/platform"
)

// LocalAdapter scans a ROM directory tree. Subfolder names are mapped to
// platforms through the folder-alias registry; unmatched folders are
// reported as warnings and skipped.
type LocalAdapter struct {
	Root   string
	Logger zerolog.Logger
}

func NewLocalAdapter(root string, logger zerolog.Logger) *LocalAdapter {
	return &LocalAdapter{
		Root:   root,
		Logger: logger.With().Str("adapter", "local").Str("root", root).Logger(),
	}
}

func (a *LocalAdapter) Name() string {
	return "local:" + a.Root
}

// List walks the tree and yields one ObservedRom per recognized file.
// The walk order is sorted so repeated listings are deterministic.
func (a *LocalAdapter) List(ctx context.Context, sink job.Sink) (iter.Seq2[ObservedRom, error], error) {
	info, err := os.Stat(a.Root)
	if err != nil {
		return nil, fmt.Errorf("could not open source path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", a.Root)
	}

	layout := platform.DetectLayout(a.Root)
	romsRoot := platform.RomsRoot(a.Root, layout)
	total := a.countRomFiles(romsRoot, layout)

	return func(yield func(ObservedRom, error) bool) {
		logger := a.Logger.With().Str("layout", string(layout)).Logger()
		logger.Info().Int64("total", total).Msg("start scanning for roms")

		var scanned int64
		defer func() {
			logger.Info().Int64("scanned", scanned).Msg("done scanning roms")
		}()

		throttledLogger := logger.Sample(&zerolog.BurstSampler{
			Burst:  1,
			Period: 1 * time.Second,
		})

		dirs, err := os.ReadDir(romsRoot)
		if err != nil {
			yield(ObservedRom{}, fmt.Errorf("could not read roms root: %w", err))
			return
		}

		for _, dir := range dirs {
			if ctx.Err() != nil {
				return
			}
			if !dir.IsDir() {
				continue
			}
			slug, ok := platform.ResolveLayoutFolder(dir.Name(), layout)
			if !ok {
				logger.Warn().Str("folder", dir.Name()).Msg("skipping unrecognized platform folder")
				continue
			}

			files := a.listRomFiles(filepath.Join(romsRoot, dir.Name()), slug, logger)
			for _, obs := range files {
				if ctx.Err() != nil {
					return
				}
				scanned++
				sink.Report(job.Progress{
					Scope:   a.Name(),
					Total:   total,
					Current: scanned,
					Item:    obs.Name,
				})
				throttledLogger.Info().Int64("scanned", scanned).Int64("total", total).Msg("scanning roms")
				if !yield(obs, nil) {
					return
				}
			}
		}
	}, nil
}

func (a *LocalAdapter) listRomFiles(dir, slug string, logger zerolog.Logger) []ObservedRom {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("could not read platform folder")
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []ObservedRom
	for _, entry := range entries {
		if entry.IsDir() || !isRomFile(slug, entry.Name()) {
			continue
		}
		obs := ObservedRom{
			PlatformSlug: slug,
			FileName:     entry.Name(),
			Name:         romDisplayName(entry.Name()),
			Path:         filepath.Join(dir, entry.Name()),
		}
		if info, err := entry.Info(); err == nil {
			size := info.Size()
			obs.Size = &size
		} else {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("could not stat rom file")
		}
		out = append(out, obs)
	}
	return out
}

func (a *LocalAdapter) countRomFiles(romsRoot string, layout platform.Layout) int64 {
	var count int64
	dirs, err := os.ReadDir(romsRoot)
	if err != nil {
		return 0
	}
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		slug, ok := platform.ResolveLayoutFolder(dir.Name(), layout)
		if !ok {
			continue
		}
		files, err := os.ReadDir(filepath.Join(romsRoot, dir.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if !f.IsDir() && isRomFile(slug, f.Name()) {
				count++
			}
		}
	}
	return count
}

// TestConnection detects the layout and counts platforms and roms without
// touching the catalog.
func (a *LocalAdapter) TestConnection(ctx context.Context) (TestResult, error) {
	info, err := os.Stat(a.Root)
	if err != nil || !info.IsDir() {
		return TestResult{}, fmt.Errorf("path does not exist or is not a directory: %s", a.Root)
	}

	layout := platform.DetectLayout(a.Root)
	romsRoot := platform.RomsRoot(a.Root, layout)

	result := TestResult{Detail: string(layout)}
	dirs, err := os.ReadDir(romsRoot)
	if err != nil {
		return result, err
	}
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !dir.IsDir() {
			continue
		}
		slug, ok := platform.ResolveLayoutFolder(dir.Name(), layout)
		if !ok {
			continue
		}
		files, err := os.ReadDir(filepath.Join(romsRoot, dir.Name()))
		if err != nil {
			continue
		}
		var n int64
		for _, f := range files {
			if !f.IsDir() && isRomFile(slug, f.Name()) {
				n++
			}
		}
		if n > 0 {
			result.PlatformCount++
			result.RomCount += n
		}
	}
	return result, nil
}

func isRomFile(slug, name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	return platform.RecognizesExtension(slug, ext)
}

// romDisplayName strips the extension: "Foo (USA).gba" -> "Foo (USA)".
func romDisplayName(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
