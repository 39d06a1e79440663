package source

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/job"
	"github.com/romkeeper/romkeeper/platform"
)

const rommPageSize = 100

// RommAdapter lists a remote RomM catalog. Remote platform slugs are mapped
// to local slugs through the folder-alias registry; roms on unmapped
// platforms are skipped with a warning.
type RommAdapter struct {
	client *RommClient
	label  string
	logger zerolog.Logger
}

func NewRommAdapter(client *RommClient, label string, logger zerolog.Logger) *RommAdapter {
	return &RommAdapter{
		client: client,
		label:  label,
		logger: logger.With().Str("adapter", "romm").Str("source", label).Logger(),
	}
}

func (a *RommAdapter) Name() string {
	return "romm:" + a.label
}

// List paginates the remote catalog. A page failure is yielded as the
// sequence's terminal error; items already yielded stand.
func (a *RommAdapter) List(ctx context.Context, sink job.Sink) (iter.Seq2[ObservedRom, error], error) {
	platforms, err := a.client.Platforms(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list remote platforms: %w", err)
	}

	slugByRemoteID := make(map[int64]string, len(platforms))
	var total int64
	for _, p := range platforms {
		total += p.RomCount
		if slug, ok := platform.ResolveFolder(p.Slug); ok {
			slugByRemoteID[p.ID] = slug
		} else {
			a.logger.Warn().Str("remote_slug", p.Slug).Msg("skipping unmapped remote platform")
		}
	}

	return func(yield func(ObservedRom, error) bool) {
		a.logger.Info().Int64("total", total).Msg("start listing remote catalog")

		var current int64
		throttledLogger := a.logger.Sample(&zerolog.BurstSampler{
			Burst:  1,
			Period: 1 * time.Second,
		})

		var offset int64
		for {
			if ctx.Err() != nil {
				return
			}
			items, _, err := a.client.RomsPage(ctx, rommPageSize, offset)
			if err != nil {
				yield(ObservedRom{}, fmt.Errorf("could not fetch catalog page at offset %d: %w", offset, err))
				return
			}
			if len(items) == 0 {
				a.logger.Info().Int64("listed", current).Msg("done listing remote catalog")
				return
			}

			for _, item := range items {
				if ctx.Err() != nil {
					return
				}
				current++

				slug, ok := slugByRemoteID[item.PlatformID]
				if !ok {
					continue
				}

				name := item.Name
				if name == "" {
					name = romDisplayName(item.FsName)
				}
				obs := ObservedRom{
					PlatformSlug: slug,
					Name:         name,
					FileName:     item.FsName,
					Size:         item.FsSizeBytes,
					RemoteID:     fmt.Sprintf("%d", item.ID),
					RemoteURL:    fmt.Sprintf("%s/api/roms/%d/content", a.client.baseURL, item.ID),
					HashMD5:      item.HashMD5,
					Regions:      item.Regions,
				}

				sink.Report(job.Progress{
					Scope:   a.Name(),
					Total:   total,
					Current: current,
					Item:    obs.Name,
				})
				throttledLogger.Info().Int64("listed", current).Int64("total", total).Msg("listing remote catalog")

				if !yield(obs, nil) {
					return
				}
			}
			offset += int64(len(items))
		}
	}, nil
}

// TestConnection authenticates and counts remote platforms and roms.
func (a *RommAdapter) TestConnection(ctx context.Context) (TestResult, error) {
	platforms, err := a.client.Platforms(ctx)
	if err != nil {
		return TestResult{}, err
	}
	result := TestResult{PlatformCount: len(platforms)}
	for _, p := range platforms {
		result.RomCount += p.RomCount
	}
	return result, nil
}
