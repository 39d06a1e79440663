package enrich

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/romkeeper/romkeeper/catalog"
	"github.com/romkeeper/romkeeper/job"
)

const launchboxMetadataURL = "https://gamesdb.launchbox-app.com/Metadata.zip"

// ErrDatasetMissing means the offline dataset was never imported.
var ErrDatasetMissing = errors.New("launchbox dataset not imported")

// LaunchboxProvider answers from the locally imported LaunchBox dataset.
// Per-rom lookups never go to the network, which makes it the preferred
// first hop in the precedence order; the orchestrator downloads the
// dataset once up front when it is absent.
type LaunchboxProvider struct {
	db         *catalog.Database
	datasetURL string
}

// LaunchboxOption configures a LaunchboxProvider.
type LaunchboxOption func(*LaunchboxProvider)

// WithLaunchboxDatasetURL overrides where the offline dataset archive is
// downloaded from.
func WithLaunchboxDatasetURL(url string) LaunchboxOption {
	return func(p *LaunchboxProvider) {
		if url != "" {
			p.datasetURL = url
		}
	}
}

func NewLaunchboxProvider(db *catalog.Database, opts ...LaunchboxOption) *LaunchboxProvider {
	p := &LaunchboxProvider{
		db:         db,
		datasetURL: launchboxMetadataURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Provider = (*LaunchboxProvider)(nil)

func (p *LaunchboxProvider) Name() string { return "launchbox" }

// datasetReady reports whether the offline dataset has been imported.
func (p *LaunchboxProvider) datasetReady(ctx context.Context) (bool, error) {
	var count int64
	if err := p.db.Cli.WithContext(ctx).Model(&catalog.LaunchboxGame{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Fetch looks the rom up by normalized name within the platform's
// LaunchBox platform name. A still-empty dataset (the up-front download
// failed or was skipped) counts as missing credentials so the orchestrator
// disables the provider for the rest of the run.
func (p *LaunchboxProvider) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Platform.LaunchboxName == nil {
		return nil, ErrNotFound
	}

	ready, err := p.datasetReady(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentials, ErrDatasetMissing)
	}

	var game catalog.LaunchboxGame
	err = p.db.Cli.WithContext(ctx).
		Where("platform = ? AND name_key = ?", *req.Platform.LaunchboxName, NameKey(req.Rom.Name)).
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		RemoteID:    game.DatabaseID,
		Description: game.Overview,
		Developer:   game.Developer,
		Publisher:   game.Publisher,
		ReleaseDate: game.ReleaseDate,
		Genres:      game.Genres,
		Raw:         fmt.Sprintf(`{"database_id":%q,"name":%q}`, game.DatabaseID, game.Name),
	}
	if game.CommunityRating != nil && *game.CommunityRating > 0 {
		rating := *game.CommunityRating * 2 // 0-5 -> 0-10
		result.Rating = &rating
	}
	return result, nil
}

// ImportDataset downloads the LaunchBox metadata archive and replaces the
// local dataset tables. The download lands in a temp file first; the
// dataset swap is transactional per batch with a full wipe up front, so a
// failed import needs a re-run but never mixes versions silently.
func ImportDataset(ctx context.Context, db *catalog.Database, sink job.Sink, logger zerolog.Logger) error {
	return importDatasetFrom(ctx, db, launchboxMetadataURL, sink, logger)
}

func importDatasetFrom(ctx context.Context, db *catalog.Database, url string, sink job.Sink, logger zerolog.Logger) error {
	if sink == nil {
		sink = job.NopSink()
	}

	archivePath, err := downloadArchive(ctx, url, sink, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(archivePath)
	}()

	return importArchive(ctx, db, archivePath, sink, logger)
}

func downloadArchive(ctx context.Context, url string, sink job.Sink, logger zerolog.Logger) (string, error) {
	sink.Report(job.Progress{Scope: "launchbox", Phase: "downloading_db"})
	logger.Info().Str("url", url).Msg("downloading launchbox dataset")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := (&http.Client{Timeout: 30 * time.Minute}).Do(req)
	if err != nil {
		return "", fmt.Errorf("could not download dataset: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dataset download failed: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "launchbox-metadata-*.zip")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("could not store dataset archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

type lbGame struct {
	DatabaseID      string  `xml:"DatabaseID"`
	Name            string  `xml:"Name"`
	Platform        string  `xml:"Platform"`
	Overview        string  `xml:"Overview"`
	Developer       string  `xml:"Developer"`
	Publisher       string  `xml:"Publisher"`
	Genres          string  `xml:"Genres"`
	ReleaseDate     string  `xml:"ReleaseDate"`
	CommunityRating float64 `xml:"CommunityRating"`
}

type lbImage struct {
	DatabaseID string `xml:"DatabaseID"`
	FileName   string `xml:"FileName"`
	Type       string `xml:"Type"`
	Region     string `xml:"Region"`
}

const lbBatchSize = 500

func importArchive(ctx context.Context, db *catalog.Database, archivePath string, sink job.Sink, logger zerolog.Logger) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("could not open dataset archive: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	var metadata *zip.File
	for _, f := range reader.File {
		if strings.EqualFold(filepath.Base(f.Name), "Metadata.xml") {
			metadata = f
			break
		}
	}
	if metadata == nil {
		return errors.New("dataset archive has no Metadata.xml")
	}

	db.Lock.Lock()
	defer db.Lock.Unlock()

	if err := db.Cli.WithContext(ctx).Where("1 = 1").Delete(&catalog.LaunchboxGame{}).Error; err != nil {
		return err
	}
	if err := db.Cli.WithContext(ctx).Where("1 = 1").Delete(&catalog.LaunchboxImage{}).Error; err != nil {
		return err
	}

	content, err := metadata.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = content.Close()
	}()

	sink.Report(job.Progress{Scope: "launchbox", Phase: "importing_db"})
	throttledLogger := logger.Sample(&zerolog.BurstSampler{
		Burst:  1,
		Period: 1 * time.Second,
	})

	var (
		games    []catalog.LaunchboxGame
		images   []catalog.LaunchboxImage
		imported int64
	)

	flushGames := func() error {
		if len(games) == 0 {
			return nil
		}
		err := db.Cli.WithContext(ctx).CreateInBatches(games, lbBatchSize).Error
		games = games[:0]
		return err
	}
	flushImages := func() error {
		if len(images) == 0 {
			return nil
		}
		err := db.Cli.WithContext(ctx).CreateInBatches(images, lbBatchSize).Error
		images = images[:0]
		return err
	}

	decoder := xml.NewDecoder(content)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("could not parse dataset xml: %w", err)
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "Game":
			var game lbGame
			if err := decoder.DecodeElement(&game, &start); err != nil {
				return fmt.Errorf("could not parse dataset game: %w", err)
			}
			row := catalog.LaunchboxGame{
				DatabaseID:  game.DatabaseID,
				Platform:    game.Platform,
				NameKey:     NameKey(game.Name),
				Name:        game.Name,
				Overview:    game.Overview,
				Developer:   game.Developer,
				Publisher:   game.Publisher,
				Genres:      splitGenres(game.Genres),
				ReleaseDate: game.ReleaseDate,
			}
			if game.CommunityRating > 0 {
				rating := game.CommunityRating
				row.CommunityRating = &rating
			}
			games = append(games, row)
			imported++
			sink.Report(job.Progress{Scope: "launchbox", Phase: "importing_db", Current: imported, Item: game.Name})
			throttledLogger.Info().Int64("imported", imported).Msg("importing launchbox dataset")
			if len(games) >= lbBatchSize {
				if err := flushGames(); err != nil {
					return err
				}
			}
		case "GameImage":
			var image lbImage
			if err := decoder.DecodeElement(&image, &start); err != nil {
				return fmt.Errorf("could not parse dataset image: %w", err)
			}
			images = append(images, catalog.LaunchboxImage{
				DatabaseID: image.DatabaseID,
				Type:       image.Type,
				FileName:   image.FileName,
				Region:     image.Region,
			})
			if len(images) >= lbBatchSize {
				if err := flushImages(); err != nil {
					return err
				}
			}
		}
	}

	if err := flushGames(); err != nil {
		return err
	}
	if err := flushImages(); err != nil {
		return err
	}

	logger.Info().Int64("games", imported).Msg("imported launchbox dataset")
	return nil
}

func splitGenres(raw string) catalog.StringList {
	if raw == "" {
		return nil
	}
	var out catalog.StringList
	for _, g := range strings.Split(raw, ";") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
