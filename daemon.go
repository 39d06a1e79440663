package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/romkeeper/romkeeper/catalog"
	"github.com/romkeeper/romkeeper/config"
	"github.com/romkeeper/romkeeper/job"
	"github.com/romkeeper/romkeeper/romfile"
	"github.com/romkeeper/romkeeper/scheduler"
)

func daemonCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	// One daemon per database. A second instance would race the scheduler.
	lock := flock.New(args.Daemon.Database + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("could not acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already running on %s", args.Daemon.Database)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	cfg, err := config.LoadFromFile(args.Daemon.Config)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	db, err := openCatalog(ctx, args.Daemon.Database, logger)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	registry := job.NewRegistry(logger)
	sched := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	err = addSyncJobsFromConfig(ctx, sched, cfg, db, registry, logger)
	if err != nil {
		return fmt.Errorf("could not add sync jobs: %w", err)
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	startConfigFileWatcher(ctx, args.Daemon.Config, logger, ticker, func(cfg *config.Config) {
		sched.RemoveJobs()
		err := addSyncJobsFromConfig(ctx, sched, cfg, db, registry, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to add sync jobs")
		}
	})

	sched.Start()
	defer sched.Stop()

	<-ctx.Done()

	return nil
}

func addSyncJobsFromConfig(
	ctx context.Context,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	db *catalog.Database,
	registry *job.Registry,
	logger zerolog.Logger,
) error {
	names := make(map[string]struct{})

	for _, cfgSource := range cfg.Sources {
		src, err := reconcileConfigSource(ctx, db, &cfgSource)
		if err != nil {
			logger.Warn().AnErr("cause", err).Msg("skipping source")
			continue
		}

		if _, ok := names[cfgSource.Name]; ok {
			logger.Warn().Str("source", cfgSource.Name).Msg("skipping duplicate source")
			continue
		}
		names[cfgSource.Name] = struct{}{}

		if !cfgSource.Enable {
			logger.Info().Str("source", cfgSource.Name).Msg("skipping disabled source")
			continue
		}

		syncJob := &scheduledSync{
			ctx:         ctx,
			db:          db,
			source:      src,
			registry:    registry,
			maxHashSize: cfg.MaxHashSize.Size,
			logger:      logger,
		}
		if err := sched.AddSyncJob(ctx, cfgSource.Schedule, syncJob); err != nil {
			logger.Error().Err(err).Str("source", cfgSource.Name).Msg("could not add sync job")
			continue
		}

		if src.Type == catalog.SourceLocal {
			startTreeWatcher(ctx, src.Path, logger, syncJob)
		}

		logger.Info().
			Object("source", cfgSource).
			Msg("added sync job")
	}
	return nil
}

// reconcileConfigSource upserts a declarative config source into the
// catalog by name.
func reconcileConfigSource(ctx context.Context, db *catalog.Database, cfgSource *config.ConfigSource) (*catalog.Source, error) {
	if cfgSource.Name == "" {
		return nil, fmt.Errorf("source must have a name")
	}
	if cfgSource.Schedule == "" {
		return nil, fmt.Errorf("source must have a schedule")
	}

	srcType := catalog.SourceType(cfgSource.Type)
	switch srcType {
	case catalog.SourceLocal:
		if cfgSource.Path == "" {
			return nil, fmt.Errorf("local source must have a path")
		}
	case catalog.SourceRomm:
		if cfgSource.URL == "" {
			return nil, fmt.Errorf("romm source must have a url")
		}
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfgSource.Type)
	}

	creds, err := encodeCredentials(sourceCredentials{
		Username: cfgSource.Username,
		Password: cfgSource.Password,
	})
	if err != nil {
		return nil, err
	}

	sources, err := db.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		if sources[i].Name != cfgSource.Name {
			continue
		}
		src := &sources[i]
		src.Type = srcType
		src.Path = cfgSource.Path
		src.URL = cfgSource.URL
		src.Credentials = creds
		src.Enabled = cfgSource.Enable
		if err := db.UpdateSource(ctx, src); err != nil {
			return nil, err
		}
		return src, nil
	}

	src := &catalog.Source{
		Name:        cfgSource.Name,
		Type:        srcType,
		Path:        cfgSource.Path,
		URL:         cfgSource.URL,
		Credentials: creds,
		Enabled:     cfgSource.Enable,
	}
	if err := db.AddSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, ticker *time.Ticker, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := romfile.WatchFile(ctx, cfgPath, when(ctx, ticker.C), func(err error) {
		logger.Error().Err(err).Msg("could not watch config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher:
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading")

				cfg, err := config.LoadFromFile(cfgPath)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}

// startTreeWatcher triggers an out-of-schedule sync when a local source
// tree changes shape.
func startTreeWatcher(ctx context.Context, root string, logger zerolog.Logger, syncJob *scheduledSync) {
	ticker := time.NewTicker(time.Minute)
	watcher, err := romfile.WatchTree(ctx, root, when(ctx, ticker.C), func(err error) {
		logger.Error().Err(err).Str("root", root).Msg("could not watch source tree")
	})
	if err != nil {
		ticker.Stop()
		logger.Error().Err(err).Str("root", root).Msg("could not watch source tree")
		return
	}

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher:
				logger.Info().Str("root", root).Msg("source tree changed, syncing")
				syncJob.Run()
			}
		}
	}()
}

// when forwards each receive as an empty signal. Cancellation unblocks a
// pending send so the goroutine never outlives the daemon.
func when[T any](ctx context.Context, ch <-chan T) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

type scheduledSync struct {
	ctx         context.Context
	db          *catalog.Database
	source      *catalog.Source
	registry    *job.Registry
	maxHashSize int64
	logger      zerolog.Logger
}

func (s *scheduledSync) Run() {
	handle, err := s.registry.Start(s.ctx, job.KindSync, s.source.Name, func(ctx context.Context, h *job.Handle, sink job.Sink) error {
		adapter, err := buildAdapter(s.source, s.logger)
		if err != nil {
			return err
		}
		_, err = s.db.SyncSource(ctx, catalog.SyncParams{
			Source:      s.source,
			Adapter:     adapter,
			Sink:        sink,
			Logger:      s.logger,
			MaxHashSize: s.maxHashSize,
			OnItemError: func(string, error) { h.AddItemError() },
		})
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("source", s.source.Name).Msg("sync not started")
		return
	}

	report := job.Wait(handle)
	if report.Status == job.StatusFailed {
		s.logger.Error().Str("error", report.Err).Str("source", s.source.Name).Msg("sync job failed")
	}
}
