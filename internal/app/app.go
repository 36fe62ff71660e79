package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/five82/courier/internal/activity"
	"github.com/five82/courier/internal/config"
	"github.com/five82/courier/internal/evolution"
	"github.com/five82/courier/internal/instance"
	"github.com/five82/courier/internal/logging"
	"github.com/five82/courier/internal/prefs"
	"github.com/five82/courier/internal/state"
	"github.com/five82/courier/internal/ui"
)

// Options configure the courier application.
type Options struct {
	ConfigPath string
	PrefsPath  string        // empty uses default ~/.config/courier/prefs.toml
	PollEvery  time.Duration // zero uses the configured poll-interval
}

// Run boots courier until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = opts.PollEvery
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("poll override: %w", err)
		}
	}

	logPath := logging.Path(cfg.DataDir)
	logger, level, err := logging.New(logPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("instance", cfg.Instance))
	logger.Info("courier starting",
		zap.String("gateway", cfg.GatewayURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("artifact_source", cfg.ArtifactSource))

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("load prefs", zap.Error(err))
	}

	journal, err := activity.Open(filepath.Join(cfg.DataDir, activity.FileName), logger.Named("activity"))
	if err != nil {
		return fmt.Errorf("open activity journal: %w", err)
	}
	defer func() { _ = journal.Close() }()

	client, err := evolution.NewClient(cfg.GatewayURL, cfg.APIKey, evolution.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return fmt.Errorf("init gateway client: %w", err)
	}

	store := &state.Store{}
	reconciler, err := instance.NewReconciler(client, instance.Options{
		Instance:  cfg.Instance,
		Interval:  cfg.PollInterval,
		Source:    cfg.Source(),
		Notifier:  instance.Notifiers{store, journal},
		Publisher: store,
		Logger:    logger.Named("reconciler"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	g.Go(func() error {
		return RunPruner(gctx, journal, cfg.Instance, activity.DefaultRetention, defaultPruneInterval, logger)
	})
	g.Go(func() error {
		// Quitting the UI stops everything else.
		defer cancel()
		return ui.Run(ui.Options{
			Context:     gctx,
			Controller:  reconciler,
			Store:       store,
			Activity:    journal,
			LogPath:     logPath,
			LogLevel:    &level,
			ArtifactDir: userPrefs.ArtifactDirOr(cfg.DataDir),
			Prefs:       userPrefs,
			PrefsPath:   opts.PrefsPath,
			Gateway:     client.BaseURL(),
		})
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("courier stopped", zap.Error(err))
	return err
}
