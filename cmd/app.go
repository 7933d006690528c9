package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"timer-tracker.com/timer-tracker/internal/clock"
	config "timer-tracker.com/timer-tracker/internal/configs"
	"timer-tracker.com/timer-tracker/internal/logging"
	repository "timer-tracker.com/timer-tracker/internal/repositories"
	"timer-tracker.com/timer-tracker/internal/services"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	repo      *repository.TimerRepository
	countdown *services.CountdownService
	timers    *services.TimerService
	bulk      *services.BulkService
	close     func()
}

func newApp() (*app, error) {
	loadErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	if loadErr != nil {
		logger.Debug(".env file not found, using environment variables")
	}

	store, closeStore, err := config.NewStore(cfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		repo:   repository.NewTimerRepository(store, cfg.StoreKeyPrefix, logger),
		close:  closeStore,
	}, nil
}

// wire builds the services on top of the repository. Either notifier may be
// nil.
func (a *app) wire(onComplete services.CompletionNotifier, onChange services.ChangeNotifier) {
	a.countdown = services.NewCountdownService(a.repo, clock.System, services.CountdownConfig{
		TickInterval:       a.cfg.TickInterval,
		PersistEvery:       a.cfg.PersistEverySeconds,
		CompletionAttempts: a.cfg.CompletionWriteAttempts,
		RetryBackoff:       services.DefaultCountdownConfig().RetryBackoff,
	}, a.logger,
		services.WithCompletionNotifier(onComplete),
		services.WithChangeNotifier(onChange),
	)
	a.timers = services.NewTimerService(a.repo, a.countdown, clock.System, a.logger, onChange)
	a.bulk = services.NewBulkService(a.repo, a.countdown, a.logger, onChange)
}
