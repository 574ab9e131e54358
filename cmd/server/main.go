// Package main is the entry point for the tickernav watchlist return engine.
// It wires the databases, market data provider, schedulers, and HTTP server,
// then runs until an interrupt signal arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/avramidis/tickernav/internal/clientdata"
	"github.com/avramidis/tickernav/internal/clients/alphavantage"
	"github.com/avramidis/tickernav/internal/config"
	"github.com/avramidis/tickernav/internal/database"
	"github.com/avramidis/tickernav/internal/domain"
	"github.com/avramidis/tickernav/internal/events"
	"github.com/avramidis/tickernav/internal/modules/nav"
	"github.com/avramidis/tickernav/internal/modules/refresh"
	"github.com/avramidis/tickernav/internal/modules/returns"
	"github.com/avramidis/tickernav/internal/modules/ticker"
	"github.com/avramidis/tickernav/internal/modules/watchlist"
	"github.com/avramidis/tickernav/internal/reliability"
	"github.com/avramidis/tickernav/internal/scheduler"
	"github.com/avramidis/tickernav/internal/server"
	"github.com/avramidis/tickernav/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting tickernav")

	// Databases. Watchlist data uses the standard profile, provider responses
	// and NAV series use the cache profile (faster, disposable).
	watchlistsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "watchlists.db"),
		Profile: database.ProfileStandard,
		Name:    "watchlists",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open watchlists database")
	}
	defer watchlistsDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := watchlistsDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate watchlists database")
	}
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	// Core plumbing shared across modules.
	bus := events.NewBus(log)
	clock := domain.SystemClock{}
	normalizer := ticker.NewNormalizer(clock, log)

	// Watchlist persistence and service layer.
	watchlistRepo := watchlist.NewRepository(watchlistsDB.Conn(), log)
	watchlists := watchlist.NewService(watchlistRepo, normalizer, bus, clock, log)

	// Market data provider backed by Alpha Vantage with a sqlite response
	// cache. The client is wired even without an API key so the rest of the
	// pipeline stays intact; requests will simply fail and fall back to cache.
	if cfg.AlphaVantageAPIKey == "" {
		log.Warn().Msg("ALPHAVANTAGE_API_KEY not set, live quotes will be unavailable")
	}
	avClient := alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	provider := alphavantage.NewProvider(avClient, cacheRepo, log)

	// NAV computation and the realtime scheduler that aligns recomputes to
	// five minute boundaries.
	sampler := nav.NewSampler(log)
	navCache := nav.NewSeriesCache(cacheDB.Conn())
	realtime := scheduler.NewRealtimeNAV(sampler, bus, clock, domain.SystemTimerFactory{}, log)
	realtime.Start()

	returnsCalc := returns.NewCalculator(log)

	// Refresh pipeline: provider -> merge -> persist -> NAV queue.
	refreshSvc := refresh.NewService(provider, watchlists, realtime, bus, log)

	// Optional off-site backups.
	var backups *reliability.BackupService
	if cfg.Backup != nil && cfg.Backup.Enabled {
		s3, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup store client")
		}
		backups = reliability.NewBackupService(map[string]*database.DB{
			"watchlists": watchlistsDB,
		}, s3, cfg.DataDir, cfg.Backup.Keep, log)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	}

	// Cron jobs.
	cron := scheduler.NewCron(log)
	if err := cron.AddJob(cfg.RefreshSchedule, refresh.NewJob(refreshSvc)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	if err := cron.AddJob(cfg.CleanupSchedule, clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}
	if backups != nil {
		if err := cron.AddJob(cfg.BackupSchedule, reliability.NewBackupJob(backups, bus)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}
	cron.Start()

	srv := server.New(server.Config{
		Log:          log,
		Config:       cfg,
		WatchlistsDB: watchlistsDB,
		CacheDB:      cacheDB,
		Watchlists:   watchlists,
		Refresh:      refreshSvc,
		Returns:      returnsCalc,
		Sampler:      sampler,
		NAVCache:     navCache,
		Realtime:     realtime,
		Cron:         cron,
		Bus:          bus,
		Backups:      backups,
		Provider:     avClient,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	cron.Stop()
	realtime.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
