package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solanagram/solanagram/internal/bridge"
	"github.com/solanagram/solanagram/internal/config"
	"github.com/solanagram/solanagram/internal/crypto"
	httphandler "github.com/solanagram/solanagram/internal/handler/http"
	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/metrics"
	"github.com/solanagram/solanagram/internal/server"
	"github.com/solanagram/solanagram/internal/service"
	"github.com/solanagram/solanagram/internal/session"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/supervisor"
	"github.com/solanagram/solanagram/internal/telegram/gotd"
	"github.com/solanagram/solanagram/internal/workers"
	"github.com/solanagram/solanagram/migrations"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

const (
	registrySweepInterval = 120 * time.Second
	reapInterval          = 60 * time.Second
	savedMessagePurge     = 10 * time.Minute
	orphanCleanupInterval = 15 * time.Minute

	savedMessageRetention = 30 * 24 * time.Hour
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("orchestrator")
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx := context.Background()

	cipher, err := crypto.NewCipher(cfg.App.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("error building credential cipher")
	}

	storages, err := store.NewStorages(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating storages")
	}
	defer storages.Close()

	if err := migrations.Migrate(storages.DB().DB); err != nil {
		log.Fatal().Err(err).Msg("error applying migrations")
	}

	loginMetrics := metrics.NewLoginMetrics(prometheus.DefaultRegisterer)

	registry := session.NewRegistry(cfg.Telegram.CacheTTL())
	manager := session.NewManager(registry, gotd.NewFactory(),
		&service.StoreCredentialSource{
			Users:          storages.Users,
			Cipher:         cipher,
			DefaultAPIID:   cfg.Telegram.DefaultAPIID,
			DefaultAPIHash: cfg.Telegram.DefaultAPIHash,
		},
		cfg.Telegram.ConnectTimeout(), 5*time.Second, log)

	opBridge := bridge.New(100, 30*time.Second, log)
	defer opBridge.Close()

	runtime, err := supervisor.NewDockerRuntime(cfg.Supervisor.DockerHost, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting container runtime")
	}
	sup := supervisor.New(runtime, storages, cipher, cfg.Supervisor, cfg.Storage.DatabaseURL, log)

	services := service.NewServices(service.Deps{
		Config:     cfg,
		Storages:   storages,
		Cipher:     cipher,
		Bridge:     opBridge,
		Manager:    manager,
		Supervisor: sup,
		Metrics:    loginMetrics,
		Logger:     log,
	})

	cleaner := workers.NewCleaner(log, cleanupTasks(cfg, registry, sup, storages, log)...)
	cleaner.Start(ctx)

	handler := httphandler.NewHandler(services, log)
	srv := server.NewServer(handler.Init(), cfg.Server, log, cleaner.Stop)

	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server terminated with error")
	}
}

// cleanupTasks assembles the background loop set: registry sweep, container
// reap, saved-message purge, orphan retirement, and the optional
// message-log purge knob.
func cleanupTasks(cfg *config.Config, registry *session.Registry, sup *supervisor.Supervisor,
	storages *store.Storages, log *logger.Logger) []workers.Task {
	tasks := []workers.Task{
		{
			Name:     "registry-sweep",
			Interval: registrySweepInterval,
			Run: func(ctx context.Context) error {
				if evicted := registry.Sweep(); len(evicted) > 0 {
					log.Info().Strs("phones", evicted).Msg("evicted expired client handles")
				}
				return nil
			},
		},
		{
			Name:     "container-reap",
			Interval: reapInterval,
			Run: func(ctx context.Context) error {
				report, err := sup.Reap(ctx)
				if err != nil {
					return err
				}
				if report.Vanished+report.Exited > 0 {
					log.Warn().Int("vanished", report.Vanished).Int("exited", report.Exited).Msg("reaped dead workers")
				}
				return nil
			},
		},
		{
			Name:     "saved-message-purge",
			Interval: savedMessagePurge,
			Run: func(ctx context.Context) error {
				deleted, err := storages.SavedMessages.CleanupOld(ctx, savedMessageRetention)
				if err != nil {
					return err
				}
				if deleted > 0 {
					log.Info().Int64("deleted", deleted).Msg("purged old saved messages")
				}
				return nil
			},
		},
		{
			Name:     "orphan-cleanup",
			Interval: orphanCleanupInterval,
			Run: func(ctx context.Context) error {
				retired, err := sup.CleanupOrphaned(ctx)
				if err != nil {
					return err
				}
				if retired > 0 {
					log.Info().Int64("retired", retired).Msg("retired orphaned worker rows")
				}
				return nil
			},
		},
	}

	if cfg.Supervisor.MessageLogRetention > 0 {
		retention := time.Duration(cfg.Supervisor.MessageLogRetention) * 24 * time.Hour
		tasks = append(tasks, workers.Task{
			Name:     "message-log-purge",
			Interval: time.Hour,
			Run: func(ctx context.Context) error {
				deleted, err := storages.MessageLogs.PurgeOlderThan(ctx, retention)
				if err != nil {
					return err
				}
				if deleted > 0 {
					log.Info().Int64("deleted", deleted).Msg("purged old message logs")
				}
				return nil
			},
		})
	}

	return tasks
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
