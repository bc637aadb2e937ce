package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/trapper/internal/config"
	"github.com/dwizi/trapper/internal/connectors"
	"github.com/dwizi/trapper/internal/connectors/discord"
	"github.com/dwizi/trapper/internal/connectors/telegram"
	"github.com/dwizi/trapper/internal/gateway"
	"github.com/dwizi/trapper/internal/heartbeat"
	"github.com/dwizi/trapper/internal/httpapi"
	"github.com/dwizi/trapper/internal/kvstore"
	"github.com/dwizi/trapper/internal/persist"
	"github.com/dwizi/trapper/internal/scheduler"
	"github.com/dwizi/trapper/internal/store"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// OpenSnapshots opens the configured document store and a snapshot manager
// over it. The caller closes the store.
func OpenSnapshots(ctx context.Context, cfg config.Config, logger *slog.Logger) (*persist.Manager, persist.Store, error) {
	var (
		backend persist.Store
		err     error
	)
	switch cfg.Storage {
	case config.StorageFiles:
		backend, err = persist.NewDirBackend(cfg.SnapshotDir)
	case config.StorageBadger:
		backend, err = kvstore.Open(kvstore.Config{
			Path:       cfg.BadgerDir,
			SyncWrites: true,
			Logger:     logger.With("component", "badger"),
		})
	default:
		backend, err = openSQLite(ctx, cfg.DBPath)
	}
	if err != nil {
		return nil, nil, err
	}
	manager := persist.NewManager(backend, logger.With("component", "snapshot", "backend", string(cfg.Storage)))
	return manager, backend, nil
}

func openSQLite(ctx context.Context, path string) (*store.Store, error) {
	sqlStore, err := store.New(path)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(ctx); err != nil {
		sqlStore.Close()
		return nil, err
	}
	return sqlStore, nil
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()
	snapshots, backend, err := OpenSnapshots(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	registry, aliases := snapshots.Load(ctx)
	logger.Info("snapshot loaded", "storage", cfg.Storage, "chats", registry.Len(), "aliases", aliases.Len())

	var heartbeatRegistry *heartbeat.Registry
	if cfg.HeartbeatEnabled {
		heartbeatRegistry = heartbeat.NewRegistry()
		heartbeatRegistry.Starting("runtime", "booting")
		heartbeatRegistry.Starting("api", "initializing")
	}

	checkpoints, err := scheduler.New(cfg.CheckpointCron, registry, aliases, snapshots, logger.With("component", "checkpoint"))
	if err != nil {
		backend.Close()
		return nil, err
	}

	commandGateway := gateway.New(registry, aliases, logger.With("component", "gateway"), gateway.WithLearning(cfg.LearnMessages))

	deps := httpapi.Dependencies{
		Config:              cfg,
		Version:             Version,
		Storage:             backend,
		Registry:            registry,
		Aliases:             aliases,
		Gateway:             commandGateway,
		Logger:              logger.With("component", "api"),
		Heartbeat:           heartbeatRegistry,
		HeartbeatStaleAfter: time.Duration(cfg.HeartbeatStaleSec) * time.Second,
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	connectorList := []connectors.Connector{}
	if strings.TrimSpace(cfg.DiscordToken) != "" {
		connectorList = append(connectorList, discord.New(
			cfg.DiscordToken,
			cfg.DiscordAPI,
			cfg.DiscordWSURL,
			commandGateway,
			logger.With("connector", "discord"),
		))
	} else if heartbeatRegistry != nil {
		heartbeatRegistry.Disabled("connector:discord", "token missing")
	}
	if strings.TrimSpace(cfg.TelegramToken) != "" {
		connectorList = append(connectorList, telegram.New(
			cfg.TelegramToken,
			cfg.TelegramAPI,
			cfg.TelegramPoll,
			commandGateway,
			logger.With("connector", "telegram"),
			telegram.WithCommandSync(cfg.CommandSyncEnabled),
		))
	} else if heartbeatRegistry != nil {
		heartbeatRegistry.Disabled("connector:telegram", "token missing")
	}

	runtime := &Runtime{
		cfg:        cfg,
		logger:     logger,
		store:      backend,
		snapshots:  snapshots,
		registry:   registry,
		aliases:    aliases,
		httpServer: httpServer,
		scheduler:  checkpoints,
		connectors: connectorList,
	}
	if heartbeatRegistry == nil {
		return runtime, nil
	}

	var reporting []heartbeatAware
	for _, connector := range connectorList {
		reporting = append(reporting, connector)
	}
	reporting = append(reporting, checkpoints)
	for _, component := range reporting {
		component.SetHeartbeatReporter(heartbeatRegistry)
	}
	notifier := newHeartbeatNotifier(logger.With("component", "heartbeat-notifier"))
	runtime.heartbeat = heartbeatRegistry
	runtime.heartbeatMonitor = heartbeat.NewMonitor(heartbeatRegistry, heartbeat.MonitorConfig{
		Interval:     time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
		StaleAfter:   time.Duration(cfg.HeartbeatStaleSec) * time.Second,
		Logger:       logger,
		OnTransition: notifier.HandleTransition,
	})
	return runtime, nil
}
