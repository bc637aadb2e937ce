package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/trapper/internal/chat"
	"github.com/dwizi/trapper/internal/config"
	"github.com/dwizi/trapper/internal/connectors"
	"github.com/dwizi/trapper/internal/heartbeat"
	"github.com/dwizi/trapper/internal/persist"
	"github.com/dwizi/trapper/internal/scheduler"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	store            persist.Store
	snapshots        *persist.Manager
	registry         *chat.Registry
	aliases          *chat.AliasRegistry
	httpServer       *http.Server
	scheduler        *scheduler.Service
	connectors       []connectors.Connector
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
