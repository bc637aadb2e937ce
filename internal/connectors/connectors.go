// Package connectors defines what the runtime expects from a chat transport.
package connectors

import (
	"context"

	"github.com/dwizi/trapper/internal/heartbeat"
)

type Connector interface {
	Name() string
	// Start runs until ctx is cancelled and returns only after every
	// message handler it dispatched has finished.
	Start(ctx context.Context) error
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
