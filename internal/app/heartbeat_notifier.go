package app

import (
	"log/slog"

	"github.com/dwizi/trapper/internal/heartbeat"
	"github.com/dwizi/trapper/internal/metrics"
)

type heartbeatNotifier struct {
	logger *slog.Logger
}

func newHeartbeatNotifier(logger *slog.Logger) *heartbeatNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &heartbeatNotifier{logger: logger}
}

// HandleTransition counts every transition and logs the ones an operator
// would page on.
func (n *heartbeatNotifier) HandleTransition(transition heartbeat.Transition) {
	metrics.ComponentTransitions.WithLabelValues(transition.Component, string(transition.To)).Inc()
	switch heartbeatTransitionType(transition) {
	case "degraded":
		n.logger.Warn("component degraded",
			"component", transition.Component,
			"from", transition.From,
			"to", transition.To,
			"detail", transition.Message,
			"error", transition.Error,
		)
	case "recovered":
		n.logger.Info("component recovered", "component", transition.Component, "from", transition.From)
	}
}

func heartbeatTransitionType(transition heartbeat.Transition) string {
	fromDegraded := heartbeat.IsDegraded(transition.From)
	toDegraded := heartbeat.IsDegraded(transition.To)
	switch {
	case !fromDegraded && toDegraded:
		return "degraded"
	case fromDegraded && transition.To == heartbeat.StateHealthy:
		return "recovered"
	default:
		return ""
	}
}
