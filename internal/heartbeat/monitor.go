package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	From      State  `json:"from"`
	To        State  `json:"to"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type MonitorConfig struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	Logger       *slog.Logger
	OnTransition func(Transition)
}

// Monitor polls the registry and hands state changes to OnTransition, so a
// connector going stale is noticed even when nobody polls the HTTP endpoint.
// Operator-facing logging belongs to the callback.
type Monitor struct {
	registry     *Registry
	interval     time.Duration
	staleAfter   time.Duration
	logger       *slog.Logger
	onTransition func(Transition)
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry:     registry,
		interval:     interval,
		staleAfter:   cfg.StaleAfter,
		logger:       logger.With("component", "heartbeat"),
		onTransition: cfg.OnTransition,
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.logger.Info("heartbeat monitor started", "interval", m.interval.String(), "stale_after", m.staleAfter.String())

	previous := map[string]State{}
	for {
		m.observe(m.registry.Snapshot(m.staleAfter), previous)
		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) observe(snapshot Snapshot, previous map[string]State) {
	for _, status := range snapshot.Components {
		before, seen := previous[status.Name]
		previous[status.Name] = status.State
		if !seen || before == status.State {
			continue
		}
		transition := Transition{
			Component: status.Name,
			From:      before,
			To:        status.State,
			Message:   status.Message,
			Error:     status.Error,
		}
		m.logger.Debug("component state changed", "name", transition.Component, "from", transition.From, "to", transition.To)
		if m.onTransition != nil {
			m.onTransition(transition)
		}
	}
}
