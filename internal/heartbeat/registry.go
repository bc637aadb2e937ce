// Package heartbeat tracks the liveness of long running components such as
// connectors and the checkpoint scheduler.
package heartbeat

import (
	"slices"
	"strings"
	"sync"
	"time"
)

type State string

const (
	StateStarting State = "starting"
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateDisabled State = "disabled"
	StateStopped  State = "stopped"
	StateStale    State = "stale"

	OverallUnknown State = "unknown"
	OverallIdle    State = "idle"
)

// Reporter is the write side handed to components.
type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          State  `json:"state"`
	Reported       State  `json:"reported_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         State             `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

type component struct {
	state     State
	message   string
	err       string
	lastBeat  time.Time
	updatedAt time.Time
}

type Registry struct {
	mu         sync.RWMutex
	components map[string]component
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		components: map[string]component{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) Starting(name, message string) {
	r.record(name, StateStarting, message, nil, false)
}

func (r *Registry) Beat(name, message string) {
	r.record(name, StateHealthy, message, nil, true)
}

func (r *Registry) Degrade(name, message string, err error) {
	r.record(name, StateDegraded, message, err, false)
}

func (r *Registry) Disabled(name, message string) {
	r.record(name, StateDisabled, message, nil, false)
}

func (r *Registry) Stopped(name, message string) {
	r.record(name, StateStopped, message, nil, false)
}

func (r *Registry) record(name string, state State, message string, err error, beat bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.components[name]
	current.state = state
	current.message = strings.TrimSpace(message)
	current.err = ""
	if err != nil {
		current.err = strings.TrimSpace(err.Error())
	}
	current.updatedAt = now
	if beat || current.lastBeat.IsZero() {
		current.lastBeat = now
	}
	r.components[name] = current
}

// Snapshot reports every component sorted by name. Healthy or starting
// components whose last beat is older than staleAfter are reported stale;
// staleAfter <= 0 disables the check.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	statuses := make([]ComponentStatus, 0, len(r.components))
	for name, current := range r.components {
		status := ComponentStatus{
			Name:           name,
			State:          current.state,
			Reported:       current.state,
			Message:        current.message,
			Error:          current.err,
			LastBeatAtUnix: current.lastBeat.Unix(),
			UpdatedAtUnix:  current.updatedAt.Unix(),
		}
		live := current.state == StateHealthy || current.state == StateStarting
		if staleAfter > 0 && live && now.Sub(current.lastBeat) > staleAfter {
			status.State = StateStale
		}
		statuses = append(statuses, status)
	}
	r.mu.RUnlock()

	slices.SortFunc(statuses, func(a, b ComponentStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(statuses),
		Components:      statuses,
	}
}

func IsDegraded(state State) bool {
	return state == StateDegraded || state == StateStale
}

func overall(statuses []ComponentStatus) State {
	if len(statuses) == 0 {
		return OverallUnknown
	}
	starting, active := false, false
	for _, status := range statuses {
		switch status.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateStarting:
			starting, active = true, true
		case StateDisabled, StateStopped:
		default:
			active = true
		}
	}
	switch {
	case starting:
		return StateStarting
	case active:
		return StateHealthy
	default:
		return OverallIdle
	}
}

// Discard is a Reporter that drops every update.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Starting(string, string)       {}
func (discard) Beat(string, string)           {}
func (discard) Degrade(string, string, error) {}
func (discard) Disabled(string, string)       {}
func (discard) Stopped(string, string)        {}
