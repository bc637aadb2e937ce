// Package chat owns the live per-chat state: trigger expressions, thoughts and
// Markov models, plus the alias table that names chats.
package chat

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/dwizi/trapper/internal/expr"
)

var (
	ErrClosed          = errors.New("chat registry is closed")
	ErrMutatorPanic    = errors.New("chat handler panicked")
	ErrEmptyThought    = errors.New("thought is empty")
	ErrEmptyExpression = errors.New("expression has no tree")
)

type entry struct {
	mu     sync.Mutex
	state  *State
	closed bool
}

// Registry maps chat ids to their State. Work on one chat is serialized by
// that chat's lock; different chats never wait on each other. The map lock is
// only held to find or insert an entry, and by Drain.
type Registry struct {
	mu     sync.RWMutex
	chats  map[int64]*entry
	closed bool
	rng    *lockedRand
}

type Option func(*Registry)

// WithRand makes trigger selection, thought picking and generation
// deterministic for a given generator.
func WithRand(rng *rand.Rand) Option {
	return func(registry *Registry) {
		registry.rng = newLockedRand(rng)
	}
}

func NewRegistry(opts ...Option) *Registry {
	return NewRegistryFromStates(nil, opts...)
}

// NewRegistryFromStates builds a registry owning states, as produced by a
// snapshot load.
func NewRegistryFromStates(states map[int64]*State, opts ...Option) *Registry {
	registry := &Registry{chats: make(map[int64]*entry, len(states))}
	for chatID, state := range states {
		if state == nil {
			continue
		}
		if state.Markov == nil {
			state.Markov = NewState().Markov
		}
		registry.chats[chatID] = &entry{state: state}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}
	if registry.rng == nil {
		registry.rng = newLockedRand(nil)
	}
	return registry
}

func (r *Registry) entry(chatID int64) (*entry, error) {
	r.mu.RLock()
	current, ok := r.chats[chatID]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return current, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if current, ok := r.chats[chatID]; ok {
		return current, nil
	}
	created := &entry{state: NewState()}
	r.chats[chatID] = created
	return created, nil
}

// WithChat runs mutate with exclusive access to the chat's state, creating an
// empty state on first use. mutate must not call back into the registry. A
// panic in mutate is returned as ErrMutatorPanic; the chat stays usable.
func (r *Registry) WithChat(chatID int64, mutate func(*State) error) (err error) {
	current, err := r.entry(chatID)
	if err != nil {
		return err
	}
	current.mu.Lock()
	defer current.mu.Unlock()
	if current.closed {
		return ErrClosed
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("chat %d: %w: %v", chatID, ErrMutatorPanic, recovered)
		}
	}()
	return mutate(current.state)
}

func (r *Registry) AddExpression(expression expr.Expression) error {
	if expression.Tree == nil {
		return ErrEmptyExpression
	}
	return r.WithChat(expression.GroupID, func(state *State) error {
		state.Expressions = append(state.Expressions, expression)
		return nil
	})
}

func (r *Registry) AddThought(chatID int64, text string) error {
	thought := strings.TrimSpace(text)
	if thought == "" {
		return ErrEmptyThought
	}
	return r.WithChat(chatID, func(state *State) error {
		state.Thoughts = append(state.Thoughts, thought)
		return nil
	})
}

func (r *Registry) Learn(chatID int64, text string) error {
	return r.WithChat(chatID, func(state *State) error {
		return state.Markov.Learn(text)
	})
}

// MatchTrigger returns the response of the first matching expression after
// shuffling the chat's expressions. With several matches the pick follows the
// shuffle, which is not uniform among the matching expressions.
func (r *Registry) MatchTrigger(chatID int64, words expr.WordSet) (string, bool, error) {
	var (
		response string
		matched  bool
	)
	err := r.WithChat(chatID, func(state *State) error {
		for _, index := range r.rng.Perm(len(state.Expressions)) {
			if state.Expressions[index].Matches(words) {
				response = state.Expressions[index].Response
				matched = true
				return nil
			}
		}
		return nil
	})
	return response, matched, err
}

func (r *Registry) RandomThought(chatID int64) (string, bool, error) {
	var (
		thought string
		found   bool
	)
	err := r.WithChat(chatID, func(state *State) error {
		if len(state.Thoughts) == 0 {
			return nil
		}
		thought = state.Thoughts[r.rng.IntN(len(state.Thoughts))]
		found = true
		return nil
	})
	return thought, found, err
}

func (r *Registry) Generate(chatID int64) (string, bool, error) {
	var (
		text string
		ok   bool
	)
	err := r.WithChat(chatID, func(state *State) error {
		var genErr error
		text, ok, genErr = state.Markov.Generate(r.rng)
		return genErr
	})
	return text, ok, err
}

func (r *Registry) Stats(chatID int64) (Stats, error) {
	var stats Stats
	err := r.WithChat(chatID, func(state *State) error {
		stats = state.Stats()
		return nil
	})
	return stats, err
}

// ChatIDs returns the known chat ids in ascending order.
func (r *Registry) ChatIDs() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.chats))
	for chatID := range r.chats {
		ids = append(ids, chatID)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}

// Snapshot copies every chat, each under its own lock, so a chat that is
// being handled is copied only after its handler finishes. The map lock is
// released before waiting on any chat.
func (r *Registry) Snapshot() (map[int64]State, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrClosed
	}
	entries := make(map[int64]*entry, len(r.chats))
	for chatID, current := range r.chats {
		entries[chatID] = current
	}
	r.mu.RUnlock()

	states := make(map[int64]State, len(entries))
	for chatID, current := range entries {
		current.mu.Lock()
		closed := current.closed
		if !closed {
			states[chatID] = current.state.clone()
		}
		current.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
	}
	return states, nil
}

// Drain takes a final snapshot and closes the registry. Later calls fail with
// ErrClosed, including handlers that were waiting for a chat lock.
func (r *Registry) Drain() (map[int64]State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	r.closed = true
	return r.closeEntriesLocked(), nil
}

func (r *Registry) closeEntriesLocked() map[int64]State {
	states := make(map[int64]State, len(r.chats))
	for chatID, current := range r.chats {
		current.mu.Lock()
		states[chatID] = current.state.clone()
		current.closed = true
		current.mu.Unlock()
	}
	return states
}
