package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dwizi/trapper/internal/chat"
	"github.com/dwizi/trapper/internal/expr"
	"github.com/dwizi/trapper/internal/metrics"
)

const (
	DocumentExpressions = "expressions"
	DocumentThoughts    = "thoughts"
	DocumentAliases     = "aliases"
	DocumentMarkov      = "markov"
)

// Documents lists every document in write order.
var Documents = []string{DocumentExpressions, DocumentThoughts, DocumentAliases, DocumentMarkov}

type Manager struct {
	backend Backend
	logger  *slog.Logger
}

func NewManager(backend Backend, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: backend, logger: logger.With("component", "persist")}
}

// Save writes each document independently. A failing document does not stop
// the others; all failures are joined into the returned error.
func (m *Manager) Save(ctx context.Context, states map[int64]chat.State, aliases []chat.AliasPair) error {
	started := time.Now()
	defer func() {
		metrics.SnapshotSaveDuration.Observe(time.Since(started).Seconds())
	}()

	chatIDs := make([]int64, 0, len(states))
	for chatID := range states {
		chatIDs = append(chatIDs, chatID)
	}
	slices.Sort(chatIDs)

	expressions := []expr.Expression{}
	thoughts := []chatText{}
	models := []markovRecord{}
	for _, chatID := range chatIDs {
		state := states[chatID]
		expressions = append(expressions, state.Expressions...)
		for _, thought := range state.Thoughts {
			thoughts = append(thoughts, chatText{Text: thought, ChatID: chatID})
		}
		if state.Markov != nil && state.Markov.Len() > 0 {
			models = append(models, markovRecord{ChatID: chatID, Model: state.Markov})
		}
	}
	aliasRecords := make([]chatText, 0, len(aliases))
	for _, pair := range aliases {
		aliasRecords = append(aliasRecords, chatText{Text: pair.Alias, ChatID: pair.ChatID})
	}

	payloads := map[string]any{
		DocumentExpressions: expressions,
		DocumentThoughts:    thoughts,
		DocumentAliases:     aliasRecords,
		DocumentMarkov:      models,
	}
	var errs []error
	for _, name := range Documents {
		if err := m.write(ctx, name, payloads[name]); err != nil {
			metrics.SnapshotDocumentFailures.WithLabelValues(name, "save").Inc()
			m.logger.Error("snapshot document save failed", "document", name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		m.logger.Info("snapshot saved", "chats", len(chatIDs), "expressions", len(expressions), "thoughts", len(thoughts), "aliases", len(aliasRecords))
	}
	return errors.Join(errs...)
}

func (m *Manager) write(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := m.backend.WriteDocument(ctx, name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Load rebuilds the registry and alias table. Missing or unreadable documents
// load as empty, and individual bad records are skipped, so Load never fails.
func (m *Manager) Load(ctx context.Context, opts ...chat.Option) (*chat.Registry, *chat.AliasRegistry) {
	states := map[int64]*chat.State{}
	stateFor := func(chatID int64) *chat.State {
		state, ok := states[chatID]
		if !ok {
			state = chat.NewState()
			states[chatID] = state
		}
		return state
	}

	for _, expression := range loadRecords[expr.Expression](ctx, m, DocumentExpressions) {
		if expression.Tree == nil {
			m.logger.Warn("skipping expression without tree", "chat_id", expression.GroupID)
			continue
		}
		state := stateFor(expression.GroupID)
		state.Expressions = append(state.Expressions, expression)
	}
	for _, thought := range loadRecords[chatText](ctx, m, DocumentThoughts) {
		state := stateFor(thought.ChatID)
		state.Thoughts = append(state.Thoughts, thought.Text)
	}
	for _, record := range loadRecords[markovRecord](ctx, m, DocumentMarkov) {
		if record.Model == nil {
			continue
		}
		state := stateFor(record.ChatID)
		state.Markov = record.Model
	}

	var pairs []chat.AliasPair
	for _, record := range loadRecords[chatText](ctx, m, DocumentAliases) {
		pairs = append(pairs, chat.AliasPair{Alias: record.Text, ChatID: record.ChatID})
	}
	aliases, rejected := chat.NewAliasRegistryFromPairs(pairs)
	for _, err := range rejected {
		m.logger.Warn("skipping alias", "error", err)
	}

	m.logger.Info("snapshot loaded", "chats", len(states), "aliases", aliases.Len())
	return chat.NewRegistryFromStates(states, opts...), aliases
}

// loadRecords decodes a document as a JSON array, element by element, and
// drops the elements that fail to decode.
func loadRecords[T any](ctx context.Context, m *Manager, name string) []T {
	data, err := m.backend.ReadDocument(ctx, name)
	if errors.Is(err, ErrDocumentNotFound) {
		m.logger.Info("snapshot document missing, starting empty", "document", name)
		return nil
	}
	if err != nil {
		metrics.SnapshotDocumentFailures.WithLabelValues(name, "load").Inc()
		m.logger.Error("snapshot document unreadable, starting empty", "document", name, "error", err)
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		metrics.SnapshotDocumentFailures.WithLabelValues(name, "load").Inc()
		m.logger.Error("snapshot document malformed, starting empty", "document", name, "error", err)
		return nil
	}
	records := make([]T, 0, len(raw))
	for index, element := range raw {
		var record T
		if err := json.Unmarshal(element, &record); err != nil {
			m.logger.Warn("skipping malformed record", "document", name, "index", index, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records
}
