package chat

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

var (
	ErrAliasTaken     = errors.New("alias is already bound to another chat")
	ErrAlreadyAliased = errors.New("chat already has an alias")
	ErrInvalidAlias   = errors.New("alias must be a single non-empty word")
	ErrUnknownTarget  = errors.New("unknown chat")
)

// AliasPair is one binding as persisted.
type AliasPair struct {
	Alias  string
	ChatID int64
}

// AliasRegistry keeps a bijection between aliases and chat ids.
type AliasRegistry struct {
	mu     sync.RWMutex
	byName map[string]int64
	byChat map[int64]string
}

func NewAliasRegistry() *AliasRegistry {
	return &AliasRegistry{
		byName: map[string]int64{},
		byChat: map[int64]string{},
	}
}

// NewAliasRegistryFromPairs binds pairs in order. Pairs that would break the
// bijection are returned as rejected and left out.
func NewAliasRegistryFromPairs(pairs []AliasPair) (*AliasRegistry, []error) {
	registry := NewAliasRegistry()
	var rejected []error
	for _, pair := range pairs {
		if err := registry.SetAlias(pair.ChatID, pair.Alias); err != nil {
			rejected = append(rejected, fmt.Errorf("alias %q for chat %d: %w", pair.Alias, pair.ChatID, err))
		}
	}
	return registry, rejected
}

func normalizeAlias(alias string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(alias))
	if normalized == "" || strings.IndexFunc(normalized, unicode.IsSpace) >= 0 {
		return "", ErrInvalidAlias
	}
	return normalized, nil
}

// SetAlias binds alias to chatID. A chat that already owns an alias, even the
// same one, gets ErrAlreadyAliased.
func (r *AliasRegistry) SetAlias(chatID int64, alias string) error {
	normalized, err := normalizeAlias(alias)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.byName[normalized]; taken && owner != chatID {
		return ErrAliasTaken
	}
	if _, ok := r.byChat[chatID]; ok {
		return ErrAlreadyAliased
	}
	r.byName[normalized] = chatID
	r.byChat[chatID] = normalized
	return nil
}

func (r *AliasRegistry) LookupByAlias(alias string) (int64, bool) {
	normalized, err := normalizeAlias(alias)
	if err != nil {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	chatID, ok := r.byName[normalized]
	return chatID, ok
}

func (r *AliasRegistry) LookupByChat(chatID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alias, ok := r.byChat[chatID]
	return alias, ok
}

// Resolve maps a command target to a chat id. An empty target is the current
// chat; otherwise aliases win over numeric ids.
func (r *AliasRegistry) Resolve(target string, defaultChat int64) (int64, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return defaultChat, nil
	}
	if chatID, ok := r.LookupByAlias(target); ok {
		return chatID, nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	return chatID, nil
}

// Pairs returns every binding sorted by alias.
func (r *AliasRegistry) Pairs() []AliasPair {
	r.mu.RLock()
	pairs := make([]AliasPair, 0, len(r.byName))
	for alias, chatID := range r.byName {
		pairs = append(pairs, AliasPair{Alias: alias, ChatID: chatID})
	}
	r.mu.RUnlock()
	slices.SortFunc(pairs, func(a, b AliasPair) int {
		return strings.Compare(a.Alias, b.Alias)
	})
	return pairs
}

func (r *AliasRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
