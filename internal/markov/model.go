// Package markov implements a weighted word chain learned from chat messages.
package markov

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sentinel marks both the start and the end of a learned sequence.
const Sentinel = ""

// MaxTokens caps the length of a generated sentence.
const MaxTokens = 256

var ErrWeightOverflow = errors.New("markov edge weight overflow")

// Source supplies uniform random numbers in [0, n). *math/rand/v2.Rand
// satisfies it.
type Source interface {
	Uint64N(n uint64) uint64
}

type Edge struct {
	Next   string `json:"next"`
	Weight uint64 `json:"weight"`
}

// Model maps a token to its outgoing edges. Edge order only matters for
// tie-breaking during sampling. The zero value is an empty, usable model.
type Model struct {
	chain map[string][]Edge
}

func New() *Model {
	return &Model{chain: map[string][]Edge{}}
}

// Learn splits text on whitespace and adds one to every adjacent edge of the
// sentinel-bracketed sequence. The update is all or nothing.
func (m *Model) Learn(text string) error {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	sequence := make([]string, 0, len(tokens)+2)
	sequence = append(sequence, Sentinel)
	sequence = append(sequence, tokens...)
	sequence = append(sequence, Sentinel)

	type edgeKey struct{ from, to string }
	increments := make(map[edgeKey]uint64, len(sequence))
	for i := 0; i+1 < len(sequence); i++ {
		increments[edgeKey{sequence[i], sequence[i+1]}]++
	}
	for key, delta := range increments {
		if current := m.weight(key.from, key.to); current > math.MaxUint64-delta {
			return fmt.Errorf("edge %q -> %q: %w", key.from, key.to, ErrWeightOverflow)
		}
	}

	if m.chain == nil {
		m.chain = map[string][]Edge{}
	}
	for i := 0; i+1 < len(sequence); i++ {
		m.increment(sequence[i], sequence[i+1])
	}
	return nil
}

func (m *Model) weight(from, to string) uint64 {
	for _, edge := range m.chain[from] {
		if edge.Next == to {
			return edge.Weight
		}
	}
	return 0
}

func (m *Model) increment(from, to string) {
	edges := m.chain[from]
	for i := range edges {
		if edges[i].Next == to {
			edges[i].Weight++
			return
		}
	}
	m.chain[from] = append(edges, Edge{Next: to, Weight: 1})
}

// Generate walks the chain from the sentinel until the sentinel is sampled
// again. ok is false for an untrained model.
func (m *Model) Generate(rng Source) (string, bool, error) {
	if len(m.chain[Sentinel]) == 0 {
		return "", false, nil
	}
	words := make([]string, 0, 16)
	current := Sentinel
	for len(words) < MaxTokens {
		next, err := m.sample(current, rng)
		if err != nil {
			return "", false, err
		}
		if next == Sentinel {
			break
		}
		words = append(words, next)
		current = next
	}
	return strings.Join(words, " "), true, nil
}

func (m *Model) sample(from string, rng Source) (string, error) {
	edges := m.chain[from]
	if len(edges) == 0 {
		return Sentinel, nil
	}
	var total uint64
	for _, edge := range edges {
		if total > math.MaxUint64-edge.Weight {
			return "", fmt.Errorf("total weight from %q: %w", from, ErrWeightOverflow)
		}
		total += edge.Weight
	}
	pick := rng.Uint64N(total)
	for _, edge := range edges {
		if pick < edge.Weight {
			return edge.Next, nil
		}
		pick -= edge.Weight
	}
	return edges[len(edges)-1].Next, nil
}

// Weights returns the outgoing weights of token keyed by next token.
func (m *Model) Weights(token string) map[string]uint64 {
	edges := m.chain[token]
	weights := make(map[string]uint64, len(edges))
	for _, edge := range edges {
		weights[edge.Next] = edge.Weight
	}
	return weights
}

// Edges returns a copy of the outgoing edges of token in insertion order.
func (m *Model) Edges(token string) []Edge {
	return append([]Edge(nil), m.chain[token]...)
}

// Len is the number of tokens with outgoing edges, the sentinel included.
func (m *Model) Len() int {
	return len(m.chain)
}

func (m *Model) Empty() bool {
	return len(m.chain[Sentinel]) == 0
}

func (m *Model) Clone() *Model {
	clone := &Model{chain: make(map[string][]Edge, len(m.chain))}
	for token, edges := range m.chain {
		clone.chain[token] = append([]Edge(nil), edges...)
	}
	return clone
}

type modelJSON struct {
	Chain map[string][]Edge `json:"chain"`
}

func (m *Model) MarshalJSON() ([]byte, error) {
	chain := m.chain
	if chain == nil {
		chain = map[string][]Edge{}
	}
	return json.Marshal(modelJSON{Chain: chain})
}

func (m *Model) UnmarshalJSON(data []byte) error {
	var raw modelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	chain := make(map[string][]Edge, len(raw.Chain))
	for token, edges := range raw.Chain {
		seen := make(map[string]struct{}, len(edges))
		for _, edge := range edges {
			if edge.Weight == 0 {
				return fmt.Errorf("edge %q -> %q has zero weight", token, edge.Next)
			}
			if _, dup := seen[edge.Next]; dup {
				return fmt.Errorf("duplicate edge %q -> %q", token, edge.Next)
			}
			seen[edge.Next] = struct{}{}
		}
		if len(edges) > 0 {
			chain[token] = edges
		}
	}
	m.chain = chain
	return nil
}
