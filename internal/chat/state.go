package chat

import (
	"github.com/dwizi/trapper/internal/expr"
	"github.com/dwizi/trapper/internal/markov"
)

// State is everything one chat owns. It is only touched while its chat lock
// is held.
type State struct {
	Expressions []expr.Expression
	Thoughts    []string
	Markov      *markov.Model
}

func NewState() *State {
	return &State{Markov: markov.New()}
}

func (s *State) clone() State {
	model := s.Markov
	if model == nil {
		model = markov.New()
	}
	return State{
		Expressions: append([]expr.Expression(nil), s.Expressions...),
		Thoughts:    append([]string(nil), s.Thoughts...),
		Markov:      model.Clone(),
	}
}

// Stats summarizes a chat for the /stats command and the snapshot CLI.
type Stats struct {
	Expressions  int
	Thoughts     int
	MarkovTokens int
}

func (s *State) Stats() Stats {
	tokens := 0
	if s.Markov != nil {
		tokens = s.Markov.Len()
	}
	return Stats{
		Expressions:  len(s.Expressions),
		Thoughts:     len(s.Thoughts),
		MarkovTokens: tokens,
	}
}
