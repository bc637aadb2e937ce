package expr

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Kind uint8

const (
	KindVariable Kind = iota + 1
	KindAnd
	KindOr
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "var"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	default:
		return "unknown"
	}
}

// Node is one vertex of an expression tree. Variables carry Name; And and Or
// carry both children. Trees are owned: a node is never shared.
type Node struct {
	Kind  Kind
	Name  string
	Left  *Node
	Right *Node
}

func Variable(name string) *Node {
	return &Node{Kind: KindVariable, Name: name}
}

func And(left, right *Node) *Node {
	return &Node{Kind: KindAnd, Left: left, Right: right}
}

func Or(left, right *Node) *Node {
	return &Node{Kind: KindOr, Left: left, Right: right}
}

// WordSet is the set of lowercase words present in a message.
type WordSet map[string]struct{}

func NewWordSet(words ...string) WordSet {
	set := make(WordSet, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

func (w WordSet) Has(word string) bool {
	_, ok := w[word]
	return ok
}

// Evaluate reports whether the tree holds for words. The left operand is
// always evaluated first and the right one is skipped once the result is known.
func (n *Node) Evaluate(words WordSet) bool {
	switch n.Kind {
	case KindVariable:
		return words.Has(n.Name)
	case KindAnd:
		if !n.Left.Evaluate(words) {
			return false
		}
		return n.Right.Evaluate(words)
	case KindOr:
		if n.Left.Evaluate(words) {
			return true
		}
		return n.Right.Evaluate(words)
	default:
		return false
	}
}

// Validate checks that the tree is well formed.
func (n *Node) Validate() error {
	if n == nil {
		return fmt.Errorf("nil expression node")
	}
	switch n.Kind {
	case KindVariable:
		if n.Name == "" || n.Left != nil || n.Right != nil {
			return fmt.Errorf("malformed variable node")
		}
		for i := 0; i < len(n.Name); i++ {
			if !isLowerAlnum(n.Name[i]) {
				return fmt.Errorf("variable %q: %w", n.Name, ErrBadCharacters)
			}
		}
		return nil
	case KindAnd, KindOr:
		if n.Name != "" {
			return fmt.Errorf("malformed %s node", n.Kind)
		}
		if err := n.Left.Validate(); err != nil {
			return err
		}
		return n.Right.Validate()
	default:
		return fmt.Errorf("node kind %d: %w", n.Kind, ErrBadOperator)
	}
}

// Variables returns the distinct variable names in encounter order.
func (n *Node) Variables() []string {
	seen := map[string]struct{}{}
	var names []string
	var walk func(node *Node)
	walk = func(node *Node) {
		if node == nil {
			return
		}
		if node.Kind == KindVariable {
			if _, ok := seen[node.Name]; !ok {
				seen[node.Name] = struct{}{}
				names = append(names, node.Name)
			}
			return
		}
		walk(node.Left)
		walk(node.Right)
	}
	walk(n)
	return names
}

// String renders the tree fully parenthesized, e.g. "((a|b)&c)".
func (n *Node) String() string {
	var builder strings.Builder
	n.write(&builder)
	return builder.String()
}

func (n *Node) write(builder *strings.Builder) {
	switch n.Kind {
	case KindVariable:
		builder.WriteString(n.Name)
	case KindAnd, KindOr:
		builder.WriteByte('(')
		n.Left.write(builder)
		if n.Kind == KindAnd {
			builder.WriteByte('&')
		} else {
			builder.WriteByte('|')
		}
		n.Right.write(builder)
		builder.WriteByte(')')
	}
}

type nodeJSON struct {
	Var string  `json:"var,omitempty"`
	And []*Node `json:"and,omitempty"`
	Or  []*Node `json:"or,omitempty"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindVariable:
		return json.Marshal(nodeJSON{Var: n.Name})
	case KindAnd:
		return json.Marshal(nodeJSON{And: []*Node{n.Left, n.Right}})
	case KindOr:
		return json.Marshal(nodeJSON{Or: []*Node{n.Left, n.Right}})
	default:
		return nil, fmt.Errorf("marshal node kind %d: %w", n.Kind, ErrBadOperator)
	}
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set := 0
	if raw.Var != "" {
		set++
	}
	if raw.And != nil {
		set++
	}
	if raw.Or != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("expression node must have exactly one of var, and, or")
	}
	switch {
	case raw.Var != "":
		*n = Node{Kind: KindVariable, Name: raw.Var}
	case raw.And != nil:
		if len(raw.And) != 2 || raw.And[0] == nil || raw.And[1] == nil {
			return fmt.Errorf("and node needs two operands")
		}
		*n = Node{Kind: KindAnd, Left: raw.And[0], Right: raw.And[1]}
	default:
		if len(raw.Or) != 2 || raw.Or[0] == nil || raw.Or[1] == nil {
			return fmt.Errorf("or node needs two operands")
		}
		*n = Node{Kind: KindOr, Left: raw.Or[0], Right: raw.Or[1]}
	}
	return n.Validate()
}
