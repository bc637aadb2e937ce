package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expression is a trigger rule owned by one chat.
type Expression struct {
	AddedBy  int64  `json:"added_by"`
	GroupID  int64  `json:"group_id"`
	Tree     *Node  `json:"expr"`
	Response string `json:"response"`
}

func (e Expression) Matches(words WordSet) bool {
	if e.Tree == nil {
		return false
	}
	return e.Tree.Evaluate(words)
}

// FieldCount is the number of fields in an add-trigger command.
const FieldCount = 4

// FromFields builds an Expression from the already split command fields
// author, chat, expression text and response text.
func FromFields(fields []string) (Expression, error) {
	if len(fields) != FieldCount {
		return Expression{}, ErrBadSeparators
	}
	addedBy, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return Expression{}, fmt.Errorf("parse added by: %w", err)
	}
	groupID, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return Expression{}, fmt.Errorf("parse group id: %w", err)
	}
	tree, err := Parse(fields[2])
	if err != nil {
		return Expression{}, err
	}
	return Expression{
		AddedBy:  addedBy,
		GroupID:  groupID,
		Tree:     tree,
		Response: fields[3],
	}, nil
}

// Parse strips whitespace from text and parses it. Operators have equal
// precedence and fold left to right, so "a|b&c" is "(a|b)&c".
func Parse(text string) (*Node, error) {
	input := stripSpace(text)
	for i := 0; i < len(input); i++ {
		if !isTokenByte(input[i]) {
			return nil, ErrBadCharacters
		}
	}
	p := &parser{input: input}
	tree, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, ErrBadParentheses
	}
	return tree, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *parser) expr() (*Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '&' && op != '|') {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		switch op {
		case '&':
			left = And(left, right)
		case '|':
			left = Or(left, right)
		default:
			return nil, ErrBadOperator
		}
	}
}

func (p *parser) term() (*Node, error) {
	next, ok := p.peek()
	if !ok {
		return nil, ErrBadCharacters
	}
	if next == '(' {
		p.pos++
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if closing, ok := p.peek(); !ok || closing != ')' {
			return nil, ErrBadParentheses
		}
		p.pos++
		return inner, nil
	}
	start := p.pos
	for p.pos < len(p.input) && isAlnum(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil, ErrBadCharacters
	}
	return Variable(strings.ToLower(p.input[start:p.pos])), nil
}

// Words lowercases text and splits it on every rune that is not a letter or
// a digit.
func Words(text string) WordSet {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return NewWordSet(fields...)
}

func stripSpace(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

func isTokenByte(b byte) bool {
	return isAlnum(b) || b == '&' || b == '|' || b == '(' || b == ')'
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isLowerAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
