package expr

import "errors"

// Parse errors are user facing: the gateway replies with their text verbatim.
var (
	ErrBadSeparators  = errors.New("use exactly one '~' between the expression and the response: /trigger <expression>~<response>")
	ErrBadParentheses = errors.New("unbalanced parentheses in expression")
	ErrBadCharacters  = errors.New("expression contains an illegal character or an empty operand")
	ErrBadOperator    = errors.New("unknown operator in expression")
)

// IsParseError reports whether err belongs to the expression error taxonomy.
func IsParseError(err error) bool {
	return errors.Is(err, ErrBadSeparators) ||
		errors.Is(err, ErrBadParentheses) ||
		errors.Is(err, ErrBadCharacters) ||
		errors.Is(err, ErrBadOperator)
}

// ErrorKind returns a short label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrBadSeparators):
		return "bad_separators"
	case errors.Is(err, ErrBadParentheses):
		return "bad_parentheses"
	case errors.Is(err, ErrBadCharacters):
		return "bad_characters"
	case errors.Is(err, ErrBadOperator):
		return "bad_operator"
	default:
		return "other"
	}
}
