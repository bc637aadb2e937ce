package expr

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func TestFromFieldsBuildsLeftFoldedTree(t *testing.T) {
	got, err := FromFields([]string{"1256262", "-1001", "asDf    |    milsugi     & (coaie | pula)", "test"})
	if err != nil {
		t.Fatalf("from fields: %v", err)
	}
	want := Expression{
		AddedBy: 1256262,
		GroupID: -1001,
		Tree: And(
			Or(Variable("asdf"), Variable("milsugi")),
			Or(Variable("coaie"), Variable("pula")),
		),
		Response: "test",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected expression:\n got %s %+v\nwant %s %+v", got.Tree, got, want.Tree, want)
	}
}

func TestFromFieldsRejectsWrongFieldCount(t *testing.T) {
	for _, fields := range [][]string{
		nil,
		{"1", "2", "a"},
		{"1", "2", "a|b", "x", "y"},
	} {
		if _, err := FromFields(fields); !errors.Is(err, ErrBadSeparators) {
			t.Fatalf("fields %q: expected ErrBadSeparators, got %v", fields, err)
		}
	}
}

func TestFromFieldsWrapsNumericErrors(t *testing.T) {
	_, err := FromFields([]string{"abc", "2", "a", "x"})
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		t.Fatalf("expected wrapped strconv error, got %v", err)
	}
	if IsParseError(err) {
		t.Fatal("numeric errors are not part of the parse taxonomy")
	}
	if _, err := FromFields([]string{"1", "chat", "a", "x"}); err == nil || !strings.Contains(err.Error(), "group id") {
		t.Fatalf("expected group id error, got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		input string
		want  error
	}{
		{"a|b|(c|d", ErrBadParentheses},
		{"asdf|milsugi|(coaie|pula))", ErrBadParentheses},
		{"(a", ErrBadParentheses},
		{"a)", ErrBadParentheses},
		{"a(b)", ErrBadParentheses},
		{"a|.b", ErrBadCharacters},
		{"asdf|milsugi^(coaie|pula)", ErrBadCharacters},
		{"", ErrBadCharacters},
		{"   ", ErrBadCharacters},
		{"a|", ErrBadCharacters},
		{"&a", ErrBadCharacters},
		{"()", ErrBadCharacters},
		{"a||b", ErrBadCharacters},
		{"ciao|caffè", ErrBadCharacters},
	}
	for _, tc := range cases {
		tree, err := Parse(tc.input)
		if !errors.Is(err, tc.want) {
			t.Fatalf("Parse(%q): expected %v, got %v", tc.input, tc.want, err)
		}
		if tree != nil {
			t.Fatalf("Parse(%q): expected no partial tree, got %s", tc.input, tree)
		}
	}
}

func TestParseAccepts(t *testing.T) {
	cases := map[string]string{
		"a":               "a",
		"A1":              "a1",
		"a | b":           "(a|b)",
		"a|b&c":           "((a|b)&c)",
		"a&b|c":           "((a&b)|c)",
		"a|(b&c)":         "(a|(b&c))",
		"((a))":           "a",
		"x\t&\n(y | z)":   "(x&(y|z))",
		"Foo|bar|BAZ|qux": "(((foo|bar)|baz)|qux)",
	}
	for input, want := range cases {
		tree, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if tree.String() != want {
			t.Fatalf("Parse(%q) = %s, want %s", input, tree, want)
		}
		if err := tree.Validate(); err != nil {
			t.Fatalf("Parse(%q) produced invalid tree: %v", input, err)
		}
	}
}

func TestEqualPrecedenceFoldsLeft(t *testing.T) {
	tree, err := Parse("a|b&c")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tree.Evaluate(NewWordSet("b")) {
		t.Fatal("(a|b)&c must be false without c")
	}
	if !tree.Evaluate(NewWordSet("b", "c")) {
		t.Fatal("(a|b)&c must be true with b and c")
	}
	if tree.Evaluate(NewWordSet("a")) {
		t.Fatal("a alone must not satisfy (a|b)&c; & has no elevated precedence")
	}
}

func TestTruthTable(t *testing.T) {
	tree, err := Parse("a&(b|c)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for mask := 0; mask < 8; mask++ {
		a, b, c := mask&1 != 0, mask&2 != 0, mask&4 != 0
		words := NewWordSet()
		if a {
			words["a"] = struct{}{}
		}
		if b {
			words["b"] = struct{}{}
		}
		if c {
			words["c"] = struct{}{}
		}
		want := a && (b || c)
		if got := tree.Evaluate(words); got != want {
			t.Fatalf("a=%v b=%v c=%v: got %v want %v", a, b, c, got, want)
		}
	}
}

func TestWords(t *testing.T) {
	words := Words("Hello, WORLD! foo-bar 42x ok?")
	for _, word := range []string{"hello", "world", "foo", "bar", "42x", "ok"} {
		if !words.Has(word) {
			t.Fatalf("expected %q in %v", word, words)
		}
	}
	if len(words) != 6 {
		t.Fatalf("expected 6 words, got %v", words)
	}
}

func TestTreeJSON(t *testing.T) {
	tree, err := Parse("a|b&(c|d)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	payload, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"and":[{"or":[{"var":"a"},{"var":"b"}]},{"or":[{"var":"c"},{"var":"d"}]}]}`
	if string(payload) != want {
		t.Fatalf("unexpected encoding %s", payload)
	}
	var decoded Node
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.String() != tree.String() {
		t.Fatalf("decoded %s, want %s", decoded.String(), tree)
	}
}

func TestTreeJSONRejectsMalformed(t *testing.T) {
	for _, payload := range []string{
		`{}`,
		`{"var":"a","and":[{"var":"b"},{"var":"c"}]}`,
		`{"and":[{"var":"b"}]}`,
		`{"or":[{"var":"b"},null]}`,
		`{"var":"A B"}`,
	} {
		var node Node
		if err := json.Unmarshal([]byte(payload), &node); err == nil {
			t.Fatalf("expected error decoding %s", payload)
		}
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind(ErrBadParentheses); got != "bad_parentheses" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := ErrorKind(errors.New("boom")); got != "other" {
		t.Fatalf("unexpected kind %q", got)
	}
}
