package chat

import (
	"errors"
	"testing"
)

func TestSetAliasBijection(t *testing.T) {
	aliases := NewAliasRegistry()
	if err := aliases.SetAlias(-100, "  Office "); err != nil {
		t.Fatalf("set alias: %v", err)
	}
	if err := aliases.SetAlias(-100, "office"); !errors.Is(err, ErrAlreadyAliased) {
		t.Fatalf("rebinding the same pair must report ErrAlreadyAliased, got %v", err)
	}
	if err := aliases.SetAlias(-200, "OFFICE"); !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("expected ErrAliasTaken, got %v", err)
	}
	if err := aliases.SetAlias(-100, "other"); !errors.Is(err, ErrAlreadyAliased) {
		t.Fatalf("expected ErrAlreadyAliased, got %v", err)
	}

	if chatID, ok := aliases.LookupByAlias("office"); !ok || chatID != -100 {
		t.Fatalf("lookup by alias = %d, %v", chatID, ok)
	}
	if alias, ok := aliases.LookupByChat(-100); !ok || alias != "office" {
		t.Fatalf("lookup by chat = %q, %v", alias, ok)
	}
	if _, ok := aliases.LookupByChat(-200); ok {
		t.Fatal("failed bind must not register the chat")
	}
	if _, ok := aliases.LookupByAlias("other"); ok {
		t.Fatal("failed bind must not register the alias")
	}
	if aliases.Len() != 1 {
		t.Fatalf("expected one binding, got %d", aliases.Len())
	}
}

func TestSetAliasRejectsInvalid(t *testing.T) {
	aliases := NewAliasRegistry()
	for _, alias := range []string{"", "   ", "two words"} {
		if err := aliases.SetAlias(1, alias); !errors.Is(err, ErrInvalidAlias) {
			t.Fatalf("alias %q: expected ErrInvalidAlias, got %v", alias, err)
		}
	}
}

func TestResolve(t *testing.T) {
	aliases := NewAliasRegistry()
	if err := aliases.SetAlias(-5, "42"); err != nil {
		t.Fatalf("set alias: %v", err)
	}
	cases := []struct {
		target string
		want   int64
	}{
		{target: "", want: 9},
		{target: "42", want: -5},
		{target: "-77", want: -77},
	}
	for _, tc := range cases {
		got, err := aliases.Resolve(tc.target, 9)
		if err != nil {
			t.Fatalf("resolve %q: %v", tc.target, err)
		}
		if got != tc.want {
			t.Fatalf("resolve %q = %d, want %d", tc.target, got, tc.want)
		}
	}
	if _, err := aliases.Resolve("nobody", 9); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
}

func TestAliasRegistryFromPairsSkipsConflicts(t *testing.T) {
	aliases, rejected := NewAliasRegistryFromPairs([]AliasPair{
		{Alias: "b", ChatID: 2},
		{Alias: "a", ChatID: 1},
		{Alias: "a", ChatID: 3},
		{Alias: "c", ChatID: 1},
	})
	if len(rejected) != 2 {
		t.Fatalf("expected two rejected pairs, got %v", rejected)
	}
	pairs := aliases.Pairs()
	if len(pairs) != 2 || pairs[0] != (AliasPair{Alias: "a", ChatID: 1}) || pairs[1] != (AliasPair{Alias: "b", ChatID: 2}) {
		t.Fatalf("unexpected pairs %+v", pairs)
	}
}
