package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/dwizi/trapper/internal/chat"
	"github.com/dwizi/trapper/internal/expr"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *chat.Registry, *chat.AliasRegistry) {
	t.Helper()
	registry := chat.NewRegistry(chat.WithRand(rand.New(rand.NewPCG(5, 8))))
	aliases := chat.NewAliasRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(registry, aliases, logger, opts...), registry, aliases
}

func send(t *testing.T, service *Service, chatID int64, text string) MessageOutput {
	t.Helper()
	output, err := service.HandleMessage(context.Background(), MessageInput{
		Connector:  "telegram",
		ChatID:     chatID,
		FromUserID: 77,
		Text:       text,
	})
	if err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
	return output
}

func TestTriggerCommandAddsExpression(t *testing.T) {
	service, registry, _ := newTestService(t)

	output := send(t, service, -10, "/trigger coffee&(morning|early)~brewing now")
	if !output.Handled || !strings.Contains(output.Reply, "(coffee&(morning|early))") {
		t.Fatalf("unexpected reply %+v", output)
	}
	var addedBy int64
	if err := registry.WithChat(-10, func(state *chat.State) error {
		addedBy = state.Expressions[0].AddedBy
		return nil
	}); err != nil {
		t.Fatalf("with chat: %v", err)
	}
	if addedBy != 77 {
		t.Fatalf("expected author 77, got %d", addedBy)
	}

	output = send(t, service, -10, "Early COFFEE?")
	if !output.Handled || output.Reply != "brewing now" {
		t.Fatalf("expected trigger reply, got %+v", output)
	}
	output = send(t, service, -11, "early coffee")
	if output.Handled {
		t.Fatalf("trigger must stay in its chat, got %+v", output)
	}
}

func TestTriggerCommandParseErrors(t *testing.T) {
	service, registry, _ := newTestService(t)
	cases := map[string]string{
		"/trigger a|b|(c|d~x": "unbalanced parentheses",
		"/trigger a|.b~x":     "illegal character",
		"/trigger a~b~c":      "exactly one '~'",
		"/trigger hello":      "exactly one '~'",
		"/trigger":            "Usage",
	}
	for text, want := range cases {
		output := send(t, service, 1, text)
		if !output.Handled || !strings.Contains(output.Reply, want) {
			t.Fatalf("%q: expected reply containing %q, got %q", text, want, output.Reply)
		}
	}
	for text, sentinel := range map[string]error{
		"/trigger a|b|(c|d~x": expr.ErrBadParentheses,
		"/trigger a|.b~x":     expr.ErrBadCharacters,
		"/trigger a~b~c":      expr.ErrBadSeparators,
	} {
		if output := send(t, service, 1, text); output.Reply != sentinel.Error() {
			t.Fatalf("%q: parse errors are replied verbatim, got %q", text, output.Reply)
		}
	}
	if stats, _ := registry.Stats(1); stats.Expressions != 0 {
		t.Fatalf("failed parses must not add expressions, got %d", stats.Expressions)
	}
}

func TestPlainMessagesAreLearned(t *testing.T) {
	service, registry, _ := newTestService(t)
	if output := send(t, service, 3, "hello there"); output.Handled {
		t.Fatalf("plain text without triggers must not reply, got %+v", output)
	}
	if output := send(t, service, 3, "/markov"); output.Reply != "hello there" {
		t.Fatalf("expected generated sentence, got %q", output.Reply)
	}

	quiet, quietRegistry, _ := newTestService(t, WithLearning(false))
	send(t, quiet, 3, "hello there")
	if stats, _ := quietRegistry.Stats(3); stats.MarkovTokens != 0 {
		t.Fatalf("learning disabled but model has %d tokens", stats.MarkovTokens)
	}
	if stats, _ := registry.Stats(3); stats.MarkovTokens == 0 {
		t.Fatal("expected learned tokens")
	}
}

func TestThoughtsAndAliasTargets(t *testing.T) {
	service, _, aliases := newTestService(t)

	if output := send(t, service, -50, "/think"); output.Reply != "No thoughts yet." {
		t.Fatalf("unexpected reply %q", output.Reply)
	}
	send(t, service, -50, "/thought the cake is a lie")
	if output := send(t, service, -50, "/alias Lab"); output.Reply != `This chat is now "lab".` {
		t.Fatalf("unexpected alias reply %q", output.Reply)
	}
	if chatID, ok := aliases.LookupByAlias("lab"); !ok || chatID != -50 {
		t.Fatalf("alias not bound: %d %v", chatID, ok)
	}

	if output := send(t, service, 9, "/think lab"); output.Reply != "the cake is a lie" {
		t.Fatalf("expected thought via alias, got %q", output.Reply)
	}
	if output := send(t, service, 9, "/think -50"); output.Reply != "the cake is a lie" {
		t.Fatalf("expected thought via numeric id, got %q", output.Reply)
	}
	if output := send(t, service, 9, "/think nowhere"); !strings.Contains(output.Reply, "Unknown chat") {
		t.Fatalf("expected unknown target reply, got %q", output.Reply)
	}
	if output := send(t, service, 9, "/alias lab"); output.Reply != "That alias belongs to another chat." {
		t.Fatalf("expected collision reply, got %q", output.Reply)
	}
	if output := send(t, service, -50, "/alias other"); !strings.Contains(output.Reply, "already") {
		t.Fatalf("expected already aliased reply, got %q", output.Reply)
	}
	if output := send(t, service, -50, "/stats@trapper_bot"); !strings.Contains(output.Reply, "Thoughts: 1") {
		t.Fatalf("unexpected stats %q", output.Reply)
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	service, registry, _ := newTestService(t)
	if output := send(t, service, 4, "/dance now"); output.Handled {
		t.Fatalf("unknown command should not be handled, got %+v", output)
	}
	if stats, _ := registry.Stats(4); stats.MarkovTokens != 0 {
		t.Fatal("commands must not be learned")
	}
	if output := send(t, service, 4, "/help"); !strings.Contains(output.Reply, "/trigger <rule>") {
		t.Fatalf("help should list commands, got %q", output.Reply)
	}
}

func TestHandleMessageAfterDrain(t *testing.T) {
	service, registry, _ := newTestService(t)
	if _, err := registry.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	_, err := service.HandleMessage(context.Background(), MessageInput{ChatID: 1, Text: "hi"})
	if !errors.Is(err, chat.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestThoughtCommandWithCarriageReturnSeparator(t *testing.T) {
	service, _, _ := newTestService(t)
	if output := send(t, service, 5, "/thought\rremember me"); output.Reply != "Thought stored." {
		t.Fatalf("unexpected reply %q", output.Reply)
	}
	if output := send(t, service, 5, "/think"); output.Reply != "remember me" {
		t.Fatalf("expected the whole argument to be stored, got %q", output.Reply)
	}
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		text    string
		command string
		arg     string
		ok      bool
	}{
		{text: "/think@trapper_bot office", command: "think", arg: "office", ok: true},
		{text: "/Trigger a|b~c d", command: "trigger", arg: "a|b~c d", ok: true},
		{text: "/help", command: "help", ok: true},
		{text: "/thought\rremember me", command: "thought", arg: "remember me", ok: true},
		{text: "/thought\u00a0remember me", command: "thought", arg: "remember me", ok: true},
		{text: "hello /help", ok: false},
		{text: "/", ok: false},
	}
	for _, tc := range cases {
		command, arg, ok := splitCommand(tc.text)
		if command != tc.command || arg != tc.arg || ok != tc.ok {
			t.Fatalf("%q: got (%q, %q, %v)", tc.text, command, arg, ok)
		}
	}
}
