// Package gateway turns inbound chat messages into registry operations and
// reply text. Connectors call HandleMessage and send back MessageOutput.Reply.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/dwizi/trapper/internal/chat"
	"github.com/dwizi/trapper/internal/expr"
	"github.com/dwizi/trapper/internal/metrics"
)

// fieldSeparator splits the add-trigger payload author~chat~expression~response.
const fieldSeparator = "~"

type MessageInput struct {
	Connector   string
	ChatID      int64
	FromUserID  int64
	DisplayName string
	Text        string
}

type MessageOutput struct {
	Handled bool
	Reply   string
}

type Service struct {
	registry *chat.Registry
	aliases  *chat.AliasRegistry
	learn    bool
	logger   *slog.Logger
}

type Option func(*Service)

// WithLearning controls whether plain messages train the chat's model.
func WithLearning(enabled bool) Option {
	return func(s *Service) {
		s.learn = enabled
	}
}

func New(registry *chat.Registry, aliases *chat.AliasRegistry, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	service := &Service{
		registry: registry,
		aliases:  aliases,
		learn:    true,
		logger:   logger.With("component", "gateway"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

func (s *Service) HandleMessage(ctx context.Context, input MessageInput) (MessageOutput, error) {
	if err := ctx.Err(); err != nil {
		return MessageOutput{}, err
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return MessageOutput{}, nil
	}

	output, outcome, err := s.route(input, text)
	if err != nil {
		metrics.MessagesHandled.WithLabelValues(input.Connector, "error").Inc()
		return MessageOutput{}, err
	}
	metrics.MessagesHandled.WithLabelValues(input.Connector, outcome).Inc()
	return output, nil
}

func (s *Service) route(input MessageInput, text string) (MessageOutput, string, error) {
	command, arg, isCommand := splitCommand(text)
	if !isCommand {
		return s.handlePlain(input, text)
	}

	var (
		output MessageOutput
		err    error
	)
	switch command {
	case "trigger":
		output, err = s.handleTrigger(input, arg)
	case "thought":
		output, err = s.handleThought(input, arg)
	case "think":
		output, err = s.handleThink(input, arg)
	case "markov":
		output, err = s.handleMarkov(input, arg)
	case "alias":
		output, err = s.handleAlias(input, arg)
	case "stats":
		output, err = s.handleStats(input, arg)
	case "help", "start":
		output = MessageOutput{Handled: true, Reply: HelpText()}
	default:
		return MessageOutput{}, "ignored", nil
	}
	return output, "command", err
}

func (s *Service) handlePlain(input MessageInput, text string) (MessageOutput, string, error) {
	outcome := "ignored"
	if s.learn {
		if err := s.registry.Learn(input.ChatID, text); err != nil {
			if errors.Is(err, chat.ErrClosed) {
				return MessageOutput{}, "", err
			}
			s.logger.Warn("learn failed", "chat_id", input.ChatID, "error", err)
		} else {
			outcome = "learned"
		}
	}

	response, matched, err := s.registry.MatchTrigger(input.ChatID, expr.Words(text))
	if err != nil {
		return MessageOutput{}, "", fmt.Errorf("match trigger: %w", err)
	}
	if !matched {
		return MessageOutput{}, outcome, nil
	}
	metrics.TriggersMatched.Inc()
	return MessageOutput{Handled: true, Reply: response}, "trigger", nil
}

func (s *Service) handleTrigger(input MessageInput, arg string) (MessageOutput, error) {
	if strings.TrimSpace(arg) == "" {
		return MessageOutput{Handled: true, Reply: "Usage: /trigger <expression>~<response>"}, nil
	}
	payload := fmt.Sprintf("%d%s%d%s%s", input.FromUserID, fieldSeparator, input.ChatID, fieldSeparator, arg)
	expression, err := expr.FromFields(strings.Split(payload, fieldSeparator))
	if err != nil {
		if expr.IsParseError(err) {
			metrics.ParseFailures.WithLabelValues(expr.ErrorKind(err)).Inc()
			return MessageOutput{Handled: true, Reply: err.Error()}, nil
		}
		return MessageOutput{}, fmt.Errorf("build expression: %w", err)
	}
	if strings.TrimSpace(expression.Response) == "" {
		return MessageOutput{Handled: true, Reply: "The response must not be empty."}, nil
	}
	if err := s.registry.AddExpression(expression); err != nil {
		return MessageOutput{}, fmt.Errorf("add expression: %w", err)
	}
	metrics.ExpressionsAdded.Inc()
	s.logger.Info("trigger added", "chat_id", input.ChatID, "user_id", input.FromUserID, "expression", expression.Tree.String())
	return MessageOutput{Handled: true, Reply: "Trigger added: " + expression.Tree.String()}, nil
}

func (s *Service) handleThought(input MessageInput, arg string) (MessageOutput, error) {
	err := s.registry.AddThought(input.ChatID, arg)
	if errors.Is(err, chat.ErrEmptyThought) {
		return MessageOutput{Handled: true, Reply: "Usage: /thought <text>"}, nil
	}
	if err != nil {
		return MessageOutput{}, fmt.Errorf("add thought: %w", err)
	}
	return MessageOutput{Handled: true, Reply: "Thought stored."}, nil
}

func (s *Service) handleThink(input MessageInput, arg string) (MessageOutput, error) {
	chatID, reply, ok := s.resolve(input, arg)
	if !ok {
		return MessageOutput{Handled: true, Reply: reply}, nil
	}
	thought, found, err := s.registry.RandomThought(chatID)
	if err != nil {
		return MessageOutput{}, fmt.Errorf("random thought: %w", err)
	}
	if !found {
		return MessageOutput{Handled: true, Reply: "No thoughts yet."}, nil
	}
	return MessageOutput{Handled: true, Reply: thought}, nil
}

func (s *Service) handleMarkov(input MessageInput, arg string) (MessageOutput, error) {
	chatID, reply, ok := s.resolve(input, arg)
	if !ok {
		return MessageOutput{Handled: true, Reply: reply}, nil
	}
	text, generated, err := s.registry.Generate(chatID)
	if err != nil {
		return MessageOutput{}, fmt.Errorf("generate: %w", err)
	}
	if !generated || strings.TrimSpace(text) == "" {
		return MessageOutput{Handled: true, Reply: "Nothing learned yet."}, nil
	}
	return MessageOutput{Handled: true, Reply: text}, nil
}

func (s *Service) handleAlias(input MessageInput, arg string) (MessageOutput, error) {
	if strings.TrimSpace(arg) == "" {
		if alias, ok := s.aliases.LookupByChat(input.ChatID); ok {
			return MessageOutput{Handled: true, Reply: fmt.Sprintf("This chat is %q (id %d).", alias, input.ChatID)}, nil
		}
		return MessageOutput{Handled: true, Reply: fmt.Sprintf("This chat has no alias (id %d).", input.ChatID)}, nil
	}
	err := s.aliases.SetAlias(input.ChatID, arg)
	switch {
	case err == nil:
		alias, _ := s.aliases.LookupByChat(input.ChatID)
		return MessageOutput{Handled: true, Reply: fmt.Sprintf("This chat is now %q.", alias)}, nil
	case errors.Is(err, chat.ErrAliasTaken):
		return MessageOutput{Handled: true, Reply: "That alias belongs to another chat."}, nil
	case errors.Is(err, chat.ErrAlreadyAliased):
		alias, _ := s.aliases.LookupByChat(input.ChatID)
		return MessageOutput{Handled: true, Reply: fmt.Sprintf("This chat is already %q.", alias)}, nil
	case errors.Is(err, chat.ErrInvalidAlias):
		return MessageOutput{Handled: true, Reply: "An alias is a single word."}, nil
	default:
		return MessageOutput{}, fmt.Errorf("set alias: %w", err)
	}
}

func (s *Service) handleStats(input MessageInput, arg string) (MessageOutput, error) {
	chatID, reply, ok := s.resolve(input, arg)
	if !ok {
		return MessageOutput{Handled: true, Reply: reply}, nil
	}
	stats, err := s.registry.Stats(chatID)
	if err != nil {
		return MessageOutput{}, fmt.Errorf("stats: %w", err)
	}
	return MessageOutput{
		Handled: true,
		Reply: fmt.Sprintf("Triggers: %d\nThoughts: %d\nLearned words: %d",
			stats.Expressions, stats.Thoughts, stats.MarkovTokens),
	}, nil
}

// resolve returns the target chat, or a reply explaining why it is unknown.
func (s *Service) resolve(input MessageInput, target string) (int64, string, bool) {
	chatID, err := s.aliases.Resolve(target, input.ChatID)
	if err != nil {
		return 0, fmt.Sprintf("Unknown chat %q.", strings.TrimSpace(target)), false
	}
	return chatID, "", true
}

// splitCommand recognizes "/name@bot args". Text without a leading slash is
// not a command.
func splitCommand(text string) (string, string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "/")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", "", false
	}
	command := strings.ToLower(fields[0])
	if idx := strings.Index(command, "@"); idx >= 0 {
		command = command[:idx]
	}
	command = NormalizeCommandName(command)

	if len(fields) == 1 {
		return command, "", true
	}
	argStart := strings.IndexFunc(trimmed, unicode.IsSpace)
	if argStart < 0 {
		return command, "", true
	}
	return command, strings.TrimSpace(trimmed[argStart:]), true
}
