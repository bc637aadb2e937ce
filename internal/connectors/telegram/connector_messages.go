package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/dwizi/trapper/internal/gateway"
)

func (c *Connector) handleMessage(ctx context.Context, message telegramMessage) error {
	if message.From.IsBot {
		return nil
	}
	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}
	if text == "" || c.addressedToOtherBot(text) {
		return nil
	}

	output, err := c.gateway.HandleMessage(ctx, gateway.MessageInput{
		Connector:   "telegram",
		ChatID:      message.Chat.ID,
		FromUserID:  message.From.ID,
		DisplayName: userDisplayName(message.From),
		Text:        text,
	})
	if err != nil {
		return err
	}
	reply := strings.TrimSpace(output.Reply)
	if !output.Handled || reply == "" {
		return nil
	}
	c.logger.Debug("telegram reply", "chat_id", message.Chat.ID, "message_id", message.MessageID)
	return c.sendMessage(ctx, message.Chat.ID, reply)
}

// addressedToOtherBot reports a command like "/think@other_bot" aimed at a
// different bot in the same group.
func (c *Connector) addressedToOtherBot(text string) bool {
	if !strings.HasPrefix(text, "/") || c.botUsername == "" {
		return false
	}
	command := strings.Fields(text)[0]
	at := strings.Index(command, "@")
	if at < 0 {
		return false
	}
	return !strings.EqualFold(command[at+1:], c.botUsername)
}

func userDisplayName(user telegramUser) string {
	parts := []string{strings.TrimSpace(user.FirstName), strings.TrimSpace(user.LastName)}
	fullName := strings.TrimSpace(strings.Join(parts, " "))
	if fullName != "" {
		return fullName
	}
	if strings.TrimSpace(user.Username) != "" {
		return user.Username
	}
	return strconv.FormatInt(user.ID, 10)
}
