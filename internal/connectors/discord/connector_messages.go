package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/trapper/internal/gateway"
)

const maxMessageLength = 2000

type discordMessageCreate struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	GuildID   string        `json:"guild_id"`
	Content   string        `json:"content"`
	Author    discordAuthor `json:"author"`
}

type discordAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

func (c *Connector) handleMessageCreate(ctx context.Context, message discordMessageCreate) error {
	if message.Author.Bot || c.isSelf(message.Author.ID) {
		return nil
	}
	text := strings.TrimSpace(message.Content)
	if text == "" {
		return nil
	}
	// Snowflakes are below 2^63 and fit the shared int64 chat id space.
	chatID, err := strconv.ParseInt(strings.TrimSpace(message.ChannelID), 10, 64)
	if err != nil {
		return fmt.Errorf("parse channel id %q: %w", message.ChannelID, err)
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(message.Author.ID), 10, 64)
	if err != nil {
		return fmt.Errorf("parse author id %q: %w", message.Author.ID, err)
	}

	output, err := c.gateway.HandleMessage(ctx, gateway.MessageInput{
		Connector:   "discord",
		ChatID:      chatID,
		FromUserID:  userID,
		DisplayName: discordDisplayName(message.Author),
		Text:        text,
	})
	if err != nil {
		return err
	}
	reply := clipDiscordMessage(output.Reply)
	if !output.Handled || reply == "" {
		return nil
	}
	return c.sendChannelMessage(ctx, message.ChannelID, reply)
}

func (c *Connector) sendChannelMessage(ctx context.Context, channelID, content string) error {
	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.apiBase, channelID)
	payload, err := json.Marshal(map[string]any{
		"content":          content,
		"allowed_mentions": map[string]any{"parse": []string{}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/dwizi/trapper, 0.1)")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("discord send message failed: status=%d body=%s", res.StatusCode, string(bodyBytes))
	}
	return nil
}

func clipDiscordMessage(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) <= maxMessageLength {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxMessageLength {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxMessageLength-3])) + "..."
}

func discordDisplayName(author discordAuthor) string {
	if strings.TrimSpace(author.GlobalName) != "" {
		return author.GlobalName
	}
	if strings.TrimSpace(author.Username) != "" {
		return author.Username
	}
	return author.ID
}
