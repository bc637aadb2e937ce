package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dwizi/trapper/internal/chat"
	"github.com/dwizi/trapper/internal/gateway"
)

type chatRequest struct {
	Connector   string `json:"connector"`
	ChatID      int64  `json:"chat_id"`
	FromUserID  int64  `json:"from_user_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

type chatSummary struct {
	ChatID       int64  `json:"chat_id"`
	Alias        string `json:"alias,omitempty"`
	Expressions  int    `json:"expressions"`
	Thoughts     int    `json:"thoughts"`
	MarkovTokens int    `json:"markov_tokens"`
}

func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Gateway == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "chat gateway is unavailable"})
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	connector := strings.ToLower(strings.TrimSpace(payload.Connector))
	if connector == "" {
		connector = "api"
	}

	output, err := r.deps.Gateway.HandleMessage(req.Context(), gateway.MessageInput{
		Connector:   connector,
		ChatID:      payload.ChatID,
		FromUserID:  payload.FromUserID,
		DisplayName: strings.TrimSpace(payload.DisplayName),
		Text:        text,
	})
	if errors.Is(err, chat.ErrClosed) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
		return
	}
	if err != nil {
		r.deps.Logger.Error("api chat failed", "chat_id", payload.ChatID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"handled": output.Handled,
		"reply":   strings.TrimSpace(output.Reply),
	})
}

func (r *router) handleChats(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "registry is unavailable"})
		return
	}
	summaries := []chatSummary{}
	for _, chatID := range r.deps.Registry.ChatIDs() {
		stats, err := r.deps.Registry.Stats(chatID)
		if errors.Is(err, chat.ErrClosed) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		summary := chatSummary{
			ChatID:       chatID,
			Expressions:  stats.Expressions,
			Thoughts:     stats.Thoughts,
			MarkovTokens: stats.MarkovTokens,
		}
		if r.deps.Aliases != nil {
			summary.Alias, _ = r.deps.Aliases.LookupByChat(chatID)
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": summaries})
}
