package persist

import (
	"encoding/json"
	"fmt"

	"github.com/dwizi/trapper/internal/markov"
)

// chatText encodes as a two element array [text, chatId], the layout used by
// the thoughts and aliases documents.
type chatText struct {
	Text   string
	ChatID int64
}

func (r chatText) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Text, r.ChatID})
}

func (r *chatText) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("expected [text, chat id], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &r.Text); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	if err := json.Unmarshal(raw[1], &r.ChatID); err != nil {
		return fmt.Errorf("chat id: %w", err)
	}
	return nil
}

type markovRecord struct {
	ChatID int64         `json:"chat_id"`
	Model  *markov.Model `json:"model"`
}
