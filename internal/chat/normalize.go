package chat

import (
	"strconv"
	"strings"
)

// Normalized is the JSON-safe view of a chat message carried in event
// payloads. FilteredParts is the whitespace-split text with empty parts
// removed; part zero is the command token.
type Normalized struct {
	MessageID        int64
	ChatID           int64
	Text             string
	FilteredParts    []string
	FromUserID       int64
	FromUsername     string
	ReplyToMessageID int64
	ReplyText        string
}

// ToPayload flattens a message into the bounded payload shape published on
// events.telegram.raw.
func ToPayload(m Message) map[string]any {
	parts := strings.Fields(m.Text)
	return map[string]any{
		"message_id":          m.ID,
		"chat_id":             m.ChatID,
		"text":                m.Text,
		"filtered_parts":      parts,
		"from_user_id":        m.FromUserID,
		"from_user_name":      m.FromUsername,
		"reply_to_message_id": m.ReplyToMessageID,
		"reply_text":          m.ReplyText,
	}
}

// FromPayload rebuilds the normalized view after a JSON round-trip, where
// numbers arrive as float64 and lists as []any.
func FromPayload(payload map[string]any) Normalized {
	n := Normalized{
		MessageID:        AsInt64(payload["message_id"]),
		ChatID:           AsInt64(payload["chat_id"]),
		Text:             AsString(payload["text"]),
		FromUserID:       AsInt64(payload["from_user_id"]),
		FromUsername:     AsString(payload["from_user_name"]),
		ReplyToMessageID: AsInt64(payload["reply_to_message_id"]),
		ReplyText:        AsString(payload["reply_text"]),
	}
	switch parts := payload["filtered_parts"].(type) {
	case []string:
		n.FilteredParts = parts
	case []any:
		for _, p := range parts {
			if s := AsString(p); s != "" {
				n.FilteredParts = append(n.FilteredParts, s)
			}
		}
	}
	if n.FilteredParts == nil && n.Text != "" {
		n.FilteredParts = strings.Fields(n.Text)
	}
	return n
}

// AsInt64 coerces the numeric shapes a JSON round-trip can produce.
func AsInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func AsString(v any) string {
	s, _ := v.(string)
	return s
}
