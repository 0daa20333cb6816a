package ws

import (
	"encoding/json"
	"errors"
	"strings"
)

var errInvalidPayload = errors.New("invalid payload format")

// Inbound event payloads. The wire contract uses camelCase fields.
type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type createConversationPayload struct {
	RecipientID string `json:"recipientId"`
}

type createGroupPayload struct {
	RecipientIDs []string `json:"recipientIds"`
	Name         string   `json:"name"`
}

type sendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// decodePayload accepts the three payload forms clients are allowed to send:
// a structured object, a JSON-encoded string of that object, or a bare
// string which is taken as the value of fallbackField. An empty
// fallbackField disables the bare-string form.
func decodePayload(raw json.RawMessage, dst any, fallbackField string) error {
	if len(raw) == 0 {
		return errInvalidPayload
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") {
			if err := json.Unmarshal([]byte(trimmed), dst); err == nil {
				return nil
			}
		}
		if fallbackField == "" {
			return errInvalidPayload
		}
		wrapped, err := json.Marshal(map[string]string{fallbackField: s})
		if err != nil {
			return err
		}
		return json.Unmarshal(wrapped, dst)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return errInvalidPayload
	}
	return nil
}
