package chat

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single turn as stored by the server.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Messages is the ordered message list of a conversation. The history endpoint
// sends it either as a JSON array or as a string holding a JSON-encoded array,
// so UnmarshalJSON accepts both (and null).
type Messages []Message

func (m *Messages) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = nil
		return nil
	}

	switch b[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(b, &encoded); err != nil {
			return errors.Wrap(err, "messages: decode string")
		}
		if len(bytes.TrimSpace([]byte(encoded))) == 0 {
			*m = nil
			return nil
		}
		return m.decodeArray([]byte(encoded))
	case '[':
		return m.decodeArray(b)
	default:
		return errors.Errorf("messages: unexpected JSON value starting with %q", b[0])
	}
}

func (m *Messages) decodeArray(b []byte) error {
	var raw []Message
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.Wrap(err, "messages: decode array")
	}
	for i, msg := range raw {
		if !msg.Role.IsValid() {
			return errors.Errorf("messages: entry %d has unknown role %q", i, msg.Role)
		}
	}
	*m = raw
	return nil
}

// Visible returns the messages that are rendered, i.e. everything but system prompts.
func (m Messages) Visible() Messages {
	out := make(Messages, 0, len(m))
	for _, msg := range m {
		if msg.Role == RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// FirstUserMessage returns the content of the first user message, if any.
func (m Messages) FirstUserMessage() (string, bool) {
	for _, msg := range m {
		if msg.Role == RoleUser {
			return msg.Content, true
		}
	}
	return "", false
}
