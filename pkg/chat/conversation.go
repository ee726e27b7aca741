package chat

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

const (
	titleMaxRunes  = 30
	defaultTitle   = "New Chat"
	titleEllipsis  = "..."
	sqliteDateTime = "2006-01-02 15:04:05"
)

// Conversation is a server-tracked chat, as returned by /get_chat_history.
type Conversation struct {
	ID        string    `json:"chat_id" yaml:"chat_id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
	Messages  Messages  `json:"messages" yaml:"messages"`
}

// DisplayTitle mirrors how the sidebar labels a conversation: the stored title,
// else the first user message cut to 30 characters, else "New Chat".
func (c Conversation) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	first, ok := c.Messages.FirstUserMessage()
	if !ok || first == "" {
		return defaultTitle
	}
	return TruncateTitle(first)
}

// TruncateTitle cuts s to 30 runes and appends "..." when it was longer.
func TruncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= titleMaxRunes {
		return s
	}
	return string(r[:titleMaxRunes]) + titleEllipsis
}

// FormatDate renders a sidebar date ("Jan 2", with the year added when it is
// not the current one). A zero time renders as "".
func FormatDate(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Year() != now.Year() {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("Jan 2")
}

// Timestamp accepts the date layouts the backend is known to emit.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	sqliteDateTime,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func ParseTimestamp(s string) (Timestamp, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, true
		}
	}
	return Timestamp{}, false
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// numbers and other shapes are not dates we know; keep the zero value
		*t = Timestamp{}
		return nil
	}
	parsed, _ := ParseTimestamp(s)
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t Timestamp) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339), nil
}
