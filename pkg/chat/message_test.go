package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessages_StringAndArrayDecodeIdentically(t *testing.T) {
	array := `{"chat_id":"c1","title":"t","created_at":"2024-05-01 10:20:30","messages":[{"role":"system","content":"s"},{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
	encoded := `{"chat_id":"c1","title":"t","created_at":"2024-05-01 10:20:30","messages":"[{\"role\":\"system\",\"content\":\"s\"},{\"role\":\"user\",\"content\":\"hi\"},{\"role\":\"assistant\",\"content\":\"hello\"}]"}`

	var a, b Conversation
	require.NoError(t, json.Unmarshal([]byte(array), &a))
	require.NoError(t, json.Unmarshal([]byte(encoded), &b))
	require.Equal(t, a, b)
	require.Len(t, a.Messages, 3)
	require.Equal(t, Messages{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}, a.Messages.Visible())
}

func TestMessages_NullAndEmpty(t *testing.T) {
	for _, in := range []string{`null`, `""`, `[]`} {
		var m Messages
		require.NoError(t, json.Unmarshal([]byte(in), &m), in)
		require.Empty(t, m, in)
	}
}

func TestMessages_Malformed(t *testing.T) {
	for _, in := range []string{`42`, `{"role":"user"}`, `"not json"`, `[{"role":"robot","content":"x"}]`} {
		var m Messages
		require.Error(t, json.Unmarshal([]byte(in), &m), in)
	}
}

func TestConversation_DisplayTitle(t *testing.T) {
	require.Equal(t, "Stored", Conversation{Title: "Stored"}.DisplayTitle())
	require.Equal(t, "New Chat", Conversation{}.DisplayTitle())

	long := Conversation{Messages: Messages{
		{Role: RoleSystem, Content: "ignored"},
		{Role: RoleUser, Content: "I have had a headache for three days now"},
	}}
	require.Equal(t, "I have had a headache for thre...", long.DisplayTitle())

	short := Conversation{Messages: Messages{{Role: RoleUser, Content: "cough"}}}
	require.Equal(t, "cough", short.DisplayTitle())
}

func TestFormatDate(t *testing.T) {
	now, ok := ParseTimestamp("2026-10-19 08:00:00")
	require.True(t, ok)

	sameYear, _ := ParseTimestamp("2026-03-04 10:00:00")
	require.Equal(t, "Mar 4", FormatDate(sameYear.Time, now.Time))

	lastYear, _ := ParseTimestamp("2025-12-31T23:00:00Z")
	require.Equal(t, "Dec 31, 2025", FormatDate(lastYear.Time, now.Time))

	require.Equal(t, "", FormatDate(Timestamp{}.Time, now.Time))
}

func TestTimestamp_Lenient(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"garbage"`), &ts))
	require.True(t, ts.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`12`), &ts))
	require.True(t, ts.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`"2024-05-01T10:20:30Z"`), &ts))
	require.Equal(t, 2024, ts.Year())
}
