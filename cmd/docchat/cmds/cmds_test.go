package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func ts(t *testing.T, s string) chat.Timestamp {
	t.Helper()
	v, ok := chat.ParseTimestamp(s)
	require.True(t, ok)
	return v
}

func sampleHistory(t *testing.T) []chat.Conversation {
	return []chat.Conversation{
		{
			ID:        "c2",
			CreatedAt: ts(t, "2026-10-18 09:00:00"),
			Messages: chat.Messages{
				{Role: chat.RoleSystem, Content: "be nice"},
				{Role: chat.RoleUser, Content: "I have had a headache for three days"},
				{Role: chat.RoleAssistant, Content: "Any fever?"},
			},
		},
		{ID: "c1", Title: "Knee pain", CreatedAt: ts(t, "2025-12-31 23:00:00")},
	}
}

func TestWriteHistory_Table(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	require.NoError(t, writeHistory(&buf, "table", sampleHistory(t), now))

	out := buf.String()
	require.Contains(t, out, "CHAT ID")
	require.Contains(t, out, "Oct 18")
	require.Contains(t, out, "I have had a headache for thre...")
	require.Contains(t, out, "Dec 31, 2025")
	require.Contains(t, out, "Knee pain")

	buf.Reset()
	require.NoError(t, writeHistory(&buf, "", nil, now))
	require.Equal(t, "No conversations yet\n", buf.String())

	require.Error(t, writeHistory(&buf, "xml", nil, now))
}

func TestWriteHistory_JSONAndYAML(t *testing.T) {
	now := time.Now()

	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, "json", sampleHistory(t), now))
	var decoded []chat.Conversation
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "c2", decoded[0].ID)
	require.Len(t, decoded[0].Messages, 3)

	buf.Reset()
	require.NoError(t, writeHistory(&buf, "json", nil, now))
	require.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, writeHistory(&buf, "yaml", sampleHistory(t), now))
	var generic []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &generic))
	require.Len(t, generic, 2)
	require.Equal(t, "Knee pain", generic[1]["title"])
}

func TestConversationMarkdown_SkipsSystemPrompt(t *testing.T) {
	doc := conversationMarkdown(sampleHistory(t)[0])
	require.True(t, strings.HasPrefix(doc, "# I have had a headache for thre...\n\n_2026-10-18 09:00_\n\n"))
	require.Contains(t, doc, "**You**\n\nI have had a headache for three days\n\n")
	require.Contains(t, doc, "**Assistant**\n\nAny fever?\n\n")
	require.NotContains(t, doc, "be nice")
}

func TestPrintSessionHistory(t *testing.T) {
	st := session.NewState()
	var buf bytes.Buffer
	printSessionHistory(&buf, st)
	require.Equal(t, "History not loaded yet\n", buf.String())

	st.SetHistory(sampleHistory(t))
	st.Adopt("c1")
	buf.Reset()
	printSessionHistory(&buf, st)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[1], "* "))
	require.Contains(t, lines[1], "Knee pain")
}

func TestPromptCredentials_ReadsPasswordLine(t *testing.T) {
	var out bytes.Buffer
	user, pass, err := promptCredentials(strings.NewReader("s3cret\n"), &out, " alice ")
	require.NoError(t, err)
	require.Equal(t, "alice", user)
	require.Equal(t, "s3cret", pass)
}

func TestTurnWaiter(t *testing.T) {
	w := newTurnWaiter()
	md := events.NewMetadata("c1")

	w.Apply(events.NewBusyChanged(md, true))
	w.Apply(events.NewNoticeRaised(md, events.NoticeInfo, "Please wait for the current reply", time.Second))
	w.Apply(events.NewTurnSettled(md, "msg-2", nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Nil(t, w.wait(ctx))
	settled := w.wait(ctx)
	require.NotNil(t, settled)
	require.Equal(t, "msg-2", settled.EntryID)

	w.Apply(events.NewTurnSettled(md, "msg-4", nil))
	w.reset()
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	require.Nil(t, w.waitSettled(short))
}

func newFakeServer(t *testing.T, historyFails bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		reply(w, map[string]interface{}{"success": true, "reply": "echo: " + body.Message, "chatId": "abc"})
	})
	mux.HandleFunc("/get_chat_history", func(w http.ResponseWriter, r *http.Request) {
		if historyFails {
			w.WriteHeader(http.StatusInternalServerError)
			reply(w, map[string]interface{}{"success": false, "message": "database unavailable"})
			return
		}
		reply(w, map[string]interface{}{"success": true, "chat_history": []interface{}{}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func plainSettings(t *testing.T, url string) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	return &config.Settings{
		Server:  config.ServerSettings{URL: url, Timeout: 5 * time.Second},
		Reveal:  config.RevealSettings{Interval: time.Millisecond},
		Notice:  config.NoticeSettings{TTL: time.Second},
		Cache:   config.CacheSettings{Enabled: false},
		Session: config.SessionSettings{File: filepath.Join(dir, "session.yaml")},
	}
}

func TestRunPlain_SendsEachLine(t *testing.T) {
	srv := newFakeServer(t, false)
	s := plainSettings(t, srv.URL)

	var out, errOut bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := strings.NewReader("hello\n\nhow are you\n/quit\n")
	require.NoError(t, runPlain(ctx, s, "", in, &out, &errOut))

	require.Equal(t,
		"Welcome to Your Virtual Consultation\nAsk your medical questions and receive professional advice\n\n"+
			"assistant> echo: hello\n"+
			"assistant> echo: how are you\n",
		out.String())
}

func TestRunPlain_NoticesDoNotCutReplies(t *testing.T) {
	srv := newFakeServer(t, true)
	s := plainSettings(t, srv.URL)

	var out, errOut bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := strings.NewReader("hello\n/regen msg-99\nhow are you\n")
	require.NoError(t, runPlain(ctx, s, "", in, &out, &errOut))

	require.Equal(t,
		"Welcome to Your Virtual Consultation\nAsk your medical questions and receive professional advice\n\n"+
			"assistant> echo: hello\n"+
			"assistant> echo: how are you\n",
		out.String())
	require.Contains(t, errOut.String(), "[info] Nothing to regenerate")
	require.Contains(t, errOut.String(), "database unavailable")
}

func TestQuietLogs(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	v := viper.New()
	v.Set("log-file", filepath.Join(t.TempDir(), "docchat.log"))
	quietLogs(v)
	log.Info().Msg("kept")
	require.Contains(t, buf.String(), "kept")

	buf.Reset()
	quietLogs(viper.New())
	log.Info().Msg("dropped")
	require.Empty(t, buf.String())
}
