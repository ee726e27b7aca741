package chatstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/stretchr/testify/require"
)

func at(s string) chat.Timestamp {
	ts, ok := chat.ParseTimestamp(s)
	if !ok {
		panic("bad timestamp " + s)
	}
	return ts
}

func newSQLiteStore(t *testing.T) *SQLiteConversationStore {
	t.Helper()
	dsn, err := SQLiteConversationDSNForFile(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	s, err := NewSQLiteConversationStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s ConversationStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewInMemoryConversationStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

func TestConversationStore_SyncKeepsMessagesWhenListIsBare(t *testing.T) {
	forEachStore(t, func(t *testing.T, s ConversationStore) {
		ctx := context.Background()
		msgs := chat.Messages{
			{Role: chat.RoleUser, Content: "hello"},
			{Role: chat.RoleAssistant, Content: "hi there"},
		}
		require.NoError(t, s.UpsertConversation(ctx, chat.Conversation{ID: "c1", Title: "Greeting", CreatedAt: at("2026-10-01 10:00:00"), Messages: msgs}))

		require.NoError(t, s.SyncHistory(ctx, []chat.Conversation{{ID: "c1", CreatedAt: at("2026-10-01 10:00:00")}}))

		got, ok, err := s.GetConversation(ctx, "c1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "Greeting", got.Title)
		require.Equal(t, msgs, got.Messages)
		require.True(t, got.CreatedAt.Equal(at("2026-10-01 10:00:00").Time))
	})
}

func TestConversationStore_SyncReplacesMessagesWhenPresent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s ConversationStore) {
		ctx := context.Background()
		require.NoError(t, s.SyncHistory(ctx, []chat.Conversation{{ID: "c1", Messages: chat.Messages{{Role: chat.RoleUser, Content: "one"}}}}))
		require.NoError(t, s.SyncHistory(ctx, []chat.Conversation{{ID: "c1", Messages: chat.Messages{{Role: chat.RoleUser, Content: "two"}}}}))

		got, ok, err := s.GetConversation(ctx, "c1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, got.Messages, 1)
		require.Equal(t, "two", got.Messages[0].Content)
		require.False(t, got.CreatedAt.IsZero())
	})
}

func TestConversationStore_ListNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s ConversationStore) {
		ctx := context.Background()
		require.NoError(t, s.SyncHistory(ctx, []chat.Conversation{
			{ID: "old", CreatedAt: at("2026-01-01 08:00:00")},
			{ID: "new", CreatedAt: at("2026-10-18 08:00:00")},
			{ID: "mid", CreatedAt: at("2026-05-01 08:00:00")},
			{ID: "  "},
		}))

		list, err := s.ListConversations(ctx, 0)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, c := range list {
			ids = append(ids, c.ID)
		}
		require.Equal(t, []string{"new", "mid", "old"}, ids)

		list, err = s.ListConversations(ctx, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
	})
}

func TestConversationStore_MissingAndEmptyIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, s ConversationStore) {
		ctx := context.Background()
		_, ok, err := s.GetConversation(ctx, "nope")
		require.NoError(t, err)
		require.False(t, ok)

		_, _, err = s.GetConversation(ctx, "")
		require.Error(t, err)
		require.Error(t, s.UpsertConversation(ctx, chat.Conversation{}))
	})
}

func TestSQLiteConversationStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	dsn, err := SQLiteConversationDSNForFile(path)
	require.NoError(t, err)

	s, err := NewSQLiteConversationStore(dsn)
	require.NoError(t, err)
	require.NoError(t, s.UpsertConversation(context.Background(), chat.Conversation{
		ID:       "c9",
		Messages: chat.Messages{{Role: chat.RoleUser, Content: "still here?"}},
	}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteConversationStore(dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, ok, err := s.GetConversation(context.Background(), "c9")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "still here?", got.DisplayTitle())
	require.WithinDuration(t, time.Now(), got.CreatedAt.Time, time.Minute)
}

func TestSQLiteConversationDSNForFile(t *testing.T) {
	_, err := SQLiteConversationDSNForFile(" ")
	require.Error(t, err)

	dsn, err := SQLiteConversationDSNForFile("/tmp/x.db")
	require.NoError(t, err)
	require.Equal(t, "file:/tmp/x.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", dsn)

	_, err = NewSQLiteConversationStore("")
	require.Error(t, err)
}
