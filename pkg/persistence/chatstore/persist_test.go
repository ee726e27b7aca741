package chatstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/eventbus"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func emitPersistEvent(t *testing.T, h func(msg *message.Message) error, ev events.Event) {
	t.Helper()
	b, err := events.ToJSON(ev)
	require.NoError(t, err)
	msg := message.NewMessage(uuid.NewString(), b)
	require.NoError(t, h(msg))
}

func TestPersistFunc_HistoryThenCommit(t *testing.T) {
	store := NewInMemoryConversationStore()
	h := PersistFunc(store)

	emitPersistEvent(t, h, events.NewHistorySynced(events.NewMetadata(""), []chat.Conversation{
		{ID: "c1", Title: "Back pain", CreatedAt: at("2026-10-10 12:00:00")},
	}))
	emitPersistEvent(t, h, events.NewTranscriptCommitted(events.NewMetadata("c1"), chat.Conversation{
		ID: "c1",
		Messages: chat.Messages{
			{Role: chat.RoleUser, Content: "my back hurts"},
			{Role: chat.RoleAssistant, Content: "since when?"},
		},
	}))

	got, ok, err := store.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Back pain", got.Title)
	require.Len(t, got.Messages, 2)
	require.True(t, got.CreatedAt.Equal(at("2026-10-10 12:00:00").Time))
}

func TestPersistFunc_IgnoresOtherEventsAndGarbage(t *testing.T) {
	store := NewInMemoryConversationStore()
	h := PersistFunc(store)

	emitPersistEvent(t, h, events.NewBusyChanged(events.NewMetadata("c1"), true))
	require.NoError(t, h(message.NewMessage(uuid.NewString(), []byte("not json"))))

	list, err := store.ListConversations(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestPersistFunc_CanceledMessageContextStillWrites(t *testing.T) {
	store := NewInMemoryConversationStore()
	h := PersistFunc(store)

	b, err := events.ToJSON(events.NewTranscriptCommitted(events.NewMetadata("c2"), chat.Conversation{ID: "c2"}))
	require.NoError(t, err)
	msg := message.NewMessage(uuid.NewString(), b)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msg.SetContext(ctx)
	require.NoError(t, h(msg))

	_, ok, err := store.GetConversation(context.Background(), "c2")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPersistFunc_ThroughRouterStoresEveryCommit(t *testing.T) {
	store := newSQLiteStore(t)
	r, err := eventbus.NewRouter(eventbus.WithLogger(eventbus.NewZerologAdapter(zerolog.Nop())))
	require.NoError(t, err)
	r.AddHandler("chatstore-persist", eventbus.TopicTranscript, PersistFunc(store))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	<-r.Running()

	sink := eventbus.NewSink(r.Publisher, eventbus.TopicTranscript)
	const n = 50
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%02d", i)
		require.NoError(t, sink.Publish(ctx, events.NewTranscriptCommitted(events.NewMetadata(id), chat.Conversation{
			ID:       id,
			Title:    "turn " + id,
			Messages: chat.Messages{{Role: chat.RoleUser, Content: "hello " + id}},
		})))
	}

	require.Eventually(t, func() bool {
		list, err := store.ListConversations(context.Background(), 100)
		return err == nil && len(list) == n
	}, 5*time.Second, 10*time.Millisecond)

	got, ok, err := store.GetConversation(context.Background(), "c49")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, chat.Messages{{Role: chat.RoleUser, Content: "hello c49"}}, got.Messages)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, r.Close())
}
