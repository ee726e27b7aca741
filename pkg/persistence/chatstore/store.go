package chatstore

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
)

// ConversationStore is the local read-through copy of the server's
// conversations. It backs offline history browsing and is fed from the
// engine's event stream.
type ConversationStore interface {
	// UpsertConversation stores the settled transcript of one conversation.
	UpsertConversation(ctx context.Context, conv chat.Conversation) error
	// SyncHistory merges a fetched conversation list. Records with no
	// messages keep the messages already stored.
	SyncHistory(ctx context.Context, convs []chat.Conversation) error
	GetConversation(ctx context.Context, chatID string) (chat.Conversation, bool, error)
	// ListConversations returns the most recent conversations first.
	ListConversations(ctx context.Context, limit int) ([]chat.Conversation, error)
	Close() error
}

const defaultListLimit = 200

func createdAtMs(conv chat.Conversation) int64 {
	if conv.CreatedAt.IsZero() {
		return 0
	}
	return conv.CreatedAt.UnixMilli()
}

func timestampFromMs(ms int64) chat.Timestamp {
	if ms <= 0 {
		return chat.Timestamp{}
	}
	return chat.Timestamp{Time: time.UnixMilli(ms).UTC()}
}

func normalizeChatID(id string) string {
	return strings.TrimSpace(id)
}
