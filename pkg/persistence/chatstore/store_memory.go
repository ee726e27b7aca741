package chatstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/pkg/errors"
)

// InMemoryConversationStore mirrors the ordering and merge rules of the
// SQLite store. Used when the on-disk cache is disabled.
type InMemoryConversationStore struct {
	mu    sync.Mutex
	convs map[string]*memRecord
}

type memRecord struct {
	conv           chat.Conversation
	createdAtMs    int64
	lastActivityMs int64
}

var _ ConversationStore = &InMemoryConversationStore{}

func NewInMemoryConversationStore() *InMemoryConversationStore {
	return &InMemoryConversationStore{convs: map[string]*memRecord{}}
}

func (s *InMemoryConversationStore) Close() error { return nil }

func (s *InMemoryConversationStore) UpsertConversation(_ context.Context, conv chat.Conversation) error {
	conv.ID = normalizeChatID(conv.ID)
	if conv.ID == "" {
		return errors.New("in-memory conversation store: chat id is empty")
	}
	now := time.Now().UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merge(conv, now, true)
	return nil
}

func (s *InMemoryConversationStore) SyncHistory(_ context.Context, convs []chat.Conversation) error {
	now := time.Now().UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range convs {
		conv.ID = normalizeChatID(conv.ID)
		if conv.ID == "" {
			continue
		}
		s.merge(conv, now, false)
	}
	return nil
}

func (s *InMemoryConversationStore) merge(conv chat.Conversation, now int64, replaceMessages bool) {
	rec, ok := s.convs[conv.ID]
	if !ok {
		created := createdAtMs(conv)
		if created == 0 {
			created = now
		}
		s.convs[conv.ID] = &memRecord{
			conv:           chat.Conversation{ID: conv.ID, Title: conv.Title, Messages: append(chat.Messages(nil), conv.Messages...)},
			createdAtMs:    created,
			lastActivityMs: now,
		}
		return
	}
	if conv.Title != "" {
		rec.conv.Title = conv.Title
	}
	if c := createdAtMs(conv); c > 0 {
		rec.createdAtMs = c
	}
	if replaceMessages || len(conv.Messages) > 0 {
		rec.conv.Messages = append(chat.Messages(nil), conv.Messages...)
	}
	if now > rec.lastActivityMs {
		rec.lastActivityMs = now
	}
}

func (s *InMemoryConversationStore) GetConversation(_ context.Context, chatID string) (chat.Conversation, bool, error) {
	chatID = normalizeChatID(chatID)
	if chatID == "" {
		return chat.Conversation{}, false, errors.New("in-memory conversation store: chat id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.convs[chatID]
	if !ok {
		return chat.Conversation{}, false, nil
	}
	return rec.snapshot(), true, nil
}

func (s *InMemoryConversationStore) ListConversations(_ context.Context, limit int) ([]chat.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*memRecord, 0, len(s.convs))
	for _, r := range s.convs {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.createdAtMs != b.createdAtMs {
			return a.createdAtMs > b.createdAtMs
		}
		if a.lastActivityMs != b.lastActivityMs {
			return a.lastActivityMs > b.lastActivityMs
		}
		return a.conv.ID < b.conv.ID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]chat.Conversation, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.snapshot())
	}
	return out, nil
}

func (r *memRecord) snapshot() chat.Conversation {
	c := r.conv
	c.CreatedAt = timestampFromMs(r.createdAtMs)
	c.Messages = append(chat.Messages(nil), r.conv.Messages...)
	return c
}
