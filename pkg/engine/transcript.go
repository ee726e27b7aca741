package engine

import (
	"context"
	"fmt"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func userEntryID(index int) string      { return fmt.Sprintf("user-%d", index) }
func assistantEntryID(index int) string { return fmt.Sprintf("msg-%d", index) }
func localEntryID() string              { return "local-" + uuid.NewString() }

// renderMessages maps server messages to transcript entries. Ids are derived
// from the position in the server list, system messages included, so they
// stay stable across reloads.
func renderMessages(msgs chat.Messages) []events.Entry {
	out := make([]events.Entry, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case chat.RoleUser:
			out = append(out, events.Entry{
				ID:      userEntryID(i),
				Role:    chat.RoleUser,
				Kind:    events.EntryKindMessage,
				Content: m.Content,
			})
		case chat.RoleAssistant:
			out = append(out, events.Entry{
				ID:        assistantEntryID(i),
				Role:      chat.RoleAssistant,
				Kind:      events.EntryKindMessage,
				Content:   m.Content,
				Speakable: true,
			})
		}
	}
	return out
}

func (e *Engine) loadConversation(conv chat.Conversation) {
	e.epoch++
	e.cancelReveal()

	if e.session.Adopt(conv.ID) {
		e.emit(events.NewSessionChanged(e.metadata(), conv.ID))
	}

	e.transcript = renderMessages(conv.Messages)
	e.serverCount = len(conv.Messages)
	e.welcome = false
	e.emit(events.NewTranscriptReset(e.metadata(), append([]events.Entry(nil), e.transcript...), false))

	if e.session.HistoryLoaded() {
		e.publishSidebar()
	}

	log.Debug().
		Str("component", "engine").
		Str("chat_id", conv.ID).
		Int("messages", len(conv.Messages)).
		Int("entries", len(e.transcript)).
		Msg("conversation loaded")
}

func (e *Engine) loadConversationByID(chatID string) {
	cached, ok := e.session.Lookup(chatID)
	if ok && len(cached.Messages) > 0 {
		e.loadConversation(cached)
		return
	}

	epoch := e.epoch
	e.spawn(func(ctx context.Context) func() {
		msgs, err := e.backend.Conversation(ctx, chatID)
		return func() {
			if epoch != e.epoch {
				log.Debug().Str("component", "engine").Str("chat_id", chatID).Msg("dropping stale conversation fetch")
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("component", "engine").Str("chat_id", chatID).Msg("conversation fetch failed")
				e.raiseError(err, "Could not load the conversation")
				return
			}
			conv := cached
			conv.ID = chatID
			conv.Messages = msgs
			if ok {
				e.session.Remember(conv)
			}
			e.loadConversation(conv)
		}
	})
}

func (e *Engine) refreshHistory(loadAfter string) {
	e.historyGen++
	gen := e.historyGen
	e.spawn(func(ctx context.Context) func() {
		convs, err := e.backend.ChatHistory(ctx)
		return func() {
			if gen != e.historyGen {
				log.Debug().Str("component", "engine").Msg("dropping superseded history refresh")
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("component", "engine").Msg("history refresh failed")
				e.raiseError(err, "Could not load chat history")
				if !e.session.HistoryLoaded() {
					e.sidebar = nil
					e.placeholder = SidebarError
					e.emit(events.NewSidebarUpdated(e.metadata(), nil, SidebarError))
				}
			} else {
				e.session.SetHistory(convs)
				e.emit(events.NewHistorySynced(e.metadata(), convs))
				e.publishSidebar()
			}
			if loadAfter != "" {
				e.loadConversationByID(loadAfter)
			}
		}
	})
}

func (e *Engine) publishSidebar() {
	active, _ := e.session.ActiveID()
	now := e.now()
	history := e.session.History()

	items := make([]events.SidebarItem, 0, len(history))
	for _, c := range history {
		items = append(items, events.SidebarItem{
			ChatID: c.ID,
			Title:  c.DisplayTitle(),
			Date:   chat.FormatDate(c.CreatedAt.Time, now),
			Active: active != "" && c.ID == active,
		})
	}
	placeholder := ""
	if len(items) == 0 {
		placeholder = SidebarEmpty
	}
	e.sidebar = items
	e.placeholder = placeholder
	e.emit(events.NewSidebarUpdated(e.metadata(), items, placeholder))
}

func (e *Engine) findEntry(id string) int {
	for i := range e.transcript {
		if e.transcript[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) lastAssistant() int {
	for i := len(e.transcript) - 1; i >= 0; i-- {
		en := e.transcript[i]
		if en.Role == chat.RoleAssistant && en.Kind == events.EntryKindMessage {
			return i
		}
	}
	return -1
}

func (e *Engine) appendEntry(en events.Entry) {
	e.welcome = false
	e.transcript = append(e.transcript, en)
	e.emit(events.NewEntryAppended(e.metadata(), en))
}

func (e *Engine) updateEntry(i int, followTail bool) {
	e.emit(events.NewEntryUpdated(e.metadata(), e.transcript[i], followTail))
}

// transcriptMessages converts the rendered transcript back into messages,
// leaving out local error entries.
func (e *Engine) transcriptMessages(upTo int) []chat.Message {
	out := make([]chat.Message, 0, upTo)
	for _, en := range e.transcript[:upTo] {
		if en.Kind != events.EntryKindMessage {
			continue
		}
		out = append(out, chat.Message{Role: en.Role, Content: en.Content})
	}
	return out
}

// commit publishes the settled transcript of the active conversation.
func (e *Engine) commit() {
	id, ok := e.session.ActiveID()
	if !ok {
		return
	}
	conv := chat.Conversation{ID: id}
	if cached, found := e.session.Lookup(id); found {
		conv.Title = cached.Title
		conv.CreatedAt = cached.CreatedAt
	}
	conv.Messages = e.transcriptMessages(len(e.transcript))
	if conv.Title == "" {
		conv.Title = conv.DisplayTitle()
	}
	e.emit(events.NewTranscriptCommitted(e.metadata(), conv))
}
