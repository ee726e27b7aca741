package engine

import (
	"context"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/client"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	errStaleContext = errors.New("conversation changed before the reply arrived")
	errTurnRefused  = errors.New("request refused")
)

const (
	noticeBusy                = "Please wait for the current reply"
	noticeNothingToRegenerate = "Nothing to regenerate"
	noticeUnauthorized        = "Not logged in. Run `docchat login` first."
	noticeMalformed           = "Unexpected response from the server"
)

func (e *Engine) sendMessage(text string) {
	if e.busy {
		e.refuse(noticeBusy, "")
		return
	}
	e.flushReveal()

	e.appendEntry(events.Entry{
		ID:        localEntryID(),
		Role:      chat.RoleUser,
		Kind:      events.EntryKindMessage,
		Content:   text,
		Timestamp: e.now(),
	})
	e.setBusy(true)

	chatID, hadSession := e.session.ActiveID()
	epoch := e.epoch
	e.spawn(func(ctx context.Context) func() {
		reply, err := e.backend.Chat(ctx, client.ChatRequest{Message: text, ChatID: chatID})
		return func() { e.onSendDone(epoch, chatID, hadSession, reply, err) }
	})
}

func (e *Engine) onSendDone(epoch uint64, chatID string, hadSession bool, reply client.ChatReply, err error) {
	e.setBusy(false)
	if epoch != e.epoch {
		log.Debug().Str("component", "engine").Str("chat_id", chatID).Msg("dropping stale chat reply")
		e.emit(events.NewTurnSettled(e.metadata(), "", errStaleContext))
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("component", "engine").Str("chat_id", chatID).Msg("send failed")
		e.appendEntry(events.Entry{
			ID:        localEntryID(),
			Role:      chat.RoleAssistant,
			Kind:      events.EntryKindError,
			Content:   ConnectionErrorReply,
			Timestamp: e.now(),
		})
		e.raiseError(err, "Could not reach the server")
		e.emit(events.NewTurnSettled(e.metadata(), "", err))
		return
	}

	newID := reply.ChatID
	if newID == "" {
		newID = chatID
	}
	if !hadSession {
		// a fresh conversation starts with the server's system prompt
		e.serverCount = 1
	}
	if e.session.Adopt(newID) {
		e.emit(events.NewSessionChanged(e.metadata(), newID))
		if e.session.HistoryLoaded() {
			e.publishSidebar()
		}
	}

	entryID := assistantEntryID(e.serverCount + 1)
	e.serverCount += 2
	e.startReveal(entryID, reply.Reply)
}

func (e *Engine) regenerate(messageID string) {
	if e.busy {
		e.refuse(noticeBusy, messageID)
		return
	}
	e.flushReveal()

	idx := -1
	if messageID == "" {
		idx = e.lastAssistant()
	} else if i := e.findEntry(messageID); i >= 0 && e.transcript[i].Role == chat.RoleAssistant && e.transcript[i].Kind == events.EntryKindMessage {
		idx = i
	}
	if idx < 0 {
		e.refuse(noticeNothingToRegenerate, messageID)
		return
	}

	userIdx := -1
	for i := idx - 1; i >= 0; i-- {
		if e.transcript[i].Role == chat.RoleUser && e.transcript[i].Kind == events.EntryKindMessage {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		e.refuse(noticeNothingToRegenerate, e.transcript[idx].ID)
		return
	}

	target := e.transcript[idx].ID
	chatID, _ := e.session.ActiveID()
	req := client.ChatRequest{
		Message:          e.transcript[userIdx].Content,
		ChatID:           chatID,
		Regenerate:       true,
		PreviousMessages: e.transcriptMessages(idx),
		MessageID:        target,
	}
	e.setBusy(true)

	epoch := e.epoch
	e.spawn(func(ctx context.Context) func() {
		reply, err := e.backend.Chat(ctx, req)
		return func() { e.onRegenerateDone(epoch, target, reply, err) }
	})
}

func (e *Engine) onRegenerateDone(epoch uint64, target string, reply client.ChatReply, err error) {
	e.setBusy(false)
	if epoch != e.epoch {
		log.Debug().Str("component", "engine").Str("entry_id", target).Msg("dropping stale regenerate reply")
		e.emit(events.NewTurnSettled(e.metadata(), target, errStaleContext))
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("component", "engine").Str("entry_id", target).Msg("regenerate failed")
		e.raiseError(err, "Could not regenerate the response")
		e.emit(events.NewTurnSettled(e.metadata(), target, err))
		return
	}
	i := e.findEntry(target)
	if i < 0 {
		e.emit(events.NewTurnSettled(e.metadata(), target, errStaleContext))
		return
	}
	if e.reveal != nil && e.reveal.entryID == target {
		e.cancelReveal()
	}
	e.transcript[i].Content = reply.Reply
	e.transcript[i].Timestamp = e.now()
	e.transcript[i].Revealing = false
	e.transcript[i].Speakable = true
	e.updateEntry(i, false)
	e.emit(events.NewTurnSettled(e.metadata(), target, nil))
	e.commit()
}

func (e *Engine) newChat() {
	epoch := e.epoch
	e.spawn(func(ctx context.Context) func() {
		err := e.backend.NewChat(ctx)
		return func() {
			if epoch != e.epoch {
				log.Debug().Str("component", "engine").Msg("dropping stale new chat")
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("component", "engine").Msg("new chat failed")
				e.raiseError(err, "Error starting new chat")
				return
			}
			e.epoch++
			e.cancelReveal()
			if _, had := e.session.ActiveID(); had {
				e.session.Reset()
				e.emit(events.NewSessionChanged(e.metadata(), ""))
			}
			e.transcript = nil
			e.serverCount = 0
			e.welcome = true
			e.emit(events.NewTranscriptReset(e.metadata(), nil, true))
			e.refreshHistory("")
		}
	})
}

func (e *Engine) speak(entryID string) {
	var idx int
	if entryID == "" {
		idx = e.lastAssistant()
	} else {
		idx = e.findEntry(entryID)
	}
	if idx < 0 || !e.transcript[idx].Speakable || e.transcript[idx].Revealing {
		e.notice(events.NoticeInfo, "Nothing to read aloud")
		return
	}
	if e.speaker == nil {
		e.notice(events.NoticeInfo, "Read aloud is not available")
		return
	}
	e.speakText(e.transcript[idx].Content)
}

// refuse rejects a send or regenerate without touching the transcript. The
// turn still settles so callers waiting on it are released.
func (e *Engine) refuse(text, entryID string) {
	e.notice(events.NoticeInfo, text)
	e.emit(events.NewTurnSettled(e.metadata(), entryID, errTurnRefused))
}

func (e *Engine) notice(level events.NoticeLevel, text string) {
	e.emit(events.NewNoticeRaised(e.metadata(), level, text, e.noticeTTL))
}

// raiseError maps an operation failure to a notice. fallback is used for
// plain network failures.
func (e *Engine) raiseError(err error, fallback string) {
	text := fallback
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		text = noticeUnauthorized
	case errors.Is(err, client.ErrMalformedPayload):
		text = noticeMalformed
	case errors.As(err, &apiErr) && apiErr.Message != "":
		text = fallback + ": " + apiErr.Message
	}
	e.notice(events.NoticeError, text)
}
