package chatstore

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/rs/zerolog/log"
)

const persistTimeout = 5 * time.Second

// PersistFunc returns a watermill handler that writes history syncs and
// committed transcripts from the event topic into store.
// The router acks the message once the handler returns. Storage errors are
// logged and never fail the handler.
func PersistFunc(store ConversationStore) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		if store == nil {
			return nil
		}

		ev, err := events.NewEventFromJSON(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("component", "chatstore_persist").Msg("failed to decode event payload")
			return nil
		}

		// Detached from the message context, which the subscriber cancels on shutdown.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(msg.Context()), persistTimeout)
		defer cancel()

		switch e := ev.(type) {
		case *events.HistorySynced:
			err = store.SyncHistory(ctx, e.Conversations)
		case *events.TranscriptCommitted:
			err = store.UpsertConversation(ctx, e.Conversation)
		default:
			return nil
		}
		if err != nil {
			log.Warn().Err(err).
				Str("component", "chatstore_persist").
				Str("event_type", string(ev.Type())).
				Str("chat_id", ev.Metadata().ChatID).
				Msg("conversation cache write failed")
		}
		return nil
	}
}
