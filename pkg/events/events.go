package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type EventType string

const (
	EventTypeTranscriptReset     EventType = "transcript-reset"
	EventTypeEntryAppended       EventType = "entry-appended"
	EventTypeEntryUpdated        EventType = "entry-updated"
	EventTypeSidebarUpdated      EventType = "sidebar-updated"
	EventTypeSessionChanged      EventType = "session-changed"
	EventTypeNoticeRaised        EventType = "notice-raised"
	EventTypeBusyChanged         EventType = "busy-changed"
	EventTypeTurnSettled         EventType = "turn-settled"
	EventTypeHistorySynced       EventType = "history-synced"
	EventTypeTranscriptCommitted EventType = "transcript-committed"
)

// Event is a single effect emitted by the engine. Views render them and
// sinks forward them to the event bus.
type Event interface {
	Type() EventType
	Metadata() EventMetadata
}

type EventMetadata struct {
	ID     uuid.UUID `json:"id"`
	ChatID string    `json:"chat_id,omitempty"`
	Time   time.Time `json:"time"`
}

func NewMetadata(chatID string) EventMetadata {
	return EventMetadata{ID: uuid.New(), ChatID: chatID, Time: time.Now()}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`
}

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }

// View receives every engine event on the engine loop. Implementations must
// not block and must not call back into the engine synchronously.
type View interface {
	Apply(ev Event)
}

type ViewFunc func(ev Event)

func (f ViewFunc) Apply(ev Event) { f(ev) }

// Views fans an event out to several views in order.
type Views []View

func (vs Views) Apply(ev Event) {
	for _, v := range vs {
		if v != nil {
			v.Apply(ev)
		}
	}
}

// Sink forwards events outside the process-local view, e.g. onto the bus.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

type EntryKind string

const (
	EntryKindMessage EntryKind = "message"
	EntryKindError   EntryKind = "error"
)

// Entry is one rendered transcript row.
type Entry struct {
	ID        string    `json:"id"`
	Role      chat.Role `json:"role"`
	Kind      EntryKind `json:"kind"`
	Content   string    `json:"content"`
	Revealing bool      `json:"revealing,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Speakable bool      `json:"speakable,omitempty"`
}

type SidebarItem struct {
	ChatID string `json:"chat_id"`
	Title  string `json:"title"`
	Date   string `json:"date"`
	Active bool   `json:"active,omitempty"`
}

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

type Notice struct {
	ID    string        `json:"id"`
	Level NoticeLevel   `json:"level"`
	Text  string        `json:"text"`
	TTL   time.Duration `json:"ttl"`
}

// TranscriptReset clears the transcript and repopulates it with Entries.
// Welcome is set when the transcript should show the welcome placeholder.
type TranscriptReset struct {
	EventImpl
	Entries []Entry `json:"entries"`
	Welcome bool    `json:"welcome,omitempty"`
}

func NewTranscriptReset(md EventMetadata, entries []Entry, welcome bool) *TranscriptReset {
	return &TranscriptReset{
		EventImpl: EventImpl{Type_: EventTypeTranscriptReset, Metadata_: md},
		Entries:   entries,
		Welcome:   welcome,
	}
}

type EntryAppended struct {
	EventImpl
	Entry Entry `json:"entry"`
}

func NewEntryAppended(md EventMetadata, entry Entry) *EntryAppended {
	return &EntryAppended{
		EventImpl: EventImpl{Type_: EventTypeEntryAppended, Metadata_: md},
		Entry:     entry,
	}
}

// EntryUpdated replaces the entry with the same ID in place. FollowTail asks
// the view to keep the transcript scrolled to the bottom.
type EntryUpdated struct {
	EventImpl
	Entry      Entry `json:"entry"`
	FollowTail bool  `json:"follow_tail,omitempty"`
}

func NewEntryUpdated(md EventMetadata, entry Entry, followTail bool) *EntryUpdated {
	return &EntryUpdated{
		EventImpl:  EventImpl{Type_: EventTypeEntryUpdated, Metadata_: md},
		Entry:      entry,
		FollowTail: followTail,
	}
}

// SidebarUpdated carries the full conversation list. When Items is empty,
// Placeholder holds the single line to show instead.
type SidebarUpdated struct {
	EventImpl
	Items       []SidebarItem `json:"items"`
	Placeholder string        `json:"placeholder,omitempty"`
}

func NewSidebarUpdated(md EventMetadata, items []SidebarItem, placeholder string) *SidebarUpdated {
	return &SidebarUpdated{
		EventImpl:   EventImpl{Type_: EventTypeSidebarUpdated, Metadata_: md},
		Items:       items,
		Placeholder: placeholder,
	}
}

type SessionChanged struct {
	EventImpl
	ChatID string `json:"chat_id"`
}

func NewSessionChanged(md EventMetadata, chatID string) *SessionChanged {
	return &SessionChanged{
		EventImpl: EventImpl{Type_: EventTypeSessionChanged, Metadata_: md},
		ChatID:    chatID,
	}
}

type NoticeRaised struct {
	EventImpl
	Notice Notice `json:"notice"`
}

func NewNoticeRaised(md EventMetadata, level NoticeLevel, text string, ttl time.Duration) *NoticeRaised {
	return &NoticeRaised{
		EventImpl: EventImpl{Type_: EventTypeNoticeRaised, Metadata_: md},
		Notice:    Notice{ID: uuid.NewString(), Level: level, Text: text, TTL: ttl},
	}
}

type BusyChanged struct {
	EventImpl
	Busy bool `json:"busy"`
}

func NewBusyChanged(md EventMetadata, busy bool) *BusyChanged {
	return &BusyChanged{
		EventImpl: EventImpl{Type_: EventTypeBusyChanged, Metadata_: md},
		Busy:      busy,
	}
}

// TurnSettled marks the end of a send or regenerate, successful or not.
type TurnSettled struct {
	EventImpl
	EntryID string `json:"entry_id,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

func NewTurnSettled(md EventMetadata, entryID string, err error) *TurnSettled {
	ev := &TurnSettled{
		EventImpl: EventImpl{Type_: EventTypeTurnSettled, Metadata_: md},
		EntryID:   entryID,
		OK:        err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

type HistorySynced struct {
	EventImpl
	Conversations []chat.Conversation `json:"conversations"`
}

func NewHistorySynced(md EventMetadata, convs []chat.Conversation) *HistorySynced {
	return &HistorySynced{
		EventImpl:     EventImpl{Type_: EventTypeHistorySynced, Metadata_: md},
		Conversations: convs,
	}
}

// TranscriptCommitted carries the settled transcript of one conversation,
// after a reveal finished or a response was regenerated.
type TranscriptCommitted struct {
	EventImpl
	Conversation chat.Conversation `json:"conversation"`
}

func NewTranscriptCommitted(md EventMetadata, conv chat.Conversation) *TranscriptCommitted {
	return &TranscriptCommitted{
		EventImpl:    EventImpl{Type_: EventTypeTranscriptCommitted, Metadata_: md},
		Conversation: conv,
	}
}

func ToJSON(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s event", ev.Type())
	}
	return b, nil
}

// NewEventFromJSON decodes an event envelope produced by ToJSON.
func NewEventFromJSON(b []byte) (Event, error) {
	var head EventImpl
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, errors.Wrap(err, "decode event envelope")
	}

	var ev Event
	switch head.Type_ {
	case EventTypeTranscriptReset:
		ev = &TranscriptReset{}
	case EventTypeEntryAppended:
		ev = &EntryAppended{}
	case EventTypeEntryUpdated:
		ev = &EntryUpdated{}
	case EventTypeSidebarUpdated:
		ev = &SidebarUpdated{}
	case EventTypeSessionChanged:
		ev = &SessionChanged{}
	case EventTypeNoticeRaised:
		ev = &NoticeRaised{}
	case EventTypeBusyChanged:
		ev = &BusyChanged{}
	case EventTypeTurnSettled:
		ev = &TurnSettled{}
	case EventTypeHistorySynced:
		ev = &HistorySynced{}
	case EventTypeTranscriptCommitted:
		ev = &TranscriptCommitted{}
	default:
		return nil, errors.Errorf("unknown event type %q", head.Type_)
	}

	if err := json.Unmarshal(b, ev); err != nil {
		return nil, errors.Wrapf(err, "decode %s event", head.Type_)
	}
	return ev, nil
}
