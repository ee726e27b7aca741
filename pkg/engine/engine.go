package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/client"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRevealInterval = 20 * time.Millisecond
	DefaultNoticeTTL      = 3 * time.Second

	WelcomeTitle    = "Welcome to Your Virtual Consultation"
	WelcomeSubtitle = "Ask your medical questions and receive professional advice"

	SidebarEmpty = "No conversations yet"
	SidebarError = "Error loading history"

	ConnectionErrorReply = "Sorry, I'm having trouble connecting right now. Please try again later."
)

// Backend is the subset of the HTTP client the engine drives.
type Backend interface {
	Chat(ctx context.Context, req client.ChatRequest) (client.ChatReply, error)
	ChatHistory(ctx context.Context) ([]chat.Conversation, error)
	Conversation(ctx context.Context, chatID string) (chat.Messages, error)
	NewChat(ctx context.Context) error
}

// Speaker reads text aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Engine reconciles the rendered transcript and sidebar with the backend and
// drives the incremental reveal of replies. Every exported operation is
// posted onto the loop started by Run and returns immediately.
type Engine struct {
	backend   Backend
	session   *session.State
	view      events.View
	sinks     []events.Sink
	scheduler Scheduler
	speaker   Speaker
	now       func() time.Time

	revealInterval time.Duration
	noticeTTL      time.Duration
	autoSpeak      bool

	ops      chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	runCtx   context.Context
	inflight atomic.Int64

	// loop-owned state
	transcript  []events.Entry
	welcome     bool
	sidebar     []events.SidebarItem
	placeholder string
	busy        bool
	reveal      *reveal
	revealGen   uint64
	epoch       uint64
	historyGen  uint64
	serverCount int
}

type Option func(*Engine)

func WithSession(s *session.State) Option {
	return func(e *Engine) { e.session = s }
}

func WithView(v events.View) Option {
	return func(e *Engine) { e.view = v }
}

func WithSink(s events.Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, s) }
}

func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

func WithSpeaker(s Speaker) Option {
	return func(e *Engine) { e.speaker = s }
}

func WithAutoSpeak(v bool) Option {
	return func(e *Engine) { e.autoSpeak = v }
}

func WithRevealInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.revealInterval = d
		}
	}
}

func WithNoticeTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.noticeTTL = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:        backend,
		scheduler:      WallScheduler(),
		now:            time.Now,
		revealInterval: DefaultRevealInterval,
		noticeTTL:      DefaultNoticeTTL,
		ops:            make(chan func(), 256),
		stopped:        make(chan struct{}),
		welcome:        true,
	}
	for _, o := range opts {
		o(e)
	}
	if e.session == nil {
		e.session = session.NewState()
	}
	return e
}

// ActiveChatID is safe to call from any goroutine.
func (e *Engine) ActiveChatID() (string, bool) {
	return e.session.ActiveID()
}

// Start renders the initial state: the welcome placeholder, or the given
// conversation when chatID is set, and a first sidebar refresh.
func (e *Engine) Start(chatID string) {
	chatID = strings.TrimSpace(chatID)
	e.post(func() {
		e.emit(events.NewTranscriptReset(e.metadata(), nil, true))
		e.refreshHistory(chatID)
	})
}

// LoadConversation replaces the transcript with conv and makes it active.
func (e *Engine) LoadConversation(conv chat.Conversation) {
	e.post(func() { e.loadConversation(conv) })
}

// LoadConversationByID loads a conversation from the cached history list,
// fetching its messages first when the cached record has none.
func (e *Engine) LoadConversationByID(chatID string) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return
	}
	e.post(func() { e.loadConversationByID(chatID) })
}

func (e *Engine) SendMessage(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.post(func() { e.sendMessage(text) })
}

// RegenerateResponse asks for a new version of the assistant entry messageID.
// An empty id targets the most recent assistant reply.
func (e *Engine) RegenerateResponse(messageID string) {
	e.post(func() { e.regenerate(strings.TrimSpace(messageID)) })
}

func (e *Engine) NewChat() {
	e.post(e.newChat)
}

func (e *Engine) RefreshHistory() {
	e.post(func() { e.refreshHistory("") })
}

// Speak reads a finalized assistant entry aloud. An empty id targets the most
// recent assistant reply.
func (e *Engine) Speak(entryID string) {
	e.post(func() { e.speak(strings.TrimSpace(entryID)) })
}

// Snapshot is a copy of the loop-owned render state.
type Snapshot struct {
	ChatID             string
	Transcript         []events.Entry
	Welcome            bool
	Sidebar            []events.SidebarItem
	SidebarPlaceholder string
	Busy               bool
	Revealing          bool
	RegenerateTarget   string
}

// Snapshot must not be called from a view callback.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	done := make(chan struct{})
	fn := func() {
		defer close(done)
		snap.ChatID, _ = e.session.ActiveID()
		snap.Transcript = append([]events.Entry(nil), e.transcript...)
		snap.Welcome = e.welcome
		snap.Sidebar = append([]events.SidebarItem(nil), e.sidebar...)
		snap.SidebarPlaceholder = e.placeholder
		snap.Busy = e.busy
		snap.Revealing = e.reveal != nil
		if i := e.lastAssistant(); i >= 0 {
			snap.RegenerateTarget = e.transcript[i].ID
		}
	}
	select {
	case e.ops <- fn:
	case <-e.stopped:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case <-done:
		return snap, nil
	case <-e.stopped:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (e *Engine) metadata() events.EventMetadata {
	id, _ := e.session.ActiveID()
	md := events.NewMetadata(id)
	md.Time = e.now()
	return md
}

// sinkEvents are the event types published to sinks. Views see every event;
// reveal ticks stay off the bus.
var sinkEvents = map[events.EventType]bool{
	events.EventTypeHistorySynced:       true,
	events.EventTypeTranscriptCommitted: true,
}

func (e *Engine) emit(ev events.Event) {
	if e.view != nil {
		e.view.Apply(ev)
	}
	if len(e.sinks) == 0 || !sinkEvents[ev.Type()] {
		return
	}
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, s := range e.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).
				Str("component", "engine").
				Str("event_type", string(ev.Type())).
				Msg("sink publish failed")
		}
	}
}

func (e *Engine) setBusy(busy bool) {
	if e.busy == busy {
		return
	}
	e.busy = busy
	e.emit(events.NewBusyChanged(e.metadata(), busy))
}
