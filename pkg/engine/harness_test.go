package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/client"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type fakeBackend struct {
	mu sync.Mutex

	replies       []client.ChatReply
	chatErr       error
	chatGate      chan struct{}
	chatRequests  []client.ChatRequest
	history       []chat.Conversation
	historyErr    error
	historyCalls  int
	conversations map[string]chat.Messages
	newChatErr    error
	newChatCalls  int
}

func (b *fakeBackend) Chat(ctx context.Context, req client.ChatRequest) (client.ChatReply, error) {
	b.mu.Lock()
	gate := b.chatGate
	b.chatRequests = append(b.chatRequests, req)
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return client.ChatReply{}, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chatErr != nil {
		return client.ChatReply{}, b.chatErr
	}
	if len(b.replies) == 0 {
		return client.ChatReply{Reply: "ok"}, nil
	}
	r := b.replies[0]
	b.replies = b.replies[1:]
	return r, nil
}

func (b *fakeBackend) ChatHistory(context.Context) ([]chat.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.historyCalls++
	if b.historyErr != nil {
		return nil, b.historyErr
	}
	return append([]chat.Conversation(nil), b.history...), nil
}

func (b *fakeBackend) Conversation(_ context.Context, chatID string) (chat.Messages, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs, ok := b.conversations[chatID]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Message: "Chat not found"}
	}
	return msgs, nil
}

func (b *fakeBackend) NewChat(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newChatCalls++
	return b.newChatErr
}

func (b *fakeBackend) requests() []client.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]client.ChatRequest(nil), b.chatRequests...)
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// manualScheduler only runs callbacks when the test fires them.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	fn      func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(_ time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fire runs every pending callback. With includeStopped it also runs timers
// that were stopped, as happens when Stop races with expiry.
func (s *manualScheduler) fire(includeStopped bool) int {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if t.fired || (t.stopped && !includeStopped) {
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	s.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
	return len(due)
}

type recordingView struct {
	mu     sync.Mutex
	events []events.Event
	mirror events.Mirror
}

func (v *recordingView) Apply(ev events.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, ev)
	v.mirror.Apply(ev)
}

func (v *recordingView) all() []events.Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]events.Event(nil), v.events...)
}

func (v *recordingView) notices() []string {
	var out []string
	for _, ev := range v.all() {
		if n, ok := ev.(*events.NoticeRaised); ok {
			out = append(out, n.Notice.Text)
		}
	}
	return out
}

// refused returns the entry ids of turns settled as refused.
func (v *recordingView) refused() []string {
	var out []string
	for _, ev := range v.all() {
		if ts, ok := ev.(*events.TurnSettled); ok && ts.Error == errTurnRefused.Error() {
			out = append(out, ts.EntryID)
		}
	}
	return out
}

// updatesFor returns the content of every append/update of entry id, in order.
func (v *recordingView) updatesFor(id string) []string {
	var out []string
	for _, ev := range v.all() {
		switch e := ev.(type) {
		case *events.EntryAppended:
			if e.Entry.ID == id {
				out = append(out, e.Entry.Content)
			}
		case *events.EntryUpdated:
			if e.Entry.ID == id {
				out = append(out, e.Entry.Content)
			}
		}
	}
	return out
}

func (v *recordingView) mirrored() events.Mirror {
	v.mu.Lock()
	defer v.mu.Unlock()
	m := v.mirror
	m.Entries = append([]events.Entry(nil), v.mirror.Entries...)
	return m
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	e       *Engine
	backend *fakeBackend
	sched   *manualScheduler
	view    *recordingView
}

func newHarness(t *testing.T, backend *fakeBackend, opts ...Option) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	view := &recordingView{}
	sched := &manualScheduler{}
	base := []Option{
		WithView(view),
		WithScheduler(sched),
		WithClock(func() time.Time { return testNow }),
	}
	e := New(backend, append(base, opts...)...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{t: t, ctx: ctx, e: e, backend: backend, sched: sched, view: view}
}

func (h *harness) idle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.e.WaitIdle(ctx))
}

// drain fires reveal ticks until none are pending.
func (h *harness) drain() {
	h.t.Helper()
	for i := 0; i < 10000; i++ {
		n := h.sched.fire(false)
		h.idle()
		if n == 0 {
			return
		}
	}
	h.t.Fatal("reveal did not settle")
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	snap, err := h.e.Snapshot(ctx)
	require.NoError(h.t, err)
	return snap
}

type line struct {
	Role    chat.Role
	Content string
}

func lines(entries []events.Entry) []line {
	out := make([]line, 0, len(entries))
	for _, e := range entries {
		out = append(out, line{Role: e.Role, Content: e.Content})
	}
	return out
}

func visibleLines(msgs chat.Messages) []line {
	out := []line{}
	for _, m := range msgs.Visible() {
		out = append(out, line{Role: m.Role, Content: m.Content})
	}
	return out
}
