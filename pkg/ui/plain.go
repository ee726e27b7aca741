package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/engine"
	"github.com/go-go-golems/docchat/pkg/events"
)

// WriterView prints the transcript as plain lines. Reveals are streamed
// character by character onto the current line.
type WriterView struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	echo    bool
	replay  bool
	sidebar bool

	streamID string
	printed  int
}

var _ events.View = &WriterView{}

type WriterViewOption func(*WriterView)

// WithEcho prints user messages as they are appended.
func WithEcho(v bool) WriterViewOption {
	return func(w *WriterView) { w.echo = v }
}

// WithReplay prints whole transcripts when a conversation is loaded.
func WithReplay(v bool) WriterViewOption {
	return func(w *WriterView) { w.replay = v }
}

// WithSidebar prints the conversation list whenever it changes.
func WithSidebar(v bool) WriterViewOption {
	return func(w *WriterView) { w.sidebar = v }
}

func NewWriterView(out, errOut io.Writer, opts ...WriterViewOption) *WriterView {
	w := &WriterView{out: out, errOut: errOut}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *WriterView) Apply(ev events.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch e := ev.(type) {
	case *events.TranscriptReset:
		w.endStream()
		if !w.replay {
			return
		}
		if len(e.Entries) == 0 && e.Welcome {
			_, _ = fmt.Fprintf(w.out, "%s\n%s\n\n", engine.WelcomeTitle, engine.WelcomeSubtitle)
			return
		}
		for _, en := range e.Entries {
			w.printEntry(en)
		}
	case *events.EntryAppended:
		en := e.Entry
		switch {
		case en.Role == chat.RoleUser:
			if w.echo {
				w.printEntry(en)
			}
		case en.Revealing:
			w.endStream()
			w.streamID = en.ID
			w.printed = 0
			_, _ = fmt.Fprint(w.out, "assistant> ")
			w.streamTo(en)
		default:
			w.printEntry(en)
		}
	case *events.EntryUpdated:
		en := e.Entry
		if en.ID == w.streamID {
			w.streamTo(en)
			return
		}
		if !en.Revealing {
			w.printEntry(en)
		}
	case *events.SidebarUpdated:
		if !w.sidebar {
			return
		}
		if len(e.Items) == 0 {
			_, _ = fmt.Fprintf(w.errOut, "(%s)\n", e.Placeholder)
			return
		}
		for _, it := range e.Items {
			marker := " "
			if it.Active {
				marker = "*"
			}
			_, _ = fmt.Fprintf(w.errOut, "%s %-12s %s  %s\n", marker, it.Date, it.ChatID, it.Title)
		}
	case *events.NoticeRaised:
		w.endStream()
		_, _ = fmt.Fprintf(w.errOut, "[%s] %s\n", e.Notice.Level, e.Notice.Text)
	}
}

func (w *WriterView) streamTo(en events.Entry) {
	r := []rune(en.Content)
	if w.printed < len(r) {
		_, _ = fmt.Fprint(w.out, string(r[w.printed:]))
		w.printed = len(r)
	}
	if !en.Revealing {
		_, _ = fmt.Fprintln(w.out)
		w.streamID = ""
		w.printed = 0
	}
}

// endStream terminates a reveal line that will not get further updates.
func (w *WriterView) endStream() {
	if w.streamID == "" {
		return
	}
	_, _ = fmt.Fprintln(w.out)
	w.streamID = ""
	w.printed = 0
}

func (w *WriterView) printEntry(en events.Entry) {
	switch {
	case en.Kind == events.EntryKindError:
		_, _ = fmt.Fprintf(w.out, "! %s\n", en.Content)
	case en.Role == chat.RoleUser:
		_, _ = fmt.Fprintf(w.out, "you> %s\n", en.Content)
	default:
		_, _ = fmt.Fprintf(w.out, "assistant> %s\n", en.Content)
	}
}
