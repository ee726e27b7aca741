package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/docchat/pkg/events"
)

// EventMsg wraps an engine event for the bubbletea program.
type EventMsg struct {
	Event events.Event
}

// Sender is the part of *tea.Program the view needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramView forwards engine events to a bubbletea program. Apply never
// blocks the engine loop: events are queued and pumped to the program in
// order by a separate goroutine. Events applied before Attach are held
// until a program is attached.
type ProgramView struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []events.Event
	closed  bool
	started bool
}

var _ events.View = &ProgramView{}

func NewProgramView() *ProgramView {
	v := &ProgramView{}
	v.cond = sync.NewCond(&v.mu)
	return v
}

func (v *ProgramView) Apply(ev events.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.queue = append(v.queue, ev)
	v.cond.Signal()
}

// Attach starts pumping queued events into p. It may be called once.
func (v *ProgramView) Attach(p Sender) {
	v.mu.Lock()
	if v.started || v.closed {
		v.mu.Unlock()
		return
	}
	v.started = true
	v.mu.Unlock()

	go v.pump(p)
}

// Close stops the pump and drops anything still queued.
func (v *ProgramView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.queue = nil
	v.cond.Broadcast()
}

func (v *ProgramView) pump(p Sender) {
	for {
		v.mu.Lock()
		for len(v.queue) == 0 && !v.closed {
			v.cond.Wait()
		}
		if v.closed {
			v.mu.Unlock()
			return
		}
		batch := v.queue
		v.queue = nil
		v.mu.Unlock()

		for _, ev := range batch {
			p.Send(EventMsg{Event: ev})
		}
	}
}
