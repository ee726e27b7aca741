package events

import "github.com/go-go-golems/docchat/pkg/chat"

// Mirror folds engine events into a local copy of the rendered state. Views
// that cannot query the engine synchronously keep one of these. It is not
// safe for concurrent use.
type Mirror struct {
	ChatID             string
	Entries            []Entry
	Welcome            bool
	Sidebar            []SidebarItem
	SidebarPlaceholder string
	Busy               bool
}

// Apply updates the mirror and reports whether anything visible changed.
func (m *Mirror) Apply(ev Event) bool {
	switch e := ev.(type) {
	case *TranscriptReset:
		m.Entries = append(m.Entries[:0:0], e.Entries...)
		m.Welcome = e.Welcome
	case *EntryAppended:
		m.Welcome = false
		m.Entries = append(m.Entries, e.Entry)
	case *EntryUpdated:
		i := m.index(e.Entry.ID)
		if i < 0 {
			return false
		}
		m.Entries[i] = e.Entry
	case *SidebarUpdated:
		m.Sidebar = append(m.Sidebar[:0:0], e.Items...)
		m.SidebarPlaceholder = e.Placeholder
	case *SessionChanged:
		m.ChatID = e.ChatID
	case *BusyChanged:
		m.Busy = e.Busy
	default:
		return false
	}
	return true
}

func (m *Mirror) index(id string) int {
	for i := range m.Entries {
		if m.Entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Mirror) Entry(id string) (Entry, bool) {
	if i := m.index(id); i >= 0 {
		return m.Entries[i], true
	}
	return Entry{}, false
}

// LastAssistant returns the most recent assistant message, the default
// regeneration and read-aloud target.
func (m *Mirror) LastAssistant() (Entry, bool) {
	for i := len(m.Entries) - 1; i >= 0; i-- {
		e := m.Entries[i]
		if e.Role == chat.RoleAssistant && e.Kind == EntryKindMessage {
			return e, true
		}
	}
	return Entry{}, false
}

// ActiveSidebarIndex returns the position of the active conversation in the
// sidebar, or -1.
func (m *Mirror) ActiveSidebarIndex() int {
	for i, it := range m.Sidebar {
		if it.Active {
			return i
		}
	}
	return -1
}
