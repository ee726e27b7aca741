package session

import (
	"strings"
	"sync"

	"github.com/go-go-golems/docchat/pkg/chat"
)

// State holds the active conversation pointer and the last conversation list
// fetched from the server. The engine is its only writer; readers outside the
// engine loop go through the mutex.
type State struct {
	mu       sync.RWMutex
	activeID string
	history  []chat.Conversation
	loaded   bool
}

func NewState() *State {
	return &State{}
}

// ActiveID returns the active conversation id. ok is false before the first
// successful send or explicit load, and after a new chat.
func (s *State) ActiveID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

// Adopt makes id the active conversation. It reports whether the pointer changed.
func (s *State) Adopt(id string) bool {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.activeID {
		return false
	}
	s.activeID = id
	return true
}

// Reset clears the active conversation pointer.
func (s *State) Reset() {
	s.mu.Lock()
	s.activeID = ""
	s.mu.Unlock()
}

func (s *State) SetHistory(convs []chat.Conversation) {
	cp := make([]chat.Conversation, len(convs))
	copy(cp, convs)
	s.mu.Lock()
	s.history = cp
	s.loaded = true
	s.mu.Unlock()
}

// History returns a copy of the cached conversation list.
func (s *State) History() []chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Conversation, len(s.history))
	copy(out, s.history)
	return out
}

// HistoryLoaded reports whether at least one history fetch succeeded.
func (s *State) HistoryLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *State) Lookup(id string) (chat.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.history {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Conversation{}, false
}

// Remember replaces the cached record with the same id, or prepends it.
func (s *State) Remember(conv chat.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.history {
		if c.ID == conv.ID {
			s.history[i] = conv
			return
		}
	}
	s.history = append([]chat.Conversation{conv}, s.history...)
}
