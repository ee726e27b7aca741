package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send          key.Binding
	NewChat       key.Binding
	Regenerate    key.Binding
	Speak         key.Binding
	Copy          key.Binding
	Refresh       key.Binding
	Focus         key.Binding
	ToggleSidebar key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send:          key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send / open")),
		NewChat:       key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
		Regenerate:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "regenerate")),
		Speak:         key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "read aloud")),
		Copy:          key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy reply")),
		Refresh:       key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "reload history")),
		Focus:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
		ToggleSidebar: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "sidebar")),
		ScrollUp:      key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown:    key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Help:          key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "help")),
		Quit:          key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NewChat, k.Regenerate, k.Focus, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.NewChat, k.Regenerate, k.Speak},
		{k.Copy, k.Refresh, k.Focus, k.ToggleSidebar},
		{k.ScrollUp, k.ScrollDown, k.Help, k.Quit},
	}
}
