package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/docchat/pkg/events"
)

type sidebarItem struct {
	events.SidebarItem
}

func (i sidebarItem) FilterValue() string { return i.Title }

// sidebarDelegate renders a conversation as a title line and a date line,
// marking the active one.
type sidebarDelegate struct{}

func (sidebarDelegate) Height() int                             { return 2 }
func (sidebarDelegate) Spacing() int                            { return 1 }
func (sidebarDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (sidebarDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(sidebarItem)
	if !ok {
		return
	}
	width := m.Width()
	marker := "  "
	if it.Active {
		marker = "• "
	}
	title := truncate(marker+it.Title, width)
	date := truncate("  "+it.Date, width)

	titleStyle, dateStyle := sidebarTitleStyle, sidebarDateStyle
	if index == m.Index() {
		titleStyle, dateStyle = sidebarSelectedStyle, sidebarSelectedStyle
	}
	_, _ = fmt.Fprintf(w, "%s\n%s", titleStyle.Width(width).Render(title), dateStyle.Width(width).Render(date))
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return strings.TrimRight(string(r[:width-1]), " ") + "…"
}

func newSidebarList() list.Model {
	l := list.New(nil, sidebarDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

func sidebarItems(items []events.SidebarItem) []list.Item {
	out := make([]list.Item, 0, len(items))
	for _, it := range items {
		out = append(out, sidebarItem{it})
	}
	return out
}
