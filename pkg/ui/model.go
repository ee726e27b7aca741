package ui

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/engine"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/google/uuid"
)

// Actions are the engine operations the TUI triggers. They are expected to
// return immediately.
type Actions interface {
	SendMessage(text string)
	RegenerateResponse(messageID string)
	NewChat()
	LoadConversationByID(chatID string)
	RefreshHistory()
	Speak(entryID string)
}

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

const (
	headerHeight   = 1
	noticeHeight   = 1
	inputHeight    = 3
	minSidebarCols = 24
)

type noticeExpiredMsg struct{ id string }

type copiedMsg struct{ err error }

// Model is the chat TUI. It only knows what the engine told it through
// events, folded into an events.Mirror.
type Model struct {
	actions Actions
	keys    keyMap
	mirror  events.Mirror

	help     help.Model
	viewport viewport.Model
	input    textarea.Model
	sidebar  list.Model
	spinner  spinner.Model
	markdown *markdownRenderer
	copyText func(string) error

	notices     []events.Notice
	noticeTTL   time.Duration
	focus       focusArea
	showSidebar bool

	width, height int
	sidebarWidth  int
}

type ModelOption func(*Model)

// WithMarkdownStyle overrides the glamour style picked from the terminal.
func WithMarkdownStyle(style string) ModelOption {
	return func(m *Model) { m.markdown = newMarkdownRenderer(style) }
}

func WithClipboard(fn func(string) error) ModelOption {
	return func(m *Model) { m.copyText = fn }
}

func WithNoticeTTL(d time.Duration) ModelOption {
	return func(m *Model) {
		if d > 0 {
			m.noticeTTL = d
		}
	}
}

func NewModel(actions Actions, opts ...ModelOption) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your question..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accent).Bold(true)

	m := Model{
		actions:     actions,
		keys:        defaultKeyMap(),
		mirror:      events.Mirror{Welcome: true},
		help:        help.New(),
		viewport:    viewport.New(0, 0),
		input:       ta,
		sidebar:     newSidebarList(),
		spinner:     sp,
		copyText:    clipboard.WriteAll,
		noticeTTL:   engine.DefaultNoticeTTL,
		showSidebar: true,
	}
	for _, o := range opts {
		o(&m)
	}
	if m.markdown == nil {
		m.markdown = newMarkdownRenderer(MarkdownStyle())
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case EventMsg:
		return m.applyEvent(msg.Event)

	case noticeExpiredMsg:
		m.dropNotice(msg.id)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			return m.pushNotice(events.NoticeError, "Clipboard unavailable")
		}
		return m.pushNotice(events.NoticeInfo, "Reply copied")

	case spinner.TickMsg:
		if !m.mirror.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	actions := m.actions
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		if !m.showSidebar && m.focus == focusSidebar {
			m.focus = focusInput
		}
		m.layout()
		return m, m.applyFocus()
	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusInput && m.showSidebar {
			m.focus = focusSidebar
		} else {
			m.focus = focusInput
		}
		return m, m.applyFocus()
	case key.Matches(msg, m.keys.NewChat):
		return m, func() tea.Msg { actions.NewChat(); return nil }
	case key.Matches(msg, m.keys.Regenerate):
		return m, func() tea.Msg { actions.RegenerateResponse(""); return nil }
	case key.Matches(msg, m.keys.Speak):
		return m, func() tea.Msg { actions.Speak(""); return nil }
	case key.Matches(msg, m.keys.Refresh):
		return m, func() tea.Msg { actions.RefreshHistory(); return nil }
	case key.Matches(msg, m.keys.Copy):
		last, ok := m.mirror.LastAssistant()
		if !ok || last.Revealing {
			return m.pushNotice(events.NoticeInfo, "Nothing to copy")
		}
		copyText, text := m.copyText, last.Content
		return m, func() tea.Msg { return copiedMsg{err: copyText(text)} }
	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusSidebar {
		if key.Matches(msg, m.keys.Send) {
			it, ok := m.sidebar.SelectedItem().(sidebarItem)
			if !ok {
				return m, nil
			}
			chatID := it.ChatID
			return m, func() tea.Msg { actions.LoadConversationByID(chatID); return nil }
		}
		var cmd tea.Cmd
		m.sidebar, cmd = m.sidebar.Update(msg)
		return m, cmd
	}

	if key.Matches(msg, m.keys.Send) {
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, func() tea.Msg { actions.SendMessage(text); return nil }
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) applyFocus() tea.Cmd {
	if m.focus == focusInput {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m Model) applyEvent(ev events.Event) (tea.Model, tea.Cmd) {
	if n, ok := ev.(*events.NoticeRaised); ok {
		return m.showNotice(n.Notice)
	}

	wasBusy := m.mirror.Busy
	if !m.mirror.Apply(ev) {
		return m, nil
	}

	var cmd tea.Cmd
	switch e := ev.(type) {
	case *events.SidebarUpdated:
		cmd = m.sidebar.SetItems(sidebarItems(m.mirror.Sidebar))
		if i := m.mirror.ActiveSidebarIndex(); i >= 0 {
			m.sidebar.Select(i)
		}
	case *events.SessionChanged:
	case *events.BusyChanged:
		if e.Busy && !wasBusy {
			cmd = m.spinner.Tick
		}
	case *events.EntryUpdated:
		m.refreshTranscript(e.FollowTail)
	default:
		m.refreshTranscript(true)
	}
	return m, cmd
}

func (m *Model) refreshTranscript(followTail bool) {
	m.viewport.SetContent(m.renderTranscript())
	if followTail {
		m.viewport.GotoBottom()
	}
}

func (m Model) showNotice(n events.Notice) (tea.Model, tea.Cmd) {
	ttl := n.TTL
	if ttl <= 0 {
		ttl = m.noticeTTL
	}
	m.notices = append(m.notices, n)
	id := n.ID
	return m, tea.Tick(ttl, func(time.Time) tea.Msg { return noticeExpiredMsg{id: id} })
}

func (m Model) pushNotice(level events.NoticeLevel, text string) (tea.Model, tea.Cmd) {
	return m.showNotice(events.Notice{ID: uuid.NewString(), Level: level, Text: text, TTL: m.noticeTTL})
}

func (m *Model) dropNotice(id string) {
	for i, n := range m.notices {
		if n.ID == id {
			m.notices = append(m.notices[:i], m.notices[i+1:]...)
			return
		}
	}
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.sidebarWidth = 0
	if m.showSidebar {
		w := m.width / 4
		if w < minSidebarCols {
			w = minSidebarCols
		}
		if w > m.width/2 {
			w = m.width / 2
		}
		m.sidebarWidth = w
	}
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	bodyHeight := m.height - headerHeight - noticeHeight - (inputHeight + 1) - helpHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	transcriptWidth := m.width - m.sidebarWidth
	if transcriptWidth < 1 {
		transcriptWidth = 1
	}

	m.viewport.Width = transcriptWidth
	m.viewport.Height = bodyHeight
	m.markdown.setWidth(transcriptWidth - 2)
	m.input.SetWidth(m.width)
	m.help.Width = m.width
	if m.sidebarWidth > 0 {
		// border and padding take four columns, the border two rows
		m.sidebar.SetSize(m.sidebarWidth-4, bodyHeight-2)
	}
	m.refreshTranscript(m.viewport.AtBottom())
}

func (m Model) renderTranscript() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if len(m.mirror.Entries) == 0 {
		if !m.mirror.Welcome {
			return ""
		}
		return "\n" + welcomeTitleStyle.Width(width).Render(engine.WelcomeTitle) + "\n" +
			welcomeSubtitleStyle.Width(width).Render(engine.WelcomeSubtitle)
	}

	body := lipgloss.NewStyle().Width(width)
	blocks := make([]string, 0, len(m.mirror.Entries))
	for _, en := range m.mirror.Entries {
		var b strings.Builder
		switch {
		case en.Role == chat.RoleUser:
			b.WriteString(userLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(body.Render(en.Content))
		case en.Kind == events.EntryKindError:
			b.WriteString(assistantLabelStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(errorEntryStyle.Width(width).Render(en.Content))
		case en.Revealing:
			b.WriteString(assistantLabelStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(body.Render(en.Content + cursorStyle.Render("▌")))
		default:
			b.WriteString(assistantLabelStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(m.markdown.render(en.ID, en.Content))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := headerStyle.Render("docchat")
	if m.mirror.ChatID != "" {
		header += chatIDStyle.Render(m.mirror.ChatID)
	}
	if m.mirror.Busy {
		header += " " + m.spinner.View()
	}

	body := m.viewport.View()
	if m.sidebarWidth > 0 {
		pane := sidebarPane
		if m.focus == focusSidebar {
			pane = sidebarPaneFocused
		}
		var side string
		if len(m.mirror.Sidebar) == 0 {
			side = placeholderStyle.Render(m.mirror.SidebarPlaceholder)
		} else {
			side = m.sidebar.View()
		}
		side = pane.Width(m.sidebarWidth - 2).Height(m.viewport.Height - 2).Render(side)
		body = lipgloss.JoinHorizontal(lipgloss.Top, side, body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.noticeLine(),
		inputPane.Width(m.width).Render(m.input.View()),
		m.help.View(m.keys),
	)
}

func (m Model) noticeLine() string {
	if len(m.notices) == 0 {
		return ""
	}
	n := m.notices[len(m.notices)-1]
	style := noticeInfoStyle
	if n.Level == events.NoticeError {
		style = noticeErrorStyle
	}
	return style.Render(truncate(n.Text, m.width-2))
}
