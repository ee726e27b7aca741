package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("62")
	muted  = lipgloss.Color("#888888")
	light  = lipgloss.Color("#FFFDF5")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(light).Background(accent).Padding(0, 1)
	chatIDStyle = lipgloss.NewStyle().Foreground(muted).PaddingLeft(1)

	welcomeTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(light).Align(lipgloss.Center)
	welcomeSubtitleStyle = lipgloss.NewStyle().Foreground(muted).Align(lipgloss.Center)

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	errorEntryStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	cursorStyle         = lipgloss.NewStyle().Foreground(accent)

	sidebarPane = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
	sidebarPaneFocused = sidebarPane.BorderForeground(lipgloss.Color("170"))
	placeholderStyle   = lipgloss.NewStyle().Foreground(muted).Italic(true)

	sidebarTitleStyle    = lipgloss.NewStyle().Foreground(light)
	sidebarDateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	sidebarSelectedStyle = lipgloss.NewStyle().Foreground(light).Background(accent)

	noticeInfoStyle  = lipgloss.NewStyle().Foreground(light).Background(lipgloss.Color("24")).Padding(0, 1)
	noticeErrorStyle = lipgloss.NewStyle().Foreground(light).Background(lipgloss.Color("124")).Padding(0, 1)

	inputPane = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(accent)
)
