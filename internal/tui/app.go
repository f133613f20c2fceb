// Package tui is the interactive dashboard: the task list and the AI
// assistant side by side, backed by the shared cache and chat bridge.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskflow/internal/cache"
	"taskflow/internal/chat"
	"taskflow/internal/task"
)

// PanelID identifies a panel.
type PanelID int

const (
	PanelTasks PanelID = iota
	PanelChat
)

// --- Tea Messages ---

// TasksChangedMsg signals that the task cache changed.
type TasksChangedMsg struct{}

// ChatChangedMsg signals that the conversation changed.
type ChatChangedMsg struct{}

// turnFinishedMsg signals that a submitted chat turn settled.
type turnFinishedMsg struct{}

// fetchFinishedMsg signals that a task list fetch settled.
type fetchFinishedMsg struct{}

// App is the main Bubble Tea model.
type App struct {
	// Layout
	width  int
	height int

	// Panels
	activePanel PanelID
	tasksView   viewport.Model
	chatView    viewport.Model

	// Input
	input textarea.Model

	// Collaborators
	cache  *cache.Cache
	bridge *chat.Bridge

	// Status data
	userEmail string

	// Config
	theme Theme
	keys  KeyMap
}

// NewApp creates the dashboard model over an already-wired cache and
// bridge.
func NewApp(c *cache.Cache, b *chat.Bridge, userEmail string) App {
	ta := textarea.New()
	ta.Placeholder = `Ask the assistant ("Add buy groceries", "Show my tasks")`
	ta.CharLimit = 4096
	ta.SetHeight(3)
	ta.Focus()

	return App{
		activePanel: PanelChat,
		input:       ta,
		cache:       c,
		bridge:      b,
		userEmail:   userEmail,
		theme:       DarkTheme(),
		keys:        DefaultKeyMap(),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.fetchCmd())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "tab":
			a.activePanel = (a.activePanel + 1) % 2
			return a, nil
		case "ctrl+r":
			return a, a.fetchCmd()
		case "enter":
			text := a.input.Value()
			if strings.TrimSpace(text) == "" || a.bridge.Busy() {
				return a, nil
			}
			a.input.Reset()
			return a, a.sendCmd(text)
		case "pgup":
			a.activeView().HalfViewUp()
			return a, nil
		case "pgdown":
			a.activeView().HalfViewDown()
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case TasksChangedMsg:
		a.refreshTasksView()
		return a, nil

	case ChatChangedMsg:
		a.refreshChatView()
		return a, nil

	case turnFinishedMsg, fetchFinishedMsg:
		a.refreshTasksView()
		a.refreshChatView()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Loading TaskFlow..."
	}

	tasksWidth := a.width * 40 / 100
	if tasksWidth < 30 {
		tasksWidth = 30
	}
	chatWidth := a.width - tasksWidth - 1

	inputHeight := 5
	statusHeight := 1
	tabHeight := 1
	panelHeight := a.height - inputHeight - statusHeight - tabHeight
	if panelHeight < 3 {
		panelHeight = 3
	}

	tabs := a.renderTabs()
	tasksPanel := a.renderTasksPanel(tasksWidth, panelHeight+inputHeight)
	chatPanel := a.renderChatPanel(chatWidth, panelHeight)
	inputBox := a.theme.InputStyle.Width(chatWidth).Render(a.input.View())

	right := lipgloss.JoinVertical(lipgloss.Left, chatPanel, inputBox)
	body := lipgloss.JoinHorizontal(lipgloss.Top, tasksPanel, " ", right)

	return lipgloss.JoinVertical(lipgloss.Left, tabs, body, a.renderStatusBar())
}

// --- Internal methods ---

func (a *App) relayout() {
	tasksWidth := a.width * 40 / 100
	if tasksWidth < 30 {
		tasksWidth = 30
	}
	chatWidth := a.width - tasksWidth - 1
	panelHeight := a.height - 8
	if panelHeight < 3 {
		panelHeight = 3
	}

	a.tasksView = viewport.New(tasksWidth, panelHeight+5)
	a.chatView = viewport.New(chatWidth, panelHeight)
	a.input.SetWidth(chatWidth - 4)

	a.refreshTasksView()
	a.refreshChatView()
}

func (a *App) activeView() *viewport.Model {
	if a.activePanel == PanelTasks {
		return &a.tasksView
	}
	return &a.chatView
}

func (a *App) refreshTasksView() {
	tasks := a.cache.Tasks()

	var b strings.Builder
	if len(tasks) == 0 {
		b.WriteString(a.theme.MutedStyle.Render("  No tasks yet. Ask the assistant to add one."))
	}
	for _, t := range tasks {
		b.WriteString(RenderTaskLine(t, a.theme))
		b.WriteByte('\n')
	}
	a.tasksView.SetContent(b.String())
}

func (a *App) refreshChatView() {
	var b strings.Builder
	for _, turn := range a.bridge.Turns() {
		switch turn.Role {
		case chat.RoleUser:
			b.WriteString(a.theme.UserTurnStyle.Render("You") + " " + turn.Content + "\n")
		default:
			b.WriteString(RenderMarkdown(turn.Content, a.chatView.Width) + "\n")
		}
		b.WriteByte('\n')
	}
	if a.bridge.Busy() {
		b.WriteString(a.theme.MutedStyle.Render("  Assistant is thinking..."))
	}
	a.chatView.SetContent(b.String())
	a.chatView.GotoBottom()
}

func (a App) sendCmd(text string) tea.Cmd {
	bridge := a.bridge
	return func() tea.Msg {
		bridge.Send(context.Background(), text)
		return turnFinishedMsg{}
	}
}

func (a App) fetchCmd() tea.Cmd {
	c := a.cache
	return func() tea.Msg {
		_, _ = c.Fetch(context.Background(), task.ListFilter{})
		return fetchFinishedMsg{}
	}
}

// --- Render methods ---

func (a App) renderTabs() string {
	tabs := []struct {
		id   PanelID
		name string
	}{
		{PanelTasks, "Tasks"},
		{PanelChat, "AI Assistant"},
	}

	var parts []string
	parts = append(parts, a.theme.TitleStyle.Render(" TaskFlow "))
	for _, tab := range tabs {
		style := a.theme.InactiveTabStyle
		if tab.id == a.activePanel {
			style = a.theme.ActiveTabStyle
		}
		parts = append(parts, style.Render(tab.name))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a App) renderTasksPanel(width, height int) string {
	header := a.theme.TitleStyle.Render(fmt.Sprintf(" Tasks (%d)", len(a.cache.Tasks())))
	body := a.tasksView.View()
	return a.theme.PanelStyle.
		Width(width).
		Height(height).
		Render(header + "\n" + body)
}

func (a App) renderChatPanel(width, height int) string {
	return a.theme.PanelStyle.
		Width(width).
		Height(height).
		Render(a.chatView.View())
}

func (a App) renderStatusBar() string {
	status := "ready"
	if a.cache.Loading() {
		status = "syncing tasks"
	}
	if a.bridge.Busy() {
		status = "waiting for assistant"
	}

	left := fmt.Sprintf(" %s · %s", a.userEmail, status)
	if errMsg := a.cache.Err(); errMsg != "" {
		left += " · " + a.theme.ErrorStyle.Render(errMsg)
	}
	right := "tab: switch · ctrl+r: refresh · ctrl+c: quit  "

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return a.theme.StatusBarStyle.Width(a.width).Render(bar)
}

// Run starts the dashboard and blocks until the user quits. Cache and
// bridge change notifications are forwarded into the program so panels
// repaint as soon as state moves, including the delayed refresh after
// an assistant mutation.
func Run(c *cache.Cache, b *chat.Bridge, userEmail string) error {
	app := NewApp(c, b, userEmail)
	p := tea.NewProgram(app, tea.WithAltScreen())

	c.SetOnChange(func() { p.Send(TasksChangedMsg{}) })
	b.SetOnChange(func() { p.Send(ChatChangedMsg{}) })

	_, err := p.Run()
	return err
}
