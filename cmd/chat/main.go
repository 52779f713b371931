package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"SkillXChange/internal/auth"
	"SkillXChange/internal/configuration"
	"SkillXChange/internal/model"
)

const refreshInterval = 200 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	unreadStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ownStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	otherStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type syncMsg struct{}

type activatedMsg struct{ err error }

type focusArea int

const (
	focusList focusArea = iota
	focusInput
)

type chatModel struct {
	container *configuration.Container
	ctx       context.Context

	conversations []model.Conversation
	cursor        int
	focus         focusArea

	thread   viewport.Model
	input    textinput.Model
	width    int
	height   int
	statusln string
}

func newChatModel(ctx context.Context, container *configuration.Container) chatModel {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 2000

	return chatModel{
		container: container,
		ctx:       ctx,
		thread:    viewport.New(80, 20),
		input:     input,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return syncMsg{}
	})
}

// threadViewport adapts the bubbles viewport to the thread state machine's
// scroll-anchoring contract.
type threadViewport struct {
	vp     *viewport.Model
	render func() string
}

func (t threadViewport) Extent() int {
	t.vp.SetContent(t.render())
	return t.vp.TotalLineCount()
}

func (t threadViewport) SetOffset(offset int) {
	t.vp.SetYOffset(offset)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.thread = viewport.New(msg.Width-36, msg.Height-7)
		m.syncThread(true)

	case syncMsg:
		atBottom := m.thread.AtBottom()
		m.conversations = m.container.List.Snapshot()
		if m.cursor >= len(m.conversations) {
			m.cursor = 0
		}
		m.syncThread(atBottom)
		cmds = append(cmds, tick())

	case activatedMsg:
		if msg.err != nil {
			m.statusln = msg.err.Error()
		}
		m.syncThread(true)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.focus == focusList || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		case "tab":
			if m.focus == focusList {
				m.focus = focusInput
				m.input.Focus()
			} else {
				m.focus = focusList
				m.input.Blur()
			}
			return m, nil
		case "pgup":
			vp := threadViewport{vp: &m.thread, render: m.renderThread}
			go m.container.Thread.LoadMore(m.ctx, vp)
			return m, nil
		}

		if m.focus == focusList {
			switch msg.String() {
			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}
			case "down", "j":
				if m.cursor < len(m.conversations)-1 {
					m.cursor++
				}
				if m.cursor > len(m.conversations)-3 && m.container.List.HasMore() {
					go m.container.List.LoadMore(m.ctx)
				}
			case "enter":
				if m.cursor < len(m.conversations) {
					id := m.conversations[m.cursor].ID
					m.container.List.Select(id)
					m.focus = focusInput
					m.input.Focus()
					cmds = append(cmds, m.activate(id))
				}
			}
			return m, tea.Batch(cmds...)
		}

		// input pane
		switch msg.String() {
		case "enter":
			if m.container.Thread.Send(m.input.Value()) {
				m.input.SetValue("")
			}
		default:
			before := m.input.Value()
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
			if m.input.Value() != before {
				m.container.Thread.InputChanged()
			}
			return m, tea.Batch(cmds...)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *chatModel) activate(id model.ID) tea.Cmd {
	return func() tea.Msg {
		return activatedMsg{err: m.container.Thread.Activate(m.ctx, id)}
	}
}

func (m *chatModel) syncThread(gotoBottom bool) {
	m.thread.SetContent(m.renderThread())
	if gotoBottom {
		m.thread.GotoBottom()
	}
}

func (m *chatModel) renderThread() string {
	messages := m.container.Thread.Messages()
	var currentUserID model.ID
	if user := m.container.List.CurrentUser(); user != nil {
		currentUserID = user.ID
	}

	var b strings.Builder
	if m.container.Thread.HasMore() {
		b.WriteString(mutedStyle.Render("-- pgup for older messages --") + "\n")
	}
	for _, message := range messages {
		stamp := mutedStyle.Render(message.CreatedAt.Local().Format("15:04"))
		who := otherStyle.Render(message.SenderID.String())
		if message.SenderID == currentUserID {
			who = ownStyle.Render("you")
		}
		fmt.Fprintf(&b, "%s %s: %s\n", stamp, who, message.Content)
	}
	return b.String()
}

func (m chatModel) View() string {
	var currentUserID model.ID
	if user := m.container.List.CurrentUser(); user != nil {
		currentUserID = user.ID
	}

	var sidebar strings.Builder
	sidebar.WriteString(titleStyle.Render("Messages") + "\n")
	activeID := m.container.List.ActiveID()
	for i, conversation := range m.conversations {
		other := conversation.OtherParticipant(currentUserID)
		name := other.Name
		if name == "" {
			name = other.UserID.String()
		}
		line := name
		if conversation.UnreadCount > 0 {
			line += unreadStyle.Render(fmt.Sprintf(" (%d)", conversation.UnreadCount))
		}
		switch {
		case conversation.ID == activeID:
			line = activeStyle.Render(line)
		case i == m.cursor && m.focus == focusList:
			line = "> " + line
		}
		sidebar.WriteString(line + "\n")
	}

	header := ""
	if activeID != "" {
		if m.container.Thread.OtherTyping() {
			header = mutedStyle.Render("typing...")
		}
	} else {
		header = mutedStyle.Render("Select a conversation to start chatting")
	}

	chat := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.thread.View(),
		m.input.View(),
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		borderStyle.Width(30).Render(sidebar.String()),
		borderStyle.Render(chat),
	)

	if m.statusln != "" {
		body += "\n" + mutedStyle.Render(m.statusln)
	}
	return body
}

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	config, err := configuration.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	tokens := auth.EnvToken{Key: "ACCESS_TOKEN"}
	container, err := configuration.BuildContainer(config, tokens)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	defer container.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := container.Start(ctx); err != nil {
		container.Logger.Error("failed to start chat client", zap.Error(err))
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}

	program := tea.NewProgram(newChatModel(ctx, container), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ui: %v\n", err)
		os.Exit(1)
	}
}
