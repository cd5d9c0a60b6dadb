package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/internal/session"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// Chatter sends one message to a session. An empty sessionID starts a new
// session and an empty text returns the opening message.
type Chatter interface {
	Chat(ctx context.Context, sessionID, text string) (session.Response, error)
}

type speaker int

const (
	speakerAssistant speaker = iota
	speakerUser
	speakerError
)

type chatLine struct {
	who  speaker
	text string
}

type replyMsg struct {
	resp session.Response
	err  error
}

type eventMsg struct {
	event orchestrator.Event
}

type eventsClosedMsg struct{}

// ChatModel is the terminal chat: a scrolling transcript, the processing
// tool panel and a message box.
type ChatModel struct {
	ctx       context.Context
	chat      Chatter
	events    <-chan orchestrator.Event
	sessionID string
	phase     models.Phase

	transcript viewport.Model
	input      *InputField
	tools      *ToolsPanel
	lines      []chatLine

	width    int
	height   int
	busy     bool
	quitting bool

	headerStyle    lipgloss.Style
	assistantStyle lipgloss.Style
	userStyle      lipgloss.Style
	errorStyle     lipgloss.Style
	hintStyle      lipgloss.Style
}

// NewChatModel creates a ChatModel. events may be nil.
func NewChatModel(ctx context.Context, chat Chatter, events <-chan orchestrator.Event) *ChatModel {
	return &ChatModel{
		ctx:        ctx,
		chat:       chat,
		events:     events,
		phase:      models.PhaseIntake,
		transcript: viewport.New(80, 20),
		input:      NewInputField(),
		tools:      NewToolsPanel(),
		width:      80,
		height:     30,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("24")).
			Padding(0, 1),
		assistantStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		userStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		errorStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		hintStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SessionID returns the current session ID, empty before the first reply.
func (m *ChatModel) SessionID() string {
	return m.sessionID
}

// Init implements tea.Model.
func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(m.input.Focus(), m.send(""), m.waitForEvent())
}

// Update implements tea.Model.
func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "ctrl+n":
			if m.busy {
				return m, nil
			}
			m.sessionID = ""
			m.phase = models.PhaseIntake
			m.lines = nil
			m.tools.Reset("")
			m.busy = true
			m.refresh()
			return m, m.send("")
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		}

	case MessageSubmittedMsg:
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.lines = append(m.lines, chatLine{who: speakerUser, text: msg.Text})
		m.refresh()
		return m, m.send(msg.Text)

	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.lines = append(m.lines, chatLine{who: speakerError, text: msg.err.Error()})
			m.refresh()
			return m, nil
		}
		if m.sessionID == "" {
			m.sessionID = msg.resp.SessionID
			m.tools.Reset(m.sessionID)
		}
		m.phase = msg.resp.Phase
		m.lines = append(m.lines, chatLine{who: speakerAssistant, text: msg.resp.Message})
		m.layout()
		return m, nil

	case eventMsg:
		m.tools.Apply(msg.event)
		if msg.event.SessionID == m.sessionID && msg.event.Phase != "" {
			m.phase = msg.event.Phase
		}
		m.layout()
		return m, m.waitForEvent()

	case eventsClosedMsg:
		m.events = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}
	parts := []string{m.header(), m.transcript.View()}
	if m.tools.Active() {
		parts = append(parts, m.tools.View())
	}
	parts = append(parts, m.input.View(), m.hintStyle.Render("enter send • ctrl+n new claim • pgup/pgdown scroll • esc quit"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *ChatModel) header() string {
	title := "claimflow"
	if m.sessionID != "" {
		title += "  session " + m.sessionID
	}
	title += "  " + string(m.phase)
	if m.busy {
		title += "  …"
	}
	return m.headerStyle.Width(m.width).Render(title)
}

func (m *ChatModel) send(text string) tea.Cmd {
	id := m.sessionID
	return func() tea.Msg {
		resp, err := m.chat.Chat(m.ctx, id, text)
		return replyMsg{resp: resp, err: err}
	}
}

func (m *ChatModel) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

// layout sizes the transcript to the space left by the other parts.
func (m *ChatModel) layout() {
	m.input.SetWidth(m.width)
	m.tools.SetWidth(m.width)

	used := lipgloss.Height(m.header()) + lipgloss.Height(m.input.View()) + 1
	if m.tools.Active() {
		used += lipgloss.Height(m.tools.View())
	}
	h := m.height - used
	if h < 3 {
		h = 3
	}
	m.transcript.Width = m.width
	m.transcript.Height = h
	m.refresh()
}

func (m *ChatModel) refresh() {
	wrap := lipgloss.NewStyle().Width(m.width - 2)
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch l.who {
		case speakerUser:
			b.WriteString(m.userStyle.Render(wrap.Render("You: " + l.text)))
		case speakerError:
			b.WriteString(m.errorStyle.Render(wrap.Render("Error: " + l.text)))
		default:
			b.WriteString(m.assistantStyle.Render(wrap.Render(l.text)))
		}
	}
	m.transcript.SetContent(b.String())
	m.transcript.GotoBottom()
}
