package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// ToolStatus is the display state of one processing tool.
type ToolStatus string

const (
	ToolPending ToolStatus = "pending"
	ToolRunning ToolStatus = "running"
	ToolDone    ToolStatus = "done"
	ToolFailed  ToolStatus = "failed"
	ToolBlocked ToolStatus = "blocked"
)

type toolRow struct {
	status   ToolStatus
	wave     int
	duration time.Duration
	note     string
}

// ToolsPanel shows the progress of the processing tools for the current
// session, one line per tool in canonical order.
type ToolsPanel struct {
	rows    map[models.ToolName]*toolRow
	phase   models.Phase
	session string
	width   int

	titleStyle   lipgloss.Style
	borderStyle  lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
	blockedStyle lipgloss.Style
	noteStyle    lipgloss.Style
}

// NewToolsPanel creates an empty ToolsPanel.
func NewToolsPanel() *ToolsPanel {
	p := &ToolsPanel{
		width: 80,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),

		pendingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		runningStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		failedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		blockedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		noteStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
	p.Reset("")
	return p
}

// Reset clears the panel for a new session.
func (p *ToolsPanel) Reset(sessionID string) {
	p.session = sessionID
	p.phase = ""
	p.rows = make(map[models.ToolName]*toolRow, len(models.ToolOrder))
	for _, name := range models.ToolOrder {
		p.rows[name] = &toolRow{status: ToolPending}
	}
}

// SetWidth sets the panel width.
func (p *ToolsPanel) SetWidth(width int) {
	p.width = width
}

// Active reports whether processing has started for the session.
func (p *ToolsPanel) Active() bool {
	return p.phase != "" && p.phase != models.PhaseIntake
}

// Status returns the display state of a tool.
func (p *ToolsPanel) Status(name models.ToolName) ToolStatus {
	if r, ok := p.rows[name]; ok {
		return r.status
	}
	return ""
}

// Apply folds a session event into the panel. Events for other sessions
// are ignored once the panel is bound to a session.
func (p *ToolsPanel) Apply(ev orchestrator.Event) {
	if p.session != "" && ev.SessionID != p.session {
		return
	}
	if ev.Phase != "" {
		p.phase = ev.Phase
	}
	r, ok := p.rows[ev.Tool]
	switch ev.Type {
	case orchestrator.EventToolStarted:
		if ok {
			r.status = ToolRunning
			r.wave = ev.Wave
		}
	case orchestrator.EventToolCompleted:
		if ok {
			r.status = ToolDone
			r.duration = ev.Duration
		}
	case orchestrator.EventToolFailed:
		if ok {
			r.status = ToolFailed
			r.duration = ev.Duration
			r.note = ev.Message
		}
	case orchestrator.EventToolBlocked:
		if ok {
			r.status = ToolBlocked
			r.note = ev.Message
		}
	case orchestrator.EventSessionDone:
		p.phase = models.PhaseFinalized
	}
}

// View renders the panel.
func (p *ToolsPanel) View() string {
	var b strings.Builder
	b.WriteString(p.titleStyle.Render(fmt.Sprintf("Processing (%s)", p.phase)))
	for _, name := range models.ToolOrder {
		r := p.rows[name]
		b.WriteString("\n")
		b.WriteString(p.styleFor(r.status).Render(fmt.Sprintf("%s %-20s", p.icon(r.status), name)))
		switch {
		case r.note != "":
			b.WriteString(" " + p.noteStyle.Render(truncate(r.note, p.width-32)))
		case r.status == ToolDone:
			b.WriteString(" " + p.noteStyle.Render(fmt.Sprintf("wave %d, %s", r.wave, r.duration.Round(time.Millisecond))))
		}
	}
	return p.borderStyle.Width(p.width - 2).Render(b.String())
}

func (p *ToolsPanel) icon(s ToolStatus) string {
	switch s {
	case ToolRunning:
		return "●"
	case ToolDone:
		return "✓"
	case ToolFailed:
		return "✗"
	case ToolBlocked:
		return "⊘"
	default:
		return "○"
	}
}

func (p *ToolsPanel) styleFor(s ToolStatus) lipgloss.Style {
	switch s {
	case ToolRunning:
		return p.runningStyle
	case ToolDone:
		return p.doneStyle
	case ToolFailed:
		return p.failedStyle
	case ToolBlocked:
		return p.blockedStyle
	default:
		return p.pendingStyle
	}
}

func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
