package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/internal/session"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

type fakeChatter struct {
	calls []string
	ids   []string
	resp  session.Response
	err   error
}

func (f *fakeChatter) Chat(_ context.Context, id, text string) (session.Response, error) {
	f.calls = append(f.calls, text)
	f.ids = append(f.ids, id)
	return f.resp, f.err
}

func TestInputField_Enter(t *testing.T) {
	field := NewInputField()

	_, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("Enter on empty input returned a command")
	}

	field.SetValue("  my car was hit  ")
	_, cmd = field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("Enter with text returned no command")
	}
	msg, ok := cmd().(MessageSubmittedMsg)
	if !ok {
		t.Fatalf("cmd() = %T, want MessageSubmittedMsg", cmd())
	}
	if msg.Text != "my car was hit" {
		t.Errorf("Text = %q, want trimmed input", msg.Text)
	}
	if field.Value() != "" {
		t.Errorf("Value() = %q after submit, want empty", field.Value())
	}
}

func TestInputField_SetWidth(t *testing.T) {
	field := NewInputField()
	field.SetWidth(120)

	if field.width != 120 {
		t.Errorf("width = %d, want 120", field.width)
	}
	if field.input.Width != 116 {
		t.Errorf("input.Width = %d, want 116", field.input.Width)
	}
}

func TestChatModel_SubmitAndReply(t *testing.T) {
	fc := &fakeChatter{resp: session.Response{
		SessionID: "s1",
		Message:   "When did the incident occur?",
		Phase:     models.PhaseIntake,
	}}
	m := NewChatModel(context.Background(), fc, nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	_, cmd := m.Update(MessageSubmittedMsg{Text: "my car was hit"})
	if cmd == nil {
		t.Fatal("submit returned no command")
	}
	if !m.busy {
		t.Error("busy = false while waiting for a reply")
	}

	// A second submit while busy is ignored.
	if _, cmd2 := m.Update(MessageSubmittedMsg{Text: "again"}); cmd2 != nil {
		t.Error("submit while busy returned a command")
	}

	m.Update(cmd())
	if len(fc.calls) != 1 || fc.calls[0] != "my car was hit" {
		t.Errorf("Chat calls = %v", fc.calls)
	}
	if m.busy {
		t.Error("busy = true after reply")
	}
	if m.SessionID() != "s1" {
		t.Errorf("SessionID() = %q, want s1", m.SessionID())
	}
	view := m.View()
	if !strings.Contains(view, "When did the incident occur?") {
		t.Errorf("View() missing the reply:\n%s", view)
	}
	if !strings.Contains(view, "my car was hit") {
		t.Errorf("View() missing the user message:\n%s", view)
	}

	// Later messages go to the same session.
	_, cmd = m.Update(MessageSubmittedMsg{Text: "yesterday"})
	m.Update(cmd())
	if fc.ids[1] != "s1" {
		t.Errorf("second Chat id = %q, want s1", fc.ids[1])
	}
}

func TestChatModel_ErrorReply(t *testing.T) {
	fc := &fakeChatter{err: errors.New("oracle unavailable")}
	m := NewChatModel(context.Background(), fc, nil)

	_, cmd := m.Update(MessageSubmittedMsg{Text: "hi"})
	m.Update(cmd())

	if !strings.Contains(m.View(), "Error: oracle unavailable") {
		t.Errorf("View() does not show the error:\n%s", m.View())
	}
	if m.SessionID() != "" {
		t.Errorf("SessionID() = %q, want empty", m.SessionID())
	}
}

func TestChatModel_Quit(t *testing.T) {
	m := NewChatModel(context.Background(), &fakeChatter{}, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("ctrl+c cmd() = %T, want tea.QuitMsg", cmd())
	}
	if m.View() != "" {
		t.Error("View() not empty after quitting")
	}
}

func TestChatModel_Events(t *testing.T) {
	events := make(chan orchestrator.Event, 4)
	fc := &fakeChatter{resp: session.Response{SessionID: "s1", Phase: models.PhaseIntake}}
	m := NewChatModel(context.Background(), fc, events)

	_, cmd := m.Update(MessageSubmittedMsg{Text: "hi"})
	m.Update(cmd())

	events <- orchestrator.Event{Type: orchestrator.EventToolStarted, SessionID: "s1", Phase: models.PhaseProcessing, Tool: models.ToolRetrievePolicy, Wave: 1}
	_, next := m.Update(m.waitForEvent()())
	if next == nil {
		t.Error("event handling did not keep listening")
	}
	if got := m.tools.Status(models.ToolRetrievePolicy); got != ToolRunning {
		t.Errorf("Status(retrieve_policy) = %s, want %s", got, ToolRunning)
	}
	if m.phase != models.PhaseProcessing {
		t.Errorf("phase = %s, want %s", m.phase, models.PhaseProcessing)
	}

	close(events)
	m.Update(m.waitForEvent()())
	if m.events != nil {
		t.Error("events still set after the channel closed")
	}
	if m.waitForEvent() != nil {
		t.Error("waitForEvent() returned a command with no channel")
	}
}

func TestToolsPanel_Apply(t *testing.T) {
	p := NewToolsPanel()
	p.Reset("s1")
	if p.Active() {
		t.Error("Active() = true before any event")
	}

	apply := []orchestrator.Event{
		{Type: orchestrator.EventPhaseChanged, SessionID: "s1", Phase: models.PhaseProcessing},
		{Type: orchestrator.EventToolStarted, SessionID: "s1", Tool: models.ToolExtractClaimData, Wave: 1},
		{Type: orchestrator.EventToolCompleted, SessionID: "s1", Tool: models.ToolExtractClaimData, Duration: 3 * time.Millisecond},
		{Type: orchestrator.EventToolFailed, SessionID: "s1", Tool: models.ToolRetrievePolicy, Message: "policy not found"},
		{Type: orchestrator.EventToolBlocked, SessionID: "s1", Tool: models.ToolCheckCoverage, Message: "prerequisite retrieve_policy failed"},
		{Type: orchestrator.EventToolStarted, SessionID: "other", Tool: models.ToolMakeDecision},
	}
	for _, ev := range apply {
		p.Apply(ev)
	}

	tests := []struct {
		tool models.ToolName
		want ToolStatus
	}{
		{models.ToolExtractClaimData, ToolDone},
		{models.ToolRetrievePolicy, ToolFailed},
		{models.ToolCheckCoverage, ToolBlocked},
		{models.ToolMakeDecision, ToolPending},
	}
	for _, tt := range tests {
		if got := p.Status(tt.tool); got != tt.want {
			t.Errorf("Status(%s) = %s, want %s", tt.tool, got, tt.want)
		}
	}
	if !p.Active() {
		t.Error("Active() = false during processing")
	}
	if view := p.View(); !strings.Contains(view, "policy not found") {
		t.Errorf("View() missing the failure note:\n%s", view)
	}

	p.Apply(orchestrator.Event{Type: orchestrator.EventSessionDone, SessionID: "s1"})
	if p.phase != models.PhaseFinalized {
		t.Errorf("phase = %s, want %s", p.phase, models.PhaseFinalized)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q, want unchanged", got)
	}
	if got := truncate("a much longer note", 10); got != "a much ..." {
		t.Errorf("truncate() = %q, want %q", got, "a much ...")
	}
}
