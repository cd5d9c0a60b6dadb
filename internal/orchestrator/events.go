package orchestrator

import (
	"time"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// EventType represents the type of session event.
type EventType string

const (
	// EventPhaseChanged indicates the session moved to a new phase.
	EventPhaseChanged EventType = "phase_changed"
	// EventWaveStarted indicates a wave of tools is about to run.
	EventWaveStarted EventType = "wave_started"
	// EventToolStarted indicates a tool has started.
	EventToolStarted EventType = "tool_started"
	// EventToolCompleted indicates a tool succeeded.
	EventToolCompleted EventType = "tool_completed"
	// EventToolFailed indicates a tool returned an error or panicked.
	EventToolFailed EventType = "tool_failed"
	// EventToolBlocked indicates a tool was skipped because a prerequisite failed.
	EventToolBlocked EventType = "tool_blocked"
	// EventSessionDone indicates the session reached FINALIZED.
	EventSessionDone EventType = "session_done"
)

// Event is emitted as a session progresses. Consumers such as the
// terminal chat use it to show progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// SessionID identifies the session.
	SessionID string
	// Phase is the session phase when the event was emitted.
	Phase models.Phase
	// Tool is set for tool events.
	Tool models.ToolName
	// Wave is the 1-based wave number for wave and tool events.
	Wave int
	// Message provides additional context.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the tool run time for completion events.
	Duration time.Duration
}
