package models

import (
	"strings"
	"time"
)

// Phase is a state of the claim session state machine.
type Phase string

const (
	PhaseIntake     Phase = "INTAKE"
	PhaseTransition Phase = "TRANSITION"
	PhaseProcessing Phase = "PROCESSING"
	PhaseFinalized  Phase = "FINALIZED"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single exchanged message.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// ConversationState is the intake conversation of one session.
type ConversationState struct {
	Turns []Turn `json:"turns"`
	// TurnCount counts user turns only.
	TurnCount int        `json:"turn_count"`
	Ready     bool       `json:"ready"`
	Draft     ClaimDraft `json:"draft"`
}

// Append adds a turn and bumps the counter for user turns.
func (c *ConversationState) Append(role Role, text string, at time.Time) {
	c.Turns = append(c.Turns, Turn{Role: role, Text: text, At: at})
	if role == RoleUser {
		c.TurnCount++
	}
}

// UserText joins all user turns with newlines.
func (c *ConversationState) UserText() string {
	var parts []string
	for _, t := range c.Turns {
		if t.Role == RoleUser {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// LastUserText returns the most recent user message.
func (c *ConversationState) LastUserText() string {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Role == RoleUser {
			return c.Turns[i].Text
		}
	}
	return ""
}

// Transcript renders the conversation as "role: text" lines.
func (c *ConversationState) Transcript() string {
	var b strings.Builder
	for _, t := range c.Turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}
