package intake

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

func newOracle() *RuleOracle {
	return NewRuleOracle(rules.Static{T: rules.Default()})
}

func conversation(turns ...string) *models.ConversationState {
	var c models.ConversationState
	at := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	for i, text := range turns {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		c.Append(role, text, at)
	}
	return &c
}

func TestRuleOracle_NextQuestion(t *testing.T) {
	o := newOracle()
	ctx := context.Background()

	tests := []struct {
		name    string
		state   func() *models.ConversationState
		missing []string
		prefix  string
		suffix  string
	}{
		{
			name: "first turn with known type",
			state: func() *models.ConversationState {
				c := conversation("my car was damaged")
				c.Draft.Type = models.ClaimTypeMotor
				return c
			},
			missing: []string{rules.FieldIdentifier},
			prefix:  sympathy,
			suffix:  "What is your vehicle registration number?",
		},
		{
			name:    "type unknown",
			state:   func() *models.ConversationState { return conversation("something happened") },
			missing: []string{rules.FieldClaimType},
			suffix:  "motor, home or health?",
		},
		{
			name: "later turn acknowledges",
			state: func() *models.ConversationState {
				c := conversation("car accident", "What is your vehicle registration number?", "TS09EF5678")
				c.Draft.Type = models.ClaimTypeMotor
				return c
			},
			missing: []string{rules.FieldAmount},
			prefix:  "Got it.",
			suffix:  "what is the amount?",
		},
		{
			name: "repeated question",
			state: func() *models.ConversationState {
				c := conversation("car accident", "Got it. When did the incident occur?", "not sure")
				c.Draft.Type = models.ClaimTypeMotor
				return c
			},
			missing: []string{rules.FieldIncidentDate},
			prefix:  repeatHint,
			suffix:  "When did the incident occur?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := o.NextQuestion(ctx, tt.state(), tt.missing)
			if err != nil {
				t.Fatalf("NextQuestion() error = %v", err)
			}
			if !strings.HasPrefix(got, tt.prefix) || !strings.HasSuffix(got, tt.suffix) {
				t.Errorf("NextQuestion() = %q, want prefix %q and suffix %q", got, tt.prefix, tt.suffix)
			}
		})
	}
}

func TestRuleOracle_NextQuestionNothingMissing(t *testing.T) {
	got, err := newOracle().NextQuestion(context.Background(), conversation("hi"), nil)
	if err != nil || got != "" {
		t.Errorf("NextQuestion(nil) = %q, %v, want empty", got, err)
	}
}

func TestRuleOracle_ExtractFields(t *testing.T) {
	c := conversation(
		"My car TS09EF5678 was hit from behind",
		"Do you have a repair estimate? If so, what is the amount?",
		"about Rs 45,000",
	)
	fields, err := newOracle().ExtractFields(context.Background(), c)
	if err != nil {
		t.Fatalf("ExtractFields() error = %v", err)
	}
	if got := fields[rules.FieldIdentifier]; got != "TS09EF5678" {
		t.Errorf("fields[identifier] = %q, want TS09EF5678", got)
	}
	if got := fields[rules.FieldAmount]; got != "45000" {
		t.Errorf("fields[amount] = %q, want 45000", got)
	}
	if got := fields[rules.FieldClaimType]; !strings.HasPrefix(got, "motor") {
		t.Errorf("fields[claim_type] = %q, want a motor type", got)
	}
}

func TestDraftFields_SkipsEmpty(t *testing.T) {
	got := DraftFields(models.ClaimDraft{Type: models.ClaimTypeHealth, Fields: map[string]string{rules.FieldHospitalName: "  "}})
	if len(got) != 1 || got[rules.FieldClaimType] != "health" {
		t.Errorf("DraftFields() = %v, want only claim_type", got)
	}
}
