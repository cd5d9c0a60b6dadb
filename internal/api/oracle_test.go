package api

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

type fakeLLM struct {
	answer string
	err    error
	system string
	prompt string
}

func (f *fakeLLM) RunWithSystem(_ context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.answer, f.err
}

func newTestOracle(llm *fakeLLM) *Oracle {
	return &Oracle{llm: llm, rules: rules.Static{T: rules.Default()}}
}

func TestParseFields(t *testing.T) {
	answer := "Here you go:\n```json\n" + `{
  "claim_type": "motor_accident",
  "amount": 45000,
  "identifier": " TS 09 EF 5678 ",
  "customer_id": null,
  "documents": ["FIR copy", "photos", ""]
}` + "\n```"

	got, err := parseFields(answer)
	if err != nil {
		t.Fatalf("parseFields() error = %v", err)
	}
	want := map[string]string{
		"claim_type": "motor_accident",
		"amount":     "45000",
		"identifier": "TS 09 EF 5678",
		"documents":  "FIR copy, photos",
	}
	if len(got) != len(want) {
		t.Fatalf("parseFields() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseFields()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseFields_NoJSON(t *testing.T) {
	if _, err := parseFields("I could not find anything."); err == nil {
		t.Error("parseFields() error = nil, want error")
	}
}

func TestOracle_NextQuestion(t *testing.T) {
	llm := &fakeLLM{answer: `"What is your vehicle registration number?"`}
	o := newTestOracle(llm)
	state := &models.ConversationState{Draft: models.ClaimDraft{Type: models.ClaimTypeMotor, Amount: 45000}}

	got, err := o.NextQuestion(context.Background(), state, []string{rules.FieldIdentifier, rules.FieldIncidentDate})
	if err != nil {
		t.Fatalf("NextQuestion() error = %v", err)
	}
	if got != "What is your vehicle registration number?" {
		t.Errorf("NextQuestion() = %q", got)
	}
	if !strings.Contains(llm.prompt, "amount: 45000") || !strings.Contains(llm.prompt, `"identifier"`) {
		t.Errorf("prompt missing collected fields or target:\n%s", llm.prompt)
	}
}

func TestOracle_NextQuestionFallsBackToPrompt(t *testing.T) {
	o := newTestOracle(&fakeLLM{answer: "  "})
	state := &models.ConversationState{Draft: models.ClaimDraft{Type: models.ClaimTypeHealth}}

	got, err := o.NextQuestion(context.Background(), state, []string{rules.FieldHospitalName})
	if err != nil {
		t.Fatalf("NextQuestion() error = %v", err)
	}
	if got != "Which hospital were you admitted to?" {
		t.Errorf("NextQuestion() = %q, want the table prompt", got)
	}
}

func TestOracle_Unavailable(t *testing.T) {
	o := newTestOracle(&fakeLLM{err: errors.New("503 overloaded")})
	state := &models.ConversationState{}

	if _, err := o.NextQuestion(context.Background(), state, []string{rules.FieldClaimType}); !errors.Is(err, orchestrator.ErrOracleUnavailable) {
		t.Errorf("NextQuestion() error = %v, want ErrOracleUnavailable", err)
	}
	if _, err := o.ExtractFields(context.Background(), state); !errors.Is(err, orchestrator.ErrOracleUnavailable) {
		t.Errorf("ExtractFields() error = %v, want ErrOracleUnavailable", err)
	}
}

func TestOracle_ExtractFieldsMalformed(t *testing.T) {
	o := newTestOracle(&fakeLLM{answer: "no idea"})
	fields, err := o.ExtractFields(context.Background(), &models.ConversationState{})
	if err != nil || fields != nil {
		t.Errorf("ExtractFields() = %v, %v, want nil, nil", fields, err)
	}
}
