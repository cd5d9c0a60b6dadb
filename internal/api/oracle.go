package api

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

const conversationSystemPrompt = `You are a claims assistant collecting the details of an insurance claim.
Ask exactly one short question at a time in plain English.
If the user describes damage, an injury or a loss, acknowledge it briefly before asking.
If the user drifts off topic, steer them back to the claim.
Never promise an outcome; the claim is decided after intake.`

const nextQuestionPrompt = `Claim category: %s

Collected so far:
%s
Still needed, most important first: %s

Recent conversation:
%s
Write only the next question to ask, asking for %q. Do not repeat a question the assistant already asked word for word.`

const extractionSystemPrompt = `You extract structured insurance claim fields from a conversation.
Only include fields the user stated or that follow unambiguously from what they said.
Reply with a single JSON object and nothing else.`

const extractionPrompt = `Fields to extract (omit any that were not mentioned):
- claim_type: one of %s
- description: what happened and what was damaged or treated
- identifier: vehicle registration, property ID or policy number
- amount: claimed, repair or treatment cost in rupees, digits only
- incident_date: date of the incident, YYYY-MM-DD if possible
- customer_id: customer ID if mentioned
- asset_age_years: age of the vehicle or property in years
- treatment_type, hospital_name, hospitalization_date: health claims only
- documents: comma separated documents the user says they have

Conversation:
%s`

// completer is the part of Runner the oracle needs.
type completer interface {
	RunWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Oracle phrases intake questions and extracts claim fields with Claude.
type Oracle struct {
	llm   completer
	rules rules.Source
}

// NewOracle creates an Oracle backed by runner.
func NewOracle(runner *Runner, src rules.Source) *Oracle {
	return &Oracle{llm: runner, rules: src}
}

// NextQuestion asks the model for the question about missing[0]. An empty
// answer falls back to the rule-table prompt.
func (o *Oracle) NextQuestion(ctx context.Context, state *models.ConversationState, missing []string) (string, error) {
	if len(missing) == 0 {
		return "", nil
	}
	category := string(state.Draft.Type)
	if category == "" {
		category = "unknown"
	}
	prompt := fmt.Sprintf(nextQuestionPrompt,
		category,
		collected(state.Draft),
		strings.Join(missing, ", "),
		recentTurns(state, 4),
		missing[0],
	)

	answer, err := o.llm.RunWithSystem(ctx, conversationSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", orchestrator.ErrOracleUnavailable, err)
	}
	answer = strings.Trim(strings.TrimSpace(answer), `"`)
	if answer == "" {
		return o.rules.Tables().Prompt(state.Draft.Type, missing[0]), nil
	}
	return answer, nil
}

// ExtractFields asks the model for a JSON object of claim fields.
func (o *Oracle) ExtractFields(ctx context.Context, state *models.ConversationState) (map[string]string, error) {
	prompt := fmt.Sprintf(extractionPrompt, strings.Join(subTypeNames(o.rules.Tables()), ", "), state.Transcript())
	answer, err := o.llm.RunWithSystem(ctx, extractionSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orchestrator.ErrOracleUnavailable, err)
	}
	fields, err := parseFields(answer)
	if err != nil {
		slog.Warn("ignoring malformed field extraction", "error", err)
		return nil, nil
	}
	return fields, nil
}

// parseFields decodes a JSON object and renders every non-null value as
// a string.
func parseFields(answer string) (map[string]string, error) {
	var raw map[string]any
	if err := extractJSON(answer, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			if s := strings.TrimSpace(val); s != "" {
				out[k] = s
			}
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
					parts = append(parts, strings.TrimSpace(s))
				}
			}
			if len(parts) > 0 {
				out[k] = strings.Join(parts, ", ")
			}
		}
	}
	return out, nil
}

func subTypeNames(t *rules.Tables) []string {
	var names []string
	for _, rule := range t.ClaimTypes {
		for _, st := range rule.SubTypes {
			names = append(names, string(st.SubType))
		}
	}
	sort.Strings(names)
	return names
}

func collected(d models.ClaimDraft) string {
	var b strings.Builder
	add := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	add(rules.FieldClaimType, string(d.SubType))
	add(rules.FieldDescription, d.Description)
	add(rules.FieldIdentifier, d.Identifier)
	if d.Amount > 0 {
		add(rules.FieldAmount, strconv.FormatFloat(d.Amount, 'f', -1, 64))
	}
	add(rules.FieldIncidentDate, d.IncidentDate)
	add(rules.FieldCustomerID, d.CustomerID)
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, d.Fields[k])
	}
	if b.Len() == 0 {
		return "- nothing yet\n"
	}
	return b.String()
}

func recentTurns(state *models.ConversationState, n int) string {
	turns := state.Turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	recent := models.ConversationState{Turns: turns}
	return recent.Transcript()
}

var _ orchestrator.Oracle = (*Oracle)(nil)
