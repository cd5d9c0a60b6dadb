// Package intake provides the deterministic intake oracle used when no
// language model is configured.
package intake

import (
	"context"
	"strconv"
	"strings"

	"github.com/ShayCichocki/claimflow/internal/extract"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

const (
	sympathy   = "I'm sorry to hear about that."
	repeatHint = "I still need this to continue:"
)

// RuleOracle asks the rule-table prompts and extracts fields by
// re-reading the whole conversation with the pattern extractor.
// It needs no network.
type RuleOracle struct {
	rules     rules.Source
	extractor *extract.Extractor
}

// NewRuleOracle creates a RuleOracle.
func NewRuleOracle(src rules.Source) *RuleOracle {
	return &RuleOracle{rules: src, extractor: extract.New(src)}
}

// NextQuestion returns the prompt for the first missing field. The first
// question after the claim type becomes known opens with a line of
// sympathy; a repeated question says it is repeated.
func (o *RuleOracle) NextQuestion(_ context.Context, state *models.ConversationState, missing []string) (string, error) {
	if len(missing) == 0 {
		return "", nil
	}
	ct := state.Draft.Type
	question := o.rules.Tables().Prompt(ct, missing[0])

	switch {
	case strings.HasSuffix(lastAssistant(state), question):
		return repeatHint + " " + question, nil
	case ct != "" && state.TurnCount == 1:
		return sympathy + " Let me help you file your " + string(ct) + " insurance claim. " + question, nil
	case state.TurnCount > 1:
		return "Got it. " + question, nil
	default:
		return question, nil
	}
}

// ExtractFields rebuilds the draft from every user turn and returns its
// non-empty fields.
func (o *RuleOracle) ExtractFields(_ context.Context, state *models.ConversationState) (map[string]string, error) {
	d := o.extractor.FromConversation(state)
	return DraftFields(d), nil
}

// DraftFields flattens a draft into the field map used by Merge.
func DraftFields(d models.ClaimDraft) map[string]string {
	out := make(map[string]string)
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	if d.SubType != "" {
		set(rules.FieldClaimType, string(d.SubType))
	} else {
		set(rules.FieldClaimType, string(d.Type))
	}
	set(rules.FieldIdentifier, d.Identifier)
	set(rules.FieldDescription, d.Description)
	set(rules.FieldIncidentDate, d.IncidentDate)
	set(rules.FieldCustomerID, d.CustomerID)
	if d.Amount > 0 {
		set(rules.FieldAmount, strconv.FormatFloat(d.Amount, 'f', -1, 64))
	}
	if d.AssetAgeYears > 0 {
		set(rules.FieldAssetAge, strconv.FormatFloat(d.AssetAgeYears, 'f', -1, 64))
	}
	if len(d.Documents) > 0 {
		set("documents", strings.Join(d.Documents, ", "))
	}
	for k, v := range d.Fields {
		set(k, v)
	}
	return out
}

func lastAssistant(state *models.ConversationState) string {
	for i := len(state.Turns) - 1; i >= 0; i-- {
		if state.Turns[i].Role == models.RoleAssistant {
			return state.Turns[i].Text
		}
	}
	return ""
}
