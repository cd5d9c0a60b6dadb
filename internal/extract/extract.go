// Package extract turns intake conversation text into structured claims.
//
// Extraction is pattern based and conservative: a field is filled only
// when the text yields a single unambiguous value. Anything left blank is
// either asked for again during intake or defaulted by the processing
// tools.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// ErrIncompleteIntake is reported when intake ends with required fields missing.
var ErrIncompleteIntake = errors.New("incomplete intake")

// minDescriptionWords is the shortest unsolicited message kept as a description.
const minDescriptionWords = 6

// Extractor fills claim drafts from user messages.
type Extractor struct {
	rules rules.Source
	now   func() time.Time
}

// New creates an Extractor reading tables from src.
func New(src rules.Source) *Extractor {
	return &Extractor{rules: src, now: time.Now}
}

// WithClock replaces the clock used to resolve "today" and "yesterday".
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Apply parses one user message into draft. pending is the field the
// assistant last asked for; a free-text answer is assigned to it when no
// pattern claims the text. Fields already set are only overwritten when
// they are the pending field.
func (e *Extractor) Apply(draft *models.ClaimDraft, text, pending string) {
	t := e.rules.Tables()
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	ct, sub, explicit := Normalize(t, text)
	switch {
	case draft.Type == "" && ct != "":
		draft.Type, draft.SubType = ct, sub
	case draft.Type != "" && (ct == draft.Type || ct == ""):
		if s, ok := SubType(t, draft.Type, text); ok && (explicit || ct == "") {
			if draft.SubType == "" || draft.SubType == t.ClaimTypes[draft.Type].DefaultSubType || pending == rules.FieldClaimType {
				draft.SubType = s
			}
		}
	case pending == rules.FieldClaimType && ct != "":
		draft.Type, draft.SubType = ct, sub
	}
	if draft.Type != "" && draft.SubType == "" {
		draft.SubType = t.ClaimTypes[draft.Type].DefaultSubType
	}

	if id := Identifier(text); id != "" && (draft.Identifier == "" || pending == rules.FieldIdentifier) {
		draft.Identifier = id
	}
	if cust := CustomerID(text); cust != "" && draft.CustomerID == "" {
		draft.CustomerID = cust
	}
	if amt := Amount(text); amt > 0 && (draft.Amount == 0 || pending == rules.FieldAmount) {
		draft.Amount = amt
	}
	if age := AssetAge(text); age > 0 && (draft.AssetAgeYears == 0 || pending == rules.FieldAssetAge) {
		draft.AssetAgeYears = age
	}

	if d := Date(text, e.now()); d != "" {
		switch {
		case pending == rules.FieldHospitalizationDay:
			draft.SetField(rules.FieldHospitalizationDay, d)
		case draft.IncidentDate == "" || pending == rules.FieldIncidentDate:
			draft.IncidentDate = d
		}
	}

	switch pending {
	case rules.FieldDescription:
		draft.Description = text
	case rules.FieldClaimType, rules.FieldIdentifier, rules.FieldAmount, rules.FieldIncidentDate,
		rules.FieldHospitalizationDay, rules.FieldAssetAge, "":
		// Pattern-only fields; free text is not assigned to them.
	case rules.FieldCustomerID:
		if draft.CustomerID == "" {
			draft.CustomerID = strings.ToUpper(text)
		}
	default:
		draft.SetField(pending, text)
	}

	if draft.Description == "" && ct != "" && len(strings.Fields(text)) >= minDescriptionWords {
		draft.Description = text
	}
}

// Merge overlays fields returned by an oracle onto the draft. Only empty
// draft fields are filled; values are parsed with the same rules as Apply.
func (e *Extractor) Merge(draft *models.ClaimDraft, fields map[string]string) {
	t := e.rules.Tables()
	for key, raw := range fields {
		value := strings.TrimSpace(raw)
		if value == "" || strings.EqualFold(value, "null") || strings.EqualFold(value, "unknown") {
			continue
		}
		switch key {
		case rules.FieldClaimType, "sub_type":
			if draft.Type != "" {
				if s, ok := SubType(t, draft.Type, value); ok && draft.SubType == t.ClaimTypes[draft.Type].DefaultSubType {
					draft.SubType = s
				}
				continue
			}
			if ct, sub, _ := Normalize(t, value); ct != "" {
				draft.Type, draft.SubType = ct, sub
			} else if ct := models.ClaimSubType(strings.ToLower(value)).Category(); ct.Valid() {
				draft.Type = ct
				draft.SubType = models.ClaimSubType(strings.ToLower(value))
			}
		case rules.FieldIdentifier, "vehicle_registration", "property_id", "policy_number":
			if draft.Identifier == "" {
				if id := Identifier(value); id != "" {
					draft.Identifier = id
				} else {
					draft.Identifier = strings.ToUpper(value)
				}
			}
		case rules.FieldAmount, "repair_estimate", "treatment_cost":
			if draft.Amount == 0 {
				if v, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64); err == nil && v > 0 {
					draft.Amount = v
				} else if v := Amount(value); v > 0 {
					draft.Amount = v
				}
			}
		case rules.FieldDescription, "damage_description":
			if draft.Description == "" {
				draft.Description = value
			}
		case rules.FieldIncidentDate:
			if draft.IncidentDate == "" {
				if d := Date(value, e.now()); d != "" {
					draft.IncidentDate = d
				}
			}
		case rules.FieldCustomerID:
			if draft.CustomerID == "" {
				draft.CustomerID = strings.ToUpper(value)
			}
		case rules.FieldAssetAge, "vehicle_age":
			if draft.AssetAgeYears == 0 {
				if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
					draft.AssetAgeYears = v
				}
			}
		case "documents", "submitted_documents":
			if len(draft.Documents) == 0 {
				draft.Documents = splitList(value)
			}
		case rules.FieldHospitalizationDay:
			if draft.Field(key) == "" {
				if d := Date(value, e.now()); d != "" {
					draft.SetField(key, d)
				}
			}
		default:
			if draft.Field(key) == "" {
				draft.SetField(key, value)
			}
		}
	}
	if draft.Type != "" && draft.SubType == "" {
		draft.SubType = t.ClaimTypes[draft.Type].DefaultSubType
	}
}

// FromConversation rebuilds a draft from every user turn of a conversation.
// An assistant turn that matches a field prompt marks that field as pending
// for the next user turn.
func (e *Extractor) FromConversation(state *models.ConversationState) models.ClaimDraft {
	var draft models.ClaimDraft
	pending := ""
	for _, turn := range state.Turns {
		switch turn.Role {
		case models.RoleAssistant:
			pending = e.pendingFor(draft.Type, turn.Text)
		case models.RoleUser:
			e.Apply(&draft, turn.Text, pending)
			pending = ""
		}
	}
	return draft
}

func (e *Extractor) pendingFor(ct models.ClaimType, question string) string {
	t := e.rules.Tables()
	for _, f := range t.RequiredFields(ct, "") {
		if strings.Contains(question, t.Prompt(ct, f)) {
			return f
		}
	}
	for sub, fields := range t.Intake.BySubType {
		if sub.Category() != ct {
			continue
		}
		for _, f := range fields {
			if strings.Contains(question, t.Prompt(ct, f)) {
				return f
			}
		}
	}
	return ""
}

// MissingFields lists required fields the draft does not yet have, in the
// order they should be asked for.
func (e *Extractor) MissingFields(draft *models.ClaimDraft) []string {
	t := e.rules.Tables()
	var missing []string
	for _, f := range t.RequiredFields(draft.Type, draft.SubType) {
		if !hasField(draft, f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func hasField(d *models.ClaimDraft, field string) bool {
	switch field {
	case rules.FieldClaimType:
		return d.Type.Valid()
	case rules.FieldIdentifier:
		return d.Identifier != ""
	case rules.FieldDescription:
		return d.Description != ""
	case rules.FieldAmount:
		return d.Amount > 0
	case rules.FieldIncidentDate:
		return d.IncidentDate != ""
	case rules.FieldCustomerID:
		return d.CustomerID != ""
	case rules.FieldAssetAge:
		return d.AssetAgeYears > 0
	default:
		return d.Field(field) != ""
	}
}

// Finalize freezes a draft into a ClaimRecord with a fresh claim ID.
// Motor and home claims without an asset age get the table default.
func (e *Extractor) Finalize(draft models.ClaimDraft, sessionID string) *models.ClaimRecord {
	t := e.rules.Tables()
	now := e.now()
	if draft.AssetAgeYears == 0 && (draft.Type == models.ClaimTypeMotor || draft.Type == models.ClaimTypeHome) {
		draft.AssetAgeYears = t.Defaults.AssetAgeYears
	}
	return models.NewClaimRecord(NewClaimID(now), sessionID, draft, now)
}

// NewClaimID returns an ID of the form CLM-YYYYMMDD-XXXXXXXX.
func NewClaimID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("CLM-%s-%s", now.Format("20060102"), suffix)
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
