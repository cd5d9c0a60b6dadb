package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ClaimType is the insurance line a claim is filed under.
type ClaimType string

const (
	// ClaimTypeMotor covers vehicle damage, theft and related perils.
	ClaimTypeMotor ClaimType = "motor"
	// ClaimTypeHealth covers hospitalization and treatment costs.
	ClaimTypeHealth ClaimType = "health"
	// ClaimTypeHome covers property damage and loss.
	ClaimTypeHome ClaimType = "home"
)

// Valid returns true if the claim type is a known value.
func (t ClaimType) Valid() bool {
	switch t {
	case ClaimTypeMotor, ClaimTypeHealth, ClaimTypeHome:
		return true
	default:
		return false
	}
}

// ClaimSubType narrows a claim type to a peril, e.g. "motor_theft".
type ClaimSubType string

const (
	SubTypeMotorAccident         ClaimSubType = "motor_accident"
	SubTypeMotorTheft            ClaimSubType = "motor_theft"
	SubTypeMotorFire             ClaimSubType = "motor_fire"
	SubTypeMotorVandalism        ClaimSubType = "motor_vandalism"
	SubTypeHomeFire              ClaimSubType = "home_fire"
	SubTypeHomeTheft             ClaimSubType = "home_theft"
	SubTypeHomeFlood             ClaimSubType = "home_flood"
	SubTypeHomeEarthquake        ClaimSubType = "home_earthquake"
	SubTypeHomeStorm             ClaimSubType = "home_storm"
	SubTypeHealthAccident        ClaimSubType = "health_accident"
	SubTypeHealthHospitalization ClaimSubType = "health_hospitalization"
	SubTypeHealthSurgery         ClaimSubType = "health_surgery"
	SubTypeHealthCritical        ClaimSubType = "health_critical_illness"
)

// Category returns the claim type prefix of the sub-type.
func (s ClaimSubType) Category() ClaimType {
	prefix, _, _ := strings.Cut(string(s), "_")
	return ClaimType(prefix)
}

// ClaimDraft is the partially filled claim built up during intake.
type ClaimDraft struct {
	Type          ClaimType         `json:"type,omitempty"`
	SubType       ClaimSubType      `json:"sub_type,omitempty"`
	Description   string            `json:"description,omitempty"`
	Identifier    string            `json:"identifier,omitempty"`
	Amount        float64           `json:"amount,omitempty"`
	CustomerID    string            `json:"customer_id,omitempty"`
	IncidentDate  string            `json:"incident_date,omitempty"`
	AssetAgeYears float64           `json:"asset_age_years,omitempty"`
	Documents     []string          `json:"documents,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// Field returns a category-specific field, or "" if unset.
func (d *ClaimDraft) Field(name string) string {
	if d.Fields == nil {
		return ""
	}
	return d.Fields[name]
}

// SetField records a category-specific field. Empty values are ignored.
func (d *ClaimDraft) SetField(name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if d.Fields == nil {
		d.Fields = make(map[string]string)
	}
	d.Fields[name] = value
}

// Clone returns a deep copy of the draft.
func (d ClaimDraft) Clone() ClaimDraft {
	out := d
	if d.Documents != nil {
		out.Documents = append([]string(nil), d.Documents...)
	}
	if d.Fields != nil {
		out.Fields = make(map[string]string, len(d.Fields))
		for k, v := range d.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// ClaimRecord is the finalized claim every processing tool reads from.
// It has no setters; all accessors return copies.
type ClaimRecord struct {
	id        string
	sessionID string
	draft     ClaimDraft
	createdAt time.Time
}

// NewClaimRecord freezes a draft into a record.
func NewClaimRecord(id, sessionID string, draft ClaimDraft, createdAt time.Time) *ClaimRecord {
	return &ClaimRecord{
		id:        id,
		sessionID: sessionID,
		draft:     draft.Clone(),
		createdAt: createdAt,
	}
}

func (r *ClaimRecord) ID() string               { return r.id }
func (r *ClaimRecord) SessionID() string        { return r.sessionID }
func (r *ClaimRecord) Type() ClaimType          { return r.draft.Type }
func (r *ClaimRecord) SubType() ClaimSubType    { return r.draft.SubType }
func (r *ClaimRecord) Description() string      { return r.draft.Description }
func (r *ClaimRecord) Identifier() string       { return r.draft.Identifier }
func (r *ClaimRecord) Amount() float64          { return r.draft.Amount }
func (r *ClaimRecord) CustomerID() string       { return r.draft.CustomerID }
func (r *ClaimRecord) IncidentDate() string     { return r.draft.IncidentDate }
func (r *ClaimRecord) AssetAgeYears() float64   { return r.draft.AssetAgeYears }
func (r *ClaimRecord) CreatedAt() time.Time     { return r.createdAt }
func (r *ClaimRecord) Field(name string) string { return r.draft.Field(name) }

// Documents returns the names of documents submitted with the claim.
func (r *ClaimRecord) Documents() []string {
	return append([]string(nil), r.draft.Documents...)
}

// Draft returns a copy of the underlying draft.
func (r *ClaimRecord) Draft() ClaimDraft {
	return r.draft.Clone()
}

type claimRecordJSON struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	CreatedAt time.Time  `json:"created_at"`
	Claim     ClaimDraft `json:"claim"`
}

// MarshalJSON implements json.Marshaler.
func (r *ClaimRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(claimRecordJSON{
		ID:        r.id,
		SessionID: r.sessionID,
		CreatedAt: r.createdAt,
		Claim:     r.draft,
	})
}

// ClaimStatus is the lifecycle status of a persisted claim.
type ClaimStatus string

const (
	ClaimStatusPending           ClaimStatus = "pending"
	ClaimStatusApproved          ClaimStatus = "approved"
	ClaimStatusRejected          ClaimStatus = "rejected"
	ClaimStatusUnderReview       ClaimStatus = "under_review"
	ClaimStatusDocumentsPending  ClaimStatus = "documents_pending"
	ClaimStatusPaymentProcessing ClaimStatus = "payment_processing"
	ClaimStatusClosed            ClaimStatus = "closed"
)

// Valid returns true if the status is a known value.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimStatusPending, ClaimStatusApproved, ClaimStatusRejected, ClaimStatusUnderReview,
		ClaimStatusDocumentsPending, ClaimStatusPaymentProcessing, ClaimStatusClosed:
		return true
	default:
		return false
	}
}

// Claim is a claim as persisted in the relational store.
type Claim struct {
	ID             int64        `json:"id"`
	ClaimID        string       `json:"claim_id"`
	CustomerID     string       `json:"customer_id"`
	PolicyNumber   string       `json:"policy_number,omitempty"`
	Type           ClaimSubType `json:"type"`
	Status         ClaimStatus  `json:"status"`
	IncidentDate   string       `json:"incident_date,omitempty"`
	Description    string       `json:"description,omitempty"`
	Identifier     string       `json:"identifier,omitempty"`
	EstimatedCost  float64      `json:"estimated_cost"`
	PayoutAmount   float64      `json:"payout_amount"`
	Decision       string       `json:"decision,omitempty"`
	DecisionReason string       `json:"decision_reason,omitempty"`
	FiledDate      time.Time    `json:"filed_date"`
	DecisionDate   *time.Time   `json:"decision_date,omitempty"`
}

// ClaimHistory is a closed prior claim kept for risk assessment.
type ClaimHistory struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	ClaimID    string    `json:"claim_id"`
	ClaimType  string    `json:"claim_type"`
	Amount     float64   `json:"amount"`
	FiledDate  time.Time `json:"filed_date"`
	Status     string    `json:"status"`
}
