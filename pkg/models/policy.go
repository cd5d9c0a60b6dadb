package models

import "time"

// PolicySource records where a PolicyRecord was resolved from.
type PolicySource string

const (
	PolicySourceDatabase PolicySource = "database"
	PolicySourceSemantic PolicySource = "semantic"
	PolicySourceDefault  PolicySource = "default"
)

// Customer is a policy holder.
type Customer struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PolicySnippet is a piece of policy wording attached to a resolved policy.
type PolicySnippet struct {
	Source    string  `json:"source"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}

// PolicyRecord is an insurance policy as seen by the processing tools.
type PolicyRecord struct {
	ID                  int64     `json:"id,omitempty"`
	PolicyNumber        string    `json:"policy_number"`
	CustomerID          string    `json:"customer_id,omitempty"`
	CustomerName        string    `json:"customer_name,omitempty"`
	PolicyType          ClaimType `json:"policy_type"`
	CoverageType        string    `json:"coverage_type"`
	SumInsured          float64   `json:"sum_insured"`
	Premium             float64   `json:"premium,omitempty"`
	IDV                 float64   `json:"idv,omitempty"`
	Deductible          float64   `json:"deductible"`
	CopayPercent        float64   `json:"copay_percent,omitempty"`
	ZeroDepreciation    bool      `json:"zero_depreciation"`
	NCBPercent          float64   `json:"ncb_percent,omitempty"`
	VehicleRegistration string    `json:"vehicle_registration,omitempty"`
	PropertyID          string    `json:"property_id,omitempty"`
	HolderAge           int       `json:"holder_age,omitempty"`
	// Coverages lists covered sub-types. Empty means derive from CoverageType.
	Coverages  []string        `json:"coverages,omitempty"`
	Exclusions []string        `json:"exclusions,omitempty"`
	Status     string          `json:"status"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Source     PolicySource    `json:"source"`
	Context    []PolicySnippet `json:"context,omitempty"`
}

// Active reports whether the policy is in force at t.
func (p *PolicyRecord) Active(t time.Time) bool {
	if p.Status != "" && p.Status != "active" {
		return false
	}
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}
