package models

// Verdict is the outcome of claim evaluation.
type Verdict string

const (
	VerdictApproved Verdict = "APPROVED"
	VerdictDenied   Verdict = "DENIED"
	VerdictReview   Verdict = "REVIEW"
)

// ClaimStatus maps the verdict onto the persisted claim status.
func (v Verdict) ClaimStatus() ClaimStatus {
	switch v {
	case VerdictApproved:
		return ClaimStatusApproved
	case VerdictDenied:
		return ClaimStatusRejected
	default:
		return ClaimStatusUnderReview
	}
}

// RiskLevel is the history-based risk classification of a customer.
type RiskLevel string

const (
	RiskUnknown RiskLevel = "unknown"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

// Decision is the payload of the make_decision tool.
type Decision struct {
	Verdict Verdict   `json:"verdict"`
	Payable float64   `json:"payable"`
	Reasons []string  `json:"reasons"`
	Risk    RiskLevel `json:"risk,omitempty"`
}
