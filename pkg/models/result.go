package models

import "time"

// ToolName identifies one of the processing tools.
type ToolName string

const (
	ToolExtractClaimData  ToolName = "extract_claim_data"
	ToolRetrievePolicy    ToolName = "retrieve_policy"
	ToolCheckCoverage     ToolName = "check_coverage"
	ToolCheckExclusions   ToolName = "check_exclusions"
	ToolCalculatePayout   ToolName = "calculate_payout"
	ToolVerifyDocuments   ToolName = "verify_documents"
	ToolCheckClaimHistory ToolName = "check_claim_history"
	ToolMakeDecision      ToolName = "make_decision"
	ToolGenerateReport    ToolName = "generate_report"
)

// ToolOrder is the canonical ordering of tools. Results within a wave are
// recorded in this order.
var ToolOrder = []ToolName{
	ToolExtractClaimData,
	ToolRetrievePolicy,
	ToolCheckCoverage,
	ToolCheckExclusions,
	ToolCalculatePayout,
	ToolVerifyDocuments,
	ToolCheckClaimHistory,
	ToolMakeDecision,
	ToolGenerateReport,
}

// Rank returns the tool's position in ToolOrder, or len(ToolOrder) if unknown.
func (n ToolName) Rank() int {
	for i, t := range ToolOrder {
		if t == n {
			return i
		}
	}
	return len(ToolOrder)
}

// ErrorKind classifies a failed tool result.
type ErrorKind string

const (
	ErrorKindNone                 ErrorKind = ""
	ErrorKindIncompleteIntake     ErrorKind = "incomplete_intake"
	ErrorKindPolicyNotFound       ErrorKind = "policy_not_found"
	ErrorKindRetrievalUnavailable ErrorKind = "retrieval_unavailable"
	ErrorKindToolExecution        ErrorKind = "tool_execution"
)

// ToolResult is one entry of a session's audit trail.
type ToolResult struct {
	Tool      ToolName      `json:"tool"`
	Success   bool          `json:"success"`
	Payload   any           `json:"payload,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Kind      ErrorKind     `json:"kind,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	// Claim is the session's claim record shared by every result.
	Claim *ClaimRecord `json:"-"`
}
