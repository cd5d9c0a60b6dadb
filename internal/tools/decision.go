package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// Decision reasons.
const (
	ReasonExcluded         = "policy exclusion"
	ReasonNotCovered       = "peril not covered"
	ReasonHistoryFlag      = "claim history flag"
	ReasonIncomplete       = "incomplete evaluation"
	ReasonApproved         = "all checks passed"
	ReasonOverLimit        = "amount exceeds auto-approval limit"
	ReasonMultiplePast     = "multiple past claims"
	prerequisiteFailedText = "prerequisite failed"
)

// Evaluation collects the inputs of the decision table. A nil field means
// the corresponding tool produced no successful result.
type Evaluation struct {
	Claimed    float64
	Coverage   *CoverageResult
	Exclusions *ExclusionResult
	Payout     *PayoutResult
	Documents  *DocumentResult
	History    *HistoryResult
	// Failures are summaries of failed prerequisite tools.
	Failures []string
}

// Decide applies the decision table; the first matching rule wins.
//
//  1. excluded      -> DENIED
//  2. not covered   -> DENIED
//  3. history flag  -> REVIEW
//  4. any failure   -> REVIEW
//  5. otherwise     -> APPROVED
//
// The optional thresholds in dr can only turn an approval into a review.
func Decide(ev Evaluation, dr rules.DecisionRules) models.Decision {
	d := models.Decision{Risk: models.RiskUnknown}
	if ev.History != nil && ev.History.Risk != "" {
		d.Risk = ev.History.Risk
	}

	switch {
	case ev.Exclusions != nil && ev.Exclusions.Excluded:
		d.Verdict = models.VerdictDenied
		d.Reasons = []string{ReasonExcluded, "matched: " + ev.Exclusions.Matched}
		return d

	case ev.Coverage != nil && !ev.Coverage.Covered:
		d.Verdict = models.VerdictDenied
		d.Reasons = []string{ReasonNotCovered}
		if ev.Coverage.Reason != "" {
			d.Reasons = append(d.Reasons, ev.Coverage.Reason)
		}
		return d

	case ev.History.Fraud():
		d.Verdict = models.VerdictReview
		d.Reasons = append([]string{ReasonHistoryFlag}, ev.History.FraudFlags...)
		return d
	}

	failures := append([]string{}, ev.Failures...)
	if len(failures) == 0 {
		for name, missing := range map[models.ToolName]bool{
			models.ToolCheckCoverage:   ev.Coverage == nil,
			models.ToolCheckExclusions: ev.Exclusions == nil,
			models.ToolCalculatePayout: ev.Payout == nil,
		} {
			if missing {
				failures = append(failures, fmt.Sprintf("%s: no result", name))
			}
		}
	}
	if len(failures) > 0 {
		d.Verdict = models.VerdictReview
		d.Reasons = append([]string{ReasonIncomplete}, sortByToolOrder(failures)...)
		return d
	}

	if dr.AutoApproveLimit > 0 && ev.Claimed > dr.AutoApproveLimit {
		d.Verdict = models.VerdictReview
		d.Reasons = []string{ReasonOverLimit}
		return d
	}
	if dr.MaxPriorClaims > 0 && ev.History != nil && ev.History.TotalClaims > dr.MaxPriorClaims {
		d.Verdict = models.VerdictReview
		d.Reasons = []string{ReasonMultiplePast}
		return d
	}

	d.Verdict = models.VerdictApproved
	d.Payable = ev.Payout.Payable
	d.Reasons = []string{ReasonApproved}
	if ev.Documents != nil && !ev.Documents.Complete {
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d document(s) pending", len(ev.Documents.Missing)))
	}
	return d
}

func sortByToolOrder(failures []string) []string {
	out := append([]string{}, failures...)
	rank := func(s string) int {
		name, _, _ := strings.Cut(s, ":")
		return models.ToolName(name).Rank()
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// FailureSummary describes a failed result without exposing raw error text.
func FailureSummary(r models.ToolResult) string {
	if strings.HasPrefix(r.Reason, prerequisiteFailedText) {
		return r.Reason
	}
	switch r.Kind {
	case models.ErrorKindIncompleteIntake:
		return "intake incomplete"
	case models.ErrorKindPolicyNotFound:
		return "policy not found"
	case models.ErrorKindRetrievalUnavailable:
		return "policy search unavailable"
	default:
		return "evaluation error"
	}
}

// PrerequisiteFailed is the reason recorded for a tool blocked by dep.
func PrerequisiteFailed(dep models.ToolName) string {
	return fmt.Sprintf("%s: %s", prerequisiteFailedText, dep)
}

var decisionInputs = []models.ToolName{
	models.ToolCheckCoverage,
	models.ToolCheckExclusions,
	models.ToolCalculatePayout,
	models.ToolVerifyDocuments,
	models.ToolCheckClaimHistory,
}

// NewDecisionHandler returns the make_decision handler.
func NewDecisionHandler(deps *Dependencies) Handler {
	return func(_ context.Context, in *Input) (any, error) {
		ev := Evaluation{Claimed: in.Claim.Amount()}
		ev.Coverage, _ = payloadAs[*CoverageResult](in, models.ToolCheckCoverage)
		ev.Exclusions, _ = payloadAs[*ExclusionResult](in, models.ToolCheckExclusions)
		ev.Payout, _ = payloadAs[*PayoutResult](in, models.ToolCalculatePayout)
		ev.Documents, _ = payloadAs[*DocumentResult](in, models.ToolVerifyDocuments)
		ev.History, _ = payloadAs[*HistoryResult](in, models.ToolCheckClaimHistory)

		for _, tool := range decisionInputs {
			r, ok := in.Results[tool]
			switch {
			case !ok:
				ev.Failures = append(ev.Failures, fmt.Sprintf("%s: no result", tool))
			case !r.Success:
				ev.Failures = append(ev.Failures, fmt.Sprintf("%s: %s", tool, FailureSummary(r)))
			}
		}

		d := Decide(ev, deps.tables().Decision)
		return &d, nil
	}
}
