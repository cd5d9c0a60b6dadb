package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

const (
	reportRule      = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	maxMissingShown = 5
)

// Report is the payload of generate_report.
type Report struct {
	ClaimID        string         `json:"claim_id"`
	TrackingNumber string         `json:"tracking_number"`
	Verdict        models.Verdict `json:"verdict"`
	Text           string         `json:"text"`
}

// TrackingNumber derives a stable customer-facing reference from a claim ID.
func TrackingNumber(claimID string) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(claimID))
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return "TRK-" + hex[:12]
}

// ReportInput is everything a report renders. Nil sections are shown with
// the failure summary recorded for their tool.
type ReportInput struct {
	Record     *models.ClaimRecord
	Claim      *ClaimData
	Coverage   *CoverageResult
	Exclusions *ExclusionResult
	Payout     *PayoutResult
	Documents  *DocumentResult
	History    *HistoryResult
	Decision   models.Decision
	// Failures maps a tool to its failure summary.
	Failures map[models.ToolName]string
	Elapsed  time.Duration
}

// NewReportHandler returns the generate_report handler.
func NewReportHandler(deps *Dependencies) Handler {
	return func(_ context.Context, in *Input) (any, error) {
		d, err := payloadAs[*models.Decision](in, models.ToolMakeDecision)
		if err != nil {
			return nil, err
		}
		ri := ReportInput{
			Record:   in.Claim,
			Decision: *d,
			Failures: make(map[models.ToolName]string),
			Elapsed:  in.Elapsed,
		}
		ri.Claim, _ = payloadAs[*ClaimData](in, models.ToolExtractClaimData)
		ri.Coverage, _ = payloadAs[*CoverageResult](in, models.ToolCheckCoverage)
		ri.Exclusions, _ = payloadAs[*ExclusionResult](in, models.ToolCheckExclusions)
		ri.Payout, _ = payloadAs[*PayoutResult](in, models.ToolCalculatePayout)
		ri.Documents, _ = payloadAs[*DocumentResult](in, models.ToolVerifyDocuments)
		ri.History, _ = payloadAs[*HistoryResult](in, models.ToolCheckClaimHistory)
		for name, r := range in.Results {
			if !r.Success {
				ri.Failures[name] = FailureSummary(r)
			}
		}

		return &Report{
			ClaimID:        in.Claim.ID(),
			TrackingNumber: TrackingNumber(in.Claim.ID()),
			Verdict:        d.Verdict,
			Text:           RenderReport(ri),
		}, nil
	}
}

func currency(amount float64) string {
	return "₹" + humanize.Comma(int64(math.Round(amount)))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// RenderReport renders the claim processing report. The output depends
// only on its input.
func RenderReport(ri ReportInput) string {
	rec := ri.Record
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	failed := func(tool models.ToolName) string {
		if s, ok := ri.Failures[tool]; ok {
			return s
		}
		return "not run"
	}

	sub := string(rec.SubType())
	incident := rec.IncidentDate()
	if ri.Claim != nil {
		sub = string(ri.Claim.SubType)
		incident = ri.Claim.IncidentDate
	}

	line("===== CLAIM PROCESSING REPORT =====")
	line("Claim ID: %s", rec.ID())
	line("Tracking Number: %s", TrackingNumber(rec.ID()))
	line("Filed: %s", rec.CreatedAt().Format("2006-01-02 15:04:05"))
	line("Status: %s", ri.Decision.Verdict)
	line("")
	line(reportRule)
	line("")

	line("CLAIM DETAILS:")
	line("• Type: %s", orNA(sub))
	line("• Incident Date: %s", orNA(incident))
	if ri.Claim != nil && len(ri.Claim.Missing) > 0 {
		line("• Not Provided: %s", strings.Join(ri.Claim.Missing, ", "))
	}
	switch rec.Type() {
	case models.ClaimTypeHealth:
		line("• Hospital: %s", orNA(rec.Field(rules.FieldHospitalName)))
		line("• Treatment: %s", orNA(rec.Field(rules.FieldTreatmentType)))
		if d := rec.Field(rules.FieldHospitalizationDay); d != "" {
			line("• Admission Date: %s", d)
		}
	case models.ClaimTypeMotor:
		line("• Vehicle: %s", orNA(rec.Identifier()))
		line("• Damage: %s", orNA(rec.Description()))
	case models.ClaimTypeHome:
		line("• Property: %s", orNA(rec.Identifier()))
		line("• Damage: %s", orNA(rec.Description()))
	default:
		line("• Identifier: %s", orNA(rec.Identifier()))
	}
	line("")

	line("COVERAGE VERIFICATION:")
	switch {
	case ri.Coverage == nil:
		line("✗ Coverage not verified (%s)", failed(models.ToolCheckCoverage))
	case ri.Coverage.Covered:
		line("✓ Covered under %s", orNA(ri.Coverage.Section))
		line("✓ Coverage Limit: %s", currency(ri.Coverage.Limit))
	default:
		line("✗ Not covered under policy")
	}
	switch {
	case ri.Exclusions == nil:
		line("✗ Exclusions not checked (%s)", failed(models.ToolCheckExclusions))
	case !ri.Exclusions.Excluded:
		line("✓ No exclusions apply")
	default:
		line("✗ Exclusions apply:")
		for _, e := range ri.Exclusions.Exclusions {
			if e.Applies {
				line("  - %s", e.Exclusion)
			}
		}
	}
	line("")

	line("PAYOUT CALCULATION:")
	if p := ri.Payout; p == nil {
		line("✗ Payout not calculated (%s)", failed(models.ToolCalculatePayout))
	} else if rec.Type() == models.ClaimTypeHealth {
		line("• Treatment Cost: %s", currency(p.Claimed))
		line("• Deductible: %s", currency(p.Deductible))
		line("• Co-pay: %s (%g%% of payable amount)", currency(p.Copay), p.CopayPercent)
		line("• PAYABLE AMOUNT: %s", currency(p.Payable))
	} else {
		line("• Claimed Amount: %s", currency(p.Claimed))
		line("• Deductible: %s", currency(p.Deductible))
		if p.ZeroDepreciation {
			line("• Depreciation: %s (Zero Depreciation Cover Active)", currency(p.Depreciation))
		} else {
			line("• Depreciation: %s (%g%% applied)", currency(p.Depreciation), p.DepreciationRate)
		}
		if p.Copay > 0 {
			line("• Co-pay: %s (%g%%)", currency(p.Copay), p.CopayPercent)
		}
		line("• PAYABLE AMOUNT: %s", currency(p.Payable))
	}
	line("")

	line("DOCUMENT VERIFICATION:")
	switch d := ri.Documents; {
	case d == nil:
		line("✗ Documents not verified (%s)", failed(models.ToolVerifyDocuments))
	case d.Complete:
		line("✓ All required documents submitted")
	default:
		line("✗ Missing %d document(s):", len(d.Missing))
		for i, doc := range d.Missing {
			if i == maxMissingShown {
				break
			}
			line("  - %s", doc)
		}
	}
	line("")

	line("CLAIM HISTORY:")
	switch h := ri.History; {
	case h == nil:
		line("✗ History not checked (%s)", failed(models.ToolCheckClaimHistory))
	case h.CustomerFound:
		line("• Customer: %s", orNA(h.CustomerName))
		line("• Past Claims: %d", h.TotalClaims)
		line("• Claim-Free Years: %d", h.ClaimFreeYears)
		line("• NCB: %g%%", h.NCBPercent)
		line("• Risk Level: %s", h.Risk)
		if len(h.FraudFlags) > 0 {
			line("• ⚠ Fraud Flags: %s", strings.Join(h.FraudFlags, ", "))
		}
	default:
		line("• New customer (no history found)")
	}
	line("")

	line(reportRule)
	line("DECISION: %s", ri.Decision.Verdict)
	if ri.Decision.Verdict == models.VerdictApproved {
		line("Payable: %s", currency(ri.Decision.Payable))
	}
	line("Reasoning: %s", strings.Join(ri.Decision.Reasons, "; "))
	line("")

	line("NEXT ACTIONS:")
	for i, a := range nextActions(ri.Decision.Verdict, ri.Documents) {
		line("%d. %s", i+1, a)
	}
	line("")
	line("Processing Time: %.2f seconds", ri.Elapsed.Seconds())
	line(strings.Repeat("=", 40))
	return b.String()
}

func nextActions(v models.Verdict, docs *DocumentResult) []string {
	switch v {
	case models.VerdictApproved:
		if docs != nil && !docs.Complete {
			return []string{
				"Customer to submit missing documents",
				"Schedule surveyor inspection (if required)",
				"Final approval after document verification",
			}
		}
		return []string{"Process payment", "Notify customer"}
	case models.VerdictDenied:
		return []string{"Notify customer of denial", "Provide appeal process information"}
	default:
		return []string{"Forward to claims adjuster for manual review", "May require additional investigation"}
	}
}
