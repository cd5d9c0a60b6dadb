package tools

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// PayoutTerms are the inputs of the payout formula. Depreciation is an
// amount, not a rate. A Limit of 0 means uncapped.
type PayoutTerms struct {
	Claimed      float64
	Deductible   float64
	Depreciation float64
	CopayPercent float64
	Limit        float64
}

// PayoutResult is the payload of calculate_payout.
type PayoutResult struct {
	Claimed          float64 `json:"claimed_amount"`
	Deductible       float64 `json:"deductible"`
	DepreciationRate float64 `json:"depreciation_rate"`
	Depreciation     float64 `json:"depreciation"`
	ZeroDepreciation bool    `json:"zero_depreciation_applied"`
	CopayPercent     float64 `json:"copay_percentage"`
	Copay            float64 `json:"copay_amount"`
	Limit            float64 `json:"coverage_limit"`
	Capped           bool    `json:"capped"`
	Payable          float64 `json:"payable_amount"`
}

// ComputePayout applies
//
//	payable = min(limit, claimed - deductible - depreciation) * (1 - copay%)
//
// floored at 0.
func ComputePayout(t PayoutTerms) PayoutResult {
	r := PayoutResult{
		Claimed:      t.Claimed,
		Deductible:   t.Deductible,
		Depreciation: t.Depreciation,
		CopayPercent: t.CopayPercent,
		Limit:        t.Limit,
	}

	payable := t.Claimed - t.Deductible - t.Depreciation
	if t.Limit > 0 && payable > t.Limit {
		payable = t.Limit
		r.Capped = true
	}
	if payable < 0 {
		payable = 0
	}
	if t.CopayPercent > 0 {
		r.Copay = payable * t.CopayPercent / 100
		payable -= r.Copay
	}
	if payable < 0 {
		payable = 0
	}
	r.Payable = payable
	return r
}

// NewPayoutHandler returns the calculate_payout handler.
func NewPayoutHandler(deps *Dependencies) Handler {
	return func(_ context.Context, in *Input) (any, error) {
		coverage, err := payloadAs[*CoverageResult](in, models.ToolCheckCoverage)
		if err != nil {
			return nil, err
		}
		policy, err := payloadAs[*models.PolicyRecord](in, models.ToolRetrievePolicy)
		if err != nil {
			return nil, err
		}
		claimed := in.Claim.Amount()
		if claimed <= 0 {
			return nil, fmt.Errorf("%w: claimed amount must be positive, got %.2f", ErrToolExecution, claimed)
		}

		t := deps.tables()
		ct := in.Claim.Type()
		rate := depreciationRate(t, policy, ct, in.Claim.AssetAgeYears())
		terms := PayoutTerms{
			Claimed:      claimed,
			Deductible:   effectiveDeductible(t, policy),
			Depreciation: claimed * rate / 100,
			CopayPercent: effectiveCopay(t, policy, ct),
			Limit:        coverage.Limit,
		}
		r := ComputePayout(terms)
		r.DepreciationRate = rate
		r.ZeroDepreciation = policy.ZeroDepreciation && ct != models.ClaimTypeHealth
		return &r, nil
	}
}

func depreciationRate(t *rules.Tables, p *models.PolicyRecord, ct models.ClaimType, age float64) float64 {
	if p.ZeroDepreciation || ct == models.ClaimTypeHealth {
		return 0
	}
	if age <= 0 {
		age = t.Defaults.AssetAgeYears
	}
	return t.DepreciationRate(ct, age)
}

func effectiveDeductible(t *rules.Tables, p *models.PolicyRecord) float64 {
	if p.Deductible > 0 {
		return p.Deductible
	}
	return t.Defaults.Deductible
}

func effectiveCopay(t *rules.Tables, p *models.PolicyRecord, ct models.ClaimType) float64 {
	if p.CopayPercent > 0 {
		return p.CopayPercent
	}
	if ct == models.ClaimTypeHealth {
		return t.Defaults.HealthCopayPercent
	}
	return 0
}
