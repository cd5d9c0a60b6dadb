package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// PastClaim is one prior claim of the customer.
type PastClaim struct {
	ClaimID   string    `json:"claim_id"`
	ClaimType string    `json:"claim_type"`
	Status    string    `json:"status"`
	Amount    float64   `json:"amount"`
	FiledDate time.Time `json:"filed_date"`
}

// HistoryResult is the payload of check_claim_history.
type HistoryResult struct {
	CustomerFound  bool             `json:"customer_found"`
	CustomerName   string           `json:"customer_name,omitempty"`
	PastClaims     []PastClaim      `json:"past_claims"`
	TotalClaims    int              `json:"total_claims"`
	RecentClaims   int              `json:"recent_claims"`
	ClaimFreeYears int              `json:"claim_free_years"`
	NCBPercent     float64          `json:"ncb_percentage"`
	FraudFlags     []string         `json:"fraud_flags"`
	Risk           models.RiskLevel `json:"risk_level"`
}

// Fraud reports whether any flag was raised.
func (h *HistoryResult) Fraud() bool {
	return h != nil && len(h.FraudFlags) > 0
}

// NewHistoryHandler returns the check_claim_history handler. An unknown
// customer is not an error; the result has risk "unknown".
func NewHistoryHandler(deps *Dependencies) Handler {
	lookback := deps.HistoryLookback
	if lookback <= 0 {
		lookback = DefaultHistoryLookback
	}
	threshold := deps.HistoryThreshold
	if threshold <= 0 {
		threshold = DefaultHistoryThreshold
	}

	return func(ctx context.Context, in *Input) (any, error) {
		customerID := in.Claim.CustomerID()
		if customerID == "" || deps.History == nil {
			return unknownCustomer(), nil
		}

		customer, err := deps.History.GetCustomer(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("get customer: %w", err)
		}
		if customer == nil {
			return unknownCustomer(), nil
		}

		var past []PastClaim
		seen := map[string]bool{in.Claim.ID(): true}
		claims, err := deps.History.ListClaimsByCustomer(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		for _, c := range claims {
			if seen[c.ClaimID] {
				continue
			}
			seen[c.ClaimID] = true
			amount := c.PayoutAmount
			if amount == 0 {
				amount = c.EstimatedCost
			}
			past = append(past, PastClaim{
				ClaimID:   c.ClaimID,
				ClaimType: string(c.Type),
				Status:    string(c.Status),
				Amount:    amount,
				FiledDate: c.FiledDate,
			})
		}
		history, err := deps.History.ListClaimHistory(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("list claim history: %w", err)
		}
		for _, h := range history {
			if seen[h.ClaimID] {
				continue
			}
			seen[h.ClaimID] = true
			past = append(past, PastClaim{
				ClaimID:   h.ClaimID,
				ClaimType: h.ClaimType,
				Status:    h.Status,
				Amount:    h.Amount,
				FiledDate: h.FiledDate,
			})
		}

		policies, err := deps.History.ListPoliciesByCustomer(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("list policies: %w", err)
		}
		var ncb float64
		for _, p := range policies {
			ncb = math.Max(ncb, p.NCBPercent)
		}

		res := AssessHistory(past, in.Claim.Amount(), deps.now(), lookback, threshold)
		res.CustomerFound = true
		res.CustomerName = customer.Name
		res.NCBPercent = ncb
		return res, nil
	}
}

func unknownCustomer() *HistoryResult {
	return &HistoryResult{
		PastClaims: []PastClaim{},
		FraudFlags: []string{},
		Risk:       models.RiskUnknown,
	}
}

// AssessHistory raises fraud flags and classifies risk. Claims are
// returned newest first. A claim is flagged when more than threshold
// claims fall within lookback of now, or when a prior amount is within
// 1% of the current claimed amount.
func AssessHistory(past []PastClaim, amount float64, now time.Time, lookback time.Duration, threshold int) *HistoryResult {
	claims := append([]PastClaim{}, past...)
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].FiledDate.After(claims[j].FiledDate)
	})

	res := &HistoryResult{
		PastClaims:  claims,
		TotalClaims: len(claims),
		FraudFlags:  []string{},
	}

	cutoff := now.Add(-lookback)
	for _, c := range claims {
		if !c.FiledDate.Before(cutoff) && !c.FiledDate.After(now) {
			res.RecentClaims++
		}
	}
	if res.RecentClaims > threshold {
		res.FraudFlags = append(res.FraudFlags,
			fmt.Sprintf("%d claims in the last %d days", res.RecentClaims, int(lookback.Hours()/24)))
	}

	if amount > 0 {
		for _, c := range claims {
			if c.Amount > 0 && math.Abs(c.Amount-amount) <= amount*0.01 {
				res.FraudFlags = append(res.FraudFlags,
					fmt.Sprintf("prior claim %s has a near-identical amount", c.ClaimID))
			}
		}
	}

	if len(claims) == 0 {
		res.ClaimFreeYears = 1
	} else if gap := now.Sub(claims[0].FiledDate); gap > 0 {
		res.ClaimFreeYears = int(gap.Hours() / (24 * 365))
	}

	switch {
	case len(res.FraudFlags) > 0:
		res.Risk = models.RiskHigh
	case res.TotalClaims > 2:
		res.Risk = models.RiskMedium
	default:
		res.Risk = models.RiskLow
	}
	return res
}
