package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// SeedSummary counts the records Seed created.
type SeedSummary struct {
	Customers int
	Policies  int
	Claims    int
	History   int
	// Skipped is true when the sample customers already existed.
	Skipped bool
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SampleCustomers is the demo customer set.
func SampleCustomers() []models.Customer {
	return []models.Customer{
		{CustomerID: "CUST-001", Name: "Rajesh Kumar", Email: "rajesh.kumar@email.com", Phone: "+91-9876543210", Address: "123, MG Road, Bangalore, Karnataka - 560001"},
		{CustomerID: "CUST-002", Name: "Priya Sharma", Email: "priya.sharma@email.com", Phone: "+91-9876543211", Address: "456, Nehru Place, New Delhi - 110019"},
		{CustomerID: "CUST-003", Name: "Amit Patel", Email: "amit.patel@email.com", Phone: "+91-9876543212", Address: "789, SG Highway, Ahmedabad, Gujarat - 380015"},
	}
}

// SamplePolicies is the demo policy set: two motor, one home, two health.
func SamplePolicies() []models.PolicyRecord {
	return []models.PolicyRecord{
		{
			PolicyNumber: "MI-2024-001", CustomerID: "CUST-001", PolicyType: models.ClaimTypeMotor,
			CoverageType: "comprehensive", SumInsured: 1500000, Premium: 45000, IDV: 1500000,
			Deductible: 2000, ZeroDepreciation: true, NCBPercent: 20, VehicleRegistration: "KA-01-AB-1234",
			Start: day(2024, time.January, 1), End: day(2025, time.January, 1),
		},
		{
			PolicyNumber: "MI-2024-002", CustomerID: "CUST-002", PolicyType: models.ClaimTypeMotor,
			CoverageType: "comprehensive", SumInsured: 800000, Premium: 28000, IDV: 800000,
			Deductible: 2000, VehicleRegistration: "DL-01-XY-5678",
			Start: day(2024, time.March, 15), End: day(2025, time.March, 15),
		},
		{
			PolicyNumber: "HI-2024-001", CustomerID: "CUST-003", PolicyType: models.ClaimTypeHome,
			CoverageType: "comprehensive", SumInsured: 5000000, Premium: 15000,
			Deductible: 5000, PropertyID: "PROP-AHM-001",
			Start: day(2024, time.February, 1), End: day(2025, time.February, 1),
		},
		{
			PolicyNumber: "HE-2024-001", CustomerID: "CUST-001", PolicyType: models.ClaimTypeHealth,
			CoverageType: "individual", SumInsured: 500000, Premium: 12000, HolderAge: 35, CopayPercent: 10,
			Start: day(2024, time.January, 1), End: day(2025, time.January, 1),
		},
		{
			PolicyNumber: "HE-2024-002", CustomerID: "CUST-002", PolicyType: models.ClaimTypeHealth,
			CoverageType: "family_floater", SumInsured: 1000000, Premium: 25000, HolderAge: 32, CopayPercent: 10,
			Start: day(2024, time.April, 1), End: day(2025, time.April, 1),
		},
	}
}

// SampleClaims is the demo claim set.
func SampleClaims() []models.Claim {
	decided := time.Date(2024, time.June, 16, 10, 0, 0, 0, time.UTC)
	return []models.Claim{
		{
			ClaimID: "CLM-2024-001", CustomerID: "CUST-001", PolicyNumber: "MI-2024-001",
			Type: models.SubTypeMotorAccident, Status: models.ClaimStatusApproved, IncidentDate: "2024-06-15",
			Description: "Collision with another vehicle at traffic signal", Identifier: "KA-01-AB-1234",
			EstimatedCost: 85000, PayoutAmount: 85000, Decision: "approved",
			DecisionReason: "Valid claim, zero depreciation cover applicable",
			FiledDate:      time.Date(2024, time.June, 15, 16, 0, 0, 0, time.UTC), DecisionDate: &decided,
		},
		{
			ClaimID: "CLM-2024-002", CustomerID: "CUST-003", PolicyNumber: "HI-2024-001",
			Type: models.SubTypeHomeFire, Status: models.ClaimStatusUnderReview, IncidentDate: "2024-11-20",
			Description: "Electrical short circuit caused fire in living room", Identifier: "PROP-AHM-001",
			EstimatedCost: 250000, Decision: "under_review",
			FiledDate: time.Date(2024, time.November, 20, 10, 0, 0, 0, time.UTC),
		},
		{
			ClaimID: "CLM-2024-003", CustomerID: "CUST-002", PolicyNumber: "HE-2024-002",
			Type: models.SubTypeHealthHospitalization, Status: models.ClaimStatusPending, IncidentDate: "2024-12-01",
			Description: "Hospitalized for severe pneumonia at Apollo Hospital", Identifier: "HE-2024-002",
			EstimatedCost: 120000,
			FiledDate:     day(2024, time.December, 6),
		},
	}
}

// SampleHistory is the demo prior-claim set.
func SampleHistory() []models.ClaimHistory {
	return []models.ClaimHistory{
		{CustomerID: "CUST-001", ClaimID: "CLM-2023-099", ClaimType: "motor_accident", Amount: 45000, FiledDate: day(2023, time.August, 10), Status: "approved"},
		{CustomerID: "CUST-003", ClaimID: "CLM-2023-150", ClaimType: "home_theft", Amount: 80000, FiledDate: day(2023, time.May, 15), Status: "approved"},
	}
}

// Seed loads the demo dataset. It does nothing if the first sample
// customer already exists.
func Seed(ctx context.Context, s Store) (SeedSummary, error) {
	var sum SeedSummary

	customers := SampleCustomers()
	existing, err := s.GetCustomer(ctx, customers[0].CustomerID)
	if err != nil {
		return sum, err
	}
	if existing != nil {
		sum.Skipped = true
		return sum, nil
	}

	for i := range customers {
		if err := s.CreateCustomer(ctx, &customers[i]); err != nil {
			return sum, fmt.Errorf("seed customer %s: %w", customers[i].CustomerID, err)
		}
		sum.Customers++
	}

	policies := SamplePolicies()
	for i := range policies {
		if err := s.CreatePolicy(ctx, &policies[i]); err != nil {
			return sum, fmt.Errorf("seed policy %s: %w", policies[i].PolicyNumber, err)
		}
		sum.Policies++
	}

	claims := SampleClaims()
	for i := range claims {
		if err := s.CreateClaim(ctx, &claims[i]); err != nil {
			return sum, fmt.Errorf("seed claim %s: %w", claims[i].ClaimID, err)
		}
		sum.Claims++
	}

	history := SampleHistory()
	for i := range history {
		if err := s.AddClaimHistory(ctx, &history[i]); err != nil {
			return sum, fmt.Errorf("seed history %s: %w", history[i].ClaimID, err)
		}
		sum.History++
	}

	return sum, nil
}
