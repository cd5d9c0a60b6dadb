package state

import (
	"context"
	"io"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// CustomerStore handles customer persistence.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
}

// PolicyLookup resolves a policy from any identifier a claimant may quote:
// policy number, vehicle registration or property ID.
type PolicyLookup interface {
	GetPolicyByIdentifier(ctx context.Context, identifier string) (*models.PolicyRecord, error)
}

// PolicyStore handles policy persistence.
type PolicyStore interface {
	PolicyLookup
	CreatePolicy(ctx context.Context, p *models.PolicyRecord) error
	GetPolicy(ctx context.Context, policyNumber string) (*models.PolicyRecord, error)
	ListPoliciesByCustomer(ctx context.Context, customerID string) ([]models.PolicyRecord, error)
	ListPolicies(ctx context.Context, policyType models.ClaimType) ([]models.PolicyRecord, error)
}

// ClaimStore handles claim persistence.
type ClaimStore interface {
	CreateClaim(ctx context.Context, c *models.Claim) error
	GetClaim(ctx context.Context, claimID string) (*models.Claim, error)
	UpdateClaimDecision(ctx context.Context, c *models.Claim) error
	ListClaims(ctx context.Context, status *models.ClaimStatus) ([]models.Claim, error)
	ListClaimsByCustomer(ctx context.Context, customerID string) ([]models.Claim, error)
}

// HistoryStore handles prior-claim records used for risk checks.
type HistoryStore interface {
	AddClaimHistory(ctx context.Context, h *models.ClaimHistory) error
	ListClaimHistory(ctx context.Context, customerID string) ([]models.ClaimHistory, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store composes every persistence concern the claim tools need.
type Store interface {
	io.Closer
	Migrator
	CustomerStore
	PolicyStore
	ClaimStore
	HistoryStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ CustomerStore = (*DB)(nil)
	_ PolicyStore   = (*DB)(nil)
	_ PolicyLookup  = (*DB)(nil)
	_ ClaimStore    = (*DB)(nil)
	_ HistoryStore  = (*DB)(nil)
)
