package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// Customer operations

// CreateCustomer creates a new customer.
func (db *DB) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO customers (customer_id, name, email, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.CustomerID, c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// GetCustomer retrieves a customer by business identifier, e.g. "CUST-001".
func (db *DB) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, customer_id, name, email, phone, address, created_at
		FROM customers WHERE customer_id = ?
	`, customerID)

	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// ListCustomers lists all customers ordered by identifier.
func (db *DB) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, customer_id, name, email, phone, address, created_at
		FROM customers ORDER BY customer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(s scanner) (*models.Customer, error) {
	var c models.Customer
	var email, phone, address sql.NullString
	var createdAt string
	if err := s.Scan(&c.ID, &c.CustomerID, &c.Name, &email, &phone, &address, &createdAt); err != nil {
		return nil, err
	}
	c.Email, c.Phone, c.Address = email.String, phone.String, address.String
	c.CreatedAt, _ = parseTime(createdAt)
	return &c, nil
}

// Policy operations

const policyColumns = `
	p.id, p.policy_number, p.customer_id, COALESCE(c.name, ''), p.policy_type, p.coverage_type,
	p.sum_insured, p.premium, p.idv, p.deductible, p.copay_percent, p.zero_depreciation,
	p.ncb_percent, p.vehicle_registration, p.property_id, p.holder_age, p.coverages,
	p.exclusions, p.status, p.policy_start, p.policy_end
`

const policyFrom = `FROM policies p LEFT JOIN customers c ON c.customer_id = p.customer_id`

// CreatePolicy creates a new policy. The owning customer must exist.
func (db *DB) CreatePolicy(ctx context.Context, p *models.PolicyRecord) error {
	status := p.Status
	if status == "" {
		status = "active"
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO policies (
			policy_number, customer_id, policy_type, coverage_type, sum_insured, premium, idv,
			deductible, copay_percent, zero_depreciation, ncb_percent, vehicle_registration,
			property_id, holder_age, coverages, exclusions, status, policy_start, policy_end
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.PolicyNumber, p.CustomerID, string(p.PolicyType), p.CoverageType, p.SumInsured, p.Premium, p.IDV,
		p.Deductible, p.CopayPercent, p.ZeroDepreciation, p.NCBPercent, nullString(p.VehicleRegistration),
		nullString(p.PropertyID), p.HolderAge, nullString(joinList(p.Coverages)), nullString(joinList(p.Exclusions)),
		status, formatTime(p.Start), formatTime(p.End))
	if err != nil {
		return fmt.Errorf("create policy: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	p.Status = status
	return nil
}

// GetPolicy retrieves a policy by policy number.
func (db *DB) GetPolicy(ctx context.Context, policyNumber string) (*models.PolicyRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+policyColumns+policyFrom+` WHERE p.policy_number = ?`, policyNumber)
	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return p, nil
}

// GetPolicyByIdentifier matches the identifier against policy numbers,
// vehicle registrations and property IDs, ignoring case and separators.
func (db *DB) GetPolicyByIdentifier(ctx context.Context, identifier string) (*models.PolicyRecord, error) {
	canon := canonicalIdentifier(identifier)
	if canon == "" {
		return nil, nil
	}
	row := db.QueryRowContext(ctx, `SELECT `+policyColumns+policyFrom+`
		WHERE UPPER(REPLACE(REPLACE(p.policy_number, '-', ''), ' ', '')) = ?
		   OR UPPER(REPLACE(REPLACE(COALESCE(p.vehicle_registration, ''), '-', ''), ' ', '')) = ?
		   OR UPPER(REPLACE(REPLACE(COALESCE(p.property_id, ''), '-', ''), ' ', '')) = ?
		ORDER BY p.id LIMIT 1
	`, canon, canon, canon)
	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy by identifier: %w", err)
	}
	return p, nil
}

// ListPoliciesByCustomer lists the policies a customer holds.
func (db *DB) ListPoliciesByCustomer(ctx context.Context, customerID string) ([]models.PolicyRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+policyColumns+policyFrom+`
		WHERE p.customer_id = ? ORDER BY p.policy_number`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer policies: %w", err)
	}
	return collectPolicies(rows)
}

// ListPolicies lists policies, optionally filtered by type. An empty type
// lists every policy.
func (db *DB) ListPolicies(ctx context.Context, policyType models.ClaimType) ([]models.PolicyRecord, error) {
	var rows *sql.Rows
	var err error
	if policyType != "" {
		rows, err = db.QueryContext(ctx, `SELECT `+policyColumns+policyFrom+`
			WHERE p.policy_type = ? ORDER BY p.policy_number`, string(policyType))
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+policyColumns+policyFrom+` ORDER BY p.policy_number`)
	}
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return collectPolicies(rows)
}

func collectPolicies(rows *sql.Rows) ([]models.PolicyRecord, error) {
	defer rows.Close()
	var policies []models.PolicyRecord
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

func scanPolicy(s scanner) (*models.PolicyRecord, error) {
	var p models.PolicyRecord
	var policyType, start, end string
	var coverageType, vehicle, property, coverages, exclusions sql.NullString
	err := s.Scan(&p.ID, &p.PolicyNumber, &p.CustomerID, &p.CustomerName, &policyType, &coverageType,
		&p.SumInsured, &p.Premium, &p.IDV, &p.Deductible, &p.CopayPercent, &p.ZeroDepreciation,
		&p.NCBPercent, &vehicle, &property, &p.HolderAge, &coverages,
		&exclusions, &p.Status, &start, &end)
	if err != nil {
		return nil, err
	}
	p.PolicyType = models.ClaimType(policyType)
	p.CoverageType = coverageType.String
	p.VehicleRegistration = vehicle.String
	p.PropertyID = property.String
	p.Coverages = splitList(coverages)
	p.Exclusions = splitList(exclusions)
	p.Start, _ = parseTime(start)
	p.End, _ = parseTime(end)
	p.Source = models.PolicySourceDatabase
	return &p, nil
}
