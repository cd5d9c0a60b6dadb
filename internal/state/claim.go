package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// Claim operations

const claimColumns = `
	id, claim_id, COALESCE(customer_id, ''), policy_number, claim_type, status, incident_date,
	description, identifier, estimated_cost, payout_amount, decision, decision_reason,
	filed_date, decision_date
`

// CreateClaim persists a new claim. A customer ID that is not on file is
// stored as NULL so claims from unknown claimants can still be recorded.
func (db *DB) CreateClaim(ctx context.Context, c *models.Claim) error {
	if c.Status == "" {
		c.Status = models.ClaimStatusPending
	}
	if c.FiledDate.IsZero() {
		c.FiledDate = time.Now()
	}
	var decisionDate *string
	if c.DecisionDate != nil {
		s := formatTime(*c.DecisionDate)
		decisionDate = &s
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO claims (
			claim_id, customer_id, policy_number, claim_type, status, incident_date, description,
			identifier, estimated_cost, payout_amount, decision, decision_reason, filed_date, decision_date
		) VALUES (?, (SELECT customer_id FROM customers WHERE customer_id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ClaimID, c.CustomerID, nullString(c.PolicyNumber), string(c.Type), string(c.Status),
		nullString(c.IncidentDate), nullString(c.Description), nullString(c.Identifier),
		c.EstimatedCost, c.PayoutAmount, nullString(c.Decision), nullString(c.DecisionReason),
		formatTime(c.FiledDate), decisionDate)
	if err != nil {
		return fmt.Errorf("create claim: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// GetClaim retrieves a claim by claim ID.
func (db *DB) GetClaim(ctx context.Context, claimID string) (*models.Claim, error) {
	row := db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE claim_id = ?`, claimID)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// UpdateClaimDecision records the status, payout and decision of a claim.
func (db *DB) UpdateClaimDecision(ctx context.Context, c *models.Claim) error {
	var decisionDate *string
	if c.DecisionDate != nil {
		s := formatTime(*c.DecisionDate)
		decisionDate = &s
	}
	res, err := db.ExecContext(ctx, `
		UPDATE claims SET status = ?, payout_amount = ?, decision = ?, decision_reason = ?, decision_date = ?
		WHERE claim_id = ?
	`, string(c.Status), c.PayoutAmount, nullString(c.Decision), nullString(c.DecisionReason), decisionDate, c.ClaimID)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update claim %s: not found", c.ClaimID)
	}
	return nil
}

// ListClaims lists claims newest first, optionally filtered by status.
func (db *DB) ListClaims(ctx context.Context, status *models.ClaimStatus) ([]models.Claim, error) {
	var rows *sql.Rows
	var err error
	if status != nil {
		rows, err = db.QueryContext(ctx, `SELECT `+claimColumns+`
			FROM claims WHERE status = ? ORDER BY filed_date DESC, id DESC`, string(*status))
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+claimColumns+`
			FROM claims ORDER BY filed_date DESC, id DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return collectClaims(rows)
}

// ListClaimsByCustomer lists a customer's claims newest first.
func (db *DB) ListClaimsByCustomer(ctx context.Context, customerID string) ([]models.Claim, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+claimColumns+`
		FROM claims WHERE customer_id = ? ORDER BY filed_date DESC, id DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer claims: %w", err)
	}
	return collectClaims(rows)
}

func collectClaims(rows *sql.Rows) ([]models.Claim, error) {
	defer rows.Close()
	var claims []models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

func scanClaim(s scanner) (*models.Claim, error) {
	var c models.Claim
	var claimType, status, filedDate string
	var policyNumber, incidentDate, description, identifier, decision, reason, decisionDate sql.NullString
	err := s.Scan(&c.ID, &c.ClaimID, &c.CustomerID, &policyNumber, &claimType, &status, &incidentDate,
		&description, &identifier, &c.EstimatedCost, &c.PayoutAmount, &decision, &reason,
		&filedDate, &decisionDate)
	if err != nil {
		return nil, err
	}
	c.PolicyNumber = policyNumber.String
	c.Type = models.ClaimSubType(claimType)
	c.Status = models.ClaimStatus(status)
	c.IncidentDate = incidentDate.String
	c.Description = description.String
	c.Identifier = identifier.String
	c.Decision = decision.String
	c.DecisionReason = reason.String
	c.FiledDate, _ = parseTime(filedDate)
	c.DecisionDate = parseNullableTime(decisionDate)
	return &c, nil
}

// Claim history operations

// AddClaimHistory appends a prior-claim record for a customer.
func (db *DB) AddClaimHistory(ctx context.Context, h *models.ClaimHistory) error {
	if h.FiledDate.IsZero() {
		h.FiledDate = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO claim_history (customer_id, claim_id, claim_type, amount, filed_date, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, h.CustomerID, h.ClaimID, nullString(h.ClaimType), h.Amount, formatTime(h.FiledDate), nullString(h.Status))
	if err != nil {
		return fmt.Errorf("add claim history: %w", err)
	}
	h.ID, _ = res.LastInsertId()
	return nil
}

// ListClaimHistory returns a customer's prior claims, newest first.
func (db *DB) ListClaimHistory(ctx context.Context, customerID string) ([]models.ClaimHistory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, customer_id, claim_id, claim_type, amount, filed_date, status
		FROM claim_history WHERE customer_id = ? ORDER BY filed_date DESC, id DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list claim history: %w", err)
	}
	defer rows.Close()

	var history []models.ClaimHistory
	for rows.Next() {
		var h models.ClaimHistory
		var claimType, status sql.NullString
		var filedDate string
		if err := rows.Scan(&h.ID, &h.CustomerID, &h.ClaimID, &claimType, &h.Amount, &filedDate, &status); err != nil {
			return nil, fmt.Errorf("scan claim history: %w", err)
		}
		h.ClaimType = claimType.String
		h.Status = status.String
		h.FiledDate, _ = parseTime(filedDate)
		history = append(history, h)
	}
	return history, rows.Err()
}
