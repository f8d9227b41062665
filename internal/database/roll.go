package database

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/trogers1052/wheel-tracker/internal/metrics"
	"github.com/trogers1052/wheel-tracker/internal/models"
)

// RollResult carries both halves of a completed roll
type RollResult struct {
	Closed *models.Position `json:"closed"`
	Opened *models.Position `json:"opened"`
}

// RollPosition closes the target position with outcome ROLLED and opens its
// successor inside a single transaction. Both rows share a freshly generated
// roll group id; either both mutations commit or neither does.
func (db *DB) RollPosition(userID, id uuid.UUID, req *models.PositionRoll) (*RollResult, error) {
	// Validate both payloads before touching the database.
	if err := validateCloseFields(req.Close.CloseDate, req.Close.ClosePricePerShare, req.Close.CloseFees); err != nil {
		return nil, err
	}
	if err := validateCreate(&req.Open); err != nil {
		return nil, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	owned, err := accountExists(tx, userID, req.Open.AccountID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, models.Invalid("open.account_id", "account not found or does not belong to you")
	}

	rollGroupID := uuid.New()

	closed, err := closeInTx(tx, userID, id,
		models.OutcomeRolled, req.Close.CloseDate,
		req.Close.ClosePricePerShare, req.Close.CloseFees, &rollGroupID)
	if err != nil {
		return nil, err
	}

	opened, err := insertPosition(tx, userID, &req.Open, &rollGroupID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit roll: %w", err)
	}

	metrics.Apply(closed)
	metrics.Apply(opened)
	return &RollResult{Closed: closed, Opened: opened}, nil
}
