package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/wheel-tracker/internal/metrics"
	"github.com/trogers1052/wheel-tracker/internal/models"
)

const positionColumns = `
	id, user_id, account_id, ticker, type, status,
	open_date, expiration_date, close_date,
	strike_price, contracts, multiplier, premium_per_share,
	open_fees, close_fees, close_price_per_share,
	outcome, roll_group_id, notes, tags, created_at, updated_at`

type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// CreatePosition opens a new position for the given user. The ticker is
// normalized to uppercase and status is always OPEN.
func (db *DB) CreatePosition(userID uuid.UUID, req *models.PositionCreate) (*models.Position, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	owned, err := accountExists(db.conn, userID, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, models.Invalid("account_id", "account not found or does not belong to you")
	}

	p, err := insertPosition(db.conn, userID, req, nil)
	if err != nil {
		return nil, err
	}
	metrics.Apply(p)
	return p, nil
}

// insertPosition writes an OPEN row. rollGroupID is set only by RollPosition.
func insertPosition(q queryer, userID uuid.UUID, req *models.PositionCreate, rollGroupID *uuid.UUID) (*models.Position, error) {
	multiplier := 100
	if req.Multiplier != nil {
		multiplier = *req.Multiplier
	}
	openFees := decimal.Zero
	if req.OpenFees != nil {
		openFees = *req.OpenFees
	}

	p := &models.Position{
		UserID:          userID,
		AccountID:       req.AccountID,
		Ticker:          strings.ToUpper(req.Ticker),
		Type:            req.Type,
		Status:          models.StatusOpen,
		OpenDate:        req.OpenDate,
		ExpirationDate:  req.ExpirationDate,
		StrikePrice:     req.StrikePrice,
		Contracts:       req.Contracts,
		Multiplier:      multiplier,
		PremiumPerShare: req.PremiumPerShare,
		OpenFees:        openFees,
		CloseFees:       decimal.Zero,
		RollGroupID:     rollGroupID,
		Notes:           req.Notes,
		Tags:            req.Tags,
	}

	query := `
		INSERT INTO positions (
			user_id, account_id, ticker, type, status,
			open_date, expiration_date, strike_price, contracts, multiplier,
			premium_per_share, open_fees, roll_group_id, notes, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, close_fees, created_at, updated_at
	`
	var rollGroup uuid.NullUUID
	if rollGroupID != nil {
		rollGroup = uuid.NullUUID{UUID: *rollGroupID, Valid: true}
	}
	err := q.QueryRow(query,
		userID, req.AccountID, p.Ticker, string(p.Type), string(p.Status),
		p.OpenDate, p.ExpirationDate, p.StrikePrice, p.Contracts, p.Multiplier,
		p.PremiumPerShare, p.OpenFees, rollGroup, nullString(p.Notes), pq.Array(p.Tags),
	).Scan(&p.ID, &p.CloseFees, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create position: %w", err)
	}
	return p, nil
}

// ListPositions retrieves positions matching the filter, scoped to the user,
// with derived metrics attached.
func (db *DB) ListPositions(userID uuid.UUID, filter *models.PositionFilter) ([]*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Ticker != "" {
		args = append(args, strings.ToUpper(filter.Ticker))
		query += fmt.Sprintf(" AND ticker = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if filter.ExpirationStart != nil {
		args = append(args, *filter.ExpirationStart)
		query += fmt.Sprintf(" AND expiration_date >= $%d", len(args))
	}
	if filter.ExpirationEnd != nil {
		args = append(args, *filter.ExpirationEnd)
		query += fmt.Sprintf(" AND expiration_date <= $%d", len(args))
	}

	sortCol := "open_date"
	if models.SortableColumns[filter.Sort] {
		sortCol = filter.Sort
	}
	direction := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		direction = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortCol, direction)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		metrics.Apply(p)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetPosition retrieves one position scoped to the user
func (db *DB) GetPosition(userID, id uuid.UUID) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1 AND user_id = $2`
	p, err := scanPosition(db.conn.QueryRow(query, id, userID))
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "position"}
	}
	if err != nil {
		return nil, err
	}
	metrics.Apply(p)
	return p, nil
}

// UpdatePosition applies a partial update to an OPEN position. CLOSED
// positions are immutable.
func (db *DB) UpdatePosition(userID, id uuid.UUID, req *models.PositionUpdate) (*models.Position, error) {
	// Only CLOSED rows may carry a close price, and those are immutable here.
	if req.ClosePricePerShare != nil {
		return nil, models.Invalid("close_price_per_share", "cannot be set while the position is open")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := lockPosition(tx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Status == models.StatusClosed {
		return nil, models.Invalid("status", "cannot update a closed position")
	}

	if req.AccountID != nil && *req.AccountID != p.AccountID {
		owned, err := accountExists(tx, userID, *req.AccountID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, models.Invalid("account_id", "account not found or does not belong to you")
		}
		p.AccountID = *req.AccountID
	}
	if req.Ticker != nil {
		p.Ticker = strings.ToUpper(*req.Ticker)
	}
	if req.Type != nil {
		p.Type = *req.Type
	}
	if req.OpenDate != nil {
		p.OpenDate = *req.OpenDate
	}
	if req.ExpirationDate != nil {
		p.ExpirationDate = *req.ExpirationDate
	}
	if req.StrikePrice != nil {
		p.StrikePrice = *req.StrikePrice
	}
	if req.Contracts != nil {
		p.Contracts = *req.Contracts
	}
	if req.PremiumPerShare != nil {
		p.PremiumPerShare = *req.PremiumPerShare
	}
	if req.Multiplier != nil {
		p.Multiplier = *req.Multiplier
	}
	if req.OpenFees != nil {
		p.OpenFees = *req.OpenFees
	}
	if req.CloseFees != nil {
		p.CloseFees = *req.CloseFees
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	if req.Tags != nil {
		p.Tags = *req.Tags
	}

	if err := validateStoredFields(p); err != nil {
		return nil, err
	}

	query := `
		UPDATE positions SET
			account_id = $3, ticker = $4, type = $5,
			open_date = $6, expiration_date = $7,
			strike_price = $8, contracts = $9, multiplier = $10,
			premium_per_share = $11, open_fees = $12, close_fees = $13,
			close_price_per_share = $14, notes = $15, tags = $16,
			updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err = tx.QueryRow(query,
		id, userID, p.AccountID, p.Ticker, string(p.Type),
		p.OpenDate, p.ExpirationDate,
		p.StrikePrice, p.Contracts, p.Multiplier,
		p.PremiumPerShare, p.OpenFees, p.CloseFees,
		nullDecimal(p.ClosePricePerShare), nullString(p.Notes), pq.Array(p.Tags),
	).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update position: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.Apply(p)
	return p, nil
}

// ClosePosition transitions an OPEN position to CLOSED exactly once
func (db *DB) ClosePosition(userID, id uuid.UUID, req *models.PositionClose) (*models.Position, error) {
	if !models.ValidCloseOutcome(req.Outcome) {
		return nil, models.Invalid("outcome", fmt.Sprintf("invalid close outcome %q", req.Outcome))
	}
	if err := validateCloseFields(req.CloseDate, req.ClosePricePerShare, req.CloseFees); err != nil {
		return nil, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := closeInTx(tx, userID, id, req.Outcome, req.CloseDate, req.ClosePricePerShare, req.CloseFees, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.Apply(p)
	return p, nil
}

// closeInTx performs the guarded OPEN -> CLOSED transition inside tx.
// rollGroupID is set only when the close is the first half of a roll.
func closeInTx(tx *sql.Tx, userID, id uuid.UUID, outcome models.PositionOutcome, closeDate models.Date, closePrice, closeFees *decimal.Decimal, rollGroupID *uuid.UUID) (*models.Position, error) {
	p, err := lockPosition(tx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Status == models.StatusClosed {
		return nil, &models.ConflictError{Message: "position is already closed"}
	}

	p.Status = models.StatusClosed
	p.Outcome = &outcome
	p.CloseDate = &closeDate
	if closePrice != nil {
		p.ClosePricePerShare = closePrice
	}
	if closeFees != nil {
		p.CloseFees = *closeFees
	}
	if rollGroupID != nil {
		p.RollGroupID = rollGroupID
	}

	var rollGroup uuid.NullUUID
	if p.RollGroupID != nil {
		rollGroup = uuid.NullUUID{UUID: *p.RollGroupID, Valid: true}
	}

	query := `
		UPDATE positions SET
			status = $3, outcome = $4, close_date = $5,
			close_price_per_share = $6, close_fees = $7, roll_group_id = $8,
			updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status = 'OPEN'
		RETURNING updated_at
	`
	err = tx.QueryRow(query,
		id, userID, string(p.Status), string(outcome), closeDate,
		nullDecimal(p.ClosePricePerShare), p.CloseFees, rollGroup,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		// Lost a race between the lock and the update; treat as already closed.
		return nil, &models.ConflictError{Message: "position is already closed"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close position: %w", err)
	}
	return p, nil
}

// lockPosition selects a position FOR UPDATE, owner-scoped
func lockPosition(tx *sql.Tx, userID, id uuid.UUID) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1 AND user_id = $2 FOR UPDATE`
	p, err := scanPosition(tx.QueryRow(query, id, userID))
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "position"}
	}
	return p, err
}

func validateCreate(req *models.PositionCreate) error {
	if strings.TrimSpace(req.Ticker) == "" {
		return models.Invalid("ticker", "must not be empty")
	}
	if !req.Type.Valid() {
		return models.Invalid("type", fmt.Sprintf("unknown position type %q", req.Type))
	}
	if req.AccountID == uuid.Nil {
		return models.Invalid("account_id", "is required")
	}
	if req.OpenDate.IsZero() {
		return models.Invalid("open_date", "is required")
	}
	if req.ExpirationDate.IsZero() {
		return models.Invalid("expiration_date", "is required")
	}
	if req.ExpirationDate.Before(req.OpenDate.Time) {
		return models.Invalid("expiration_date", "must not precede open_date")
	}
	if !req.StrikePrice.IsPositive() {
		return models.Invalid("strike_price", "must be positive")
	}
	if req.Contracts <= 0 {
		return models.Invalid("contracts", "must be a positive integer")
	}
	if req.Multiplier != nil && *req.Multiplier <= 0 {
		return models.Invalid("multiplier", "must be a positive integer")
	}
	if req.PremiumPerShare.IsNegative() {
		return models.Invalid("premium_per_share", "must not be negative")
	}
	if req.OpenFees != nil && req.OpenFees.IsNegative() {
		return models.Invalid("open_fees", "must not be negative")
	}
	return nil
}

func validateCloseFields(closeDate models.Date, closePrice, closeFees *decimal.Decimal) error {
	if closeDate.IsZero() {
		return models.Invalid("close_date", "is required")
	}
	if closePrice != nil && closePrice.IsNegative() {
		return models.Invalid("close_price_per_share", "must not be negative")
	}
	if closeFees != nil && closeFees.IsNegative() {
		return models.Invalid("close_fees", "must not be negative")
	}
	return nil
}

// validateStoredFields re-checks the invariants after a partial update has
// been applied in memory.
func validateStoredFields(p *models.Position) error {
	if strings.TrimSpace(p.Ticker) == "" {
		return models.Invalid("ticker", "must not be empty")
	}
	if !p.Type.Valid() {
		return models.Invalid("type", fmt.Sprintf("unknown position type %q", p.Type))
	}
	if p.OpenDate.IsZero() {
		return models.Invalid("open_date", "is required")
	}
	if p.ExpirationDate.IsZero() {
		return models.Invalid("expiration_date", "is required")
	}
	if p.ExpirationDate.Before(p.OpenDate.Time) {
		return models.Invalid("expiration_date", "must not precede open_date")
	}
	if !p.StrikePrice.IsPositive() {
		return models.Invalid("strike_price", "must be positive")
	}
	if p.Contracts <= 0 {
		return models.Invalid("contracts", "must be a positive integer")
	}
	if p.Multiplier <= 0 {
		return models.Invalid("multiplier", "must be a positive integer")
	}
	if p.PremiumPerShare.IsNegative() {
		return models.Invalid("premium_per_share", "must not be negative")
	}
	if p.OpenFees.IsNegative() {
		return models.Invalid("open_fees", "must not be negative")
	}
	if p.CloseFees.IsNegative() {
		return models.Invalid("close_fees", "must not be negative")
	}
	if p.ClosePricePerShare != nil && p.ClosePricePerShare.IsNegative() {
		return models.Invalid("close_price_per_share", "must not be negative")
	}
	return nil
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var closeDate sql.NullTime
	var closePrice, outcome, notes sql.NullString
	var rollGroup uuid.NullUUID
	var tags pq.StringArray

	err := row.Scan(
		&p.ID, &p.UserID, &p.AccountID, &p.Ticker, &p.Type, &p.Status,
		&p.OpenDate, &p.ExpirationDate, &closeDate,
		&p.StrikePrice, &p.Contracts, &p.Multiplier, &p.PremiumPerShare,
		&p.OpenFees, &p.CloseFees, &closePrice,
		&outcome, &rollGroup, &notes, &tags, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}

	if closeDate.Valid {
		d := models.DateOf(closeDate.Time)
		p.CloseDate = &d
	}
	if closePrice.Valid {
		price, err := decimal.NewFromString(closePrice.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse close price: %w", err)
		}
		p.ClosePricePerShare = &price
	}
	if outcome.Valid {
		o := models.PositionOutcome(outcome.String)
		p.Outcome = &o
	}
	if rollGroup.Valid {
		p.RollGroupID = &rollGroup.UUID
	}
	if notes.Valid {
		p.Notes = notes.String
	}
	p.Tags = []string(tags)

	return &p, nil
}

// OpenTickers returns the distinct tickers across all open positions, for
// the price refresher. Deliberately not user-scoped: the cache is shared.
func (db *DB) OpenTickers() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT ticker FROM positions WHERE status = 'OPEN' ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
