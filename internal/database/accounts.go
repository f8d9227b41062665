package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

// CreateAccount inserts a new brokerage account for the given user
func (db *DB) CreateAccount(userID uuid.UUID, req *models.AccountCreate) (*models.Account, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, models.Invalid("name", "must not be empty")
	}
	if !req.Broker.Valid() {
		return nil, models.Invalid("broker", fmt.Sprintf("unknown broker %q", req.Broker))
	}

	query := `
		INSERT INTO accounts (user_id, name, broker, tax_treatment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	a := &models.Account{
		UserID:       userID,
		Name:         req.Name,
		Broker:       req.Broker,
		TaxTreatment: req.TaxTreatment,
	}
	err := db.conn.QueryRow(query,
		userID, req.Name, string(req.Broker), nullString(req.TaxTreatment),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return a, nil
}

// ListAccounts retrieves all accounts owned by the given user
func (db *DB) ListAccounts(userID uuid.UUID) ([]*models.Account, error) {
	query := `
		SELECT id, user_id, name, broker, tax_treatment, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetAccount retrieves one account scoped to the given user
func (db *DB) GetAccount(userID, id uuid.UUID) (*models.Account, error) {
	query := `
		SELECT id, user_id, name, broker, tax_treatment, created_at, updated_at
		FROM accounts
		WHERE id = $1 AND user_id = $2
	`
	row := db.conn.QueryRow(query, id, userID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "account"}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAccount applies a partial update to an account owned by the user
func (db *DB) UpdateAccount(userID, id uuid.UUID, req *models.AccountUpdate) (*models.Account, error) {
	a, err := db.GetAccount(userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, models.Invalid("name", "must not be empty")
		}
		a.Name = *req.Name
	}
	if req.Broker != nil {
		if !req.Broker.Valid() {
			return nil, models.Invalid("broker", fmt.Sprintf("unknown broker %q", *req.Broker))
		}
		a.Broker = *req.Broker
	}
	if req.TaxTreatment != nil {
		a.TaxTreatment = *req.TaxTreatment
	}

	query := `
		UPDATE accounts
		SET name = $3, broker = $4, tax_treatment = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err = db.conn.QueryRow(query,
		id, userID, a.Name, string(a.Broker), nullString(a.TaxTreatment),
	).Scan(&a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "account"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return a, nil
}

// accountExists reports whether the account belongs to the user. Runs on q so
// the roll transaction can use it.
func accountExists(q queryer, userID, accountID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND user_id = $2)`,
		accountID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account ownership: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var taxTreatment sql.NullString

	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Broker, &taxTreatment, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if taxTreatment.Valid {
		a.TaxTreatment = taxTreatment.String
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
