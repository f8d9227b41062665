package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position type constants
type PositionType string

const (
	TypeCoveredCall    PositionType = "COVERED_CALL"
	TypeCashSecuredPut PositionType = "CASH_SECURED_PUT"
)

// Valid reports whether t is a known position type.
func (t PositionType) Valid() bool {
	switch t {
	case TypeCoveredCall, TypeCashSecuredPut:
		return true
	}
	return false
}

// Position status constants
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// Valid reports whether s is a known position status.
func (s PositionStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Position outcome constants
type PositionOutcome string

const (
	OutcomeExpired     PositionOutcome = "EXPIRED"
	OutcomeAssigned    PositionOutcome = "ASSIGNED"
	OutcomeClosedEarly PositionOutcome = "CLOSED_EARLY"
	OutcomeRolled      PositionOutcome = "ROLLED"
)

// Valid reports whether o is a known position outcome.
func (o PositionOutcome) Valid() bool {
	switch o {
	case OutcomeExpired, OutcomeAssigned, OutcomeClosedEarly, OutcomeRolled:
		return true
	}
	return false
}

// ValidCloseOutcome reports whether o may be supplied on a plain close.
// ROLLED is reserved for the roll operation.
func ValidCloseOutcome(o PositionOutcome) bool {
	switch o {
	case OutcomeExpired, OutcomeAssigned, OutcomeClosedEarly:
		return true
	}
	return false
}

// Derived holds the metrics recomputed from a position's stored fields.
// Never persisted.
type Derived struct {
	PremiumTotal  decimal.Decimal  `json:"premium_total"`
	PremiumNet    decimal.Decimal  `json:"premium_net"`
	Collateral    decimal.Decimal  `json:"collateral"`
	ROCPeriod     *decimal.Decimal `json:"roc_period,omitempty"`
	DTE           int              `json:"dte"`
	AnnualizedROC *decimal.Decimal `json:"annualized_roc,omitempty"`
}

// Position represents a single covered call or cash-secured put trade
type Position struct {
	ID                 uuid.UUID        `json:"id"`
	UserID             uuid.UUID        `json:"user_id"`
	AccountID          uuid.UUID        `json:"account_id"`
	Ticker             string           `json:"ticker"`
	Type               PositionType     `json:"type"`
	Status             PositionStatus   `json:"status"`
	OpenDate           Date             `json:"open_date"`
	ExpirationDate     Date             `json:"expiration_date"`
	CloseDate          *Date            `json:"close_date,omitempty"`
	StrikePrice        decimal.Decimal  `json:"strike_price"`
	Contracts          int              `json:"contracts"`
	Multiplier         int              `json:"multiplier"`
	PremiumPerShare    decimal.Decimal  `json:"premium_per_share"`
	OpenFees           decimal.Decimal  `json:"open_fees"`
	CloseFees          decimal.Decimal  `json:"close_fees"`
	ClosePricePerShare *decimal.Decimal `json:"close_price_per_share,omitempty"`
	Outcome            *PositionOutcome `json:"outcome,omitempty"`
	RollGroupID        *uuid.UUID       `json:"roll_group_id,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	Tags               []string         `json:"tags,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`

	Derived
}

// PositionCreate is the payload for opening a new position
type PositionCreate struct {
	AccountID       uuid.UUID        `json:"account_id"`
	Ticker          string           `json:"ticker"`
	Type            PositionType     `json:"type"`
	OpenDate        Date             `json:"open_date"`
	ExpirationDate  Date             `json:"expiration_date"`
	StrikePrice     decimal.Decimal  `json:"strike_price"`
	Contracts       int              `json:"contracts"`
	PremiumPerShare decimal.Decimal  `json:"premium_per_share"`
	Multiplier      *int             `json:"multiplier,omitempty"`
	OpenFees        *decimal.Decimal `json:"open_fees,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
}

// PositionUpdate is a partial update; nil fields are left untouched
type PositionUpdate struct {
	AccountID          *uuid.UUID       `json:"account_id,omitempty"`
	Ticker             *string          `json:"ticker,omitempty"`
	Type               *PositionType    `json:"type,omitempty"`
	OpenDate           *Date            `json:"open_date,omitempty"`
	ExpirationDate     *Date            `json:"expiration_date,omitempty"`
	StrikePrice        *decimal.Decimal `json:"strike_price,omitempty"`
	Contracts          *int             `json:"contracts,omitempty"`
	PremiumPerShare    *decimal.Decimal `json:"premium_per_share,omitempty"`
	Multiplier         *int             `json:"multiplier,omitempty"`
	OpenFees           *decimal.Decimal `json:"open_fees,omitempty"`
	CloseFees          *decimal.Decimal `json:"close_fees,omitempty"`
	ClosePricePerShare *decimal.Decimal `json:"close_price_per_share,omitempty"`
	Notes              *string          `json:"notes,omitempty"`
	Tags               *[]string        `json:"tags,omitempty"`
}

// PositionClose is the payload for closing an open position
type PositionClose struct {
	Outcome            PositionOutcome  `json:"outcome"`
	CloseDate          Date             `json:"close_date"`
	ClosePricePerShare *decimal.Decimal `json:"close_price_per_share,omitempty"`
	CloseFees          *decimal.Decimal `json:"close_fees,omitempty"`
}

// PositionRoll closes the target position and opens its successor in one
// atomic operation. The close outcome is always ROLLED.
type PositionRoll struct {
	Close RollClose      `json:"close"`
	Open  PositionCreate `json:"open"`
}

// RollClose carries the close half of a roll. Outcome is implied.
type RollClose struct {
	CloseDate          Date             `json:"close_date"`
	ClosePricePerShare *decimal.Decimal `json:"close_price_per_share,omitempty"`
	CloseFees          *decimal.Decimal `json:"close_fees,omitempty"`
}

// SortableColumns whitelists list sort keys before interpolation into ORDER BY.
var SortableColumns = map[string]bool{
	"open_date":         true,
	"expiration_date":   true,
	"ticker":            true,
	"strike_price":      true,
	"contracts":         true,
	"premium_per_share": true,
	"status":            true,
	"type":              true,
	"created_at":        true,
	"updated_at":        true,
}

// PositionFilter selects and orders positions for listing and export
type PositionFilter struct {
	Status          *PositionStatus
	Ticker          string
	Type            *PositionType
	AccountID       *uuid.UUID
	ExpirationStart *Date
	ExpirationEnd   *Date
	Sort            string
	Order           string
}
