package models

import (
	"time"

	"github.com/google/uuid"
)

// Broker constants
type Broker string

const (
	BrokerRobinhood Broker = "robinhood"
	BrokerMerrill   Broker = "merrill"
	BrokerOther     Broker = "other"
)

// Valid reports whether b is a known broker.
func (b Broker) Valid() bool {
	switch b {
	case BrokerRobinhood, BrokerMerrill, BrokerOther:
		return true
	}
	return false
}

// Account represents a brokerage account owned by one user
type Account struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Broker       Broker    `json:"broker"`
	TaxTreatment string    `json:"tax_treatment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccountCreate is the payload for creating an account
type AccountCreate struct {
	Name         string `json:"name"`
	Broker       Broker `json:"broker"`
	TaxTreatment string `json:"tax_treatment,omitempty"`
}

// AccountUpdate is a partial update; nil fields are left untouched
type AccountUpdate struct {
	Name         *string `json:"name,omitempty"`
	Broker       *Broker `json:"broker,omitempty"`
	TaxTreatment *string `json:"tax_treatment,omitempty"`
}
