// Package models - system data models
package models

import (
	"fmt"
	"time"
)

// AccountStateENUMType account state enum type
type AccountStateENUMType string

const (
	// AccountStateActive the account is active
	AccountStateActive AccountStateENUMType = "ACTIVE"
	// AccountStateLocked the account is locked
	AccountStateLocked AccountStateENUMType = "LOCKED"
)

// Account one user account of the vault
//
// Each account carries exactly one symmetric content key for its entire
// lifetime. The key material is stored wrapped under the service's primary
// RSA key pair; losing the plaintext key makes the account's content
// permanently unrecoverable.
type Account struct {
	// ID account ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// Email account email
	Email string `json:"email" gorm:"column:email;not null;unique" validate:"required,email"`

	// EncKeyMaterial the wrapped per-account symmetric content key
	EncKeyMaterial []byte `json:"enc_key_material" gorm:"column:enc_key_material;not null" validate:"required"`

	// State the account state
	State AccountStateENUMType `json:"state" gorm:"column:state;not null" validate:"required,account_state"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateNextState verify can transition to new state
func (a *Account) ValidateNextState(newState AccountStateENUMType) error {
	statesWithTransitions := map[AccountStateENUMType]map[AccountStateENUMType]bool{
		AccountStateActive: {
			AccountStateActive: true,
			AccountStateLocked: true,
		},
		AccountStateLocked: {
			AccountStateLocked: true,
			AccountStateActive: true,
		},
	}

	availableNextStates, ok := statesWithTransitions[a.State]
	if !ok {
		return fmt.Errorf("account can't transition out of state '%s'", a.State)
	}

	if _, ok := availableNextStates[newState]; !ok {
		return fmt.Errorf("account can't transition from '%s' to '%s'", a.State, newState)
	}

	return nil
}
