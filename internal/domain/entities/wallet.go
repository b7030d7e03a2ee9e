// Package entities - Wallet is the core entity for managing user balances.
// It enforces business rules around balance operations and lifecycle.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// Wallet represents a user's balance-bearing wallet for a specific currency.
// A user can have multiple wallets.
//
// Entity Pattern:
// - Has identity (ID)
// - Enforces invariants (non-negative balance, currency consistency)
// - Rich behavior (not just data)
//
// The committed balance is never negative; mutation outside this entity goes
// through the locked, expression-based repository path.
type Wallet struct {
	id       uuid.UUID
	userID   uuid.UUID // Owner (aggregate boundary; the user entity lives elsewhere)
	name     string
	currency valueobjects.Currency
	balance  valueobjects.Money
	active   bool

	createdAt time.Time
	updatedAt time.Time
}

// NewWallet creates a new wallet for a user.
// Factory function with validation.
//
// Business Rules:
// - Currency must be supported
// - New wallets start active with zero balance
func NewWallet(userID uuid.UUID, name string, currency valueobjects.Currency) (*Wallet, error) {
	if currency.IsZero() {
		return nil, errors.ValidationError{
			Field:   "currency",
			Message: "currency is required",
		}
	}

	if name == "" {
		name = "default"
	}

	now := time.Now()
	return &Wallet{
		id:        uuid.New(),
		userID:    userID,
		name:      name,
		currency:  currency,
		balance:   valueobjects.Zero(currency),
		active:    true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructWallet reconstructs a Wallet from stored data.
// Used by repositories to hydrate entities from the database.
func ReconstructWallet(
	id, userID uuid.UUID,
	name string,
	currency valueobjects.Currency,
	balance valueobjects.Money,
	active bool,
	createdAt, updatedAt time.Time,
) *Wallet {
	return &Wallet{
		id:        id,
		userID:    userID,
		name:      name,
		currency:  currency,
		balance:   balance,
		active:    active,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// Getters

func (w *Wallet) ID() uuid.UUID {
	return w.id
}

func (w *Wallet) UserID() uuid.UUID {
	return w.userID
}

func (w *Wallet) Name() string {
	return w.name
}

func (w *Wallet) Currency() valueobjects.Currency {
	return w.currency
}

func (w *Wallet) Balance() valueobjects.Money {
	return w.balance
}

func (w *Wallet) IsActive() bool {
	return w.active
}

func (w *Wallet) CreatedAt() time.Time {
	return w.createdAt
}

func (w *Wallet) UpdatedAt() time.Time {
	return w.updatedAt
}

// Business Methods

// OwnedBy reports whether the wallet belongs to the given user.
func (w *Wallet) OwnedBy(userID uuid.UUID) bool {
	return w.userID == userID
}

// HasSufficientBalance checks if the wallet has enough balance.
func (w *Wallet) HasSufficientBalance(amount valueobjects.Money) (bool, error) {
	return w.balance.GreaterThanOrEqual(amount)
}

// Credit adds funds to the wallet.
//
// Business Rules:
// - Wallet must be active
// - Amount must be in the same currency
func (w *Wallet) Credit(amount valueobjects.Money) error {
	if !w.active {
		return errors.ErrWalletNotActive
	}

	if !w.currency.Equals(amount.Currency()) {
		return errors.NewCurrencyMismatch(w.currency.Code(), amount.Currency().Code())
	}

	newBalance, err := w.balance.Add(amount)
	if err != nil {
		return err
	}

	w.balance = newBalance
	w.updatedAt = time.Now()
	return nil
}

// Debit subtracts funds from the wallet.
//
// Business Rules:
// - Wallet must be active
// - Sufficient balance must be available
// - Currency must match
func (w *Wallet) Debit(amount valueobjects.Money) error {
	if !w.active {
		return errors.ErrWalletNotActive
	}

	if !w.currency.Equals(amount.Currency()) {
		return errors.NewCurrencyMismatch(w.currency.Code(), amount.Currency().Code())
	}

	hasSufficient, err := w.HasSufficientBalance(amount)
	if err != nil {
		return err
	}
	if !hasSufficient {
		return errors.NewInsufficientBalance(w.id.String())
	}

	newBalance, err := w.balance.Subtract(amount)
	if err != nil {
		return err
	}

	w.balance = newBalance
	w.updatedAt = time.Now()
	return nil
}

// SetBalance replaces the balance with an authoritative value read back from
// the store after an expression update.
func (w *Wallet) SetBalance(balance valueobjects.Money) error {
	if !w.currency.Equals(balance.Currency()) {
		return errors.NewCurrencyMismatch(w.currency.Code(), balance.Currency().Code())
	}
	w.balance = balance
	w.updatedAt = time.Now()
	return nil
}

// Deactivate soft-deletes the wallet.
func (w *Wallet) Deactivate() {
	w.active = false
	w.updatedAt = time.Now()
}
