// Package entities - LimitLedger tracks windowed transfer usage per user.
package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// LimitLedger is the per-user record of daily/monthly transfer limits and the
// usage accumulated inside the current windows. One ledger per user.
//
// Invariants immediately after any committed transfer:
//   - dailyUsed  <= dailyLimit
//   - monthlyUsed <= monthlyLimit
//
// A read that observes lastDailyReset before today must logically zero
// dailyUsed before answering; same for the month.
type LimitLedger struct {
	id     uuid.UUID
	userID uuid.UUID

	dailyLimit   valueobjects.Money
	monthlyLimit valueobjects.Money
	dailyUsed    valueobjects.Money
	monthlyUsed  valueobjects.Money

	lastDailyReset   time.Time // Date precision
	lastMonthlyReset time.Time

	createdAt time.Time
	updatedAt time.Time
}

// NewLimitLedger creates a ledger with the given limits and zero usage.
func NewLimitLedger(userID uuid.UUID, dailyLimit, monthlyLimit valueobjects.Money, now time.Time) (*LimitLedger, error) {
	if !dailyLimit.Currency().Equals(monthlyLimit.Currency()) {
		return nil, errors.NewInvalidRequest("limit_currency_mismatch",
			"daily and monthly limits must use the same currency")
	}

	currency := dailyLimit.Currency()
	return &LimitLedger{
		id:               uuid.New(),
		userID:           userID,
		dailyLimit:       dailyLimit,
		monthlyLimit:     monthlyLimit,
		dailyUsed:        valueobjects.Zero(currency),
		monthlyUsed:      valueobjects.Zero(currency),
		lastDailyReset:   DateOf(now),
		lastMonthlyReset: MonthOf(now),
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstructLimitLedger hydrates a ledger from stored data.
func ReconstructLimitLedger(
	id, userID uuid.UUID,
	dailyLimit, monthlyLimit, dailyUsed, monthlyUsed valueobjects.Money,
	lastDailyReset, lastMonthlyReset time.Time,
	createdAt, updatedAt time.Time,
) *LimitLedger {
	return &LimitLedger{
		id:               id,
		userID:           userID,
		dailyLimit:       dailyLimit,
		monthlyLimit:     monthlyLimit,
		dailyUsed:        dailyUsed,
		monthlyUsed:      monthlyUsed,
		lastDailyReset:   lastDailyReset,
		lastMonthlyReset: lastMonthlyReset,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// Getters

func (l *LimitLedger) ID() uuid.UUID                      { return l.id }
func (l *LimitLedger) UserID() uuid.UUID                  { return l.userID }
func (l *LimitLedger) DailyLimit() valueobjects.Money     { return l.dailyLimit }
func (l *LimitLedger) MonthlyLimit() valueobjects.Money   { return l.monthlyLimit }
func (l *LimitLedger) DailyUsed() valueobjects.Money      { return l.dailyUsed }
func (l *LimitLedger) MonthlyUsed() valueobjects.Money    { return l.monthlyUsed }
func (l *LimitLedger) LastDailyReset() time.Time          { return l.lastDailyReset }
func (l *LimitLedger) LastMonthlyReset() time.Time        { return l.lastMonthlyReset }
func (l *LimitLedger) CreatedAt() time.Time               { return l.createdAt }
func (l *LimitLedger) UpdatedAt() time.Time               { return l.updatedAt }

// DailyRemaining returns the unused portion of the daily window.
func (l *LimitLedger) DailyRemaining() valueobjects.Money {
	remaining, err := l.dailyLimit.Subtract(l.dailyUsed)
	if err != nil {
		return valueobjects.Zero(l.dailyLimit.Currency())
	}
	return remaining
}

// MonthlyRemaining returns the unused portion of the monthly window.
func (l *LimitLedger) MonthlyRemaining() valueobjects.Money {
	remaining, err := l.monthlyLimit.Subtract(l.monthlyUsed)
	if err != nil {
		return valueobjects.Zero(l.monthlyLimit.Currency())
	}
	return remaining
}

// ApplyResets zeroes usage for windows whose boundary has passed.
// Returns true when anything changed and must be persisted.
func (l *LimitLedger) ApplyResets(now time.Time) bool {
	changed := false

	today := DateOf(now)
	if l.lastDailyReset.Before(today) {
		l.dailyUsed = valueobjects.Zero(l.dailyLimit.Currency())
		l.lastDailyReset = today
		changed = true
	}

	month := MonthOf(now)
	if l.lastMonthlyReset.Before(month) {
		l.monthlyUsed = valueobjects.Zero(l.monthlyLimit.Currency())
		l.lastMonthlyReset = month
		changed = true
	}

	if changed {
		l.updatedAt = now
	}
	return changed
}

// Project checks whether adding amount would stay inside both windows.
func (l *LimitLedger) Project(amount valueobjects.Money) error {
	projectedDaily, err := l.dailyUsed.Add(amount)
	if err != nil {
		return err
	}
	over, err := projectedDaily.GreaterThan(l.dailyLimit)
	if err != nil {
		return err
	}
	if over {
		return errors.NewLimitExceeded("daily",
			"daily used "+l.dailyUsed.Decimal()+" + "+amount.Decimal()+" exceeds "+l.dailyLimit.Decimal())
	}

	projectedMonthly, err := l.monthlyUsed.Add(amount)
	if err != nil {
		return err
	}
	over, err = projectedMonthly.GreaterThan(l.monthlyLimit)
	if err != nil {
		return err
	}
	if over {
		return errors.NewLimitExceeded("monthly",
			"monthly used "+l.monthlyUsed.Decimal()+" + "+amount.Decimal()+" exceeds "+l.monthlyLimit.Decimal())
	}

	return nil
}

// CommitUsage increments both windows by amount.
func (l *LimitLedger) CommitUsage(amount valueobjects.Money, now time.Time) error {
	newDaily, err := l.dailyUsed.Add(amount)
	if err != nil {
		return err
	}
	newMonthly, err := l.monthlyUsed.Add(amount)
	if err != nil {
		return err
	}

	l.dailyUsed = newDaily
	l.monthlyUsed = newMonthly
	l.updatedAt = now
	return nil
}

// ReleaseUsage decrements both windows by amount (compensation path).
// Usage never goes below zero: a window reset between commit and release
// would otherwise underflow.
func (l *LimitLedger) ReleaseUsage(amount valueobjects.Money, now time.Time) error {
	newDaily, err := l.usageFloor(l.dailyUsed, amount)
	if err != nil {
		return err
	}
	newMonthly, err := l.usageFloor(l.monthlyUsed, amount)
	if err != nil {
		return err
	}

	l.dailyUsed = newDaily
	l.monthlyUsed = newMonthly
	l.updatedAt = now
	return nil
}

func (l *LimitLedger) usageFloor(used, amount valueobjects.Money) (valueobjects.Money, error) {
	less, err := used.LessThan(amount)
	if err != nil {
		return used, err
	}
	if less {
		return valueobjects.Zero(used.Currency()), nil
	}
	return used.Subtract(amount)
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthOf truncates a timestamp to the first day of its month in UTC.
func MonthOf(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
