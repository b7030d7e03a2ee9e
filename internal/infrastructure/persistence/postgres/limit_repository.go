// Package postgres - LimitRepository implementation.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.LimitRepository = (*LimitRepository)(nil)

// LimitRepository implements ports.LimitRepository.
//
// One row per user (UNIQUE on user_id); Save is an upsert so window resets
// and usage commits share a single code path.
type LimitRepository struct {
	pool *pgxpool.Pool
}

// NewLimitRepository creates a new LimitRepository.
func NewLimitRepository(pool *pgxpool.Pool) *LimitRepository {
	return &LimitRepository{pool: pool}
}

func (r *LimitRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Save upserts a ledger.
func (r *LimitRepository) Save(ctx context.Context, ledger *entities.LimitLedger) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO limit_ledgers (
			id, user_id, currency,
			daily_limit, monthly_limit, daily_used, monthly_used,
			last_daily_reset, last_monthly_reset,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			daily_limit = EXCLUDED.daily_limit,
			monthly_limit = EXCLUDED.monthly_limit,
			daily_used = EXCLUDED.daily_used,
			monthly_used = EXCLUDED.monthly_used,
			last_daily_reset = EXCLUDED.last_daily_reset,
			last_monthly_reset = EXCLUDED.last_monthly_reset,
			updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query,
		ledger.ID(),
		ledger.UserID(),
		ledger.DailyLimit().Currency().Code(),
		ledger.DailyLimit().Cents(),
		ledger.MonthlyLimit().Cents(),
		ledger.DailyUsed().Cents(),
		ledger.MonthlyUsed().Cents(),
		ledger.LastDailyReset(),
		ledger.LastMonthlyReset(),
		ledger.CreatedAt(),
		ledger.UpdatedAt(),
	)

	if err != nil {
		return fmt.Errorf("failed to save limit ledger: %w", err)
	}

	return nil
}

// FindByUserID loads the ledger for a user.
func (r *LimitRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.LimitLedger, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, user_id, currency,
			   daily_limit, monthly_limit, daily_used, monthly_used,
			   last_daily_reset, last_monthly_reset,
			   created_at, updated_at
		FROM limit_ledgers
		WHERE user_id = $1
	`

	var (
		id, uid                            uuid.UUID
		currencyCode                       string
		dailyLimitCents, monthlyLimitCents int64
		dailyUsedCents, monthlyUsedCents   int64
		lastDailyReset, lastMonthlyReset   time.Time
		createdAt, updatedAt               time.Time
	)

	err := q.QueryRow(ctx, query, userID).Scan(
		&id, &uid, &currencyCode,
		&dailyLimitCents, &monthlyLimitCents,
		&dailyUsedCents, &monthlyUsedCents,
		&lastDailyReset, &lastMonthlyReset,
		&createdAt, &updatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.NewNotFound(fmt.Sprintf("limit ledger for user %s not found", userID))
		}
		return nil, fmt.Errorf("failed to scan limit ledger: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}

	dailyLimit, err := valueobjects.NewMoneyFromCents(dailyLimitCents, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert daily limit: %w", err)
	}
	monthlyLimit, err := valueobjects.NewMoneyFromCents(monthlyLimitCents, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert monthly limit: %w", err)
	}
	dailyUsed, err := valueobjects.NewMoneyFromCents(dailyUsedCents, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert daily usage: %w", err)
	}
	monthlyUsed, err := valueobjects.NewMoneyFromCents(monthlyUsedCents, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert monthly usage: %w", err)
	}

	return entities.ReconstructLimitLedger(
		id, uid,
		dailyLimit, monthlyLimit, dailyUsed, monthlyUsed,
		lastDailyReset, lastMonthlyReset,
		createdAt, updatedAt,
	), nil
}
