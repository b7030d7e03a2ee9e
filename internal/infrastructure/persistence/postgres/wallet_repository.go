// Package postgres - WalletRepository implementation.
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
var _ ports.WalletRepository = (*WalletRepository)(nil)

// WalletRepository implements ports.WalletRepository.
//
// Storage notes:
// - Money is stored as BIGINT cents
// - Currency is stored as VARCHAR
// - Balance mutations go through AdjustBalance: the delta is applied in SQL
//   (`balance = balance + $2`), never read-modify-write in Go
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// getQuerier returns the transaction from the context, or the pool.
func (r *WalletRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Save inserts a new wallet.
func (r *WalletRepository) Save(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO wallets (
			id, user_id, name, currency, balance, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.Exec(ctx, query,
		wallet.ID(),
		wallet.UserID(),
		wallet.Name(),
		wallet.Currency().Code(),
		wallet.Balance().Cents(),
		wallet.IsActive(),
		wallet.CreatedAt(),
		wallet.UpdatedAt(),
	)

	if err != nil {
		if isUniqueViolation(err, "") {
			return domainErrors.NewConflict(
				fmt.Sprintf("wallet %s already exists", wallet.ID()))
		}
		return fmt.Errorf("failed to insert wallet: %w", err)
	}

	return nil
}

// FindByID loads a wallet by ID.
func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, user_id, name, currency, balance, active, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`

	return r.scanWallet(q.QueryRow(ctx, query, id))
}

// AdjustBalance applies an expression update and returns the balances before
// and after. The WHERE guard keeps the committed balance non-negative: a debit
// that would overdraw affects no row.
func (r *WalletRepository) AdjustBalance(ctx context.Context, id uuid.UUID, deltaCents int64) (valueobjects.Money, valueobjects.Money, error) {
	q := r.getQuerier(ctx)

	query := `
		UPDATE wallets
		SET balance = balance + $2, updated_at = now()
		WHERE id = $1 AND active AND balance + $2 >= 0
		RETURNING balance, currency
	`

	var (
		afterCents   int64
		currencyCode string
	)
	err := q.QueryRow(ctx, query, id, deltaCents).Scan(&afterCents, &currencyCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return valueobjects.Money{}, valueobjects.Money{}, r.classifyAdjustMiss(ctx, q, id)
		}
		if isCheckViolation(err) {
			return valueobjects.Money{}, valueobjects.Money{}, domainErrors.NewInsufficientBalance(id.String())
		}
		return valueobjects.Money{}, valueobjects.Money{}, fmt.Errorf("failed to adjust balance: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return valueobjects.Money{}, valueobjects.Money{}, fmt.Errorf("invalid currency in database: %w", err)
	}

	after, err := valueobjects.NewMoneyFromCents(afterCents, currency)
	if err != nil {
		return valueobjects.Money{}, valueobjects.Money{}, fmt.Errorf("failed to convert balance: %w", err)
	}

	before, err := valueobjects.NewMoneyFromCents(afterCents-deltaCents, currency)
	if err != nil {
		return valueobjects.Money{}, valueobjects.Money{}, fmt.Errorf("failed to convert balance: %w", err)
	}

	return before, after, nil
}

// classifyAdjustMiss distinguishes why the guarded UPDATE touched no row:
// a missing or inactive wallet is not-found, an overdraw is
// insufficient-balance.
func (r *WalletRepository) classifyAdjustMiss(ctx context.Context, q querier, id uuid.UUID) error {
	var active bool
	err := q.QueryRow(ctx, `SELECT active FROM wallets WHERE id = $1`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainErrors.NewNotFound(fmt.Sprintf("wallet %s not found", id))
		}
		return fmt.Errorf("failed to classify balance adjustment: %w", err)
	}

	if !active {
		return domainErrors.NewNotFound(fmt.Sprintf("wallet %s is not active", id))
	}

	return domainErrors.NewInsufficientBalance(id.String())
}

// SetBalance writes an absolute balance.
func (r *WalletRepository) SetBalance(ctx context.Context, id uuid.UUID, balanceCents int64) error {
	q := r.getQuerier(ctx)

	query := `UPDATE wallets SET balance = $2, updated_at = now() WHERE id = $1`

	result, err := q.Exec(ctx, query, id, balanceCents)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domainErrors.NewNotFound(fmt.Sprintf("wallet %s not found", id))
	}

	return nil
}

// scanWallet scans a single row into a Wallet entity.
func (r *WalletRepository) scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var (
		id, userID           uuid.UUID
		name, currencyCode   string
		balanceCents         int64
		active               bool
		createdAt, updatedAt time.Time
	)

	err := row.Scan(
		&id,
		&userID,
		&name,
		&currencyCode,
		&balanceCents,
		&active,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.NewNotFound("wallet not found")
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	currency, err := valueobjects.NewCurrency(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency in database: %w", err)
	}

	balance, err := valueobjects.NewMoneyFromCents(balanceCents, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert balance: %w", err)
	}

	return entities.ReconstructWallet(
		id,
		userID,
		name,
		currency,
		balance,
		active,
		createdAt,
		updatedAt,
	), nil
}
