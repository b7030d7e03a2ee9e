// Package limits implements the windowed transfer-limit checks and the usage
// bookkeeping that backs them.
package limits

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/fundflow/internal/application/dtos"
	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// Defaults are the limits assigned to a user who has no ledger yet.
type Defaults struct {
	Daily   valueobjects.Money
	Monthly valueobjects.Money
}

// Service owns the per-user limit ledgers.
//
// Window resets are persisted when observed, independent of whether the
// surrounding transfer ultimately succeeds: a reset reflects the passage of
// time, not the outcome of one transfer.
type Service struct {
	ledgers  ports.LimitRepository
	cache    ports.LimitCache
	defaults Defaults
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates the limit service. now defaults to time.Now.
func NewService(
	ledgers ports.LimitRepository,
	cache ports.LimitCache,
	defaults Defaults,
	logger *slog.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledgers:  ledgers,
		cache:    cache,
		defaults: defaults,
		logger:   logger,
		now:      now,
	}
}

// loadLedger fetches the user's ledger, creating one with the configured
// defaults on first use, and persists any lapsed window resets.
func (s *Service) loadLedger(ctx context.Context, userID uuid.UUID) (*entities.LimitLedger, error) {
	ledger, err := s.ledgers.FindByUserID(ctx, userID)
	if err != nil {
		if !domainErrors.IsNotFound(err) {
			return nil, err
		}
		ledger, err = entities.NewLimitLedger(userID, s.defaults.Daily, s.defaults.Monthly, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.ledgers.Save(ctx, ledger); err != nil {
			return nil, err
		}
		return ledger, nil
	}

	if ledger.ApplyResets(s.now()) {
		if err := s.ledgers.Save(ctx, ledger); err != nil {
			return nil, err
		}
		s.invalidateUsage(ctx, userID)
	}
	return ledger, nil
}

// CheckAndProject verifies that adding amount keeps the user inside both
// windows. Returns a limit-exceeded error naming the violated window.
func (s *Service) CheckAndProject(ctx context.Context, userID uuid.UUID, amount valueobjects.Money) error {
	ledger, err := s.loadLedger(ctx, userID)
	if err != nil {
		return err
	}
	return ledger.Project(amount)
}

// CommitUsage adds amount to both windows and persists the ledger.
func (s *Service) CommitUsage(ctx context.Context, userID uuid.UUID, amount valueobjects.Money) error {
	ledger, err := s.loadLedger(ctx, userID)
	if err != nil {
		return err
	}
	if err := ledger.CommitUsage(amount, s.now()); err != nil {
		return err
	}
	if err := s.ledgers.Save(ctx, ledger); err != nil {
		return err
	}
	s.invalidateUsage(ctx, userID)
	return nil
}

// ReleaseUsage subtracts amount from both windows (compensation after a
// failed transfer). Usage is floored at zero, so a release that lands after
// a window reset cannot underflow.
func (s *Service) ReleaseUsage(ctx context.Context, userID uuid.UUID, amount valueobjects.Money) error {
	ledger, err := s.loadLedger(ctx, userID)
	if err != nil {
		return err
	}
	if err := ledger.ReleaseUsage(amount, s.now()); err != nil {
		return err
	}
	if err := s.ledgers.Save(ctx, ledger); err != nil {
		return err
	}
	s.invalidateUsage(ctx, userID)
	return nil
}

// GetLimits returns the user's limits and current-window usage, refreshing
// the cached counters on the way out.
func (s *Service) GetLimits(ctx context.Context, userID uuid.UUID) (*dtos.TransferLimitsDTO, error) {
	ledger, err := s.loadLedger(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetUsage(ctx, userID, ledger.DailyUsed().Cents(), ledger.MonthlyUsed().Cents()); err != nil {
			s.logger.WarnContext(ctx, "limit usage cache write failed",
				slog.String("userId", userID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return dtos.MapLimitsToDTO(ledger), nil
}

func (s *Service) invalidateUsage(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "limit usage cache invalidation failed",
			slog.String("userId", userID.String()),
			slog.String("error", err.Error()),
		)
	}
}
