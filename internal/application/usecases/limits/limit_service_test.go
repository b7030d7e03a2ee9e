package limits

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

type fakeLimitRepo struct {
	ledgers map[uuid.UUID]*entities.LimitLedger
	saves   int
}

func newFakeLimitRepo() *fakeLimitRepo {
	return &fakeLimitRepo{ledgers: make(map[uuid.UUID]*entities.LimitLedger)}
}

func (r *fakeLimitRepo) Save(ctx context.Context, ledger *entities.LimitLedger) error {
	r.saves++
	r.ledgers[ledger.UserID()] = ledger
	return nil
}

func (r *fakeLimitRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.LimitLedger, error) {
	ledger, ok := r.ledgers[userID]
	if !ok {
		return nil, domainErrors.NewNotFound("limit ledger not found")
	}
	return ledger, nil
}

type fakeLimitCache struct {
	invalidations int
	setCalls      int
}

func (c *fakeLimitCache) GetUsage(ctx context.Context, userID uuid.UUID) (int64, int64, bool, error) {
	return 0, 0, false, nil
}

func (c *fakeLimitCache) SetUsage(ctx context.Context, userID uuid.UUID, daily, monthly int64) error {
	c.setCalls++
	return nil
}

func (c *fakeLimitCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	c.invalidations++
	return nil
}

func usd(t *testing.T, amount string) valueobjects.Money {
	t.Helper()
	m, err := valueobjects.NewMoney(amount, valueobjects.MustNewCurrency("USD"))
	require.NoError(t, err)
	return m
}

func newTestService(t *testing.T, repo *fakeLimitRepo, cache *fakeLimitCache, now time.Time) *Service {
	t.Helper()
	return NewService(repo, cache, Defaults{
		Daily:   usd(t, "10000.00"),
		Monthly: usd(t, "100000.00"),
	}, nil, func() time.Time { return now })
}

func TestService_CheckAndProject_CreatesLedgerWithDefaults(t *testing.T) {
	repo := newFakeLimitRepo()
	svc := newTestService(t, repo, &fakeLimitCache{}, time.Now())
	userID := uuid.New()

	err := svc.CheckAndProject(context.Background(), userID, usd(t, "100.00"))

	require.NoError(t, err)
	ledger, ok := repo.ledgers[userID]
	require.True(t, ok)
	assert.Equal(t, "10000.00", ledger.DailyLimit().Decimal())
	assert.Equal(t, "100000.00", ledger.MonthlyLimit().Decimal())
	assert.Equal(t, "0.00", ledger.DailyUsed().Decimal())
}

func TestService_CheckAndProject_RejectsOverDailyLimit(t *testing.T) {
	repo := newFakeLimitRepo()
	svc := newTestService(t, repo, &fakeLimitCache{}, time.Now())
	userID := uuid.New()

	require.NoError(t, svc.CommitUsage(context.Background(), userID, usd(t, "9950.00")))

	err := svc.CheckAndProject(context.Background(), userID, usd(t, "100.00"))
	require.Error(t, err)
	assert.Equal(t, domainErrors.KindLimitExceeded, domainErrors.KindOf(err))
	assert.Contains(t, err.Error(), "daily")
}

func TestService_CheckAndProject_ExactLimitPasses(t *testing.T) {
	repo := newFakeLimitRepo()
	svc := newTestService(t, repo, &fakeLimitCache{}, time.Now())
	userID := uuid.New()

	require.NoError(t, svc.CommitUsage(context.Background(), userID, usd(t, "9900.00")))

	// 9900 + 100 == 10000, inside the window.
	err := svc.CheckAndProject(context.Background(), userID, usd(t, "100.00"))
	assert.NoError(t, err)
}

func TestService_CommitUsage_IncrementsBothWindowsAndInvalidatesCache(t *testing.T) {
	repo := newFakeLimitRepo()
	cache := &fakeLimitCache{}
	svc := newTestService(t, repo, cache, time.Now())
	userID := uuid.New()

	require.NoError(t, svc.CommitUsage(context.Background(), userID, usd(t, "250.00")))

	ledger := repo.ledgers[userID]
	assert.Equal(t, "250.00", ledger.DailyUsed().Decimal())
	assert.Equal(t, "250.00", ledger.MonthlyUsed().Decimal())
	assert.GreaterOrEqual(t, cache.invalidations, 1)
}

func TestService_ReleaseUsage_FlooredAtZero(t *testing.T) {
	repo := newFakeLimitRepo()
	svc := newTestService(t, repo, &fakeLimitCache{}, time.Now())
	userID := uuid.New()

	require.NoError(t, svc.CommitUsage(context.Background(), userID, usd(t, "50.00")))
	require.NoError(t, svc.ReleaseUsage(context.Background(), userID, usd(t, "80.00")))

	ledger := repo.ledgers[userID]
	assert.Equal(t, "0.00", ledger.DailyUsed().Decimal())
	assert.Equal(t, "0.00", ledger.MonthlyUsed().Decimal())
}

func TestService_DailyWindowResetsAcrossMidnight(t *testing.T) {
	repo := newFakeLimitRepo()
	now := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, &fakeLimitCache{}, now)
	userID := uuid.New()

	require.NoError(t, svc.CommitUsage(context.Background(), userID, usd(t, "9000.00")))

	// Same month, next day: daily resets, monthly carries over.
	nextDay := time.Date(2026, 3, 16, 0, 30, 0, 0, time.UTC)
	svc2 := newTestService(t, repo, &fakeLimitCache{}, nextDay)

	err := svc2.CheckAndProject(context.Background(), userID, usd(t, "5000.00"))
	require.NoError(t, err)

	ledger := repo.ledgers[userID]
	assert.Equal(t, "0.00", ledger.DailyUsed().Decimal())
	assert.Equal(t, "9000.00", ledger.MonthlyUsed().Decimal())
	assert.Equal(t, entities.DateOf(nextDay), ledger.LastDailyReset())
}

func TestService_MonthlyWindowResets(t *testing.T) {
	repo := newFakeLimitRepo()
	march := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, &fakeLimitCache{}, march)
	userID := uuid.New()

	require.NoError(t, svc.CommitUsage(context.Background(), userID, usd(t, "90000.00")))

	april := time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC)
	svc2 := newTestService(t, repo, &fakeLimitCache{}, april)

	err := svc2.CheckAndProject(context.Background(), userID, usd(t, "50000.00"))
	require.NoError(t, err)

	ledger := repo.ledgers[userID]
	assert.Equal(t, "0.00", ledger.MonthlyUsed().Decimal())
	assert.Equal(t, entities.MonthOf(april), ledger.LastMonthlyReset())
}

func TestService_ResetIsPersistedOnRead(t *testing.T) {
	repo := newFakeLimitRepo()
	day1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, &fakeLimitCache{}, day1)
	userID := uuid.New()

	require.NoError(t, svc.CommitUsage(context.Background(), userID, usd(t, "100.00")))
	savesBefore := repo.saves

	day2 := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	svc2 := newTestService(t, repo, &fakeLimitCache{}, day2)

	// A pure read that observes a lapsed window persists the reset even
	// though no transfer committed.
	_, err := svc2.GetLimits(context.Background(), userID)
	require.NoError(t, err)
	assert.Greater(t, repo.saves, savesBefore)
}

func TestService_GetLimits_ReportsRemaining(t *testing.T) {
	repo := newFakeLimitRepo()
	cache := &fakeLimitCache{}
	svc := newTestService(t, repo, cache, time.Now())
	userID := uuid.New()

	require.NoError(t, svc.CommitUsage(context.Background(), userID, usd(t, "1500.00")))

	limits, err := svc.GetLimits(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "10000.00", limits.DailyLimit)
	assert.Equal(t, "1500.00", limits.DailyUsed)
	assert.Equal(t, "8500.00", limits.DailyRemaining)
	assert.Equal(t, "98500.00", limits.MonthlyRemaining)
	assert.GreaterOrEqual(t, cache.setCalls, 1)
}
