package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/domain/entities"
	domainErrors "github.com/Haleralex/fundflow/internal/domain/errors"
	"github.com/Haleralex/fundflow/internal/domain/events"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
)

// ===== wallet repository =====

type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*entities.Wallet
	finds   int
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[uuid.UUID]*entities.Wallet)}
}

func (r *fakeWalletRepo) Save(ctx context.Context, w *entities.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.ID()] = w
	return nil
}

func (r *fakeWalletRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	w, ok := r.wallets[id]
	if !ok {
		return nil, domainErrors.NewNotFound("wallet not found")
	}
	return w, nil
}

func (r *fakeWalletRepo) AdjustBalance(ctx context.Context, id uuid.UUID, deltaCents int64) (valueobjects.Money, valueobjects.Money, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok || !w.IsActive() {
		return valueobjects.Money{}, valueobjects.Money{}, domainErrors.NewNotFound("wallet not found")
	}
	before := w.Balance()
	newCents := before.Cents() + deltaCents
	if newCents < 0 {
		return valueobjects.Money{}, valueobjects.Money{}, domainErrors.NewInsufficientBalance(id.String())
	}
	after, err := valueobjects.NewMoneyFromCents(newCents, w.Currency())
	if err != nil {
		return valueobjects.Money{}, valueobjects.Money{}, err
	}
	if err := w.SetBalance(after); err != nil {
		return valueobjects.Money{}, valueobjects.Money{}, err
	}
	return before, after, nil
}

func (r *fakeWalletRepo) SetBalance(ctx context.Context, id uuid.UUID, balanceCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return domainErrors.NewNotFound("wallet not found")
	}
	balance, err := valueobjects.NewMoneyFromCents(balanceCents, w.Currency())
	if err != nil {
		return err
	}
	return w.SetBalance(balance)
}

// ===== transaction repository =====

type fakeTransactionRepo struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*entities.Transaction
	byKey        map[string]uuid.UUID
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{
		transactions: make(map[uuid.UUID]*entities.Transaction),
		byKey:        make(map[string]uuid.UUID),
	}
}

func (r *fakeTransactionRepo) Save(ctx context.Context, tx *entities.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key := tx.IdempotencyKey(); key != "" {
		if _, exists := r.byKey[key]; exists {
			return domainErrors.NewConflict("idempotency key already used")
		}
		r.byKey[key] = tx.ID()
	}
	r.transactions[tx.ID()] = tx
	return nil
}

func (r *fakeTransactionRepo) Update(ctx context.Context, tx *entities.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[tx.ID()] = tx
	return nil
}

func (r *fakeTransactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return nil, domainErrors.NewNotFound("transaction not found")
	}
	return tx, nil
}

func (r *fakeTransactionRepo) FindByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, domainErrors.NewNotFound("transaction not found")
	}
	return r.transactions[id], nil
}

// ===== unit of work =====

type fakeUnitOfWork struct{}

func (u *fakeUnitOfWork) Execute(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// ===== lock manager =====

type fakeLockManager struct {
	mu       sync.Mutex
	held     map[uuid.UUID]string
	acquires int
	releases int
	failAll  bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[uuid.UUID]string)}
}

func (l *fakeLockManager) Acquire(ctx context.Context, walletID uuid.UUID, ttl, wait time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return "", domainErrors.NewLockTimeout("wallet:" + walletID.String())
	}
	if _, taken := l.held[walletID]; taken {
		return "", domainErrors.NewLockTimeout("wallet:" + walletID.String())
	}
	token := uuid.NewString()
	l.held[walletID] = token
	l.acquires++
	return token, nil
}

func (l *fakeLockManager) Release(ctx context.Context, walletID uuid.UUID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[walletID] == token {
		delete(l.held, walletID)
		l.releases++
	}
	return nil
}

// ===== balance cache =====

type fakeBalanceCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]ports.CachedBalance
}

func newFakeBalanceCache() *fakeBalanceCache {
	return &fakeBalanceCache{entries: make(map[uuid.UUID]ports.CachedBalance)}
}

func (c *fakeBalanceCache) Get(ctx context.Context, walletID uuid.UUID) (*ports.CachedBalance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[walletID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *fakeBalanceCache) CompareAndSwap(ctx context.Context, walletID uuid.UUID, expectedVersion int64, entry ports.CachedBalance) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.entries[walletID]
	var version int64
	if ok {
		version = current.Version
	}
	if version != expectedVersion {
		return false, nil
	}
	c.entries[walletID] = entry
	return true, nil
}

func (c *fakeBalanceCache) Put(ctx context.Context, walletID uuid.UUID, entry ports.CachedBalance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[walletID] = entry
	return nil
}

func (c *fakeBalanceCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, walletID)
	return nil
}

// ===== event publisher =====

type fakePublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, batch...)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// ===== helpers =====

func seedWallet(t *testing.T, repo *fakeWalletRepo, userID uuid.UUID, currency, balance string) *entities.Wallet {
	t.Helper()
	cur := valueobjects.MustNewCurrency(currency)
	w, err := entities.NewWallet(userID, "main", cur)
	require.NoError(t, err)
	money, err := valueobjects.NewMoney(balance, cur)
	require.NoError(t, err)
	require.NoError(t, w.SetBalance(money))
	require.NoError(t, repo.Save(context.Background(), w))
	return w
}
