package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"campus-wallet/internal/core/domain"
	"campus-wallet/internal/core/ports"
	"campus-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.OwnerID == ownerID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Entry Repo ---

type inMemoryEntryRepo struct {
	mu      sync.RWMutex
	entries map[string]*domain.LedgerEntry // keyed by reference (unique)
}

func newInMemoryEntryRepo() *inMemoryEntryRepo {
	return &inMemoryEntryRepo{entries: make(map[string]*domain.LedgerEntry)}
}

func (r *inMemoryEntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Reference]; exists {
		// Same error shape the unique index on reference produces.
		return &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_reference_key"}
	}
	cp := *e
	r.entries[e.Reference] = &cp
	return nil
}

func (r *inMemoryEntryRepo) GetByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[reference]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryEntryRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.LedgerEntry, error) {
	return r.GetByReference(ctx, reference)
}

func (r *inMemoryEntryRepo) ListByWallet(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if touchesWallet(e, params.WalletID) {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryEntryRepo) SumCompletedByWallet(ctx context.Context, walletID uuid.UUID, kind domain.EntryKind, since time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range r.entries {
		if !touchesWallet(e, walletID) {
			continue
		}
		if e.Kind != kind || e.Status != domain.EntryStatusCompleted || e.CreatedAt.Before(since) {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

func touchesWallet(e *domain.LedgerEntry, walletID uuid.UUID) bool {
	if e.SenderWalletID != nil && *e.SenderWalletID == walletID {
		return true
	}
	return e.ReceiverWalletID != nil && *e.ReceiverWalletID == walletID
}

// --- In-Memory Settlement Repo ---

type inMemorySettlementRepo struct {
	mu          sync.RWMutex
	settlements map[string]*domain.MerchantSettlement // keyed by reference
}

func newInMemorySettlementRepo() *inMemorySettlementRepo {
	return &inMemorySettlementRepo{settlements: make(map[string]*domain.MerchantSettlement)}
}

func (r *inMemorySettlementRepo) Create(ctx context.Context, s *domain.MerchantSettlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.settlements[s.Reference]; exists {
		return fmt.Errorf("reference already exists")
	}
	cp := *s
	r.settlements[s.Reference] = &cp
	return nil
}

func (r *inMemorySettlementRepo) GetByReference(ctx context.Context, reference string) (*domain.MerchantSettlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settlements[reference]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySettlementRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.MerchantSettlement, error) {
	return r.GetByReference(ctx, reference)
}

func (r *inMemorySettlementRepo) Update(ctx context.Context, tx pgx.Tx, s *domain.MerchantSettlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.settlements[s.Reference]; !ok {
		return fmt.Errorf("settlement not found")
	}
	cp := *s
	cp.UpdatedAt = time.Now().UTC()
	r.settlements[s.Reference] = &cp
	return nil
}

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[string]*domain.GatewayPayment // keyed by reference
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[string]*domain.GatewayPayment)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, p *domain.GatewayPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.payments[p.Reference]; exists {
		return fmt.Errorf("reference already exists")
	}
	cp := *p
	r.payments[p.Reference] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByReference(ctx context.Context, reference string) (*domain.GatewayPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[reference]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.GatewayPayment, error) {
	return r.GetByReference(ctx, reference)
}

func (r *inMemoryPaymentRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.GatewayPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.Reference]; !ok {
		return fmt.Errorf("payment not found")
	}
	cp := *p
	cp.UpdatedAt = time.Now().UTC()
	r.payments[p.Reference] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) SetGatewayDetails(ctx context.Context, reference, externalRef, redirectURL, pollURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[reference]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	p.ExternalReference = &externalRef
	p.RedirectURL = &redirectURL
	p.PollURL = &pollURL
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Setting Provider ---

type inMemorySettings struct {
	mu     sync.RWMutex
	values map[string]decimal.Decimal
}

func newInMemorySettings(values map[string]string) *inMemorySettings {
	s := &inMemorySettings{values: make(map[string]decimal.Decimal)}
	for k, v := range values {
		s.values[k] = decimal.RequireFromString(v)
	}
	return s
}

func (s *inMemorySettings) Decimal(ctx context.Context, key string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("setting not found: %s", key)
	}
	return v, nil
}

func (s *inMemorySettings) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = decimal.RequireFromString(value)
}

// --- Fake Payment Gateway ---

type fakeGateway struct {
	mu      sync.Mutex
	status  map[string]ports.ChargeStatus
	fail    bool
	charges int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{status: make(map[string]ports.ChargeStatus)}
}

func (g *fakeGateway) CreateCharge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("gateway unreachable"))
	}
	g.charges++
	if _, ok := g.status[req.Reference]; !ok {
		g.status[req.Reference] = ports.ChargeStatusPending
	}
	return &ports.ChargeResponse{
		ExternalReference: "gw-" + req.Reference,
		RedirectURL:       "https://gateway.test/pay/" + req.Reference,
		PollURL:           "https://gateway.test/poll/" + req.Reference,
	}, nil
}

func (g *fakeGateway) GetStatus(ctx context.Context, reference string) (ports.ChargeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return "", apperror.ErrGatewayUnavailable(fmt.Errorf("gateway unreachable"))
	}
	status, ok := g.status[reference]
	if !ok {
		return ports.ChargeStatusPending, nil
	}
	return status, nil
}

func (g *fakeGateway) setStatus(reference string, status ports.ChargeStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[reference] = status
}

func (g *fakeGateway) VerifyCallback(payload []byte, signature string) bool {
	return signature == "test-signature"
}

// --- Serializing Transactor ---

// serializingTransactor emulates the row-lock serialization the real
// transactor gets from SELECT FOR UPDATE: one transaction at a time.
type serializingTransactor struct {
	mu sync.Mutex
}

func newSerializingTransactor() *serializingTransactor {
	return &serializingTransactor{}
}

func (t *serializingTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serializedTx{release: &t.mu}, nil
}

// serializedTx is a no-op pgx.Tx that holds the transactor lock until
// Commit or Rollback, whichever comes first.
type serializedTx struct {
	release *sync.Mutex
	once    sync.Once
}

func (t *serializedTx) done() {
	t.once.Do(func() { t.release.Unlock() })
}

func (t *serializedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serializedTx) Commit(ctx context.Context) error          { t.done(); return nil }
func (t *serializedTx) Rollback(ctx context.Context) error        { t.done(); return nil }
func (t *serializedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serializedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serializedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serializedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serializedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serializedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serializedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serializedTx) Conn() *pgx.Conn { return nil }
