package service

import (
	"context"
	"encoding/json"
	"testing"

	"campus-wallet/internal/core/domain"
	"campus-wallet/internal/core/ports"
	"campus-wallet/internal/core/ports/mocks"
	"campus-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc        *LedgerServiceImpl
	walletRepo *mocks.MockWalletRepository
	entryRepo  *mocks.MockEntryRepository
	idempCache *mocks.MockIdempotencyCache
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		entryRepo:  mocks.NewMockEntryRepository(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewLedgerService(d.walletRepo, d.entryRepo, d.idempCache, d.transactor, zerolog.Nop())
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok, "expected *apperror.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

// decimalEq matches a decimal.Decimal by value. gomock.Eq relies on
// reflect.DeepEqual, which can reject equal decimals whose internal big.Int
// representations differ (e.g. a computed zero vs a parsed "0.00").
func decimalEq(s string) gomock.Matcher {
	want := decimal.RequireFromString(s)
	return gomock.Cond(func(x decimal.Decimal) bool { return x.Equal(want) })
}

func activeWallet(id uuid.UUID, balance string) *domain.Wallet {
	return &domain.Wallet{
		ID:       id,
		OwnerID:  uuid.New(),
		Balance:  decimal.RequireFromString(balance),
		Currency: domain.DefaultCurrency,
		Active:   true,
	}
}

// ==================== Credit Tests ====================

func TestLedgerService_Credit_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "REF-1").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "REF-1").Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(activeWallet(walletID, "100.00"), nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decimal.RequireFromString("150.00")).Return(nil)
	d.entryRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "REF-1", gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.Credit(ctx, walletID, decimal.RequireFromString("50.00"), "REF-1", domain.EntryKindDeposit)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.EntryStatusCompleted, entry.Status)
	assert.Equal(t, walletID, *entry.ReceiverWalletID)
	assert.Nil(t, entry.SenderWalletID)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("50.00")))
}

func TestLedgerService_Credit_InvalidAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Credit(context.Background(), uuid.New(), decimal.Zero, "REF-1", domain.EntryKindDeposit)
	assertAppError(t, err, "PAY_002")

	_, err = d.svc.Credit(context.Background(), uuid.New(), decimal.RequireFromString("-5"), "REF-1", domain.EntryKindDeposit)
	assertAppError(t, err, "PAY_002")
}

func TestLedgerService_Credit_CachedReplay(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	stored := &domain.LedgerEntry{
		ID:               uuid.New(),
		ReceiverWalletID: &walletID,
		Amount:           decimal.RequireFromString("50.00"),
		Kind:             domain.EntryKindDeposit,
		Status:           domain.EntryStatusCompleted,
		Reference:        "REF-1",
	}
	cached, _ := json.Marshal(stored)

	// Redis hit: no transaction, no balance change.
	d.idempCache.EXPECT().Get(ctx, "REF-1").Return(cached, nil)

	entry, err := d.svc.Credit(ctx, walletID, decimal.RequireFromString("50.00"), "REF-1", domain.EntryKindDeposit)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, entry.ID)
}

func TestLedgerService_Credit_DBReplay(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}
	stored := &domain.LedgerEntry{
		ID:        uuid.New(),
		Reference: "REF-1",
		Status:    domain.EntryStatusCompleted,
	}

	// Redis miss, but the reference row already exists under lock.
	d.idempCache.EXPECT().Get(ctx, "REF-1").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "REF-1").Return(stored, nil)
	d.idempCache.EXPECT().Set(ctx, "REF-1", gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.Credit(ctx, walletID, decimal.RequireFromString("50.00"), "REF-1", domain.EntryKindDeposit)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, entry.ID)
}

func TestLedgerService_Credit_RedisDownFallsThrough(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	// A broken cache degrades to the DB path, never fails the operation.
	d.idempCache.EXPECT().Get(ctx, "REF-1").Return(nil, assert.AnError)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "REF-1").Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(activeWallet(walletID, "0"), nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, gomock.Any()).Return(nil)
	d.entryRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "REF-1", gomock.Any(), idempotencyTTL).Return(assert.AnError)

	_, err := d.svc.Credit(ctx, walletID, decimal.RequireFromString("10.00"), "REF-1", domain.EntryKindDeposit)
	require.NoError(t, err)
}

func TestLedgerService_Credit_WalletNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "REF-1").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "REF-1").Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(nil, nil)

	_, err := d.svc.Credit(ctx, walletID, decimal.RequireFromString("10.00"), "REF-1", domain.EntryKindDeposit)
	assertAppError(t, err, "PAY_004")
}

func TestLedgerService_Credit_WalletInactive(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}
	wallet := activeWallet(walletID, "100.00")
	wallet.Active = false

	d.idempCache.EXPECT().Get(ctx, "REF-1").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "REF-1").Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(wallet, nil)

	_, err := d.svc.Credit(ctx, walletID, decimal.RequireFromString("10.00"), "REF-1", domain.EntryKindDeposit)
	assertAppError(t, err, "PAY_005")
}

// ==================== Debit Tests ====================

func TestLedgerService_Debit_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "REF-2").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "REF-2").Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(activeWallet(walletID, "50.00"), nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decimalEq("0.00")).Return(nil)
	d.entryRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "REF-2", gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.Debit(ctx, walletID, decimal.RequireFromString("50.00"), "REF-2", domain.EntryKindWithdrawal)
	require.NoError(t, err)
	assert.Equal(t, walletID, *entry.SenderWalletID)
	assert.Nil(t, entry.ReceiverWalletID)
}

func TestLedgerService_Debit_InsufficientFunds(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "REF-2").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "REF-2").Return(nil, nil)
	// Balance covers 50.00 but not 50.01.
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(activeWallet(walletID, "50.00"), nil)

	_, err := d.svc.Debit(ctx, walletID, decimal.RequireFromString("50.01"), "REF-2", domain.EntryKindWithdrawal)
	assertAppError(t, err, "PAY_001")
}

func TestLedgerService_Debit_ExactBalanceAllowed(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "REF-3").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "REF-3").Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(activeWallet(walletID, "50.00"), nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, decimalEq("0.00")).Return(nil)
	d.entryRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "REF-3", gomock.Any(), idempotencyTTL).Return(nil)

	_, err := d.svc.Debit(ctx, walletID, decimal.RequireFromString("50.00"), "REF-3", domain.EntryKindWithdrawal)
	require.NoError(t, err)
}

// ==================== Transfer Tests ====================

func TestLedgerService_Transfer_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	tx := &mockTx{}

	sender := activeWallet(fromID, "1100.00")
	receiver := activeWallet(toID, "0.00")

	d.idempCache.EXPECT().Get(ctx, "TRF-1").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "TRF-1").Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, fromID).Return(sender, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, toID).Return(receiver, nil)
	// Sender pays amount + fee, receiver gets amount only.
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, fromID, decimal.RequireFromString("95.00")).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, toID, decimal.RequireFromString("1000.00")).Return(nil)
	d.entryRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "TRF-1", gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.Transfer(ctx, fromID, toID, decimal.RequireFromString("1000.00"), "TRF-1", decimal.RequireFromString("5.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindTransfer, entry.Kind)
	assert.Equal(t, fromID, *entry.SenderWalletID)
	assert.Equal(t, toID, *entry.ReceiverWalletID)
	assert.True(t, entry.Fee.Equal(decimal.RequireFromString("5.00")))
}

func TestLedgerService_Transfer_InsufficientForAmountPlusFee(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	tx := &mockTx{}

	// 1000.00 covers the amount but not amount + fee.
	sender := activeWallet(fromID, "1000.00")
	receiver := activeWallet(toID, "0.00")

	d.idempCache.EXPECT().Get(ctx, "TRF-2").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "TRF-2").Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, fromID).Return(sender, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, toID).Return(receiver, nil)

	_, err := d.svc.Transfer(ctx, fromID, toID, decimal.RequireFromString("1000.00"), "TRF-2", decimal.RequireFromString("5.00"))
	assertAppError(t, err, "PAY_001")
}

func TestLedgerService_Transfer_IdempotentReplay(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	tx := &mockTx{}
	stored := &domain.LedgerEntry{ID: uuid.New(), Reference: "TRF-3", Kind: domain.EntryKindTransfer}

	d.idempCache.EXPECT().Get(ctx, "TRF-3").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "TRF-3").Return(stored, nil)

	entry, err := d.svc.Transfer(ctx, fromID, toID, decimal.RequireFromString("10.00"), "TRF-3", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, entry.ID)
}

// ==================== GetBalance / ListEntries Tests ====================

func TestLedgerService_GetBalance(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(activeWallet(walletID, "42.50"), nil)

	balance, currency, err := d.svc.GetBalance(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("42.50")))
	assert.Equal(t, domain.DefaultCurrency, currency)
}

func TestLedgerService_GetBalance_NotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	d.walletRepo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, nil)

	_, _, err := d.svc.GetBalance(context.Background(), uuid.New())
	assertAppError(t, err, "PAY_004")
}

func TestLedgerService_ListEntries_ClampsPagination(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.entryRepo.EXPECT().ListByWallet(ctx, ports.EntryListParams{
		WalletID: walletID,
		Page:     1,
		PageSize: defaultPageSize,
	}).Return([]domain.LedgerEntry{}, int64(0), nil)

	_, _, err := d.svc.ListEntries(ctx, walletID, 0, 5000)
	require.NoError(t, err)
}
