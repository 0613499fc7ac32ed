package service

import (
	"context"
	"testing"

	"campus-wallet/internal/core/domain"
	"campus-wallet/internal/core/ports"
	"campus-wallet/internal/core/ports/mocks"
	"campus-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reconcilerTestDeps struct {
	svc         *ReconcilerServiceImpl
	paymentRepo *mocks.MockPaymentRepository
	walletRepo  *mocks.MockWalletRepository
	ledger      *mocks.MockLedgerService
	settings    *mocks.MockSettingProvider
	gateway     *mocks.MockPaymentGateway
	transactor  *mocks.MockDBTransactor
	notifier    *mocks.MockNotificationSink
	ctrl        *gomock.Controller
}

func setupReconcilerService(t *testing.T) *reconcilerTestDeps {
	ctrl := gomock.NewController(t)
	d := &reconcilerTestDeps{
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		ledger:      mocks.NewMockLedgerService(ctrl),
		settings:    mocks.NewMockSettingProvider(ctrl),
		gateway:     mocks.NewMockPaymentGateway(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		notifier:    mocks.NewMockNotificationSink(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewReconcilerService(
		d.paymentRepo, d.walletRepo, d.ledger, d.settings,
		d.gateway, d.transactor, d.notifier, zerolog.Nop(),
	)
	return d
}

func merchantWallet(id, ownerID uuid.UUID) *domain.Wallet {
	w := activeWallet(id, "0")
	w.OwnerID = ownerID
	w.OwnerType = domain.OwnerTypeMerchant
	return w
}

func pendingPayment(merchantID, walletID uuid.UUID) *domain.GatewayPayment {
	return &domain.GatewayPayment{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		WalletID:      walletID,
		Reference:     "TOPUP-abc123-1",
		FiatAmount:    decimal.RequireFromString("100.00"),
		CutcoinAmount: decimal.RequireFromString("1000.00"),
		Status:        domain.PaymentStatusPending,
	}
}

// ==================== InitiateTopUp Tests ====================

func TestReconcilerService_InitiateTopUp_Success(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByOwnerID(ctx, merchantID).Return(merchantWallet(walletID, merchantID), nil)
	// 100.00 fiat at rate 10 buys 1000.00 CUTcoin.
	d.settings.EXPECT().Decimal(ctx, ports.SettingExchangeRate).Return(decimal.RequireFromString("10"), nil)
	d.paymentRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.gateway.EXPECT().CreateCharge(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.ChargeRequest) (*ports.ChargeResponse, error) {
			assert.True(t, req.Amount.Equal(decimal.RequireFromString("100.00")))
			assert.NotEmpty(t, req.Reference)
			return &ports.ChargeResponse{
				ExternalReference: "gw-123",
				RedirectURL:       "https://gw/pay/123",
				PollURL:           "https://gw/poll/123",
			}, nil
		})
	d.paymentRepo.EXPECT().SetGatewayDetails(ctx, gomock.Any(), "gw-123", "https://gw/pay/123", "https://gw/poll/123").Return(nil)

	payment, err := d.svc.InitiateTopUp(ctx, merchantID, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, "1000.00", payment.CutcoinAmount.StringFixed(2))
	require.NotNil(t, payment.ExternalReference)
	assert.Equal(t, "gw-123", *payment.ExternalReference)
}

func TestReconcilerService_InitiateTopUp_StudentWalletRefused(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ownerID := uuid.New()
	wallet := activeWallet(uuid.New(), "0")
	wallet.OwnerType = domain.OwnerTypeStudent

	d.walletRepo.EXPECT().GetByOwnerID(ctx, ownerID).Return(wallet, nil)

	_, err := d.svc.InitiateTopUp(ctx, ownerID, decimal.RequireFromString("100.00"))
	assertAppError(t, err, "PAY_002")
}

func TestReconcilerService_InitiateTopUp_GatewayDownKeepsPendingRow(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.walletRepo.EXPECT().GetByOwnerID(ctx, merchantID).Return(merchantWallet(uuid.New(), merchantID), nil)
	d.settings.EXPECT().Decimal(ctx, ports.SettingExchangeRate).Return(decimal.RequireFromString("10"), nil)
	// The row is persisted before the gateway call, so a timeout leaves a
	// reconcilable PENDING payment behind.
	d.paymentRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.gateway.EXPECT().CreateCharge(ctx, gomock.Any()).Return(nil, apperror.ErrGatewayUnavailable(assert.AnError))

	_, err := d.svc.InitiateTopUp(ctx, merchantID, decimal.RequireFromString("100.00"))
	assertAppError(t, err, "GW_001")
}

func TestReconcilerService_InitiateTopUp_InvalidAmount(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.InitiateTopUp(context.Background(), uuid.New(), decimal.Zero)
	assertAppError(t, err, "PAY_002")
}

// ==================== Reconcile Tests ====================

func TestReconcilerService_Reconcile_PaidCreditsOnce(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	merchantID := uuid.New()
	walletID := uuid.New()
	p := pendingPayment(merchantID, walletID)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, p.Reference).Return(p, nil)
	d.gateway.EXPECT().GetStatus(ctx, p.Reference).Return(ports.ChargeStatusPaid, nil)
	d.ledger.EXPECT().CreditInTx(ctx, tx, ports.EntryParams{
		WalletID:  walletID,
		Amount:    p.CutcoinAmount,
		Reference: p.Reference,
		Kind:      domain.EntryKindPayment,
		Fee:       decimal.Zero,
	}).Return(&domain.LedgerEntry{}, nil)
	d.paymentRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)
	d.notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	got, err := d.svc.Reconcile(ctx, p.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
}

func TestReconcilerService_Reconcile_TerminalIsNoop(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	p := pendingPayment(uuid.New(), uuid.New())
	p.Status = domain.PaymentStatusCompleted

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, p.Reference).Return(p, nil)
	// No gateway call, no credit: a second reconcile after completion must
	// not double-credit.

	got, err := d.svc.Reconcile(ctx, p.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
}

func TestReconcilerService_Reconcile_FailedTransitions(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	p := pendingPayment(uuid.New(), uuid.New())

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, p.Reference).Return(p, nil)
	d.gateway.EXPECT().GetStatus(ctx, p.Reference).Return(ports.ChargeStatusFailed, nil)
	d.paymentRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)
	// No credit, no completion event.

	got, err := d.svc.Reconcile(ctx, p.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, got.Status)
}

func TestReconcilerService_Reconcile_StillPendingLeavesRowAlone(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	p := pendingPayment(uuid.New(), uuid.New())

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, p.Reference).Return(p, nil)
	d.gateway.EXPECT().GetStatus(ctx, p.Reference).Return(ports.ChargeStatusPending, nil)

	got, err := d.svc.Reconcile(ctx, p.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.Status)
}

func TestReconcilerService_Reconcile_GatewayDownStaysPending(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	p := pendingPayment(uuid.New(), uuid.New())

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, p.Reference).Return(p, nil)
	// A poll timeout is transient: the payment is never marked failed for it.
	d.gateway.EXPECT().GetStatus(ctx, p.Reference).Return(ports.ChargeStatus(""), apperror.ErrGatewayUnavailable(assert.AnError))

	_, err := d.svc.Reconcile(ctx, p.Reference)
	assertAppError(t, err, "GW_001")
}

func TestReconcilerService_Reconcile_UnknownReference(t *testing.T) {
	d := setupReconcilerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "TOPUP-missing").Return(nil, nil)

	_, err := d.svc.Reconcile(ctx, "TOPUP-missing")
	assertAppError(t, err, "PAY_004")
}
