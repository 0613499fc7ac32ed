package service

import (
	"context"
	"fmt"
	"time"

	"campus-wallet/internal/core/domain"
	"campus-wallet/internal/core/ports"
	"campus-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReconcilerServiceImpl implements ports.ReconcilerService. Top-ups are
// persisted before the gateway is contacted, so a crash between the two
// steps leaves a PENDING row that reconciliation can later resolve. The
// wallet is only credited once the gateway reports the charge paid.
type ReconcilerServiceImpl struct {
	paymentRepo ports.PaymentRepository
	walletRepo  ports.WalletRepository
	ledger      ports.LedgerService
	settings    ports.SettingProvider
	gateway     ports.PaymentGateway
	transactor  ports.DBTransactor
	notifier    ports.NotificationSink
	log         zerolog.Logger
}

// NewReconcilerService creates a new ReconcilerServiceImpl.
func NewReconcilerService(
	paymentRepo ports.PaymentRepository,
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	settings ports.SettingProvider,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	notifier ports.NotificationSink,
	log zerolog.Logger,
) *ReconcilerServiceImpl {
	return &ReconcilerServiceImpl{
		paymentRepo: paymentRepo,
		walletRepo:  walletRepo,
		ledger:      ledger,
		settings:    settings,
		gateway:     gateway,
		transactor:  transactor,
		notifier:    notifier,
		log:         log,
	}
}

// InitiateTopUp records a merchant float purchase and asks the gateway for
// a charge. The charge carries our reference, so a retried initiation after
// a timeout is deduplicated on the gateway's side rather than double-billed.
func (s *ReconcilerServiceImpl) InitiateTopUp(ctx context.Context, merchantID uuid.UUID, fiatAmount decimal.Decimal) (*domain.GatewayPayment, error) {
	if fiatAmount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.walletRepo.GetByOwnerID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve merchant wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("merchant wallet")
	}
	if wallet.OwnerType != domain.OwnerTypeMerchant {
		return nil, apperror.Validation("top-ups are only available to merchant wallets")
	}
	if !wallet.Active {
		return nil, apperror.ErrWalletInactive()
	}

	rate, err := s.settings.Decimal(ctx, ports.SettingExchangeRate)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read %s: %w", ports.SettingExchangeRate, err))
	}

	now := time.Now().UTC()
	payment := &domain.GatewayPayment{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		WalletID:      wallet.ID,
		Reference:     newReference("TOPUP"),
		FiatAmount:    fiatAmount,
		CutcoinAmount: fiatAmount.Mul(rate).Round(2),
		Status:        domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Persist first. If the process dies after the gateway call, the row
	// is still there to reconcile against.
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	charge, err := s.gateway.CreateCharge(ctx, ports.ChargeRequest{
		Reference: payment.Reference,
		Amount:    payment.FiatAmount,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("reference", payment.Reference).Msg("gateway charge creation failed")
		return nil, err
	}

	if err := s.paymentRepo.SetGatewayDetails(ctx, payment.Reference, charge.ExternalReference, charge.RedirectURL, charge.PollURL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store gateway details: %w", err))
	}
	payment.ExternalReference = &charge.ExternalReference
	if charge.RedirectURL != "" {
		payment.RedirectURL = &charge.RedirectURL
	}
	if charge.PollURL != "" {
		payment.PollURL = &charge.PollURL
	}

	s.log.Info().
		Str("reference", payment.Reference).
		Str("fiat_amount", payment.FiatAmount.String()).
		Str("cutcoin_amount", payment.CutcoinAmount.String()).
		Msg("top-up initiated")

	return payment, nil
}

// Reconcile polls the gateway for the payment's true state and converges
// the local record to it. Safe to call any number of times from any number
// of sources (client polling, callbacks, sweeps): the row lock serializes
// concurrent calls, terminal rows are returned unchanged, and the wallet
// credit happens in the same transaction as the PAID transition.
func (s *ReconcilerServiceImpl) Reconcile(ctx context.Context, reference string) (*domain.GatewayPayment, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.paymentRepo.GetByReferenceForUpdate(ctx, dbTx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	if payment.IsTerminal() {
		return payment, nil
	}

	status, err := s.gateway.GetStatus(ctx, reference)
	if err != nil {
		// Gateway unreachable: leave the row pending, reconcile again later.
		return nil, err
	}

	switch status {
	case ports.ChargeStatusPaid:
		if _, err := s.ledger.CreditInTx(ctx, dbTx, ports.EntryParams{
			WalletID:  payment.WalletID,
			Amount:    payment.CutcoinAmount,
			Reference: payment.Reference,
			Kind:      domain.EntryKindPayment,
			Fee:       decimal.Zero,
		}); err != nil {
			return nil, err
		}
		payment.Status = domain.PaymentStatusCompleted
	case ports.ChargeStatusFailed:
		payment.Status = domain.PaymentStatusFailed
	case ports.ChargeStatusCancelled:
		payment.Status = domain.PaymentStatusCancelled
	default:
		// Still pending at the gateway; nothing to record.
		return payment, nil
	}

	payment.UpdatedAt = time.Now().UTC()
	if err := s.paymentRepo.Update(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payment: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if payment.Status == domain.PaymentStatusCompleted {
		s.publish(domain.Event{
			Type:       domain.EventPaymentCompleted,
			Reference:  payment.Reference,
			MerchantID: payment.MerchantID,
			Amount:     payment.CutcoinAmount,
			OccurredAt: time.Now().UTC(),
		})
	}

	s.log.Info().
		Str("reference", payment.Reference).
		Str("status", string(payment.Status)).
		Msg("payment reconciled")

	return payment, nil
}

func (s *ReconcilerServiceImpl) publish(event domain.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(context.Background(), event); err != nil {
		s.log.Warn().Err(err).Str("reference", event.Reference).Str("event", string(event.Type)).Msg("event publish failed")
	}
}
