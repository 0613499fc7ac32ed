package service

import (
	"context"
	"fmt"
	"time"

	"campus-wallet/internal/core/domain"
	"campus-wallet/internal/core/ports"
	"campus-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementServiceImpl implements ports.SettlementService. The settlement
// row's FOR UPDATE lock is the commit guard: concurrent confirmations for
// one reference serialize on it, so the ledger effect runs exactly once.
type SettlementServiceImpl struct {
	settlementRepo ports.SettlementRepository
	walletRepo     ports.WalletRepository
	ledger         ports.LedgerService
	limits         ports.LimitService
	transactor     ports.DBTransactor
	notifier       ports.NotificationSink
	log            zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	settlementRepo ports.SettlementRepository,
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	limits ports.LimitService,
	transactor ports.DBTransactor,
	notifier ports.NotificationSink,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		settlementRepo: settlementRepo,
		walletRepo:     walletRepo,
		ledger:         ledger,
		limits:         limits,
		transactor:     transactor,
		notifier:       notifier,
		log:            log,
	}
}

// Initiate validates the proposed cash exchange against the limit policy
// and records a PENDING settlement. Cash has not changed hands yet, so the
// ledger is not touched. Policy failures create no row.
func (s *SettlementServiceImpl) Initiate(ctx context.Context, req ports.InitiateSettlementRequest) (*domain.MerchantSettlement, error) {
	if req.Type != domain.SettlementTypeDeposit && req.Type != domain.SettlementTypeWithdrawal {
		return nil, apperror.Validation("settlement type must be DEPOSIT or WITHDRAWAL")
	}

	fee, err := s.limits.Evaluate(ctx, req.UserID, entryKindFor(req.Type), req.Amount)
	if err != nil {
		return nil, err
	}

	// Fail fast if either party has no wallet; the confirm path depends on both.
	if err := s.ensureWallet(ctx, req.UserID, "student wallet"); err != nil {
		return nil, err
	}
	if err := s.ensureWallet(ctx, req.MerchantID, "merchant wallet"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	settlement := &domain.MerchantSettlement{
		ID:         uuid.New(),
		UserID:     req.UserID,
		MerchantID: req.MerchantID,
		Type:       req.Type,
		Amount:     req.Amount,
		Fee:        fee,
		Reference:  newReference("MERCH"),
		Status:     domain.SettlementStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.settlementRepo.Create(ctx, settlement); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create settlement: %w", err))
	}

	s.publish(domain.Event{
		Type:       domain.EventSettlementCreated,
		Reference:  settlement.Reference,
		UserID:     settlement.UserID,
		MerchantID: settlement.MerchantID,
		Amount:     settlement.Amount,
		Fee:        settlement.Fee,
		OccurredAt: now,
	})

	s.log.Info().
		Str("reference", settlement.Reference).
		Str("type", string(settlement.Type)).
		Str("amount", settlement.Amount.String()).
		Str("fee", settlement.Fee.String()).
		Msg("settlement initiated")

	return settlement, nil
}

// ConfirmByStudent records the student's confirmation of the cash exchange.
func (s *SettlementServiceImpl) ConfirmByStudent(ctx context.Context, reference string) (*domain.MerchantSettlement, error) {
	return s.confirm(ctx, reference, domain.SettlementActorStudent)
}

// ConfirmByMerchant records the merchant's confirmation of the cash exchange.
func (s *SettlementServiceImpl) ConfirmByMerchant(ctx context.Context, reference string) (*domain.MerchantSettlement, error) {
	return s.confirm(ctx, reference, domain.SettlementActorMerchant)
}

func (s *SettlementServiceImpl) confirm(ctx context.Context, reference string, actor domain.SettlementActor) (*domain.MerchantSettlement, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	settlement, err := s.settlementRepo.GetByReferenceForUpdate(ctx, dbTx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock settlement: %w", err))
	}
	if settlement == nil {
		return nil, apperror.ErrInvalidState()
	}

	if settlement.Status == domain.SettlementStatusCompleted {
		// The other confirmation already completed the settlement; a
		// repeated confirm is a no-op, not an error.
		return settlement, nil
	}
	if settlement.IsTerminal() {
		return nil, apperror.ErrInvalidState()
	}
	if settlement.ConfirmedBy(actor) {
		return settlement, nil
	}

	if actor == domain.SettlementActorMerchant {
		settlement.MerchantConfirmed = true
	} else {
		settlement.StudentConfirmed = true
	}

	completed := false
	if settlement.BothConfirmed() {
		if err := s.applyLedgerEffect(ctx, dbTx, settlement); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		settlement.Status = domain.SettlementStatusCompleted
		settlement.CompletedAt = &now
		completed = true
	}

	if err := s.settlementRepo.Update(ctx, dbTx, settlement); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update settlement: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if completed {
		s.publish(domain.Event{
			Type:       domain.EventSettlementCompleted,
			Reference:  settlement.Reference,
			UserID:     settlement.UserID,
			MerchantID: settlement.MerchantID,
			Amount:     settlement.Amount,
			Fee:        settlement.Fee,
			OccurredAt: time.Now().UTC(),
		})
		s.log.Info().
			Str("reference", settlement.Reference).
			Str("type", string(settlement.Type)).
			Msg("settlement completed")
	}

	return settlement, nil
}

// applyLedgerEffect moves the digital funds for a dual-confirmed settlement
// inside the already-open transaction. For a deposit the merchant hands
// over cash and pays CUTcoin from their wallet to the student; a withdrawal
// is the inverse. The fee is recorded on the entries; its collection is a
// separate accounting step.
func (s *SettlementServiceImpl) applyLedgerEffect(ctx context.Context, tx pgx.Tx, settlement *domain.MerchantSettlement) error {
	studentWallet, err := s.walletFor(ctx, settlement.UserID, "student wallet")
	if err != nil {
		return err
	}
	merchantWallet, err := s.walletFor(ctx, settlement.MerchantID, "merchant wallet")
	if err != nil {
		return err
	}

	kind := entryKindFor(settlement.Type)
	debitWallet, creditWallet := merchantWallet, studentWallet
	if settlement.Type == domain.SettlementTypeWithdrawal {
		debitWallet, creditWallet = studentWallet, merchantWallet
	}

	debitParams := ports.EntryParams{
		WalletID:  debitWallet.ID,
		Amount:    settlement.Amount,
		Reference: settlement.Reference + "-DR",
		Kind:      kind,
		Fee:       settlement.Fee,
	}
	creditParams := ports.EntryParams{
		WalletID:  creditWallet.ID,
		Amount:    settlement.Amount,
		Reference: settlement.Reference + "-CR",
		Kind:      kind,
		Fee:       decimal.Zero,
	}

	// Lock the two wallet rows in UUID order to avoid deadlocking against
	// other settlements between the same pair.
	if debitWallet.ID.String() < creditWallet.ID.String() {
		if _, err := s.ledger.DebitInTx(ctx, tx, debitParams); err != nil {
			return err
		}
		_, err = s.ledger.CreditInTx(ctx, tx, creditParams)
		return err
	}
	if _, err := s.ledger.CreditInTx(ctx, tx, creditParams); err != nil {
		return err
	}
	_, err = s.ledger.DebitInTx(ctx, tx, debitParams)
	return err
}

// Cancel aborts a settlement while it is still pending. A merchant cancel
// is recorded as REJECTED, a student (or system) cancel as CANCELLED. No
// ledger effect was ever applied, so none is reversed.
func (s *SettlementServiceImpl) Cancel(ctx context.Context, reference string, actor domain.SettlementActor) (*domain.MerchantSettlement, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	settlement, err := s.settlementRepo.GetByReferenceForUpdate(ctx, dbTx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock settlement: %w", err))
	}
	if settlement == nil || settlement.IsTerminal() {
		return nil, apperror.ErrInvalidState()
	}

	now := time.Now().UTC()
	if actor == domain.SettlementActorMerchant {
		settlement.Status = domain.SettlementStatusRejected
	} else {
		settlement.Status = domain.SettlementStatusCancelled
	}
	settlement.CancelledAt = &now

	if err := s.settlementRepo.Update(ctx, dbTx, settlement); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update settlement: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(domain.Event{
		Type:       domain.EventSettlementCancelled,
		Reference:  settlement.Reference,
		UserID:     settlement.UserID,
		MerchantID: settlement.MerchantID,
		Amount:     settlement.Amount,
		Fee:        settlement.Fee,
		OccurredAt: now,
	})

	return settlement, nil
}

// Get returns the settlement for dashboards and client polling.
func (s *SettlementServiceImpl) Get(ctx context.Context, reference string) (*domain.MerchantSettlement, error) {
	settlement, err := s.settlementRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get settlement: %w", err))
	}
	if settlement == nil {
		return nil, apperror.ErrNotFound("settlement")
	}
	return settlement, nil
}

func (s *SettlementServiceImpl) ensureWallet(ctx context.Context, ownerID uuid.UUID, name string) error {
	_, err := s.walletFor(ctx, ownerID, name)
	return err
}

func (s *SettlementServiceImpl) walletFor(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve %s: %w", name, err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound(name)
	}
	return wallet, nil
}

func (s *SettlementServiceImpl) publish(event domain.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(context.Background(), event); err != nil {
		s.log.Warn().Err(err).Str("reference", event.Reference).Str("event", string(event.Type)).Msg("event publish failed")
	}
}

func entryKindFor(t domain.SettlementType) domain.EntryKind {
	if t == domain.SettlementTypeWithdrawal {
		return domain.EntryKindWithdrawal
	}
	return domain.EntryKindDeposit
}
