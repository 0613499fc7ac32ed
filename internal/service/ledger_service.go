package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus-wallet/internal/core/domain"
	"campus-wallet/internal/core/ports"
	"campus-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const idempotencyTTL = 24 * time.Hour

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LedgerServiceImpl implements ports.LedgerService with pessimistic
// per-wallet-row locking and per-reference idempotency.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.EntryRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	entryRepo ports.EntryRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		idempCache: idempCache,
		transactor: transactor,
		log:        log,
	}
}

// Credit increases a wallet balance by amount. A repeated reference returns
// the stored entry without reapplying.
func (s *LedgerServiceImpl) Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, reference string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	return s.mutate(ctx, ports.EntryParams{
		WalletID:  walletID,
		Amount:    amount,
		Reference: reference,
		Kind:      kind,
		Fee:       decimal.Zero,
	}, s.CreditInTx)
}

// Debit decreases a wallet balance by amount, failing with
// InsufficientFunds when the balance cannot cover it.
func (s *LedgerServiceImpl) Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, reference string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	return s.mutate(ctx, ports.EntryParams{
		WalletID:  walletID,
		Amount:    amount,
		Reference: reference,
		Kind:      kind,
		Fee:       decimal.Zero,
	}, s.DebitInTx)
}

// Transfer debits amount+fee from the sender and credits amount to the
// receiver as one atomic unit. The fee is retained by the system; its
// collection is a separate accounting entry outside this operation.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, fromWalletID, toWalletID uuid.UUID, amount decimal.Decimal, reference string, fee decimal.Decimal) (*domain.LedgerEntry, error) {
	if amount.LessThanOrEqual(decimal.Zero) || fee.IsNegative() {
		return nil, apperror.ErrInvalidAmount()
	}

	if cached := s.cachedEntry(ctx, reference); cached != nil {
		return cached, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	existing, err := s.entryRepo.GetByReferenceForUpdate(ctx, dbTx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency check: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	// Lock both wallet rows in UUID order so concurrent opposite-direction
	// transfers cannot deadlock.
	first, second := fromWalletID, toWalletID
	if second.String() < first.String() {
		first, second = second, first
	}
	locked := map[uuid.UUID]*domain.Wallet{}
	for _, id := range []uuid.UUID{first, second} {
		w, err := s.lockWallet(ctx, dbTx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = w
	}

	sender := locked[fromWalletID]
	receiver := locked[toWalletID]

	total := amount.Add(fee)
	if sender.Balance.LessThan(total) {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, sender.ID, sender.Balance.Sub(total)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update sender balance: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, receiver.ID, receiver.Balance.Add(amount)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update receiver balance: %w", err))
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:               uuid.New(),
		SenderWalletID:   &sender.ID,
		ReceiverWalletID: &receiver.ID,
		Amount:           amount,
		Kind:             domain.EntryKindTransfer,
		Status:           domain.EntryStatusCompleted,
		Reference:        reference,
		Fee:              fee,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.entryRepo.Create(ctx, dbTx, entry); err != nil {
		if isUniqueViolation(err) {
			return s.replayEntry(ctx, reference)
		}
		return nil, apperror.InternalError(fmt.Errorf("create transfer entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheEntry(ctx, entry)

	s.log.Info().
		Str("reference", reference).
		Str("from", fromWalletID.String()).
		Str("to", toWalletID.String()).
		Str("amount", amount.String()).
		Str("fee", fee.String()).
		Msg("transfer completed")

	return entry, nil
}

// CreditInTx applies a credit inside a caller-owned transaction. The
// balance read, the non-negative invariant and the write all happen under
// the wallet row lock.
func (s *LedgerServiceImpl) CreditInTx(ctx context.Context, tx pgx.Tx, p ports.EntryParams) (*domain.LedgerEntry, error) {
	return s.applyInTx(ctx, tx, p, false)
}

// DebitInTx applies a debit inside a caller-owned transaction.
func (s *LedgerServiceImpl) DebitInTx(ctx context.Context, tx pgx.Tx, p ports.EntryParams) (*domain.LedgerEntry, error) {
	return s.applyInTx(ctx, tx, p, true)
}

func (s *LedgerServiceImpl) applyInTx(ctx context.Context, tx pgx.Tx, p ports.EntryParams, debit bool) (*domain.LedgerEntry, error) {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.ErrInvalidAmount()
	}

	existing, err := s.entryRepo.GetByReferenceForUpdate(ctx, tx, p.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency check: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	wallet, err := s.lockWallet(ctx, tx, p.WalletID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		Amount:    p.Amount,
		Kind:      p.Kind,
		Status:    domain.EntryStatusCompleted,
		Reference: p.Reference,
		Fee:       p.Fee,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var newBalance decimal.Decimal
	if debit {
		if wallet.Balance.LessThan(p.Amount) {
			return nil, apperror.ErrInsufficientFunds()
		}
		newBalance = wallet.Balance.Sub(p.Amount)
		entry.SenderWalletID = &wallet.ID
	} else {
		newBalance = wallet.Balance.Add(p.Amount)
		entry.ReceiverWalletID = &wallet.ID
	}

	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create entry: %w", err))
	}

	return entry, nil
}

// GetBalance returns the current balance and currency for a wallet.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, string, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return decimal.Zero, "", apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, "", apperror.ErrNotFound("wallet")
	}
	return wallet.Balance, wallet.Currency, nil
}

// ListEntries returns a page of the wallet's ledger history, newest first.
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	entries, total, err := s.entryRepo.ListByWallet(ctx, ports.EntryListParams{
		WalletID: walletID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// mutate runs one standalone credit/debit in its own transaction with the
// two-layer idempotency check (redis fast path, then the reference row
// under lock).
func (s *LedgerServiceImpl) mutate(
	ctx context.Context,
	p ports.EntryParams,
	apply func(context.Context, pgx.Tx, ports.EntryParams) (*domain.LedgerEntry, error),
) (*domain.LedgerEntry, error) {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.ErrInvalidAmount()
	}

	if cached := s.cachedEntry(ctx, p.Reference); cached != nil {
		return cached, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := apply(ctx, dbTx, p)
	if err != nil {
		if isUniqueViolation(err) {
			return s.replayEntry(ctx, p.Reference)
		}
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheEntry(ctx, entry)
	return entry, nil
}

// lockWallet fetches a wallet row FOR UPDATE and validates it is usable.
func (s *LedgerServiceImpl) lockWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.Active {
		return nil, apperror.ErrWalletInactive()
	}
	return wallet, nil
}

// replayEntry resolves a lost race on the reference column: the other
// writer won, so its stored entry is this call's result.
func (s *LedgerServiceImpl) replayEntry(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	entry, err := s.entryRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("replay entry: %w", err))
	}
	if entry == nil {
		return nil, apperror.ErrDuplicateReference()
	}
	return entry, nil
}

func (s *LedgerServiceImpl) cachedEntry(ctx context.Context, reference string) *domain.LedgerEntry {
	cached, err := s.idempCache.Get(ctx, reference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	entry := &domain.LedgerEntry{}
	if err := json.Unmarshal(cached, entry); err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("corrupt cached entry, falling through to DB")
		return nil
	}
	return entry
}

func (s *LedgerServiceImpl) cacheEntry(ctx context.Context, entry *domain.LedgerEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, entry.Reference, data, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("reference", entry.Reference).Msg("failed to cache entry in redis")
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
