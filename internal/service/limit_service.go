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

var oneHundred = decimal.NewFromInt(100)

// LimitServiceImpl implements ports.LimitService. Policy values are read
// fresh from the setting provider on every evaluation because they can
// change between requests. The limit check and the later ledger mutation
// are deliberately not linearizable with each other; near-simultaneous
// requests may jointly overshoot a cap by one transaction.
type LimitServiceImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.EntryRepository
	settings   ports.SettingProvider
	log        zerolog.Logger
}

// NewLimitService creates a new LimitServiceImpl.
func NewLimitService(
	walletRepo ports.WalletRepository,
	entryRepo ports.EntryRepository,
	settings ports.SettingProvider,
	log zerolog.Logger,
) *LimitServiceImpl {
	return &LimitServiceImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		settings:   settings,
		log:        log,
	}
}

// Evaluate returns the fee for the proposed transaction, or a limit error
// if it would push the user past a daily or monthly cap.
func (s *LimitServiceImpl) Evaluate(ctx context.Context, userID uuid.UUID, kind domain.EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, apperror.ErrInvalidAmount()
	}

	wallet, err := s.walletRepo.GetByOwnerID(ctx, userID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("resolve wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, apperror.ErrNotFound("wallet")
	}

	fee, err := s.computeFee(ctx, kind, amount)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.checkCaps(ctx, wallet.ID, kind, amount); err != nil {
		return decimal.Zero, err
	}

	return fee, nil
}

// computeFee applies the threshold/percentage pair for the kind. A
// percentage of 0.5 means 0.5% of the amount.
func (s *LimitServiceImpl) computeFee(ctx context.Context, kind domain.EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	thresholdKey, percentageKey := feeKeys(kind)

	threshold, err := s.settings.Decimal(ctx, thresholdKey)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("read %s: %w", thresholdKey, err))
	}
	percentage, err := s.settings.Decimal(ctx, percentageKey)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("read %s: %w", percentageKey, err))
	}

	if amount.GreaterThanOrEqual(threshold) {
		return amount.Mul(percentage).Div(oneHundred).Round(2), nil
	}
	return decimal.Zero, nil
}

func (s *LimitServiceImpl) checkCaps(ctx context.Context, walletID uuid.UUID, kind domain.EntryKind, amount decimal.Decimal) error {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	dailyKey, monthlyKey := capKeys(kind)

	if err := s.checkCap(ctx, walletID, kind, amount, dailyKey, dayStart, apperror.ErrDailyLimitExceeded()); err != nil {
		return err
	}
	if monthlyKey == "" {
		return nil
	}
	return s.checkCap(ctx, walletID, kind, amount, monthlyKey, monthStart, apperror.ErrMonthlyLimitExceeded())
}

// checkCap sums the user's completed entries of the kind since the period
// start and rejects if the proposed amount would exceed the cap. A cap of
// zero disables the check.
func (s *LimitServiceImpl) checkCap(ctx context.Context, walletID uuid.UUID, kind domain.EntryKind, amount decimal.Decimal, capKey string, since time.Time, breach error) error {
	limit, err := s.settings.Decimal(ctx, capKey)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("read %s: %w", capKey, err))
	}
	if limit.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	sum, err := s.entryRepo.SumCompletedByWallet(ctx, walletID, kind, since)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sum entries: %w", err))
	}

	if sum.Add(amount).GreaterThan(limit) {
		s.log.Info().
			Str("wallet_id", walletID.String()).
			Str("kind", string(kind)).
			Str("cap_key", capKey).
			Str("sum", sum.String()).
			Str("amount", amount.String()).
			Msg("limit check rejected transaction")
		return breach
	}
	return nil
}

// feeKeys maps an entry kind to its threshold/percentage setting pair.
// Withdrawals have their own pair; deposits, transfers and payments share
// the transfer pair.
func feeKeys(kind domain.EntryKind) (threshold, percentage string) {
	if kind == domain.EntryKindWithdrawal {
		return ports.SettingWithdrawalFeeThreshold, ports.SettingWithdrawalFeePercentage
	}
	return ports.SettingTransferFeeThreshold, ports.SettingTransferFeePercentage
}

// capKeys maps an entry kind to its daily/monthly cap setting pair. An
// empty monthly key means no monthly cap applies to the kind.
func capKeys(kind domain.EntryKind) (daily, monthly string) {
	switch kind {
	case domain.EntryKindDeposit:
		return ports.SettingMerchantDailyDepositLimit, ports.SettingMerchantMonthlyDepositLimit
	case domain.EntryKindWithdrawal:
		return ports.SettingDailyTransactionLimit, ports.SettingMonthlyWithdrawalLimit
	default:
		return ports.SettingDailyTransactionLimit, ""
	}
}
