package dto

import (
	"time"

	"campus-wallet/internal/core/domain"

	"github.com/shopspring/decimal"
)

// InitiateSettlementRequest is the request body for creating a settlement.
type InitiateSettlementRequest struct {
	UserID     string          `json:"user_id" binding:"required,uuid"`
	MerchantID string          `json:"merchant_id" binding:"required,uuid"`
	Type       string          `json:"type" binding:"required,oneof=DEPOSIT WITHDRAWAL"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
}

// CancelSettlementRequest is the request body for cancelling a settlement.
type CancelSettlementRequest struct {
	Actor string `json:"actor" binding:"required,oneof=STUDENT MERCHANT"`
}

// SettlementResponse is the response body for settlement operations.
type SettlementResponse struct {
	Reference         string  `json:"reference"`
	UserID            string  `json:"user_id"`
	MerchantID        string  `json:"merchant_id"`
	Type              string  `json:"type"`
	Amount            string  `json:"amount"`
	Fee               string  `json:"fee"`
	Status            string  `json:"status"`
	StudentConfirmed  bool    `json:"student_confirmed"`
	MerchantConfirmed bool    `json:"merchant_confirmed"`
	CompletedAt       *string `json:"completed_at,omitempty"`
	CancelledAt       *string `json:"cancelled_at,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// ToSettlementResponse maps a settlement to its API representation.
func ToSettlementResponse(s *domain.MerchantSettlement) SettlementResponse {
	resp := SettlementResponse{
		Reference:         s.Reference,
		UserID:            s.UserID.String(),
		MerchantID:        s.MerchantID.String(),
		Type:              string(s.Type),
		Amount:            s.Amount.StringFixed(2),
		Fee:               s.Fee.StringFixed(2),
		Status:            string(s.Status),
		StudentConfirmed:  s.StudentConfirmed,
		MerchantConfirmed: s.MerchantConfirmed,
		CreatedAt:         s.CreatedAt.Format(time.RFC3339),
	}
	if s.CompletedAt != nil {
		v := s.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	if s.CancelledAt != nil {
		v := s.CancelledAt.Format(time.RFC3339)
		resp.CancelledAt = &v
	}
	return resp
}

// TopUpRequest is the request body for initiating a merchant float top-up.
type TopUpRequest struct {
	MerchantID string          `json:"merchant_id" binding:"required,uuid"`
	FiatAmount decimal.Decimal `json:"fiat_amount" binding:"required"`
}

// PaymentResponse is the response body for top-up operations.
type PaymentResponse struct {
	Reference         string  `json:"reference"`
	MerchantID        string  `json:"merchant_id"`
	FiatAmount        string  `json:"fiat_amount"`
	CutcoinAmount     string  `json:"cutcoin_amount"`
	Status            string  `json:"status"`
	ExternalReference *string `json:"external_reference,omitempty"`
	RedirectURL       *string `json:"redirect_url,omitempty"`
	PollURL           *string `json:"poll_url,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// ToPaymentResponse maps a gateway payment to its API representation.
func ToPaymentResponse(p *domain.GatewayPayment) PaymentResponse {
	return PaymentResponse{
		Reference:         p.Reference,
		MerchantID:        p.MerchantID.String(),
		FiatAmount:        p.FiatAmount.StringFixed(2),
		CutcoinAmount:     p.CutcoinAmount.StringFixed(2),
		Status:            string(p.Status),
		ExternalReference: p.ExternalReference,
		RedirectURL:       p.RedirectURL,
		PollURL:           p.PollURL,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
	}
}

// GatewayCallbackRequest is the body the gateway posts on charge updates.
// Only the reference is trusted; the actual state is re-fetched from the
// gateway during reconciliation.
type GatewayCallbackRequest struct {
	Reference string `json:"reference" binding:"required,max=100"`
}

// BalanceResponse is the response for a wallet balance query.
type BalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// EntryResponse is a single ledger entry in an entry listing.
type EntryResponse struct {
	ID               string  `json:"id"`
	SenderWalletID   *string `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID *string `json:"receiver_wallet_id,omitempty"`
	Amount           string  `json:"amount"`
	Fee              string  `json:"fee"`
	Kind             string  `json:"kind"`
	Status           string  `json:"status"`
	Reference        string  `json:"reference"`
	CreatedAt        string  `json:"created_at"`
}

// EntryListResponse wraps a paginated ledger entry list.
type EntryListResponse struct {
	Entries  []EntryResponse `json:"entries"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ToEntryResponse maps a ledger entry to its API representation.
func ToEntryResponse(e domain.LedgerEntry) EntryResponse {
	resp := EntryResponse{
		ID:        e.ID.String(),
		Amount:    e.Amount.StringFixed(2),
		Fee:       e.Fee.StringFixed(2),
		Kind:      string(e.Kind),
		Status:    string(e.Status),
		Reference: e.Reference,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
	if e.SenderWalletID != nil {
		v := e.SenderWalletID.String()
		resp.SenderWalletID = &v
	}
	if e.ReceiverWalletID != nil {
		v := e.ReceiverWalletID.String()
		resp.ReceiverWalletID = &v
	}
	return resp
}
