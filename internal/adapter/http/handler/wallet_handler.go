package handler

import (
	"strconv"

	"campus-wallet/internal/adapter/http/dto"
	"campus-wallet/internal/core/ports"
	"campus-wallet/pkg/apperror"
	"campus-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet balance and history endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// GetBalance handles GET /api/v1/wallets/:id/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	balance, currency, err := h.ledgerSvc.GetBalance(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		WalletID: walletID.String(),
		Balance:  balance.StringFixed(2),
		Currency: currency,
	})
}

// ListEntries handles GET /api/v1/wallets/:id/entries.
func (h *WalletHandler) ListEntries(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.ledgerSvc.ListEntries(c.Request.Context(), walletID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.EntryListResponse{
		Entries:  make([]dto.EntryResponse, 0, len(entries)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.ToEntryResponse(e))
	}
	response.OK(c, resp)
}
