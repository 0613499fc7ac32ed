package handler

import (
	"campus-wallet/internal/adapter/http/dto"
	"campus-wallet/internal/core/domain"
	"campus-wallet/internal/core/ports"
	"campus-wallet/pkg/apperror"
	"campus-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler handles two-party settlement endpoints.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Initiate handles POST /api/v1/settlements.
func (h *SettlementHandler) Initiate(c *gin.Context) {
	var req dto.InitiateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid user_id"))
		return
	}
	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid merchant_id"))
		return
	}

	settlement, err := h.settlementSvc.Initiate(c.Request.Context(), ports.InitiateSettlementRequest{
		UserID:     userID,
		MerchantID: merchantID,
		Type:       domain.SettlementType(req.Type),
		Amount:     req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToSettlementResponse(settlement))
}

// ConfirmStudent handles POST /api/v1/settlements/:reference/confirm-student.
func (h *SettlementHandler) ConfirmStudent(c *gin.Context) {
	settlement, err := h.settlementSvc.ConfirmByStudent(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToSettlementResponse(settlement))
}

// ConfirmMerchant handles POST /api/v1/settlements/:reference/confirm-merchant.
func (h *SettlementHandler) ConfirmMerchant(c *gin.Context) {
	settlement, err := h.settlementSvc.ConfirmByMerchant(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToSettlementResponse(settlement))
}

// Cancel handles POST /api/v1/settlements/:reference/cancel.
func (h *SettlementHandler) Cancel(c *gin.Context) {
	var req dto.CancelSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	settlement, err := h.settlementSvc.Cancel(c.Request.Context(), c.Param("reference"), domain.SettlementActor(req.Actor))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToSettlementResponse(settlement))
}

// Get handles GET /api/v1/settlements/:reference.
func (h *SettlementHandler) Get(c *gin.Context) {
	settlement, err := h.settlementSvc.Get(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToSettlementResponse(settlement))
}
