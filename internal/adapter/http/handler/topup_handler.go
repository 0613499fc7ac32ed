package handler

import (
	"bytes"
	"io"

	"campus-wallet/internal/adapter/http/dto"
	"campus-wallet/internal/core/ports"
	"campus-wallet/pkg/apperror"
	"campus-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CallbackVerifier checks the signature on inbound gateway callbacks.
type CallbackVerifier interface {
	VerifyCallback(payload []byte, signature string) bool
}

// TopUpHandler handles merchant float top-up and gateway callback endpoints.
type TopUpHandler struct {
	reconcilerSvc ports.ReconcilerService
	verifier      CallbackVerifier
	log           zerolog.Logger
}

// NewTopUpHandler creates a new TopUpHandler.
func NewTopUpHandler(reconcilerSvc ports.ReconcilerService, verifier CallbackVerifier, log zerolog.Logger) *TopUpHandler {
	return &TopUpHandler{
		reconcilerSvc: reconcilerSvc,
		verifier:      verifier,
		log:           log,
	}
}

// Initiate handles POST /api/v1/topups.
func (h *TopUpHandler) Initiate(c *gin.Context) {
	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid merchant_id"))
		return
	}

	payment, err := h.reconcilerSvc.InitiateTopUp(c.Request.Context(), merchantID, req.FiatAmount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToPaymentResponse(payment))
}

// Reconcile handles POST /api/v1/topups/:reference/reconcile.
func (h *TopUpHandler) Reconcile(c *gin.Context) {
	payment, err := h.reconcilerSvc.Reconcile(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToPaymentResponse(payment))
}

// Callback handles POST /api/v1/gateway/callback. The callback body is only
// a hint: after verifying the signature, the payment's true state is pulled
// from the gateway through the normal reconcile path.
func (h *TopUpHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	signature := c.GetHeader("X-Gateway-Signature")
	if signature == "" || !h.verifier.VerifyCallback(body, signature) {
		h.log.Warn().Str("client_ip", c.ClientIP()).Msg("gateway callback with bad signature")
		response.Error(c, apperror.Validation("invalid callback signature"))
		return
	}

	var req dto.GatewayCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	payment, err := h.reconcilerSvc.Reconcile(c.Request.Context(), req.Reference)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToPaymentResponse(payment))
}
