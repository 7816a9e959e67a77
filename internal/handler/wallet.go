package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/usexrp/agentwallet/internal/middleware"
	"github.com/usexrp/agentwallet/internal/model"
	"github.com/usexrp/agentwallet/internal/pkg/apperrors"
	"github.com/usexrp/agentwallet/internal/service"
)

const ServiceName = "use-xrp-wallet"

type WalletHandler struct {
	svc *service.WalletService
}

func NewWalletHandler(svc *service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// Health is unauthenticated so agents can check whether the gateway runs.
func (h *WalletHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{Status: "ok", Service: ServiceName})
}

func (h *WalletHandler) Address(c *gin.Context) {
	address, err := h.svc.Address(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, model.AddressResponse{Address: address})
}

func (h *WalletHandler) Balance(c *gin.Context) {
	balance, err := h.svc.Balance(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *WalletHandler) Pay(c *gin.Context) {
	// 1. Bind and validate
	var req model.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(apperrors.NewInvalidRequest("invalid request body"))
		return
	}
	payment, err := service.ParsePayment(req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "destination", payment.Destination)
	middleware.AddAuditContext(c, "drops", payment.Drops)

	// 2. Sign, submit, wait
	result, err := h.svc.Pay(c.Request.Context(), payment)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "tx_hash", result.TxHash)
	c.JSON(http.StatusOK, result)
}
