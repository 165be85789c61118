package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-market-backend/internal/dto"
	"github.com/ignatzorin/freelance-market-backend/internal/gateway"
	"github.com/ignatzorin/freelance-market-backend/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-market-backend/internal/logger"
	"github.com/ignatzorin/freelance-market-backend/internal/service"
)

// Вебхуки Stripe не превышают нескольких килобайт, лимит защищает от мусора.
const maxWebhookBody = 64 * 1024

type PaymentHandler struct {
	payments   *service.PaymentService
	reconciler *service.ReconcileService

	webhookSecret        string
	connectWebhookSecret string
}

func NewPaymentHandler(payments *service.PaymentService, reconciler *service.ReconcileService, webhookSecret, connectWebhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		payments:             payments,
		reconciler:           reconciler,
		webhookSecret:        webhookSecret,
		connectWebhookSecret: connectWebhookSecret,
	}
}

// CreatePaymentIntent POST /api/payments/create-payment-intent
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	result, err := h.payments.InitiatePayment(c.Request.Context(), orderID, userID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaymentIntentResponse{
		PaymentID:    result.PaymentID.String(),
		ClientSecret: result.ClientSecret,
	})
}

// Get GET /api/payments/:paymentId
func (h *PaymentHandler) Get(c *gin.Context) {
	paymentID, err := common.ParseUUIDParam(c, "paymentId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Release POST /api/payments/:paymentId/release
// Доступен только администратору: ручная выплата до срабатывания авто-выплаты.
func (h *PaymentHandler) Release(c *gin.Context) {
	paymentID, err := common.ParseUUIDParam(c, "paymentId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.payments.ReleasePayment(c.Request.Context(), paymentID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// CreateConnectAccount POST /api/payments/create-connect-account
func (h *PaymentHandler) CreateConnectAccount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	url, err := h.payments.CreateConnectAccount(c.Request.Context(), userID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ConnectAccountResponse{OnboardingURL: url})
}

// AccountStatus GET /api/payments/account-status
func (h *PaymentHandler) AccountStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	status, err := h.payments.AccountStatus(c.Request.Context(), userID)
	if err != nil {
		common.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AccountStatusResponse{
		Connected:        status.Connected,
		ChargesEnabled:   status.ChargesEnabled,
		PayoutsEnabled:   status.PayoutsEnabled,
		DetailsSubmitted: status.DetailsSubmitted,
	})
}

// Webhook POST /api/payments/webhook — платёжные события Stripe.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	h.handleWebhook(c, h.webhookSecret)
}

// ConnectWebhook POST /api/payments/connect-webhook — события подключённых
// счетов. Stripe подписывает их отдельным секретом.
func (h *PaymentHandler) ConnectWebhook(c *gin.Context) {
	h.handleWebhook(c, h.connectWebhookSecret)
}

func (h *PaymentHandler) handleWebhook(c *gin.Context, secret string) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	event, err := gateway.VerifyEvent(payload, c.GetHeader("Stripe-Signature"), secret)
	if err != nil {
		// Неверная подпись не подтверждается: легитимный вебхук Stripe
		// перепошлёт, а подделка не попадёт в реконсилиацию.
		logger.WithComponent("webhook").Warnf("подпись вебхука не прошла проверку: %v", err)
		common.RespondBadRequest(c, "невалидная подпись")
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), event); err != nil {
		// 5xx заставляет Stripe повторить доставку.
		logger.WithComponent("webhook").Errorf("обработка события %s не удалась: %v", event.ID, err)
		common.RespondError(c, http.StatusInternalServerError, "событие не обработано")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
