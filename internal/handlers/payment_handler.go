package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/islandhop/travel-booking-backend/internal/services"
	"github.com/islandhop/travel-booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// PaymentHandler handles payment initiation and reconciliation endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

func (h *PaymentHandler) clientMeta(c *gin.Context) services.ClientMeta {
	return services.ClientMeta{
		IP:         utils.GetRealIP(c),
		ClientInfo: utils.SummarizeUserAgent(utils.GetUserAgent(c)),
	}
}

// InitiatePayment starts a gateway payment for a booking
// @Summary Initiate payment for a booking
// @Description Creates a payment transaction and returns the hosted payment
// @Description page URL the client must redirect to.
// @Tags Payments
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.InitiatePaymentResponse
// @Failure 400 {object} map[string]interface{} "Booking not payable"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Failure 502 {object} map[string]interface{} "Gateway unavailable"
// @Router /api/v1/bookings/{id}/initiate-payment [post]
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid booking id"})
		return
	}

	resp, err := h.paymentService.InitiatePayment(c.Request.Context(), bookingID, h.clientMeta(c))
	if err != nil {
		h.respondPaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CheckPaymentStatus reconciles a payment against the gateway
// @Summary Check payment status
// @Description Queries the gateway for the current state of a merchant
// @Description transaction and applies it to the booking. Idempotent: calling
// @Description it again for a settled payment reports the settled state
// @Description without side effects. This is the endpoint the client polls
// @Description after returning from the payment page.
// @Tags Payments
// @Produce json
// @Param merchantTransactionId query string true "Merchant transaction ID"
// @Success 200 {object} models.PaymentStatusResponse
// @Failure 400 {object} map[string]interface{} "Missing merchant transaction id"
// @Failure 404 {object} map[string]interface{} "Unknown merchant transaction id"
// @Failure 502 {object} map[string]interface{} "Gateway unavailable"
// @Router /api/v1/payments/status [get]
func (h *PaymentHandler) CheckPaymentStatus(c *gin.Context) {
	mtid := c.Query("merchantTransactionId")
	if mtid == "" {
		c.JSON(http.StatusBadRequest, models.PaymentStatusResponse{
			Success: false,
			Message: "merchantTransactionId is required",
		})
		return
	}

	result, err := h.paymentService.Reconcile(c.Request.Context(), mtid, models.PaymentSourceClientPoll, h.clientMeta(c))
	if err != nil {
		h.respondPaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, statusResponse(result))
}

// HandleWebhook receives server-to-server payment notifications
// @Summary Payment gateway webhook
// @Description Accepts the gateway callback and reconciles the referenced
// @Description transaction. The callback payload itself is not trusted: the
// @Description authoritative status is always re-fetched from the gateway's
// @Description status API before anything is applied.
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Unreadable callback"
// @Router /api/v1/payments/webhook [post]
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	var callback struct {
		Response string `json:"response"`
	}
	mtid := c.Query("merchantTransactionId")
	if err := c.ShouldBindJSON(&callback); err != nil && mtid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unreadable callback payload"})
		return
	}
	if mtid == "" {
		if decoded, ok := decodeWebhookTransactionID(callback.Response); ok {
			mtid = decoded
		}
	}
	if mtid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Callback does not reference a transaction"})
		return
	}

	result, err := h.paymentService.Reconcile(c.Request.Context(), mtid, models.PaymentSourceGatewayWebhook, h.clientMeta(c))
	if err != nil {
		// Webhooks are retried by the gateway; a 200 with acknowledged=false
		// is reserved for unknown transactions we will never recognize.
		var notFoundErr *models.NotFoundError
		if errors.As(err, &notFoundErr) {
			c.JSON(http.StatusOK, gin.H{"acknowledged": false, "message": notFoundErr.Error()})
			return
		}
		h.respondPaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"acknowledged": true,
		"outcome":      result.Outcome,
	})
}

// decodeWebhookTransactionID extracts the merchant transaction id from the
// base64-encoded callback body PhonePe posts. Only the id is taken from it;
// the status inside is ignored in favor of a fresh status API call.
func decodeWebhookTransactionID(encoded string) (string, bool) {
	if encoded == "" {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	var payload struct {
		Data struct {
			MerchantTransactionID string `json:"merchantTransactionId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", false
	}
	return payload.Data.MerchantTransactionID, payload.Data.MerchantTransactionID != ""
}

// statusResponse shapes a reconciliation result for the polling client. A
// settled-failure is still HTTP 200: the request succeeded, the payment did
// not.
func statusResponse(result *models.ReconciliationResult) models.PaymentStatusResponse {
	switch result.Outcome {
	case models.OutcomeSuccess:
		bookingStatus := result.BookingStatus
		paymentStatus := result.PaymentStatus
		return models.PaymentStatusResponse{
			Success:               true,
			MerchantTransactionID: result.MerchantTransactionID,
			PhonePePaymentStatus:  "SUCCESS",
			PhonePeCode:           result.GatewayCode,
			BookingStatus:         &bookingStatus,
			PaymentStatus:         &paymentStatus,
			Message:               "Payment completed successfully",
		}
	case models.OutcomePending:
		return models.PaymentStatusResponse{
			Success:               true,
			MerchantTransactionID: result.MerchantTransactionID,
			PhonePePaymentStatus:  "PENDING",
			PhonePeCode:           result.GatewayCode,
			Message:               "Payment is still processing",
		}
	default:
		message := result.GatewayMessage
		if message == "" {
			message = "Payment was not completed"
		}
		bookingStatus := result.BookingStatus
		paymentStatus := result.PaymentStatus
		return models.PaymentStatusResponse{
			Success:               false,
			MerchantTransactionID: result.MerchantTransactionID,
			PhonePePaymentStatus:  "FAILED",
			PhonePeCode:           result.GatewayCode,
			BookingStatus:         &bookingStatus,
			PaymentStatus:         &paymentStatus,
			Message:               message,
		}
	}
}

// respondPaymentError maps payment errors onto HTTP responses. A GatewayError
// means we could not learn the payment's fate, so it maps to 502 and the
// client should retry; it is never presented as a failed payment.
func (h *PaymentHandler) respondPaymentError(c *gin.Context, err error) {
	var (
		notFoundErr    *models.NotFoundError
		consistencyErr *models.ConsistencyError
		gatewayErr     *models.GatewayError
	)

	switch {
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"message": notFoundErr.Error()})
	case errors.As(err, &consistencyErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": consistencyErr.Error()})
	case errors.As(err, &gatewayErr):
		h.logger.WithError(err).Error("Payment gateway unavailable")
		c.JSON(http.StatusBadGateway, gin.H{"message": "Payment status could not be verified, please retry"})
	default:
		h.logger.WithError(err).Error("Payment operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}
