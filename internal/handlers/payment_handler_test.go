package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/database"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/islandhop/travel-booking-backend/internal/services"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	statusCode  string
	statusErr   error
	redirectURL string
	initiateErr error
}

func (s *stubGateway) InitiatePayment(mtid string, amount float64, merchantUserID string) (string, error) {
	if s.initiateErr != nil {
		return "", s.initiateErr
	}
	return s.redirectURL, nil
}

func (s *stubGateway) CheckStatus(mtid string) (*services.PhonePeStatusResult, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &services.PhonePeStatusResult{
		Code:                  s.statusCode,
		Message:               "stub response",
		MerchantTransactionID: mtid,
	}, nil
}

func setupPaymentHandlerTest(t *testing.T, gateway services.PaymentGateway) (*PaymentHandler, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	service := services.NewPaymentService(
		database.NewBookingRepository(sqlxDB),
		database.NewPaymentRepository(sqlxDB),
		nil,
		gateway,
		testLogger(),
	)
	handler := NewPaymentHandler(service, testLogger())

	cleanup := func() {
		db.Close()
	}
	return handler, mock, cleanup
}

func paymentRouter(handler *PaymentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/bookings/:id/initiate-payment", handler.InitiatePayment)
	router.GET("/api/v1/payments/status", handler.CheckPaymentStatus)
	router.POST("/api/v1/payments/webhook", handler.HandleWebhook)
	return router
}

func paymentBookingRow(id uuid.UUID, status models.BookingStatus, paymentStatus models.PaymentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "package_id", "package_category_id",
		"total_people", "start_date", "end_date", "total_amount",
		"status", "payment_status",
		"guest_name", "guest_email", "guest_phone", "special_requests",
		"created_at", "updated_at",
	}).AddRow(
		id, nil, 12, 45,
		3, now.AddDate(0, 0, 10), now.AddDate(0, 0, 14), 4501.50,
		status, paymentStatus,
		"Nimal Perera", "nimal@example.com", "+94771234567", nil,
		now, now,
	)
}

func paymentTransactionRow(bookingID uuid.UUID, mtid string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "booking_id", "merchant_transaction_id", "amount", "gateway",
		"last_gateway_status", "created_at", "updated_at", "completed_at",
	}).AddRow(uuid.New(), bookingID, mtid, 4501.50, "phonepe", nil, now, now, nil)
}

func TestPaymentStatusEndpoint_MissingTransactionID(t *testing.T) {
	handler, mock, cleanup := setupPaymentHandlerTest(t, &stubGateway{})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/status", nil)
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.PaymentStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "merchantTransactionId is required")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatusEndpoint_Success(t *testing.T) {
	handler, mock, cleanup := setupPaymentHandlerTest(t, &stubGateway{statusCode: models.PhonePeSuccess})
	defer cleanup()

	bookingID := uuid.New()
	mtid := "MT-handler-1"

	mock.ExpectQuery("FROM payment_transactions").
		WithArgs(mtid).
		WillReturnRows(paymentTransactionRow(bookingID, mtid))
	mock.ExpectExec("payment_status = 'paid'").
		WithArgs(bookingID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payment_transactions").
		WithArgs(models.PhonePeSuccess, mtid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(paymentBookingRow(bookingID, models.BookingConfirmed, models.PaymentPaid))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/status?merchantTransactionId="+mtid, nil)
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.PaymentStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "SUCCESS", resp.PhonePePaymentStatus)
	require.NotNil(t, resp.BookingStatus)
	assert.Equal(t, models.BookingConfirmed, *resp.BookingStatus)
	require.NotNil(t, resp.PaymentStatus)
	assert.Equal(t, models.PaymentPaid, *resp.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatusEndpoint_SettledFailureIs200(t *testing.T) {
	handler, mock, cleanup := setupPaymentHandlerTest(t, &stubGateway{statusCode: models.PhonePeDeclined})
	defer cleanup()

	bookingID := uuid.New()
	mtid := "MT-handler-2"

	mock.ExpectQuery("FROM payment_transactions").
		WithArgs(mtid).
		WillReturnRows(paymentTransactionRow(bookingID, mtid))
	mock.ExpectExec("payment_status = 'failed'").
		WithArgs(bookingID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payment_transactions").
		WithArgs(models.PhonePeDeclined, mtid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(paymentBookingRow(bookingID, models.BookingPending, models.PaymentFailed))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/status?merchantTransactionId="+mtid, nil)
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.PaymentStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "FAILED", resp.PhonePePaymentStatus)
	assert.Equal(t, models.PhonePeDeclined, resp.PhonePeCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatusEndpoint_UnknownTransaction(t *testing.T) {
	handler, mock, cleanup := setupPaymentHandlerTest(t, &stubGateway{statusCode: models.PhonePeSuccess})
	defer cleanup()

	mock.ExpectQuery("FROM payment_transactions").
		WithArgs("MT-nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/status?merchantTransactionId=MT-nope", nil)
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown merchant transaction id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatusEndpoint_GatewayDownIs502(t *testing.T) {
	gateway := &stubGateway{statusErr: &models.GatewayError{Op: "status check", Err: errors.New("timeout")}}
	handler, mock, cleanup := setupPaymentHandlerTest(t, gateway)
	defer cleanup()

	bookingID := uuid.New()
	mtid := "MT-handler-3"
	mock.ExpectQuery("FROM payment_transactions").
		WithArgs(mtid).
		WillReturnRows(paymentTransactionRow(bookingID, mtid))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/status?merchantTransactionId="+mtid, nil)
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "could not be verified")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitiatePaymentEndpoint_Success(t *testing.T) {
	gateway := &stubGateway{redirectURL: "https://pay.phonepe.com/redirect/xyz"}
	handler, mock, cleanup := setupPaymentHandlerTest(t, gateway)
	defer cleanup()

	bookingID := uuid.New()
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(paymentBookingRow(bookingID, models.BookingPending, models.PaymentPending))
	mock.ExpectExec("INSERT INTO payment_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/bookings/%s/initiate-payment", bookingID), nil)
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.InitiatePaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "https://pay.phonepe.com/redirect/xyz", resp.RedirectURL)
	assert.True(t, strings.HasPrefix(resp.MerchantTransactionID, "MT"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitiatePaymentEndpoint_AlreadyPaid(t *testing.T) {
	handler, mock, cleanup := setupPaymentHandlerTest(t, &stubGateway{})
	defer cleanup()

	bookingID := uuid.New()
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(paymentBookingRow(bookingID, models.BookingConfirmed, models.PaymentPaid))

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/bookings/%s/initiate-payment", bookingID), nil)
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already paid")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEndpoint_ReconcilesFromCallback(t *testing.T) {
	handler, mock, cleanup := setupPaymentHandlerTest(t, &stubGateway{statusCode: models.PhonePeSuccess})
	defer cleanup()

	bookingID := uuid.New()
	mtid := "MT-webhook-1"

	mock.ExpectQuery("FROM payment_transactions").
		WithArgs(mtid).
		WillReturnRows(paymentTransactionRow(bookingID, mtid))
	mock.ExpectExec("payment_status = 'paid'").
		WithArgs(bookingID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payment_transactions").
		WithArgs(models.PhonePeSuccess, mtid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(paymentBookingRow(bookingID, models.BookingConfirmed, models.PaymentPaid))

	inner, _ := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{"merchantTransactionId": mtid},
	})
	body, _ := json.Marshal(map[string]string{
		"response": base64.StdEncoding.EncodeToString(inner),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"acknowledged":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEndpoint_UnreadableCallback(t *testing.T) {
	handler, mock, cleanup := setupPaymentHandlerTest(t, &stubGateway{})
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader("garbage"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	paymentRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
