package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/database"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/islandhop/travel-booking-backend/internal/services"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupBookingHandlerTest(t *testing.T) (*BookingHandler, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	service := services.NewBookingService(
		database.NewBookingRepository(sqlxDB),
		database.NewCatalogRepository(sqlxDB),
		testLogger(),
	)
	handler := NewBookingHandler(service, testLogger())

	cleanup := func() {
		db.Close()
	}
	return handler, mock, cleanup
}

func bookingRouter(handler *BookingHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/bookings", handler.CreateBooking)
	router.GET("/api/v1/bookings/:id", handler.GetBooking)
	router.PATCH("/api/v1/bookings/:id/status", handler.UpdateBookingStatus)
	return router
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func validBookingBody() map[string]interface{} {
	return map[string]interface{}{
		"packageId":         12,
		"packageCategoryId": 45,
		"total_people":      3,
		"start_date":        futureDate(10),
		"end_date":          futureDate(14),
		"guest_name":        "Nimal Perera",
		"guest_email":       "nimal@example.com",
		"guest_phone":       "+94771234567",
	}
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateBookingEndpoint_Success(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, title, is_active").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_active"}).
			AddRow(12, "Ella Highlands Escape", true))
	mock.ExpectQuery("SELECT id, package_id, name, price").
		WithArgs(int64(45)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "package_id", "name", "price"}).
			AddRow(45, 12, "Deluxe Double", "1500.50"))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(bookingRouter(handler), "/api/v1/bookings", validBookingBody())

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp models.CreateBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Booking created successfully", resp.Message)
	assert.NotEqual(t, uuid.Nil, resp.BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingEndpoint_ValidationErrors(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	body := validBookingBody()
	delete(body, "guest_email")
	body["start_date"] = "2020-01-01"

	w := postJSON(bookingRouter(handler), "/api/v1/bookings", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Message string              `json:"message"`
		Fields  []models.FieldError `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "missing field guest_email")
	assert.Contains(t, resp.Message, "start date in the past")
	assert.NotEmpty(t, resp.Fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingEndpoint_ClientAmountIgnored(t *testing.T) {
	// A client-supplied amount is not part of the request contract; the
	// booking is priced from the catalog regardless.
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	body := validBookingBody()
	body["total_amount"] = 0.01

	mock.ExpectQuery("SELECT id, title, is_active").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_active"}).
			AddRow(12, "Ella Highlands Escape", true))
	mock.ExpectQuery("SELECT id, package_id, name, price").
		WithArgs(int64(45)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "package_id", "name", "price"}).
			AddRow(45, 12, "Deluxe Double", "1500.50"))
	// The persisted total is the catalog price times headcount, not the 0.01
	// the client sent.
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(
			sqlmock.AnyArg(), nil, int64(12), int64(45),
			3, sqlmock.AnyArg(), sqlmock.AnyArg(), 4501.50,
			models.BookingPending, models.PaymentPending,
			"Nimal Perera", "nimal@example.com", "+94771234567", nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(bookingRouter(handler), "/api/v1/bookings", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingEndpoint_CatalogChangedMidCreate(t *testing.T) {
	// The category vanishing between the pre-insert check and the insert is
	// a client-retryable 400, not a server fault.
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, title, is_active").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_active"}).
			AddRow(12, "Ella Highlands Escape", true))
	mock.ExpectQuery("SELECT id, package_id, name, price").
		WithArgs(int64(45)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "package_id", "name", "price"}).
			AddRow(45, 12, "Deluxe Double", "1500.50"))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "bookings_package_category_id_fkey"})

	w := postJSON(bookingRouter(handler), "/api/v1/bookings", validBookingBody())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no longer exists")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingEndpoint_UnknownPackage(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, title, is_active").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_active"}))

	w := postJSON(bookingRouter(handler), "/api/v1/bookings", validBookingBody())

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "package not found or inactive")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingEndpoint_CategoryMismatch(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, title, is_active").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_active"}).
			AddRow(12, "Ella Highlands Escape", true))
	mock.ExpectQuery("SELECT id, package_id, name, price").
		WithArgs(int64(45)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "package_id", "name", "price"}).
			AddRow(45, 99, "Deluxe Double", "1500.50"))

	w := postJSON(bookingRouter(handler), "/api/v1/bookings", validBookingBody())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "category does not belong to package")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingEndpoint_PricingFaultIsGeneric500(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, title, is_active").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_active"}).
			AddRow(12, "Ella Highlands Escape", true))
	mock.ExpectQuery("SELECT id, package_id, name, price").
		WithArgs(int64(45)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "package_id", "name", "price"}).
			AddRow(45, 12, "Deluxe Double", "contact sales"))

	w := postJSON(bookingRouter(handler), "/api/v1/bookings", validBookingBody())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// The raw price never reaches the client.
	assert.NotContains(t, w.Body.String(), "contact sales")
	assert.Contains(t, w.Body.String(), "Internal server error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingEndpoint_MalformedJSON(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	router := bookingRouter(handler)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingEndpoint_NotFound(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	bookingID := uuid.New()
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/bookings/%s", bookingID), nil)
	w := httptest.NewRecorder()
	bookingRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingEndpoint_InvalidID(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/not-a-uuid", nil)
	w := httptest.NewRecorder()
	bookingRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookingStatusEndpoint_InvalidTransition(t *testing.T) {
	handler, mock, cleanup := setupBookingHandlerTest(t)
	defer cleanup()

	bookingID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "package_id", "package_category_id",
			"total_people", "start_date", "end_date", "total_amount",
			"status", "payment_status",
			"guest_name", "guest_email", "guest_phone", "special_requests",
			"created_at", "updated_at",
		}).AddRow(
			bookingID, nil, 12, 45,
			3, now, now.AddDate(0, 0, 4), 4501.50,
			models.BookingCancelled, models.PaymentFailed,
			"Nimal Perera", "nimal@example.com", "+94771234567", nil,
			now, now,
		))

	body := map[string]string{"status": "confirmed"}
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/status", bookingID), bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	bookingRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid booking transition")
	assert.NoError(t, mock.ExpectationsWereMet())
}
