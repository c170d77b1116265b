package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/middleware"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/islandhop/travel-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles booking creation and retrieval
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		logger:         logger,
	}
}

// CreateBooking creates a new travel package booking
// @Summary Create a new booking
// @Description Create a booking for a travel package category. Works for
// @Description guests and authenticated users; the price is always computed
// @Description server-side from the catalog.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.CreateBookingResponse "Booking created successfully"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 404 {object} map[string]interface{} "Package or category not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	var userID *uuid.UUID
	if userCtx, exists := middleware.GetUserContext(c); exists {
		userID = &userCtx.UserID
	}

	bookingID, err := h.bookingService.CreateBooking(userID, &req)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.CreateBookingResponse{
		Message:   "Booking created successfully",
		BookingID: bookingID,
	})
}

// GetBooking retrieves a single booking by id
// @Summary Get booking details
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Router /api/v1/bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid booking id"})
		return
	}

	booking, err := h.bookingService.GetBooking(bookingID)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListBookings lists the authenticated user's bookings, newest first
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Security BearerAuth
// @Router /api/v1/bookings [get]
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	bookings, err := h.bookingService.ListUserBookings(userCtx.UserID, limit, offset)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
		"limit":    limit,
		"offset":   offset,
	})
}

// UpdateBookingStatus advances a booking's status
// @Summary Update booking status
// @Description Move a booking to a new status. Only transitions allowed by
// @Description the lifecycle are accepted; payment status is not writable here.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.UpdateBookingStatusRequest true "Target status"
// @Success 200 {object} models.Booking
// @Failure 400 {object} map[string]interface{} "Invalid transition"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/status [patch]
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid booking id"})
		return
	}

	var req models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	booking, err := h.bookingService.UpdateStatus(bookingID, req.Status)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// respondBookingError maps service errors onto HTTP responses. Client faults
// carry their message through; server faults are logged and answered with a
// generic message so internals never leak.
func (h *BookingHandler) respondBookingError(c *gin.Context, err error) {
	var (
		validationErr  *models.ValidationError
		notFoundErr    *models.NotFoundError
		consistencyErr *models.ConsistencyError
		transitionErr  *models.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"message": validationErr.Error(),
			"fields":  validationErr.Fields,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"message": notFoundErr.Error()})
	case errors.As(err, &consistencyErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": consistencyErr.Error()})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": transitionErr.Error()})
	default:
		h.logger.WithError(err).Error("Booking operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}
