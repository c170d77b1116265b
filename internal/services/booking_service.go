package services

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/database"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingService turns a validated booking intent into a persisted booking.
// It is the single authority for total_amount: the price always comes from
// the catalog, never from the client.
type BookingService struct {
	bookingRepo *database.BookingRepository
	catalogRepo *database.CatalogRepository
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookingRepo *database.BookingRepository,
	catalogRepo *database.CatalogRepository,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		catalogRepo: catalogRepo,
		logger:      logger,
	}
}

// CalculateTotalAmount is the pricing rule: per-person price times headcount.
func CalculateTotalAmount(pricePerPerson float64, totalPeople int) float64 {
	return pricePerPerson * float64(totalPeople)
}

// CreateBooking validates the intent, prices it from the catalog and writes
// the booking. userID is nil for guest bookings. All validation and
// consistency failures happen before any write.
func (s *BookingService) CreateBooking(userID *uuid.UUID, req *models.CreateBookingRequest) (uuid.UUID, error) {
	if verr := req.Validate(time.Now()); verr != nil {
		return uuid.Nil, verr
	}

	pkg, err := s.catalogRepo.GetActivePackage(*req.PackageID)
	if err != nil {
		return uuid.Nil, err
	}

	category, err := s.catalogRepo.GetCategory(*req.PackageCategoryID)
	if err != nil {
		return uuid.Nil, err
	}

	if category.PackageID != pkg.ID {
		return uuid.Nil, &models.ConsistencyError{Message: "category does not belong to package"}
	}

	pricePerPerson, err := strconv.ParseFloat(category.Price, 64)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"category_id": category.ID,
			"raw_price":   category.Price,
		}).Error("Catalog price is not numeric")
		return uuid.Nil, &models.PricingError{CategoryID: category.ID, RawPrice: category.Price}
	}

	totalAmount := CalculateTotalAmount(pricePerPerson, *req.TotalPeople)
	startDate, endDate := req.ParsedDates()

	booking := &models.Booking{
		UserID:            userID,
		PackageID:         pkg.ID,
		PackageCategoryID: category.ID,
		TotalPeople:       *req.TotalPeople,
		StartDate:         startDate,
		EndDate:           endDate,
		TotalAmount:       totalAmount,
		GuestName:         *req.GuestName,
		GuestEmail:        *req.GuestEmail,
		GuestPhone:        *req.GuestPhone,
		SpecialRequests:   req.SpecialRequests,
	}

	bookingID, err := s.bookingRepo.CreateBooking(booking)
	if err != nil {
		s.logger.WithError(err).Error("Failed to persist booking")
		return uuid.Nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   bookingID,
		"package_id":   pkg.ID,
		"category_id":  category.ID,
		"total_people": *req.TotalPeople,
		"total_amount": totalAmount,
		"guest":        userID == nil,
	}).Info("Booking created")

	return bookingID, nil
}

// GetBooking retrieves a booking for the confirmation view.
func (s *BookingService) GetBooking(bookingID uuid.UUID) (*models.Booking, error) {
	return s.bookingRepo.GetBookingByID(bookingID)
}

// ListUserBookings lists the caller's bookings, newest first.
func (s *BookingService) ListUserBookings(userID uuid.UUID, limit, offset int) ([]models.BookingListItem, error) {
	return s.bookingRepo.GetBookingsByUserID(userID, limit, offset)
}

// UpdateStatus advances the booking status via administrative or vendor
// action, checked against the transition table. Payment status is not
// reachable through this path.
func (s *BookingService) UpdateStatus(bookingID uuid.UUID, target models.BookingStatus) (*models.Booking, error) {
	if !target.IsValid() {
		return nil, &models.ValidationError{Fields: []models.FieldError{
			{Field: "status", Message: "unknown booking status"},
		}}
	}

	booking, err := s.bookingRepo.GetBookingByID(bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.Status.CanTransitionTo(target) {
		return nil, &models.InvalidTransitionError{
			Entity: "booking",
			From:   string(booking.Status),
			To:     string(target),
		}
	}

	moved, err := s.bookingRepo.UpdateStatus(bookingID, booking.Status, target)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Lost a race with a concurrent transition; the guarded write kept
		// the row consistent, so report it rather than retrying blindly.
		return nil, &models.ConsistencyError{Message: "booking status changed concurrently, please retry"}
	}

	booking.Status = target
	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"status":     target,
	}).Info("Booking status updated")

	return booking, nil
}
