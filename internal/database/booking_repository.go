package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// BookingRepository handles booking database operations. It is the only
// write path into the bookings table.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateBooking inserts a new booking in state (pending, pending) and returns
// its id. The insert must affect exactly one row; anything else is a
// persistence fault.
func (r *BookingRepository) CreateBooking(booking *models.Booking) (uuid.UUID, error) {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.Status = models.BookingPending
	booking.PaymentStatus = models.PaymentPending
	booking.CreatedAt = now
	booking.UpdatedAt = now

	query := `
		INSERT INTO bookings (
			id, user_id, package_id, package_category_id,
			total_people, start_date, end_date, total_amount,
			status, payment_status,
			guest_name, guest_email, guest_phone, special_requests,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14,
			$15, $16
		)`

	result, err := r.db.Exec(query,
		booking.ID, booking.UserID, booking.PackageID, booking.PackageCategoryID,
		booking.TotalPeople, booking.StartDate, booking.EndDate, booking.TotalAmount,
		booking.Status, booking.PaymentStatus,
		booking.GuestName, booking.GuestEmail, booking.GuestPhone, booking.SpecialRequests,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		// The catalog rows were checked before this insert; a foreign key
		// violation means they were removed in between, which is a retryable
		// consistency fault rather than a persistence fault.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return uuid.Nil, &models.ConsistencyError{Message: "package or category no longer exists, please retry"}
		}
		return uuid.Nil, &models.PersistenceError{Op: "failed to create booking", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return uuid.Nil, &models.PersistenceError{Op: "failed to verify booking insert", Err: err}
	}
	if rows != 1 {
		return uuid.Nil, &models.PersistenceError{Op: fmt.Sprintf("booking insert affected %d rows", rows)}
	}

	return booking.ID, nil
}

// GetBookingByID retrieves a booking by id.
func (r *BookingRepository) GetBookingByID(bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `
		SELECT id, user_id, package_id, package_category_id,
		       total_people, start_date, end_date, total_amount,
		       status, payment_status,
		       guest_name, guest_email, guest_phone, special_requests,
		       created_at, updated_at
		FROM bookings
		WHERE id = $1`
	err := r.db.Get(&booking, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "booking"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetBookingsByUserID lists a user's bookings, newest first.
func (r *BookingRepository) GetBookingsByUserID(userID uuid.UUID, limit, offset int) ([]models.BookingListItem, error) {
	bookings := []models.BookingListItem{}
	query := `
		SELECT id, package_id, total_people, start_date, end_date,
		       total_amount, status, payment_status, created_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	err := r.db.Select(&bookings, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// UpdateStatus applies a booking status transition as a guarded write: the
// row is only updated if it is still in the expected previous state, so a
// concurrent transition cannot be overwritten. Returns true if the row moved.
func (r *BookingRepository) UpdateStatus(bookingID uuid.UUID, from, to models.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`
	result, err := r.db.Exec(query, to, bookingID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to verify status update: %w", err)
	}
	return rows == 1, nil
}

// MarkPaymentPaid applies the payment success transition: payment_status
// pending -> paid, and status pending -> confirmed if still pending. The
// WHERE clause guards against double application; a second delivery of the
// same outcome affects zero rows and returns false.
func (r *BookingRepository) MarkPaymentPaid(bookingID uuid.UUID) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'paid',
		    status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`
	result, err := r.db.Exec(query, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking paid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to verify paid update: %w", err)
	}
	return rows == 1, nil
}

// MarkPaymentFailed applies the payment failure transition: payment_status
// pending -> failed. Booking status is left untouched for manual follow-up.
func (r *BookingRepository) MarkPaymentFailed(bookingID uuid.UUID) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`
	result, err := r.db.Exec(query, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking payment failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to verify failed update: %w", err)
	}
	return rows == 1, nil
}
