package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING STATUSES
// ============================================================================

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// bookingTransitions is the closed transition table for booking status.
// completed and cancelled are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
	BookingCompleted: {},
	BookingCancelled: {},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransitionTo returns true if the transition table allows moving to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	return s.IsValid() && len(bookingTransitions[s]) == 0
}

// PaymentStatus represents the payment state of a booking. Transitions
// originate only from payment reconciliation, never from direct user action.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentPaid:    {},
	PaymentFailed:  {},
}

// IsValid returns true if the status is a recognized payment status.
func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// CanTransitionTo returns true if the transition table allows moving to target.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible.
func (s PaymentStatus) IsTerminal() bool {
	return s.IsValid() && len(paymentTransitions[s]) == 0
}

// ============================================================================
// BOOKING (bookings table)
// ============================================================================

// Booking represents a persisted booking record. total_amount is always
// computed server-side from the catalog price at creation time and is never
// recomputed afterwards.
type Booking struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	UserID            *uuid.UUID    `json:"user_id,omitempty" db:"user_id"`
	PackageID         int64         `json:"package_id" db:"package_id"`
	PackageCategoryID int64         `json:"package_category_id" db:"package_category_id"`
	TotalPeople       int           `json:"total_people" db:"total_people"`
	StartDate         time.Time     `json:"start_date" db:"start_date"`
	EndDate           time.Time     `json:"end_date" db:"end_date"`
	TotalAmount       float64       `json:"total_amount" db:"total_amount"`
	Status            BookingStatus `json:"status" db:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status" db:"payment_status"`
	GuestName         string        `json:"guest_name" db:"guest_name"`
	GuestEmail        string        `json:"guest_email" db:"guest_email"`
	GuestPhone        string        `json:"guest_phone" db:"guest_phone"`
	SpecialRequests   *string       `json:"special_requests,omitempty" db:"special_requests"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// IsPaid checks if the booking has been paid.
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentPaid
}

// CanBeCancelled checks if the booking can still be cancelled.
func (b *Booking) CanBeCancelled() bool {
	return b.Status.CanTransitionTo(BookingCancelled)
}

// ============================================================================
// CATALOG LOOKUPS (read-only external collaborators)
// ============================================================================

// TravelPackage is the read-only slice of the catalog the booking flow needs.
type TravelPackage struct {
	ID       int64  `json:"id" db:"id"`
	Title    string `json:"title" db:"title"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// PackageCategory is a priced variant of a package (e.g. room tier). The
// catalog stores the per-person price as text; the booking service parses it
// and treats a bad value as a data-integrity fault, not a client error.
type PackageCategory struct {
	ID        int64  `json:"id" db:"id"`
	PackageID int64  `json:"package_id" db:"package_id"`
	Name      string `json:"name" db:"name"`
	Price     string `json:"price" db:"price"`
}

// ============================================================================
// REQUEST/RESPONSE STRUCTS
// ============================================================================

const dateLayout = "2006-01-02"

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)
)

// CreateBookingRequest is the client-submitted booking intent. Pointer fields
// distinguish absent values from zero values so validation can report exactly
// which field is missing. Any client-supplied amount is deliberately not part
// of this struct: the server never reads it.
type CreateBookingRequest struct {
	PackageID         *int64  `json:"packageId"`
	PackageCategoryID *int64  `json:"packageCategoryId"`
	TotalPeople       *int    `json:"total_people"`
	StartDate         *string `json:"start_date"`
	EndDate           *string `json:"end_date"`
	GuestName         *string `json:"guest_name"`
	GuestEmail        *string `json:"guest_email"`
	GuestPhone        *string `json:"guest_phone"`
	SpecialRequests   *string `json:"special_requests"`
}

// Validate checks presence, types, formats and date logic of the intent.
// Pure: no lookups, no side effects. today is compared date-only.
func (r *CreateBookingRequest) Validate(today time.Time) *ValidationError {
	var fields []FieldError

	if r.PackageID == nil {
		fields = append(fields, FieldError{Field: "packageId", Message: "missing field packageId"})
	} else if *r.PackageID <= 0 {
		fields = append(fields, FieldError{Field: "packageId", Message: "packageId must be a positive integer"})
	}

	if r.PackageCategoryID == nil {
		fields = append(fields, FieldError{Field: "packageCategoryId", Message: "missing field packageCategoryId"})
	} else if *r.PackageCategoryID <= 0 {
		fields = append(fields, FieldError{Field: "packageCategoryId", Message: "packageCategoryId must be a positive integer"})
	}

	if r.TotalPeople == nil {
		fields = append(fields, FieldError{Field: "total_people", Message: "missing field total_people"})
	} else if *r.TotalPeople <= 0 {
		fields = append(fields, FieldError{Field: "total_people", Message: "total_people must be a positive integer"})
	}

	startDate, startErrs := validateDateField("start_date", r.StartDate)
	fields = append(fields, startErrs...)
	endDate, endErrs := validateDateField("end_date", r.EndDate)
	fields = append(fields, endErrs...)

	if !startDate.IsZero() {
		todayDate := truncateToDate(today)
		if startDate.Before(todayDate) {
			fields = append(fields, FieldError{Field: "start_date", Message: "start date in the past"})
		}
	}
	if !startDate.IsZero() && !endDate.IsZero() && !endDate.After(startDate) {
		fields = append(fields, FieldError{Field: "end_date", Message: "end date must be after start date"})
	}

	if r.GuestName == nil || *r.GuestName == "" {
		fields = append(fields, FieldError{Field: "guest_name", Message: "missing field guest_name"})
	} else if strings.TrimSpace(*r.GuestName) == "" {
		fields = append(fields, FieldError{Field: "guest_name", Message: "guest_name cannot be blank"})
	}

	if r.GuestEmail == nil || *r.GuestEmail == "" {
		fields = append(fields, FieldError{Field: "guest_email", Message: "missing field guest_email"})
	} else if !emailPattern.MatchString(*r.GuestEmail) {
		fields = append(fields, FieldError{Field: "guest_email", Message: "guest_email is not a valid email address"})
	}

	if r.GuestPhone == nil || *r.GuestPhone == "" {
		fields = append(fields, FieldError{Field: "guest_phone", Message: "missing field guest_phone"})
	} else if strings.TrimSpace(*r.GuestPhone) == "" {
		fields = append(fields, FieldError{Field: "guest_phone", Message: "guest_phone cannot be blank"})
	}

	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

// validateDateField enforces the strict YYYY-MM-DD format before attempting
// to parse, so "2026-1-5" or RFC3339 timestamps are rejected up front.
func validateDateField(name string, value *string) (time.Time, []FieldError) {
	if value == nil || *value == "" {
		return time.Time{}, []FieldError{{Field: name, Message: "missing field " + name}}
	}
	if !datePattern.MatchString(*value) {
		return time.Time{}, []FieldError{{Field: name, Message: name + " must be a date in YYYY-MM-DD format"}}
	}
	parsed, err := time.Parse(dateLayout, *value)
	if err != nil {
		return time.Time{}, []FieldError{{Field: name, Message: name + " is not a valid calendar date"}}
	}
	return parsed, nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParsedDates returns the validated start and end dates. Callers must run
// Validate first; invalid input yields zero times.
func (r *CreateBookingRequest) ParsedDates() (start, end time.Time) {
	if r.StartDate != nil {
		start, _ = time.Parse(dateLayout, *r.StartDate)
	}
	if r.EndDate != nil {
		end, _ = time.Parse(dateLayout, *r.EndDate)
	}
	return start, end
}

// CreateBookingResponse is returned after a successful booking creation.
type CreateBookingResponse struct {
	Message   string    `json:"message"`
	BookingID uuid.UUID `json:"booking_id"`
}

// UpdateBookingStatusRequest advances the booking status via administrative
// or vendor action. Payment status is never writable through this path.
type UpdateBookingStatusRequest struct {
	Status BookingStatus `json:"status" binding:"required"`
}

// BookingListItem is a summary row for listing a user's bookings.
type BookingListItem struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	PackageID     int64         `json:"package_id" db:"package_id"`
	TotalPeople   int           `json:"total_people" db:"total_people"`
	StartDate     time.Time     `json:"start_date" db:"start_date"`
	EndDate       time.Time     `json:"end_date" db:"end_date"`
	TotalAmount   float64       `json:"total_amount" db:"total_amount"`
	Status        BookingStatus `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}
