package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry.
// This should NEVER fail silently - payment events must be logged.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, merchant_transaction_id,
			event_type, event_source,
			expected_amount, received_amount, amounts_match,
			gateway_status, response_payload, error_message,
			ip_address, client_info, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.MerchantTransactionID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.AmountsMatch,
		audit.GatewayStatus, audit.ResponsePayload, audit.ErrorMessage,
		audit.IPAddress, audit.ClientInfo, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":   audit.EventType,
			"event_source": audit.EventSource,
		}).Error("Failed to write payment audit entry")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	return nil
}

// GetByMerchantTransactionID returns audit entries for an mtid, oldest first.
func (r *PaymentAuditRepository) GetByMerchantTransactionID(ctx context.Context, mtid string, limit int) ([]models.PaymentAudit, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	audits := []models.PaymentAudit{}
	query := `
		SELECT id, booking_id, merchant_transaction_id,
		       event_type, event_source,
		       expected_amount, received_amount, amounts_match,
		       gateway_status, response_payload, error_message,
		       ip_address, client_info, created_at
		FROM payment_audits
		WHERE merchant_transaction_id = $1
		ORDER BY created_at ASC
		LIMIT $2`
	err := r.db.SelectContext(ctx, &audits, query, mtid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment audits: %w", err)
	}
	return audits, nil
}
