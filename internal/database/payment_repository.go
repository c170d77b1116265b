package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// PaymentRepository handles payment transaction records, keyed by merchant
// transaction id. One row per payment attempt, created at initiation.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateTransaction records a new payment attempt binding the mtid to its
// booking before the customer is redirected to the gateway.
func (r *PaymentRepository) CreateTransaction(txn *models.PaymentTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	query := `
		INSERT INTO payment_transactions (
			id, booking_id, merchant_transaction_id, amount, gateway,
			last_gateway_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	result, err := r.db.Exec(query,
		txn.ID, txn.BookingID, txn.MerchantTransactionID, txn.Amount, txn.Gateway,
		txn.LastGatewayStatus, txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		return &models.PersistenceError{Op: "failed to create payment transaction", Err: err}
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return &models.PersistenceError{Op: "failed to verify payment transaction insert", Err: err}
	}
	if rows != 1 {
		return &models.PersistenceError{Op: fmt.Sprintf("payment transaction insert affected %d rows", rows)}
	}
	return nil
}

// GetByMerchantTransactionID looks up the payment attempt for an mtid.
func (r *PaymentRepository) GetByMerchantTransactionID(mtid string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	query := `
		SELECT id, booking_id, merchant_transaction_id, amount, gateway,
		       last_gateway_status, created_at, updated_at, completed_at
		FROM payment_transactions
		WHERE merchant_transaction_id = $1`
	err := r.db.Get(&txn, query, mtid)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "transaction", Message: "unknown merchant transaction id"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}
	return &txn, nil
}

// ListUnsettled returns merchant transaction ids of payment attempts that
// never reached a terminal state and are older than the cutoff. Used by the
// maintenance sweeper to reconcile payments whose customer never returned
// and whose webhook never arrived.
func (r *PaymentRepository) ListUnsettled(olderThan time.Time, limit int) ([]string, error) {
	mtids := []string{}
	query := `
		SELECT merchant_transaction_id
		FROM payment_transactions
		WHERE completed_at IS NULL AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	if err := r.db.Select(&mtids, query, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list unsettled transactions: %w", err)
	}
	return mtids, nil
}

// RecordGatewayStatus stores the most recent status observed from the
// gateway. Terminal observations also stamp completed_at, once.
func (r *PaymentRepository) RecordGatewayStatus(mtid, gatewayStatus string, terminal bool) error {
	var query string
	if terminal {
		query = `
			UPDATE payment_transactions
			SET last_gateway_status = $1,
			    completed_at = COALESCE(completed_at, NOW()),
			    updated_at = NOW()
			WHERE merchant_transaction_id = $2`
	} else {
		query = `
			UPDATE payment_transactions
			SET last_gateway_status = $1, updated_at = NOW()
			WHERE merchant_transaction_id = $2`
	}
	if _, err := r.db.Exec(query, gatewayStatus, mtid); err != nil {
		return fmt.Errorf("failed to record gateway status: %w", err)
	}
	return nil
}
