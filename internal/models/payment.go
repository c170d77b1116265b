package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// GATEWAY OUTCOME
// ============================================================================

// GatewayOutcome is the normalized bucket a gateway-specific status code maps
// into. The reconciliation flow only ever reasons about these three values;
// the raw provider codes stay at the edge.
type GatewayOutcome string

const (
	OutcomeSuccess GatewayOutcome = "success"
	OutcomePending GatewayOutcome = "pending"
	OutcomeFailure GatewayOutcome = "failure"
)

// PhonePe status codes observed on the status check API.
const (
	PhonePeSuccess     = "PAYMENT_SUCCESS"
	PhonePePending     = "PAYMENT_PENDING"
	PhonePeError       = "PAYMENT_ERROR"
	PhonePeDeclined    = "PAYMENT_DECLINED"
	PhonePeTimedOut    = "TIMED_OUT"
	PhonePeTxnNotFound = "TRANSACTION_NOT_FOUND"
	PhonePeInternalErr = "INTERNAL_SERVER_ERROR"
)

// phonePeOutcomes maps PhonePe status codes into the internal buckets. The
// bucket semantics are fixed; the code set is provider-specific and
// replaceable when integrating another gateway.
var phonePeOutcomes = map[string]GatewayOutcome{
	PhonePeSuccess:     OutcomeSuccess,
	PhonePePending:     OutcomePending,
	PhonePeError:       OutcomeFailure,
	PhonePeDeclined:    OutcomeFailure,
	PhonePeTimedOut:    OutcomeFailure,
	PhonePeTxnNotFound: OutcomeFailure,
	PhonePeInternalErr: OutcomeFailure,
}

// MapPhonePeCode buckets a PhonePe status code. Unrecognized codes are
// treated as terminal failures rather than retried forever.
func MapPhonePeCode(code string) GatewayOutcome {
	if outcome, ok := phonePeOutcomes[code]; ok {
		return outcome
	}
	return OutcomeFailure
}

// ============================================================================
// PAYMENT TRANSACTION (payment_transactions table)
// ============================================================================

// PaymentTransaction associates a booking with a gateway transaction. Exactly
// one booking per merchant transaction id, created at payment initiation.
// last_gateway_status records the most recent status observed from the
// gateway; applying the same observed status twice is a no-op.
type PaymentTransaction struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	BookingID             uuid.UUID  `json:"booking_id" db:"booking_id"`
	MerchantTransactionID string     `json:"merchant_transaction_id" db:"merchant_transaction_id"`
	Amount                float64    `json:"amount" db:"amount"`
	Gateway               string     `json:"gateway" db:"gateway"`
	LastGatewayStatus     *string    `json:"last_gateway_status,omitempty" db:"last_gateway_status"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// NewMerchantTransactionID generates a fresh mtid for a payment attempt.
func NewMerchantTransactionID() string {
	return "MT" + uuid.New().String()
}

// ============================================================================
// REQUEST/RESPONSE STRUCTS
// ============================================================================

// InitiatePaymentResponse carries the gateway redirect for the client.
type InitiatePaymentResponse struct {
	Success               bool    `json:"success"`
	MerchantTransactionID string  `json:"merchantTransactionId"`
	RedirectURL           string  `json:"redirectUrl"`
	Amount                float64 `json:"amount"`
}

// PaymentStatusResponse is the normalized result of a reconciliation check.
// Field presence depends on the outcome, matching what the client poller and
// the confirmation view need.
type PaymentStatusResponse struct {
	Success               bool           `json:"success"`
	MerchantTransactionID string         `json:"merchantTransactionId,omitempty"`
	PhonePePaymentStatus  string         `json:"phonePePaymentStatus,omitempty"`
	PhonePeCode           string         `json:"phonePeCode,omitempty"`
	BookingStatus         *BookingStatus `json:"bookingStatus,omitempty"`
	PaymentStatus         *PaymentStatus `json:"paymentStatus,omitempty"`
	Message               string         `json:"message"`
}

// ReconciliationResult is the service-level outcome of applying one observed
// gateway status to a booking.
type ReconciliationResult struct {
	Outcome               GatewayOutcome
	MerchantTransactionID string
	GatewayCode           string
	GatewayMessage        string
	BookingID             uuid.UUID
	BookingStatus         BookingStatus
	PaymentStatus         PaymentStatus
	// AlreadyApplied is true when the booking was in a terminal payment state
	// before this call; the response is success-shaped but no side effects ran.
	AlreadyApplied bool
}
