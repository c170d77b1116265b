package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated           PaymentEventType = "payment_initiated"
	PaymentEventInitiateFailed      PaymentEventType = "payment_initiation_failed"
	PaymentEventStatusCheckRequest  PaymentEventType = "status_check_request"
	PaymentEventStatusCheckResponse PaymentEventType = "status_check_response"
	PaymentEventWebhookReceived     PaymentEventType = "webhook_received"
	PaymentEventSuccess             PaymentEventType = "payment_success"
	PaymentEventFailed              PaymentEventType = "payment_failed"
	PaymentEventBookingConfirmed    PaymentEventType = "booking_confirmed"
	PaymentEventError               PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend        PaymentEventSource = "backend"
	PaymentSourceGatewayAPI     PaymentEventSource = "phonepe_api"
	PaymentSourceGatewayWebhook PaymentEventSource = "phonepe_webhook"
	PaymentSourceClientPoll     PaymentEventSource = "client_poll"
)

// JSONB stores a JSON object column.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// PaymentAudit is an immutable audit log entry for payment events. Every
// gateway interaction gets a row; rows are never updated or deleted.
type PaymentAudit struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	BookingID             *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	MerchantTransactionID *string    `json:"merchant_transaction_id,omitempty" db:"merchant_transaction_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amount tracking for verification against gateway reports
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	GatewayStatus *string `json:"gateway_status,omitempty" db:"gateway_status"`

	ResponsePayload JSONB   `json:"response_payload,omitempty" db:"response_payload"`
	ErrorMessage    *string `json:"error_message,omitempty" db:"error_message"`

	// Request metadata
	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	ClientInfo *string `json:"client_info,omitempty" db:"client_info"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates an audit entry with the required fields set.
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking reference.
func (pa *PaymentAudit) SetBooking(bookingID uuid.UUID) *PaymentAudit {
	pa.BookingID = &bookingID
	return pa
}

// SetMerchantTransactionID sets the gateway correlation id.
func (pa *PaymentAudit) SetMerchantTransactionID(mtid string) *PaymentAudit {
	pa.MerchantTransactionID = &mtid
	return pa
}

// SetAmounts records expected vs received amounts and returns whether they
// match within a cent.
func (pa *PaymentAudit) SetAmounts(expected, received float64) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	diff := expected - received
	if diff < 0 {
		diff = -diff
	}
	match := diff < 0.01
	pa.AmountsMatch = &match
	return match
}

// SetGatewayStatus records the raw gateway status code.
func (pa *PaymentAudit) SetGatewayStatus(status string) *PaymentAudit {
	pa.GatewayStatus = &status
	return pa
}

// SetError records error information.
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetResponsePayload stores the parsed gateway response.
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetClientMetadata records where the triggering request came from.
func (pa *PaymentAudit) SetClientMetadata(ip, clientInfo string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if clientInfo != "" {
		pa.ClientInfo = &clientInfo
	}
	return pa
}
