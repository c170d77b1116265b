package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/islandhop/travel-booking-backend/internal/database"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentGateway is the gateway surface the payment flow depends on.
// PhonePeService is the production implementation; tests substitute fakes.
type PaymentGateway interface {
	InitiatePayment(mtid string, amount float64, merchantUserID string) (string, error)
	CheckStatus(mtid string) (*PhonePeStatusResult, error)
}

// ClientMeta carries request metadata into the audit trail.
type ClientMeta struct {
	IP         string
	ClientInfo string
}

// PaymentService owns the payment lifecycle of a booking: initiating a
// gateway transaction and reconciling the gateway's outcome back into the
// booking's payment state. All state updates are guarded writes, so
// concurrent deliveries of the same outcome (duplicate tabs, webhook racing
// a poll) collapse into one transition.
type PaymentService struct {
	bookingRepo *database.BookingRepository
	paymentRepo *database.PaymentRepository
	auditRepo   *database.PaymentAuditRepository
	gateway     PaymentGateway
	logger      *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	bookingRepo *database.BookingRepository,
	paymentRepo *database.PaymentRepository,
	auditRepo *database.PaymentAuditRepository,
	gateway PaymentGateway,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		gateway:     gateway,
		logger:      logger,
	}
}

// InitiatePayment generates a merchant transaction id, binds it to the
// booking and registers the attempt with the gateway. Returns the hosted
// payment page URL for the client redirect.
func (s *PaymentService) InitiatePayment(ctx context.Context, bookingID uuid.UUID, meta ClientMeta) (*models.InitiatePaymentResponse, error) {
	booking, err := s.bookingRepo.GetBookingByID(bookingID)
	if err != nil {
		return nil, err
	}

	if booking.PaymentStatus != models.PaymentPending {
		return nil, &models.ConsistencyError{
			Message: "booking payment is already " + string(booking.PaymentStatus),
		}
	}

	mtid := models.NewMerchantTransactionID()
	txn := &models.PaymentTransaction{
		BookingID:             booking.ID,
		MerchantTransactionID: mtid,
		Amount:                booking.TotalAmount,
		Gateway:               "phonepe",
	}
	if err := s.paymentRepo.CreateTransaction(txn); err != nil {
		return nil, err
	}

	merchantUserID := "guest"
	if booking.UserID != nil {
		merchantUserID = booking.UserID.String()
	}

	redirectURL, err := s.gateway.InitiatePayment(mtid, booking.TotalAmount, merchantUserID)
	if err != nil {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventInitiateFailed, models.PaymentSourceBackend).
			SetBooking(booking.ID).
			SetMerchantTransactionID(mtid).
			SetError(err.Error()).
			SetClientMetadata(meta.IP, meta.ClientInfo))
		return nil, err
	}

	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetBooking(booking.ID).
		SetMerchantTransactionID(mtid).
		SetClientMetadata(meta.IP, meta.ClientInfo))

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"mtid":       mtid,
		"amount":     booking.TotalAmount,
	}).Info("Payment initiated")

	return &models.InitiatePaymentResponse{
		Success:               true,
		MerchantTransactionID: mtid,
		RedirectURL:           redirectURL,
		Amount:                booking.TotalAmount,
	}, nil
}

// Reconcile pulls the gateway's authoritative status for the mtid and applies
// it to the associated booking. Safe under concurrent invocation for the
// same mtid: a call observing an already-terminal state is a no-op that still
// reports the terminal outcome.
func (s *PaymentService) Reconcile(ctx context.Context, mtid string, source models.PaymentEventSource, meta ClientMeta) (*models.ReconciliationResult, error) {
	txn, err := s.paymentRepo.GetByMerchantTransactionID(mtid)
	if err != nil {
		return nil, err
	}

	status, err := s.gateway.CheckStatus(mtid)
	if err != nil {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventError, source).
			SetBooking(txn.BookingID).
			SetMerchantTransactionID(mtid).
			SetError(err.Error()).
			SetClientMetadata(meta.IP, meta.ClientInfo))
		return nil, err
	}

	outcome := models.MapPhonePeCode(status.Code)

	responseAudit := models.NewPaymentAudit(models.PaymentEventStatusCheckResponse, source).
		SetBooking(txn.BookingID).
		SetMerchantTransactionID(mtid).
		SetGatewayStatus(status.Code).
		SetResponsePayload(status.RawPayload).
		SetClientMetadata(meta.IP, meta.ClientInfo)
	if status.Amount > 0 {
		if !responseAudit.SetAmounts(txn.Amount, status.Amount) {
			s.logger.WithFields(logrus.Fields{
				"mtid":     mtid,
				"expected": txn.Amount,
				"received": status.Amount,
			}).Warn("Gateway reported amount differs from payment transaction")
		}
	}
	s.audit(ctx, responseAudit)

	switch outcome {
	case models.OutcomeSuccess:
		return s.applySuccess(ctx, txn, status, source, meta)
	case models.OutcomePending:
		if err := s.paymentRepo.RecordGatewayStatus(mtid, status.Code, false); err != nil {
			s.logger.WithError(err).Warn("Failed to record pending gateway status")
		}
		return &models.ReconciliationResult{
			Outcome:               models.OutcomePending,
			MerchantTransactionID: mtid,
			GatewayCode:           status.Code,
			GatewayMessage:        status.Message,
			BookingID:             txn.BookingID,
			PaymentStatus:         models.PaymentPending,
		}, nil
	default:
		return s.applyFailure(ctx, txn, status, source, meta)
	}
}

func (s *PaymentService) applySuccess(ctx context.Context, txn *models.PaymentTransaction, status *PhonePeStatusResult, source models.PaymentEventSource, meta ClientMeta) (*models.ReconciliationResult, error) {
	applied, err := s.bookingRepo.MarkPaymentPaid(txn.BookingID)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.RecordGatewayStatus(txn.MerchantTransactionID, status.Code, true); err != nil {
		s.logger.WithError(err).Warn("Failed to record terminal gateway status")
	}

	booking, err := s.bookingRepo.GetBookingByID(txn.BookingID)
	if err != nil {
		return nil, err
	}

	if applied {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventSuccess, source).
			SetBooking(txn.BookingID).
			SetMerchantTransactionID(txn.MerchantTransactionID).
			SetGatewayStatus(status.Code).
			SetClientMetadata(meta.IP, meta.ClientInfo))
		if booking.Status == models.BookingConfirmed {
			s.audit(ctx, models.NewPaymentAudit(models.PaymentEventBookingConfirmed, source).
				SetBooking(txn.BookingID).
				SetMerchantTransactionID(txn.MerchantTransactionID).
				SetClientMetadata(meta.IP, meta.ClientInfo))
		}
		s.logger.WithFields(logrus.Fields{
			"booking_id": txn.BookingID,
			"mtid":       txn.MerchantTransactionID,
		}).Info("Payment confirmed, booking updated")
	} else if !booking.IsPaid() {
		// Guarded write found the row outside pending, yet it is not paid:
		// the gateway reports success for a payment we recorded as failed.
		s.logger.WithFields(logrus.Fields{
			"booking_id":     txn.BookingID,
			"mtid":           txn.MerchantTransactionID,
			"payment_status": booking.PaymentStatus,
		}).Error("Gateway success conflicts with terminal local payment state")
		return nil, &models.ConsistencyError{
			Message: "payment already recorded as " + string(booking.PaymentStatus),
		}
	}

	return &models.ReconciliationResult{
		Outcome:               models.OutcomeSuccess,
		MerchantTransactionID: txn.MerchantTransactionID,
		GatewayCode:           status.Code,
		GatewayMessage:        status.Message,
		BookingID:             booking.ID,
		BookingStatus:         booking.Status,
		PaymentStatus:         booking.PaymentStatus,
		AlreadyApplied:        !applied,
	}, nil
}

func (s *PaymentService) applyFailure(ctx context.Context, txn *models.PaymentTransaction, status *PhonePeStatusResult, source models.PaymentEventSource, meta ClientMeta) (*models.ReconciliationResult, error) {
	applied, err := s.bookingRepo.MarkPaymentFailed(txn.BookingID)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.RecordGatewayStatus(txn.MerchantTransactionID, status.Code, true); err != nil {
		s.logger.WithError(err).Warn("Failed to record terminal gateway status")
	}

	booking, err := s.bookingRepo.GetBookingByID(txn.BookingID)
	if err != nil {
		return nil, err
	}

	if applied {
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventFailed, source).
			SetBooking(txn.BookingID).
			SetMerchantTransactionID(txn.MerchantTransactionID).
			SetGatewayStatus(status.Code).
			SetClientMetadata(meta.IP, meta.ClientInfo))
		s.logger.WithFields(logrus.Fields{
			"booking_id": txn.BookingID,
			"mtid":       txn.MerchantTransactionID,
			"code":       status.Code,
		}).Info("Payment failed, booking payment status updated")
	} else if booking.IsPaid() {
		// Late or contradictory failure report for a payment we already
		// applied as paid. The paid state wins; surface the stored truth.
		s.logger.WithFields(logrus.Fields{
			"booking_id": txn.BookingID,
			"mtid":       txn.MerchantTransactionID,
			"code":       status.Code,
		}).Warn("Gateway failure report for already-paid booking ignored")
		return &models.ReconciliationResult{
			Outcome:               models.OutcomeSuccess,
			MerchantTransactionID: txn.MerchantTransactionID,
			GatewayCode:           status.Code,
			BookingID:             booking.ID,
			BookingStatus:         booking.Status,
			PaymentStatus:         booking.PaymentStatus,
			AlreadyApplied:        true,
		}, nil
	}

	return &models.ReconciliationResult{
		Outcome:               models.OutcomeFailure,
		MerchantTransactionID: txn.MerchantTransactionID,
		GatewayCode:           status.Code,
		GatewayMessage:        status.Message,
		BookingID:             booking.ID,
		BookingStatus:         booking.Status,
		PaymentStatus:         booking.PaymentStatus,
		AlreadyApplied:        !applied,
	}, nil
}

// audit writes an audit entry; failures are logged, never propagated, so a
// broken audit table cannot block payment processing.
func (s *PaymentService) audit(ctx context.Context, entry *models.PaymentAudit) {
	if s.auditRepo == nil {
		return
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).Warn("Payment audit write failed")
	}
}
