package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/islandhop/travel-booking-backend/internal/config"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	phonePePayPath    = "/pg/v1/pay"
	phonePeStatusPath = "/pg/v1/status"
)

// PhonePeService handles payment gateway integration with PhonePe PG
type PhonePeService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// PhonePePayRequest is the payload base64-encoded into the pay call.
type PhonePePayRequest struct {
	MerchantID            string                   `json:"merchantId"`
	MerchantTransactionID string                   `json:"merchantTransactionId"`
	MerchantUserID        string                   `json:"merchantUserId,omitempty"`
	Amount                int64                    `json:"amount"` // paise
	RedirectURL           string                   `json:"redirectUrl"`
	RedirectMode          string                   `json:"redirectMode"`
	CallbackURL           string                   `json:"callbackUrl,omitempty"`
	PaymentInstrument     PhonePePaymentInstrument `json:"paymentInstrument"`
}

// PhonePePaymentInstrument selects the hosted payment page flow.
type PhonePePaymentInstrument struct {
	Type string `json:"type"`
}

// PhonePeResponse is the common envelope of PhonePe API responses.
type PhonePeResponse struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PhonePePayData carries the redirect target out of a pay response.
type PhonePePayData struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	InstrumentResponse    struct {
		Type         string `json:"type"`
		RedirectInfo struct {
			URL    string `json:"url"`
			Method string `json:"method"`
		} `json:"redirectInfo"`
	} `json:"instrumentResponse"`
}

// PhonePeStatusData carries the transaction state out of a status response.
type PhonePeStatusData struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount"` // paise
	State                 string `json:"state"`
	ResponseCode          string `json:"responseCode"`
}

// PhonePeStatusResult is the parsed outcome of a status check. Code is the
// gateway vocabulary (PAYMENT_SUCCESS, PAYMENT_PENDING, ...); mapping into
// internal buckets happens in models.MapPhonePeCode.
type PhonePeStatusResult struct {
	Code                  string
	Message               string
	MerchantTransactionID string
	TransactionID         string
	Amount                float64 // rupees
	RawPayload            map[string]interface{}
}

// NewPhonePeService creates a new PhonePe payment service
func NewPhonePeService(cfg *config.PaymentConfig, logger *logrus.Logger) *PhonePeService {
	return &PhonePeService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the gateway credentials are present
func (s *PhonePeService) IsConfigured() bool {
	return s.config.MerchantID != "" && s.config.SaltKey != ""
}

// checksum computes the X-VERIFY value: SHA256(data + saltKey) hex, suffixed
// with "###" and the salt index.
func (s *PhonePeService) checksum(data string) string {
	sum := sha256.Sum256([]byte(data + s.config.SaltKey))
	return hex.EncodeToString(sum[:]) + "###" + s.config.SaltIndex
}

// InitiatePayment registers the payment attempt with PhonePe and returns the
// hosted payment page URL the customer must be redirected to.
func (s *PhonePeService) InitiatePayment(mtid string, amount float64, merchantUserID string) (string, error) {
	if !s.IsConfigured() {
		return "", &models.GatewayError{Op: "initiate", Err: fmt.Errorf("gateway not configured: missing merchant credentials")}
	}

	payload := &PhonePePayRequest{
		MerchantID:            s.config.MerchantID,
		MerchantTransactionID: mtid,
		MerchantUserID:        merchantUserID,
		Amount:                rupeesToPaise(amount),
		RedirectURL:           s.config.RedirectURL,
		RedirectMode:          "REDIRECT",
		CallbackURL:           s.config.CallbackURL,
		PaymentInstrument:     PhonePePaymentInstrument{Type: "PAY_PAGE"},
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", &models.GatewayError{Op: "initiate", Err: fmt.Errorf("failed to marshal pay request: %w", err)}
	}
	encoded := base64.StdEncoding.EncodeToString(payloadJSON)

	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return "", &models.GatewayError{Op: "initiate", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"mtid":   mtid,
		"amount": amount,
	}).Info("Initiating PhonePe payment")

	req, err := http.NewRequest(http.MethodPost, s.config.BaseURL+phonePePayPath, bytes.NewBuffer(body))
	if err != nil {
		return "", &models.GatewayError{Op: "initiate", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", s.checksum(encoded+phonePePayPath))

	envelope, err := s.do(req, "initiate")
	if err != nil {
		return "", err
	}

	if !envelope.Success {
		return "", &models.GatewayError{Op: "initiate", Err: fmt.Errorf("gateway rejected pay request: %s %s", envelope.Code, envelope.Message)}
	}

	var data PhonePePayData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return "", &models.GatewayError{Op: "initiate", Err: fmt.Errorf("failed to parse pay response data: %w", err)}
	}
	redirectURL := data.InstrumentResponse.RedirectInfo.URL
	if redirectURL == "" {
		return "", &models.GatewayError{Op: "initiate", Err: fmt.Errorf("no redirect URL in pay response")}
	}

	s.logger.WithFields(logrus.Fields{
		"mtid":         mtid,
		"redirect_url": redirectURL,
	}).Info("PhonePe payment initiated")

	return redirectURL, nil
}

// CheckStatus queries the current status of a merchant transaction. A
// transport or parse failure yields a GatewayError; a reachable gateway
// reporting a failed payment does not.
func (s *PhonePeService) CheckStatus(mtid string) (*PhonePeStatusResult, error) {
	path := fmt.Sprintf("%s/%s/%s", phonePeStatusPath, s.config.MerchantID, mtid)

	req, err := http.NewRequest(http.MethodGet, s.config.BaseURL+path, nil)
	if err != nil {
		return nil, &models.GatewayError{Op: "status check", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", s.checksum(path))
	req.Header.Set("X-MERCHANT-ID", s.config.MerchantID)

	s.logger.WithField("mtid", mtid).Info("Checking PhonePe payment status")

	envelope, err := s.do(req, "status check")
	if err != nil {
		return nil, err
	}

	result := &PhonePeStatusResult{
		Code:                  envelope.Code,
		Message:               envelope.Message,
		MerchantTransactionID: mtid,
	}

	if len(envelope.Data) > 0 {
		var data PhonePeStatusData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, &models.GatewayError{Op: "status check", Err: fmt.Errorf("failed to parse status data: %w", err)}
		}
		if data.MerchantTransactionID != "" {
			result.MerchantTransactionID = data.MerchantTransactionID
		}
		result.TransactionID = data.TransactionID
		result.Amount = paiseToRupees(data.Amount)

		var raw map[string]interface{}
		if err := json.Unmarshal(envelope.Data, &raw); err == nil {
			result.RawPayload = raw
		}
	}

	if result.Code == "" {
		return nil, &models.GatewayError{Op: "status check", Err: fmt.Errorf("gateway response missing status code")}
	}

	s.logger.WithFields(logrus.Fields{
		"mtid": mtid,
		"code": result.Code,
	}).Info("PhonePe status received")

	return result, nil
}

// do executes a gateway request and decodes the common response envelope.
func (s *PhonePeService) do(req *http.Request, op string) (*PhonePeResponse, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("PhonePe request failed")
		return nil, &models.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.GatewayError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &models.GatewayError{Op: op, Err: fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))}
	}

	var envelope PhonePeResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.logger.WithFields(logrus.Fields{
			"body":  string(body),
			"error": err.Error(),
		}).Error("Failed to parse PhonePe response")
		return nil, &models.GatewayError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return &envelope, nil
}

func rupeesToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func paiseToRupees(paise int64) float64 {
	return float64(paise) / 100
}
