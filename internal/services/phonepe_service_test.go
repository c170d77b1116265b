package services

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/islandhop/travel-booking-backend/internal/config"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phonePeTestConfig(baseURL string) *config.PaymentConfig {
	return &config.PaymentConfig{
		BaseURL:     baseURL,
		MerchantID:  "MERCHANTTEST",
		SaltKey:     "test-salt-key",
		SaltIndex:   "1",
		RedirectURL: "https://app.example.com/payment/return",
		CallbackURL: "https://api.example.com/api/v1/payments/webhook",
	}
}

func TestChecksum(t *testing.T) {
	service := NewPhonePeService(phonePeTestConfig("http://unused"), testLogger())

	got := service.checksum("payload/pg/v1/pay")
	sum := sha256.Sum256([]byte("payload/pg/v1/pay" + "test-salt-key"))
	want := hex.EncodeToString(sum[:]) + "###1"
	assert.Equal(t, want, got)
}

func TestInitiatePayment_SendsSignedPayRequest(t *testing.T) {
	var gotVerify, gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVerify = r.Header.Get("X-VERIFY")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"code":    "PAYMENT_INITIATED",
			"message": "Payment initiated",
			"data": map[string]interface{}{
				"merchantTransactionId": "MT-abc",
				"instrumentResponse": map[string]interface{}{
					"type": "PAY_PAGE",
					"redirectInfo": map[string]interface{}{
						"url":    "https://pay.phonepe.com/redirect/xyz",
						"method": "GET",
					},
				},
			},
		})
	}))
	defer server.Close()

	service := NewPhonePeService(phonePeTestConfig(server.URL), testLogger())

	redirectURL, err := service.InitiatePayment("MT-abc", 4501.50, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.phonepe.com/redirect/xyz", redirectURL)
	assert.Equal(t, "/pg/v1/pay", gotPath)

	// The checksum must cover the base64 payload plus the API path.
	encoded := gotBody["request"]
	require.NotEmpty(t, encoded)
	assert.Equal(t, service.checksum(encoded+"/pg/v1/pay"), gotVerify)

	// The signed payload carries the amount in paise.
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	var payload PhonePePayRequest
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, int64(450150), payload.Amount)
	assert.Equal(t, "MERCHANTTEST", payload.MerchantID)
	assert.Equal(t, "PAY_PAGE", payload.PaymentInstrument.Type)
}

func TestInitiatePayment_NotConfigured(t *testing.T) {
	cfg := phonePeTestConfig("http://unused")
	cfg.MerchantID = ""
	service := NewPhonePeService(cfg, testLogger())

	_, err := service.InitiatePayment("MT-abc", 100, "user-1")
	var gerr *models.GatewayError
	require.True(t, errors.As(err, &gerr))
}

func TestCheckStatus_Success(t *testing.T) {
	var gotPath, gotVerify, gotMerchant string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVerify = r.Header.Get("X-VERIFY")
		gotMerchant = r.Header.Get("X-MERCHANT-ID")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"code":    "PAYMENT_SUCCESS",
			"message": "Your payment is successful.",
			"data": map[string]interface{}{
				"merchantId":            "MERCHANTTEST",
				"merchantTransactionId": "MT-abc",
				"transactionId":         "T2408151230",
				"amount":                450150,
				"state":                 "COMPLETED",
				"responseCode":          "SUCCESS",
			},
		})
	}))
	defer server.Close()

	service := NewPhonePeService(phonePeTestConfig(server.URL), testLogger())

	result, err := service.CheckStatus("MT-abc")
	require.NoError(t, err)
	assert.Equal(t, "PAYMENT_SUCCESS", result.Code)
	assert.Equal(t, "MT-abc", result.MerchantTransactionID)
	assert.Equal(t, "T2408151230", result.TransactionID)
	assert.Equal(t, 4501.50, result.Amount)
	assert.NotNil(t, result.RawPayload)

	assert.Equal(t, "/pg/v1/status/MERCHANTTEST/MT-abc", gotPath)
	assert.Equal(t, "MERCHANTTEST", gotMerchant)
	assert.Equal(t, service.checksum("/pg/v1/status/MERCHANTTEST/MT-abc"), gotVerify)
}

func TestCheckStatus_FailedPaymentIsNotAnError(t *testing.T) {
	// A reachable gateway reporting a declined payment is a valid answer,
	// not a GatewayError.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"code":    "PAYMENT_DECLINED",
			"message": "Payment declined by customer's bank.",
		})
	}))
	defer server.Close()

	service := NewPhonePeService(phonePeTestConfig(server.URL), testLogger())

	result, err := service.CheckStatus("MT-abc")
	require.NoError(t, err)
	assert.Equal(t, "PAYMENT_DECLINED", result.Code)
	assert.Equal(t, models.OutcomeFailure, models.MapPhonePeCode(result.Code))
}

func TestCheckStatus_ServerErrorIsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	service := NewPhonePeService(phonePeTestConfig(server.URL), testLogger())

	_, err := service.CheckStatus("MT-abc")
	var gerr *models.GatewayError
	require.True(t, errors.As(err, &gerr))
}

func TestCheckStatus_MalformedResponseIsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	service := NewPhonePeService(phonePeTestConfig(server.URL), testLogger())

	_, err := service.CheckStatus("MT-abc")
	var gerr *models.GatewayError
	require.True(t, errors.As(err, &gerr))
}

func TestCheckStatus_UnreachableGateway(t *testing.T) {
	service := NewPhonePeService(phonePeTestConfig("http://127.0.0.1:1"), testLogger())

	_, err := service.CheckStatus("MT-abc")
	var gerr *models.GatewayError
	require.True(t, errors.As(err, &gerr))
}
