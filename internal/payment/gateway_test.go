package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuyer() Buyer {
	return Buyer{
		Email: "buyer@example.com",
		BillingDetails: BillingDetails{
			FirstName:   "Ana",
			LastName:    "Quispe",
			PhoneNumber: "+51911111111",
		},
	}
}

func TestCreatePaymentIntent_Success(t *testing.T) {
	var gotBody createPaymentBody
	var gotUser, gotPass string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Charge/CreatePayment", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var ok bool
		gotUser, gotPass, ok = r.BasicAuth()
		require.True(t, ok)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","answer":{"formToken":"tok-123"}}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		Endpoint:     srv.URL,
		Username:     "merchant-user",
		Password:     "merchant-pass",
		PublicKey:    "pub-key",
		MerchantCode: "4004345",
	})

	intent, err := client.CreatePaymentIntent(context.Background(), CreateIntentRequest{
		OrderID:  "ord-1",
		Amount:   decimal.RequireFromString("49.99"),
		Customer: testBuyer(),
	})
	require.NoError(t, err)

	assert.Equal(t, "merchant-user", gotUser)
	assert.Equal(t, "merchant-pass", gotPass)
	assert.Equal(t, int64(4999), gotBody.Amount)
	assert.Equal(t, "PEN", gotBody.Currency)
	assert.Equal(t, "ord-1", gotBody.OrderID)
	assert.Equal(t, "PAYMENT", gotBody.FormAction)
	assert.Equal(t, "buyer@example.com", gotBody.Customer.Email)

	assert.Equal(t, "tok-123", intent.FormToken)
	assert.Equal(t, "pub-key", intent.PublicKey)
	assert.Equal(t, int64(4999), intent.AmountMinor)
	assert.Equal(t, "PEN", intent.Currency)
}

func TestCreatePaymentIntent_ExplicitCurrency(t *testing.T) {
	var gotBody createPaymentBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"status":"SUCCESS","answer":{"formToken":"tok"}}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Endpoint: srv.URL, Username: "u", Password: "p"})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentRequest{
		OrderID:  "ord-1",
		Amount:   decimal.NewFromInt(10),
		Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", gotBody.Currency)
}

func TestCreatePaymentIntent_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ERROR","answer":{"errorMessage":"invalid credentials"}}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Endpoint: srv.URL, Username: "u", Password: "bad"})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentRequest{
		OrderID: "ord-1",
		Amount:  decimal.NewFromInt(10),
	})

	var rejected *GatewayRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "ERROR", rejected.Status)
	assert.Equal(t, "invalid credentials", rejected.Message)
}

func TestCreatePaymentIntent_MissingFormToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"SUCCESS","answer":{}}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Endpoint: srv.URL, Username: "u", Password: "p"})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentRequest{
		OrderID: "ord-1",
		Amount:  decimal.NewFromInt(10),
	})

	var rejected *GatewayRejectedError
	require.ErrorAs(t, err, &rejected)
}

func TestCreatePaymentIntent_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(ClientConfig{Endpoint: srv.URL, Username: "u", Password: "p"})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentRequest{
		OrderID: "ord-1",
		Amount:  decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestCreatePaymentIntent_GarbageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>upstream error</html>`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Endpoint: srv.URL, Username: "u", Password: "p"})
	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentRequest{
		OrderID: "ord-1",
		Amount:  decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestNewSessionConfig(t *testing.T) {
	intent := &Intent{FormToken: "tok", AmountMinor: 4999, Currency: "PEN"}
	cfg := NewSessionConfig("4004345", intent, "ord-1", testBuyer())

	assert.Equal(t, "4004345", cfg.MerchantCode)
	assert.Equal(t, "ord-1", cfg.OrderNumber)
	assert.Equal(t, "4999", cfg.Amount)
	assert.Equal(t, "Ana", cfg.FirstName)
	assert.Equal(t, "Quispe", cfg.LastName)
	assert.Equal(t, "buyer@example.com", cfg.Email)
	assert.Equal(t, "+51911111111", cfg.Phone)
}
