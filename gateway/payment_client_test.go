package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/gateway"
)

func TestPaymentClient_CreateIntent(t *testing.T) {
	var gotIdempotencyKey, gotAuthorization string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment_intents", r.URL.Path)

		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		gotAuthorization = r.Header.Get("Authorization")

		var body struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 500, body.Amount)
		assert.Equal(t, "USD", body.Currency)

		json.NewEncoder(w).Encode(gateway.PaymentIntent{
			ID:       "pi_123",
			Status:   gateway.PaymentIntentProcessing,
			Amount:   body.Amount,
			Currency: body.Currency,
		})
	}))
	defer server.Close()

	client := gateway.NewPaymentClient(server.URL, "sk_test", 5*time.Second)

	intent, err := client.CreateIntent(context.Background(), gateway.CreateIntentRequest{
		BookingID:      "b-1",
		Amount:         500,
		Currency:       "USD",
		IdempotencyKey: "booking-b-1-payment",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "booking-b-1-payment", gotIdempotencyKey)
	assert.Equal(t, "Bearer sk_test", gotAuthorization)
}

func TestPaymentClient_RetrieveIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/payment_intents/pi_123", r.URL.Path)

		json.NewEncoder(w).Encode(gateway.PaymentIntent{ID: "pi_123", Status: gateway.PaymentIntentSucceeded})
	}))
	defer server.Close()

	client := gateway.NewPaymentClient(server.URL, "sk_test", 5*time.Second)

	intent, err := client.RetrieveIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, gateway.PaymentIntentSucceeded, intent.Status)
}

func TestPaymentClient_Refund(t *testing.T) {
	var gotIdempotencyKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")

		var body struct {
			PaymentIntent string `json:"payment_intent"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pi_123", body.PaymentIntent)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := gateway.NewPaymentClient(server.URL, "sk_test", 5*time.Second)

	err := client.Refund(context.Background(), gateway.RefundRequest{
		PaymentIntentID: "pi_123",
		Reason:          "provider confirmation failed",
		IdempotencyKey:  "booking-b-1-refund",
	})
	require.NoError(t, err)
	assert.Equal(t, "booking-b-1-refund", gotIdempotencyKey)
}

func TestPaymentClient_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := gateway.NewPaymentClient(server.URL, "sk_test", 5*time.Second)

	_, err := client.CreateIntent(context.Background(), gateway.CreateIntentRequest{
		BookingID: "b-1", Amount: 500, Currency: "USD", IdempotencyKey: "k",
	})
	assert.Error(t, err)
}

func TestProviderClient_ConfirmBooking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bookings/confirm", r.URL.Path)

		var body gateway.ConfirmBookingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "b-1", body.BookingID)
		assert.Equal(t, "b-1", r.Header.Get("Idempotency-Key"))

		json.NewEncoder(w).Encode(gateway.ProviderConfirmation{ConfirmationID: "prov_9"})
	}))
	defer server.Close()

	client := gateway.NewProviderClient(server.URL, 5*time.Second)

	confirmation, err := client.ConfirmBooking(context.Background(), gateway.ConfirmBookingRequest{
		BookingID:       "b-1",
		PaymentIntentID: "pi_123",
		BookingData:     map[string]any{"type": "hotel"},
	})
	require.NoError(t, err)
	assert.Equal(t, "prov_9", confirmation.ConfirmationID)
}
