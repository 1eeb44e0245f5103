package http_test

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/alerts"
	dbbookings "bookings/db/bookings"
	"bookings/db/transactions"
	"bookings/entity"
	"bookings/gateway"
	bookingshttp "bookings/http"
	"bookings/saga"
)

type testServer struct {
	*httptest.Server

	payments *gateway.PaymentMock
	provider *gateway.ProviderMock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	payments := &gateway.PaymentMock{}
	provider := &gateway.ProviderMock{}

	records := dbbookings.NewInMemoryRepository()

	orchestrator := saga.NewOrchestrator(
		transactions.NewInMemoryRepository(),
		records,
		payments,
		provider,
		&alerts.EmitterMock{},
	)

	server := bookingshttp.NewServer(":0", orchestrator, records)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, payments: payments, provider: provider}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *testServer) post(t *testing.T, body map[string]any) (int, envelope) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := nethttp.Post(s.URL+"/api/bookings", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))

	return resp.StatusCode, env
}

func TestCreateBookingAction(t *testing.T) {
	s := newTestServer(t)

	code, env := s.post(t, map[string]any{
		"action":       "create_booking",
		"booking_data": map[string]any{"amount": 500, "currency": "USD", "type": "hotel"},
	})

	require.Equal(t, nethttp.StatusOK, code)
	require.True(t, env.Success)

	var data struct {
		BookingID   string                    `json:"booking_id"`
		Transaction entity.BookingTransaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.NotEmpty(t, data.BookingID)
	assert.Equal(t, entity.StatusPending, data.Transaction.Status)
	assert.Empty(t, data.Transaction.PaymentIntentID)
}

func TestCreateBookingAction_MissingBookingData(t *testing.T) {
	s := newTestServer(t)

	code, env := s.post(t, map[string]any{"action": "create_booking"})

	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestCreateBookingAction_MissingAmount(t *testing.T) {
	s := newTestServer(t)

	code, env := s.post(t, map[string]any{
		"action":       "create_booking",
		"booking_data": map[string]any{"currency": "USD"},
	})

	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestUnknownAction(t *testing.T) {
	s := newTestServer(t)

	code, env := s.post(t, map[string]any{"action": "explode"})

	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestProcessPaymentAction_MissingBookingID(t *testing.T) {
	s := newTestServer(t)

	code, env := s.post(t, map[string]any{"action": "process_payment"})

	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestFullBookingFlow(t *testing.T) {
	s := newTestServer(t)

	code, env := s.post(t, map[string]any{
		"action":       "create_booking",
		"booking_data": map[string]any{"amount": 500, "currency": "USD", "type": "hotel"},
	})
	require.Equal(t, nethttp.StatusOK, code)
	require.True(t, env.Success)

	var created struct {
		BookingID string `json:"booking_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env = s.post(t, map[string]any{
		"action":     "process_payment",
		"booking_id": created.BookingID,
	})
	require.Equal(t, nethttp.StatusOK, code)
	require.True(t, env.Success)

	var paid struct {
		PaymentIntent gateway.PaymentIntent `json:"payment_intent"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	require.NotEmpty(t, paid.PaymentIntent.ID)

	s.payments.SetIntentStatus(paid.PaymentIntent.ID, gateway.PaymentIntentSucceeded)

	code, env = s.post(t, map[string]any{
		"action":            "confirm_booking",
		"booking_id":        created.BookingID,
		"payment_intent_id": paid.PaymentIntent.ID,
	})
	require.Equal(t, nethttp.StatusOK, code)
	require.True(t, env.Success)

	var confirmed struct {
		Transaction entity.BookingTransaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &confirmed))

	assert.Equal(t, entity.StatusCompleted, confirmed.Transaction.Status)
	assert.NotEmpty(t, confirmed.Transaction.ProviderBookingID)

	resp, err := nethttp.Get(s.URL + "/api/bookings/" + created.BookingID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	var recordEnv struct {
		Success bool                 `json:"success"`
		Data    entity.BookingRecord `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recordEnv))
	assert.Equal(t, entity.BookingRecordConfirmed, recordEnv.Data.Status)
}

func TestProcessPaymentAction_TwiceFails(t *testing.T) {
	s := newTestServer(t)

	_, env := s.post(t, map[string]any{
		"action":       "create_booking",
		"booking_data": map[string]any{"amount": 500, "currency": "USD"},
	})
	require.True(t, env.Success)

	var created struct {
		BookingID string `json:"booking_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env := s.post(t, map[string]any{"action": "process_payment", "booking_id": created.BookingID})
	require.Equal(t, nethttp.StatusOK, code)
	require.True(t, env.Success)

	code, env = s.post(t, map[string]any{"action": "process_payment", "booking_id": created.BookingID})
	assert.Equal(t, nethttp.StatusInternalServerError, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestCancelBookingAction(t *testing.T) {
	s := newTestServer(t)

	_, env := s.post(t, map[string]any{
		"action":       "create_booking",
		"booking_data": map[string]any{"amount": 500, "currency": "USD"},
	})
	require.True(t, env.Success)

	var created struct {
		BookingID string `json:"booking_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env := s.post(t, map[string]any{
		"action":     "cancel_booking",
		"booking_id": created.BookingID,
	})
	require.Equal(t, nethttp.StatusOK, code)
	require.True(t, env.Success)

	var cancelled struct {
		Transaction entity.BookingTransaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))

	assert.Equal(t, entity.StatusCancelled, cancelled.Transaction.Status)
	assert.Equal(t, 0, s.payments.RefundCount())
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req, err := nethttp.NewRequest(nethttp.MethodOptions, s.URL+"/api/bookings", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", nethttp.MethodPost)

	resp, err := nethttp.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Less(t, resp.StatusCode, 300)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGetBooking_NotFound(t *testing.T) {
	s := newTestServer(t)

	resp, err := nethttp.Get(s.URL + "/api/bookings/no-such-booking")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}
