package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type ProviderConfirmation struct {
	ConfirmationID string `json:"confirmation_id"`
}

type ConfirmBookingRequest struct {
	BookingID       string         `json:"booking_id"`
	PaymentIntentID string         `json:"payment_intent_id"`
	BookingData     map[string]any `json:"booking_data"`
}

// ProviderClient confirms payment-confirmed bookings with the external
// inventory provider. There is no cancellation endpoint: undoing a confirmed
// provider booking is always a manual escalation.
type ProviderClient struct {
	client  *retryablehttp.Client
	baseURL string
}

func NewProviderClient(baseURL string, timeout time.Duration) ProviderClient {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient.Timeout = timeout

	return ProviderClient{
		client:  client,
		baseURL: baseURL,
	}
}

func (c ProviderClient) ConfirmBooking(ctx context.Context, request ConfirmBookingRequest) (ProviderConfirmation, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return ProviderConfirmation{}, fmt.Errorf("could not marshal confirmation request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bookings/confirm", bytes.NewReader(payload))
	if err != nil {
		return ProviderConfirmation{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", request.BookingID)

	resp, err := c.client.Do(req)
	if err != nil {
		return ProviderConfirmation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProviderConfirmation{}, fmt.Errorf("unexpected status code while confirming booking: %d", resp.StatusCode)
	}

	var confirmation ProviderConfirmation
	if err := json.NewDecoder(resp.Body).Decode(&confirmation); err != nil {
		return ProviderConfirmation{}, fmt.Errorf("could not decode confirmation: %w", err)
	}

	return confirmation, nil
}
